package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vodflow/vodflow/pkg/models"
)

type fakeObjectGetter struct {
	body []byte
	err  error
}

func (f *fakeObjectGetter) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchWritesSource(t *testing.T) {
	content := []byte("raw video bytes")
	f := NewFetcher(&fakeObjectGetter{body: content}, testLogger())

	destPath := filepath.Join(t.TempDir(), "sources", "vid-1.mp4")
	job := &models.TranscodeJob{VideoID: "vid-1", S3Key: "uploads/vid-1.mp4", Bucket: "raw-bucket"}

	if err := f.Fetch(context.Background(), job, destPath); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("source not written: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("source content mismatch: %q", got)
	}

	// The temporary download file must not linger.
	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("temporary .part file left behind")
	}
}

func TestFetchLeavesNoPartialFile(t *testing.T) {
	f := NewFetcher(&fakeObjectGetter{err: errors.New("access denied")}, testLogger())

	destPath := filepath.Join(t.TempDir(), "vid-1.mp4")
	job := &models.TranscodeJob{VideoID: "vid-1", S3Key: "uploads/vid-1.mp4", Bucket: "raw-bucket"}

	if err := f.Fetch(context.Background(), job, destPath); err == nil {
		t.Fatal("expected fetch failure")
	}

	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Error("destination should not exist after a failed fetch")
	}
	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("temporary .part file should be cleaned up")
	}
}
