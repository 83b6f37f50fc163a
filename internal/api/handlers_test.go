package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vodflow/vodflow/internal/auth"
	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/internal/transcoder"
	"github.com/vodflow/vodflow/pkg/models"
)

type fakeRawObjects struct {
	headSize   int64
	headErr    error
	presignErr error
}

func (f *fakeRawObjects) GeneratePresignedURL(_ context.Context, bucket, key, _ string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://" + bucket + ".example.com/" + key + "?signed", nil
}

func (f *fakeRawObjects) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(f.headSize)}, nil
}

type fakeTrigger struct {
	err       error
	submitted []string
}

func (f *fakeTrigger) Submit(_ context.Context, video *models.Video) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, video.VideoID)
	return nil
}

type fakeCleaner struct {
	removed []string
}

func (f *fakeCleaner) Remove(_ context.Context, video *models.Video) {
	f.removed = append(f.removed, video.VideoID)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "dev",
		AWS: config.AWSConfig{
			Region:    "us-west-2",
			RawBucket: "raw-bucket",
		},
		Media: config.MediaConfig{
			MediaRoot:       "/tmp/media",
			MaxSourceSizeMB: 100,
		},
	}
}

func newTestHandlers(t *testing.T, store *fakeVideoStore, raw *fakeRawObjects, trigger *fakeTrigger, cleaner *fakeCleaner) *Handlers {
	t.Helper()
	jwtService, err := auth.NewJWTService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	return NewHandlers(&HandlersConfig{
		Config:     testConfig(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		S3Client:   raw,
		Store:      store,
		Trigger:    trigger,
		Cleaner:    cleaner,
		JWTService: jwtService,
		Ladder:     transcoder.DefaultLadder,
	})
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"movie.mp4", false},
		{"Movie.MP4", false},
		{"clip.mov", false},
		{"clip.webm", false},
		{"", true},
		{"noextension", true},
		{"script.sh", true},
		{"archive.zip", true},
		{string(bytes.Repeat([]byte("a"), 300)) + ".mp4", true},
	}

	for _, tt := range tests {
		err := validateFilename(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateFilename(%.20q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"video/mp4", false},
		{"video/webm", false},
		{"", true},
		{"application/octet-stream", true},
		{"text/html", true},
	}

	for _, tt := range tests {
		err := validateContentType(tt.contentType)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateContentType(%q) error = %v, wantErr %v", tt.contentType, err, tt.wantErr)
		}
	}
}

func TestValidateS3Key(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		videoID string
		wantErr bool
	}{
		{"valid", "uploads/vid-1.mp4", "vid-1", false},
		{"wrong prefix", "other/vid-1.mp4", "vid-1", true},
		{"wrong video id", "uploads/vid-2.mp4", "vid-1", true},
		{"path traversal", "uploads/vid-1/../../etc/passwd.mp4", "vid-1", true},
		{"encoded traversal", "uploads/vid-1%2F..%2F..%2Fetc.mp4", "vid-1", true},
		{"bad extension", "uploads/vid-1.exe", "vid-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateS3Key(tt.key, tt.videoID)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateS3Key(%q, %q) error = %v, wantErr %v", tt.key, tt.videoID, err, tt.wantErr)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	h := newTestHandlers(t, &fakeVideoStore{}, &fakeRawObjects{}, &fakeTrigger{}, &fakeCleaner{})

	tests := []struct {
		name       string
		username   string
		password   string
		noAuth     bool
		wantStatus int
	}{
		{"valid dev credentials", "admin", "secret", false, http.StatusOK},
		{"wrong password", "admin", "wrong", false, http.StatusUnauthorized},
		{"wrong username", "root", "secret", false, http.StatusUnauthorized},
		{"missing credentials", "", "", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			if !tt.noAuth {
				req.SetBasicAuth(tt.username, tt.password)
			}
			rec := httptest.NewRecorder()
			h.LoginHandler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp["token"] == "" {
					t.Error("expected a token in the response")
				}
			}
		})
	}
}

func TestInitUploadHandler(t *testing.T) {
	raw := &fakeRawObjects{}
	h := newTestHandlers(t, &fakeVideoStore{}, raw, &fakeTrigger{}, &fakeCleaner{})

	body, _ := json.Marshal(InitUploadRequest{Filename: "movie.mp4", ContentType: "video/mp4"})
	req := httptest.NewRequest(http.MethodPost, "/upload/init", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.InitUploadHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp InitUploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoID == "" || resp.UploadURL == "" {
		t.Errorf("incomplete response: %+v", resp)
	}
	if resp.Key != "uploads/"+resp.VideoID+".mp4" {
		t.Errorf("unexpected key: %s", resp.Key)
	}
}

func TestInitUploadHandlerRejectsBadInput(t *testing.T) {
	h := newTestHandlers(t, &fakeVideoStore{}, &fakeRawObjects{}, &fakeTrigger{}, &fakeCleaner{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"bad extension", `{"filename":"x.exe","contentType":"video/mp4"}`},
		{"bad content type", `{"filename":"x.mp4","contentType":"text/html"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/upload/init", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.InitUploadHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func completeUploadBody(videoID string) *bytes.Reader {
	body, _ := json.Marshal(CompleteUploadRequest{
		VideoID:  videoID,
		Key:      "uploads/" + videoID + ".mp4",
		Filename: "movie.mp4",
		Title:    "A movie",
		Category: "drama",
	})
	return bytes.NewReader(body)
}

func TestCompleteUploadHandler(t *testing.T) {
	store := &fakeVideoStore{}
	trigger := &fakeTrigger{}
	h := newTestHandlers(t, store, &fakeRawObjects{headSize: 5 << 20}, trigger, &fakeCleaner{})

	req := httptest.NewRequest(http.MethodPost, "/upload/complete", completeUploadBody("vid-1"))
	rec := httptest.NewRecorder()
	h.CompleteUploadHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	video, ok := store.videos["vid-1"]
	if !ok {
		t.Fatal("video record not created")
	}
	if video.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", video.Status)
	}
	if video.OriginalFilePath == "" {
		t.Error("expected a local source path on the record")
	}
	if len(trigger.submitted) != 1 || trigger.submitted[0] != "vid-1" {
		t.Errorf("expected one submitted job for vid-1, got %v", trigger.submitted)
	}

	var resp CompleteUploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(models.StatusPending) {
		t.Errorf("response status = %q, want pending", resp.Status)
	}
}

func TestCompleteUploadHandlerSourceTooLarge(t *testing.T) {
	store := &fakeVideoStore{}
	// Config allows 100 MB; the object is 200 MB.
	h := newTestHandlers(t, store, &fakeRawObjects{headSize: 200 << 20}, &fakeTrigger{}, &fakeCleaner{})

	req := httptest.NewRequest(http.MethodPost, "/upload/complete", completeUploadBody("vid-1"))
	rec := httptest.NewRecorder()
	h.CompleteUploadHandler(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rec.Code, rec.Body.String())
	}
	if len(store.videos) != 0 {
		t.Error("no record should be created for an oversized source")
	}
}

func TestCompleteUploadHandlerObjectMissing(t *testing.T) {
	h := newTestHandlers(t, &fakeVideoStore{}, &fakeRawObjects{headErr: errors.New("NotFound")}, &fakeTrigger{}, &fakeCleaner{})

	req := httptest.NewRequest(http.MethodPost, "/upload/complete", completeUploadBody("vid-1"))
	rec := httptest.NewRecorder()
	h.CompleteUploadHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCompleteUploadHandlerSubmitFailure(t *testing.T) {
	store := &fakeVideoStore{}
	trigger := &fakeTrigger{err: models.ErrSubmitFailed}
	h := newTestHandlers(t, store, &fakeRawObjects{headSize: 5 << 20}, trigger, &fakeCleaner{})

	req := httptest.NewRequest(http.MethodPost, "/upload/complete", completeUploadBody("vid-1"))
	rec := httptest.NewRecorder()
	h.CompleteUploadHandler(rec, req)

	// The record exists (marked failed by the trigger); the client learns
	// the job was not queued.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestDeleteVideoHandler(t *testing.T) {
	tests := []struct {
		name        string
		status      models.VideoStatus
		wantStatus  int
		wantRemoved bool
	}{
		{"completed video", models.StatusCompleted, http.StatusNoContent, true},
		{"failed video", models.StatusFailed, http.StatusNoContent, true},
		{"pending video", models.StatusPending, http.StatusNoContent, true},
		{"processing video", models.StatusProcessing, http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeVideoStore{videos: map[string]*models.Video{
				"vid-1": {VideoID: "vid-1", Status: tt.status},
			}}
			cleaner := &fakeCleaner{}
			h := newTestHandlers(t, store, &fakeRawObjects{}, &fakeTrigger{}, cleaner)

			mux := http.NewServeMux()
			mux.HandleFunc("DELETE /videos/{id}", h.DeleteVideoHandler)

			req := httptest.NewRequest(http.MethodDelete, "/videos/vid-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantRemoved {
				if len(cleaner.removed) != 1 {
					t.Error("expected artifact cleanup to run")
				}
				if len(store.deleted) != 1 {
					t.Error("expected the record to be deleted")
				}
			} else {
				if len(cleaner.removed) != 0 || len(store.deleted) != 0 {
					t.Error("nothing should be removed while processing")
				}
				if _, ok := store.videos["vid-1"]; !ok {
					t.Error("record should survive a rejected delete")
				}
			}
		})
	}
}

func TestDeleteVideoHandlerNotFound(t *testing.T) {
	h := newTestHandlers(t, &fakeVideoStore{}, &fakeRawObjects{}, &fakeTrigger{}, &fakeCleaner{})

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /videos/{id}", h.DeleteVideoHandler)

	req := httptest.NewRequest(http.MethodDelete, "/videos/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetVideoHandler(t *testing.T) {
	store := &fakeVideoStore{videos: map[string]*models.Video{
		"vid-1": {VideoID: "vid-1", Status: models.StatusProcessing, Progress: 40},
	}}
	h := newTestHandlers(t, store, &fakeRawObjects{}, &fakeTrigger{}, &fakeCleaner{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /videos/{id}", h.GetVideoHandler)

	req := httptest.NewRequest(http.MethodGet, "/videos/vid-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var video models.Video
	if err := json.NewDecoder(rec.Body).Decode(&video); err != nil {
		t.Fatal(err)
	}
	if video.Status != models.StatusProcessing || video.Progress != 40 {
		t.Errorf("got %q/%d, want processing/40", video.Status, video.Progress)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://localhost:5173"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/videos", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/videos", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin should be empty, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/videos", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
	})
}
