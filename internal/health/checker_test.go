package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeS3 struct{ err error }

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

type fakeSQS struct{ err error }

func (f *fakeSQS) GetQueueAttributes(context.Context, *sqs.GetQueueAttributesInput, ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{}, f.err
}

type fakeDynamo struct{ err error }

func (f *fakeDynamo) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.err
}

func testCheckerConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig("vodflow-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg.S3Client = &fakeS3{}
	cfg.SQSClient = &fakeSQS{}
	cfg.DynamoDBClient = &fakeDynamo{}
	cfg.S3Bucket = "raw-bucket"
	cfg.SQSQueueURL = "https://sqs.example.com/q"
	cfg.DynamoDBTable = "videos"
	cfg.MediaRoot = t.TempDir()
	return cfg
}

func TestDeepCheckHealthy(t *testing.T) {
	c := NewChecker(testCheckerConfig(t))

	status := c.Check(context.Background(), true)
	if status.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", status.Status)
	}
	for _, name := range []string{"s3", "sqs", "dynamodb", "media_root"} {
		check, ok := status.Checks[name]
		if !ok {
			t.Errorf("missing component check %s", name)
			continue
		}
		if check.Status != "healthy" {
			t.Errorf("%s = %q, want healthy", name, check.Status)
		}
	}
}

func TestDeepCheckDegraded(t *testing.T) {
	cfg := testCheckerConfig(t)
	cfg.SQSClient = &fakeSQS{err: errors.New("queue unreachable")}
	c := NewChecker(cfg)

	status := c.Check(context.Background(), true)
	if status.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", status.Status)
	}
	if status.Checks["sqs"].Status != "unhealthy" {
		t.Errorf("sqs = %q, want unhealthy", status.Checks["sqs"].Status)
	}
	if status.Checks["s3"].Status != "healthy" {
		t.Errorf("s3 = %q, want healthy", status.Checks["s3"].Status)
	}
}

func TestDeepCheckMissingMediaRoot(t *testing.T) {
	cfg := testCheckerConfig(t)
	cfg.MediaRoot = "/does/not/exist"
	c := NewChecker(cfg)

	status := c.Check(context.Background(), true)
	if status.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", status.Status)
	}
	if status.Checks["media_root"].Status != "unhealthy" {
		t.Errorf("media_root = %q, want unhealthy", status.Checks["media_root"].Status)
	}
}

func TestShallowCheckUsesCache(t *testing.T) {
	c := NewChecker(testCheckerConfig(t))

	first := c.Check(context.Background(), false)
	second := c.Check(context.Background(), false)
	if first != second {
		t.Error("expected the cached status to be returned")
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c := NewChecker(testCheckerConfig(t))
		rec := httptest.NewRecorder()
		c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		var status Status
		if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
			t.Fatal(err)
		}
		if status.Service != "vodflow-test" {
			t.Errorf("service = %q", status.Service)
		}
	})

	t.Run("degraded deep check", func(t *testing.T) {
		cfg := testCheckerConfig(t)
		cfg.DynamoDBClient = &fakeDynamo{err: errors.New("table missing")}
		c := NewChecker(cfg)

		rec := httptest.NewRecorder()
		c.DeepHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/deep", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestDeepHandlerRateLimited(t *testing.T) {
	cfg := testCheckerConfig(t)
	cfg.DeepCheckLimit = time.Hour
	c := NewChecker(cfg)

	rec := httptest.NewRecorder()
	c.DeepHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/deep", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first deep check: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.DeepHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/deep", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second deep check: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}
