package models

import (
	"errors"
	"testing"
)

func TestVideoStatusIsValid(t *testing.T) {
	for _, s := range []VideoStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []VideoStatus{"", "done", "PENDING"} {
		if s.IsValid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to VideoStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%q -> %q = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestHasSource(t *testing.T) {
	v := &Video{VideoID: "vid-1"}
	if v.HasSource() {
		t.Error("record without a raw key should have no source")
	}
	v.S3RawKey = "uploads/vid-1.mp4"
	if !v.HasSource() {
		t.Error("record with a raw key should have a source")
	}
}

func TestTranscodeJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     TranscodeJob
		wantErr error
	}{
		{
			name: "valid",
			job:  TranscodeJob{VideoID: "v", S3Key: "k", Bucket: "b"},
		},
		{
			name:    "missing video id",
			job:     TranscodeJob{S3Key: "k", Bucket: "b"},
			wantErr: ErrMissingVideoID,
		},
		{
			name:    "missing key",
			job:     TranscodeJob{VideoID: "v", Bucket: "b"},
			wantErr: ErrMissingS3Key,
		},
		{
			name:    "missing bucket",
			job:     TranscodeJob{VideoID: "v", S3Key: "k"},
			wantErr: ErrMissingBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
