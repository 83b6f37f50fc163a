package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/vodflow/vodflow/pkg/models"
)

func TestProcessMessageRejectsBadPayloads(t *testing.T) {
	w := &Worker{log: testLogger()}

	tests := []struct {
		name string
		body *string
	}{
		{"nil body", nil},
		{"not json", aws.String("{nope")},
		{"missing fields", aws.String(`{"videoId":"vid-1"}`)},
		{"empty object", aws.String(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.processMessage(context.Background(), types.Message{Body: tt.body})
			if !errors.Is(err, models.ErrJobParseFailed) {
				t.Errorf("expected ErrJobParseFailed, got %v", err)
			}
		})
	}
}
