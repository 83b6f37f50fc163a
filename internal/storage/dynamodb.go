package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/pkg/models"
)

// VideoRepository handles video metadata storage in DynamoDB.
type VideoRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewVideoRepository creates a new VideoRepository using the provided configuration.
func NewVideoRepository(ctx context.Context, cfg *config.Config) (*VideoRepository, error) {
	if cfg.AWS.DynamoDBTable == "" {
		return nil, errors.New("DynamoDB table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Add OpenTelemetry instrumentation
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	return &VideoRepository{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.AWS.DynamoDBTable,
	}, nil
}

// NewVideoRepositoryFromClient creates a new VideoRepository from an existing DynamoDB client.
func NewVideoRepositoryFromClient(client *dynamodb.Client, tableName string) *VideoRepository {
	return &VideoRepository{
		client:    client,
		tableName: tableName,
	}
}

func videoKey(videoID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("VIDEO#%s", videoID)},
		"sk": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// CreateVideo creates a new video metadata record in status pending.
func (r *VideoRepository) CreateVideo(ctx context.Context, video *models.Video) error {
	now := time.Now().UTC().Format(time.RFC3339)

	video.PK = fmt.Sprintf("VIDEO#%s", video.VideoID)
	video.SK = "METADATA"
	video.GSI1PK = "ALL_VIDEOS"
	video.GSI1SK = fmt.Sprintf("%s#%s", now, video.VideoID)
	video.Status = models.StatusPending
	video.Progress = 0
	video.CreatedAt = now
	video.UpdatedAt = now

	item, err := attributevalue.MarshalMap(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("video already exists: %s", video.VideoID)
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves video metadata by ID.
func (r *VideoRepository) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       videoKey(videoID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrVideoNotFound
	}

	var video models.Video
	if err := attributevalue.UnmarshalMap(result.Item, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	return &video, nil
}

// UpdateProcessingState is the single write path for status, progress, and
// error text. Transition legality is enforced by the pipeline's progress gate
// before this is called; the repository just persists the result.
func (r *VideoRepository) UpdateProcessingState(ctx context.Context, videoID string, status models.VideoStatus, progress int, errorMessage string) error {
	if !status.IsValid() {
		return models.ErrInvalidStatus
	}

	now := time.Now().UTC().Format(time.RFC3339)

	update := "SET #status = :status, processing_progress = :progress, processing_error = :error, updated_at = :updated_at"
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(status)},
		":progress":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", progress)},
		":error":      &types.AttributeValueMemberS{Value: errorMessage},
		":updated_at": &types.AttributeValueMemberS{Value: now},
	}
	if status == models.StatusCompleted {
		update += ", processed_at = :processed_at"
		values[":processed_at"] = &types.AttributeValueMemberS{Value: now}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       videoKey(videoID),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  map[string]string{"#status": "processing_status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrVideoNotFound
		}
		return fmt.Errorf("failed to update processing state: %w", err)
	}

	return nil
}

// SetHLSDirectory persists the output tree root. Set once, at pipeline setup.
func (r *VideoRepository) SetHLSDirectory(ctx context.Context, videoID, hlsDir string) error {
	return r.setFields(ctx, videoID, "SET hls_directory = :v, updated_at = :updated_at",
		map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: hlsDir},
		})
}

// SetMediaInfo persists duration and file size together in one write.
func (r *VideoRepository) SetMediaInfo(ctx context.Context, videoID string, durationSeconds int64, fileSizeMB float64) error {
	return r.setFields(ctx, videoID, "SET duration_seconds = :dur, file_size_mb = :size, updated_at = :updated_at",
		map[string]types.AttributeValue{
			":dur":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", durationSeconds)},
			":size": &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", fileSizeMB)},
		})
}

// SetThumbnail persists the thumbnail path.
func (r *VideoRepository) SetThumbnail(ctx context.Context, videoID, thumbnailPath string) error {
	return r.setFields(ctx, videoID, "SET thumbnail_path = :v, updated_at = :updated_at",
		map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: thumbnailPath},
		})
}

func (r *VideoRepository) setFields(ctx context.Context, videoID, expression string, values map[string]types.AttributeValue) error {
	values[":updated_at"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       videoKey(videoID),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrVideoNotFound
		}
		return fmt.Errorf("failed to update video: %w", err)
	}

	return nil
}

// DeleteVideo removes the metadata record. Filesystem cleanup happens first
// and is best-effort; the record delete proceeds regardless of its outcome.
func (r *VideoRepository) DeleteVideo(ctx context.Context, videoID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 videoKey(videoID),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrVideoNotFound
		}
		return fmt.Errorf("failed to delete video: %w", err)
	}

	return nil
}

// ListVideos retrieves videos in reverse chronological order.
func (r *VideoRepository) ListVideos(ctx context.Context, limit int32, startKey map[string]types.AttributeValue) ([]models.Video, map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "ALL_VIDEOS"},
		},
		ScanIndexForward: aws.Bool(false), // Descending order (newest first)
		Limit:            aws.Int32(limit),
	}

	if startKey != nil {
		input.ExclusiveStartKey = startKey
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list videos: %w", err)
	}

	var videos []models.Video
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &videos); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal videos: %w", err)
	}

	return videos, result.LastEvaluatedKey, nil
}
