package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Default timeout for S3 control operations
const DefaultS3Timeout = 30 * time.Second

// S3Client wraps the AWS S3 client with presigning support.
type S3Client struct {
	*s3.Client
}

// NewS3Client creates an S3 client from the default credential chain.
func NewS3Client(ctx context.Context, region string) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &S3Client{s3.NewFromConfig(cfg)}, nil
}

// NewS3ClientFromAWSConfig creates an S3 client from an existing AWS config.
func NewS3ClientFromAWSConfig(cfg aws.Config) *S3Client {
	return &S3Client{s3.NewFromConfig(cfg)}
}

// GeneratePresignedURL returns a presigned PUT URL for a raw source upload.
func (c *S3Client) GeneratePresignedURL(ctx context.Context, bucket, key, contentType string, lifetime time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	presignClient := s3.NewPresignClient(c.Client)

	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = lifetime
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}

	return req.URL, nil
}
