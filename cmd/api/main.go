package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/vodflow/vodflow/internal/api"
	"github.com/vodflow/vodflow/internal/auth"
	"github.com/vodflow/vodflow/internal/cleanup"
	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/internal/health"
	"github.com/vodflow/vodflow/internal/logger"
	"github.com/vodflow/vodflow/internal/observability"
	"github.com/vodflow/vodflow/internal/queue"
	"github.com/vodflow/vodflow/internal/storage"
	"github.com/vodflow/vodflow/internal/transcoder"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := logger.New()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "vodflow-api", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Warn("Tracing disabled", "error", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := storage.NewS3ClientFromAWSConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	repo := storage.NewVideoRepositoryFromClient(dynamoClient, cfg.AWS.DynamoDBTable)

	jwtSecret, err := cfg.GetJWTSecret()
	if err != nil {
		log.Error("Failed to load JWT secret", "error", err)
		os.Exit(1)
	}
	jwtService, err := auth.NewJWTService(jwtSecret)
	if err != nil {
		log.Error("Failed to create JWT service", "error", err)
		os.Exit(1)
	}
	rateLimiter := auth.NewRateLimiter(auth.DefaultRateLimiterConfig())

	trigger := queue.NewTrigger(sqsClient, repo, cfg.AWS.SQSQueueURL, cfg.AWS.RawBucket, log)
	cleaner := cleanup.NewHandler(s3Client, cfg.AWS.RawBucket, log)

	handlers := api.NewHandlers(&api.HandlersConfig{
		Config:     cfg,
		Logger:     log,
		S3Client:   s3Client,
		Store:      repo,
		Trigger:    trigger,
		Cleaner:    cleaner,
		JWTService: jwtService,
		Ladder:     transcoder.DefaultLadder,
	})

	healthCfg := health.DefaultConfig("vodflow-api", log)
	healthCfg.S3Client = s3Client
	healthCfg.SQSClient = sqsClient
	healthCfg.DynamoDBClient = dynamoClient
	healthCfg.S3Bucket = cfg.AWS.RawBucket
	healthCfg.SQSQueueURL = cfg.AWS.SQSQueueURL
	healthCfg.DynamoDBTable = cfg.AWS.DynamoDBTable
	healthCfg.MediaRoot = cfg.Media.MediaRoot
	healthChecker := health.NewChecker(healthCfg)

	server, err := api.NewServer(&api.ServerConfig{
		Config:        cfg,
		Logger:        log,
		Handlers:      handlers,
		JWTService:    jwtService,
		RateLimiter:   rateLimiter,
		HealthChecker: healthChecker,
	})
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down server cleanly", "error", err)
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("Failed to shut down tracer", "error", err)
		}
	}

	log.Info("API server stopped")
}
