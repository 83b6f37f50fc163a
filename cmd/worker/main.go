package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/internal/logger"
	"github.com/vodflow/vodflow/internal/observability"
	"github.com/vodflow/vodflow/internal/pipeline"
	"github.com/vodflow/vodflow/internal/storage"
	"github.com/vodflow/vodflow/internal/transcoder"
	"github.com/vodflow/vodflow/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := logger.New()

	_ = godotenv.Load()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "vodflow-worker", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Warn("Tracing disabled", "error", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := s3.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	repo := storage.NewVideoRepositoryFromClient(dynamoClient, cfg.AWS.DynamoDBTable)

	pipe := pipeline.New(
		pipeline.Config{
			MediaRoot: cfg.Media.MediaRoot,
			Ladder:    transcoder.DefaultLadder,
		},
		repo,
		worker.NewFetcher(s3Client, log),
		transcoder.NewEncoder(cfg.Media.SegmentDuration, log),
		transcoder.NewProber(log),
		transcoder.NewThumbnailer(cfg.Media.ThumbnailOffset, log),
		log,
	)

	w := worker.New(&worker.Config{
		SQSClient: sqsClient,
		Pipeline:  pipe,
		AppConfig: cfg,
		Logger:    log,
	})

	// Metrics endpoint; the worker has no other HTTP surface.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Worker.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting metrics server", "port", cfg.Worker.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", "error", err)
		}
	}()

	log.Info("Worker starting",
		"maxConcurrentJobs", cfg.Worker.MaxConcurrentJobs,
		"mediaRoot", cfg.Media.MediaRoot,
	)

	w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down metrics server cleanly", "error", err)
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("Failed to shut down tracer", "error", err)
		}
	}

	log.Info("Worker stopped")
}
