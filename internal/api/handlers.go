package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vodflow/vodflow/internal/auth"
	"github.com/vodflow/vodflow/internal/config"
	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/internal/pipeline"
	"github.com/vodflow/vodflow/internal/transcoder"
	"github.com/vodflow/vodflow/pkg/models"
)

var tracer = otel.Tracer("vodflow-api")

// Configuration constants
const (
	PresignedURLExpiration = 10 * time.Minute
	MaxFilenameLength      = 255
	MaxRequestBodySize     = 1 << 20 // 1 MB
	DefaultListLimit       = 50
	MaxListLimit           = 200
)

// Allowed video extensions and content types
var (
	AllowedExtensions = map[string]bool{
		".mp4":  true,
		".mov":  true,
		".avi":  true,
		".mkv":  true,
		".webm": true,
	}

	AllowedContentTypes = map[string]bool{
		"video/mp4":        true,
		"video/quicktime":  true,
		"video/x-msvideo":  true,
		"video/x-matroska": true,
		"video/webm":       true,
	}

	// AllowedCategories a video can be filed under.
	AllowedCategories = map[string]bool{
		"action": true, "drama": true, "comedy": true, "romance": true,
		"thriller": true, "documentary": true, "animation": true,
	}
)

// VideoStore is what the handlers need from the metadata store.
type VideoStore interface {
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
	ListVideos(ctx context.Context, limit int32, startKey map[string]types.AttributeValue) ([]models.Video, map[string]types.AttributeValue, error)
	DeleteVideo(ctx context.Context, videoID string) error
}

// JobSubmitter submits the processing job for a newly created video.
type JobSubmitter interface {
	Submit(ctx context.Context, video *models.Video) error
}

// ArtifactRemover removes a video's on-disk and S3 artifacts best-effort.
type ArtifactRemover interface {
	Remove(ctx context.Context, video *models.Video)
}

// RawObjectClient is the slice of the S3 client the handlers use.
type RawObjectClient interface {
	GeneratePresignedURL(ctx context.Context, bucket, key, contentType string, lifetime time.Duration) (string, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg      *config.Config
	log      *slog.Logger
	s3Client RawObjectClient
	store    VideoStore
	trigger  JobSubmitter
	cleaner  ArtifactRemover
	jwt      *auth.JWTService
	ladder   []transcoder.Rung
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	S3Client   RawObjectClient
	Store      VideoStore
	Trigger    JobSubmitter
	Cleaner    ArtifactRemover
	JWTService *auth.JWTService
	Ladder     []transcoder.Rung
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:      cfg.Config,
		log:      cfg.Logger,
		s3Client: cfg.S3Client,
		store:    cfg.Store,
		trigger:  cfg.Trigger,
		cleaner:  cfg.Cleaner,
		jwt:      cfg.JWTService,
		ladder:   cfg.Ladder,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// LoginHandler handles user authentication and returns a JWT token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientIP := auth.GetClientIP(r)

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	expectedUsername, expectedPassword, err := h.cfg.GetAPICredentials()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to get API credentials", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if username != expectedUsername || password != expectedPassword {
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		h.writeError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// InitUploadRequest is the request payload for upload initialization.
type InitUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// InitUploadResponse is the response payload for upload initialization.
type InitUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	VideoID   string `json:"videoId"`
	Key       string `json:"key"`
	RequestID string `json:"requestId"`
}

// InitUploadHandler generates a presigned URL for video upload.
func (h *Handlers) InitUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "init-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "init-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	h.limitRequestBody(w, r)

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateFilename(req.Filename); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateContentType(req.ContentType); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	videoID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(req.Filename))
	s3Key := fmt.Sprintf("uploads/%s%s", videoID, ext)

	span.SetAttributes(
		attribute.String("video.id", videoID),
		attribute.String("video.key", s3Key),
	)

	presignedURL, err := h.s3Client.GeneratePresignedURL(ctx, h.cfg.AWS.RawBucket, s3Key, req.ContentType, PresignedURLExpiration)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to generate presigned URL",
			"error", err,
			"videoId", videoID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	metrics.UploadsInitiated.Inc()
	h.log.InfoContext(ctx, "Generated presigned URL",
		"videoId", videoID,
		"key", s3Key,
		"filename", req.Filename,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusOK, InitUploadResponse{
		UploadURL: presignedURL,
		VideoID:   videoID,
		Key:       s3Key,
		RequestID: requestID,
	})
}

// CompleteUploadRequest is the request payload for completing an upload.
type CompleteUploadRequest struct {
	VideoID     string `json:"videoId"`
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CompleteUploadResponse is the response payload for completed uploads.
type CompleteUploadResponse struct {
	VideoID   string `json:"videoId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// CompleteUploadHandler verifies the upload, creates the metadata record, and
// submits the processing job.
func (h *Handlers) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "complete-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "complete-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	h.limitRequestBody(w, r)

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.VideoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "videoId is required")
		return
	}
	if req.Key == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "key is required")
		return
	}
	if err := validateS3Key(req.Key, req.VideoID); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Category != "" && !AllowedCategories[req.Category] {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid category")
		return
	}

	span.SetAttributes(
		attribute.String("video.id", req.VideoID),
		attribute.String("video.key", req.Key),
	)

	// Verify the object landed and enforce the source size limit.
	headResult, err := h.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.cfg.AWS.RawBucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		span.RecordError(err)
		h.log.WarnContext(ctx, "Uploaded file not found in S3",
			"key", req.Key,
			"videoId", req.VideoID,
			"requestId", requestID,
			"error", err,
		)
		h.writeError(ctx, w, http.StatusNotFound, "Uploaded file not found")
		return
	}

	if headResult.ContentLength != nil {
		maxBytes := h.cfg.Media.MaxSourceSizeMB << 20
		if *headResult.ContentLength > maxBytes {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("%s (%d MB)", models.ErrFileTooLarge.Error(), h.cfg.Media.MaxSourceSizeMB))
			return
		}
	}

	video := &models.Video{
		VideoID:          req.VideoID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Filename:         req.Filename,
		S3RawKey:         req.Key,
		OriginalFilePath: pipeline.SourcePath(h.cfg.Media.MediaRoot, req.VideoID, req.Key),
	}

	if err := h.store.CreateVideo(ctx, video); err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to create video record",
			"videoId", req.VideoID,
			"error", err,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to create video record")
		return
	}

	// Explicit trigger call: if this fails the record is already marked
	// failed, so surface the error rather than pretending the job exists.
	if err := h.trigger.Submit(ctx, video); err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to queue processing job",
			"error", err,
			"videoId", req.VideoID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to queue processing job")
		return
	}

	metrics.UploadsCompleted.Inc()
	h.log.InfoContext(ctx, "Processing job queued",
		"videoId", req.VideoID,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusAccepted, CompleteUploadResponse{
		VideoID:   req.VideoID,
		Status:    string(models.StatusPending),
		Message:   "Video queued for processing",
		RequestID: requestID,
	})
}

// ListVideosHandler returns videos in reverse chronological order.
func (h *Handlers) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := int32(DefaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > MaxListLimit {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int32(parsed)
	}

	videos, _, err := h.store.ListVideos(ctx, limit, nil)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to list videos", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// GetVideoHandler returns one record, including status and progress. Polling
// this endpoint is the canonical way to observe a pipeline run's outcome.
func (h *Handlers) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.store.GetVideo(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Video not found")
			return
		}
		h.log.ErrorContext(ctx, "Failed to get video", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve video")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, video)
}

// DeleteVideoHandler removes a video's artifacts and its record. Deletion is
// rejected while the pipeline is still writing, so cleanup never races the
// worker on the output tree.
func (h *Handlers) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctx, span := tracer.Start(ctx, "delete-video-handler")
	defer span.End()

	video, err := h.store.GetVideo(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Video not found")
			return
		}
		h.log.ErrorContext(ctx, "Failed to get video", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve video")
		return
	}

	if video.Status == models.StatusProcessing {
		h.writeError(ctx, w, http.StatusConflict, models.ErrVideoProcessing.Error())
		return
	}

	span.SetAttributes(attribute.String("video.id", video.VideoID))

	// Best-effort: cleanup failures are logged inside and never block the
	// record deletion.
	h.cleaner.Remove(ctx, video)

	if err := h.store.DeleteVideo(ctx, video.VideoID); err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to delete video record",
			"videoId", video.VideoID,
			"error", err,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to delete video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validation functions

func validateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if len(filename) > MaxFilenameLength {
		return models.ErrFilenameTooLong
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: allowed extensions are mp4, mov, avi, mkv, webm", models.ErrInvalidFileType)
	}

	return nil
}

func validateContentType(contentType string) error {
	if contentType == "" {
		return errors.New("content type is required")
	}
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: %s", models.ErrInvalidContentType, contentType)
	}
	return nil
}

func validateS3Key(key, videoID string) error {
	decodedKey, err := url.PathUnescape(key)
	if err != nil {
		return fmt.Errorf("%w: invalid URL encoding", models.ErrInvalidKeyFormat)
	}

	if strings.Contains(decodedKey, "..") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: path traversal not allowed", models.ErrInvalidKeyFormat)
	}

	expectedPrefix := fmt.Sprintf("uploads/%s", videoID)
	if !strings.HasPrefix(key, expectedPrefix) {
		return fmt.Errorf("%w: key must start with %s", models.ErrInvalidKeyFormat, expectedPrefix)
	}

	ext := strings.ToLower(filepath.Ext(key))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: invalid extension in key", models.ErrInvalidKeyFormat)
	}

	return nil
}
