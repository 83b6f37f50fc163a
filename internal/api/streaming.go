package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vodflow/vodflow/internal/metrics"
	"github.com/vodflow/vodflow/internal/transcoder"
	"github.com/vodflow/vodflow/pkg/models"
)

// Content types for HLS delivery
const (
	ContentTypeManifest = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
)

// segmentNamePattern matches the zero-padded segment names the encoder
// produces. Anything else is rejected before touching the filesystem.
var segmentNamePattern = regexp.MustCompile(`^\d{3}\.ts$`)

// resolveRendition validates the video and resolution parts of a streaming
// request and returns the rendition directory. On failure it writes the
// response itself and returns ok=false.
func (h *Handlers) resolveRendition(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	ctx := r.Context()

	video, err := h.store.GetVideo(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			metrics.StreamRequests.WithLabelValues(kind, "not_found").Inc()
			h.writeError(ctx, w, http.StatusNotFound, "Video not found")
			return "", false
		}
		h.log.ErrorContext(ctx, "Failed to get video", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve video")
		return "", false
	}

	resolution := r.PathValue("resolution")
	if transcoder.RungByLabel(h.ladder, resolution) == nil {
		metrics.StreamRequests.WithLabelValues(kind, "invalid_resolution").Inc()
		h.writeError(ctx, w, http.StatusNotFound, "Invalid resolution")
		return "", false
	}

	if video.HLSDirectory == "" {
		// Record exists but the pipeline has not published anything yet.
		metrics.StreamRequests.WithLabelValues(kind, "not_ready").Inc()
		if kind == "manifest" {
			h.writeError(ctx, w, http.StatusNotFound, "Manifest not found")
		} else {
			h.writeError(ctx, w, http.StatusNotFound, "Segment not found")
		}
		return "", false
	}

	return filepath.Join(video.HLSDirectory, resolution), true
}

// ManifestHandler serves the media playlist for one rendition.
func (h *Handlers) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	renditionDir, ok := h.resolveRendition(w, r, "manifest")
	if !ok {
		return
	}

	manifestPath := filepath.Join(renditionDir, transcoder.ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StreamRequests.WithLabelValues("manifest", "missing").Inc()
			h.writeError(ctx, w, http.StatusNotFound, "Manifest not found")
			return
		}
		h.log.ErrorContext(ctx, "Failed to read manifest", "path", manifestPath, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read manifest")
		return
	}

	metrics.StreamRequests.WithLabelValues("manifest", "ok").Inc()
	w.Header().Set("Content-Type", ContentTypeManifest)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to write manifest response", "error", err)
	}
}

// SegmentHandler serves one transport-stream segment. The segment name is
// validated against the encoder's naming scheme before any filesystem
// lookup, so crafted names never reach the disk.
func (h *Handlers) SegmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	segment := r.PathValue("segment")
	if !segmentNamePattern.MatchString(segment) {
		metrics.StreamRequests.WithLabelValues("segment", "invalid_name").Inc()
		h.writeError(ctx, w, http.StatusNotFound, "Invalid segment name")
		return
	}

	renditionDir, ok := h.resolveRendition(w, r, "segment")
	if !ok {
		return
	}

	segmentPath := filepath.Join(renditionDir, segment)
	f, err := os.Open(segmentPath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StreamRequests.WithLabelValues("segment", "missing").Inc()
			h.writeError(ctx, w, http.StatusNotFound, "Segment not found")
			return
		}
		h.log.ErrorContext(ctx, "Failed to open segment", "path", segmentPath, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read segment")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to stat segment", "path", segmentPath, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to read segment")
		return
	}

	metrics.StreamRequests.WithLabelValues("segment", "ok").Inc()
	w.Header().Set("Content-Type", ContentTypeSegment)
	// ServeContent handles Range requests, which players rely on.
	http.ServeContent(w, r, segment, info.ModTime(), f)
}
