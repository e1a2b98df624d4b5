// Package handlers exposes the share API: POST /api/save stores a markdown
// document under a fresh short ID, GET /api/load returns it. Every error is
// converted to a uniform {success:false, error} envelope with a fixed
// user-safe message; full detail plus client address and requested ID goes to
// the operator log.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mdreader/mdreader/internal/ratelimit"
	"github.com/mdreader/mdreader/internal/store"
	"github.com/mdreader/mdreader/pkg/logger"
	"github.com/mdreader/mdreader/pkg/metrics"
)

// RecordMirror copies a committed record's artifacts off-host.
// Satisfied by *mirror.Mirror.
type RecordMirror interface {
	UploadRecord(ctx context.Context, id string, content, metadata []byte) error
}

// ShareHandler wires the document store, the per-client save quota and the
// optional off-host mirror into the two share endpoints.
type ShareHandler struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	baseURL string
	mirror  RecordMirror
}

// NewShareHandler returns a handler; mir may be nil when mirroring is off.
func NewShareHandler(st *store.Store, lim *ratelimit.Limiter, baseURL string, mir RecordMirror) *ShareHandler {
	return &ShareHandler{store: st, limiter: lim, baseURL: baseURL, mirror: mir}
}

// Register attaches the share routes to the engine.
func (h *ShareHandler) Register(r *gin.Engine) {
	r.POST("/api/save", h.Save)
	r.GET("/api/load", h.Load)
}

// MethodNotAllowed is the router's 405 fallback (requires HandleMethodNotAllowed).
func MethodNotAllowed(c *gin.Context) {
	fail(c, http.StatusMethodNotAllowed, "Method not allowed")
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// Save handles POST /api/save. The quota check runs before any other side
// effect; an admitted slot is consumed even when validation fails afterwards.
func (h *ShareHandler) Save(c *gin.Context) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = "unknown"
	}

	if err := h.limiter.Admit(c.Request.Context(), ratelimit.ClientKey(clientIP)); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			logger.Infof("save rejected by quota: ip=%s", clientIP)
			metrics.RateLimitRejected.WithLabelValues("quota").Inc()
			fail(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		logger.Errorf("quota check failed: ip=%s err=%v", clientIP, err)
		// a limiter-backend fault is not a save attempt; keep it out of
		// the save outcome metrics
		metrics.RateLimitRejected.WithLabelValues("quota_error").Inc()
		fail(c, http.StatusInternalServerError, "Rate limit check failed")
		return
	}
	metrics.RateLimitAllowed.WithLabelValues("quota").Inc()

	// bound the buffered body; escaped JSON can exceed the raw content size,
	// so allow headroom above the content cap before rejecting outright
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.store.MaxContentBytes()*2+4096)

	var req struct {
		Content any    `json:"content"`
		Title   string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.Infof("save body over limit: ip=%s", clientIP)
			metrics.DocumentsSaved.WithLabelValues("invalid").Inc()
			fail(c, http.StatusBadRequest, "Content exceeds maximum size of 5MB")
			return
		}
		logger.Infof("save with malformed body: ip=%s err=%v", clientIP, err)
		metrics.DocumentsSaved.WithLabelValues("invalid").Inc()
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == nil {
		metrics.DocumentsSaved.WithLabelValues("invalid").Inc()
		fail(c, http.StatusBadRequest, "No content provided")
		return
	}
	content, ok := req.Content.(string)
	if !ok {
		metrics.DocumentsSaved.WithLabelValues("invalid").Inc()
		fail(c, http.StatusBadRequest, "Content must be a string")
		return
	}

	rec, err := h.store.Save(content, req.Title)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrContentTooLarge):
			logger.Infof("save over size limit: ip=%s size=%d", clientIP, len(content))
			metrics.DocumentsSaved.WithLabelValues("invalid").Inc()
			fail(c, http.StatusBadRequest, "Content exceeds maximum size of 5MB")
		case errors.Is(err, store.ErrIDExhausted):
			logger.Errorf("id generation exhausted: ip=%s err=%v", clientIP, err)
			metrics.DocumentsSaved.WithLabelValues("error").Inc()
			fail(c, http.StatusInternalServerError, "Failed to generate unique document ID")
		default:
			logger.Errorf("save failed: ip=%s err=%v", clientIP, err)
			metrics.DocumentsSaved.WithLabelValues("error").Inc()
			fail(c, http.StatusInternalServerError, "Failed to save document")
		}
		return
	}

	metrics.DocumentsSaved.WithLabelValues("ok").Inc()
	metrics.DocumentBytesSaved.Add(float64(rec.Size))
	logger.Infof("saved document: id=%s size=%d ip=%s", rec.ID, rec.Size, clientIP)

	if h.mirror != nil {
		if metaBytes, merr := json.Marshal(rec.Metadata); merr != nil {
			logger.Warnf("mirror metadata marshal failed: id=%s err=%v", rec.ID, merr)
		} else {
			go h.mirrorRecord(rec.ID, []byte(rec.Content), metaBytes)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      rec.ID,
		"slug":    rec.Slug,
		"title":   rec.Title,
		"created": rec.Created,
		"url":     h.shareURL(rec.Slug, rec.ID),
	})
}

// Load handles GET /api/load?id=<idOrSlugID>.
func (h *ShareHandler) Load(c *gin.Context) {
	clientIP := c.ClientIP()
	param := c.Query("id")

	rec, err := h.store.Load(param)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMissingID):
			metrics.DocumentsLoaded.WithLabelValues("invalid").Inc()
			fail(c, http.StatusBadRequest, "No document ID provided")
		case errors.Is(err, store.ErrInvalidID):
			logger.Infof("load with invalid id: ip=%s id=%q", clientIP, param)
			metrics.DocumentsLoaded.WithLabelValues("invalid").Inc()
			fail(c, http.StatusBadRequest, "Invalid document ID format")
		case errors.Is(err, store.ErrForbiddenPath):
			logger.Errorf("load path escape: ip=%s id=%q", clientIP, param)
			metrics.DocumentsLoaded.WithLabelValues("forbidden").Inc()
			fail(c, http.StatusForbidden, "Invalid file path")
		case errors.Is(err, store.ErrNotFound):
			metrics.DocumentsLoaded.WithLabelValues("not_found").Inc()
			fail(c, http.StatusNotFound, "Document not found")
		default:
			logger.Errorf("load failed: ip=%s id=%q err=%v", clientIP, param, err)
			metrics.DocumentsLoaded.WithLabelValues("error").Inc()
			fail(c, http.StatusInternalServerError, "Failed to load document")
		}
		return
	}

	metrics.DocumentsLoaded.WithLabelValues("ok").Inc()

	var created any
	if !rec.Created.IsZero() {
		created = rec.Created
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      rec.ID,
		"content": rec.Content,
		"title":   rec.Title,
		"created": created,
		"size":    rec.Size,
	})
}

// mirrorRecord runs after the save response is sent; a failed upload is an
// operator concern, never a client error.
func (h *ShareHandler) mirrorRecord(id string, content, metadata []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.mirror.UploadRecord(ctx, id, content, metadata); err != nil {
		logger.Warnf("record mirror failed: %v", err)
	}
}

// shareURL builds the shareable page URL embedding ?doc=<slug-id> (or the
// bare ID when the slug is empty).
func (h *ShareHandler) shareURL(slug, id string) string {
	return strings.TrimRight(h.baseURL, "/") + "/?doc=" + store.DocParam(slug, id)
}
