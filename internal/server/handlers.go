package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/session"
)

// errKBDirForbidden rejects a request-supplied kb_dir outside the
// configured knowledge-base root.
var errKBDirForbidden = errors.New("kb_dir is outside the knowledge base root")

// Handlers exposes a session registry over HTTP.
type Handlers struct {
	registry  *session.Registry
	defaultKB string
	kbRoot    string // empty rejects every request-supplied kb_dir
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithKBRoot allows create requests to name knowledge-base directories
// under root. Relative kb_dir values are resolved against it.
func WithKBRoot(root string) HandlerOption {
	return func(h *Handlers) {
		if abs, err := filepath.Abs(root); err == nil {
			h.kbRoot = abs
		}
	}
}

// NewHandlers creates handlers for the given registry. defaultKB is the
// knowledge-base directory used when a create request names none.
func NewHandlers(registry *session.Registry, defaultKB string, opts ...HandlerOption) *Handlers {
	h := &Handlers{registry: registry, defaultKB: defaultKB}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// kbDir resolves the knowledge-base directory of a create request.
func (h *Handlers) kbDir(requested string) (string, error) {
	if requested == "" {
		return h.defaultKB, nil
	}
	if h.kbRoot == "" {
		return "", errKBDirForbidden
	}
	dir := filepath.Clean(requested)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(h.kbRoot, dir)
	}
	rel, err := filepath.Rel(h.kbRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errKBDirForbidden
	}
	return dir, nil
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	KBDir string `json:"kb_dir"`
}

// CreateSessionResponse is returned for a created session.
type CreateSessionResponse struct {
	ID       string `json:"id"`
	KBSource string `json:"kb_source"`
	KBHash   string `json:"kb_hash"`
}

// UpdateWMRequest is the body of PUT /v1/sessions/:id/wm.
type UpdateWMRequest struct {
	Items       []ir.WMItem `json:"items" binding:"dive"`
	ClearBefore bool        `json:"clear_before"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return slog.With("request_id", requestID, "handler", handler)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(h.registry.IDs())})
}

// HandleListSessions handles GET /v1/sessions.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.registry.IDs()})
}

// HandleCreateSession handles POST /v1/sessions.
//
// Response:
//
//	201 Created: CreateSessionResponse
//	400 Bad Request: malformed body or no knowledge base given
//	422 Unprocessable Entity: knowledge base failed to compile or validate
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	logger := requestLogger(c, "HandleCreateSession")

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}
	dir, err := h.kbDir(req.KBDir)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if dir == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "kb_dir is required", Code: "INVALID_REQUEST"})
		return
	}

	sess, err := h.registry.Create(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	sessionsActive.Inc()
	logger.Info("Session created", "session", sess.ID, "kb_source", dir)
	c.JSON(http.StatusCreated, CreateSessionResponse{ID: sess.ID, KBSource: sess.KBSource, KBHash: sess.KBHash})
}

// HandleDeleteSession handles DELETE /v1/sessions/:id.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	logger := requestLogger(c, "HandleDeleteSession")
	id := c.Param("id")
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, logger, err)
		return
	}
	sessionsActive.Dec()
	c.Status(http.StatusNoContent)
}

// HandleReset handles POST /v1/sessions/:id/reset.
func (h *Handlers) HandleReset(c *gin.Context) {
	logger := requestLogger(c, "HandleReset")
	id := c.Param("id")
	if err := h.registry.Reset(c.Request.Context(), id); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "tact": engine.NotStarted})
}

// HandleUpdateWM handles PUT /v1/sessions/:id/wm.
//
// Response:
//
//	204 No Content: all items applied
//	400 Bad Request: malformed body or a rejected item (nothing applied)
//	404 Not Found: unknown session
func (h *Handlers) HandleUpdateWM(c *gin.Context) {
	logger := requestLogger(c, "HandleUpdateWM")
	id := c.Param("id")

	var req UpdateWMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if err := h.registry.UpdateWM(id, req.Items, req.ClearBefore); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleProcessTact handles POST /v1/sessions/:id/tacts.
//
// Response:
//
//	200 OK: ir.TactResult
//	404 Not Found: unknown session
//	422 Unprocessable Entity: configuration or resolution error; the tact
//	    was rolled back
func (h *Handlers) HandleProcessTact(c *gin.Context) {
	logger := requestLogger(c, "HandleProcessTact")
	id := c.Param("id")

	res, err := h.registry.ProcessTact(c.Request.Context(), id)
	if err != nil {
		if res == nil && !errors.Is(err, session.ErrNotFound) {
			tactsTotal.WithLabelValues("aborted").Inc()
		}
		h.fail(c, logger, err)
		return
	}
	tactsTotal.WithLabelValues("committed").Inc()
	signifiedFacts.Observe(float64(len(res.Signified)))
	c.JSON(http.StatusOK, res)
}

// HandleTimeline handles GET /v1/sessions/:id/timeline.
func (h *Handlers) HandleTimeline(c *gin.Context) {
	logger := requestLogger(c, "HandleTimeline")
	snap, err := h.registry.Timeline(c.Param("id"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// errorStatus maps an error to an HTTP status and an error code.
func errorStatus(err error) (int, string) {
	var (
		re *engine.RuntimeError
		ce *compiler.CompileError
	)
	switch {
	case errors.Is(err, errKBDirForbidden):
		return http.StatusForbidden, "KB_DIR_FORBIDDEN"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, os.ErrNotExist):
		return http.StatusBadRequest, "KB_NOT_FOUND"
	case session.IsKBError(err):
		return http.StatusUnprocessableEntity, "INVALID_KB"
	case errors.As(err, &ce):
		return http.StatusUnprocessableEntity, "KB_COMPILE"
	case engine.IsInputError(err):
		return http.StatusBadRequest, string(engine.ErrCodeInvalidValue)
	case errors.As(err, &re):
		return http.StatusUnprocessableEntity, string(re.Code)
	}
	return http.StatusInternalServerError, "INTERNAL"
}
