// Package handler provides the HTTP handlers for document question
// answering.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/pkg/errors"
)

// queryTimeout bounds non-streaming query handling.
const queryTimeout = 60 * time.Second

// Handler handles document QA HTTP requests.
type Handler struct {
	service *biz.Service
}

// New creates a Handler.
func New(service *biz.Service) *Handler {
	return &Handler{service: service}
}

// Upload handles POST /documents/upload. The document arrives as the
// "file" part of a multipart form.
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("missing file in upload"), nil)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrLoadFailed.WithCause(err), nil)
		return
	}
	defer f.Close()

	result, err := h.service.IngestUpload(c.Request.Context(), f, fileHeader.Filename)
	if err != nil {
		logger.Errorw("Upload failed", "filename", fileHeader.Filename, "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"filename":       fileHeader.Filename,
		"chunks_created": result.ChunksCreated,
		"document_ids":   result.DocumentIDs,
	})
}

// LoadRequest is the body for POST /documents/load.
type LoadRequest struct {
	Directory string `json:"directory" binding:"required"`
}

// Load handles POST /documents/load, ingesting every supported document
// in a server-local directory.
func (h *Handler) Load(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	files, result, err := h.service.IngestDir(c.Request.Context(), req.Directory)
	if err != nil {
		logger.Errorw("Directory load failed", "directory", req.Directory, "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"files_loaded":   files,
		"chunks_created": result.ChunksCreated,
		"document_ids":   result.DocumentIDs,
	})
}

// Info handles GET /documents/info.
func (h *Handler) Info(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"collection": stats,
		"metrics":    metrics.Get().Stats(),
	})
}

// DropCollection handles DELETE /documents/collection.
func (h *Handler) DropCollection(c *gin.Context) {
	if err := h.service.DropCollection(c.Request.Context()); err != nil {
		logger.Errorw("Drop collection failed", "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{"dropped": true})
}

// QueryRequest is the body for POST /query.
type QueryRequest struct {
	Question    string `json:"question" binding:"required"`
	WithSources bool   `json:"with_sources"`
	Evaluate    bool   `json:"evaluate"`
}

// Query handles POST /query. The flags select the answer mode: plain,
// with sources, or with sources and evaluation.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	var (
		answer interface{}
		err    error
	)
	switch {
	case req.Evaluate:
		answer, err = h.service.AnswerWithEvaluation(ctx, req.Question)
	case req.WithSources:
		answer, err = h.service.AnswerWithSources(ctx, req.Question)
	default:
		answer, err = h.service.Answer(ctx, req.Question)
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteResponse(c, errors.ErrQueryTimeout, nil)
			return
		}
		logger.Errorw("Query failed", "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, answer)
}

// StreamRequest is the body for POST /query/stream.
type StreamRequest struct {
	Question string `json:"question" binding:"required"`
}

// QueryStream handles POST /query/stream. Answer fragments are written
// and flushed as they arrive; a client disconnect cancels generation.
func (h *Handler) QueryStream(c *gin.Context) {
	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	fragments, errs, err := h.service.AnswerStream(c.Request.Context(), req.Question)
	if err != nil {
		logger.Errorw("Stream query failed", "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	clientGone := c.Request.Context().Done()

	for {
		select {
		case frag, ok := <-fragments:
			if !ok {
				if err := <-errs; err != nil {
					logger.Warnw("Stream ended with error", "error", err)
				}
				return
			}
			if _, err := c.Writer.WriteString(frag); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-clientGone:
			logger.Infow("Client disconnected during stream")
			return
		}
	}
}

// SearchRequest is the body for POST /query/search.
type SearchRequest struct {
	Question string `json:"question" binding:"required"`
	K        int    `json:"k"`
}

// QuerySearch handles POST /query/search, returning raw matches without
// generation.
func (h *Handler) QuerySearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	matches, err := h.service.Search(ctx, req.Question, req.K)
	if err != nil {
		logger.Errorw("Search failed", "error", err)
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. The service is ready once the
// collection exists and is loaded.
func (h *Handler) Ready(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
