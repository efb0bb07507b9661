// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sentinel

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tawfig2020/ArchLensyst-sub001/pkg/validation"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/impact"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/index"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/scan"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/telemetry"
)

const requestIDKey = "request_id"

// Handlers contains the HTTP handlers for the sentinel service.
type Handlers struct {
	svc          *Service
	logger       *slog.Logger
	allowedRoots []string
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithAllowedRoots restricts index requests by root to directories inside
// one of roots. Relative and empty entries are ignored. With no usable
// entry any absolute root is accepted.
func WithAllowedRoots(roots []string) HandlerOption {
	return func(h *Handlers) {
		h.allowedRoots = h.allowedRoots[:0]
		for _, r := range roots {
			r = strings.TrimSpace(r)
			if r == "" || !filepath.IsAbs(r) {
				continue
			}
			h.allowedRoots = append(h.allowedRoots, resolvePath(r))
		}
	}
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, opts ...HandlerOption) *Handlers {
	h := &Handlers{svc: svc, logger: svc.logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// rootAllowed reports whether root lies inside an allowed root.
func (h *Handlers) rootAllowed(root string) bool {
	if len(h.allowedRoots) == 0 {
		return true
	}
	root = resolvePath(root)
	for _, allowed := range h.allowedRoots {
		if root == allowed {
			return true
		}
		rel, err := filepath.Rel(allowed, root)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePath cleans p and follows symlinks when p exists.
func resolvePath(p string) string {
	p = filepath.Clean(p)
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	return p
}

// RequestID tags every request with an X-Request-ID, generating one
// when the client sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	id := c.GetString(requestIDKey)
	if id == "" {
		id = uuid.NewString()
		c.Header("X-Request-ID", id)
	}
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger)
	return logger.With(slog.String("request_id", id), slog.String("handler", handler))
}

func abort(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// statusFor maps service errors onto HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrProjectIDRequired):
		return http.StatusBadRequest, "PROJECT_ID_REQUIRED"
	case errors.Is(err, validation.ErrInvalidProjectID):
		return http.StatusBadRequest, "INVALID_PROJECT_ID"
	case errors.Is(err, ErrProjectNotIndexed):
		return http.StatusNotFound, "PROJECT_NOT_INDEXED"
	case errors.Is(err, ErrNoSource):
		return http.StatusBadRequest, "NO_SOURCE"
	case errors.Is(err, ErrRelativeRoot):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, ErrRootNotAllowed):
		return http.StatusForbidden, "ROOT_NOT_ALLOWED"
	case errors.Is(err, scan.ErrRootRequired), errors.Is(err, scan.ErrNotDirectory), errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, impact.ErrTargetNotFound):
		return http.StatusNotFound, "FILE_NOT_FOUND"
	case errors.Is(err, index.ErrIndexInProgress):
		return http.StatusConflict, "INDEX_IN_PROGRESS"
	case errors.Is(err, index.ErrIndexCancelled):
		return http.StatusServiceUnavailable, "INDEX_CANCELLED"
	case errors.Is(err, ErrSearchUnavailable):
		return http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// HandleIndex handles POST /v1/sentinel/projects/:projectId/index.
//
// Request Body:
//
//	IndexRequest
//
// Response:
//
//	200 OK: IndexResponse
//	400 Bad Request: Missing source or invalid root
//	403 Forbidden: Root outside the configured allowed roots
//	409 Conflict: An index run is already in progress for the project
func (h *Handlers) HandleIndex(c *gin.Context) {
	logger := h.requestLogger(c, "HandleIndex")
	projectID := c.Param("projectId")

	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	var (
		res index.Result
		err error
	)
	switch {
	case req.Root != "":
		if !filepath.IsAbs(req.Root) {
			err = ErrRelativeRoot
			break
		}
		if !h.rootAllowed(req.Root) {
			err = ErrRootNotAllowed
			break
		}
		res, err = h.svc.IndexRoot(c.Request.Context(), projectID, filepath.Clean(req.Root), nil)
	case len(req.Files) > 0:
		files := make([]*model.SourceFile, 0, len(req.Files))
		for _, in := range req.Files {
			files = append(files, model.NewSourceFile(in.Path, in.Content))
		}
		res, err = h.svc.IndexFiles(c.Request.Context(), projectID, files, nil)
	default:
		err = ErrNoSource
	}
	if err != nil {
		status, code := statusFor(err)
		logger.Warn("index failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
		abort(c, status, code, err)
		return
	}

	c.JSON(http.StatusOK, IndexResponse{
		ProjectID: projectID,
		Nodes:     res.Graph.Nodes,
		Links:     res.Graph.Links,
		Stats:     res.Stats,
	})
}

// HandleGraph handles GET /v1/sentinel/graph/dependencies/:projectId.
//
// Response:
//
//	200 OK: GraphResponse
//	404 Not Found: The project has not been indexed
func (h *Handlers) HandleGraph(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGraph")
	projectID := c.Param("projectId")

	g, err := h.svc.Graph(projectID)
	if err != nil {
		status, code := statusFor(err)
		logger.Debug("graph lookup failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
		abort(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, GraphResponse{Nodes: g.Nodes, Links: g.Links})
}

// HandleImpact handles POST /v1/sentinel/analysis/impact.
//
// Request Body:
//
//	ImpactRequest
//
// Response:
//
//	200 OK: ImpactResponse, also when the oracle was unavailable
//	404 Not Found: Unknown project or file
func (h *Handlers) HandleImpact(c *gin.Context) {
	logger := h.requestLogger(c, "HandleImpact")

	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	depth := -1
	if req.MaxDepth != nil {
		depth = *req.MaxDepth
	}
	res, err := h.svc.Impact(c.Request.Context(), req.ProjectID, req.FilePath, req.Content, depth)
	if err != nil {
		status, code := statusFor(err)
		logger.Warn("impact failed",
			slog.String("project_id", req.ProjectID),
			slog.String("file_path", req.FilePath),
			slog.String("error", err.Error()),
		)
		abort(c, status, code, err)
		return
	}

	logger.Info("impact analysed",
		slog.String("project_id", req.ProjectID),
		slog.String("file_path", req.FilePath),
		slog.Bool("safe", res.Analysis.Safe),
		slog.String("mode", string(res.Analysis.Mode)),
		slog.Int("blast_radius", len(res.BlastRadius.Paths)),
	)
	c.JSON(http.StatusOK, ImpactResponse{Analysis: res.Analysis, BlastRadius: res.BlastRadius})
}

// HandleSearch handles POST /v1/sentinel/search.
func (h *Handlers) HandleSearch(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSearch")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	results, err := h.svc.Search(c.Request.Context(), req.ProjectID, req.Query)
	if err != nil {
		status, code := statusFor(err)
		logger.Warn("search failed", slog.String("project_id", req.ProjectID), slog.String("error", err.Error()))
		abort(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Results: results})
}

// HandleRules handles GET /v1/sentinel/rules.
func (h *Handlers) HandleRules(c *gin.Context) {
	c.JSON(http.StatusOK, RulesResponse{Rules: h.svc.RuleEngine().Descriptors()})
}

// HandleHealth handles GET /v1/sentinel/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Projects: h.svc.Projects(),
	})
}
