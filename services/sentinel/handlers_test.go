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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	return NewRouter(svc, "sentinel-test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	}))
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func indexBody() IndexRequest {
	var req IndexRequest
	for _, f := range chain() {
		req.Files = append(req.Files, FileInput{Path: f.Path, Content: f.Content})
	}
	return req
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(newTestService())

	w := do(t, router, http.MethodGet, "/v1/sentinel/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Empty(t, resp.Projects)
}

func TestHandlers_RequestIDIsEchoed(t *testing.T) {
	router := setupTestRouter(newTestService())

	req, _ := http.NewRequest(http.MethodGet, "/v1/sentinel/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleIndexAndGraph(t *testing.T) {
	router := setupTestRouter(newTestService(withStatic()))

	w := do(t, router, http.MethodGet, "/v1/sentinel/graph/dependencies/p1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROJECT_NOT_INDEXED", decode[ErrorResponse](t, w).Code)

	w = do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", indexBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	idx := decode[IndexResponse](t, w)
	assert.Equal(t, "p1", idx.ProjectID)
	assert.Len(t, idx.Nodes, 3)
	assert.Len(t, idx.Links, 2)
	assert.Equal(t, 3, idx.Stats.Files)

	w = do(t, router, http.MethodGet, "/v1/sentinel/graph/dependencies/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	g := decode[GraphResponse](t, w)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Links, 2)
}

func TestHandlers_HandleIndex_InvalidRequest(t *testing.T) {
	router := setupTestRouter(newTestService())

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"malformed json", "{", http.StatusBadRequest, "INVALID_REQUEST"},
		{"no source", "{}", http.StatusBadRequest, "NO_SOURCE"},
		{"relative root", `{"root": "relative/path"}`, http.StatusBadRequest, "INVALID_PATH"},
		{"missing directory", `{"root": "/definitely/not/here"}`, http.StatusBadRequest, "INVALID_PATH"},
		{"file without path", `{"files": [{"content": "x"}]}`, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlers_HandleIndex_AllowedRoots(t *testing.T) {
	allowed := t.TempDir()
	inside := filepath.Join(allowed, "app")
	outside := t.TempDir()
	for _, dir := range []string{inside, outside} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "c.ts"), []byte("export const c = 1;\n"), 0o644))
	}

	router := NewRouter(newTestService(), "sentinel-test", nil, WithAllowedRoots([]string{"", "relative", allowed}))

	w := do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", IndexRequest{Root: inside})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/v1/sentinel/projects/p2/index", IndexRequest{Root: outside})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "ROOT_NOT_ALLOWED", decode[ErrorResponse](t, w).Code)

	escape := allowed + string(filepath.Separator) + ".." + string(filepath.Separator) + filepath.Base(outside)
	w = do(t, router, http.MethodPost, "/v1/sentinel/projects/p3/index", IndexRequest{Root: escape})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestHandlers_HandleIndex_InvalidProjectID(t *testing.T) {
	router := setupTestRouter(newTestService())

	w := do(t, router, http.MethodPost, "/v1/sentinel/projects/Not.Valid/index", indexBody())
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "INVALID_PROJECT_ID", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_HandleImpact(t *testing.T) {
	router := setupTestRouter(newTestService(withStatic()))
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", indexBody()).Code)

	depth := 1
	w := do(t, router, http.MethodPost, "/v1/sentinel/analysis/impact", ImpactRequest{
		ProjectID: "p1",
		FilePath:  "src/c.ts",
		Content:   "export const c = 2;\n",
		MaxDepth:  &depth,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ImpactResponse](t, w)
	assert.Equal(t, []string{"src/b.ts", "src/c.ts"}, resp.BlastRadius.Paths)
	assert.True(t, resp.Analysis.Safe)
	assert.Equal(t, model.AnalysisModeFull, resp.Analysis.Mode)
	require.NotNil(t, resp.Analysis.TestValidation)
}

func TestHandlers_HandleImpact_Errors(t *testing.T) {
	router := setupTestRouter(newTestService())
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", indexBody()).Code)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing file path", `{"projectId": "p1"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"negative depth", `{"projectId": "p1", "filePath": "src/c.ts", "maxDepth": -1}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown project", `{"projectId": "p2", "filePath": "src/c.ts"}`, http.StatusNotFound, "PROJECT_NOT_INDEXED"},
		{"unknown file", `{"projectId": "p1", "filePath": "src/x.ts"}`, http.StatusNotFound, "FILE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/sentinel/analysis/impact", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandlers_HandleSearch(t *testing.T) {
	router := setupTestRouter(newTestService(withStatic()))
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", IndexRequest{
		Files: []FileInput{
			{Path: "src/auth/login.ts", Content: "export const login = 1;\n"},
			{Path: "src/cart.ts", Content: "export const cart = 2;\n"},
		},
	}).Code)

	w := do(t, router, http.MethodPost, "/v1/sentinel/search", SearchRequest{ProjectID: "p1", Query: "cart"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SearchResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "src/cart.ts", resp.Results[0].FilePath)

	w = do(t, router, http.MethodPost, "/v1/sentinel/search", `{"projectId": "p1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleSearch_Unavailable(t *testing.T) {
	router := setupTestRouter(newTestService())
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/v1/sentinel/projects/p1/index", indexBody()).Code)

	w := do(t, router, http.MethodPost, "/v1/sentinel/search", SearchRequest{ProjectID: "p1", Query: "cart"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SEARCH_UNAVAILABLE", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_HandleRules(t *testing.T) {
	router := setupTestRouter(newTestService())

	w := do(t, router, http.MethodGet, "/v1/sentinel/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RulesResponse](t, w)
	require.Len(t, resp.Rules, 12)
	assert.Equal(t, "ARCH-001", resp.Rules[0].ID)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	w := do(t, setupTestRouter(newTestService()), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")

	w = do(t, NewRouter(newTestService(), "sentinel-test", nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
