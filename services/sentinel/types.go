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
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/impact"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/index"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// FileInput is one file supplied inline to an index request.
type FileInput struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// IndexRequest is the request for POST /v1/sentinel/projects/:projectId/index.
//
// Exactly one of Root and Files is used; Root wins when both are set.
type IndexRequest struct {
	// Root is a directory on the server to load.
	Root string `json:"root"`

	// Files are indexed as given.
	Files []FileInput `json:"files" binding:"omitempty,dive"`
}

// IndexResponse is the response for a completed index run.
type IndexResponse struct {
	ProjectID string                 `json:"projectId"`
	Nodes     []model.DependencyNode `json:"nodes"`
	Links     []model.DependencyLink `json:"links"`
	Stats     index.Stats            `json:"stats"`
}

// GraphResponse is the response for GET /v1/sentinel/graph/dependencies/:projectId.
type GraphResponse struct {
	Nodes []model.DependencyNode `json:"nodes"`
	Links []model.DependencyLink `json:"links"`
}

// ImpactRequest is the request for POST /v1/sentinel/analysis/impact.
type ImpactRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	FilePath  string `json:"filePath" binding:"required"`
	Content   string `json:"content"`

	// MaxDepth overrides the configured depth when set.
	MaxDepth *int `json:"maxDepth" binding:"omitempty,gte=0,lte=32"`
}

// ImpactResponse is the response for POST /v1/sentinel/analysis/impact.
type ImpactResponse struct {
	Analysis    model.ImpactAnalysis `json:"analysis"`
	BlastRadius impact.Radius        `json:"blastRadius"`
}

// SearchRequest is the request for POST /v1/sentinel/search.
type SearchRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	Query     string `json:"query" binding:"required"`
}

// SearchResponse is the response for POST /v1/sentinel/search.
type SearchResponse struct {
	Results []oracle.SearchResult `json:"results"`
}

// RulesResponse is the response for GET /v1/sentinel/rules.
type RulesResponse struct {
	Rules []rules.Descriptor `json:"rules"`
}

// HealthResponse is the response for GET /v1/sentinel/health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Projects []ProjectStatus `json:"projects"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`
}
