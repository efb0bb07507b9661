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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1/sentinel endpoints on rg.
//
// Endpoints:
//
//	POST /v1/sentinel/projects/:projectId/index - Index a project
//	GET  /v1/sentinel/graph/dependencies/:projectId - Dependency graph
//	POST /v1/sentinel/analysis/impact - Validate a proposed change
//	POST /v1/sentinel/search - Semantic search over a project
//	GET  /v1/sentinel/rules - Registered rules
//	GET  /v1/sentinel/health - Health check
//
// Example:
//
//	svc := sentinel.NewService(sentinel.DefaultServiceConfig())
//	router := gin.New()
//	router.Use(sentinel.RequestID())
//	sentinel.RegisterRoutes(router.Group("/v1"), sentinel.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	s := rg.Group("/sentinel")
	{
		s.POST("/projects/:projectId/index", handlers.HandleIndex)
		s.GET("/graph/dependencies/:projectId", handlers.HandleGraph)
		s.POST("/analysis/impact", handlers.HandleImpact)
		s.POST("/search", handlers.HandleSearch)
		s.GET("/rules", handlers.HandleRules)
		s.GET("/health", handlers.HandleHealth)
	}
}
