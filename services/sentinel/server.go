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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the HTTP router for svc.
//
// # Inputs
//
//   - svc: The service to expose.
//   - serviceName: Span service name for otelgin.
//   - metrics: Optional handler mounted at GET /metrics. Nil skips it.
//   - opts: Handler options, such as WithAllowedRoots.
//
// # Outputs
//
//   - *gin.Engine: Recovery, tracing, request IDs, and access logging
//     applied to every route.
func NewRouter(svc *Service, serviceName string, metrics http.Handler, opts ...HandlerOption) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(RequestID())
	router.Use(accessLog(svc.logger))

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc, opts...))
	return router
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request served",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}
