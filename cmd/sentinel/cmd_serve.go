// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr  string
	serveIndex []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sentinel HTTP API",
	Long: `Serve exposes the sentinel service over HTTP under /v1/sentinel, with
Prometheus metrics on /metrics when telemetry.metric_exporter is
prometheus.

Endpoints:
  POST /v1/sentinel/projects/:projectId/index
  GET  /v1/sentinel/graph/dependencies/:projectId
  POST /v1/sentinel/analysis/impact
  POST /v1/sentinel/search
  GET  /v1/sentinel/rules
  GET  /v1/sentinel/health

Examples:
  sentinel serve
  sentinel serve --addr 0.0.0.0:8089 --index ./web --index ./api`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default: server.addr from config)")
	serveCmd.Flags().StringSliceVar(&serveIndex, "index", nil,
		"Directories to index at startup, one project per directory")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, root := range serveIndex {
		projectID, res, err := a.indexRoot(ctx, root, "", false)
		if err != nil {
			return fmt.Errorf("index %s: %w", root, err)
		}
		a.logger.Info("startup index complete",
			slog.String("project_id", projectID),
			slog.Int("files", res.Stats.Files),
		)
	}

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	router := sentinel.NewRouter(a.svc, a.cfg.Telemetry.ServiceName, a.tel.MetricsHandler(),
		sentinel.WithAllowedRoots(a.cfg.Server.AllowedRoots))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("sentinel server listening", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.out.Success("Serving on http://" + addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down sentinel server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
