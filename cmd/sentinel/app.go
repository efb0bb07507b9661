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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/tawfig2020/ArchLensyst-sub001/pkg/logging"
	"github.com/tawfig2020/ArchLensyst-sub001/pkg/ux"
	"github.com/tawfig2020/ArchLensyst-sub001/pkg/validation"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/config"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/events"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/index"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/storage"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/telemetry"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg    config.Config
	log    *logging.Logger
	logger *slog.Logger
	out    *ux.Printer
	engine *rules.Engine
	svc    *sentinel.Service
	tel    *telemetry.Telemetry
	store  *storage.BadgerStore
}

// newApp loads configuration and wires the service. withMetrics keeps
// the configured metric exporter; other commands only export traces.
func newApp(ctx context.Context, withMetrics bool) (*app, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if jsonLogs {
		cfg.Logging.JSON = true
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg: cfg,
		log: logging.New(logging.Config{
			Level:   level,
			LogDir:  cfg.Logging.Dir,
			Service: cfg.Telemetry.ServiceName,
			JSON:    cfg.Logging.JSON,
		}),
		out: ux.NewPrinter(os.Stdout, ux.Mode(outputMode)),
	}
	a.logger = a.log.Slog()

	metricExporter := cfg.Telemetry.MetricExporter
	if !withMetrics {
		metricExporter = telemetry.ExporterNone
	}
	a.tel, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: sentinel.ServiceVersion,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: metricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
		Output:         os.Stderr,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.engine = rules.DefaultEngine()
	if path := cfg.Rules.CustomRulesFile; path != "" {
		n, err := a.engine.RegisterFile(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load custom rules: %w", err)
		}
		a.logger.Info("custom rules loaded", slog.String("file_path", path), slog.Int("count", n))
	}

	guard, err := oracle.New(ctx, cfg.Oracle.Settings(cfg.APIKey(os.LookupEnv)), a.engine, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init oracle: %w", err)
	}

	opts := []sentinel.ServiceOption{
		sentinel.WithOracle(guard),
		sentinel.WithRuleEngine(a.engine),
		sentinel.WithEvents(events.NewSlogSink(a.logger)),
		sentinel.WithLogger(a.logger),
	}
	if cfg.Storage.InMemory || cfg.Storage.Path != "" {
		sc := storage.DefaultConfig()
		if cfg.Storage.InMemory {
			sc = storage.InMemoryConfig()
		}
		sc.Path = cfg.Storage.Path
		sc.Logger = a.logger
		a.store, err = storage.Open(sc)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
		opts = append(opts, sentinel.WithArtifactStore(a.store))
	}

	a.svc = sentinel.NewService(sentinel.ServiceConfigFrom(cfg), opts...)
	return a, nil
}

// Close releases the store, flushes telemetry, and closes log files.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close artifact store", slog.String("error", err.Error()))
		}
	}
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}

// progress renders index progress on the printer.
func (a *app) progress() index.ProgressFunc {
	return func(p index.Progress) {
		a.out.Progress(p.Percent, p.Message)
	}
}

// indexRoot indexes root under projectID, or under root's sanitized
// base name when projectID is empty, and returns the ID used.
func (a *app) indexRoot(ctx context.Context, root, projectID string, showProgress bool) (string, index.Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", index.Result{}, err
	}
	if projectID == "" {
		projectID, err = validation.SanitizeProjectID(filepath.Base(abs))
		if err != nil {
			return "", index.Result{}, fmt.Errorf("derive project id from %s: %w (use --project)", abs, err)
		}
	}
	var onProgress index.ProgressFunc
	if showProgress {
		onProgress = a.progress()
	}
	res, err := a.svc.IndexRoot(ctx, projectID, abs, onProgress)
	return projectID, res, err
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
