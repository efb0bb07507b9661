// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the sentinel configuration.
//
// Configuration is read from YAML over Default(), then SENTINEL_*
// environment variables override individual fields, and the result is
// validated with struct tags.
//
//	index:
//	  batch_size: 3
//	impact:
//	  max_depth: 2
//	  oracle_timeout: 30s
//	oracle:
//	  provider: gemini
//	  api_key_env: GEMINI_API_KEY
package config

import (
	"time"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
)

// Config is the root configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Impact    ImpactConfig    `yaml:"impact"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Storage   StorageConfig   `yaml:"storage"`
	Rules     RulesConfig     `yaml:"rules"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// IndexConfig tunes the indexing orchestrator.
type IndexConfig struct {
	// BatchSize is the number of files processed concurrently.
	BatchSize int `yaml:"batch_size" validate:"gte=1,lte=256"`

	// StructuralFallback attaches structural results when enrichment
	// fails instead of leaving the file unchanged.
	StructuralFallback bool `yaml:"structural_fallback"`

	// MaxCacheEntries caps each content cache. 0 means unbounded.
	MaxCacheEntries int `yaml:"max_cache_entries" validate:"gte=0"`
}

// ImpactConfig tunes impact analysis.
type ImpactConfig struct {
	MaxDepth      int           `yaml:"max_depth" validate:"gte=0,lte=32"`
	DetectCycles  bool          `yaml:"detect_cycles"`
	OracleTimeout time.Duration `yaml:"oracle_timeout" validate:"gte=0"`
}

// OracleConfig selects and guards the semantic oracle.
type OracleConfig struct {
	Provider string `yaml:"provider" validate:"oneof=static openai gemini"`
	Model    string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" validate:"required_unless=Provider static"`

	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	RatePerSecond    float64       `yaml:"rate_per_second" validate:"gte=0"`
	Burst            int           `yaml:"burst" validate:"gte=0"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=1"`
	SuccessThreshold int           `yaml:"success_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// Settings converts the section to oracle settings with the given key.
func (c OracleConfig) Settings(apiKey string) oracle.Settings {
	return oracle.Settings{
		Provider:         oracle.Provider(c.Provider),
		Model:            c.Model,
		APIKey:           apiKey,
		Timeout:          c.Timeout,
		RatePerSecond:    c.RatePerSecond,
		Burst:            c.Burst,
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		OpenTimeout:      c.OpenTimeout,
	}
}

// StorageConfig configures the artifact store.
type StorageConfig struct {
	// Path is the BadgerDB directory. Empty disables persistence unless
	// InMemory is set.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// RulesConfig configures the rule engine.
type RulesConfig struct {
	// CustomRulesFile is an optional YAML file of additional rules.
	CustomRulesFile string `yaml:"custom_rules_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// AllowedRoots limits the directories the HTTP index endpoint may
	// scan. Empty allows any absolute path.
	AllowedRoots []string `yaml:"allowed_roots" validate:"dive,required"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig configures OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// Default returns the reference configuration: batch size 3, depth 2,
// 30s oracle timeouts, the offline static oracle, no persistence.
func Default() Config {
	return Config{
		Index: IndexConfig{
			BatchSize: 3,
		},
		Impact: ImpactConfig{
			MaxDepth:      2,
			DetectCycles:  true,
			OracleTimeout: 30 * time.Second,
		},
		Oracle: OracleConfig{
			Provider:         string(oracle.ProviderStatic),
			Timeout:          30 * time.Second,
			RatePerSecond:    5,
			Burst:            5,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeout:      30 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "archlens-sentinel",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}
