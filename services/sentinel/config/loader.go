// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration fails to parse
// or validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENTINEL_"

var validate = validator.New()

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML file at path over Default(), applies environment
// overrides from the process environment, and validates the result.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default(). Unknown keys are rejected. The
// result is not validated.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// APIKey resolves the oracle API key from the environment variable named
// by Oracle.APIKeyEnv.
func (c Config) APIKey(lookup LookupFunc) string {
	if c.Oracle.APIKeyEnv == "" || lookup == nil {
		return ""
	}
	v, _ := lookup(c.Oracle.APIKeyEnv)
	return strings.TrimSpace(v)
}

// envBinding maps one SENTINEL_* variable to a field setter.
type envBinding struct {
	key string
	set func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"INDEX_BATCH_SIZE", func(c *Config, v string) error { return setInt(&c.Index.BatchSize, v) }},
	{"INDEX_STRUCTURAL_FALLBACK", func(c *Config, v string) error { return setBool(&c.Index.StructuralFallback, v) }},
	{"INDEX_MAX_CACHE_ENTRIES", func(c *Config, v string) error { return setInt(&c.Index.MaxCacheEntries, v) }},
	{"IMPACT_MAX_DEPTH", func(c *Config, v string) error { return setInt(&c.Impact.MaxDepth, v) }},
	{"IMPACT_DETECT_CYCLES", func(c *Config, v string) error { return setBool(&c.Impact.DetectCycles, v) }},
	{"IMPACT_ORACLE_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Impact.OracleTimeout, v) }},
	{"ORACLE_PROVIDER", func(c *Config, v string) error { c.Oracle.Provider = strings.ToLower(v); return nil }},
	{"ORACLE_MODEL", func(c *Config, v string) error { c.Oracle.Model = v; return nil }},
	{"ORACLE_API_KEY_ENV", func(c *Config, v string) error { c.Oracle.APIKeyEnv = v; return nil }},
	{"ORACLE_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Oracle.Timeout, v) }},
	{"STORAGE_PATH", func(c *Config, v string) error { c.Storage.Path = v; return nil }},
	{"STORAGE_IN_MEMORY", func(c *Config, v string) error { return setBool(&c.Storage.InMemory, v) }},
	{"RULES_FILE", func(c *Config, v string) error { c.Rules.CustomRulesFile = v; return nil }},
	{"SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"SERVER_ALLOWED_ROOTS", func(c *Config, v string) error { c.Server.AllowedRoots = filepath.SplitList(v); return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = strings.ToLower(v); return nil }},
	{"LOG_JSON", func(c *Config, v string) error { return setBool(&c.Logging.JSON, v) }},
	{"LOG_DIR", func(c *Config, v string) error { c.Logging.Dir = v; return nil }},
	{"TRACE_EXPORTER", func(c *Config, v string) error { c.Telemetry.TraceExporter = strings.ToLower(v); return nil }},
	{"METRIC_EXPORTER", func(c *Config, v string) error { c.Telemetry.MetricExporter = strings.ToLower(v); return nil }},
	{"OTLP_ENDPOINT", func(c *Config, v string) error { c.Telemetry.OTLPEndpoint = v; return nil }},
}

// ApplyEnv overrides fields from SENTINEL_* variables found by lookup.
// Empty values are ignored.
func ApplyEnv(c *Config, lookup LookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, EnvPrefix, b.key, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
