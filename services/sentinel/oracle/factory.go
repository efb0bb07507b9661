// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// Provider names a backend.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Settings select and tune an oracle.
type Settings struct {
	Provider         Provider
	Model            string
	APIKey           string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// New builds the configured oracle wrapped in a Guard.
//
// # Inputs
//
//   - ctx: Used to construct remote clients.
//   - s: Provider and guard settings.
//   - engine: Rule engine for the static provider. Nil uses built-ins.
//   - logger: Logger for the guard and the LLM oracle. Nil uses default.
//
// # Outputs
//
//   - *Guard: The guarded oracle.
//   - error: ErrUnknownProvider, ErrMissingAPIKey, or a client error.
func New(ctx context.Context, s Settings, engine *rules.Engine, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Oracle
	ratePerSecond := s.RatePerSecond
	switch s.Provider {
	case "", ProviderStatic:
		inner = NewStatic(engine)
		// Local; only remote providers are rate limited.
		ratePerSecond = 0
	case ProviderOpenAI:
		b, err := NewOpenAIBackend(s.APIKey, s.Model)
		if err != nil {
			return nil, err
		}
		inner = NewLLM(b, logger)
	case ProviderGemini:
		b, err := NewGeminiBackend(ctx, s.APIKey, s.Model)
		if err != nil {
			return nil, err
		}
		inner = NewLLM(b, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}

	logger.Info("oracle configured",
		slog.String("provider", string(s.Provider)),
		slog.String("model", s.Model),
		slog.Duration("timeout", s.Timeout),
	)
	return NewGuard(inner,
		WithTimeout(s.Timeout),
		WithRateLimit(ratePerSecond, s.Burst),
		WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: s.FailureThreshold,
			SuccessThreshold: s.SuccessThreshold,
			OpenTimeout:      s.OpenTimeout,
		}),
		WithGuardLogger(logger),
	), nil
}
