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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 30 * time.Second

var meter = otel.Meter("archlens.sentinel.oracle")

var (
	oracleCalls    metric.Int64Counter
	oracleDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		oracleCalls, err = meter.Int64Counter(
			"sentinel_oracle_calls_total",
			metric.WithDescription("Total number of oracle calls by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		oracleDuration, err = meter.Float64Histogram(
			"sentinel_oracle_call_duration_seconds",
			metric.WithDescription("Duration of oracle calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCall(ctx context.Context, op, outcome string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	oracleCalls.Add(ctx, 1, attrs)
	oracleDuration.Record(ctx, d.Seconds(), attrs)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTimeout sets the per-call timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit admits at most perSecond calls per second with the given
// burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) GuardOption {
	return func(g *Guard) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCircuitBreaker replaces the default circuit breaker configuration.
func WithCircuitBreaker(cfg CircuitBreakerConfig) GuardOption {
	return func(g *Guard) {
		g.breaker = NewCircuitBreaker(cfg)
	}
}

// WithGuardLogger sets the guard's logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// Guard wraps an Oracle so that every call is rate limited, bounded by a
// timeout, passed through a circuit breaker, and shielded from panics.
// Every failure surfaces as an error wrapping ErrOracleUnavailable.
//
// # Thread Safety
//
// Guard is safe for concurrent use if the wrapped Oracle is.
type Guard struct {
	inner   Oracle
	breaker *CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewGuard wraps inner.
//
// # Inputs
//
//   - inner: The oracle to protect. Must not be nil.
//   - opts: Timeout, rate limit, breaker, and logger options.
//
// # Outputs
//
//   - *Guard: Ready to use. Defaults to DefaultTimeout, the default
//     breaker config, and no rate limit.
func NewGuard(inner Oracle, opts ...GuardOption) *Guard {
	g := &Guard{
		inner:   inner,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the breaker state.
func (g *Guard) State() CircuitState {
	return g.breaker.State()
}

// guarded runs one inner call through the limiter, the breaker, and
// Bounded. The value is only read from Bounded's result, so an abandoned
// call cannot write into it.
func guarded[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	var out T

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			recordCall(ctx, op, "rate_limited", time.Since(start))
			return out, fmt.Errorf("%w: %s: %w: %v", ErrOracleUnavailable, op, ErrRateLimited, err)
		}
	}

	err := g.breaker.Execute(func() error {
		var err error
		out, err = Bounded(ctx, g.timeout, op, fn)
		return err
	})

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		outcome = "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	recordCall(ctx, op, outcome, time.Since(start))

	if err != nil {
		g.logger.Warn("oracle call failed",
			slog.String("operation", op),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		var zero T
		if errors.Is(err, ErrOracleUnavailable) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, op, err)
	}
	return out, nil
}

// Enrich implements SemanticEnricher.
func (g *Guard) Enrich(ctx context.Context, file *model.SourceFile) (Enrichment, error) {
	return guarded(ctx, g, "enrich", func(ctx context.Context) (Enrichment, error) {
		return g.inner.Enrich(ctx, file)
	})
}

// AnalyzeImpact implements SemanticEnricher.
func (g *Guard) AnalyzeImpact(ctx context.Context, fileName, newContent string, ruleSet []rules.Descriptor) (ImpactVerdict, error) {
	return guarded(ctx, g, "analyze_impact", func(ctx context.Context) (ImpactVerdict, error) {
		return g.inner.AnalyzeImpact(ctx, fileName, newContent, ruleSet)
	})
}

// SemanticSearch implements SemanticEnricher.
func (g *Guard) SemanticSearch(ctx context.Context, query string, files []*model.SourceFile) ([]SearchResult, error) {
	return guarded(ctx, g, "semantic_search", func(ctx context.Context) ([]SearchResult, error) {
		return g.inner.SemanticSearch(ctx, query, files)
	})
}

// RunSimulatedSuite implements TestValidationOracle.
func (g *Guard) RunSimulatedSuite(ctx context.Context, window []*model.SourceFile, newContent string) (model.TestReport, error) {
	return guarded(ctx, g, "run_simulated_suite", func(ctx context.Context) (model.TestReport, error) {
		return g.inner.RunSimulatedSuite(ctx, window, newContent)
	})
}
