// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("archlens.sentinel.impact")
	meter  = otel.Meter("archlens.sentinel.impact")
)

var (
	validateDuration metric.Float64Histogram
	degradedTotal    metric.Int64Counter
	radiusSize       metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validateDuration, err = meter.Float64Histogram(
			"sentinel_impact_validate_duration_seconds",
			metric.WithDescription("Duration of change validation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		degradedTotal, err = meter.Int64Counter(
			"sentinel_impact_degraded_total",
			metric.WithDescription("Validations that fell back to local findings"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		radiusSize, err = meter.Int64Histogram(
			"sentinel_impact_blast_radius_size",
			metric.WithDescription("Number of files in computed blast radii"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordValidate(ctx context.Context, d time.Duration, degraded bool) {
	if err := initMetrics(); err != nil {
		return
	}
	validateDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("degraded", degraded)))
	if degraded {
		degradedTotal.Add(ctx, 1)
	}
}

func recordRadius(ctx context.Context, size int, cacheHit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	radiusSize.Record(ctx, int64(size), metric.WithAttributes(attribute.Bool("cache_hit", cacheHit)))
}
