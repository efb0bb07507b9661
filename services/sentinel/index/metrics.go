// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("archlens.sentinel.index")
	meter  = otel.Meter("archlens.sentinel.index")
)

var (
	filesProcessed metric.Int64Counter
	fileFailures   metric.Int64Counter
	batchLatency   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		filesProcessed, err = meter.Int64Counter(
			"sentinel_index_files_processed_total",
			metric.WithDescription("Files processed by indexing runs, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileFailures, err = meter.Int64Counter(
			"sentinel_index_file_failures_total",
			metric.WithDescription("Files whose processing failed and were left unchanged"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchLatency, err = meter.Float64Histogram(
			"sentinel_index_batch_duration_seconds",
			metric.WithDescription("Duration of one indexing batch"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordFile(ctx context.Context, o outcome) {
	if err := initMetrics(); err != nil {
		return
	}
	filesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", o.String())))
	if o == outcomeFailed {
		fileFailures.Add(ctx, 1)
	}
}

func recordBatch(ctx context.Context, d time.Duration, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	batchLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Int("size", size)))
}
