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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_ReturnsValue(t *testing.T) {
	v, err := Bounded(context.Background(), time.Second, "op", func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBounded_PassesThroughErrors(t *testing.T) {
	_, err := Bounded(context.Background(), time.Second, "op", func(context.Context) (int, error) {
		return 0, errBackend
	})
	assert.ErrorIs(t, err, errBackend)
	assert.NotErrorIs(t, err, ErrOracleUnavailable)
}

func TestBounded_DeadlineHoldsWhenCallIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	v, err := Bounded(context.Background(), 20*time.Millisecond, "op", func(context.Context) (int, error) {
		<-release
		return 7, nil
	})
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, v)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBounded_ParentCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bounded(ctx, 0, "op", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBounded_RecoversPanics(t *testing.T) {
	_, err := Bounded(context.Background(), time.Second, "analyze_impact", func(context.Context) (int, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Contains(t, err.Error(), "analyze_impact panicked: boom")
}
