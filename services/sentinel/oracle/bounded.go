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
	"time"
)

type boundedResult[T any] struct {
	val T
	err error
}

// Bounded runs fn with a deadline that holds even when fn ignores its
// context.
//
// # Description
//
// fn runs on its own goroutine. Bounded returns when fn returns or when
// ctx (narrowed by timeout) is done, whichever comes first. A result that
// arrives after the deadline is discarded. A panic inside fn is recovered
// and reported as an error.
//
// Every error Bounded produces itself wraps ErrOracleUnavailable. Errors
// returned by fn are passed through unchanged.
//
// # Inputs
//
//   - ctx: Parent context.
//   - timeout: Per-call bound. Zero or negative means ctx alone bounds it.
//   - op: Operation name used in error messages.
//   - fn: The oracle call.
//
// # Outputs
//
//   - T: fn's value, or the zero value on timeout or panic.
//   - error: fn's error, or an ErrOracleUnavailable wrapping the context
//     error or the panic value.
//
// # Thread Safety
//
// Safe for concurrent use. An abandoned fn keeps running until it returns
// on its own; its result is dropped.
func Bounded[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan boundedResult[T], 1)
	go func() {
		var res boundedResult[T]
		defer func() {
			if r := recover(); r != nil {
				res = boundedResult[T]{err: fmt.Errorf("%w: %s panicked: %v", ErrOracleUnavailable, op, r)}
			}
			done <- res
		}()
		res.val, res.err = fn(cctx)
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-cctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, op, cctx.Err())
	}
}
