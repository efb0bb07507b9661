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

import "errors"

var (
	// ErrOracleUnavailable is returned when an oracle cannot answer. Callers
	// treat it as a degraded-but-non-fatal condition.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRateLimited is returned when the limiter cannot admit a call
	// before the context deadline.
	ErrRateLimited = errors.New("oracle rate limited")

	// ErrInvalidResponse is returned when a backend answers with
	// something that does not decode into the expected shape.
	ErrInvalidResponse = errors.New("invalid oracle response")

	// ErrUnknownProvider is returned by New for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown oracle provider")

	// ErrMissingAPIKey is returned when a remote provider has no key.
	ErrMissingAPIKey = errors.New("oracle api key not set")
)
