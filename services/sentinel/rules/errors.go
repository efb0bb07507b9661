// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import "errors"

var (
	// ErrDuplicateRule is returned when registering a rule whose ID is
	// already present in the engine.
	ErrDuplicateRule = errors.New("duplicate rule ID")

	// ErrInvalidRule is returned for rules missing an ID, a matcher, or a
	// known severity.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleFile is returned when a custom rule file cannot be read or
	// parsed.
	ErrRuleFile = errors.New("invalid rule file")
)
