// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that come
// from outside the process.
//
// Project IDs arrive in URL paths, CLI flags and directory names, and end
// up in log fields, metric attributes and map keys. These validators keep
// them to a small, printable alphabet.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxProjectIDLength bounds a project ID.
const MaxProjectIDLength = 64

// ErrInvalidProjectID is returned for IDs outside the allowed alphabet.
var ErrInvalidProjectID = errors.New("invalid project id")

// projectIDPattern matches valid project IDs.
// Allows: lowercase letters, digits, dots, underscores and hyphens.
// Must start with a letter or digit.
var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

var separatorRun = regexp.MustCompile(`[\s/\\]+`)

// ValidateProjectID validates a project identifier.
//
// Valid IDs:
//   - 1-64 characters
//   - Lowercase letters a-z and digits 0-9
//   - Dots, underscores and hyphens after the first character
//
// Example:
//
//	if err := validation.ValidateProjectID(id); err != nil {
//	    return fmt.Errorf("index: %w", err)
//	}
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidProjectID)
	}
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (must be 1-%d lowercase alphanumeric chars, dots, underscores or hyphens)",
			ErrInvalidProjectID, id, MaxProjectIDLength)
	}
	return nil
}

// SanitizeProjectID normalizes a name, typically a directory base name,
// into a project ID and validates the result.
//
// Whitespace and path separators collapse to a single hyphen and the
// result is lowercased:
//
//	id, err := validation.SanitizeProjectID("My App")
//	// id == "my-app"
func SanitizeProjectID(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = separatorRun.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	if len(normalized) > MaxProjectIDLength {
		normalized = strings.TrimRight(normalized[:MaxProjectIDLength], "-")
	}
	if err := ValidateProjectID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
