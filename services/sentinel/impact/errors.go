// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact answers "what breaks if I change this file?".
//
// Two operations are provided. BlastRadius walks the reverse import graph
// from a target file up to a depth bound. ValidateChange merges local
// structural findings on proposed content with the verdicts of a semantic
// oracle and a test-simulation oracle, degrading to local findings when
// the semantic oracle cannot answer.
package impact

import "errors"

var (
	// ErrTargetNotFound is returned when the blast-radius target is not
	// part of the file set.
	ErrTargetNotFound = errors.New("target not found")

	// ErrNilFile is returned when ValidateChange is given no file.
	ErrNilFile = errors.New("file is nil")
)
