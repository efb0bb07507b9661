// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the file-level dependency graph.
//
// # Ownership Model
//
// Build reads the SourceFile slice but never mutates it. The returned
// Graph is immutable and safe for concurrent reads.
//
// # Resolution
//
// An import resolves to a known file when its normalised source string
// is a substring of that file's path. Imports that resolve to nothing are
// dropped; no node is ever created for an unresolved target.
package graph

import "errors"

var (
	// ErrNodeNotFound is returned when a lookup names a path that is not
	// a node of the graph.
	ErrNodeNotFound = errors.New("node not found")
)
