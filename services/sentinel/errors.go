// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sentinel

import "errors"

// Sentinel errors for the sentinel service.
var (
	// ErrProjectIDRequired indicates an empty project ID.
	ErrProjectIDRequired = errors.New("project id required")

	// ErrProjectNotIndexed indicates no successful index run exists for
	// the project.
	ErrProjectNotIndexed = errors.New("project not indexed")

	// ErrNoSource indicates an index request named neither a root nor
	// any files.
	ErrNoSource = errors.New("index request needs a root or files")

	// ErrRelativeRoot indicates a project root that is not absolute.
	ErrRelativeRoot = errors.New("project root must be an absolute path")

	// ErrRootNotAllowed indicates a project root outside the server's
	// allowed roots.
	ErrRootNotAllowed = errors.New("project root is outside the allowed roots")

	// ErrSearchUnavailable indicates no semantic enricher is configured.
	ErrSearchUnavailable = errors.New("semantic search unavailable")
)
