// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index runs the indexing pipeline over a codebase snapshot.
//
// An Orchestrator partitions the files into fixed-size batches and
// processes the files of a batch concurrently. A file whose content hash
// matches its metadata cache entry is not reprocessed. Otherwise its
// analysis comes from the artifact store or, failing that, from
// structural extraction plus semantic enrichment. Once every batch has
// finished, the annotated snapshot is handed to the graph builder in a
// single deterministic pass.
//
//	files ──► [batch 1] ──► [batch 2] ──► ... ──► graph.Builder ──► Result
//	            │ ││           │ ││
//	            ▼ ▼▼           ▼ ▼▼
//	        per-file: cache ─► store ─► extract ─► enrich ─► toxicity
//
// # Thread Safety
//
// One Index run per Orchestrator at a time; a concurrent call fails with
// ErrIndexInProgress.
package index

import "errors"

var (
	// ErrIndexInProgress is returned when Index is called while another
	// run on the same Orchestrator has not finished.
	ErrIndexInProgress = errors.New("index already in progress")

	// ErrIndexCancelled is returned when the context is cancelled between
	// batches. It wraps the context error.
	ErrIndexCancelled = errors.New("index cancelled")
)
