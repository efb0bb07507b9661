// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// hashKey is the fixed HighwayHash key. Changing it invalidates every
// persisted artifact.
var hashKey = []byte("ArchLens-sentinel-content-hash-1")

// ContentHash returns the 64-bit HighwayHash of content as 16 hex digits.
//
// The digest is deterministic across runs and processes, order-sensitive
// and covers every byte. It is not a cryptographic hash.
func ContentHash(content string) string {
	return fmt.Sprintf("%016x", highwayhash.Sum64([]byte(content), hashKey))
}
