// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

const (
	// godObjectContentLength is the content length above which a file is
	// considered a probable god object.
	godObjectContentLength = 5000

	godObjectHigh = 80
	godObjectLow  = 20
)

var (
	uiPathMarkers          = []string{"components", "View"}
	persistenceImportHints = []string{"db", "database", "connection"}
)

// Toxicity computes the structural-risk metrics of f given its metadata.
//
// A UI-located file (path under components or a View) importing a
// persistence module counts one logic leakage. Entanglement is the ratio
// of imports to exports, with at least one export assumed.
func Toxicity(f *model.SourceFile, meta *model.StructuralMetadata) model.ToxicityMetrics {
	var t model.ToxicityMetrics
	if f == nil {
		return t
	}

	t.GodObjectProbability = godObjectLow
	if len(f.Content) > godObjectContentLength {
		t.GodObjectProbability = godObjectHigh
	}
	if meta == nil {
		return t
	}

	if containsAnyOf(f.Path, uiPathMarkers) {
		for _, imp := range meta.Imports {
			if containsAnyOf(imp.Source, persistenceImportHints) {
				t.LogicLeakageCount = 1
				break
			}
		}
	}

	exports := len(meta.Exports)
	if exports == 0 {
		exports = 1
	}
	t.EntanglementFactor = float64(len(meta.Imports)) / float64(exports)
	t.ObservabilityGap = meta.ObservabilityGap
	t.SecurityVulnerabilityCount = meta.SecurityVulnerabilityCount
	return t
}

func containsAnyOf(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
