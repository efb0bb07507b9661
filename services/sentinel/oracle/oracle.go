// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle defines the semantic and test-validation collaborators
// consulted by indexing and impact analysis, and provides an LLM-backed
// implementation, an offline static implementation, and a Guard that
// bounds every call with a timeout, a circuit breaker, and a rate limit.
//
// # Failure Model
//
// Oracles may be slow or unavailable. Every method returns an error
// rather than panicking, and callers must treat any error as a degraded
// condition, never as a reason to abort a pipeline.
package oracle

import (
	"context"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// MetadataPatch holds the fields an enricher may add to or replace in
// structural metadata. Zero values leave the structural result unchanged.
type MetadataPatch struct {
	Exports                    []string       `json:"exports,omitempty"`
	Imports                    []model.Import `json:"imports,omitempty"`
	RoleSummary                string         `json:"roleSummary,omitempty"`
	SecurityVulnerabilityCount *int           `json:"securityVulnerabilityCount,omitempty"`
	DependencyRiskScore        *int           `json:"dependencyRiskScore,omitempty"`
	CloudSecurityGap           *int           `json:"cloudSecurityGap,omitempty"`
}

// Apply overlays p onto m. Imports and exports are replaced only when the
// patch carries some; numeric fields only when set.
func (p MetadataPatch) Apply(m *model.StructuralMetadata) {
	if m == nil {
		return
	}
	if len(p.Exports) > 0 {
		m.Exports = append([]string(nil), p.Exports...)
	}
	if len(p.Imports) > 0 {
		m.Imports = append([]model.Import(nil), p.Imports...)
	}
	if p.RoleSummary != "" {
		m.RoleSummary = p.RoleSummary
	}
	if p.SecurityVulnerabilityCount != nil {
		m.SecurityVulnerabilityCount = *p.SecurityVulnerabilityCount
	}
	if p.DependencyRiskScore != nil {
		m.DependencyRiskScore = *p.DependencyRiskScore
	}
	if p.CloudSecurityGap != nil {
		m.CloudSecurityGap = *p.CloudSecurityGap
	}
}

// Enrichment is the semantic classification of one file.
type Enrichment struct {
	Tier  model.Tier    `json:"tier"`
	Patch MetadataPatch `json:"metadata"`
}

// ImpactVerdict is the oracle's judgement of a proposed change.
type ImpactVerdict struct {
	Safe           bool                  `json:"safe"`
	Score          int                   `json:"score"`
	AffectedNodes  []string              `json:"affectedNodes"`
	RuleViolations []model.RuleViolation `json:"ruleViolations"`
	Rationale      string                `json:"rationale"`
}

// SearchResult is one ranked semantic search hit.
type SearchResult struct {
	FilePath  string  `json:"filePath"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// SemanticEnricher classifies files, judges changes, and answers
// semantic search queries.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SemanticEnricher interface {
	// Enrich classifies a file's tier and proposes metadata additions.
	Enrich(ctx context.Context, file *model.SourceFile) (Enrichment, error)

	// AnalyzeImpact judges newContent for fileName against the rule set.
	AnalyzeImpact(ctx context.Context, fileName, newContent string, ruleSet []rules.Descriptor) (ImpactVerdict, error)

	// SemanticSearch ranks files by relevance to query, best first.
	SemanticSearch(ctx context.Context, query string, files []*model.SourceFile) ([]SearchResult, error)
}

// TestValidationOracle simulates the test suite of an impact window
// against proposed content.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type TestValidationOracle interface {
	RunSimulatedSuite(ctx context.Context, window []*model.SourceFile, newContent string) (model.TestReport, error)
}

// Oracle is both collaborators in one value, which is how every
// implementation in this package is shaped.
type Oracle interface {
	SemanticEnricher
	TestValidationOracle
}
