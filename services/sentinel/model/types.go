// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the shared data types of the sentinel indexing
// and impact-analysis engine.
//
// # Ownership Model
//
// SourceFile values are owned by the caller that loaded the codebase
// snapshot. The indexing pipeline mutates them in place to attach derived
// fields (Metadata, Tier, Toxicity, Violations). Derived records such as
// StructuralMetadata are replaced wholesale, never patched field by field
// from outside the pipeline.
package model

import (
	"path"
	"strings"
	"time"
)

// Language identifies the source language of a file.
type Language string

const (
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageGo         Language = "go"
	LanguageTerraform  Language = "terraform"
	LanguageDockerfile Language = "dockerfile"
	LanguageUnknown    Language = "unknown"
)

// DetectLanguage guesses a Language from a file path.
func DetectLanguage(p string) Language {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if strings.EqualFold(base, "Dockerfile") || strings.HasSuffix(strings.ToLower(base), ".dockerfile") {
		return LanguageDockerfile
	}
	switch strings.ToLower(path.Ext(base)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".py":
		return LanguagePython
	case ".java":
		return LanguageJava
	case ".go":
		return LanguageGo
	case ".tf":
		return LanguageTerraform
	default:
		return LanguageUnknown
	}
}

// Tier is a coarse classification of a file's architectural role.
type Tier string

const (
	TierArchitectural  Tier = "Architectural"
	TierModule         Tier = "Module"
	TierImplementation Tier = "Implementation"
	TierInfrastructure Tier = "Infrastructure"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierArchitectural, TierModule, TierImplementation, TierInfrastructure:
		return true
	}
	return false
}

// Severity of a rule violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities so that error > warning > info > unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Import is a single import statement recorded by the extractor.
type Import struct {
	Source string `json:"source"`
}

// Function is a declared function, class, or binding.
type Function struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// StructuralMetadata is the per-file result of structural extraction,
// optionally patched by semantic enrichment.
type StructuralMetadata struct {
	Imports                    []Import   `json:"imports"`
	Exports                    []string   `json:"exports"`
	Functions                  []Function `json:"functions"`
	ObservabilityGap           int        `json:"observabilityGap"`
	SecurityVulnerabilityCount int        `json:"securityVulnerabilityCount"`

	// Populated by enrichment only.
	RoleSummary         string `json:"roleSummary,omitempty"`
	DependencyRiskScore int    `json:"dependencyRiskScore,omitempty"`
	CloudSecurityGap    int    `json:"cloudSecurityGap,omitempty"`
}

// ImportSources returns the import source strings in declaration order.
func (m *StructuralMetadata) ImportSources() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Imports))
	for _, imp := range m.Imports {
		out = append(out, imp.Source)
	}
	return out
}

// RuleViolation is a single rule finding at a line of a file.
type RuleViolation struct {
	RuleID     string   `json:"ruleId"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Line       int      `json:"line"`
	File       string   `json:"file,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ViolationKey is the deduplication identity of a violation within a file.
type ViolationKey struct {
	RuleID string
	Line   int
}

// Key returns the (ruleId, line) identity of v.
func (v RuleViolation) Key() ViolationKey {
	return ViolationKey{RuleID: v.RuleID, Line: v.Line}
}

// ToxicityMetrics are heuristic structural-risk indicators for a file.
type ToxicityMetrics struct {
	LogicLeakageCount          int     `json:"logicLeakageCount"`
	EntanglementFactor         float64 `json:"entanglementFactor"`
	GodObjectProbability       int     `json:"godObjectProbability"`
	ObservabilityGap           int     `json:"observabilityGap"`
	SecurityVulnerabilityCount int     `json:"securityVulnerabilityCount"`
}

// Score folds the metrics into a single 0-100 toxicity score.
func (t *ToxicityMetrics) Score() int {
	if t == nil {
		return 0
	}
	score := t.GodObjectProbability + 10*t.LogicLeakageCount + 5*t.SecurityVulnerabilityCount
	entangled := int(2 * t.EntanglementFactor)
	if entangled > 10 {
		entangled = 10
	}
	score += entangled
	switch {
	case score > 100:
		return 100
	case score < 0:
		return 0
	}
	return score
}

// SourceFile is one file of a codebase snapshot.
type SourceFile struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	Language Language `json:"language"`

	// Derived fields, attached by the indexing pipeline.
	Metadata   *StructuralMetadata `json:"metadata,omitempty"`
	Tier       Tier                `json:"tier,omitempty"`
	Toxicity   *ToxicityMetrics    `json:"toxicity,omitempty"`
	Violations []RuleViolation     `json:"violations,omitempty"`
}

// NewSourceFile builds a SourceFile with Name and Language derived from p.
func NewSourceFile(p, content string) *SourceFile {
	p = strings.ReplaceAll(p, "\\", "/")
	return &SourceFile{
		Path:     p,
		Name:     path.Base(p),
		Content:  content,
		Language: DetectLanguage(p),
	}
}

// FileAnalysis is the derived data of one file at one content hash.
// It is what the metadata cache and the artifact store hold.
type FileAnalysis struct {
	Metadata   StructuralMetadata `json:"metadata"`
	Tier       Tier               `json:"tier"`
	Toxicity   ToxicityMetrics    `json:"toxicity"`
	Violations []RuleViolation    `json:"violations,omitempty"`
}

// Apply attaches a copy of the analysis to f.
func (a *FileAnalysis) Apply(f *SourceFile) {
	meta := a.Metadata
	tox := a.Toxicity
	f.Metadata = &meta
	f.Tier = a.Tier
	f.Toxicity = &tox
	f.Violations = append([]RuleViolation(nil), a.Violations...)
}

// CacheEntry is one entry of a content-addressable cache.
//
// An entry is valid for a path iff Hash equals the current content hash
// of that path.
type CacheEntry struct {
	Hash         string        `json:"hash"`
	Timestamp    time.Time     `json:"timestamp"`
	Dependencies []string      `json:"dependencies"`
	BlastRadius  []string      `json:"blastRadius,omitempty"`
	Analysis     *FileAnalysis `json:"analysis,omitempty"`
}

// DependencyNode is one indexed file in the dependency graph.
type DependencyNode struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Tier          Tier     `json:"tier"`
	ToxicityScore int      `json:"toxicityScore"`
	Language      Language `json:"language,omitempty"`
	Group         int      `json:"group"`
}

// RelationshipImport is the relationship of an import link.
const RelationshipImport = "import"

// DependencyLink is a directed edge meaning "Source imports Target".
type DependencyLink struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
	IsCircular   bool   `json:"isCircular"`
}

// TestReport is the result of a simulated test suite run.
type TestReport struct {
	Passed int      `json:"passed"`
	Total  int      `json:"total"`
	Errors []string `json:"errors"`
}

// AnalysisMode tells whether an ImpactAnalysis includes oracle judgment.
type AnalysisMode string

const (
	// AnalysisModeFull means the semantic oracle answered.
	AnalysisModeFull AnalysisMode = "full"

	// AnalysisModeDegraded means the verdict uses local findings only.
	AnalysisModeDegraded AnalysisMode = "degraded"
)

// ImpactAnalysis is the verdict on a proposed change. It is produced
// fresh per call and never cached.
type ImpactAnalysis struct {
	Safe           bool            `json:"safe"`
	Score          int             `json:"score"`
	AffectedNodes  []string        `json:"affectedNodes"`
	RuleViolations []RuleViolation `json:"ruleViolations"`
	Rationale      string          `json:"rationale"`
	CycleDetected  bool            `json:"cycleDetected"`
	ToxicityDelta  int             `json:"toxicityDelta"`
	TestValidation *TestReport     `json:"testValidation,omitempty"`
	CacheHit       bool            `json:"cacheHit"`

	// Mode is AnalysisModeDegraded when the semantic oracle failed;
	// DegradedReason then carries the failure.
	Mode           AnalysisMode `json:"mode"`
	DegradedReason string       `json:"degradedReason,omitempty"`

	// TestOracleError is set when the test oracle failed.
	TestOracleError string `json:"testOracleError,omitempty"`
}

// Degraded reports whether the analysis fell back to local findings.
func (a *ImpactAnalysis) Degraded() bool {
	return a.Mode == AnalysisModeDegraded
}
