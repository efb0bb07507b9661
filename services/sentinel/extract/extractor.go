// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract produces structural metadata and local rule violations
// from a single file's content.
//
// Two implementations share the Extractor interface:
//
//   - LineExtractor: one linear pass of per-line heuristics.
//   - TreeSitterExtractor: AST-derived imports, exports and declarations
//     for TypeScript, JavaScript and Python, with the line heuristics
//     supplying violations and filling in for unsupported languages.
//
// Neither returns an error. Constructs that match no heuristic are
// skipped, leaving partial metadata.
package extract

import (
	"context"
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// Thresholds used by the line heuristics.
const (
	// MonolithLines is the line count above which RULE-008 fires.
	MonolithLines = 500

	// PropsLineLength is the line length above which a Props signature
	// raises RULE-003.
	PropsLineLength = 150

	// DefaultCleanupWindow is the number of lines after a useEffect( call
	// searched for a side-effect registration.
	DefaultCleanupWindow = 12

	// ObservabilityFunctionThreshold is the function count above which a
	// file without logging calls gets a high observability gap.
	ObservabilityFunctionThreshold = 5

	// ObservabilityGapHigh and ObservabilityGapLow are the two values of
	// StructuralMetadata.ObservabilityGap.
	ObservabilityGapHigh = 70
	ObservabilityGapLow  = 10

	exportTextLimit = 100
)

// Result is the output of one extraction.
type Result struct {
	Metadata   model.StructuralMetadata
	Violations []model.RuleViolation
}

// Extractor turns file content into structural metadata and local
// violations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, content string, lang model.Language) Result
}

// Option configures a LineExtractor.
type Option func(*LineExtractor)

// WithRuleEngine evaluates the engine's rules on every extracted file and
// merges their violations after the heuristics.
func WithRuleEngine(e *rules.Engine) Option {
	return func(x *LineExtractor) {
		x.engine = e
	}
}

// WithCleanupWindow sets the useEffect lookahead window in lines.
func WithCleanupWindow(lines int) Option {
	return func(x *LineExtractor) {
		if lines > 0 {
			x.cleanupWindow = lines
		}
	}
}

// LineExtractor is the line-oriented heuristic extractor.
type LineExtractor struct {
	engine        *rules.Engine
	cleanupWindow int
}

// NewLineExtractor creates a line extractor.
func NewLineExtractor(opts ...Option) *LineExtractor {
	x := &LineExtractor{cleanupWindow: DefaultCleanupWindow}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract implements Extractor.
func (x *LineExtractor) Extract(_ context.Context, content string, lang model.Language) Result {
	lines := strings.Split(content, "\n")
	ui := IsUIContent(content)
	patterns := patternsFor(lang)

	meta := model.StructuralMetadata{
		Imports:   []model.Import{},
		Exports:   []string{},
		Functions: []model.Function{},
	}
	var violations []model.RuleViolation

	if len(lines) > MonolithLines {
		violations = append(violations, violation(rules.RuleMonolith, model.SeverityWarning, 1,
			"Architectural Monolith: Source file exceeds 500 lines."))
	}

	inGoImportBlock := false
	for i, line := range lines {
		lineNum := i + 1

		source := ""
		if lang == model.LanguageGo {
			source, inGoImportBlock = matchGoImport(line, inGoImportBlock)
		} else {
			source = matchImport(patterns, line)
		}
		if source != "" {
			meta.Imports = append(meta.Imports, model.Import{Source: source})
			if ui && containsAny(source, persistenceMarkers) {
				violations = append(violations, violation(rules.RuleLayerBreach, model.SeverityError, lineNum,
					"Architectural Layer Breach: UI logic should not import database drivers directly."))
			}
		}

		if patterns.exports != nil && patterns.exports.MatchString(line) {
			meta.Exports = append(meta.Exports, exportText(line))
		}

		if name := matchDeclaration(patterns, line); name != "" {
			meta.Functions = append(meta.Functions, model.Function{Name: name, Line: lineNum})
		}

		if containsAny(line, looseTypeMarkers) {
			violations = append(violations, violation(rules.RuleLooseTyping, model.SeverityWarning, lineNum,
				`Coding Standard Violation: "any" type suppresses architectural safety.`))
		}

		if ui && containsAny(line, envMarkers) {
			violations = append(violations, violation(rules.RuleEnvAccess, model.SeverityError, lineNum,
				"Security Risk: Direct environment access in UI logic."))
		}

		if ui && containsAny(line, domMarkers) {
			violations = append(violations, violation(rules.RuleDOMMutation, model.SeverityError, lineNum,
				"Anti-Pattern: Direct DOM manipulation detected in React code."))
		}

		if strings.Contains(line, "useEffect(") && x.missingCleanup(lines, i) {
			violations = append(violations, violation(rules.RuleMissingCleanup, model.SeverityWarning, lineNum,
				"Reliability Risk: Side effect detected potentially lacking cleanup."))
		}

		if containsAny(line, securityMarkers) {
			meta.SecurityVulnerabilityCount++
		}

		if strings.Contains(line, "Props") && strings.Contains(line, "{") && len(line) > PropsLineLength {
			violations = append(violations, violation(rules.RuleExcessiveProps, model.SeverityInfo, lineNum,
				"Prop Drilling Alert: Component signature contains excessive props."))
		}
	}

	meta.ObservabilityGap = ObservabilityGap(len(meta.Functions), content)

	if x.engine != nil {
		violations = append(violations, x.engine.Evaluate("", content)...)
	}

	return Result{Metadata: meta, Violations: Dedup(violations)}
}

// missingCleanup reports whether the useEffect at lines[start] registers
// a side effect within the cleanup window and no teardown return follows
// within twice that window. Scanning stops at the next useEffect.
func (x *LineExtractor) missingCleanup(lines []string, start int) bool {
	registers := false
	teardown := false
	for i := start; i < len(lines) && i < start+2*x.cleanupWindow; i++ {
		line := lines[i]
		if i > start && strings.Contains(line, "useEffect(") {
			break
		}
		if i < start+x.cleanupWindow && containsAny(line, effectMarkers) {
			registers = true
		}
		if containsAny(line, teardownMarkers) {
			teardown = true
		}
	}
	return registers && !teardown
}

func matchImport(p *linePatterns, line string) string {
	for _, re := range p.imports {
		if m := re.FindStringSubmatch(line); m != nil {
			if src := firstGroup(m); src != "" {
				return src
			}
		}
	}
	return ""
}

// matchGoImport handles single-line imports and parenthesised blocks.
func matchGoImport(line string, inBlock bool) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if inBlock {
		if strings.HasPrefix(trimmed, ")") {
			return "", false
		}
		if m := goImportSpecRe.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
		return "", true
	}
	if strings.HasPrefix(trimmed, "import (") || trimmed == "import(" {
		return "", true
	}
	return matchImport(goPatterns, line), false
}

func matchDeclaration(p *linePatterns, line string) string {
	for _, re := range p.declarations {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, reserved := reservedNames[m[1]]; reserved {
			continue
		}
		return m[1]
	}
	return ""
}

func exportText(line string) string {
	t := strings.TrimSpace(line)
	if len(t) > exportTextLimit {
		t = t[:exportTextLimit]
	}
	return t
}

// ObservabilityGap returns ObservabilityGapHigh when functions exceeds
// ObservabilityFunctionThreshold and content has no logging call.
func ObservabilityGap(functions int, content string) int {
	if functions > ObservabilityFunctionThreshold && !containsAny(content, loggingMarkers) {
		return ObservabilityGapHigh
	}
	return ObservabilityGapLow
}

func violation(id string, sev model.Severity, line int, msg string) model.RuleViolation {
	return model.RuleViolation{
		RuleID:     id,
		Severity:   sev,
		Message:    msg,
		Line:       line,
		Suggestion: rules.Suggest(id),
	}
}

// Dedup removes violations whose (ruleId, line) key was already seen,
// keeping the first occurrence and the original order.
func Dedup(vs []model.RuleViolation) []model.RuleViolation {
	if len(vs) == 0 {
		return vs
	}
	seen := make(map[model.ViolationKey]struct{}, len(vs))
	out := make([]model.RuleViolation, 0, len(vs))
	for _, v := range vs {
		k := v.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// WithFile returns a copy of vs with File set to path on every entry.
func WithFile(vs []model.RuleViolation, path string) []model.RuleViolation {
	if vs == nil {
		return nil
	}
	out := make([]model.RuleViolation, len(vs))
	for i, v := range vs {
		v.File = path
		out[i] = v
	}
	return out
}
