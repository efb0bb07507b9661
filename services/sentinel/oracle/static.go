// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// tierMarkers maps path segments to tiers, checked in order.
var tierMarkers = []struct {
	tier     model.Tier
	segments []string
}{
	{model.TierInfrastructure, []string{"infra", "infrastructure", "deploy", "k8s", "terraform", "docker", "scripts", "ci"}},
	{model.TierArchitectural, []string{"core", "domain", "arch", "types", "interfaces", "contracts", "kernel"}},
	{model.TierModule, []string{"components", "modules", "services", "features", "pages", "views", "screens", "api"}},
}

var (
	namedImportRe  = regexp.MustCompile(`import\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	pythonImportRe = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+(.+)$`)
)

// Static is an offline Oracle built from deterministic heuristics. It is
// used when no model provider is configured and as a predictable oracle
// in tests.
//
// # Thread Safety
//
// Static is safe for concurrent use.
type Static struct {
	engine *rules.Engine
}

// NewStatic creates a static oracle evaluating engine's rules. A nil
// engine uses the built-in rule set.
func NewStatic(engine *rules.Engine) *Static {
	if engine == nil {
		engine = rules.DefaultEngine()
	}
	return &Static{engine: engine}
}

// Enrich classifies a file's tier from its path and language.
func (s *Static) Enrich(ctx context.Context, file *model.SourceFile) (Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return Enrichment{}, err
	}
	if file == nil {
		return Enrichment{}, fmt.Errorf("%w: nil file", ErrInvalidResponse)
	}
	tier := classifyTier(file)
	exports := 0
	if file.Metadata != nil {
		exports = len(file.Metadata.Exports)
	}
	return Enrichment{
		Tier: tier,
		Patch: MetadataPatch{
			RoleSummary: fmt.Sprintf("%s %s file with %d exports", tier, languageLabel(file.Language), exports),
		},
	}, nil
}

func classifyTier(f *model.SourceFile) model.Tier {
	if f.Language == model.LanguageTerraform || f.Language == model.LanguageDockerfile {
		return model.TierInfrastructure
	}
	segments := strings.Split(strings.ToLower(path.Dir(f.Path)), "/")
	for _, m := range tierMarkers {
		for _, seg := range segments {
			for _, want := range m.segments {
				if seg == want {
					return m.tier
				}
			}
		}
	}
	return model.TierImplementation
}

func languageLabel(l model.Language) string {
	if l == "" || l == model.LanguageUnknown {
		return "source"
	}
	return string(l)
}

// AnalyzeImpact evaluates newContent with the engine's rules, restricted
// to ruleSet when it is non-empty.
func (s *Static) AnalyzeImpact(ctx context.Context, fileName, newContent string, ruleSet []rules.Descriptor) (ImpactVerdict, error) {
	if err := ctx.Err(); err != nil {
		return ImpactVerdict{}, err
	}
	allowed := make(map[string]struct{}, len(ruleSet))
	for _, d := range ruleSet {
		allowed[d.ID] = struct{}{}
	}

	all := s.engine.Evaluate(fileName, newContent)
	violations := make([]model.RuleViolation, 0, len(all))
	errorCount := 0
	for _, v := range all {
		if len(allowed) > 0 {
			if _, ok := allowed[v.RuleID]; !ok {
				continue
			}
		}
		if v.Severity == model.SeverityError {
			errorCount++
		}
		violations = append(violations, v)
	}

	return ImpactVerdict{
		Safe:           errorCount == 0,
		Score:          rules.Score(violations),
		AffectedNodes:  []string{},
		RuleViolations: violations,
		Rationale: fmt.Sprintf("Static rule evaluation of %s: %d findings, %d errors.",
			fileName, len(violations), errorCount),
	}, nil
}

// RunSimulatedSuite treats window[0] as the changed file. Every test file
// in the rest of the window that imports it is a suite; a suite fails
// when it imports a named symbol newContent no longer declares.
func (s *Static) RunSimulatedSuite(ctx context.Context, window []*model.SourceFile, newContent string) (model.TestReport, error) {
	report := model.TestReport{Errors: []string{}}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(window) == 0 || window[0] == nil {
		return report, nil
	}
	target := window[0]

	for _, f := range window[1:] {
		if f == nil || !isTestFile(f.Path) {
			continue
		}
		symbols, ok := importedSymbols(f, target.Path)
		if !ok {
			continue
		}
		report.Total++
		var missing []string
		for _, sym := range symbols {
			if !containsWord(newContent, sym) {
				missing = append(missing, sym)
			}
		}
		if len(missing) == 0 {
			report.Passed++
			continue
		}
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s: missing symbols %s", f.Path, strings.Join(missing, ", ")))
	}
	return report, nil
}

func isTestFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(p, "__tests__/")
}

// importedSymbols returns the named symbols f imports from target, and
// whether f imports target at all.
func importedSymbols(f *model.SourceFile, target string) ([]string, bool) {
	targetStem := strings.TrimSuffix(target, path.Ext(target))
	refers := func(source string) bool {
		s := strings.Trim(source, "./")
		if s == "" {
			return false
		}
		s = strings.ReplaceAll(s, "../", "")
		for _, cand := range []string{s, strings.ReplaceAll(s, ".", "/")} {
			if targetStem == cand || strings.HasSuffix(targetStem, "/"+cand) {
				return true
			}
		}
		return false
	}

	var symbols []string
	found := false
	for _, m := range namedImportRe.FindAllStringSubmatch(f.Content, -1) {
		if !refers(m[2]) {
			continue
		}
		found = true
		symbols = append(symbols, splitNames(m[1])...)
	}
	for _, line := range strings.Split(f.Content, "\n") {
		m := pythonImportRe.FindStringSubmatch(line)
		if m == nil || !refers(m[1]) {
			continue
		}
		found = true
		symbols = append(symbols, splitNames(strings.Trim(m[2], "() "))...)
	}
	if !found && f.Metadata != nil {
		for _, imp := range f.Metadata.Imports {
			if refers(imp.Source) {
				found = true
				break
			}
		}
	}
	return symbols, found
}

// splitNames parses "a, b as c, type D" into the imported names a, b, D.
func splitNames(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if name == "type" && len(fields) > 1 {
			name = fields[1]
		}
		out = append(out, name)
	}
	return out
}

func containsWord(content, word string) bool {
	for idx := strings.Index(content, word); idx >= 0; {
		end := idx + len(word)
		before := idx == 0 || !isIdentRune(rune(content[idx-1]))
		after := end == len(content) || !isIdentRune(rune(content[end]))
		if before && after {
			return true
		}
		next := strings.Index(content[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// SemanticSearch ranks files by the share of query tokens found in them.
// A token in the path counts double.
func (s *Static) SemanticSearch(ctx context.Context, query string, files []*model.SourceFile) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []SearchResult{}, nil
	}

	out := make([]SearchResult, 0)
	for _, f := range files {
		if f == nil {
			continue
		}
		lowerPath := strings.ToLower(f.Path)
		lowerContent := strings.ToLower(f.Content)
		var score float64
		var matched []string
		for _, t := range tokens {
			hit := false
			if strings.Contains(lowerPath, t) {
				score += 2
				hit = true
			}
			if strings.Contains(lowerContent, t) {
				score++
				hit = true
			}
			if hit {
				matched = append(matched, t)
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, SearchResult{
			FilePath:  f.Path,
			Score:     score / float64(3*len(tokens)),
			Rationale: "matched " + strings.Join(matched, ", "),
		})
	}
	sortResults(out)
	return out, nil
}

// tokenize lowercases query and returns its distinct alphanumeric tokens
// of two or more characters, sorted.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
