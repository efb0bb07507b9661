// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

func findViolation(vs []model.RuleViolation, id string) (model.RuleViolation, bool) {
	for _, v := range vs {
		if v.RuleID == id {
			return v, true
		}
	}
	return model.RuleViolation{}, false
}

func TestDefaultEngine_RegistersBuiltinsInOrder(t *testing.T) {
	e := DefaultEngine()
	rules := e.Rules()
	require.Len(t, rules, 12)
	assert.Equal(t, "ARCH-001", rules[0].ID)
	assert.Equal(t, "ARCH-012", rules[11].ID)

	ds := e.Descriptors()
	require.Len(t, ds, 12)
	assert.Empty(t, ds[0].Pattern, "content predicates have no pattern")
	assert.Equal(t, "dangerouslySetInnerHTML", ds[10].Pattern)
}

func TestEvaluate_PatternRuleReportsFirstMatchingLine(t *testing.T) {
	content := "import x from 'y'\nconst apiKey = 'abcdefghijklmnopqrstuvwxyz'\n"
	vs := DefaultEngine().Evaluate("src/config.ts", content)

	v, ok := findViolation(vs, "ARCH-005")
	require.True(t, ok)
	assert.Equal(t, 2, v.Line)
	assert.Equal(t, model.SeverityError, v.Severity)
	assert.Equal(t, "src/config.ts", v.File)
	assert.Equal(t, Suggest("ARCH-005"), v.Suggestion)
}

func TestEvaluate_UntypedFunction(t *testing.T) {
	content := "function add(a: number, b: number): number {\n  return a + b\n}\nfunction bad(x) {\n}\n"
	vs := DefaultEngine().Evaluate("math.ts", content)

	v, ok := findViolation(vs, "ARCH-008")
	require.True(t, ok)
	assert.Equal(t, 4, v.Line)

	typed := "function add(a: number): number {\n}\n"
	_, ok = findViolation(DefaultEngine().Evaluate("math.ts", typed), "ARCH-008")
	assert.False(t, ok)
}

func TestEvaluate_ContentRuleReportsLineOne(t *testing.T) {
	content := strings.Repeat("const a = 1\n", 301)
	vs := DefaultEngine().Evaluate("big.ts", content)

	v, ok := findViolation(vs, "ARCH-003")
	require.True(t, ok)
	assert.Equal(t, 1, v.Line)
}

func TestEvaluate_MultiLinePatternFallsBackToLineOne(t *testing.T) {
	content := "const UserComponent = () => {\n  const data = axios.get('/users')\n  return data\n}\n"
	vs := DefaultEngine().Evaluate("User.tsx", content)

	v, ok := findViolation(vs, "ARCH-002")
	require.True(t, ok)
	assert.Equal(t, 1, v.Line)
}

func TestEvaluate_RulesAreIndependent(t *testing.T) {
	content := "const token = 'zzzzzzzzzzzzzzzzzzzzzzzzzzzz'\n<div style={{color: 'red'}} />\n"

	solo, err := NewEngine(Builtin()[4])
	require.NoError(t, err)
	alone := solo.Evaluate("a.tsx", content)
	require.Len(t, alone, 1)

	full, _ := findViolation(DefaultEngine().Evaluate("a.tsx", content), "ARCH-005")
	assert.Equal(t, alone[0], full)
}

func TestEvaluate_NoMatchYieldsNothing(t *testing.T) {
	vs := DefaultEngine().Evaluate("empty.ts", "")
	assert.Empty(t, vs)
}

func TestImportsOutOfOrder(t *testing.T) {
	assert.True(t, importsOutOfOrder("import a from './a'\nimport React from 'react'\n"))
	assert.False(t, importsOutOfOrder("import React from 'react'\nimport _ from 'lodash'\nimport a from './a'\n"))
}

func TestRegister_Errors(t *testing.T) {
	e := DefaultEngine()

	err := e.Register(Builtin()[0])
	assert.True(t, errors.Is(err, ErrDuplicateRule))

	err = e.Register(Rule{ID: "X-1", Severity: model.SeverityInfo})
	assert.True(t, errors.Is(err, ErrInvalidRule))

	err = e.Register(Rule{ID: "X-2", Severity: "fatal", Match: Lines(func(string) bool { return true })})
	assert.True(t, errors.Is(err, ErrInvalidRule))

	assert.Equal(t, 12, e.Len())
}

func TestRegister_CustomLineRule(t *testing.T) {
	e := DefaultEngine()
	require.NoError(t, e.Register(Rule{
		ID:       "TEAM-001",
		Severity: model.SeverityWarning,
		Match:    Lines(regexp.MustCompile(`TODO`).MatchString),
	}))

	vs := e.Evaluate("a.ts", "const a = 1\n// TODO: remove\n")
	v, ok := findViolation(vs, "TEAM-001")
	require.True(t, ok)
	assert.Equal(t, 2, v.Line)
	assert.Equal(t, DefaultSuggestion, v.Suggestion)
}

func TestScore(t *testing.T) {
	vs := []model.RuleViolation{
		{Severity: model.SeverityError},
		{Severity: model.SeverityError},
		{Severity: model.SeverityWarning},
		{Severity: model.SeverityInfo},
	}
	assert.Equal(t, 77, Score(vs))

	many := make([]model.RuleViolation, 11)
	for i := range many {
		many[i].Severity = model.SeverityError
	}
	assert.Equal(t, 0, Score(many))
}

func TestReport(t *testing.T) {
	files := []*model.SourceFile{
		model.NewSourceFile("a.tsx", "<p dangerouslySetInnerHTML={html} />\n"),
		model.NewSourceFile("b.ts", "export const b = 1\n"),
	}
	r := DefaultEngine().Report(files)

	assert.Equal(t, 2, r.FilesScanned)
	assert.Equal(t, 12, r.RulesApplied)
	_, ok := findViolation(r.Violations, "ARCH-011")
	assert.True(t, ok)
	assert.Equal(t, Score(r.Violations), r.ArchitecturalScore)
	assert.False(t, r.Timestamp.IsZero())
}

func TestParse_CustomRules(t *testing.T) {
	data := []byte(`
rules:
  - id: TEAM-001
    name: No moment
    category: performance
    severity: warning
    description: moment.js is deprecated
    pattern: "from ['\"]moment['\"]"
    suggestion: Use date-fns
  - id: TEAM-002
    severity: info
    pattern: "debugger"
    scope: lines
    enabled: false
`)
	rules, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "TEAM-001", r.ID)
	assert.Equal(t, CategoryPerformance, r.Category)

	line, ok := r.Match.Match("const a = 1\nimport m from 'moment'\n")
	assert.True(t, ok)
	assert.Equal(t, 2, line)
	assert.Equal(t, "Use date-fns", r.suggestion())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("rules: ["))
	assert.True(t, errors.Is(err, ErrRuleFile))

	_, err = Parse([]byte("rules:\n  - id: BAD\n    severity: error\n    pattern: \"(\"\n"))
	assert.True(t, errors.Is(err, ErrInvalidRule))

	_, err = Parse([]byte("rules:\n  - id: BAD\n    severity: error\n    pattern: x\n    scope: file\n"))
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestRegisterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: TEAM-9\n    severity: info\n    pattern: foo\n"), 0o600))

	e := DefaultEngine()
	n, err := e.RegisterFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 13, e.Len())

	_, err = e.RegisterFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrRuleFile))
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, DefaultSuggestion, Suggest("NOPE"))
	assert.NotEqual(t, DefaultSuggestion, Suggest(RuleMissingCleanup))
}
