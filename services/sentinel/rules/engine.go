// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules provides the architecture rule registry evaluated against
// raw file text.
package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// Engine is an ordered registry of architecture rules.
//
// # Description
//
// Every rule is evaluated independently against the full file content.
// Rules are pure: adding a rule never changes what another rule reports.
// An unmatched rule yields no violation; there are no error conditions
// during evaluation.
//
// # Thread Safety
//
// Safe for concurrent use. Register may be called while other goroutines
// evaluate files.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	ids   map[string]struct{}
}

// NewEngine creates an engine holding rules in the given order.
//
// # Outputs
//
//   - *Engine: the engine.
//   - error: ErrInvalidRule or ErrDuplicateRule for the first bad rule.
func NewEngine(rules ...Rule) (*Engine, error) {
	e := &Engine{ids: make(map[string]struct{}, len(rules))}
	for _, r := range rules {
		if err := e.Register(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// DefaultEngine returns an engine preloaded with Builtin().
func DefaultEngine() *Engine {
	e, err := NewEngine(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("rules: builtin rule set is invalid: %v", err))
	}
	return e
}

// Register appends a rule after the existing ones.
func (e *Engine) Register(r Rule) error {
	if err := r.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.ids[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
	}
	e.ids[r.ID] = struct{}{}
	e.rules = append(e.rules, r)
	return nil
}

// Rules returns a copy of the registered rules in order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Len returns the number of registered rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Descriptors returns the summaries of all registered rules.
func (e *Engine) Descriptors() []Descriptor {
	rules := e.Rules()
	out := make([]Descriptor, len(rules))
	for i, r := range rules {
		out[i] = r.Descriptor()
	}
	return out
}

// Evaluate runs every rule against content and returns one violation per
// firing rule, in rule order. path is copied into each violation's File.
func (e *Engine) Evaluate(path, content string) []model.RuleViolation {
	rules := e.Rules()

	var out []model.RuleViolation
	for _, r := range rules {
		line, ok := r.Match.Match(content)
		if !ok {
			continue
		}
		out = append(out, model.RuleViolation{
			RuleID:     r.ID,
			Severity:   r.Severity,
			Message:    r.Description,
			Line:       line,
			File:       path,
			Suggestion: r.suggestion(),
		})
	}
	return out
}

// EvaluateFile is Evaluate for a SourceFile.
func (e *Engine) EvaluateFile(f *model.SourceFile) []model.RuleViolation {
	if f == nil {
		return nil
	}
	return e.Evaluate(f.Path, f.Content)
}

// Report is a codebase-wide static analysis summary.
type Report struct {
	Violations         []model.RuleViolation `json:"violations"`
	RulesApplied       int                   `json:"rulesApplied"`
	FilesScanned       int                   `json:"filesScanned"`
	ArchitecturalScore int                   `json:"architecturalScore"`
	Timestamp          time.Time             `json:"timestamp"`
}

// Report evaluates every file and scores the result.
func (e *Engine) Report(files []*model.SourceFile) Report {
	var all []model.RuleViolation
	for _, f := range files {
		all = append(all, e.EvaluateFile(f)...)
	}
	return Report{
		Violations:         all,
		RulesApplied:       e.Len(),
		FilesScanned:       len(files),
		ArchitecturalScore: Score(all),
		Timestamp:          time.Now().UTC(),
	}
}

// Score returns max(0, 100 - 10*errors - 3*warnings).
func Score(violations []model.RuleViolation) int {
	score := 100
	for _, v := range violations {
		switch v.Severity {
		case model.SeverityError:
			score -= 10
		case model.SeverityWarning:
			score -= 3
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
