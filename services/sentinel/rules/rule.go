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
	"fmt"
	"regexp"
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// Category groups rules for reporting.
type Category string

const (
	CategoryArchitectural Category = "architectural"
	CategoryAntiPattern   Category = "anti-pattern"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
)

// Matcher decides whether a rule fires on a file and at which line.
//
// There are three shapes:
//   - Pattern: tested against the whole content; the reported line is the
//     first line the test matches on its own, else 1.
//   - Lines: tested line by line; fires on the first matching line.
//   - Content: tested against the whole content; always reports line 1.
//
// The zero Matcher never fires.
type Matcher struct {
	test   func(string) bool
	scope  matchScope
	source string
}

type matchScope int

const (
	scopePattern matchScope = iota
	scopeLines
	scopeContent
)

// Regexp returns a Pattern matcher for re.
func Regexp(re *regexp.Regexp) Matcher {
	return Matcher{test: re.MatchString, scope: scopePattern, source: re.String()}
}

// Pattern returns a Pattern matcher for an arbitrary string test.
func Pattern(fn func(string) bool) Matcher {
	return Matcher{test: fn, scope: scopePattern}
}

// Lines returns a matcher that tests each line independently.
func Lines(fn func(line string) bool) Matcher {
	return Matcher{test: fn, scope: scopeLines}
}

// Content returns a whole-file predicate matcher.
func Content(fn func(content string) bool) Matcher {
	return Matcher{test: fn, scope: scopeContent}
}

// Match reports whether the matcher fires on content, and at which line.
func (m Matcher) Match(content string) (line int, ok bool) {
	if m.test == nil {
		return 0, false
	}
	switch m.scope {
	case scopeLines:
		for i, l := range strings.Split(content, "\n") {
			if m.test(l) {
				return i + 1, true
			}
		}
		return 0, false
	case scopeContent:
		if m.test(content) {
			return 1, true
		}
		return 0, false
	default:
		if !m.test(content) {
			return 0, false
		}
		for i, l := range strings.Split(content, "\n") {
			if m.test(l) {
				return i + 1, true
			}
		}
		return 1, true
	}
}

// Source returns the regular expression text for Regexp matchers.
func (m Matcher) Source() string {
	return m.source
}

// Rule is one architecture rule.
type Rule struct {
	ID          string
	Name        string
	Category    Category
	Severity    model.Severity
	Description string
	Match       Matcher

	// Suggestion overrides the suggestion table entry for ID.
	Suggestion string
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if r.Match.test == nil {
		return fmt.Errorf("%w: %s has no matcher", ErrInvalidRule, r.ID)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: %s has unknown severity %q", ErrInvalidRule, r.ID, r.Severity)
	}
	return nil
}

// suggestion returns the rule's own suggestion or the table entry.
func (r Rule) suggestion() string {
	if r.Suggestion != "" {
		return r.Suggestion
	}
	return Suggest(r.ID)
}

// Descriptor is the serialisable summary of a rule handed to oracles and
// API clients.
type Descriptor struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    Category       `json:"category"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description"`

	// Pattern is the regular expression of Regexp matchers.
	Pattern string `json:"pattern,omitempty"`
}

// Descriptor returns r's summary.
func (r Rule) Descriptor() Descriptor {
	return Descriptor{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Severity:    r.Severity,
		Description: r.Description,
		Pattern:     r.Match.Source(),
	}
}
