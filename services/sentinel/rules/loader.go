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
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// RuleSpec is the YAML form of a custom rule.
//
// Example:
//
//	rules:
//	  - id: TEAM-001
//	    name: No moment.js
//	    category: performance
//	    severity: warning
//	    description: moment.js is deprecated in this codebase
//	    pattern: "from ['\"]moment['\"]"
//	    suggestion: Use date-fns instead
type RuleSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Category    Category `yaml:"category"`
	Severity    string   `yaml:"severity"`
	Description string   `yaml:"description"`
	Pattern     string   `yaml:"pattern"`

	// Scope is "pattern" (default) or "lines".
	Scope      string `yaml:"scope"`
	Suggestion string `yaml:"suggestion"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Compile converts a spec into a Rule.
func (s RuleSpec) Compile() (Rule, error) {
	if s.Pattern == "" {
		return Rule{}, fmt.Errorf("%w: %s has empty pattern", ErrInvalidRule, s.ID)
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %s pattern: %v", ErrInvalidRule, s.ID, err)
	}

	var m Matcher
	switch s.Scope {
	case "", "pattern":
		m = Regexp(re)
	case "lines":
		m = Lines(re.MatchString)
	default:
		return Rule{}, fmt.Errorf("%w: %s has unknown scope %q", ErrInvalidRule, s.ID, s.Scope)
	}

	name := s.Name
	if name == "" {
		name = s.ID
	}
	r := Rule{
		ID:          s.ID,
		Name:        name,
		Category:    s.Category,
		Severity:    model.Severity(s.Severity),
		Description: s.Description,
		Match:       m,
		Suggestion:  s.Suggestion,
	}
	return r, r.validate()
}

// Parse decodes YAML rule definitions. Disabled rules are skipped.
func Parse(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleFile, err)
	}

	out := make([]Rule, 0, len(f.Rules))
	for _, spec := range f.Rules {
		if spec.Enabled != nil && !*spec.Enabled {
			continue
		}
		r, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadFile reads custom rules from a YAML file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleFile, err)
	}
	return Parse(data)
}

// RegisterFile loads custom rules from path and registers them on e.
// It returns the number of rules added.
func (e *Engine) RegisterFile(path string) (int, error) {
	rules, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	for i, r := range rules {
		if err := e.Register(r); err != nil {
			return i, err
		}
	}
	return len(rules), nil
}
