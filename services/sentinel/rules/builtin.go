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
	"regexp"
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

var (
	propPassingRe     = regexp.MustCompile(`\w+=\{[\w.]+\}`)
	functionDeclRe    = regexp.MustCompile(`function \w+\(`)
	businessLogicRe   = regexp.MustCompile(`const \w+Component.*=.*\{[\s\S]*?(?:fetch|axios|api\.|db\.|database\.)[\s\S]*?\}`)
	hardcodedSecretRe = regexp.MustCompile(`(?i)(?:apiKey|api_key|secret|password|token)\s*[:=]\s*['"][^'"]{20,}['"]`)
	inlineStyleRe     = regexp.MustCompile(`style=\{\{[^}]+\}\}`)
	inlineHandlerRe   = regexp.MustCompile(`on\w+=\{(.*?)\s*=>\s*\{`)
	untypedFuncRe     = regexp.MustCompile(`function \w+\([^)]*\)(\s*:\s*\w+)?`)
	domAccessRe       = regexp.MustCompile(`document\.(?:getElementById|querySelector|getElementsBy)`)
	componentFetchRe  = regexp.MustCompile(`const \w+Component[\s\S]*?fetch\(`)
	xssRe             = regexp.MustCompile(`dangerouslySetInnerHTML`)
	expensiveOpRe     = regexp.MustCompile(`\.(?:map|filter|reduce|sort)\(`)
)

// godComponentLines is the line count above which ARCH-003 fires.
const godComponentLines = 300

// Builtin returns the built-in architecture rules in registration order.
func Builtin() []Rule {
	return []Rule{
		{
			ID:          "ARCH-001",
			Name:        "Prevent Prop Drilling",
			Category:    CategoryAntiPattern,
			Severity:    model.SeverityWarning,
			Description: "Detected potential prop drilling - consider using Context API or state management",
			Match: Content(func(code string) bool {
				return len(propPassingRe.FindAllString(code, -1)) > 5 &&
					len(functionDeclRe.FindAllString(code, -1)) > 2
			}),
		},
		{
			ID:          "ARCH-002",
			Name:        "No Business Logic in UI Components",
			Category:    CategoryArchitectural,
			Severity:    model.SeverityError,
			Description: "UI components should not contain business logic - extract to services",
			Match:       Regexp(businessLogicRe),
		},
		{
			ID:          "ARCH-003",
			Name:        "Prevent God Components",
			Category:    CategoryAntiPattern,
			Severity:    model.SeverityError,
			Description: "Component exceeds 300 lines - consider breaking into smaller components",
			Match: Content(func(code string) bool {
				return strings.Count(code, "\n")+1 > godComponentLines
			}),
		},
		{
			ID:          "ARCH-004",
			Name:        "Enforce Import Order",
			Category:    CategoryArchitectural,
			Severity:    model.SeverityWarning,
			Description: "Imports should follow order: React, external libs, internal modules, types, styles",
			Match:       Content(importsOutOfOrder),
		},
		{
			ID:          "ARCH-005",
			Name:        "No Hardcoded Secrets",
			Category:    CategorySecurity,
			Severity:    model.SeverityError,
			Description: "Detected potential hardcoded secret - use environment variables",
			Match:       Regexp(hardcodedSecretRe),
		},
		{
			ID:          "ARCH-006",
			Name:        "Avoid Inline Styles",
			Category:    CategoryAntiPattern,
			Severity:    model.SeverityInfo,
			Description: "Prefer CSS classes or styled-components over inline styles",
			Match:       Regexp(inlineStyleRe),
		},
		{
			ID:          "ARCH-007",
			Name:        "No Anonymous Functions in JSX",
			Category:    CategoryPerformance,
			Severity:    model.SeverityWarning,
			Description: "Anonymous functions in JSX cause unnecessary re-renders",
			Match:       Regexp(inlineHandlerRe),
		},
		{
			ID:          "ARCH-008",
			Name:        "Enforce TypeScript Types",
			Category:    CategoryArchitectural,
			Severity:    model.SeverityError,
			Description: "All function parameters and return types must be explicitly typed",
			Match:       Pattern(hasUntypedFunction),
		},
		{
			ID:          "ARCH-009",
			Name:        "No Direct DOM Manipulation",
			Category:    CategoryAntiPattern,
			Severity:    model.SeverityError,
			Description: "Avoid direct DOM manipulation - use React refs and state",
			Match:       Regexp(domAccessRe),
		},
		{
			ID:          "ARCH-010",
			Name:        "Enforce Service Layer Separation",
			Category:    CategoryArchitectural,
			Severity:    model.SeverityError,
			Description: "API calls must be in service layer, not in components",
			Match:       Regexp(componentFetchRe),
		},
		{
			ID:          "ARCH-011",
			Name:        "Prevent XSS Vulnerabilities",
			Category:    CategorySecurity,
			Severity:    model.SeverityError,
			Description: "Dangerous use of dangerouslySetInnerHTML detected",
			Match:       Regexp(xssRe),
		},
		{
			ID:          "ARCH-012",
			Name:        "Use Memoization for Expensive Computations",
			Category:    CategoryPerformance,
			Severity:    model.SeverityInfo,
			Description: "Consider using useMemo for expensive computations in render",
			Match: Content(func(code string) bool {
				return expensiveOpRe.MatchString(code) && !strings.Contains(code, "useMemo")
			}),
		},
	}
}

// hasUntypedFunction reports whether s declares a function whose
// parameter list is not followed by a return type annotation.
func hasUntypedFunction(s string) bool {
	for _, m := range untypedFuncRe.FindAllStringSubmatch(s, -1) {
		if m[1] == "" {
			return true
		}
	}
	return false
}

// importsOutOfOrder ranks each top-level import line
// (react=1, package=2, relative=3, types=4, other=5) and reports whether
// any line ranks lower than the one before it.
func importsOutOfOrder(code string) bool {
	last := 0
	for _, line := range strings.Split(code, "\n") {
		if !strings.HasPrefix(line, "import") {
			continue
		}
		rank := 5
		relative := strings.Contains(line, "./") || strings.Contains(line, "../")
		switch {
		case strings.Contains(line, "react"):
			rank = 1
		case (strings.Contains(line, "from '") || strings.Contains(line, `from "`)) && !relative:
			rank = 2
		case relative:
			rank = 3
		case strings.Contains(line, "types"):
			rank = 4
		}
		if rank < last {
			return true
		}
		last = rank
	}
	return false
}
