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

// Extractor heuristic rule IDs. The extractor raises these directly; the
// engine only supplies their suggestion text.
const (
	RuleExcessiveProps = "RULE-003"
	RuleLayerBreach    = "RULE-005"
	RuleLooseTyping    = "RULE-006"
	RuleEnvAccess      = "RULE-007"
	RuleMonolith       = "RULE-008"
	RuleDOMMutation    = "RULE-009"
	RuleMissingCleanup = "RULE-010"
)

// DefaultSuggestion is returned for rule IDs without a table entry.
const DefaultSuggestion = "Review and refactor according to best practices"

var suggestions = map[string]string{
	"ARCH-001": "Use React Context API or a state management library like Redux/Zustand",
	"ARCH-002": "Extract business logic to a service file in /services directory",
	"ARCH-003": "Break component into smaller, focused sub-components",
	"ARCH-004": "Organize imports: React → External → Internal → Types → Styles",
	"ARCH-005": "Move secrets to .env file and use process.env",
	"ARCH-006": "Use CSS modules, Tailwind classes, or styled-components",
	"ARCH-007": "Define handler functions outside JSX or use useCallback",
	"ARCH-008": "Add explicit TypeScript type annotations",
	"ARCH-009": "Use useRef hook for DOM references",
	"ARCH-010": "Move API calls to service layer",
	"ARCH-011": "Use safe rendering methods or sanitize HTML input",
	"ARCH-012": "Wrap expensive computations in useMemo hook",

	RuleExcessiveProps: "Consider decomposing the component or using a State Management store.",
	RuleLayerBreach:    "Refactor database logic into a dedicated service or repository layer.",
	RuleLooseTyping:    `Replace "any" with a concrete interface or "unknown" if the type is truly dynamic.`,
	RuleEnvAccess:      "Pass configuration values through a context provider or inject them via props.",
	RuleMonolith:       "Decompose this file into smaller, specialized modules or sub-components.",
	RuleDOMMutation:    `Use React "refs" or state management to interact with the DOM safely.`,
	RuleMissingCleanup: "Ensure the useEffect return function clears intervals or removes listeners.",
}

// Suggest returns the remediation text for a rule ID, or
// DefaultSuggestion for unknown IDs.
func Suggest(ruleID string) string {
	if s, ok := suggestions[ruleID]; ok {
		return s
	}
	return DefaultSuggestion
}
