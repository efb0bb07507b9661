// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// linePatterns are the per-language line matchers. Each import regex
// captures the import source in its first non-empty group; each
// declaration regex captures the declared name.
type linePatterns struct {
	imports      []*regexp.Regexp
	exports      *regexp.Regexp
	declarations []*regexp.Regexp
}

var (
	scriptPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:type\s+)?(?:.*?\s+from\s+)?['"]([^'"]+)['"]`),
			regexp.MustCompile(`^\s*export\s+(?:type\s+)?(?:\*|\{[^}]*\})(?:\s+as\s+\w+)?\s+from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
			regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		},
		exports: regexp.MustCompile(`^\s*export\s+(?:const|function|class|type|interface|default|async|enum|let|abstract)\b`),
		declarations: []*regexp.Regexp{
			regexp.MustCompile(`(?:function\*?|class|const|let)\s+([A-Za-z0-9_$]+)\s*(?:=|[:(<{]|\bextends\b|\bimplements\b)`),
		},
	}

	pythonPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
			regexp.MustCompile(`^\s*import\s+([\w.]+)`),
		},
		declarations: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:async\s+)?(?:def|class)\s+(\w+)`),
		},
	}

	javaPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.*]+)\s*;`),
		},
		exports: regexp.MustCompile(`^\s*public\s+(?:final\s+|abstract\s+)?(?:class|interface|enum|record)\b`),
		declarations: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:class|interface|enum|record)\s+(\w+)`),
		},
	}

	goPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:\w+\s+)?"([^"]+)"`),
		},
		exports: regexp.MustCompile(`^(?:func(?:\s+\([^)]*\))?|type|var|const)\s+[A-Z]\w*`),
		declarations: []*regexp.Regexp{
			regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)`),
			regexp.MustCompile(`^type\s+(\w+)`),
		},
	}

	terraformPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*source\s*=\s*"([^"]+)"`),
		},
		declarations: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:resource|module|data)\s+"(?:[^"]+"\s+")?([^"]+)"`),
		},
	}

	dockerPatterns = &linePatterns{
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*FROM\s+(?:--platform=\S+\s+)?(\S+)`),
		},
	}

	// goImportSpecRe matches one spec inside a parenthesised Go import block.
	goImportSpecRe = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
)

func patternsFor(lang model.Language) *linePatterns {
	switch lang {
	case model.LanguageTypeScript, model.LanguageJavaScript, model.LanguageUnknown, "":
		return scriptPatterns
	case model.LanguagePython:
		return pythonPatterns
	case model.LanguageJava:
		return javaPatterns
	case model.LanguageGo:
		return goPatterns
	case model.LanguageTerraform:
		return terraformPatterns
	case model.LanguageDockerfile:
		return dockerPatterns
	default:
		return scriptPatterns
	}
}

// reservedNames are captured by the declaration matcher but are not
// declarations.
var reservedNames = map[string]struct{}{
	"import": {},
	"from":   {},
	"export": {},
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Heuristic markers.
var (
	uiMarkers          = []string{"React", "JSX", "Component", "View"}
	persistenceMarkers = []string{"database", "prisma", "mongodb", "mongoose", "sql", "typeorm"}
	looseTypeMarkers   = []string{": any", "<any>", "as any"}
	envMarkers         = []string{"process.env", "import.meta.env"}
	domMarkers         = []string{"document.get", "document.query", ".innerHTML"}
	effectMarkers      = []string{"setInterval", "setTimeout", "addEventListener", ".subscribe("}
	teardownMarkers    = []string{"return () =>", "return ()=>", "return function"}
	securityMarkers    = []string{"eval(", "dangerouslySetInnerHTML"}
	loggingMarkers     = []string{"console.", "logger.", "log.", "slog.", "logging."}
)

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// IsUIContent reports whether content carries UI framework markers.
func IsUIContent(content string) bool {
	return containsAny(content, uiMarkers)
}
