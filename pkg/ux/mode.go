// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output for the sentinel tools.
//
// A Printer writes either rich output (colors, icons, boxes) or plain
// line-oriented output suitable for scripts. The mode is chosen from the
// SENTINEL_OUTPUT environment variable, falling back to rich output on
// a terminal and plain output otherwise.
package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// EnvOutput names the environment variable that forces an output mode.
const EnvOutput = "SENTINEL_OUTPUT"

// Mode selects how much styling a Printer applies.
type Mode string

const (
	// ModeRich uses colors, icons, and boxes.
	ModeRich Mode = "rich"

	// ModePlain prints tab-separated lines with uppercase status tags.
	ModePlain Mode = "plain"
)

// ParseMode converts a string to a Mode. Unknown values are plain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich
	default:
		return ModePlain
	}
}

// DetectMode picks the mode for w: the EnvOutput override when set,
// otherwise rich on a terminal and plain for pipes and files.
func DetectMode(w io.Writer, lookup func(string) (string, bool)) Mode {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvOutput); ok && v != "" {
		return ParseMode(v)
	}
	if IsTerminal(w) {
		return ModeRich
	}
	return ModePlain
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
