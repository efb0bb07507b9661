// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ArchLens palette.
var (
	ColorPrimary = lipgloss.Color("#4C8BF5")
	ColorAccent  = lipgloss.Color("#7FB3FF")
	ColorBorder  = lipgloss.Color("#2E4A7A")
	ColorMuted   = lipgloss.Color("#6B7A90")

	ColorSuccess = lipgloss.Color("#3CCB7F")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorInfo    = lipgloss.Color("#5DADE2")
)

// Styles are the pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Key     lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Info:    lipgloss.NewStyle().Foreground(ColorInfo),
	Key:     lipgloss.NewStyle().Foreground(ColorAccent),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconInfo    Icon = "ℹ"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with its status color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconInfo:
		return Styles.Info.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled output to one writer.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a printer. An empty mode is detected from w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = DetectMode(w, nil)
	}
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

func (p *Printer) rich() bool {
	return p.mode == ModeRich
}

// Title prints a heading. Plain mode omits it.
func (p *Printer) Title(text string) {
	if !p.rich() {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, "OK", Styles.Success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, "WARN", Styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status(IconError, "ERROR", Styles.Error, text)
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if !p.rich() {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

func (p *Printer) status(icon Icon, tag string, style lipgloss.Style, text string) {
	if !p.rich() {
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
}

// KeyValue prints aligned key/value pairs in the given order. pairs
// alternates keys and values; a trailing key without a value is
// dropped.
func (p *Printer) KeyValue(pairs ...string) {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		if len(pairs[i]) > width {
			width = len(pairs[i])
		}
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if !p.rich() {
			fmt.Fprintf(p.w, "%s\t%s\n", pairs[i], pairs[i+1])
			continue
		}
		key := pairs[i] + ":" + strings.Repeat(" ", width-len(pairs[i]))
		fmt.Fprintf(p.w, "  %s %s\n", Styles.Key.Render(key), pairs[i+1])
	}
}

// Finding prints one rule finding. severity is "error", "warning", or
// "info"; location is typically path:line.
func (p *Printer) Finding(severity, ruleID, location, message string) {
	if !p.rich() {
		fmt.Fprintf(p.w, "%s\t%s\t%s\t%s\n", strings.ToUpper(severity), ruleID, location, message)
		return
	}
	icon, style := IconInfo, Styles.Info
	switch severity {
	case "error":
		icon, style = IconError, Styles.Error
	case "warning":
		icon, style = IconWarning, Styles.Warning
	}
	fmt.Fprintf(p.w, "%s %s %s %s\n",
		icon.Render(),
		style.Render(ruleID),
		Styles.Muted.Render(location),
		message,
	)
}

// Box prints content under a title in a rounded box.
func (p *Printer) Box(title, content string) {
	if !p.rich() {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
}

// Verdict prints the outcome of an impact analysis.
func (p *Printer) Verdict(safe bool, score int, degraded bool) {
	label := "SAFE"
	if !safe {
		label = "UNSAFE"
	}
	if !p.rich() {
		fmt.Fprintf(p.w, "VERDICT\t%s\tscore=%d\tdegraded=%t\n", label, score, degraded)
		return
	}
	style, box := Styles.Success, Styles.Box
	if !safe {
		style, box = Styles.Error, Styles.ErrorBox
	}
	body := fmt.Sprintf("%s  score %d/100", style.Bold(true).Render(label), score)
	if degraded {
		body += "\n" + Styles.Warning.Render("semantic oracle unavailable: local findings only")
	}
	fmt.Fprintln(p.w, box.Render(body))
}

// Progress prints one progress update. Rich mode redraws a single line.
func (p *Printer) Progress(percent int, message string) {
	if !p.rich() {
		fmt.Fprintf(p.w, "PROGRESS\t%d\t%s\n", percent, message)
		return
	}
	end := ""
	if percent >= 100 {
		end = "\n"
	}
	fmt.Fprintf(p.w, "\r%s %s%s", ProgressBar(percent, 100, 24), Styles.Muted.Render(message), end)
}

// ProgressBar renders a bar of width cells for current/total.
func ProgressBar(current, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
