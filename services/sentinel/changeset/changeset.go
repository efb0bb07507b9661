// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changeset turns a unified diff into the proposed content of a
// file, for impact validation of patches.
package changeset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

var (
	// ErrEmptyPatch is returned when the patch contains no file diff.
	ErrEmptyPatch = errors.New("patch contains no file diff")

	// ErrMultipleFiles is returned when the patch touches more than one
	// file.
	ErrMultipleFiles = errors.New("patch touches more than one file")

	// ErrHunkMismatch is returned when a hunk's context or removed lines
	// do not match the original content.
	ErrHunkMismatch = errors.New("hunk does not match original content")
)

const devNull = "/dev/null"

// Change is a parsed single-file patch.
type Change struct {
	// Path is the patched file's path without the a/ or b/ prefix.
	Path string

	// Created and Deleted report file creation and removal.
	Created bool
	Deleted bool

	fd *diff.FileDiff
}

// Parse parses a single-file unified diff.
func Parse(patch string) (*Change, error) {
	fds, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	switch {
	case len(fds) == 0:
		return nil, ErrEmptyPatch
	case len(fds) > 1:
		return nil, fmt.Errorf("%w: %d files", ErrMultipleFiles, len(fds))
	}
	fd := fds[0]
	c := &Change{
		Created: fd.OrigName == devNull,
		Deleted: fd.NewName == devNull,
		fd:      fd,
	}
	if c.Deleted {
		c.Path = stripPrefix(fd.OrigName)
	} else {
		c.Path = stripPrefix(fd.NewName)
	}
	return c, nil
}

// Apply applies a single-file unified diff to original and returns the
// new content. A deleted file yields empty content.
func Apply(original, patch string) (string, error) {
	c, err := Parse(patch)
	if err != nil {
		return "", err
	}
	return c.Apply(original)
}

// Apply applies the change to original. Every context and removed line
// must match the original exactly.
func (c *Change) Apply(original string) (string, error) {
	if c.Deleted {
		return "", nil
	}

	var orig []string
	if original != "" && !c.Created {
		orig = strings.Split(original, "\n")
	}
	out := make([]string, 0, len(orig))
	pos := 0
	noEOL := false

	for n, h := range c.fd.Hunks {
		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			// An empty original range inserts after line OrigStartLine.
			start = int(h.OrigStartLine)
		}
		if start < 0 {
			start = 0
		}
		if start < pos || start > len(orig) {
			return "", fmt.Errorf("%w: hunk %d starts at line %d", ErrHunkMismatch, n+1, h.OrigStartLine)
		}
		out = append(out, orig[pos:start]...)
		pos = start

		body := string(h.Body)
		if strings.HasSuffix(body, "\n") {
			body = body[:len(body)-1]
		} else {
			// The parser drops the final newline when the new side has none.
			noEOL = true
		}
		if body == "" {
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			if line == "" {
				line = " "
			}
			op, text := line[0], line[1:]
			switch op {
			case '+':
				out = append(out, text)
			case '-', ' ':
				if pos >= len(orig) || orig[pos] != text {
					return "", fmt.Errorf("%w: hunk %d at original line %d", ErrHunkMismatch, n+1, pos+1)
				}
				if op == ' ' {
					out = append(out, text)
				}
				pos++
			case '\\':
				noEOL = true
			default:
				return "", fmt.Errorf("%w: hunk %d has malformed line %q", ErrHunkMismatch, n+1, line)
			}
		}
	}
	out = append(out, orig[pos:]...)
	if c.Created && len(out) > 0 && !noEOL {
		out = append(out, "")
	}
	return strings.Join(out, "\n"), nil
}

func stripPrefix(name string) string {
	for _, p := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}
