// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan loads a codebase snapshot from disk.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// DefaultMaxFileSize is the largest file loaded, in bytes.
const DefaultMaxFileSize = 1 << 20

var (
	// ErrRootRequired is returned when no root directory is given.
	ErrRootRequired = errors.New("root directory is required")

	// ErrNotDirectory is returned when the root is not a directory.
	ErrNotDirectory = errors.New("root is not a directory")
)

// skippedDirs are directory names never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
}

// SkipDir reports whether a directory with this base name is excluded
// from snapshots.
func SkipDir(name string) bool {
	return skippedDirs[name]
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	maxFileSize int64
	logger      *slog.Logger
}

// WithMaxFileSize sets the size limit. Larger files are skipped.
func WithMaxFileSize(n int64) Option {
	return func(l *loader) {
		if n > 0 {
			l.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Load walks root and returns every source file of a known language.
//
// # Description
//
// Paths are relative to root with forward slashes, in lexical walk
// order. Excluded directories (see SkipDir), files over the size limit,
// binary files, and unreadable files are skipped; unreadable entries are
// logged at Debug.
//
// # Inputs
//
//   - ctx: Checked once per walked entry.
//   - root: Directory to load.
//
// # Outputs
//
//   - []*model.SourceFile: The snapshot, possibly empty.
//   - error: ErrRootRequired, ErrNotDirectory, a stat error, or the
//     context error.
func Load(ctx context.Context, root string, opts ...Option) ([]*model.SourceFile, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	l := &loader{maxFileSize: DefaultMaxFileSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var files []*model.SourceFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			l.logger.Debug("skipping unreadable entry", slog.String("path", p), slog.String("error", walkErr.Error()))
			return nil
		}
		if d.IsDir() {
			if p != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		f, err := l.read(root, filepath.ToSlash(rel))
		if err != nil {
			l.logger.Debug("skipping file", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		if f != nil {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// LoadFile reads one file of a snapshot rooted at root. rel uses forward
// slashes. It returns (nil, nil) when the file is not a loadable source
// file.
func LoadFile(root, rel string, opts ...Option) (*model.SourceFile, error) {
	l := &loader{maxFileSize: DefaultMaxFileSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l.read(root, rel)
}

// Included reports whether rel would be part of a snapshot, judging by
// its directories and language only.
func Included(rel string) bool {
	dir := filepath.Dir(filepath.FromSlash(rel))
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if SkipDir(filepath.Base(dir)) {
			return false
		}
		dir = filepath.Dir(dir)
	}
	return model.DetectLanguage(rel) != model.LanguageUnknown
}

func (l *loader) read(root, rel string) (*model.SourceFile, error) {
	if model.DetectLanguage(rel) == model.LanguageUnknown {
		return nil, nil
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.Size() > l.maxFileSize {
		return nil, nil
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, nil
	}
	return model.NewSourceFile(rel, string(data)), nil
}
