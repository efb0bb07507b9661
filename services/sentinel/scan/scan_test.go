// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func paths(files []*model.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestLoad(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.ts":                 "import { b } from './b';\n",
		"src/b.tsx":                "export const B = () => null;\n",
		"lib/tool.py":              "import os\n",
		"README.md":                "# readme\n",
		"node_modules/x/index.js":  "module.exports = 1;\n",
		".git/hooks/pre-commit.js": "// hook\n",
		"dist/bundle.js":           "var a;\n",
		"build/out.js":             "var b;\n",
		"src/build.ts":             "export const build = 1;\n",
		"bin/blob.js":              "ab\x00cd",
	})

	files, err := Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/tool.py", "src/a.ts", "src/b.tsx", "src/build.ts"}, paths(files))

	a := files[1]
	assert.Equal(t, "a.ts", a.Name)
	assert.Equal(t, model.LanguageTypeScript, a.Language)
	assert.Equal(t, "import { b } from './b';\n", a.Content)
	assert.Nil(t, a.Metadata)
}

func TestLoad_MaxFileSize(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.ts": "x",
		"large.ts": strings.Repeat("x", 64),
	})
	files, err := Load(context.Background(), root, WithMaxFileSize(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"small.ts"}, paths(files))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrRootRequired)

	root := writeTree(t, map[string]string{"a.ts": ""})
	_, err = Load(context.Background(), filepath.Join(root, "a.ts"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Load(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	root := writeTree(t, map[string]string{"src/a.ts": "export const a = 1;\n", "notes.txt": "hi"})

	f, err := LoadFile(root, "src/a.ts")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "src/a.ts", f.Path)

	f, err = LoadFile(root, "notes.txt")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = LoadFile(root, "src/gone.ts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIncluded(t *testing.T) {
	assert.True(t, Included("src/a.ts"))
	assert.True(t, Included("main.go"))
	assert.False(t, Included("node_modules/react/index.js"))
	assert.False(t, Included("app/dist/a.js"))
	assert.False(t, Included("docs/readme.md"))
	assert.True(t, SkipDir(".git"))
	assert.False(t, SkipDir("src"))
}
