// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func execute(t *testing.T, args ...string) error {
	t.Helper()
	// Flag variables are package globals; reset the ones tests touch.
	impactPatch, impactContent, impactProject = "", "", ""
	impactDepth, impactJSON = -1, false
	rulesJSON = false
	rootCmd.SetArgs(append(args, "--output", "plain", "--env-file", "", "--log-level", "error"))
	return rootCmd.Execute()
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "src/a.ts", normalizePath("./src/a.ts"))
	assert.Equal(t, "src/a.ts", normalizePath(`src\a.ts`))
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SENTINEL_TEST_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SENTINEL_TEST_KEY") })
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("SENTINEL_TEST_KEY"))
}

func TestRulesCommand(t *testing.T) {
	require.NoError(t, execute(t, "rules"))

	root := writeTree(t, map[string]string{"src/a.ts": "export const a = 1;\n"})
	require.NoError(t, execute(t, "rules", root, "--json"))
}

func TestImpactCommand(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.ts": "import { b } from './b';\nexport const a = b;\n",
		"src/b.ts": "export const b = 1;\n",
	})
	safe := filepath.Join(t.TempDir(), "b.next.ts")
	require.NoError(t, os.WriteFile(safe, []byte("export const b = 2;\n"), 0o644))
	unsafe := filepath.Join(t.TempDir(), "b.bad.ts")
	require.NoError(t, os.WriteFile(unsafe, []byte("export const B = () => <div dangerouslySetInnerHTML={{ __html: x }} />;\n"), 0o644))

	require.NoError(t, execute(t, "impact", "src/b.ts", "--root", root, "--content", safe))
	assert.ErrorIs(t, execute(t, "impact", "src/b.ts", "--root", root, "--content", unsafe), errUnsafe)
}

func TestImpactCommand_Patch(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/b.ts": "export const b = 1;\n",
	})
	patch := filepath.Join(t.TempDir(), "change.diff")
	require.NoError(t, os.WriteFile(patch, []byte(`--- a/src/b.ts
+++ b/src/b.ts
@@ -1 +1 @@
-export const b = 1;
+export const b = 2;
`), 0o644))

	require.NoError(t, execute(t, "impact", "--root", root, "--patch", patch, "--json"))
}

func TestImpactCommand_RequiresContent(t *testing.T) {
	assert.Error(t, execute(t, "impact", "src/b.ts"))
}
