// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sentinel indexes codebases into dependency graphs and judges
// proposed changes against them.
//
// Usage:
//
//	sentinel index ./my-app
//	sentinel index ./my-app --watch
//	sentinel impact src/api/client.ts --root ./my-app --patch change.diff
//	sentinel impact src/api/client.ts --root ./my-app --content client.next.ts
//	sentinel rules ./my-app
//	sentinel search "session token refresh" --root ./my-app
//	sentinel serve --addr 127.0.0.1:8089
//
// Configuration is read from --config (YAML), then SENTINEL_* environment
// variables. A .env file is loaded first when present, so API keys can
// live there:
//
//	oracle:
//	  provider: gemini
//	  api_key_env: GEMINI_API_KEY
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUnsafe) {
			fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		}
		os.Exit(1)
	}
}
