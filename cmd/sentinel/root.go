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
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	configPath string
	envFile    string
	logLevel   string
	jsonLogs   bool
	outputMode string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Architecture-aware indexing and change impact analysis",
	Long: `Sentinel builds a dependency graph of a codebase, attaches structural
metadata and rule findings to every file, and judges proposed changes by
their blast radius, rule violations, and a semantic oracle.

Indexing is incremental: files whose content did not change are served
from the content-addressed cache or the artifact store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Load environment variables from this file when it exists")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output style: rich or plain (default: rich on a terminal)")

	rootCmd.AddCommand(indexCmd, impactCmd, rulesCmd, searchCmd, serveCmd)
}
