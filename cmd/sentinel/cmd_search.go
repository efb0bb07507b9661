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
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
)

var (
	searchRoot    string
	searchProject string
	searchLimit   int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Rank files by relevance to a natural-language query",
	Long: `Search indexes the codebase and asks the semantic oracle to rank its
files against the query. The offline static oracle ranks by token
overlap; model-backed oracles rank by meaning.

Examples:
  sentinel search session token refresh --root ./web
  sentinel search "where is billing computed" --limit 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchRoot, "root", ".",
		"Codebase root")
	searchCmd.Flags().StringVar(&searchProject, "project", "",
		"Project ID (default: the root directory name)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10,
		"Maximum results (0 = all)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false,
		"Print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID, _, err := a.indexRoot(ctx, searchRoot, searchProject, false)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")
	results, err := a.svc.Search(ctx, projectID, query)
	if err != nil {
		return err
	}
	if searchLimit > 0 && len(results) > searchLimit {
		results = results[:searchLimit]
	}

	if searchJSON {
		return printJSON(sentinel.SearchResponse{Results: results})
	}
	if len(results) == 0 {
		a.out.Warning("No files matched " + fmt.Sprintf("%q", query))
		return nil
	}
	a.out.Title(fmt.Sprintf("%d results for %q", len(results), query))
	for _, r := range results {
		a.out.KeyValue(fmt.Sprintf("%.2f", r.Score), r.FilePath+"  "+r.Rationale)
	}
	return nil
}
