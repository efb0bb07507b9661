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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/index"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/watch"
)

var (
	indexProject  string
	indexWatch    bool
	indexDebounce time.Duration
	indexJSON     bool
)

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Index a codebase into a dependency graph",
	Long: `Index loads every source file under root (default: the current
directory), skipping node_modules, .git, dist, and build, and builds the
dependency graph.

With --watch the command keeps running and re-indexes whenever source
files change. Unchanged files stay cache hits.

Examples:
  sentinel index
  sentinel index ./web --json
  sentinel index ./web --watch --debounce 1s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexProject, "project", "",
		"Project ID (default: the root directory name)")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false,
		"Re-index on file changes until interrupted")
	indexCmd.Flags().DurationVar(&indexDebounce, "debounce", watch.DefaultDebounce,
		"Quiet period before a batch of changes is re-indexed")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false,
		"Print the graph and stats as JSON")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	projectID, res, err := a.indexRoot(ctx, root, indexProject, !indexJSON)
	if err != nil {
		return err
	}

	if indexJSON {
		if err := printJSON(sentinel.IndexResponse{
			ProjectID: projectID,
			Nodes:     res.Graph.Nodes,
			Links:     res.Graph.Links,
			Stats:     res.Stats,
		}); err != nil {
			return err
		}
	} else {
		a.printIndexSummary(projectID, res.Stats)
	}

	if !indexWatch {
		return nil
	}
	return a.watchAndReindex(ctx, projectID, indexDebounce)
}

func (a *app) printIndexSummary(projectID string, s index.Stats) {
	a.out.Success(fmt.Sprintf("Indexed %s: %d files in %s", projectID, s.Files, s.Duration.Round(time.Millisecond)))
	a.out.KeyValue(
		"nodes", fmt.Sprint(s.Nodes),
		"links", fmt.Sprint(s.Links),
		"cycles", fmt.Sprint(s.Cycles),
		"indexed", fmt.Sprint(s.Indexed),
		"cache hits", fmt.Sprint(s.CacheHits),
		"artifacts", fmt.Sprint(s.ArtifactHits),
		"fallbacks", fmt.Sprint(s.Fallbacks),
		"failed", fmt.Sprint(s.Failed),
	)
	if s.Failed > 0 {
		a.out.Warning(fmt.Sprintf("%d files could not be indexed; see the log for details", s.Failed))
	}
}

// watchAndReindex blocks until ctx is done, re-indexing the project
// after each debounced batch of changes.
func (a *app) watchAndReindex(ctx context.Context, projectID string, debounce time.Duration) error {
	root, err := a.svc.Root(projectID)
	if err != nil {
		return err
	}
	files, err := a.svc.Files(projectID)
	if err != nil {
		return err
	}

	handler := func(ctx context.Context, changes []watch.Change) {
		next, err := watch.Sync(root, files, changes)
		if err != nil {
			a.logger.Warn("reload changed files", slog.String("error", err.Error()))
			return
		}
		res, err := a.svc.IndexFiles(ctx, projectID, next, nil)
		if err != nil {
			a.logger.Warn("re-index failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
			return
		}
		files = next
		a.out.Info(fmt.Sprintf("%d changed, %d files re-indexed, %d cache hits, %d links",
			len(changes), res.Stats.Indexed, res.Stats.CacheHits, res.Stats.Links))
	}

	w, err := watch.New(root, handler, watch.WithDebounce(debounce), watch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.out.Info(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", root))

	<-ctx.Done()
	w.Stop()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
