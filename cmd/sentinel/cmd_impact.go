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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/changeset"
)

// errUnsafe makes the process exit non-zero without printing an error;
// the verdict has already been printed.
var errUnsafe = errors.New("change judged unsafe")

var (
	impactRoot    string
	impactProject string
	impactPatch   string
	impactContent string
	impactDepth   int
	impactJSON    bool
)

var impactCmd = &cobra.Command{
	Use:   "impact [file]",
	Short: "Judge a proposed change to one file",
	Long: `Impact indexes the codebase, computes the blast radius of the file,
and validates the proposed content against local rules, the semantic
oracle, and the simulated test suite.

The proposed content comes from --content (a file holding the new
content) or --patch (a single-file unified diff applied to the current
content). With --patch the file argument may be omitted; the path is
taken from the diff.

The command exits 1 when the change is judged unsafe.

Examples:
  sentinel impact src/api/client.ts --content /tmp/client.ts
  git diff -- src/api/client.ts > change.diff
  sentinel impact --patch change.diff --depth 3 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().StringVar(&impactRoot, "root", ".",
		"Codebase root")
	impactCmd.Flags().StringVar(&impactProject, "project", "",
		"Project ID (default: the root directory name)")
	impactCmd.Flags().StringVar(&impactPatch, "patch", "",
		"Unified diff to apply to the file's current content")
	impactCmd.Flags().StringVar(&impactContent, "content", "",
		"File holding the proposed content")
	impactCmd.Flags().IntVar(&impactDepth, "depth", -1,
		"Blast radius depth (default: impact.max_depth from config)")
	impactCmd.Flags().BoolVar(&impactJSON, "json", false,
		"Print the analysis as JSON")
}

func runImpact(cmd *cobra.Command, args []string) error {
	switch {
	case impactPatch == "" && impactContent == "":
		return errors.New("one of --patch or --content is required")
	case impactPatch != "" && impactContent != "":
		return errors.New("--patch and --content are mutually exclusive")
	}

	var (
		target string
		change *changeset.Change
	)
	if len(args) == 1 {
		target = normalizePath(args[0])
	}
	if impactPatch != "" {
		data, err := os.ReadFile(impactPatch)
		if err != nil {
			return err
		}
		change, err = changeset.Parse(string(data))
		if err != nil {
			return err
		}
		if target == "" {
			target = change.Path
		}
	}
	if target == "" {
		return errors.New("file argument is required with --content")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID, _, err := a.indexRoot(ctx, impactRoot, impactProject, false)
	if err != nil {
		return err
	}

	newContent, err := a.proposedContent(projectID, target, change)
	if err != nil {
		return err
	}

	res, err := a.svc.Impact(ctx, projectID, target, newContent, impactDepth)
	if err != nil {
		return err
	}

	if impactJSON {
		if err := printJSON(sentinel.ImpactResponse{Analysis: res.Analysis, BlastRadius: res.BlastRadius}); err != nil {
			return err
		}
	} else {
		a.printImpact(target, res)
	}
	if !res.Analysis.Safe {
		return errUnsafe
	}
	return nil
}

func (a *app) proposedContent(projectID, target string, change *changeset.Change) (string, error) {
	if change == nil {
		data, err := os.ReadFile(impactContent)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	files, err := a.svc.Files(projectID)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Path == target {
			return change.Apply(f.Content)
		}
	}
	return "", fmt.Errorf("%s is not part of the indexed snapshot", target)
}

func (a *app) printImpact(target string, res sentinel.ImpactResult) {
	an := res.Analysis
	a.out.Title("Impact of " + target)
	a.out.Verdict(an.Safe, an.Score, an.Degraded())
	a.out.KeyValue(
		"blast radius", fmt.Sprintf("%d files (depth %d)", len(res.BlastRadius.Paths), res.BlastRadius.Depth),
		"cycle", fmt.Sprint(an.CycleDetected),
		"toxicity delta", fmt.Sprintf("%+d", an.ToxicityDelta),
		"cache hit", fmt.Sprint(an.CacheHit),
	)
	if len(an.AffectedNodes) > 0 {
		a.out.Info("Affected: " + strings.Join(an.AffectedNodes, ", "))
	}
	for _, v := range an.RuleViolations {
		a.out.Finding(string(v.Severity), v.RuleID, fmt.Sprintf("%s:%d", v.File, v.Line), v.Message)
	}
	if tv := an.TestValidation; tv != nil {
		a.out.Info(fmt.Sprintf("Simulated tests: %d of %d passed", tv.Passed, tv.Total))
	} else if an.TestOracleError != "" {
		a.out.Warning("Test oracle unavailable: " + an.TestOracleError)
	}
	if an.Rationale != "" {
		a.out.Box("Rationale", an.Rationale)
	}
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}
