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
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/scan"
)

var rulesJSON bool

var rulesCmd = &cobra.Command{
	Use:   "rules [root]",
	Short: "List rules, or evaluate them over a codebase",
	Long: `Without a root, rules lists every registered rule, custom rules from
rules.custom_rules_file included. With a root, it evaluates every rule
over the codebase and prints the findings and the architectural score.

Examples:
  sentinel rules
  sentinel rules ./web --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false,
		"Print as JSON")
}

func runRules(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		descs := a.engine.Descriptors()
		if rulesJSON {
			return printJSON(sentinel.RulesResponse{Rules: descs})
		}
		a.out.Title(fmt.Sprintf("%d rules", len(descs)))
		for _, d := range descs {
			a.out.Finding(string(d.Severity), d.ID, string(d.Category), d.Name)
		}
		return nil
	}

	files, err := scan.Load(ctx, args[0], scan.WithLogger(a.logger))
	if err != nil {
		return err
	}
	report := a.engine.Report(files)
	if rulesJSON {
		return printJSON(report)
	}
	a.printReport(report)
	return nil
}

func (a *app) printReport(r rules.Report) {
	a.out.Title("Architecture report")
	for _, v := range r.Violations {
		a.out.Finding(string(v.Severity), v.RuleID, fmt.Sprintf("%s:%d", v.File, v.Line), v.Message)
	}
	a.out.KeyValue(
		"files", fmt.Sprint(r.FilesScanned),
		"rules", fmt.Sprint(r.RulesApplied),
		"findings", fmt.Sprint(len(r.Violations)),
		"score", fmt.Sprintf("%d/100", r.ArchitecturalScore),
	)
}
