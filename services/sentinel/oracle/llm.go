// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// searchSnippetLimit caps how much of each file is sent with a search.
const searchSnippetLimit = 500

// JSONGenerator is a model backend that answers a prompt plus a JSON
// input document with a JSON document.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Name() string
}

const (
	enrichPrompt = `Analyze this source file. Identify its exports, its imports, and its core architectural intent.
Respond with a JSON object: {"tier": one of "Architectural"|"Module"|"Implementation"|"Infrastructure",
"metadata": {"exports": [string], "imports": [{"source": string}], "roleSummary": string,
"securityVulnerabilityCount": number}}.`

	impactPrompt = `You are a senior architect auditing a codebase. Analyze the impact of the proposed content for the named file.
1. Audit for prop drilling: data passed through too many layers without a context or store.
2. Enforce layer isolation: UI components must not perform database calls or read environment variables.
3. Strict types: flag any use of 'any' or 'unknown' that masks intent.
Evaluate the project rules given in the input. Respond with a JSON object:
{"safe": boolean, "score": number 0-100, "affectedNodes": [string], "rationale": string,
"ruleViolations": [{"ruleId": string, "severity": "error"|"warning"|"info", "message": string, "line": number, "suggestion": string}]}.`

	testPrompt = `Perform a test scrutiny of the proposed change against the listed nodes.
Respond with a JSON object: {"totalTestsRun": number, "passRate": number,
"results": [{"suite": string, "status": "passed"|"failed"|"skipped", "error": string}]}.`

	searchPrompt = `Rank the files in the input by semantic relevance to the query.
Respond with a JSON object: {"results": [{"filePath": string, "score": number 0-1, "rationale": string}]}, best first.`
)

// LLM is an Oracle that asks a language model through a JSONGenerator.
//
// # Thread Safety
//
// LLM is safe for concurrent use if its generator is.
type LLM struct {
	gen    JSONGenerator
	logger *slog.Logger
}

// NewLLM creates an LLM oracle over gen.
func NewLLM(gen JSONGenerator, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{gen: gen, logger: logger.With(slog.String("oracle", gen.Name()))}
}

type enrichResponse struct {
	Tier     string        `json:"tier"`
	Metadata MetadataPatch `json:"metadata"`
}

// Enrich implements SemanticEnricher.
func (o *LLM) Enrich(ctx context.Context, file *model.SourceFile) (Enrichment, error) {
	if file == nil {
		return Enrichment{}, fmt.Errorf("%w: nil file", ErrInvalidResponse)
	}
	input := map[string]any{
		"file":     file.Path,
		"language": file.Language,
		"content":  file.Content,
	}
	var resp enrichResponse
	if err := o.generate(ctx, enrichPrompt, input, &resp); err != nil {
		return Enrichment{}, err
	}

	tier := model.Tier(strings.TrimSpace(resp.Tier))
	if tier == "" {
		tier = model.TierImplementation
	}
	if !tier.Valid() {
		return Enrichment{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidResponse, resp.Tier)
	}
	imports := resp.Metadata.Imports[:0:0]
	for _, imp := range resp.Metadata.Imports {
		if s := strings.TrimSpace(imp.Source); s != "" {
			imports = append(imports, model.Import{Source: s})
		}
	}
	resp.Metadata.Imports = imports
	return Enrichment{Tier: tier, Patch: resp.Metadata}, nil
}

// AnalyzeImpact implements SemanticEnricher.
func (o *LLM) AnalyzeImpact(ctx context.Context, fileName, newContent string, ruleSet []rules.Descriptor) (ImpactVerdict, error) {
	input := map[string]any{
		"fileName":        fileName,
		"rules":           ruleSet,
		"proposedContent": newContent,
	}
	var v ImpactVerdict
	if err := o.generate(ctx, impactPrompt, input, &v); err != nil {
		return ImpactVerdict{}, err
	}

	v.Score = clamp(v.Score, 0, 100)
	kept := v.RuleViolations[:0]
	for _, rv := range v.RuleViolations {
		if strings.TrimSpace(rv.RuleID) == "" {
			continue
		}
		if !rv.Severity.Valid() {
			rv.Severity = model.SeverityWarning
		}
		if rv.Line < 1 {
			rv.Line = 1
		}
		kept = append(kept, rv)
	}
	v.RuleViolations = kept
	return v, nil
}

type testResponse struct {
	TotalTestsRun int     `json:"totalTestsRun"`
	PassRate      float64 `json:"passRate"`
	Results       []struct {
		Suite  string `json:"suite"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"results"`
}

// RunSimulatedSuite implements TestValidationOracle.
func (o *LLM) RunSimulatedSuite(ctx context.Context, window []*model.SourceFile, newContent string) (model.TestReport, error) {
	nodes := make([]string, 0, len(window))
	for _, f := range window {
		if f != nil {
			nodes = append(nodes, f.Path)
		}
	}
	input := map[string]any{"proposal": newContent, "nodes": nodes}

	var resp testResponse
	if err := o.generate(ctx, testPrompt, input, &resp); err != nil {
		return model.TestReport{}, err
	}
	return resp.report(), nil
}

// report folds the model's answer into a TestReport. Explicit results win
// over the aggregate pass rate, which may be a fraction or a percentage.
func (r testResponse) report() model.TestReport {
	out := model.TestReport{Errors: []string{}}
	if len(r.Results) > 0 {
		out.Total = len(r.Results)
		for _, res := range r.Results {
			switch strings.ToLower(res.Status) {
			case "passed":
				out.Passed++
			case "failed":
				msg := res.Error
				if msg == "" {
					msg = "failed"
				}
				if res.Suite != "" {
					msg = res.Suite + ": " + msg
				}
				out.Errors = append(out.Errors, msg)
			}
		}
		if r.TotalTestsRun > out.Total {
			out.Passed += r.TotalTestsRun - out.Total
			out.Total = r.TotalTestsRun
		}
		return out
	}

	out.Total = max(r.TotalTestsRun, 0)
	rate := r.PassRate
	if rate > 1 {
		rate /= 100
	}
	out.Passed = clamp(int(math.Round(rate*float64(out.Total))), 0, out.Total)
	return out
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// SemanticSearch implements SemanticEnricher. Results naming files that
// are not in files are dropped.
func (o *LLM) SemanticSearch(ctx context.Context, query string, files []*model.SourceFile) ([]SearchResult, error) {
	type doc struct {
		Path    string     `json:"path"`
		Tier    model.Tier `json:"tier,omitempty"`
		Snippet string     `json:"snippet"`
	}
	known := make(map[string]struct{}, len(files))
	docs := make([]doc, 0, len(files))
	for _, f := range files {
		if f == nil {
			continue
		}
		known[f.Path] = struct{}{}
		snippet := f.Content
		if len(snippet) > searchSnippetLimit {
			snippet = snippet[:searchSnippetLimit]
		}
		docs = append(docs, doc{Path: f.Path, Tier: f.Tier, Snippet: snippet})
	}

	var resp searchResponse
	if err := o.generate(ctx, searchPrompt, map[string]any{"query": query, "files": docs}, &resp); err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if _, ok := known[r.FilePath]; ok {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (o *LLM) generate(ctx context.Context, prompt string, input any, dst any) error {
	raw, err := o.gen.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(stripFences(raw), dst); err != nil {
		o.logger.Debug("undecodable oracle response", slog.Int("bytes", len(raw)))
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

func sortResults(rs []SearchResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		return rs[i].FilePath < rs[j].FilePath
	})
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// marshalInput renders the input document appended to every prompt.
func marshalInput(prompt string, input any) (string, error) {
	in, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal oracle input: %w", err)
	}
	return prompt + "\n\n[INPUT JSON]\n" + string(in), nil
}
