// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/cache"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/events"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/extract"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/graph"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

const (
	// DefaultMaxDepth is the reference blast-radius depth.
	DefaultMaxDepth = 2

	// DefaultOracleTimeout bounds each oracle call made by ValidateChange.
	DefaultOracleTimeout = 30 * time.Second

	// Toxicity deltas for longer and shorter proposed content.
	growthDelta    = 5
	shrinkingDelta = -2
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithExtractor sets the structural extractor used on proposed content.
func WithExtractor(x extract.Extractor) Option {
	return func(a *Analyzer) {
		if x != nil {
			a.extractor = x
		}
	}
}

// WithEnricher sets the semantic oracle. Without one every validation
// runs in degraded mode.
func WithEnricher(e oracle.SemanticEnricher) Option {
	return func(a *Analyzer) {
		a.enricher = e
	}
}

// WithTestOracle sets the test-simulation oracle.
func WithTestOracle(t oracle.TestValidationOracle) Option {
	return func(a *Analyzer) {
		a.tests = t
	}
}

// WithOracleTimeout bounds each oracle call. Non-positive disables the
// analyzer's own timeout.
func WithOracleTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		a.oracleTimeout = d
	}
}

// WithBlastRadiusCache replaces the blast-radius cache.
func WithBlastRadiusCache(c *cache.ContentCache) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.radiusCache = c
		}
	}
}

// WithEvents sets the event sink.
func WithEvents(s events.Sink) Option {
	return func(a *Analyzer) {
		if s != nil {
			a.sink = s
		}
	}
}

// WithLogger sets the analyzer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// Analyzer computes blast radii over an installed dependency graph and
// validates proposed changes.
//
// # Thread Safety
//
// Safe for concurrent use. SetGraph may run concurrently with queries;
// a query sees either the old or the new graph, never a mix.
type Analyzer struct {
	extractor     extract.Extractor
	enricher      oracle.SemanticEnricher
	tests         oracle.TestValidationOracle
	oracleTimeout time.Duration
	radiusCache   *cache.ContentCache
	sink          events.Sink
	logger        *slog.Logger

	mu         sync.RWMutex
	graph      *graph.Graph
	generation uint64

	flight singleflight.Group
}

// NewAnalyzer creates an analyzer with no graph installed.
//
// # Outputs
//
//   - *Analyzer: Uses a line extractor with the built-in rules, an
//     unbounded blast-radius cache, and DefaultOracleTimeout unless
//     options say otherwise.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		extractor:     extract.NewLineExtractor(extract.WithRuleEngine(rules.DefaultEngine())),
		oracleTimeout: DefaultOracleTimeout,
		radiusCache:   cache.New(cache.NameBlastRadius),
		sink:          events.Discard,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetGraph installs g and purges the blast-radius cache.
func (a *Analyzer) SetGraph(g *graph.Graph) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.graph = g
	a.generation++
	a.radiusCache.Purge()
}

// Graph returns the installed graph, or nil.
func (a *Analyzer) Graph() *graph.Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graph
}

// CacheStats returns the blast-radius cache counters.
func (a *Analyzer) CacheStats() cache.Stats {
	return a.radiusCache.Stats()
}

func (a *Analyzer) snapshot() (*graph.Graph, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graph, a.generation
}

// Radius is a computed blast radius.
type Radius struct {
	// Target is the changed file's path.
	Target string `json:"target"`

	// Depth is the hop bound used.
	Depth int `json:"depth"`

	// Paths is the sorted set of affected paths, the target included.
	Paths []string `json:"paths"`

	// Files are the affected files, target first, then the rest in the
	// order they appear in the input snapshot.
	Files []*model.SourceFile `json:"-"`

	// CacheHit reports whether Paths came from the blast-radius cache.
	CacheHit bool `json:"cacheHit"`
}

// BlastRadius returns every file that imports target directly or
// transitively within maxDepth hops, plus target itself.
//
// # Description
//
// The walk follows reverse import edges of the installed graph level by
// level, so the result does not depend on traversal order. When no graph
// is installed one is built from files and installed. The result is
// cached under (target, maxDepth) and is valid while target's content
// hash is unchanged; installing a new graph purges the cache. Concurrent
// calls for the same key share one computation.
//
// # Inputs
//
//   - ctx: Used for tracing and events.
//   - target: Path of the changed file.
//   - files: The current snapshot. Must contain target.
//   - maxDepth: Hop bound. Negative values are treated as 0.
//
// # Outputs
//
//   - Radius: The affected set.
//   - error: ErrTargetNotFound when target is not in files.
func (a *Analyzer) BlastRadius(ctx context.Context, target string, files []*model.SourceFile, maxDepth int) (Radius, error) {
	ctx, span := tracer.Start(ctx, "impact.Analyzer.BlastRadius",
		trace.WithAttributes(
			attribute.String("impact.target", target),
			attribute.Int("impact.max_depth", maxDepth),
		),
	)
	defer span.End()

	if maxDepth < 0 {
		maxDepth = 0
	}
	var targetFile *model.SourceFile
	for _, f := range files {
		if f != nil && f.Path == target {
			targetFile = f
			break
		}
	}
	if targetFile == nil {
		return Radius{}, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}

	g, gen := a.snapshot()
	if g == nil {
		a.SetGraph(graph.NewBuilder(graph.WithLogger(a.logger)).Build(ctx, files))
		g, gen = a.snapshot()
	}

	key := fmt.Sprintf("%s@%d", target, maxDepth)
	hash := cache.ContentHash(targetFile.Content)

	out := Radius{Target: target, Depth: maxDepth}
	if entry, ok := a.radiusCache.Lookup(ctx, key, hash); ok {
		out.Paths = append([]string(nil), entry.BlastRadius...)
		out.CacheHit = true
	} else {
		v, _, _ := a.flight.Do(fmt.Sprintf("%s|%s|%d", key, hash, gen), func() (interface{}, error) {
			paths := walk(g, target, maxDepth)
			a.mu.RLock()
			if a.generation == gen {
				a.radiusCache.Put(key, model.CacheEntry{
					Hash:         hash,
					Timestamp:    time.Now(),
					Dependencies: append([]string(nil), g.Dependents(target)...),
					BlastRadius:  paths,
				})
			}
			a.mu.RUnlock()
			return paths, nil
		})
		out.Paths = append([]string(nil), v.([]string)...)
	}
	out.Files = selectFiles(files, target, out.Paths)

	span.SetAttributes(
		attribute.Int("impact.radius_size", len(out.Paths)),
		attribute.Bool("impact.cache_hit", out.CacheHit),
	)
	recordRadius(ctx, len(out.Paths), out.CacheHit)
	a.sink.Emit(ctx, events.Stamp(events.Event{
		Kind: events.KindBlastRadius,
		Path: target,
		Fields: map[string]any{
			"depth":     maxDepth,
			"size":      len(out.Paths),
			"cache_hit": out.CacheHit,
		},
	}))
	return out, nil
}

// walk is a level-synchronous BFS over reverse import edges.
func walk(g *graph.Graph, target string, maxDepth int) []string {
	visited := map[string]struct{}{target: {}}
	frontier := []string{target}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, dep := range g.Dependents(node) {
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				next = append(next, dep)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	paths := make([]string, 0, len(visited))
	for p := range visited {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func selectFiles(files []*model.SourceFile, target string, paths []string) []*model.SourceFile {
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}
	out := make([]*model.SourceFile, 0, len(paths))
	var head *model.SourceFile
	for _, f := range files {
		if f == nil {
			continue
		}
		if _, ok := want[f.Path]; !ok {
			continue
		}
		delete(want, f.Path)
		if f.Path == target {
			head = f
			continue
		}
		out = append(out, f)
	}
	if head != nil {
		out = append([]*model.SourceFile{head}, out...)
	}
	return out
}

// ValidateChange judges replacing file's content with newContent.
//
// # Description
//
// Local violations come from the structural extractor run on newContent.
// The semantic oracle and the test oracle run concurrently, each bounded
// by the oracle timeout even if it ignores ctx. A panicking oracle counts
// as a failed one. Oracle violations are merged into the local ones
// by (ruleId, line). The change is safe when the oracle says so and no
// merged violation is an error.
//
// If the semantic oracle fails, the verdict uses local findings only:
// Mode is degraded, Safe depends on local violations alone, and Score is
// the rule score of the merged set. A failing test oracle only sets
// TestOracleError. No oracle failure is returned as an error.
//
// # Inputs
//
//   - ctx: Cancels both oracle calls.
//   - file: The file being changed, with its current content.
//   - newContent: The proposed content.
//   - window: The blast radius of file, as returned by BlastRadius.
//   - ruleSet: Rules passed to the semantic oracle.
//
// # Outputs
//
//   - model.ImpactAnalysis: The verdict. Never cached.
//   - error: ErrNilFile only.
func (a *Analyzer) ValidateChange(ctx context.Context, file *model.SourceFile, newContent string, window []*model.SourceFile, ruleSet []rules.Descriptor) (model.ImpactAnalysis, error) {
	if file == nil {
		return model.ImpactAnalysis{}, ErrNilFile
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "impact.Analyzer.ValidateChange",
		trace.WithAttributes(
			attribute.String("impact.file", file.Path),
			attribute.Int("impact.window", len(window)),
		),
	)
	defer span.End()

	local := extract.WithFile(a.extractor.Extract(ctx, newContent, file.Language).Violations, file.Path)

	var (
		verdict    oracle.ImpactVerdict
		verdictErr error
		report     model.TestReport
		reportErr  error
	)
	var eg errgroup.Group
	eg.Go(func() error {
		if a.enricher == nil {
			verdictErr = fmt.Errorf("%w: no semantic oracle configured", oracle.ErrOracleUnavailable)
			return nil
		}
		verdict, verdictErr = oracle.Bounded(ctx, a.oracleTimeout, "analyze_impact",
			func(ctx context.Context) (oracle.ImpactVerdict, error) {
				return a.enricher.AnalyzeImpact(ctx, file.Path, newContent, ruleSet)
			})
		return nil
	})
	eg.Go(func() error {
		if a.tests == nil {
			reportErr = fmt.Errorf("%w: no test oracle configured", oracle.ErrOracleUnavailable)
			return nil
		}
		report, reportErr = oracle.Bounded(ctx, a.oracleTimeout, "run_simulated_suite",
			func(ctx context.Context) (model.TestReport, error) {
				return a.tests.RunSimulatedSuite(ctx, window, newContent)
			})
		return nil
	})
	_ = eg.Wait()

	out := model.ImpactAnalysis{
		CycleDetected: a.inCycle(file.Path),
		ToxicityDelta: ToxicityDelta(file.Content, newContent),
		Mode:          model.AnalysisModeFull,
	}

	windowPaths := make([]string, 0, len(window))
	for _, f := range window {
		if f != nil {
			windowPaths = append(windowPaths, f.Path)
		}
	}

	if verdictErr != nil {
		out.RuleViolations = Merge(local, nil, file.Path)
		out.Safe = !hasError(out.RuleViolations)
		out.Score = rules.Score(out.RuleViolations)
		out.AffectedNodes = unionSorted(windowPaths, nil)
		out.Mode = model.AnalysisModeDegraded
		out.DegradedReason = verdictErr.Error()
		out.Rationale = fmt.Sprintf("Semantic oracle unavailable (%s); verdict based on %d local findings only.",
			verdictErr.Error(), len(out.RuleViolations))
		a.logger.Warn("impact validation degraded",
			slog.String("file_path", file.Path),
			slog.String("error", verdictErr.Error()),
		)
		a.sink.Emit(ctx, events.Stamp(events.Event{
			Kind: events.KindOracleDegraded,
			Path: file.Path,
			Err:  verdictErr,
		}))
	} else {
		out.RuleViolations = Merge(local, verdict.RuleViolations, file.Path)
		out.Safe = verdict.Safe && !hasError(out.RuleViolations)
		out.Score = verdict.Score
		out.AffectedNodes = unionSorted(windowPaths, verdict.AffectedNodes)
		out.Rationale = verdict.Rationale
	}

	if reportErr != nil {
		out.TestOracleError = reportErr.Error()
	} else {
		r := report
		if r.Errors == nil {
			r.Errors = []string{}
		}
		out.TestValidation = &r
	}

	span.SetAttributes(
		attribute.Bool("impact.safe", out.Safe),
		attribute.Bool("impact.degraded", out.Degraded()),
		attribute.Int("impact.violations", len(out.RuleViolations)),
	)
	recordValidate(ctx, time.Since(start), out.Degraded())
	a.sink.Emit(ctx, events.Stamp(events.Event{
		Kind: events.KindChangeValidated,
		Path: file.Path,
		Fields: map[string]any{
			"safe":        out.Safe,
			"mode":        string(out.Mode),
			"violations":  len(out.RuleViolations),
			"duration_ms": time.Since(start).Milliseconds(),
		},
	}))
	return out, nil
}

func (a *Analyzer) inCycle(path string) bool {
	g := a.Graph()
	return g != nil && g.InCycle(path)
}

// ToxicityDelta is +5 when proposed content is longer than the current
// content, -2 when shorter, and 0 when the lengths match.
func ToxicityDelta(current, proposed string) int {
	switch {
	case len(proposed) > len(current):
		return growthDelta
	case len(proposed) < len(current):
		return shrinkingDelta
	default:
		return 0
	}
}

// Merge combines local and oracle violations, deduplicated by
// (ruleId, line).
//
// Local order is kept. On a key collision the oracle's message, and its
// suggestion when present, replace the local ones and the more severe
// severity is kept. Oracle-only violations follow in oracle order.
// Violations without a file get path.
func Merge(local, fromOracle []model.RuleViolation, path string) []model.RuleViolation {
	out := make([]model.RuleViolation, 0, len(local)+len(fromOracle))
	index := make(map[model.ViolationKey]int, len(local)+len(fromOracle))

	for _, v := range local {
		if _, dup := index[v.Key()]; dup {
			continue
		}
		if v.File == "" {
			v.File = path
		}
		index[v.Key()] = len(out)
		out = append(out, v)
	}
	for _, v := range fromOracle {
		if i, dup := index[v.Key()]; dup {
			cur := &out[i]
			if v.Message != "" {
				cur.Message = v.Message
			}
			if v.Suggestion != "" {
				cur.Suggestion = v.Suggestion
			}
			if v.Severity.Rank() > cur.Severity.Rank() {
				cur.Severity = v.Severity
			}
			continue
		}
		if v.File == "" {
			v.File = path
		}
		index[v.Key()] = len(out)
		out = append(out, v)
	}
	return out
}

func hasError(vs []model.RuleViolation) bool {
	for _, v := range vs {
		if v.Severity == model.SeverityError {
			return true
		}
	}
	return false
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
