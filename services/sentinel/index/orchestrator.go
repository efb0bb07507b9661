// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/cache"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/events"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/extract"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/graph"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/storage"
)

const (
	// DefaultBatchSize is the reference number of files processed
	// concurrently per batch.
	DefaultBatchSize = 3

	// DefaultEnrichTimeout bounds each semantic enrichment call.
	DefaultEnrichTimeout = 30 * time.Second
)

// Progress is reported after each batch completes.
type Progress struct {
	// Percent is the share of files processed so far, 0-100.
	Percent int `json:"percent"`

	// Message is a human-readable status line.
	Message string `json:"message"`

	// Processed is the number of files handled so far.
	Processed int `json:"processed"`

	// Total is the number of files in the run.
	Total int `json:"total"`
}

// ProgressFunc receives progress updates. It is called from the
// goroutine running Index, never concurrently.
type ProgressFunc func(Progress)

// Stats summarizes one indexing run.
type Stats struct {
	RunID        string        `json:"runId"`
	Files        int           `json:"files"`
	Batches      int           `json:"batches"`
	CacheHits    int           `json:"cacheHits"`
	ArtifactHits int           `json:"artifactHits"`
	Indexed      int           `json:"indexed"`
	Fallbacks    int           `json:"fallbacks"`
	Failed       int           `json:"failed"`
	Nodes        int           `json:"nodes"`
	Links        int           `json:"links"`
	Cycles       int           `json:"cycles"`
	Duration     time.Duration `json:"durationNs"`
}

// Result is the outcome of an indexing run.
type Result struct {
	Graph *graph.Graph
	Stats Stats
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBatchSize sets the per-batch fan-out. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithExtractor sets the structural extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(o *Orchestrator) {
		if x != nil {
			o.extractor = x
		}
	}
}

// WithEnricher sets the semantic oracle consulted for tier and metadata.
// Without one, files get structural metadata and the Implementation tier.
func WithEnricher(e oracle.SemanticEnricher) Option {
	return func(o *Orchestrator) {
		o.enricher = e
	}
}

// WithEnrichTimeout bounds each enrichment call. A call that overruns is
// treated as a failed enrichment. Non-positive leaves only ctx bounding it.
func WithEnrichTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.enrichTimeout = d
	}
}

// WithArtifactStore sets the persistent artifact store consulted on
// metadata-cache misses.
func WithArtifactStore(s storage.ArtifactStore) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithMetadataCache replaces the metadata cache.
func WithMetadataCache(c *cache.ContentCache) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.metaCache = c
		}
	}
}

// WithGraphBuilder replaces the graph builder.
func WithGraphBuilder(b *graph.Builder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.builder = b
		}
	}
}

// WithStructuralFallback makes an enrichment failure attach structural
// results instead of leaving the file unchanged. Fallback results are
// neither cached nor stored, so the next run retries enrichment.
func WithStructuralFallback(enabled bool) Option {
	return func(o *Orchestrator) {
		o.structuralFallback = enabled
	}
}

// WithEvents sets the event sink.
func WithEvents(s events.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator indexes codebase snapshots.
//
// It owns the metadata cache, so repeated runs over unchanged content
// reuse earlier work.
type Orchestrator struct {
	batchSize          int
	extractor          extract.Extractor
	enricher           oracle.SemanticEnricher
	enrichTimeout      time.Duration
	store              storage.ArtifactStore
	metaCache          *cache.ContentCache
	builder            *graph.Builder
	structuralFallback bool
	sink               events.Sink
	logger             *slog.Logger

	running atomic.Bool
}

// NewOrchestrator creates an orchestrator.
//
// # Outputs
//
//   - *Orchestrator: Uses DefaultBatchSize, DefaultEnrichTimeout, a line
//     extractor with the built-in rules, an unbounded metadata cache, and
//     a graph builder with cycle detection unless options say otherwise.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		batchSize:     DefaultBatchSize,
		enrichTimeout: DefaultEnrichTimeout,
		extractor: extract.NewLineExtractor(extract.WithRuleEngine(rules.DefaultEngine())),
		metaCache: cache.New(cache.NameMetadata),
		sink:      events.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.builder == nil {
		o.builder = graph.NewBuilder(graph.WithLogger(o.logger))
	}
	return o
}

// Cache returns the metadata cache.
func (o *Orchestrator) Cache() *cache.ContentCache {
	return o.metaCache
}

// Index annotates files in place and builds their dependency graph.
//
// # Description
//
// Files are processed in batches of the configured size; the files of a
// batch run concurrently and each file is handled by exactly one
// goroutine. A file that fails (extraction panic, oracle error, store
// error on the write path) is logged and left unchanged; it never aborts
// the batch or the run. After each batch onProgress, when non-nil, is
// called. The context is checked between batches.
//
// The graph is built after the last batch over the full file list, so
// the result does not depend on batch size or scheduling.
//
// # Inputs
//
//   - ctx: Cancels the run between batches and is passed to oracle calls.
//   - files: The snapshot. Nil entries are skipped.
//   - onProgress: Optional progress callback.
//
// # Outputs
//
//   - Result: The graph and run statistics.
//   - error: ErrIndexInProgress, or ErrIndexCancelled wrapping the
//     context error. On cancellation Result.Stats covers the batches
//     that completed and Result.Graph is nil.
func (o *Orchestrator) Index(ctx context.Context, files []*model.SourceFile, onProgress ProgressFunc) (Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Result{}, ErrIndexInProgress
	}
	defer o.running.Store(false)

	start := time.Now()
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "index.Orchestrator.Index",
		trace.WithAttributes(
			attribute.String("index.run_id", runID),
			attribute.Int("index.files", len(files)),
			attribute.Int("index.batch_size", o.batchSize),
		),
	)
	defer span.End()

	work := make([]*model.SourceFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			work = append(work, f)
		}
	}

	stats := Stats{RunID: runID, Files: len(work)}
	o.emit(ctx, events.Event{
		Kind:  events.KindIndexStarted,
		RunID: runID,
		Fields: map[string]any{
			"files":      len(work),
			"batch_size": o.batchSize,
		},
	})
	o.logger.Info("indexing started",
		slog.String("run_id", runID),
		slog.Int("files", len(work)),
		slog.Int("batch_size", o.batchSize),
	)

	total := len(work)
	for i := 0; i < total; i += o.batchSize {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			o.emit(ctx, events.Event{Kind: events.KindIndexCancelled, RunID: runID, Err: err})
			o.logger.Warn("indexing cancelled",
				slog.String("run_id", runID),
				slog.Int("processed", i),
				slog.Int("files", total),
			)
			span.SetAttributes(attribute.Bool("index.cancelled", true))
			return Result{Stats: stats}, fmt.Errorf("%w: %w", ErrIndexCancelled, err)
		}

		end := i + o.batchSize
		if end > total {
			end = total
		}
		outcomes := o.runBatch(ctx, runID, work[i:end])
		for _, oc := range outcomes {
			stats.add(oc)
		}
		stats.Batches++

		if onProgress != nil {
			onProgress(Progress{
				Percent:   end * 100 / total,
				Message:   fmt.Sprintf("Indexing knowledge graph... [%d/%d]", end, total),
				Processed: end,
				Total:     total,
			})
		}
	}

	g := o.builder.Build(ctx, work)
	stats.Nodes = len(g.Nodes)
	stats.Links = len(g.Links)
	stats.Cycles = len(g.Cycles())
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("index.cache_hits", stats.CacheHits),
		attribute.Int("index.failed", stats.Failed),
		attribute.Int("index.nodes", stats.Nodes),
		attribute.Int("index.links", stats.Links),
	)
	o.emit(ctx, events.Event{
		Kind:  events.KindIndexCompleted,
		RunID: runID,
		Fields: map[string]any{
			"files":       stats.Files,
			"cache_hits":  stats.CacheHits,
			"indexed":     stats.Indexed,
			"failed":      stats.Failed,
			"nodes":       stats.Nodes,
			"links":       stats.Links,
			"duration_ms": stats.Duration.Milliseconds(),
		},
	})
	return Result{Graph: g, Stats: stats}, nil
}

// runBatch processes one batch concurrently. outcomes[i] belongs to
// batch[i], so no two goroutines share a slot.
func (o *Orchestrator) runBatch(ctx context.Context, runID string, batch []*model.SourceFile) []outcome {
	start := time.Now()
	outcomes := make([]outcome, len(batch))

	var eg errgroup.Group
	for i, f := range batch {
		eg.Go(func() error {
			oc, err := o.processFile(ctx, f)
			outcomes[i] = oc
			recordFile(ctx, oc)
			switch {
			case err != nil:
				o.logger.Warn("file indexing failed",
					slog.String("run_id", runID),
					slog.String("file_path", f.Path),
					slog.String("error", err.Error()),
				)
				o.emit(ctx, events.Event{Kind: events.KindFileFailed, RunID: runID, Path: f.Path, Err: err})
			case oc == outcomeCacheHit:
				o.logger.Debug("metadata cache hit",
					slog.String("run_id", runID),
					slog.String("file_path", f.Path),
				)
				o.emit(ctx, events.Event{Kind: events.KindFileCacheHit, RunID: runID, Path: f.Path})
			default:
				o.emit(ctx, events.Event{
					Kind:   events.KindFileIndexed,
					RunID:  runID,
					Path:   f.Path,
					Fields: map[string]any{"source": oc.String()},
				})
			}
			return nil
		})
	}
	_ = eg.Wait()

	d := time.Since(start)
	recordBatch(ctx, d, len(batch))
	o.emit(ctx, events.Event{
		Kind:  events.KindBatchCompleted,
		RunID: runID,
		Fields: map[string]any{
			"size":        len(batch),
			"duration_ms": d.Milliseconds(),
		},
	})
	return outcomes
}

// processFile brings f's derived fields up to date with its content.
func (o *Orchestrator) processFile(ctx context.Context, f *model.SourceFile) (oc outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			oc, err = outcomeFailed, fmt.Errorf("panic while indexing: %v", r)
		}
	}()

	hash := cache.ContentHash(f.Content)
	if entry, ok := o.metaCache.Lookup(ctx, f.Path, hash); ok && entry.Analysis != nil {
		entry.Analysis.Apply(f)
		return outcomeCacheHit, nil
	}

	if a := o.loadArtifact(ctx, f.Path, hash); a != nil {
		// Artifacts are shared by every path with the same content.
		a.Violations = extract.WithFile(a.Violations, f.Path)
		a.Toxicity = Toxicity(f, &a.Metadata)
		a.Apply(f)
		o.commit(f.Path, hash, a)
		return outcomeArtifact, nil
	}

	res := o.extractor.Extract(ctx, f.Content, f.Language)
	meta := res.Metadata
	tier := model.TierImplementation

	if o.enricher != nil {
		view := *f
		view.Metadata = &meta
		enr, eerr := oracle.Bounded(ctx, o.enrichTimeout, "enrich",
			func(ctx context.Context) (oracle.Enrichment, error) {
				return o.enricher.Enrich(ctx, &view)
			})
		if eerr != nil {
			if !o.structuralFallback {
				return outcomeFailed, fmt.Errorf("enrich: %w", eerr)
			}
			a := analysisOf(f, meta, tier, res.Violations)
			a.Apply(f)
			return outcomeFallback, nil
		}
		enr.Patch.Apply(&meta)
		if enr.Tier.Valid() {
			tier = enr.Tier
		}
	}

	a := analysisOf(f, meta, tier, res.Violations)
	a.Apply(f)
	o.commit(f.Path, hash, a)
	o.storeArtifact(ctx, f.Path, hash, a)
	return outcomeIndexed, nil
}

func analysisOf(f *model.SourceFile, meta model.StructuralMetadata, tier model.Tier, vs []model.RuleViolation) *model.FileAnalysis {
	return &model.FileAnalysis{
		Metadata:   meta,
		Tier:       tier,
		Toxicity:   Toxicity(f, &meta),
		Violations: extract.WithFile(vs, f.Path),
	}
}

// commit writes the metadata cache entry for path. It is the only place
// the orchestrator writes the cache.
func (o *Orchestrator) commit(path, hash string, a *model.FileAnalysis) {
	o.metaCache.Put(path, model.CacheEntry{
		Hash:         hash,
		Timestamp:    time.Now(),
		Dependencies: a.Metadata.ImportSources(),
		Analysis:     a,
	})
}

func (o *Orchestrator) loadArtifact(ctx context.Context, path, hash string) *model.FileAnalysis {
	if o.store == nil {
		return nil
	}
	a, err := o.store.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("artifact lookup failed",
				slog.String("file_path", path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return a
}

func (o *Orchestrator) storeArtifact(ctx context.Context, path, hash string, a *model.FileAnalysis) {
	if o.store == nil {
		return
	}
	if err := o.store.Put(ctx, hash, a); err != nil {
		o.logger.Warn("artifact write failed",
			slog.String("file_path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) emit(ctx context.Context, e events.Event) {
	o.sink.Emit(ctx, events.Stamp(e))
}

// outcome is how a single file was handled.
type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCacheHit
	outcomeArtifact
	outcomeIndexed
	outcomeFallback
)

func (o outcome) String() string {
	switch o {
	case outcomeCacheHit:
		return "cache_hit"
	case outcomeArtifact:
		return "artifact"
	case outcomeIndexed:
		return "indexed"
	case outcomeFallback:
		return "fallback"
	default:
		return "failed"
	}
}

func (s *Stats) add(o outcome) {
	switch o {
	case outcomeCacheHit:
		s.CacheHits++
	case outcomeArtifact:
		s.ArtifactHits++
	case outcomeIndexed:
		s.Indexed++
	case outcomeFallback:
		s.Fallbacks++
	default:
		s.Failed++
	}
}
