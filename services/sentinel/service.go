// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sentinel is the ArchLens sentinel service: it indexes
// codebases into dependency graphs and judges proposed changes against
// them.
//
//	            ┌────────────┐   files    ┌──────────────┐
//	 root/files │   scan /   │──────────▶│    index     │── graph ──┐
//	 ──────────▶│  request   │            │ Orchestrator │           │
//	            └────────────┘            └──────────────┘           ▼
//	                                                          ┌──────────────┐
//	 path + newContent ──────────────────────────────────────▶│    impact    │──▶ ImpactAnalysis
//	                                                          │   Analyzer   │
//	                                                          └──────────────┘
//
// Each project ID owns its snapshot, orchestrator, and analyzer, so
// metadata and blast-radius caches never leak between projects. The
// semantic oracle, artifact store, and rule engine are shared.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tawfig2020/ArchLensyst-sub001/pkg/validation"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/cache"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/config"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/events"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/extract"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/graph"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/impact"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/index"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/scan"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/storage"
)

// ServiceVersion is the sentinel service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures the sentinel service.
type ServiceConfig struct {
	// BatchSize is the indexing batch size.
	// Default: 3
	BatchSize int

	// StructuralFallback keeps structural results for files whose
	// enrichment fails.
	StructuralFallback bool

	// MaxCacheEntries caps each per-project cache. 0 means unbounded.
	MaxCacheEntries int

	// MaxDepth is the default blast-radius depth.
	// Default: 2
	MaxDepth int

	// DetectCycles enables circular link marking.
	// Default: true
	DetectCycles bool

	// OracleTimeout bounds each oracle call during impact analysis.
	// Default: 30s
	OracleTimeout time.Duration

	// MaxFileSize is the largest file read from a project root.
	// Default: 1 MiB
	MaxFileSize int64
}

// DefaultServiceConfig returns the reference defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BatchSize:     index.DefaultBatchSize,
		MaxDepth:      2,
		DetectCycles:  true,
		OracleTimeout: impact.DefaultOracleTimeout,
		MaxFileSize:   scan.DefaultMaxFileSize,
	}
}

// ServiceConfigFrom maps the file configuration onto service settings.
func ServiceConfigFrom(c config.Config) ServiceConfig {
	sc := DefaultServiceConfig()
	sc.BatchSize = c.Index.BatchSize
	sc.StructuralFallback = c.Index.StructuralFallback
	sc.MaxCacheEntries = c.Index.MaxCacheEntries
	sc.MaxDepth = c.Impact.MaxDepth
	sc.DetectCycles = c.Impact.DetectCycles
	sc.OracleTimeout = c.Impact.OracleTimeout
	return sc
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithOracle sets the semantic and test oracles.
func WithOracle(o oracle.Oracle) ServiceOption {
	return func(s *Service) {
		s.oracle = o
	}
}

// WithArtifactStore sets the shared artifact store.
func WithArtifactStore(st storage.ArtifactStore) ServiceOption {
	return func(s *Service) {
		s.store = st
	}
}

// WithRuleEngine replaces the built-in rule engine.
func WithRuleEngine(e *rules.Engine) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithEvents sets the event sink shared by all projects.
func WithEvents(sink events.Sink) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service owns the per-project indexing and impact state.
//
// # Thread Safety
//
// Safe for concurrent use. Index runs for the same project are
// serialized by its orchestrator; queries see the last completed run.
type Service struct {
	config ServiceConfig
	oracle oracle.Oracle
	store  storage.ArtifactStore
	engine *rules.Engine
	sink   events.Sink
	logger *slog.Logger

	extractor extract.Extractor

	mu       sync.RWMutex
	projects map[string]*project
}

type project struct {
	id       string
	orch     *index.Orchestrator
	analyzer *impact.Analyzer

	mu        sync.RWMutex
	root      string
	files     []*model.SourceFile
	stats     index.Stats
	indexedAt time.Time
}

// NewService creates a service with no projects.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{
		config:   cfg,
		engine:   rules.DefaultEngine(),
		sink:     events.Discard,
		logger:   slog.Default(),
		projects: make(map[string]*project),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.extractor = extract.NewTreeSitterExtractor(
		extract.NewLineExtractor(extract.WithRuleEngine(s.engine)),
		s.logger,
	)
	return s
}

// RuleEngine returns the engine used for local findings.
func (s *Service) RuleEngine() *rules.Engine {
	return s.engine
}

func (s *Service) getOrCreate(id string) *project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[id]; ok {
		return p
	}

	var enricher oracle.SemanticEnricher
	var tests oracle.TestValidationOracle
	if s.oracle != nil {
		enricher, tests = s.oracle, s.oracle
	}

	indexOpts := []index.Option{
		index.WithBatchSize(s.config.BatchSize),
		index.WithExtractor(s.extractor),
		index.WithMetadataCache(cache.New(cache.NameMetadata, cache.WithMaxEntries(s.config.MaxCacheEntries))),
		index.WithGraphBuilder(graph.NewBuilder(
			graph.WithCycleDetection(s.config.DetectCycles),
			graph.WithLogger(s.logger),
		)),
		index.WithStructuralFallback(s.config.StructuralFallback),
		index.WithEnrichTimeout(s.config.OracleTimeout),
		index.WithEvents(s.sink),
		index.WithLogger(s.logger.With(slog.String("project_id", id))),
	}
	if enricher != nil {
		indexOpts = append(indexOpts, index.WithEnricher(enricher))
	}
	if s.store != nil {
		indexOpts = append(indexOpts, index.WithArtifactStore(s.store))
	}

	impactOpts := []impact.Option{
		impact.WithExtractor(s.extractor),
		impact.WithOracleTimeout(s.config.OracleTimeout),
		impact.WithBlastRadiusCache(cache.New(cache.NameBlastRadius, cache.WithMaxEntries(s.config.MaxCacheEntries))),
		impact.WithEvents(s.sink),
		impact.WithLogger(s.logger.With(slog.String("project_id", id))),
	}
	if enricher != nil {
		impactOpts = append(impactOpts, impact.WithEnricher(enricher), impact.WithTestOracle(tests))
	}

	p := &project{
		id:       id,
		orch:     index.NewOrchestrator(indexOpts...),
		analyzer: impact.NewAnalyzer(impactOpts...),
	}
	s.projects[id] = p
	return p
}

// checkProjectID rejects IDs that may not name a new project.
func checkProjectID(id string) error {
	if id == "" {
		return ErrProjectIDRequired
	}
	return validation.ValidateProjectID(id)
}

func (s *Service) lookup(id string) (*project, error) {
	if id == "" {
		return nil, ErrProjectIDRequired
	}
	s.mu.RLock()
	p, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotIndexed, id)
	}
	p.mu.RLock()
	indexed := !p.indexedAt.IsZero()
	p.mu.RUnlock()
	if !indexed {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotIndexed, id)
	}
	return p, nil
}

// IndexRoot loads every source file under root and indexes them.
//
// # Outputs
//
//   - index.Result: The graph and run statistics.
//   - error: ErrProjectIDRequired, validation.ErrInvalidProjectID, a
//     scan error, or an index error.
func (s *Service) IndexRoot(ctx context.Context, projectID, root string, onProgress index.ProgressFunc) (index.Result, error) {
	if err := checkProjectID(projectID); err != nil {
		return index.Result{}, err
	}
	files, err := scan.Load(ctx, root,
		scan.WithMaxFileSize(s.config.MaxFileSize),
		scan.WithLogger(s.logger),
	)
	if err != nil {
		return index.Result{}, err
	}
	res, err := s.IndexFiles(ctx, projectID, files, onProgress)
	if err != nil {
		return res, err
	}
	p := s.getOrCreate(projectID)
	p.mu.Lock()
	p.root = root
	p.mu.Unlock()
	return res, nil
}

// IndexFiles indexes files as the project's new snapshot.
//
// # Description
//
// The project's caches survive across runs, so files whose content did
// not change are cache hits. On success the graph is installed into the
// project's analyzer and files becomes the snapshot used by Impact and
// Search. A failed or cancelled run leaves the previous snapshot in
// place.
//
// # Outputs
//
//   - index.Result: The graph and run statistics.
//   - error: ErrProjectIDRequired, index.ErrIndexInProgress, or
//     index.ErrIndexCancelled.
func (s *Service) IndexFiles(ctx context.Context, projectID string, files []*model.SourceFile, onProgress index.ProgressFunc) (index.Result, error) {
	if err := checkProjectID(projectID); err != nil {
		return index.Result{}, err
	}
	p := s.getOrCreate(projectID)

	res, err := p.orch.Index(ctx, files, onProgress)
	if err != nil {
		return res, err
	}

	snapshot := make([]*model.SourceFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			snapshot = append(snapshot, f)
		}
	}

	p.analyzer.SetGraph(res.Graph)
	p.mu.Lock()
	p.files = snapshot
	p.stats = res.Stats
	p.indexedAt = time.Now()
	p.mu.Unlock()

	s.logger.Info("project indexed",
		slog.String("project_id", projectID),
		slog.String("run_id", res.Stats.RunID),
		slog.Int("files", res.Stats.Files),
		slog.Int("nodes", res.Stats.Nodes),
		slog.Int("links", res.Stats.Links),
		slog.Int("cache_hits", res.Stats.CacheHits),
		slog.Int64("duration_ms", res.Stats.Duration.Milliseconds()),
	)
	return res, nil
}

// Graph returns the project's last built graph.
func (s *Service) Graph(projectID string) (*graph.Graph, error) {
	p, err := s.lookup(projectID)
	if err != nil {
		return nil, err
	}
	return p.analyzer.Graph(), nil
}

// Files returns the project's current snapshot.
func (s *Service) Files(projectID string) ([]*model.SourceFile, error) {
	p, err := s.lookup(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*model.SourceFile(nil), p.files...), nil
}

// Root returns the directory the project was last indexed from, or ""
// when it was indexed from explicit files.
func (s *Service) Root(projectID string) (string, error) {
	p, err := s.lookup(projectID)
	if err != nil {
		return "", err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root, nil
}

// ImpactResult is a validated change with its blast radius.
type ImpactResult struct {
	Analysis    model.ImpactAnalysis `json:"analysis"`
	BlastRadius impact.Radius        `json:"blastRadius"`
}

// Impact computes the blast radius of filePath and validates replacing
// its content with newContent.
//
// # Inputs
//
//   - ctx: Cancels the oracle calls.
//   - projectID: An indexed project.
//   - filePath: A path in the project's snapshot.
//   - newContent: The proposed content.
//   - maxDepth: Hop bound. Negative uses the configured default.
//
// # Outputs
//
//   - ImpactResult: The verdict and the radius it was judged over.
//     Analysis.CacheHit reports a blast-radius cache hit and is false
//     whenever the verdict is degraded.
//   - error: ErrProjectNotIndexed or impact.ErrTargetNotFound.
func (s *Service) Impact(ctx context.Context, projectID, filePath, newContent string, maxDepth int) (ImpactResult, error) {
	p, err := s.lookup(projectID)
	if err != nil {
		return ImpactResult{}, err
	}
	if maxDepth < 0 {
		maxDepth = s.config.MaxDepth
	}

	p.mu.RLock()
	files := p.files
	p.mu.RUnlock()

	radius, err := p.analyzer.BlastRadius(ctx, filePath, files, maxDepth)
	if err != nil {
		return ImpactResult{}, err
	}
	target := radius.Files[0]

	analysis, err := p.analyzer.ValidateChange(ctx, target, newContent, radius.Files, s.engine.Descriptors())
	if err != nil {
		return ImpactResult{}, err
	}
	analysis.CacheHit = radius.CacheHit && !analysis.Degraded()
	return ImpactResult{Analysis: analysis, BlastRadius: radius}, nil
}

// Search ranks the project's files by relevance to query.
func (s *Service) Search(ctx context.Context, projectID, query string) ([]oracle.SearchResult, error) {
	p, err := s.lookup(projectID)
	if err != nil {
		return nil, err
	}
	if s.oracle == nil {
		return nil, ErrSearchUnavailable
	}
	p.mu.RLock()
	files := p.files
	p.mu.RUnlock()

	results, err := s.oracle.SemanticSearch(ctx, query, files)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	if results == nil {
		results = []oracle.SearchResult{}
	}
	return results, nil
}

// Report evaluates the rule engine over the project's snapshot.
func (s *Service) Report(projectID string) (rules.Report, error) {
	files, err := s.Files(projectID)
	if err != nil {
		return rules.Report{}, err
	}
	return s.engine.Report(files), nil
}

// ProjectStatus summarizes one project.
type ProjectStatus struct {
	ID        string      `json:"id"`
	Root      string      `json:"root,omitempty"`
	Files     int         `json:"files"`
	IndexedAt time.Time   `json:"indexedAt"`
	LastRun   index.Stats `json:"lastRun"`

	// Caches holds the metadata and blast-radius cache counters.
	Caches []cache.Stats `json:"caches"`
}

// Projects lists indexed projects sorted by ID.
func (s *Service) Projects() []ProjectStatus {
	s.mu.RLock()
	ps := make([]*project, 0, len(s.projects))
	for _, p := range s.projects {
		ps = append(ps, p)
	}
	s.mu.RUnlock()

	out := make([]ProjectStatus, 0, len(ps))
	for _, p := range ps {
		p.mu.RLock()
		if !p.indexedAt.IsZero() {
			out = append(out, ProjectStatus{
				ID:        p.id,
				Root:      p.root,
				Files:     len(p.files),
				IndexedAt: p.indexedAt,
				LastRun:   p.stats,
				Caches:    []cache.Stats{p.orch.Cache().Stats(), p.analyzer.CacheStats()},
			})
		}
		p.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsNotIndexed reports whether err means the project has no graph yet.
func IsNotIndexed(err error) bool {
	return errors.Is(err, ErrProjectNotIndexed)
}
