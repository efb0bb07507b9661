// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

var tracer = otel.Tracer("archlens.sentinel.graph")

// Node groups used by the graph renderer.
const (
	GroupScript = 1
	GroupOther  = 2
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCycleDetection toggles Tarjan SCC cycle marking. When disabled,
// every link reports IsCircular=false and the graph has no cycles.
func WithCycleDetection(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.detectCycles = enabled
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder turns an annotated file set into a dependency graph.
//
// # Thread Safety
//
// Safe for concurrent use; Build holds no state between calls.
type Builder struct {
	detectCycles bool
	logger       *slog.Logger
}

// NewBuilder creates a builder with cycle detection enabled.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{detectCycles: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build emits one node per distinct file path, in input order, and one
// import link per resolved import.
//
// # Description
//
// Tier defaults to Implementation and toxicityScore to 0 when the file
// carries no toxicity metrics. Each import's source is resolved against
// the full path set with resolveImport; unresolved imports are dropped.
// The output depends only on the file set and the files' metadata, not
// on the order in which files were annotated.
//
// # Inputs
//
//   - ctx: Used for tracing only.
//   - files: The annotated snapshot. Nil entries are skipped.
//
// # Outputs
//
//   - *Graph: Never nil.
func (b *Builder) Build(ctx context.Context, files []*model.SourceFile) *Graph {
	_, span := tracer.Start(ctx, "graph.Builder.Build",
		trace.WithAttributes(attribute.Int("graph.files", len(files))),
	)
	defer span.End()

	nodes := make([]model.DependencyNode, 0, len(files))
	paths := make([]string, 0, len(files))
	known := make(map[string]struct{}, len(files))
	unique := make([]*model.SourceFile, 0, len(files))

	for _, f := range files {
		if f == nil || f.Path == "" {
			continue
		}
		if _, dup := known[f.Path]; dup {
			b.logger.Warn("duplicate file path in snapshot, keeping first",
				slog.String("file_path", f.Path))
			continue
		}
		known[f.Path] = struct{}{}
		paths = append(paths, f.Path)
		unique = append(unique, f)
		nodes = append(nodes, nodeFor(f))
	}

	r := newResolver(paths)
	var links []model.DependencyLink
	unresolved := 0
	for _, f := range unique {
		if f.Metadata == nil {
			continue
		}
		for _, imp := range f.Metadata.Imports {
			target, ok := r.resolve(f.Path, imp.Source, f.Language)
			if !ok {
				unresolved++
				continue
			}
			links = append(links, model.DependencyLink{
				Source:       f.Path,
				Target:       target,
				Relationship: model.RelationshipImport,
			})
		}
	}

	var cycles [][]string
	if b.detectCycles {
		adj := make(map[string][]string)
		for _, l := range links {
			adj[l.Source] = append(adj[l.Source], l.Target)
		}
		cycles = findCycles(paths, adj)
	}

	g := newGraph(nodes, links, cycles)
	for i := range g.Links {
		src, okS := g.cycleOf[g.Links[i].Source]
		dst, okT := g.cycleOf[g.Links[i].Target]
		g.Links[i].IsCircular = okS && okT && src == dst
	}

	span.SetAttributes(
		attribute.Int("graph.nodes", len(g.Nodes)),
		attribute.Int("graph.links", len(g.Links)),
		attribute.Int("graph.cycles", len(cycles)),
		attribute.Int("graph.unresolved_imports", unresolved),
	)
	b.logger.Debug("dependency graph built",
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("links", len(g.Links)),
		slog.Int("cycles", len(cycles)),
		slog.Int("unresolved_imports", unresolved),
	)
	return g
}

func nodeFor(f *model.SourceFile) model.DependencyNode {
	tier := f.Tier
	if tier == "" {
		tier = model.TierImplementation
	}
	label := f.Name
	if label == "" {
		label = f.Path[strings.LastIndex(f.Path, "/")+1:]
	}
	group := GroupOther
	if f.Language == model.LanguageTypeScript || f.Language == model.LanguageJavaScript {
		group = GroupScript
	}
	return model.DependencyNode{
		ID:            f.Path,
		Label:         label,
		Tier:          tier,
		ToxicityScore: f.Toxicity.Score(),
		Language:      f.Language,
		Group:         group,
	}
}

// resolver matches import sources against the known path set.
type resolver struct {
	paths []string
}

func newResolver(paths []string) *resolver {
	sorted := append([]string(nil), paths...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return &resolver{paths: sorted}
}

// resolve returns the known path that source refers to.
//
// The source is normalised first (relative prefixes and path aliases
// stripped, dotted module names turned into paths). Among paths that
// contain it, a match aligned to path-segment boundaries wins over a bare
// substring match; ties go to the shortest, then lexically smallest path.
// Relative and aliased sources name a file, so they only accept aligned
// matches. A file never resolves to itself.
func (r *resolver) resolve(from, source string, lang model.Language) (string, bool) {
	needle := NormalizeImport(source, lang)
	if needle == "" {
		return "", false
	}
	alignedOnly := isPathImport(source)

	fallback := ""
	for _, p := range r.paths {
		if p == from {
			continue
		}
		idx := strings.Index(p, needle)
		if idx < 0 {
			continue
		}
		if alignedAt(p, needle, idx) {
			return p, true
		}
		if !alignedOnly && fallback == "" {
			fallback = p
		}
	}
	return fallback, fallback != ""
}

// alignedAt reports whether some occurrence of needle in p, starting
// the search at idx, begins a path segment and ends at a segment or
// extension boundary.
func alignedAt(p, needle string, idx int) bool {
	for idx >= 0 {
		end := idx + len(needle)
		startOK := idx == 0 || p[idx-1] == '/'
		endOK := end == len(p) || p[end] == '.' || p[end] == '/'
		if startOK && endOK {
			return true
		}
		next := strings.Index(p[idx+1:], needle)
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

// isPathImport reports whether source is written as a path: relative,
// rooted, or behind a path alias. Python relative imports start with a dot.
func isPathImport(source string) bool {
	s := strings.Trim(strings.TrimSpace(source), "\"'`")
	for _, prefix := range []string{".", "/", "@/", "~/"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// NormalizeImport reduces an import source to the fragment expected to
// appear in the target's path.
func NormalizeImport(source string, lang model.Language) string {
	s := strings.TrimSpace(source)
	s = strings.Trim(s, "\"'`")

	switch lang {
	case model.LanguagePython:
		s = strings.TrimLeft(s, ".")
		if !strings.Contains(s, "/") {
			s = strings.ReplaceAll(s, ".", "/")
		}
	case model.LanguageJava:
		s = strings.TrimSuffix(s, ".*")
		s = strings.ReplaceAll(s, ".", "/")
	}

	for _, alias := range []string{"@/", "~/"} {
		s = strings.TrimPrefix(s, alias)
	}
	for {
		switch {
		case strings.HasPrefix(s, "./"):
			s = s[2:]
		case strings.HasPrefix(s, "../"):
			s = s[3:]
		case strings.HasPrefix(s, "/"):
			s = s[1:]
		default:
			return strings.TrimSuffix(s, "/")
		}
	}
}
