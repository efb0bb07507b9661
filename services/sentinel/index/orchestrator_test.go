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
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/events"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/extract"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/oracle"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/storage"
)

// countingExtractor counts Extract calls per content.
type countingExtractor struct {
	inner extract.Extractor

	mu    sync.Mutex
	calls map[string]int
	panic string
}

func newCountingExtractor() *countingExtractor {
	return &countingExtractor{inner: extract.NewLineExtractor(), calls: map[string]int{}}
}

func (c *countingExtractor) Extract(ctx context.Context, content string, lang model.Language) extract.Result {
	c.mu.Lock()
	c.calls[content]++
	boom := c.panic != "" && strings.Contains(content, c.panic)
	c.mu.Unlock()
	if boom {
		panic("parser exploded")
	}
	return c.inner.Extract(ctx, content, lang)
}

func (c *countingExtractor) count(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[content]
}

func (c *countingExtractor) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// fakeEnricher assigns tiers by path and fails for paths containing fail.
type fakeEnricher struct {
	fail    string
	tier    model.Tier
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
	stall   time.Duration
	exports sync.Map
}

func (f *fakeEnricher) Enrich(ctx context.Context, file *model.SourceFile) (oracle.Enrichment, error) {
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if file.Metadata != nil {
		f.exports.Store(file.Path, file.Metadata.Exports)
	}
	if f.stall > 0 {
		time.Sleep(f.stall)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return oracle.Enrichment{}, ctx.Err()
		}
	}
	if f.fail != "" && strings.Contains(file.Path, f.fail) {
		return oracle.Enrichment{}, errors.New("oracle exploded")
	}
	summary := "role of " + file.Path
	return oracle.Enrichment{Tier: f.tier, Patch: oracle.MetadataPatch{RoleSummary: summary}}, nil
}

func (f *fakeEnricher) AnalyzeImpact(context.Context, string, string, []rules.Descriptor) (oracle.ImpactVerdict, error) {
	return oracle.ImpactVerdict{}, nil
}

func (f *fakeEnricher) SemanticSearch(context.Context, string, []*model.SourceFile) ([]oracle.SearchResult, error) {
	return nil, nil
}

func scenario() []*model.SourceFile {
	return []*model.SourceFile{
		model.NewSourceFile("a.ts", "import { b } from './b';\nexport const a = b;\n"),
		model.NewSourceFile("b.ts", "import { c } from './c';\nexport const b = c;\n"),
		model.NewSourceFile("c.ts", "export const c = 1;\n"),
	}
}

func linkSet(t *testing.T, res Result) []string {
	t.Helper()
	require.NotNil(t, res.Graph)
	out := make([]string, 0, len(res.Graph.Links))
	for _, l := range res.Graph.Links {
		out = append(out, fmt.Sprintf("%s->%s:%v", l.Source, l.Target, l.IsCircular))
	}
	sort.Strings(out)
	return out
}

func nodeSet(t *testing.T, res Result) []string {
	t.Helper()
	out := make([]string, 0, len(res.Graph.Nodes))
	for _, n := range res.Graph.Nodes {
		out = append(out, fmt.Sprintf("%s|%s|%d", n.ID, n.Tier, n.ToxicityScore))
	}
	sort.Strings(out)
	return out
}

func TestIndex_Scenario(t *testing.T) {
	files := scenario()
	res, err := NewOrchestrator(WithEnricher(&fakeEnricher{tier: model.TierModule})).
		Index(context.Background(), files, nil)
	require.NoError(t, err)

	assert.Len(t, res.Graph.Nodes, 3)
	assert.Equal(t, []string{"a.ts->b.ts:false", "b.ts->c.ts:false"}, linkSet(t, res))
	assert.Equal(t, 3, res.Stats.Indexed)
	assert.Equal(t, 1, res.Stats.Batches)
	assert.NotEmpty(t, res.Stats.RunID)

	for _, f := range files {
		require.NotNil(t, f.Metadata, f.Path)
		require.NotNil(t, f.Toxicity, f.Path)
		assert.Equal(t, model.TierModule, f.Tier)
		assert.Equal(t, "role of "+f.Path, f.Metadata.RoleSummary)
	}
	assert.Equal(t, []model.Import{{Source: "./b"}}, files[0].Metadata.Imports)
}

func TestIndex_NoEnricherDefaultsTier(t *testing.T) {
	files := scenario()
	_, err := NewOrchestrator().Index(context.Background(), files, nil)
	require.NoError(t, err)
	for _, f := range files {
		assert.Equal(t, model.TierImplementation, f.Tier)
	}
}

func TestIndex_CacheCorrectness(t *testing.T) {
	files := scenario()
	x := newCountingExtractor()
	o := NewOrchestrator(WithExtractor(x), WithEnricher(&fakeEnricher{tier: model.TierModule}))
	ctx := context.Background()

	_, err := o.Index(ctx, files, nil)
	require.NoError(t, err)
	require.Equal(t, 3, x.total())
	aBefore, ok := o.Cache().Get("a.ts")
	require.True(t, ok)
	cBefore, ok := o.Cache().Get("c.ts")
	require.True(t, ok)

	// Identical content: nothing is re-extracted.
	res, err := o.Index(ctx, files, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, x.total())
	assert.Equal(t, 3, res.Stats.CacheHits)
	aAfter, _ := o.Cache().Get("a.ts")
	assert.Equal(t, aBefore.Hash, aAfter.Hash)

	// One byte changes in c.ts: only c.ts is reprocessed.
	files[2].Content = "export const c = 2;\n"
	res, err = o.Index(ctx, files, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, x.total())
	assert.Equal(t, 1, x.count("export const c = 2;\n"))
	assert.Equal(t, 2, res.Stats.CacheHits)
	assert.Equal(t, 1, res.Stats.Indexed)

	entry, ok := o.Cache().Get("c.ts")
	require.True(t, ok)
	assert.NotEqual(t, cBefore.Hash, entry.Hash)
}

func TestIndex_CacheHitRestoresFreshSnapshot(t *testing.T) {
	o := NewOrchestrator()
	ctx := context.Background()
	_, err := o.Index(ctx, scenario(), nil)
	require.NoError(t, err)

	// A new snapshot with the same content carries no derived fields yet.
	fresh := scenario()
	res, err := o.Index(ctx, fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.CacheHits)
	assert.Len(t, res.Graph.Links, 2)
	assert.NotNil(t, fresh[0].Metadata)
	assert.Equal(t, []string{"./b"}, fresh[0].Metadata.ImportSources())
}

func TestIndex_BatchSizeInvariance(t *testing.T) {
	build := func(batch int) Result {
		files := []*model.SourceFile{
			model.NewSourceFile("src/a.ts", "import { b } from './b';\nimport { c } from './c';\n"),
			model.NewSourceFile("src/b.ts", "import { c } from './c';\n"),
			model.NewSourceFile("src/c.ts", "import { a } from './a';\n"),
			model.NewSourceFile("src/d.ts", "import { a } from './a';\n"),
			model.NewSourceFile("src/e.ts", "export const e = 1;\n"),
			model.NewSourceFile("src/components/UserView.tsx", "import { pool } from '../db/connection';\n"),
			model.NewSourceFile("src/db/connection.ts", "export const pool = {};\n"),
		}
		res, err := NewOrchestrator(WithBatchSize(batch), WithEnricher(&fakeEnricher{tier: model.TierModule})).
			Index(context.Background(), files, nil)
		require.NoError(t, err)
		return res
	}

	one := build(1)
	five := build(5)
	assert.Equal(t, nodeSet(t, one), nodeSet(t, five))
	assert.Equal(t, linkSet(t, one), linkSet(t, five))
	assert.Equal(t, 7, one.Stats.Batches)
	assert.Equal(t, 2, five.Stats.Batches)
	assert.Contains(t, linkSet(t, one), "src/a.ts->src/c.ts:true")
}

func TestIndex_PartialFailureTolerance(t *testing.T) {
	files := scenario()
	files = append(files, model.NewSourceFile("boom.ts", "export const boom = 1; // EXPLODE\n"))
	x := newCountingExtractor()
	x.panic = "EXPLODE"
	sink := events.NewRecorder()

	o := NewOrchestrator(
		WithBatchSize(2),
		WithExtractor(x),
		WithEnricher(&fakeEnricher{fail: "b.ts", tier: model.TierModule}),
		WithEvents(sink),
	)
	res, err := o.Index(context.Background(), files, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.Failed)
	assert.Equal(t, 2, res.Stats.Indexed)
	assert.Len(t, res.Graph.Nodes, 4)
	assert.Nil(t, files[1].Metadata, "failed file is left unchanged")
	assert.Nil(t, files[3].Metadata)
	assert.Equal(t, model.TierModule, files[0].Tier)
	assert.Equal(t, 2, sink.Count(events.KindFileFailed))

	_, cached := o.Cache().Get("b.ts")
	assert.False(t, cached, "failed files are not cached")

	// b.ts has no metadata, so only a.ts -> b.ts survives.
	assert.Equal(t, []string{"a.ts->b.ts:false"}, linkSet(t, res))
}

func TestIndex_StructuralFallback(t *testing.T) {
	files := scenario()
	o := NewOrchestrator(
		WithEnricher(&fakeEnricher{fail: ".ts", tier: model.TierModule}),
		WithStructuralFallback(true),
	)
	res, err := o.Index(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Fallbacks)
	assert.Len(t, res.Graph.Links, 2)
	assert.Equal(t, model.TierImplementation, files[0].Tier)
	assert.Equal(t, 0, o.Cache().Len(), "fallback results are not cached")
}

func TestIndex_EnricherSeesExtractedMetadata(t *testing.T) {
	files := scenario()
	enricher := &fakeEnricher{tier: model.TierModule}
	_, err := NewOrchestrator(WithEnricher(enricher)).Index(context.Background(), files, nil)
	require.NoError(t, err)

	for _, f := range files {
		seen, ok := enricher.exports.Load(f.Path)
		require.True(t, ok, "%s reached the enricher without metadata", f.Path)
		assert.Equal(t, f.Metadata.Exports, seen, f.Path)
		assert.NotEmpty(t, seen, f.Path)
	}
}

func TestIndex_EnrichTimeoutHoldsWhenOracleIgnoresContext(t *testing.T) {
	files := []*model.SourceFile{model.NewSourceFile("c.ts", "export const c = 1;\n")}
	o := NewOrchestrator(
		WithEnricher(&fakeEnricher{stall: 2 * time.Second, tier: model.TierModule}),
		WithEnrichTimeout(30*time.Millisecond),
		WithStructuralFallback(true),
	)

	start := time.Now()
	res, err := o.Index(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, res.Stats.Fallbacks)
	assert.Equal(t, model.TierImplementation, files[0].Tier)
}

func TestIndex_ArtifactStore(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	first := NewOrchestrator(WithArtifactStore(store), WithEnricher(&fakeEnricher{tier: model.TierArchitectural}))
	_, err := first.Index(ctx, scenario(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	// A fresh orchestrator has an empty cache but finds the artifacts.
	x := newCountingExtractor()
	second := NewOrchestrator(WithArtifactStore(store), WithExtractor(x))
	files := scenario()
	res, err := second.Index(ctx, files, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.ArtifactHits)
	assert.Equal(t, 0, x.total())
	assert.Equal(t, model.TierArchitectural, files[0].Tier)
	assert.Equal(t, 3, second.Cache().Len())
}

func TestIndex_ArtifactSharedAcrossPaths(t *testing.T) {
	content := "import { query } from \"./db\";\nexport const rows: any = query();\n"
	files := []*model.SourceFile{
		model.NewSourceFile("src/components/Rows.tsx", content),
		model.NewSourceFile("src/lib/rows.ts", content),
	}

	o := NewOrchestrator(WithBatchSize(1), WithArtifactStore(storage.NewMemoryStore()))
	res, err := o.Index(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Indexed)
	assert.Equal(t, 1, res.Stats.ArtifactHits)

	require.NotEmpty(t, files[1].Violations)
	for _, v := range files[1].Violations {
		assert.Equal(t, "src/lib/rows.ts", v.File)
	}
	assert.Equal(t, 1, files[0].Toxicity.LogicLeakageCount)
	assert.Zero(t, files[1].Toxicity.LogicLeakageCount)
}

func TestIndex_Progress(t *testing.T) {
	files := append(scenario(),
		model.NewSourceFile("d.ts", ""),
		model.NewSourceFile("e.ts", ""),
	)
	var got []Progress
	_, err := NewOrchestrator(WithBatchSize(2)).Index(context.Background(), files, func(p Progress) {
		got = append(got, p)
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []int{40, 80, 100}, []int{got[0].Percent, got[1].Percent, got[2].Percent})
	assert.Equal(t, "Indexing knowledge graph... [5/5]", got[2].Message)
	assert.Equal(t, 5, got[2].Total)
}

func TestIndex_CancelledBetweenBatches(t *testing.T) {
	files := append(scenario(), model.NewSourceFile("d.ts", ""))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := events.NewRecorder()
	res, err := NewOrchestrator(WithBatchSize(2), WithEvents(sink)).Index(ctx, files, func(Progress) {
		cancel()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Stats.Batches)
	assert.Nil(t, res.Graph)
	assert.Nil(t, files[2].Metadata, "later batches never ran")
	assert.Equal(t, 1, sink.Count(events.KindIndexCancelled))
}

func TestIndex_InProgress(t *testing.T) {
	enricher := &fakeEnricher{block: make(chan struct{}), entered: make(chan struct{})}
	o := NewOrchestrator(WithEnricher(enricher))

	done := make(chan error, 1)
	go func() {
		_, err := o.Index(context.Background(), scenario(), nil)
		done <- err
	}()
	<-enricher.entered

	_, err := o.Index(context.Background(), scenario(), nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	close(enricher.block)
	require.NoError(t, <-done)

	_, err = o.Index(context.Background(), scenario(), nil)
	assert.NoError(t, err)
}

func TestIndex_EmptyAndNilFiles(t *testing.T) {
	res, err := NewOrchestrator().Index(context.Background(), []*model.SourceFile{nil}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Graph.Nodes)
	assert.Equal(t, 0, res.Stats.Files)
}

func TestToxicity(t *testing.T) {
	view := model.NewSourceFile("src/components/UserView.tsx", strings.Repeat("x", 5001))
	meta := &model.StructuralMetadata{
		Imports:                    []model.Import{{Source: "../db/connection"}, {Source: "react"}, {Source: "./a"}},
		Exports:                    []string{"export const UserView"},
		ObservabilityGap:           70,
		SecurityVulnerabilityCount: 2,
	}

	tox := Toxicity(view, meta)
	assert.Equal(t, 1, tox.LogicLeakageCount)
	assert.Equal(t, 80, tox.GodObjectProbability)
	assert.InDelta(t, 3.0, tox.EntanglementFactor, 1e-9)
	assert.Equal(t, 70, tox.ObservabilityGap)
	assert.Equal(t, 2, tox.SecurityVulnerabilityCount)
	assert.Equal(t, 100, tox.Score())

	service := model.NewSourceFile("src/services/user.ts", "short")
	tox = Toxicity(service, &model.StructuralMetadata{Imports: []model.Import{{Source: "./database"}}})
	assert.Equal(t, 0, tox.LogicLeakageCount, "only UI files leak")
	assert.Equal(t, 20, tox.GodObjectProbability)
	assert.InDelta(t, 1.0, tox.EntanglementFactor, 1e-9)

	assert.Equal(t, 20, Toxicity(service, nil).GodObjectProbability)
	assert.Equal(t, model.ToxicityMetrics{}, Toxicity(nil, meta))
}
