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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// fileWithImports builds an annotated file importing the given sources.
func fileWithImports(path string, sources ...string) *model.SourceFile {
	f := model.NewSourceFile(path, "")
	imports := make([]model.Import, 0, len(sources))
	for _, s := range sources {
		imports = append(imports, model.Import{Source: s})
	}
	f.Metadata = &model.StructuralMetadata{Imports: imports}
	return f
}

func TestBuild_Scenario(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "./b"),
		fileWithImports("b.ts", "./c"),
		fileWithImports("c.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []model.DependencyLink{
		{Source: "a.ts", Target: "b.ts", Relationship: "import"},
		{Source: "b.ts", Target: "c.ts", Relationship: "import"},
	}, g.Links)
	assert.Empty(t, g.Cycles())
}

func TestBuild_NodeDefaults(t *testing.T) {
	plain := fileWithImports("src/util.py")
	enriched := fileWithImports("src/App.tsx")
	enriched.Tier = model.TierModule
	enriched.Toxicity = &model.ToxicityMetrics{GodObjectProbability: 80}

	g := NewBuilder().Build(context.Background(), []*model.SourceFile{plain, enriched})

	n, err := g.Node("src/util.py")
	require.NoError(t, err)
	assert.Equal(t, model.TierImplementation, n.Tier)
	assert.Equal(t, 0, n.ToxicityScore)
	assert.Equal(t, "util.py", n.Label)
	assert.Equal(t, GroupOther, n.Group)

	n, err = g.Node("src/App.tsx")
	require.NoError(t, err)
	assert.Equal(t, model.TierModule, n.Tier)
	assert.Equal(t, 80, n.ToxicityScore)
	assert.Equal(t, GroupScript, n.Group)

	_, err = g.Node("missing.ts")
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestBuild_UnresolvedImportsAreDropped(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "react", "./nowhere", "./b"),
		fileWithImports("b.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)

	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Links, 1)
	assert.Equal(t, "b.ts", g.Links[0].Target)
	for _, l := range g.Links {
		assert.True(t, g.HasNode(l.Target))
	}
}

func TestBuild_FilesWithoutMetadataStillGetNodes(t *testing.T) {
	files := []*model.SourceFile{model.NewSourceFile("raw.ts", "import x from './y'")}
	g := NewBuilder().Build(context.Background(), files)
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Links)
}

func TestBuild_DuplicatePathsKeepFirst(t *testing.T) {
	first := fileWithImports("a.ts")
	first.Tier = model.TierArchitectural
	second := fileWithImports("a.ts")

	g := NewBuilder().Build(context.Background(), []*model.SourceFile{first, second, nil})
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, model.TierArchitectural, g.Nodes[0].Tier)
}

func TestBuild_PrefersSegmentAlignedMatches(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("src/a.ts", "./b", "./utils"),
		fileWithImports("src/abc.ts"),
		fileWithImports("src/b.ts"),
		fileWithImports("src/myutils.ts"),
		fileWithImports("lib/utils/index.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)

	require.Len(t, g.Links, 2)
	assert.Equal(t, "src/b.ts", g.Links[0].Target)
	assert.Equal(t, "lib/utils/index.ts", g.Links[1].Target)
}

func TestBuild_FallsBackToBareSubstring(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "helpers"),
		fileWithImports("src/stringhelpers.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)
	require.Len(t, g.Links, 1)
	assert.Equal(t, "src/stringhelpers.ts", g.Links[0].Target)
}

func TestBuild_RelativeImportsNeedAlignedMatch(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("src/x.ts", "./db", "@/api", "../lib/log"),
		fileWithImports("src/feedback.ts"),
		fileWithImports("src/rapid.ts"),
		fileWithImports("src/lib/logger.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)
	assert.Len(t, g.Nodes, 4)
	assert.Empty(t, g.Links)

	files = append(files, fileWithImports("src/db.ts"))
	g = NewBuilder().Build(context.Background(), files)
	require.Len(t, g.Links, 1)
	assert.Equal(t, "src/db.ts", g.Links[0].Target)
}

func TestBuild_NeverLinksFileToItself(t *testing.T) {
	g := NewBuilder().Build(context.Background(), []*model.SourceFile{fileWithImports("a.ts", "./a")})
	assert.Empty(t, g.Links)
}

func TestBuild_PythonModules(t *testing.T) {
	a := fileWithImports("app/handlers.py", "app.models", ".services")
	a.Language = model.LanguagePython
	files := []*model.SourceFile{a, fileWithImports("app/models.py"), fileWithImports("app/services.py")}

	g := NewBuilder().Build(context.Background(), files)
	require.Len(t, g.Links, 2)
	assert.Equal(t, "app/models.py", g.Links[0].Target)
	assert.Equal(t, "app/services.py", g.Links[1].Target)
}

func TestBuild_CycleDetection(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "./b"),
		fileWithImports("b.ts", "./c"),
		fileWithImports("c.ts", "./a"),
		fileWithImports("d.ts", "./a"),
	}
	g := NewBuilder().Build(context.Background(), files)

	circular := map[string]bool{}
	for _, l := range g.Links {
		circular[l.Source+"->"+l.Target] = l.IsCircular
	}
	assert.True(t, circular["a.ts->b.ts"])
	assert.True(t, circular["b.ts->c.ts"])
	assert.True(t, circular["c.ts->a.ts"])
	assert.False(t, circular["d.ts->a.ts"])

	assert.Equal(t, [][]string{{"a.ts", "b.ts", "c.ts"}}, g.Cycles())
	assert.True(t, g.InCycle("b.ts"))
	assert.False(t, g.InCycle("d.ts"))
}

func TestBuild_CycleDetectionDisabled(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "./b"),
		fileWithImports("b.ts", "./a"),
	}
	g := NewBuilder(WithCycleDetection(false)).Build(context.Background(), files)

	for _, l := range g.Links {
		assert.False(t, l.IsCircular)
	}
	assert.False(t, g.InCycle("a.ts"))
}

func TestBuild_OrderIndependentLinks(t *testing.T) {
	forward := []*model.SourceFile{
		fileWithImports("a.ts", "./b", "./c"),
		fileWithImports("b.ts", "./c"),
		fileWithImports("c.ts"),
	}
	reversed := []*model.SourceFile{forward[2], forward[1], forward[0]}

	g1 := NewBuilder().Build(context.Background(), forward)
	g2 := NewBuilder().Build(context.Background(), reversed)

	assert.ElementsMatch(t, g1.Nodes, g2.Nodes)
	assert.ElementsMatch(t, g1.Links, g2.Links)
}

func TestGraph_DependentsAndSimpleLinks(t *testing.T) {
	files := []*model.SourceFile{
		fileWithImports("a.ts", "./c", "./c"),
		fileWithImports("b.ts", "./c"),
		fileWithImports("c.ts"),
	}
	g := NewBuilder().Build(context.Background(), files)

	assert.Len(t, g.Links, 3)
	assert.Len(t, g.SimpleLinks(), 2)
	assert.Equal(t, []string{"a.ts", "b.ts"}, g.Dependents("c.ts"))
	assert.Empty(t, g.Dependents("a.ts"))
}

func TestNormalizeImport(t *testing.T) {
	cases := []struct {
		in   string
		lang model.Language
		want string
	}{
		{"./b", model.LanguageTypeScript, "b"},
		{"../../lib/x", model.LanguageTypeScript, "lib/x"},
		{"@/components/Button", model.LanguageTypeScript, "components/Button"},
		{"'react'", model.LanguageJavaScript, "react"},
		{"..", model.LanguageTypeScript, ".."},
		{"./", model.LanguageTypeScript, ""},
		{"..models", model.LanguagePython, "models"},
		{"com.acme.Widget", model.LanguageJava, "com/acme/Widget"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeImport(c.in, c.lang), c.in)
	}
}

func TestEmpty(t *testing.T) {
	g := Empty()
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Links)
	assert.False(t, g.HasNode("a.ts"))
}
