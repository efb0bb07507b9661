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
	"fmt"
	"sort"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// Graph is a built dependency graph. Only Nodes and Links are
// serialised.
type Graph struct {
	Nodes []model.DependencyNode `json:"nodes"`
	Links []model.DependencyLink `json:"links"`

	nodeIndex  map[string]int
	dependents map[string][]string
	cycleOf    map[string]int
	cycles     [][]string
}

// Empty returns a graph with no nodes.
func Empty() *Graph {
	return newGraph(nil, nil, nil)
}

func newGraph(nodes []model.DependencyNode, links []model.DependencyLink, cycles [][]string) *Graph {
	if nodes == nil {
		nodes = []model.DependencyNode{}
	}
	if links == nil {
		links = []model.DependencyLink{}
	}
	g := &Graph{
		Nodes:      nodes,
		Links:      links,
		nodeIndex:  make(map[string]int, len(nodes)),
		dependents: make(map[string][]string),
		cycleOf:    make(map[string]int),
		cycles:     cycles,
	}
	for i, n := range nodes {
		g.nodeIndex[n.ID] = i
	}

	seen := make(map[[2]string]struct{}, len(links))
	for _, l := range links {
		key := [2]string{l.Source, l.Target}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		g.dependents[l.Target] = append(g.dependents[l.Target], l.Source)
	}
	for target := range g.dependents {
		sort.Strings(g.dependents[target])
	}

	for i, members := range cycles {
		for _, m := range members {
			g.cycleOf[m] = i
		}
	}
	return g
}

// Node returns the node with the given path.
func (g *Graph) Node(id string) (model.DependencyNode, error) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return model.DependencyNode{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return g.Nodes[i], nil
}

// HasNode reports whether id is a node.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// Dependents returns the sorted, distinct paths that import target.
// The returned slice must not be modified.
func (g *Graph) Dependents(target string) []string {
	return g.dependents[target]
}

// InCycle reports whether path belongs to an import cycle.
func (g *Graph) InCycle(path string) bool {
	_, ok := g.cycleOf[path]
	return ok
}

// Cycles returns the import cycles, each a sorted list of member paths.
// Cycles are ordered by their first member.
func (g *Graph) Cycles() [][]string {
	out := make([][]string, len(g.cycles))
	for i, c := range g.cycles {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// SimpleLinks returns Links with duplicate (source, target) pairs removed,
// keeping the first occurrence.
func (g *Graph) SimpleLinks() []model.DependencyLink {
	seen := make(map[[2]string]struct{}, len(g.Links))
	out := make([]model.DependencyLink, 0, len(g.Links))
	for _, l := range g.Links {
		key := [2]string{l.Source, l.Target}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
