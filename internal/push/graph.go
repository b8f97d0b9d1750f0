// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package push

import "github.com/MKhiriev/go-cache-sync/models"

// node is a changed object, or with anchor set, an unchanged synced object a
// created relationship points at. Nodes and edges live in arenas and refer
// to each other by index.
type node struct {
	inst     models.Instance
	anchor   bool
	parent   int
	via      int
	children []int
	placed   bool
}

// edge is a created relationship linking a parent node to a child node.
// direction is seen from the parent.
type edge struct {
	rel       models.Instance
	from      int
	to        int
	direction models.Direction
}

// loose is a relationship sent on its own after the object forest.
// Created ones reference both endpoint nodes; modified and deleted ones are
// sent by remote id and reference none.
type loose struct {
	rel    models.Instance
	source int
	target int
}

// graph is the upload plan of one change set.
type graph struct {
	nodes []node
	edges []edge
	roots []int
	loose []loose
	// unsendable holds relationships with an endpoint that can never be
	// referenced in this run.
	unsendable []models.Instance
}

// buildGraph arranges the change set into a forest. Pending objects are
// visited depth first in change-number order; every created relationship
// from a visited object either pulls a not yet placed pending object in as
// its child, or attaches an unchanged synced endpoint as an anchor leaf.
// Relationships that would close a cycle, and relationships with no created
// endpoint, are left loose.
func buildGraph(cs models.ChangeSet) *graph {
	g := &graph{}

	byID := make(map[int64]int, len(cs.Objects))
	for _, obj := range cs.Objects {
		byID[obj.Key.ID] = g.addNode(obj, false)
	}

	incident := make(map[int64][]int)
	for i, rel := range cs.Relationships {
		if rel.Change.Status != models.Created {
			continue
		}
		incident[rel.Source.ID] = append(incident[rel.Source.ID], i)
		incident[rel.Target.ID] = append(incident[rel.Target.ID], i)
	}

	consumed := make([]bool, len(cs.Relationships))
	deferred := make([]bool, len(cs.Relationships))

	var visit func(n int)
	visit = func(n int) {
		g.nodes[n].placed = true
		obj := g.nodes[n].inst
		created := obj.Change.Status == models.Created

		for _, ri := range incident[obj.Key.ID] {
			if consumed[ri] {
				continue
			}
			rel := cs.Relationships[ri]

			otherID, dir := rel.Target.ID, models.Forward
			if rel.Target.ID == obj.Key.ID {
				otherID, dir = rel.Source.ID, models.Backward
			}

			if other, ok := byID[otherID]; ok {
				if !created && g.nodes[other].inst.Change.Status != models.Created {
					continue
				}
				consumed[ri] = true
				if g.nodes[other].placed {
					deferred[ri] = true
					continue
				}
				g.link(n, other, rel, dir)
				visit(other)
				continue
			}

			related, ok := cs.Related[otherID]
			if !created || !ok || !related.Remote.IsSynced() {
				continue
			}
			consumed[ri] = true
			g.link(n, g.addNode(related, true), rel, dir)
		}
	}

	for n := range cs.Objects {
		if !g.nodes[n].placed {
			g.roots = append(g.roots, n)
			visit(n)
		}
	}

	for i, rel := range cs.Relationships {
		if consumed[i] && !deferred[i] {
			continue
		}

		if rel.Change.Status != models.Created {
			g.loose = append(g.loose, loose{rel: rel, source: -1, target: -1})
			continue
		}

		source, okSource := g.endpoint(rel.Source.ID, byID, cs.Related)
		target, okTarget := g.endpoint(rel.Target.ID, byID, cs.Related)
		if !okSource || !okTarget {
			g.unsendable = append(g.unsendable, rel)
			continue
		}
		g.loose = append(g.loose, loose{rel: rel, source: source, target: target})
	}

	return g
}

func (g *graph) addNode(inst models.Instance, anchor bool) int {
	g.nodes = append(g.nodes, node{inst: inst, anchor: anchor, parent: -1, via: -1})
	return len(g.nodes) - 1
}

func (g *graph) link(parent, child int, rel models.Instance, dir models.Direction) {
	g.edges = append(g.edges, edge{rel: rel, from: parent, to: child, direction: dir})
	e := len(g.edges) - 1

	g.nodes[child].parent = parent
	g.nodes[child].via = e
	g.nodes[child].placed = true
	g.nodes[parent].children = append(g.nodes[parent].children, child)
}

// endpoint resolves a loose relationship endpoint to a node: the pending
// object itself, or a fresh anchor for a synced unchanged object.
func (g *graph) endpoint(id int64, byID map[int64]int, related map[int64]models.Instance) (int, bool) {
	if n, ok := byID[id]; ok {
		return n, true
	}

	inst, ok := related[id]
	if !ok || !inst.Remote.IsSynced() {
		return -1, false
	}
	return g.addNode(inst, true), true
}

// subtree returns n and every node below it in pre-order.
func (g *graph) subtree(n int) []int {
	out := []int{n}
	for _, c := range g.nodes[n].children {
		out = append(out, g.subtree(c)...)
	}
	return out
}
