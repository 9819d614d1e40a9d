// Package assemble prunes a call graph into a render graph according
// to a policy: routes only, bounded reachability from route handlers,
// or the full graph. The output ordering is fixed (nodes sorted by
// identifier, edges in insertion order) so downstream serialization is
// byte-deterministic.
package assemble

import (
	"sort"

	"archmap/pkg/callgraph"
	"archmap/pkg/errors"
	"archmap/pkg/routes"
)

// Policy selects which part of the call graph is rendered.
type Policy string

const (
	// PolicyAPI renders routes and their handler symbols, no call edges.
	PolicyAPI Policy = "api"

	// PolicyNHops renders everything reachable from route handlers
	// within a hop budget.
	PolicyNHops Policy = "nhops"

	// PolicyFull renders the whole graph.
	PolicyFull Policy = "full"
)

// ParsePolicy validates a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAPI, PolicyNHops, PolicyFull:
		return Policy(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidPolicy, "invalid policy %q (must be one of: api, nhops, full)", s)
}

// NodeKind classifies a render node.
type NodeKind string

const (
	KindFunction NodeKind = "function"
	KindHandler  NodeKind = "handler"
	KindExternal NodeKind = "external"
)

// Node is one renderable node. ID is the qualified symbol name for
// scanned symbols and the literal callee text for external targets.
type Node struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Module string   `json:"module,omitempty"`
	Kind   NodeKind `json:"kind"`
}

// Edge is one renderable call edge. External edges point at external
// leaf nodes and render with a distinct style.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	External bool   `json:"external,omitempty"`
}

// Endpoint is one route entry in the render graph.
type Endpoint struct {
	Method  string   `json:"method"`
	Path    string   `json:"path"`
	Handler string   `json:"handler,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// RenderGraph is the pruned, ordered graph handed to the serializers.
// Internal nodes come first sorted by ID, then external nodes sorted by
// ID; edges keep call-site insertion order.
type RenderGraph struct {
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Build assembles the render graph for a policy. hops is only read for
// PolicyNHops and must be >= 0.
//
// Route handler symbols present in the graph are always included,
// whatever the policy. With no routes, PolicyAPI yields an empty graph
// and PolicyNHops starts from the symbols with no incoming resolved
// edges.
func Build(g *callgraph.Graph, rts []routes.Route, policy Policy, hops int) (*RenderGraph, error) {
	switch policy {
	case PolicyAPI, PolicyNHops, PolicyFull:
	default:
		return nil, errors.New(errors.ErrCodeInvalidPolicy, "invalid policy %q", string(policy))
	}
	if policy == PolicyNHops && hops < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "hop budget must be >= 0, got %d", hops)
	}

	handlers := handlerSet(rts)

	rg := &RenderGraph{}
	for _, r := range rts {
		rg.Endpoints = append(rg.Endpoints, Endpoint{Method: r.Method, Path: r.Path, Handler: r.Handler, Tags: r.Tags})
	}

	switch policy {
	case PolicyAPI:
		appendInternalNodes(rg, g, handlers, handlers)
	case PolicyFull:
		included := make(map[string]bool)
		for _, n := range g.Nodes() {
			included[n.Qualified] = true
		}
		appendInternalNodes(rg, g, included, handlers)
		appendEdges(rg, g, included, handlers, func(string) bool { return true })
	case PolicyNHops:
		dist := walk(g, roots(g, handlers), hops)
		included := make(map[string]bool, len(dist))
		for q := range dist {
			included[q] = true
		}
		// Handlers are never pruned, even with a zero budget.
		for q := range handlers {
			if _, ok := g.Node(q); ok {
				included[q] = true
			}
		}
		appendInternalNodes(rg, g, included, handlers)
		appendEdges(rg, g, included, handlers, func(caller string) bool {
			d, ok := dist[caller]
			return ok && d+1 <= hops
		})
	}

	return rg, nil
}

// handlerSet collects the resolved handler symbols of a route list.
func handlerSet(rts []routes.Route) map[string]bool {
	set := make(map[string]bool)
	for _, r := range rts {
		if r.Handler != "" {
			set[r.Handler] = true
		}
	}
	return set
}

// roots returns the sorted BFS start set: route handlers when any
// exist, otherwise the graph's own roots.
func roots(g *callgraph.Graph, handlers map[string]bool) []string {
	if len(handlers) == 0 {
		return g.Roots()
	}
	out := make([]string, 0, len(handlers))
	for q := range handlers {
		if _, ok := g.Node(q); ok {
			out = append(out, q)
		}
	}
	sort.Strings(out)
	return out
}

// walk runs a visited-set BFS over resolved edges. Each node is
// enqueued once at its smallest distance; neighbors expand in
// lexicographic order so ties break deterministically. Nodes beyond
// the budget are not entered.
func walk(g *callgraph.Graph, start []string, budget int) map[string]int {
	dist := make(map[string]int)
	queue := make([]string, 0, len(start))
	for _, q := range start {
		if _, ok := dist[q]; !ok {
			dist[q] = 0
			queue = append(queue, q)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := dist[cur]
		if d >= budget {
			continue
		}

		var next []string
		seen := make(map[string]bool)
		for _, e := range g.Outgoing(cur) {
			if !e.Target.IsResolved() || seen[e.Target.Symbol] {
				continue
			}
			seen[e.Target.Symbol] = true
			next = append(next, e.Target.Symbol)
		}
		sort.Strings(next)

		for _, q := range next {
			if _, ok := dist[q]; ok {
				continue
			}
			if _, exists := g.Node(q); !exists {
				continue
			}
			dist[q] = d + 1
			queue = append(queue, q)
		}
	}
	return dist
}

// appendInternalNodes adds the included scanned symbols, sorted by
// qualified name, marking route handlers.
func appendInternalNodes(rg *RenderGraph, g *callgraph.Graph, included, handlers map[string]bool) {
	for _, n := range g.Nodes() {
		if !included[n.Qualified] {
			continue
		}
		kind := KindFunction
		if handlers[n.Qualified] {
			kind = KindHandler
		}
		rg.Nodes = append(rg.Nodes, Node{
			ID:     n.Qualified,
			Label:  n.Name,
			Module: n.Module,
			Kind:   kind,
		})
	}
}

// appendEdges adds edges between included nodes in insertion order.
// Resolved edges require both endpoints included; external edges
// require the caller included plus the policy's leaf predicate, and
// materialize their target as an external leaf node (deduplicated,
// appended after the internal nodes in sorted order).
func appendEdges(rg *RenderGraph, g *callgraph.Graph, included, handlers map[string]bool, externalOK func(caller string) bool) {
	externals := make(map[string]bool)
	for _, e := range g.Edges() {
		if !included[e.Caller] {
			continue
		}
		if e.Target.IsResolved() {
			if included[e.Target.Symbol] {
				rg.Edges = append(rg.Edges, Edge{From: e.Caller, To: e.Target.Symbol})
			}
			continue
		}
		if !externalOK(e.Caller) {
			continue
		}
		rg.Edges = append(rg.Edges, Edge{From: e.Caller, To: e.Target.Literal, External: true})
		externals[e.Target.Literal] = true
	}

	keys := make([]string, 0, len(externals))
	for k := range externals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rg.Nodes = append(rg.Nodes, Node{ID: k, Label: k, Kind: KindExternal})
	}
}
