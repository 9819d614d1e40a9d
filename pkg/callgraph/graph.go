// Package callgraph builds a static function-level call graph from
// parsed Python modules.
//
// Construction is two-pass: every symbol across all modules is indexed
// by qualified name before any call expression is resolved, so
// resolution never depends on module order. Call targets are a tagged
// variant: a call either resolves to a known symbol or becomes an
// external edge carrying the literal callee text. Resolution never
// fails a build; anything ambiguous degrades to an external edge.
package callgraph

import (
	"sort"

	"archmap/pkg/errors"
	"archmap/pkg/pysrc"
)

// TargetKind discriminates the two forms of a call target.
type TargetKind int

const (
	// TargetResolved points at a symbol defined in the scanned package.
	TargetResolved TargetKind = iota

	// TargetExternal is a call that could not be resolved to a scanned
	// symbol. The literal callee text is preserved.
	TargetExternal
)

// CallTarget is the destination of a call edge.
// Literal is always set; Symbol only for resolved targets.
type CallTarget struct {
	Kind    TargetKind
	Symbol  string
	Literal string
}

// Resolved creates a target pointing at a scanned symbol.
func Resolved(symbol, literal string) CallTarget {
	return CallTarget{Kind: TargetResolved, Symbol: symbol, Literal: literal}
}

// External creates a target carrying only the literal callee text.
func External(literal string) CallTarget {
	return CallTarget{Kind: TargetExternal, Literal: literal}
}

// IsResolved reports whether the target points at a scanned symbol.
func (t CallTarget) IsResolved() bool {
	return t.Kind == TargetResolved
}

// Node is one function or method in the graph.
type Node struct {
	Qualified string
	Name      string
	Module    string
	Kind      pysrc.Kind
	File      string
	Span      pysrc.Span
}

// Edge is one call site.
type Edge struct {
	Caller string
	Target CallTarget
	Line   int
}

// Graph is the immutable result of a build. It is safe for concurrent
// reads; Build never returns a graph that is still being mutated.
type Graph struct {
	modules []string
	nodes   map[string]*Node
	sorted  []string
	edges   []Edge
	out     map[string][]int
	diags   []errors.Diagnostic
}

// Modules returns the scanned module names in scan order.
func (g *Graph) Modules() []string {
	return g.modules
}

// Node looks up a node by qualified name.
func (g *Graph) Node(qualified string) (*Node, bool) {
	n, ok := g.nodes[qualified]
	return n, ok
}

// Nodes returns all nodes sorted by qualified name.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.sorted))
	for _, q := range g.sorted {
		out = append(out, g.nodes[q])
	}
	return out
}

// Edges returns all edges in insertion order: modules in scan order,
// symbols in definition order, call sites in body order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Outgoing returns the edges whose caller is the given symbol,
// in insertion order.
func (g *Graph) Outgoing(qualified string) []Edge {
	idxs := g.out[qualified]
	out := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, g.edges[i])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Roots returns the qualified names of nodes with no incoming resolved
// edge, sorted. Used as traversal roots when no routes exist.
func (g *Graph) Roots() []string {
	called := make(map[string]bool)
	for _, e := range g.edges {
		if e.Target.IsResolved() {
			called[e.Target.Symbol] = true
		}
	}
	var roots []string
	for q := range g.nodes {
		if !called[q] {
			roots = append(roots, q)
		}
	}
	sort.Strings(roots)
	return roots
}

// Diagnostics returns conditions recorded during the build, such as
// duplicate qualified names.
func (g *Graph) Diagnostics() []errors.Diagnostic {
	return g.diags
}

// addNode inserts a node. Duplicate qualified names are last-wins with
// a diagnostic; the scan order is deterministic, so the winner is too.
func (g *Graph) addNode(n *Node) {
	if prev, ok := g.nodes[n.Qualified]; ok {
		g.diags = append(g.diags, errors.Diag(errors.ErrCodeDuplicateSymbol, n.File,
			"duplicate symbol %s (previously in %s)", n.Qualified, prev.File))
		g.nodes[n.Qualified] = n
		return
	}
	g.nodes[n.Qualified] = n
	g.sorted = append(g.sorted, n.Qualified)
}

// addEdge appends an edge and indexes it by caller.
func (g *Graph) addEdge(e Edge) {
	g.out[e.Caller] = append(g.out[e.Caller], len(g.edges))
	g.edges = append(g.edges, e)
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]int),
	}
}
