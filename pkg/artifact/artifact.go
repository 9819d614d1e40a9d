// Package artifact serializes analysis results into deterministic JSON
// documents and persists diagram runs.
//
// The route list and the full pre-pruning call graph are always
// derivable regardless of the selected render policy; they are the
// equivalents of the original service's routes.json and callgraph.json
// files.
package artifact

import (
	"bytes"
	"encoding/json"

	"archmap/pkg/callgraph"
	"archmap/pkg/routes"
)

// CallgraphDoc is the JSON shape of a serialized call graph.
type CallgraphDoc struct {
	Modules []string        `json:"modules" bson:"modules"`
	Nodes   []CallgraphNode `json:"nodes" bson:"nodes"`
	Edges   []CallgraphEdge `json:"edges" bson:"edges"`
}

// CallgraphNode is one symbol entry.
type CallgraphNode struct {
	Qualified string `json:"qualified" bson:"qualified"`
	Name      string `json:"name" bson:"name"`
	Module    string `json:"module" bson:"module"`
	Kind      string `json:"kind" bson:"kind"`
	File      string `json:"file" bson:"file"`
	StartLine int    `json:"start_line" bson:"start_line"`
	EndLine   int    `json:"end_line" bson:"end_line"`
}

// CallgraphEdge is one call entry. External edges carry the literal
// callee text in Callee and set External.
type CallgraphEdge struct {
	Caller   string `json:"caller" bson:"caller"`
	Callee   string `json:"callee" bson:"callee"`
	External bool   `json:"external,omitempty" bson:"external,omitempty"`
	Line     int    `json:"line,omitempty" bson:"line,omitempty"`
}

// MarshalCallgraph serializes the full graph as indented JSON. Nodes
// are emitted in sorted qualified-name order and edges in insertion
// order, so identical graphs marshal to identical bytes.
func MarshalCallgraph(g *callgraph.Graph) ([]byte, error) {
	doc := CallgraphDoc{Modules: g.Modules()}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, CallgraphNode{
			Qualified: n.Qualified,
			Name:      n.Name,
			Module:    n.Module,
			Kind:      string(n.Kind),
			File:      n.File,
			StartLine: n.Span.StartLine,
			EndLine:   n.Span.EndLine,
		})
	}
	for _, e := range g.Edges() {
		edge := CallgraphEdge{Caller: e.Caller, Line: e.Line}
		if e.Target.IsResolved() {
			edge.Callee = e.Target.Symbol
		} else {
			edge.Callee = e.Target.Literal
			edge.External = true
		}
		doc.Edges = append(doc.Edges, edge)
	}
	return marshalIndented(doc)
}

// MarshalRoutes serializes the route snapshot as indented JSON. The
// snapshot is already sorted by (path, method).
func MarshalRoutes(rts []routes.Route) ([]byte, error) {
	if rts == nil {
		rts = []routes.Route{}
	}
	return marshalIndented(rts)
}

// marshalIndented encodes with two-space indentation and no HTML
// escaping, matching what a human would diff.
func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
