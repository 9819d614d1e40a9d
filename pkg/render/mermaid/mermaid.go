// Package mermaid serializes a render graph into a Mermaid flowchart.
//
// Output is byte-deterministic for identical (graph, options) input:
// endpoints render first in their snapshot order, then nodes in the
// render graph's sorted order, then edges in insertion order. Nothing
// about the direction or label options changes which nodes appear.
package mermaid

import (
	"fmt"
	"strings"

	"archmap/pkg/assemble"
	"archmap/pkg/errors"
)

// Direction is the flowchart layout direction. Layout only; content is
// unaffected.
type Direction string

const (
	DirTD Direction = "TD"
	DirTB Direction = "TB"
	DirLR Direction = "LR"
	DirRL Direction = "RL"
	DirBT Direction = "BT"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirTD, DirTB, DirLR, DirRL, DirBT:
		return Direction(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "invalid direction %q (must be one of: TD, TB, LR, RL, BT)", s)
}

// LabelMode controls how qualified names are shortened for display.
type LabelMode string

const (
	// LabelShort keeps the trailing LabelDepth segments of a qualified
	// name.
	LabelShort LabelMode = "short"

	// LabelFull shows the whole qualified name.
	LabelFull LabelMode = "full"
)

// Options configures serialization.
type Options struct {
	// Prefix namespaces the generated node identifiers, letting several
	// diagrams coexist in one document.
	Prefix string

	// Direction is the flowchart direction. Defaults to TD.
	Direction Direction

	// LabelMode defaults to LabelShort.
	LabelMode LabelMode

	// LabelDepth is the number of trailing segments kept in short mode.
	// Defaults to 2.
	LabelDepth int

	// WrapLabels replaces dots with <br/> so nodes grow tall, not wide.
	WrapLabels bool
}

func (o *Options) defaults() {
	if o.Direction == "" {
		o.Direction = DirTD
	}
	if o.LabelMode == "" {
		o.LabelMode = LabelShort
	}
	if o.LabelDepth == 0 {
		o.LabelDepth = 2
	}
}

// Render serializes the graph. The output starts with the flowchart
// header and class definitions, then endpoint nodes with their handler
// links and tag associations, then tag nodes, then the remaining
// nodes, then call edges.
func Render(rg *assemble.RenderGraph, opts Options) string {
	opts.defaults()

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", opts.Direction)
	b.WriteString("classDef endpoint fill:#eef,stroke:#88a,stroke-width:1px;\n")
	b.WriteString("classDef handler  fill:#efe,stroke:#6a6,stroke-width:1px;\n")
	b.WriteString("classDef external fill:#eee,stroke:#bbb,stroke-dasharray: 3 3;\n")
	b.WriteString("classDef tag fill:#eee,stroke:#bbb,stroke-dasharray: 3 3;\n")

	if len(rg.Endpoints) > 0 {
		b.WriteString("\n%% Endpoints\n")
	}
	tagSeen := make(map[string]bool)
	var tagOrder []string
	for _, ep := range rg.Endpoints {
		id := opts.endpointID(ep.Method, ep.Path)
		fmt.Fprintf(&b, "%s[\"%s\"]:::endpoint\n", id, escLabel(ep.Method+" "+ep.Path))
		if ep.Handler != "" {
			fmt.Fprintf(&b, "%s --> %s\n", id, opts.nodeID(ep.Handler))
		}
		for _, t := range ep.Tags {
			if !tagSeen[t] {
				tagSeen[t] = true
				tagOrder = append(tagOrder, t)
			}
			fmt.Fprintf(&b, "%s --- %s\n", id, opts.tagID(t))
		}
	}

	if len(tagOrder) > 0 {
		b.WriteString("\n%% Tags\n")
	}
	for _, t := range tagOrder {
		fmt.Fprintf(&b, "%s[\"tag: %s\"]:::tag\n", opts.tagID(t), escLabel(t))
	}

	if len(rg.Nodes) > 0 {
		b.WriteString("\n%% Symbols\n")
	}
	for _, n := range rg.Nodes {
		label := escLabel(opts.label(n))
		switch n.Kind {
		case assemble.KindHandler:
			fmt.Fprintf(&b, "%s[\"%s\"]:::handler\n", opts.nodeID(n.ID), label)
		case assemble.KindExternal:
			fmt.Fprintf(&b, "%s[\"%s\"]:::external\n", opts.nodeID(n.ID), label)
		default:
			fmt.Fprintf(&b, "%s[\"%s\"]\n", opts.nodeID(n.ID), label)
		}
	}

	if len(rg.Edges) > 0 {
		b.WriteString("\n%% Calls\n")
	}
	for _, e := range rg.Edges {
		arrow := "-->"
		if e.External {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "%s %s %s\n", opts.nodeID(e.From), arrow, opts.nodeID(e.To))
	}

	return b.String()
}

// safeID replaces every rune outside [A-Za-z0-9_] with an underscore.
func safeID(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// nodeID builds a function-node identifier in the FN_ namespace.
func (o *Options) nodeID(qualified string) string {
	if o.Prefix != "" {
		return "FN_" + safeID(o.Prefix+"_"+qualified)
	}
	return "FN_" + safeID(qualified)
}

// endpointID builds an endpoint identifier in the EP_ namespace.
func (o *Options) endpointID(method, path string) string {
	if o.Prefix != "" {
		return "EP_" + safeID(o.Prefix+"_"+method+"_"+path)
	}
	return "EP_" + safeID(method+"_"+path)
}

// tagID builds a tag-node identifier in the TAG_ namespace.
func (o *Options) tagID(tag string) string {
	if o.Prefix != "" {
		return "TAG_" + safeID(o.Prefix+"_"+tag)
	}
	return "TAG_" + safeID(tag)
}

// label shortens and optionally wraps a node's display text.
func (o *Options) label(n assemble.Node) string {
	text := n.ID
	if n.Kind == assemble.KindExternal {
		// External leaves keep the literal callee text untouched.
		return text
	}
	if o.LabelMode == LabelShort {
		parts := strings.Split(text, ".")
		if len(parts) > o.LabelDepth {
			text = strings.Join(parts[len(parts)-o.LabelDepth:], ".")
		}
	}
	if o.WrapLabels {
		text = strings.ReplaceAll(text, ".", "<br/>")
	}
	return text
}

// escLabel escapes double quotes for Mermaid label syntax.
func escLabel(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
