// Package dot renders a render graph as Graphviz DOT, with in-process
// SVG and PNG rasterization. It is the second output format next to
// the Mermaid flowchart and shares its determinism guarantees: the
// DOT text is a pure function of the render graph and options.
package dot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"archmap/pkg/assemble"
)

// Options configures DOT generation.
type Options struct {
	// RankDir is the Graphviz layout direction (TB, LR, RL, BT).
	// Defaults to TB.
	RankDir string
}

// ToDOT converts a render graph to Graphviz DOT. Endpoints render as
// folder-shaped nodes, handlers and functions as boxes, external leaves
// dashed. Node order follows the render graph, so output is stable.
func ToDOT(rg *assemble.RenderGraph, opts Options) string {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph archmap {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, ep := range rg.Endpoints {
		id := "ep:" + ep.Method + " " + ep.Path
		fmt.Fprintf(&buf, "  %q [label=%q, shape=folder, fillcolor=\"#eeeeff\"];\n", id, ep.Method+" "+ep.Path)
	}

	for _, n := range rg.Nodes {
		switch n.Kind {
		case assemble.KindHandler:
			fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=\"#eeffee\"];\n", n.ID, n.Label)
		case assemble.KindExternal:
			fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", n.ID, n.Label)
		default:
			fmt.Fprintf(&buf, "  %q [label=%q];\n", n.ID, n.Label)
		}
	}

	buf.WriteString("\n")
	for _, ep := range rg.Endpoints {
		if ep.Handler != "" {
			fmt.Fprintf(&buf, "  %q -> %q;\n", "ep:"+ep.Method+" "+ep.Path, ep.Handler)
		}
	}
	for _, e := range rg.Edges {
		if e.External {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders DOT text to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.SVG)
}

// RenderPNG renders DOT text to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
