// Package render provides diagram serialization for assembled graphs.
//
// # Overview
//
// This package groups the serializers that turn a pruned render graph
// into output formats:
//
//   - Mermaid flowcharts (in [mermaid] subpackage)
//   - Graphviz DOT and raster images (in [dot] subpackage)
//
// # Mermaid
//
// The [mermaid] subpackage emits a deterministic flowchart: identical
// input graphs and options produce byte-identical text. SVG raster
// output shells out to the Mermaid CLI (mmdc).
//
//	text := mermaid.Render(rg, mermaid.Options{})
//	svg, rerr := mermaid.RasterSVG(ctx, text, mermaid.RasterOptions{})
//
// # DOT
//
// The [dot] subpackage renders the same graph through Graphviz, which
// handles large full-graph diagrams better than Mermaid's layout.
//
//	src := dot.ToDOT(rg, dot.Options{})
//	png, err := dot.RenderPNG(ctx, src)
package render
