// Package pkg provides the core libraries for archmap architecture analysis.
//
// # Overview
//
// Archmap turns a Python codebase into an architecture diagram by
// statically analyzing its source, correlating HTTP routes with the
// call graph, and serializing a pruned view of the result. The pkg
// directory is organized into four main areas:
//
//  1. Analysis - source scanning and graph construction
//     ([pysrc], [callgraph], [routes], [assemble])
//  2. Rendering - diagram serialization ([render/mermaid], [render/dot])
//  3. Infrastructure - caching, persistence, configuration
//     ([cache], [artifact], [config], [errors], [observability])
//  4. Orchestration - the pipeline shared by CLI and API ([pipeline])
//
// # Architecture
//
// The typical data flow through archmap:
//
//	Python Source Tree
//	         ↓
//	pysrc.Scan          parse files into module summaries
//	         ↓
//	callgraph.Build     index symbols, resolve calls
//	         ↓
//	routes.Extract      find decorator-registered HTTP routes
//	         ↓
//	assemble.Build      prune to a policy (api, nhops, full)
//	         ↓
//	mermaid.Render / dot.ToDOT
//
// Every stage is deterministic: the same tree and options produce
// byte-identical diagrams, which is what makes render-output caching
// in [cache] safe.
package pkg
