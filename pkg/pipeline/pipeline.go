// Package pipeline provides the core analysis pipeline for archmap.
//
// This package implements the complete scan → build → extract →
// assemble → render flow shared by the CLI and the HTTP service. Each
// run scans its own source tree and owns its call graph; nothing parsed
// is shared across runs. Only render outputs are cached, keyed by the
// content hash of the assembled render graph plus the render options.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Root:    "/path/to/project",
//	    AppRef:  "app.main:app",
//	    Policy:  "nhops",
//	    Hops:    2,
//	    Formats: []string{"mermaid", "svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Diagram)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"archmap/pkg/assemble"
	"archmap/pkg/errors"
	"archmap/pkg/render/mermaid"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultPolicy is the render policy when none is given.
	DefaultPolicy = string(assemble.PolicyAPI)

	// DefaultHops is the hop budget for the nhops policy.
	DefaultHops = 1

	// DefaultDirection is the flowchart direction.
	DefaultDirection = string(mermaid.DirTD)

	// DefaultFilePrefix restricts the scan to the application package,
	// matching the original service's behavior.
	DefaultFilePrefix = "app"
)

// Format constants for output formats.
const (
	FormatMermaid = "mermaid"
	FormatDOT     = "dot"
	FormatSVG     = "svg"
	FormatPNG     = "png"
)

// ValidFormats is the set of supported output formats. SVG rasterizes
// the Mermaid text via the Mermaid CLI; PNG renders the DOT form via
// Graphviz.
var ValidFormats = map[string]bool{
	FormatMermaid: true,
	FormatDOT:     true,
	FormatSVG:     true,
	FormatPNG:     true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Scan options
	Root       string `json:"project_dir"`
	Subdir     string `json:"subdir,omitempty"`
	FilePrefix string `json:"prefix,omitempty"`
	Workers    int    `json:"-"`

	// Route extraction; empty means call-graph only.
	AppRef string `json:"app_module,omitempty"`

	// Assembly options
	Policy string `json:"policy,omitempty"`
	Hops   int    `json:"hops,omitempty"`

	// Render options
	Direction  string   `json:"direction,omitempty"`
	NodePrefix string   `json:"node_prefix,omitempty"`
	LabelMode  string   `json:"label_mode,omitempty"`
	LabelDepth int      `json:"label_depth,omitempty"`
	WrapLabels bool     `json:"wrap_labels,omitempty"`
	Formats    []string `json:"render,omitempty"`

	// IncludeArtifacts adds the routes and callgraph JSON documents to
	// the result.
	IncludeArtifacts bool `json:"include_artifacts,omitempty"`

	// Refresh bypasses the render cache.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger        *log.Logger   `json:"-"`
	MermaidCLI    string        `json:"-"`
	RasterTimeout time.Duration `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same
// effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Root == "" {
		return errors.New(errors.ErrCodeInvalidInput, "project_dir is required")
	}
	if o.FilePrefix == "" {
		o.FilePrefix = DefaultFilePrefix
	}

	if o.Policy == "" {
		o.Policy = DefaultPolicy
	}
	if _, err := assemble.ParsePolicy(o.Policy); err != nil {
		return err
	}
	if o.Hops == 0 {
		o.Hops = DefaultHops
	}
	if o.Hops < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "hops must be >= 0, got %d", o.Hops)
	}

	if o.Direction == "" {
		o.Direction = DefaultDirection
	}
	if _, err := mermaid.ParseDirection(o.Direction); err != nil {
		return err
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatMermaid}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidFormat, "invalid format %q (must be one of: mermaid, dot, svg, png)", f)
		}
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// MermaidOptions derives the serializer options.
func (o *Options) MermaidOptions() mermaid.Options {
	return mermaid.Options{
		Prefix:     o.NodePrefix,
		Direction:  mermaid.Direction(o.Direction),
		LabelMode:  mermaid.LabelMode(o.LabelMode),
		LabelDepth: o.LabelDepth,
		WrapLabels: o.WrapLabels,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run. Partial failure never
// loses the derivable parts: a raster failure still returns the diagram
// text, a failed route extraction still returns the call graph.
type Result struct {
	// Diagram is the Mermaid flowchart text. Always present.
	Diagram string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// RasterErr is set when SVG rasterization failed; Diagram is still
	// valid in that case.
	RasterErr *mermaid.RasterError

	// RoutesJSON and CallgraphJSON are the artifact documents, present
	// when Options.IncludeArtifacts was set.
	RoutesJSON    []byte
	CallgraphJSON []byte

	// RenderHash is the content hash of the assembled render graph.
	RenderHash string

	// Diagnostics aggregates every non-fatal condition from all stages.
	Diagnostics []errors.Diagnostic

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which outputs came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ModuleCount int
	SymbolCount int
	EdgeCount   int
	RouteCount  int
	ScanTime    time.Duration
	BuildTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	RenderHit bool // Whether all requested formats came from cache
}
