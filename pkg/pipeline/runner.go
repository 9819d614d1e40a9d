package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"archmap/pkg/artifact"
	"archmap/pkg/assemble"
	"archmap/pkg/cache"
	"archmap/pkg/callgraph"
	"archmap/pkg/errors"
	"archmap/pkg/observability"
	"archmap/pkg/pysrc"
	"archmap/pkg/render/dot"
	"archmap/pkg/render/mermaid"
	"archmap/pkg/routes"
)

// Runner encapsulates pipeline execution with render-output caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If logger is nil, pipeline logs are discarded.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete scan → build → extract → assemble → render
// pipeline. Scanning always re-executes; only render outputs are
// cached, because the render graph hash is only known after assembly.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	// The runner logger must land before validation defaults the
	// option to a discard logger.
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Scan
	scanStart := time.Now()
	observability.Pipeline().OnScanStart(ctx, opts.Root)
	scan, err := pysrc.Scan(ctx, pysrc.ScanOptions{
		Root:       opts.Root,
		Subdir:     opts.Subdir,
		FilePrefix: opts.FilePrefix,
		Workers:    opts.Workers,
		Logger:     opts.Logger,
	})
	if err != nil {
		observability.Pipeline().OnScanComplete(ctx, opts.Root, 0, time.Since(scanStart), err)
		return nil, err
	}
	observability.Pipeline().OnScanComplete(ctx, opts.Root, len(scan.Modules), time.Since(scanStart), nil)
	result.Stats.ScanTime = time.Since(scanStart)
	result.Stats.ModuleCount = len(scan.Modules)
	result.Diagnostics = append(result.Diagnostics, scan.Diagnostics...)

	opts.Logger.Info("scanned sources",
		"modules", len(scan.Modules),
		"skipped", len(scan.Diagnostics),
		"duration", result.Stats.ScanTime)

	// Stage 2: Build call graph
	buildStart := time.Now()
	g := callgraph.Build(scan.Modules)
	result.Stats.BuildTime = time.Since(buildStart)
	observability.Pipeline().OnBuildComplete(ctx, g.NodeCount(), g.EdgeCount(), result.Stats.BuildTime)
	result.Stats.SymbolCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.Diagnostics = append(result.Diagnostics, g.Diagnostics()...)

	opts.Logger.Info("built call graph",
		"symbols", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", result.Stats.BuildTime)

	// Stage 3: Extract routes. Failure here is fatal only to route
	// extraction; the run continues with an empty route snapshot.
	var rts []routes.Route
	if opts.AppRef != "" {
		ref, err := routes.ParseAppRef(opts.AppRef)
		if err != nil {
			return nil, err
		}
		extracted, diags, err := routes.Extract(scan.Modules, g, ref)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, errors.Diagnostic{
				Code:    errors.GetCode(err),
				Subject: opts.AppRef,
				Message: errors.UserMessage(err),
			})
			opts.Logger.Warn("route extraction failed", "app", opts.AppRef, "err", err)
		} else {
			rts = extracted
		}
	}
	result.Stats.RouteCount = len(rts)

	// Stage 4: Assemble
	rg, err := assemble.Build(g, rts, assemble.Policy(opts.Policy), opts.Hops)
	if err != nil {
		return nil, err
	}

	rgData, err := json.Marshal(rg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "serialize render graph")
	}
	result.RenderHash = cache.Hash(rgData)

	// Stage 5: Render
	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	err = r.render(ctx, rg, opts, result)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", result.CacheInfo.RenderHit,
		"duration", result.Stats.RenderTime)

	// Stage 6: Artifacts
	if opts.IncludeArtifacts {
		if result.RoutesJSON, err = artifact.MarshalRoutes(rts); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal routes")
		}
		if result.CallgraphJSON, err = artifact.MarshalCallgraph(g); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal callgraph")
		}
	}

	return result, nil
}

// render produces every requested format, consulting the cache first.
// The Mermaid text is always generated even when not requested, since
// the result carries it and the SVG raster derives from it.
func (r *Runner) render(ctx context.Context, rg *assemble.RenderGraph, opts Options, result *Result) error {
	result.Diagram = mermaid.Render(rg, opts.MermaidOptions())

	allCached := true
	for _, format := range opts.Formats {
		key := r.key(result.RenderHash, format, opts)

		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "diagram")
				result.Artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "diagram")
		}
		allCached = false

		data, err := r.renderFormat(ctx, rg, format, opts, result)
		if err != nil {
			return err
		}
		if data == nil {
			// Raster failure: recorded on the result, nothing to cache.
			continue
		}
		result.Artifacts[format] = data
		if err := r.Cache.Set(ctx, key, data, cache.TTLDiagram); err == nil {
			observability.Cache().OnCacheSet(ctx, "diagram", len(data))
		}
	}

	result.CacheInfo.RenderHit = allCached && len(opts.Formats) > 0
	return nil
}

// renderFormat produces one format. A nil, nil return means the format
// failed recoverably (raster error captured on the result).
func (r *Runner) renderFormat(ctx context.Context, rg *assemble.RenderGraph, format string, opts Options, result *Result) ([]byte, error) {
	switch format {
	case FormatMermaid:
		return []byte(result.Diagram), nil

	case FormatDOT:
		return []byte(dot.ToDOT(rg, dotOptions(opts))), nil

	case FormatSVG:
		svg, rerr := mermaid.RasterSVG(ctx, result.Diagram, mermaid.RasterOptions{
			Binary:  opts.MermaidCLI,
			Timeout: opts.RasterTimeout,
		})
		if rerr != nil {
			result.RasterErr = rerr
			result.Diagnostics = append(result.Diagnostics, errors.Diagnostic{
				Code:    errors.ErrCodeRasterFailed,
				Subject: rerr.Command,
				Message: rerr.Stderr,
			})
			opts.Logger.Warn("rasterization failed", "exit", rerr.ExitCode, "stderr", rerr.Stderr)
			return nil, nil
		}
		return svg, nil

	case FormatPNG:
		png, err := dot.RenderPNG(ctx, dot.ToDOT(rg, dotOptions(opts)))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "render png")
		}
		return png, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "invalid format %q", format)
}

// dotOptions maps the flowchart direction onto Graphviz rankdir.
// Mermaid's TD is Graphviz's TB.
func dotOptions(opts Options) dot.Options {
	rankdir := opts.Direction
	if rankdir == string(mermaid.DirTD) {
		rankdir = "TB"
	}
	return dot.Options{RankDir: rankdir}
}

// key builds the cache key for one rendered format.
func (r *Runner) key(renderHash, format string, opts Options) string {
	return r.Keyer.DiagramKey(renderHash, cache.DiagramKeyOpts{
		Format:     format,
		Prefix:     opts.NodePrefix,
		Direction:  opts.Direction,
		LabelMode:  opts.LabelMode,
		LabelDepth: opts.LabelDepth,
		WrapLabels: opts.WrapLabels,
	})
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
