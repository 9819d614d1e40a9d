package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"archmap/pkg/pipeline"
)

// diagramOpts holds the command-line flags for the diagram command.
type diagramOpts struct {
	app        string   // app reference, e.g. "app.main:app"
	policy     string   // pruning policy: api, nhops, full
	hops       int      // hop budget for the nhops policy
	direction  string   // flowchart direction: TD, TB, LR, RL, BT
	formats    []string // output formats: mermaid, dot, svg, png
	output     string   // output file (single format) or base path (multiple)
	subdir     string   // restrict scan to a subdirectory
	filePrefix string   // restrict scan to paths with this prefix
	nodePrefix string   // node identifier prefix
	labelMode  string   // label mode: short, full
	labelDepth int      // trailing segments kept in short labels
	wrapLabels bool     // break label segments onto separate lines
	workers    int      // parallel parse workers
	artifacts  bool     // also write routes.json and callgraph.json
	mermaidCLI string   // mmdc binary for svg output
	noCache    bool     // disable the render cache
	refresh    bool     // bypass cached render outputs
}

// diagramCommand creates the diagram command, the main entry point for
// turning a project into a rendered architecture diagram.
func (c *CLI) diagramCommand() *cobra.Command {
	var formatsStr string
	opts := diagramOpts{
		policy:    pipeline.DefaultPolicy,
		hops:      pipeline.DefaultHops,
		direction: pipeline.DefaultDirection,
	}

	cmd := &cobra.Command{
		Use:   "diagram [project-dir]",
		Short: "Scan a project and render an architecture diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			return c.runDiagram(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.app, "app", "a", "", "application reference, e.g. app.main:app (omit for call-graph only)")
	cmd.Flags().StringVarP(&opts.policy, "policy", "p", opts.policy, "pruning policy: api (default), nhops, full")
	cmd.Flags().IntVar(&opts.hops, "hops", opts.hops, "hop budget for the nhops policy")
	cmd.Flags().StringVarP(&opts.direction, "direction", "d", opts.direction, "flowchart direction: TD (default), TB, LR, RL, BT")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): mermaid (default), dot, svg, png (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVar(&opts.subdir, "subdir", "", "restrict the scan to a subdirectory")
	cmd.Flags().StringVar(&opts.filePrefix, "file-prefix", "", "restrict the scan to relative paths with this prefix")
	cmd.Flags().StringVar(&opts.nodePrefix, "node-prefix", "", "prefix for generated node identifiers")
	cmd.Flags().StringVar(&opts.labelMode, "label", "", "label mode: short (default), full")
	cmd.Flags().IntVar(&opts.labelDepth, "label-depth", 0, "trailing name segments kept in short labels")
	cmd.Flags().BoolVar(&opts.wrapLabels, "wrap-labels", false, "break label segments onto separate lines")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel parse workers (0 = number of CPUs)")
	cmd.Flags().BoolVar(&opts.artifacts, "artifacts", false, "also write routes.json and callgraph.json")
	cmd.Flags().StringVar(&opts.mermaidCLI, "mmdc", "", "mermaid CLI binary for svg output")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even when a cached output exists")

	return cmd
}

func (c *CLI) runDiagram(ctx context.Context, projectDir string, opts *diagramOpts) error {
	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Analyzing "+projectDir)
	spinner.Start()

	result, err := runner.Execute(ctx, pipeline.Options{
		Root:             projectDir,
		Subdir:           opts.subdir,
		FilePrefix:       opts.filePrefix,
		Workers:          opts.workers,
		AppRef:           opts.app,
		Policy:           opts.policy,
		Hops:             opts.hops,
		Direction:        opts.direction,
		NodePrefix:       opts.nodePrefix,
		LabelMode:        opts.labelMode,
		LabelDepth:       opts.labelDepth,
		WrapLabels:       opts.wrapLabels,
		Formats:          opts.formats,
		IncludeArtifacts: opts.artifacts,
		Refresh:          opts.refresh,
		Logger:           c.Logger,
		MermaidCLI:       opts.mermaidCLI,
	})
	if err != nil {
		spinner.StopWithError("Analysis failed")
		return err
	}
	spinner.Stop()

	printSuccess("Analyzed %s", projectDir)
	printStats(result.Stats.SymbolCount, result.Stats.EdgeCount, result.CacheInfo.RenderHit)
	for _, d := range result.Diagnostics {
		printWarning("%s", d.String())
	}
	if result.RasterErr != nil {
		printWarning("svg rasterization failed: %s", result.RasterErr.Stderr)
	}

	if opts.output == "" && len(opts.formats) == 1 && opts.formats[0] == pipeline.FormatMermaid {
		fmt.Print(result.Diagram)
		return nil
	}

	base := opts.output
	if base == "" {
		base = filepath.Base(filepath.Clean(projectDir))
	}
	if err := writeOutputs(base, opts.formats, result); err != nil {
		return err
	}
	if opts.artifacts {
		if err := writeArtifacts(base, result); err != nil {
			return err
		}
	}
	return nil
}

// writeOutputs writes one file per rendered format. A single format
// with an explicit --output path is written to exactly that path.
func writeOutputs(base string, formats []string, result *pipeline.Result) error {
	single := len(formats) == 1 && filepath.Ext(base) != ""
	for _, format := range formats {
		data, ok := result.Artifacts[format]
		if !ok {
			continue
		}
		path := base + "." + extension(format)
		if single {
			path = base
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

func writeArtifacts(base string, result *pipeline.Result) error {
	dir := filepath.Dir(base)
	for name, data := range map[string][]byte{
		"routes.json":    result.RoutesJSON,
		"callgraph.json": result.CallgraphJSON,
	} {
		if len(data) == 0 {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

// extension maps a format to its file extension.
func extension(format string) string {
	if format == pipeline.FormatMermaid {
		return "mmd"
	}
	return format
}
