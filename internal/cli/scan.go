package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"archmap/pkg/artifact"
	"archmap/pkg/callgraph"
	"archmap/pkg/pysrc"
)

// scanCommand creates the scan command, which inspects a project's
// call graph without rendering a diagram.
func (c *CLI) scanCommand() *cobra.Command {
	var (
		subdir     string
		filePrefix string
		workers    int
		jsonOut    string
	)

	cmd := &cobra.Command{
		Use:   "scan [project-dir]",
		Short: "Inspect the call graph of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScan(cmd.Context(), args[0], subdir, filePrefix, workers, jsonOut)
		},
	}

	cmd.Flags().StringVar(&subdir, "subdir", "", "restrict the scan to a subdirectory")
	cmd.Flags().StringVar(&filePrefix, "file-prefix", "", "restrict the scan to relative paths with this prefix")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel parse workers (0 = number of CPUs)")
	cmd.Flags().StringVar(&jsonOut, "json", "", "write the call graph document to a file ('-' for stdout)")

	return cmd
}

func (c *CLI) runScan(ctx context.Context, projectDir, subdir, filePrefix string, workers int, jsonOut string) error {
	progress := newProgress(c.Logger)
	scan, err := pysrc.Scan(ctx, pysrc.ScanOptions{
		Root:       projectDir,
		Subdir:     subdir,
		FilePrefix: filePrefix,
		Workers:    workers,
		Logger:     c.Logger,
	})
	if err != nil {
		return err
	}
	g := callgraph.Build(scan.Modules)
	progress.done(fmt.Sprintf("Scanned %d modules", len(scan.Modules)))

	for _, d := range scan.Diagnostics {
		printWarning("%s", d.String())
	}
	for _, d := range g.Diagnostics() {
		printWarning("%s", d.String())
	}

	external := 0
	for _, e := range g.Edges() {
		if !e.Target.IsResolved() {
			external++
		}
	}

	printKeyValue("Modules", fmt.Sprintf("%d", len(scan.Modules)))
	printKeyValue("Symbols", fmt.Sprintf("%d", g.NodeCount()))
	printKeyValue("Calls", fmt.Sprintf("%d", g.EdgeCount()))
	printKeyValue("External", fmt.Sprintf("%d", external))
	printKeyValue("Roots", fmt.Sprintf("%d", len(g.Roots())))

	if jsonOut == "" {
		return nil
	}
	data, err := artifact.MarshalCallgraph(g)
	if err != nil {
		return err
	}
	if jsonOut == "-" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(jsonOut, data, 0644); err != nil {
		return err
	}
	printFile(jsonOut)
	return nil
}
