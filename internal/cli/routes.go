package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"archmap/pkg/callgraph"
	"archmap/pkg/pysrc"
	"archmap/pkg/routes"
)

// routesCommand creates the routes command, which lists the HTTP
// routes an application registers.
func (c *CLI) routesCommand() *cobra.Command {
	var (
		app         string
		subdir      string
		filePrefix  string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "routes [project-dir]",
		Short: "List the HTTP routes of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRoutes(cmd.Context(), args[0], app, subdir, filePrefix, interactive)
		},
	}

	cmd.Flags().StringVarP(&app, "app", "a", "", "application reference, e.g. app.main:app")
	cmd.Flags().StringVar(&subdir, "subdir", "", "restrict the scan to a subdirectory")
	cmd.Flags().StringVar(&filePrefix, "file-prefix", "", "restrict the scan to relative paths with this prefix")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse routes in an interactive table")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func (c *CLI) runRoutes(ctx context.Context, projectDir, app, subdir, filePrefix string, interactive bool) error {
	ref, err := routes.ParseAppRef(app)
	if err != nil {
		return err
	}

	progress := newProgress(c.Logger)
	scan, err := pysrc.Scan(ctx, pysrc.ScanOptions{
		Root:       projectDir,
		Subdir:     subdir,
		FilePrefix: filePrefix,
		Logger:     c.Logger,
	})
	if err != nil {
		return err
	}
	g := callgraph.Build(scan.Modules)

	rts, diags, err := routes.Extract(scan.Modules, g, ref)
	if err != nil {
		return err
	}
	progress.done(fmt.Sprintf("Extracted %d routes from %d modules", len(rts), len(scan.Modules)))

	for _, d := range append(scan.Diagnostics, diags...) {
		printWarning("%s", d.String())
	}

	if len(rts) == 0 {
		printInfo("No routes registered on %s", app)
		return nil
	}

	if interactive {
		model := NewRouteListModel(rts)
		_, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
		return err
	}

	printRouteTable(rts)
	return nil
}

// printRouteTable prints a static route table.
func printRouteTable(rts []routes.Route) {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(rts))
	for _, r := range rts {
		handler := r.Handler
		if handler == "" {
			handler = r.HandlerName + " (unmatched)"
		}
		rows = append(rows, []string{r.Method, r.Path, handler})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Method", "Path", "Handler").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return StyleHighlight
			}
			return StyleValue
		})

	fmt.Println(t.Render())
}
