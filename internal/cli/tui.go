package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"archmap/pkg/routes"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// RouteListModel - Interactive route browsing
// =============================================================================

// RouteListModel is the bubbletea model for browsing extracted routes.
type RouteListModel struct {
	Routes []routes.Route
	Cursor int
	Height int
	Offset int
}

// NewRouteListModel creates a new route list model.
func NewRouteListModel(rts []routes.Route) RouteListModel {
	return RouteListModel{
		Routes: rts,
		Cursor: 0,
		Height: 15,
		Offset: 0,
	}
}

func (m RouteListModel) Init() tea.Cmd {
	return nil
}

func (m RouteListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc", "enter":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Routes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m RouteListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Routes"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Routes) {
		end = len(m.Routes)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Routes[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		handler := r.Handler
		if handler == "" {
			handler = r.HandlerName
		}

		status := "✓"
		if r.Flagged {
			status = "!"
		}

		rows = append(rows, []string{cursor, r.Method, r.Path, handler, status})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Method", "Path", "Handler", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Routes) {
				return lipgloss.NewStyle()
			}
			r := m.Routes[actualIdx]
			isCurrent := actualIdx == m.Cursor

			base := lipgloss.NewStyle()
			if r.Flagged {
				base = base.Foreground(colorYellow)
			} else if col == 1 {
				base = base.Foreground(colorCyan)
			} else {
				base = base.Foreground(colorWhite)
			}
			if isCurrent {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")

	if len(m.Routes) > 0 {
		r := m.Routes[m.Cursor]
		detail := fmt.Sprintf("  %s %s", r.Method, r.Path)
		if r.Module != "" {
			detail += listDimStyle.Render("  defined in " + r.Module)
		}
		if r.Flagged {
			detail += "  " + StyleWarning.Render("handler not found in call graph")
		}
		b.WriteString(detail)
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Routes))))

	return b.String()
}
