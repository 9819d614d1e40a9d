package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"archmap/pkg/routes"
)

func sampleRoutes() []routes.Route {
	return []routes.Route{
		{Method: "GET", Path: "/items", Handler: "app.main.list_items", HandlerName: "list_items", Module: "app.main"},
		{Method: "POST", Path: "/items", Handler: "app.main.create_item", HandlerName: "create_item", Module: "app.main"},
		{Method: "GET", Path: "/users", HandlerName: "list_users", Module: "app.users", Flagged: true},
	}
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{}
}

func TestRouteListNavigation(t *testing.T) {
	m := NewRouteListModel(sampleRoutes())

	next, _ := m.Update(key("down"))
	m = next.(RouteListModel)
	if m.Cursor != 1 {
		t.Errorf("cursor = %d after down", m.Cursor)
	}

	next, _ = m.Update(key("j"))
	m = next.(RouteListModel)
	if m.Cursor != 2 {
		t.Errorf("cursor = %d after j", m.Cursor)
	}

	// Cursor stops at the last row.
	next, _ = m.Update(key("down"))
	m = next.(RouteListModel)
	if m.Cursor != 2 {
		t.Errorf("cursor = %d past end", m.Cursor)
	}

	next, _ = m.Update(key("up"))
	m = next.(RouteListModel)
	if m.Cursor != 1 {
		t.Errorf("cursor = %d after up", m.Cursor)
	}
}

func TestRouteListQuit(t *testing.T) {
	m := NewRouteListModel(sampleRoutes())
	for _, k := range []string{"q", "enter"} {
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Errorf("%q should quit", k)
		}
	}
}

func TestRouteListScrolling(t *testing.T) {
	rts := make([]routes.Route, 30)
	for i := range rts {
		rts[i] = routes.Route{Method: "GET", Path: "/x", Handler: "h"}
	}
	m := NewRouteListModel(rts)
	m.Height = 5

	for i := 0; i < 10; i++ {
		next, _ := m.Update(key("down"))
		m = next.(RouteListModel)
	}
	if m.Cursor != 10 {
		t.Errorf("cursor = %d", m.Cursor)
	}
	if m.Offset != 6 {
		t.Errorf("offset = %d", m.Offset)
	}
}

func TestRouteListView(t *testing.T) {
	m := NewRouteListModel(sampleRoutes())
	view := m.View()

	for _, want := range []string{"/items", "/users", "app.main.list_items", "[1/3]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Flagged route surfaces its detail line when selected.
	m.Cursor = 2
	view = m.View()
	if !strings.Contains(view, "handler not found in call graph") {
		t.Error("flagged detail missing")
	}
}
