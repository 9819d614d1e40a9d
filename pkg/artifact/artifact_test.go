package artifact

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"archmap/pkg/callgraph"
	"archmap/pkg/errors"
	"archmap/pkg/pysrc"
	"archmap/pkg/routes"
)

func buildGraph(t *testing.T) *callgraph.Graph {
	t.Helper()
	src := `
def handler():
    helper()
    missing()

def helper():
    pass
`
	m, err := pysrc.Parse(context.Background(), "app.main", "app/main.py", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return callgraph.Build([]*pysrc.Module{m})
}

func TestMarshalCallgraph(t *testing.T) {
	data, err := MarshalCallgraph(buildGraph(t))
	if err != nil {
		t.Fatalf("MarshalCallgraph: %v", err)
	}

	var doc CallgraphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("round-trip: %v", err)
	}

	if len(doc.Modules) != 1 || doc.Modules[0] != "app.main" {
		t.Errorf("modules = %v", doc.Modules)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("nodes = %+v", doc.Nodes)
	}
	// Sorted by qualified name.
	if doc.Nodes[0].Qualified != "app.main.handler" || doc.Nodes[1].Qualified != "app.main.helper" {
		t.Errorf("node order = %s, %s", doc.Nodes[0].Qualified, doc.Nodes[1].Qualified)
	}
	if len(doc.Edges) != 2 {
		t.Fatalf("edges = %+v", doc.Edges)
	}
	if doc.Edges[0].Callee != "app.main.helper" || doc.Edges[0].External {
		t.Errorf("edge[0] = %+v", doc.Edges[0])
	}
	if doc.Edges[1].Callee != "missing" || !doc.Edges[1].External {
		t.Errorf("edge[1] = %+v", doc.Edges[1])
	}
}

func TestMarshalCallgraphDeterminism(t *testing.T) {
	g := buildGraph(t)
	first, err := MarshalCallgraph(g)
	if err != nil {
		t.Fatalf("MarshalCallgraph: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := MarshalCallgraph(g)
		if err != nil {
			t.Fatalf("MarshalCallgraph: %v", err)
		}
		if string(next) != string(first) {
			t.Fatal("output not byte-identical")
		}
	}
}

func TestMarshalRoutes(t *testing.T) {
	rts := []routes.Route{
		{Method: "GET", Path: "/items", Handler: "app.main.list_items", HandlerName: "list_items", Module: "app.main"},
	}
	data, err := MarshalRoutes(rts)
	if err != nil {
		t.Fatalf("MarshalRoutes: %v", err)
	}

	var back []routes.Route
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("round-trip: %v", err)
	}
	if len(back) != 1 || back[0].Path != "/items" {
		t.Errorf("routes = %+v", back)
	}

	// A nil snapshot marshals as an empty list, not null.
	data, err = MarshalRoutes(nil)
	if err != nil {
		t.Fatalf("MarshalRoutes(nil): %v", err)
	}
	if string(data) != "[]\n" {
		t.Errorf("nil routes = %q", data)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	run := &Run{
		ID:          "run-1",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		RequestHash: "abc123",
		Diagram:     "flowchart TD\n",
		Routes:      json.RawMessage(`[]`),
	}
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Diagram != run.Diagram || got.RequestHash != run.RequestHash {
		t.Errorf("got = %+v", got)
	}

	_, err = store.Get(ctx, "run-2")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing run: code = %s", errors.GetCode(err))
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	store := NewNullStore()
	defer store.Close()

	if err := store.Save(ctx, &Run{ID: "x"}); err != nil {
		t.Errorf("Save: %v", err)
	}
	if _, err := store.Get(ctx, "x"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get should report not found, got %v", err)
	}
}
