package mermaid

import (
	"context"
	"strings"
	"testing"

	"archmap/pkg/assemble"
)

func sampleGraph() *assemble.RenderGraph {
	return &assemble.RenderGraph{
		Endpoints: []assemble.Endpoint{
			{Method: "GET", Path: "/items", Handler: "app.main.handler"},
		},
		Nodes: []assemble.Node{
			{ID: "app.main.handler", Label: "handler", Module: "app.main", Kind: assemble.KindHandler},
			{ID: "app.main.helper", Label: "helper", Module: "app.main", Kind: assemble.KindFunction},
			{ID: "requests.get", Label: "requests.get", Kind: assemble.KindExternal},
		},
		Edges: []assemble.Edge{
			{From: "app.main.handler", To: "app.main.helper"},
			{From: "app.main.helper", To: "requests.get", External: true},
		},
	}
}

func TestRenderStructure(t *testing.T) {
	out := Render(sampleGraph(), Options{})

	wantLines := []string{
		"flowchart TD",
		`EP_GET__items["GET /items"]:::endpoint`,
		"EP_GET__items --> FN_app_main_handler",
		`FN_app_main_handler["main.handler"]:::handler`,
		`FN_app_main_helper["main.helper"]`,
		`FN_requests_get["requests.get"]:::external`,
		"FN_app_main_handler --> FN_app_main_helper",
		"FN_app_main_helper -.-> FN_requests_get",
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing line %q\n%s", line, out)
		}
	}
}

func TestRenderTags(t *testing.T) {
	rg := &assemble.RenderGraph{
		Endpoints: []assemble.Endpoint{
			{Method: "GET", Path: "/items", Handler: "app.main.list_items", Tags: []string{"items"}},
			{Method: "POST", Path: "/items", Handler: "app.main.create_item", Tags: []string{"items", "admin"}},
			{Method: "GET", Path: "/users", Handler: "app.main.list_users"},
		},
	}
	out := Render(rg, Options{})

	wantLines := []string{
		"classDef tag fill:#eee,stroke:#bbb,stroke-dasharray: 3 3;",
		"EP_GET__items --- TAG_items",
		"EP_POST__items --- TAG_items",
		"EP_POST__items --- TAG_admin",
		`TAG_items["tag: items"]:::tag`,
		`TAG_admin["tag: admin"]:::tag`,
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing line %q\n%s", line, out)
		}
	}

	// Shared tags define one node, not one per endpoint.
	if n := strings.Count(out, `TAG_items["tag: items"]`); n != 1 {
		t.Errorf("tag node defined %d times", n)
	}
	// Untagged endpoints get no association.
	if strings.Contains(out, "EP_GET__users ---") {
		t.Errorf("untagged endpoint has a tag association:\n%s", out)
	}

	// Tag ids honor the prefix namespace like every other node.
	prefixed := Render(rg, Options{Prefix: "svc"})
	if !strings.Contains(prefixed, "TAG_svc_items") {
		t.Errorf("prefixed tag id missing:\n%s", prefixed)
	}
}

func TestRenderDeterminism(t *testing.T) {
	opts := Options{Prefix: "app", Direction: DirLR}
	first := Render(sampleGraph(), opts)
	for i := 0; i < 10; i++ {
		if got := Render(sampleGraph(), opts); got != first {
			t.Fatal("output is not byte-identical across runs")
		}
	}
}

func TestRenderDirectionIsLayoutOnly(t *testing.T) {
	td := Render(sampleGraph(), Options{Direction: DirTD})
	lr := Render(sampleGraph(), Options{Direction: DirLR})

	if !strings.HasPrefix(td, "flowchart TD\n") {
		t.Errorf("TD header missing: %q", td[:20])
	}
	if !strings.HasPrefix(lr, "flowchart LR\n") {
		t.Errorf("LR header missing: %q", lr[:20])
	}
	// Everything after the header line is identical.
	if td[len("flowchart TD"):] != lr[len("flowchart LR"):] {
		t.Error("direction changed diagram content")
	}
}

func TestRenderPrefixNamespacesIDs(t *testing.T) {
	out := Render(sampleGraph(), Options{Prefix: "svc"})
	if !strings.Contains(out, "FN_svc_app_main_handler") {
		t.Errorf("prefixed node id missing:\n%s", out)
	}
	if !strings.Contains(out, "EP_svc_GET__items") {
		t.Errorf("prefixed endpoint id missing:\n%s", out)
	}
}

func TestRenderLabelModes(t *testing.T) {
	rg := &assemble.RenderGraph{
		Nodes: []assemble.Node{
			{ID: "app.api.items.list_items", Label: "list_items", Kind: assemble.KindFunction},
		},
	}

	short := Render(rg, Options{})
	if !strings.Contains(short, `["items.list_items"]`) {
		t.Errorf("short label wrong:\n%s", short)
	}

	full := Render(rg, Options{LabelMode: LabelFull})
	if !strings.Contains(full, `["app.api.items.list_items"]`) {
		t.Errorf("full label wrong:\n%s", full)
	}

	wrapped := Render(rg, Options{LabelMode: LabelFull, WrapLabels: true})
	if !strings.Contains(wrapped, `["app<br/>api<br/>items<br/>list_items"]`) {
		t.Errorf("wrapped label wrong:\n%s", wrapped)
	}
}

func TestSafeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app.main.handler", "app_main_handler"},
		{"GET_/items/{id}", "GET__items__id_"},
		{"already_safe_123", "already_safe_123"},
	}
	for _, tt := range tests {
		if got := safeID(tt.in); got != tt.want {
			t.Errorf("safeID(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"TD", "TB", "LR", "RL", "BT"} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%s): %v", s, err)
		}
	}
	if _, err := ParseDirection("UP"); err == nil {
		t.Error("invalid direction should error")
	}
}

func TestRasterMissingBinary(t *testing.T) {
	svg, rerr := RasterSVG(context.Background(), "flowchart TD\n", RasterOptions{
		Binary: "definitely-not-a-real-mmdc-binary",
	})
	if rerr == nil {
		t.Fatal("expected raster error for missing binary")
	}
	if svg != nil {
		t.Error("no SVG expected on failure")
	}
	if rerr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", rerr.ExitCode)
	}
	if rerr.Stderr == "" {
		t.Error("stderr payload should describe the failure")
	}
}
