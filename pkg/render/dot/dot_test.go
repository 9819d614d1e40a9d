package dot

import (
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
			{ID: "app.main.handler", Label: "handler", Kind: assemble.KindHandler},
			{ID: "app.main.helper", Label: "helper", Kind: assemble.KindFunction},
			{ID: "requests.get", Label: "requests.get", Kind: assemble.KindExternal},
		},
		Edges: []assemble.Edge{
			{From: "app.main.handler", To: "app.main.helper"},
			{From: "app.main.helper", To: "requests.get", External: true},
		},
	}
}

func TestToDOT(t *testing.T) {
	out := ToDOT(sampleGraph(), Options{})

	for _, want := range []string{
		"digraph archmap {",
		"rankdir=TB;",
		`"ep:GET /items" [label="GET /items", shape=folder`,
		`"app.main.handler" [label="handler", fillcolor="#eeffee"];`,
		`"requests.get" [label="requests.get", style="rounded,filled,dashed"`,
		`"ep:GET /items" -> "app.main.handler";`,
		`"app.main.handler" -> "app.main.helper";`,
		`"app.main.helper" -> "requests.get" [style=dashed];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT missing %q\n%s", want, out)
		}
	}
}

func TestToDOTRankDir(t *testing.T) {
	out := ToDOT(sampleGraph(), Options{RankDir: "LR"})
	if !strings.Contains(out, "rankdir=LR;") {
		t.Errorf("rankdir not applied:\n%s", out)
	}
}

func TestToDOTDeterminism(t *testing.T) {
	first := ToDOT(sampleGraph(), Options{})
	for i := 0; i < 5; i++ {
		if got := ToDOT(sampleGraph(), Options{}); got != first {
			t.Fatal("DOT output not deterministic")
		}
	}
}
