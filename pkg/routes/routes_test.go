package routes

import (
	"context"
	"testing"

	"archmap/pkg/callgraph"
	"archmap/pkg/errors"
	"archmap/pkg/pysrc"
)

func parseModule(t *testing.T, name, path, src string) *pysrc.Module {
	t.Helper()
	m, err := pysrc.Parse(context.Background(), name, path, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return m
}

func TestParseAppRef(t *testing.T) {
	tests := []struct {
		in      string
		module  string
		attr    string
		wantErr bool
	}{
		{"app.main:app", "app.main", "app", false},
		{"app.main.app", "app.main", "app", false},
		{"main:application", "main", "application", false},
		{"app", "", "", true},
		{":app", "", "", true},
		{"app.main:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref, err := ParseAppRef(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAppRef: %v", err)
			}
			if ref.Module != tt.module || ref.Attr != tt.attr {
				t.Errorf("ref = %+v", ref)
			}
		})
	}
}

func TestExtractBasicRoutes(t *testing.T) {
	m := parseModule(t, "app.main", "app/main.py", `
from fastapi import FastAPI

app = FastAPI()

@app.get("/items")
def list_items():
    pass

@app.post("/items")
def create_item():
    pass

@app.route("/legacy", methods=["GET", "POST"])
def legacy():
    pass

@app.middleware
def not_a_route(request):
    pass
`)
	mods := []*pysrc.Module{m}
	g := callgraph.Build(mods)

	rts, diags, err := Extract(mods, g, AppRef{Module: "app.main", Attr: "app"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diags = %v", diags)
	}

	// Sorted by (path, method).
	want := []struct {
		method, path, handler string
	}{
		{"GET", "/items", "app.main.list_items"},
		{"POST", "/items", "app.main.create_item"},
		{"GET", "/legacy", "app.main.legacy"},
		{"POST", "/legacy", "app.main.legacy"},
	}
	if len(rts) != len(want) {
		t.Fatalf("routes = %+v", rts)
	}
	for i, w := range want {
		r := rts[i]
		if r.Method != w.method || r.Path != w.path || r.Handler != w.handler {
			t.Errorf("route[%d] = %+v, want %+v", i, r, w)
		}
		if r.Flagged {
			t.Errorf("route[%d] unexpectedly flagged", i)
		}
	}
}

func TestExtractCarriesTags(t *testing.T) {
	m := parseModule(t, "app.main", "app/main.py", `
from fastapi import FastAPI

app = FastAPI()

@app.get("/items", tags=["items", "public"])
def list_items():
    pass

@app.route("/legacy", methods=["GET", "POST"], tags=["legacy"])
def legacy():
    pass

@app.get("/ping")
def ping():
    pass
`)
	mods := []*pysrc.Module{m}
	g := callgraph.Build(mods)

	rts, _, err := Extract(mods, g, AppRef{Module: "app.main", Attr: "app"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	byRoute := make(map[string][]string)
	for _, r := range rts {
		byRoute[r.Method+" "+r.Path] = r.Tags
	}
	tags, ok := byRoute["GET /items"]
	if !ok || len(tags) != 2 || tags[0] != "items" || tags[1] != "public" {
		t.Errorf("GET /items tags = %v", tags)
	}
	// Every verb expansion of a route decorator keeps the tags.
	for _, key := range []string{"GET /legacy", "POST /legacy"} {
		tags, ok := byRoute[key]
		if !ok || len(tags) != 1 || tags[0] != "legacy" {
			t.Errorf("%s tags = %v", key, tags)
		}
	}
	if tags := byRoute["GET /ping"]; len(tags) != 0 {
		t.Errorf("GET /ping tags = %v", tags)
	}
}

func TestExtractIncludedRouter(t *testing.T) {
	api := parseModule(t, "app.api", "app/api.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/items")
def list_items():
    pass
`)
	mainMod := parseModule(t, "app.main", "app/main.py", `
from fastapi import FastAPI
from app.api import router

app = FastAPI()
app.include_router(router, prefix="/api")
`)
	mods := []*pysrc.Module{api, mainMod}
	g := callgraph.Build(mods)

	rts, _, err := Extract(mods, g, AppRef{Module: "app.main", Attr: "app"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rts) != 1 {
		t.Fatalf("routes = %+v", rts)
	}
	if rts[0].Path != "/api/items" || rts[0].Method != "GET" {
		t.Errorf("route = %+v", rts[0])
	}
	if rts[0].Handler != "app.api.list_items" {
		t.Errorf("handler = %s", rts[0].Handler)
	}
}

func TestExtractNestedRouters(t *testing.T) {
	inner := parseModule(t, "app.v1", "app/v1.py", `
from fastapi import APIRouter

router = APIRouter()

@router.get("/users")
def users():
    pass
`)
	outer := parseModule(t, "app.api", "app/api.py", `
from fastapi import APIRouter
from app.v1 import router as v1_router

router = APIRouter()
router.include_router(v1_router, prefix="/v1")
`)
	mainMod := parseModule(t, "app.main", "app/main.py", `
from fastapi import FastAPI
from app.api import router

app = FastAPI()
app.include_router(router, prefix="/api")
`)
	mods := []*pysrc.Module{outer, mainMod, inner}
	g := callgraph.Build(mods)

	rts, _, err := Extract(mods, g, AppRef{Module: "app.main", Attr: "app"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rts) != 1 {
		t.Fatalf("routes = %+v", rts)
	}
	if rts[0].Path != "/api/v1/users" {
		t.Errorf("nested prefixes: path = %s", rts[0].Path)
	}
}

func TestExtractAppUnresolved(t *testing.T) {
	m := parseModule(t, "app.main", "app/main.py", `
x = 1
`)
	mods := []*pysrc.Module{m}
	g := callgraph.Build(mods)

	_, _, err := Extract(mods, g, AppRef{Module: "app.other", Attr: "app"})
	if !errors.Is(err, errors.ErrCodeAppUnresolved) {
		t.Errorf("missing module: code = %s", errors.GetCode(err))
	}

	_, _, err = Extract(mods, g, AppRef{Module: "app.main", Attr: "app"})
	if !errors.Is(err, errors.ErrCodeAppUnresolved) {
		t.Errorf("missing attr: code = %s", errors.GetCode(err))
	}
}

func TestExtractCorrelationMissKeepsRoute(t *testing.T) {
	m := parseModule(t, "app.main", "app/main.py", `
from fastapi import FastAPI

app = FastAPI()

@app.get("/ping")
def ping():
    pass
`)
	mods := []*pysrc.Module{m}

	// A graph that does not contain the handler symbol: the route must
	// survive with an empty handler reference plus a diagnostic.
	empty := callgraph.Build(nil)

	rts, diags, err := Extract(mods, empty, AppRef{Module: "app.main", Attr: "app"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rts) != 1 {
		t.Fatalf("routes = %+v", rts)
	}
	if rts[0].Handler != "" || !rts[0].Flagged {
		t.Errorf("route = %+v", rts[0])
	}
	if len(diags) != 1 || diags[0].Code != errors.ErrCodeHandlerUnmatched {
		t.Errorf("diags = %v", diags)
	}
	if rts[0].HandlerName != "ping" {
		t.Errorf("HandlerName = %s", rts[0].HandlerName)
	}
}
