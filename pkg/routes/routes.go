// Package routes extracts HTTP route declarations from a scanned
// Python package. The extraction is a static snapshot of decorator
// syntax on a FastAPI/Flask style application object; nothing is
// imported or executed.
package routes

import (
	"sort"
	"strings"

	"archmap/pkg/callgraph"
	"archmap/pkg/errors"
	"archmap/pkg/pysrc"
)

// Route is one extracted route declaration.
type Route struct {
	Method string `json:"method" bson:"method"`
	Path   string `json:"path" bson:"path"`

	// Handler is the qualified symbol name of the handler function,
	// or "" when correlation failed. Routes are never dropped for a
	// correlation miss.
	Handler string `json:"handler,omitempty" bson:"handler,omitempty"`

	// HandlerName is the function name at the decorator site, kept for
	// diagnostics even when Handler is empty.
	HandlerName string `json:"handler_name" bson:"handler_name"`

	// Module is the module the decorator was found in.
	Module string `json:"module" bson:"module"`

	// Flagged marks a correlation miss.
	Flagged bool `json:"flagged,omitempty" bson:"flagged,omitempty"`

	// Tags are the string literals from the decorator's tags=[...]
	// keyword, used to group endpoints in rendered output.
	Tags []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// AppRef identifies the application object, e.g. "app.main:app".
type AppRef struct {
	Module string
	Attr   string
}

// ParseAppRef accepts "module.path:attr" and the dotted form
// "module.path.attr".
func ParseAppRef(s string) (AppRef, error) {
	if i := strings.Index(s, ":"); i >= 0 {
		ref := AppRef{Module: s[:i], Attr: s[i+1:]}
		if ref.Module == "" || ref.Attr == "" || strings.Contains(ref.Attr, ":") {
			return AppRef{}, errors.New(errors.ErrCodeInvalidAppRef, "malformed app reference %q", s)
		}
		return ref, nil
	}
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return AppRef{}, errors.New(errors.ErrCodeInvalidAppRef, "malformed app reference %q", s)
	}
	return AppRef{Module: s[:i], Attr: s[i+1:]}, nil
}

// String returns the colon form.
func (r AppRef) String() string {
	return r.Module + ":" + r.Attr
}

// httpVerbs are the decorator method names that declare a single-verb
// route. "route" is handled separately via its methods=[...] argument.
var httpVerbs = map[string]bool{
	"get":     true,
	"post":    true,
	"put":     true,
	"patch":   true,
	"delete":  true,
	"head":    true,
	"options": true,
}

// routerKey identifies a router object by defining module and local name.
type routerKey struct {
	module string
	local  string
}

// Extract reads route declarations from decorators on the app object
// and any routers included into it via include_router (string-literal
// prefixes honored, including nested includes). Handler correlation
// tries the exact qualified name first, then a same-module local-name
// fallback; a miss keeps the route and records a diagnostic.
//
// The returned slice is a snapshot sorted by (path, method); the error
// is non-nil only when the referenced app module or attribute does not
// exist in the scan.
func Extract(modules []*pysrc.Module, g *callgraph.Graph, ref AppRef) ([]Route, []errors.Diagnostic, error) {
	var appModule *pysrc.Module
	for _, m := range modules {
		if m.Name == ref.Module {
			appModule = m
			break
		}
	}
	if appModule == nil {
		return nil, nil, errors.New(errors.ErrCodeAppUnresolved, "module %s not found in scan", ref.Module)
	}
	if !hasModuleLevelName(appModule, ref.Attr) {
		return nil, nil, errors.New(errors.ErrCodeAppUnresolved, "no module-level %q in %s", ref.Attr, ref.Module)
	}

	byName := make(map[string]*pysrc.Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	routers := collectRouters(appModule, byName, ref)

	var routes []Route
	var diags []errors.Diagnostic
	for _, m := range modules {
		for _, sym := range m.Symbols {
			if sym.Kind == pysrc.KindClass {
				continue
			}
			for _, dec := range sym.Decorators {
				prefix, ok := routerDecorator(routers, m.Name, dec.Expr)
				if !ok {
					continue
				}
				verb := dec.Expr[strings.LastIndex(dec.Expr, ".")+1:]
				path := ""
				if len(dec.Args) > 0 {
					path = dec.Args[0]
				}
				path = prefix + path

				var methods []string
				switch {
				case httpVerbs[verb]:
					methods = []string{strings.ToUpper(verb)}
				case verb == "route":
					for _, v := range dec.Methods {
						methods = append(methods, strings.ToUpper(v))
					}
					if len(methods) == 0 {
						methods = []string{"GET"}
					}
				default:
					continue
				}

				handler, flagged := correlate(g, m.Name, sym)
				if flagged {
					diags = append(diags, errors.Diagnostic{
						Code:    errors.ErrCodeHandlerUnmatched,
						File:    m.Path,
						Subject: sym.Name,
						Message: "no call-graph symbol for handler " + sym.Qualified,
					})
				}
				for _, method := range methods {
					routes = append(routes, Route{
						Method:      method,
						Path:        path,
						Handler:     handler,
						HandlerName: sym.Name,
						Module:      m.Name,
						Flagged:     flagged,
						Tags:        dec.Tags,
					})
				}
			}
		}
	}

	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, diags, nil
}

// hasModuleLevelName reports whether the module binds name at module
// level, via assignment or import.
func hasModuleLevelName(m *pysrc.Module, name string) bool {
	for _, a := range m.Assigns {
		if a.Name == name {
			return true
		}
	}
	for _, imp := range m.Imports {
		for _, n := range imp.Names {
			local := n.Name
			if n.Alias != "" {
				local = n.Alias
			}
			if local == name {
				return true
			}
		}
		if imp.Alias == name {
			return true
		}
	}
	return false
}

// collectRouters builds the set of router objects whose decorators
// declare routes: the app object itself plus everything included via
// include_router, transitively, each with its accumulated prefix.
func collectRouters(appModule *pysrc.Module, byName map[string]*pysrc.Module, ref AppRef) map[routerKey]string {
	routers := map[routerKey]string{
		{module: appModule.Name, local: ref.Attr}: "",
	}

	// Includes can chain (router includes sub-router), so iterate to a
	// fixpoint. The router set only grows; bound by total call count.
	for {
		added := false
		for _, m := range byName {
			for _, call := range m.Calls {
				i := strings.LastIndex(call.Target, ".include_router")
				if i <= 0 || i+len(".include_router") != len(call.Target) {
					continue
				}
				owner := call.Target[:i]
				base, ok := routers[routerKey{module: m.Name, local: owner}]
				if !ok || len(call.Args) == 0 {
					continue
				}

				prefix := base + call.Kwargs["prefix"]
				key := resolveRouterArg(m, call.Args[0])
				if _, seen := routers[key]; !seen {
					routers[key] = prefix
					added = true
				}
			}
		}
		if !added {
			return routers
		}
	}
}

// resolveRouterArg maps an include_router argument to the module that
// defines the router. An imported name points back at its source
// module; anything else is a local of the including module.
func resolveRouterArg(m *pysrc.Module, arg string) routerKey {
	for _, imp := range m.Imports {
		for _, n := range imp.Names {
			local := n.Name
			if n.Alias != "" {
				local = n.Alias
			}
			if local == arg {
				return routerKey{module: imp.Module, local: n.Name}
			}
		}
	}
	return routerKey{module: m.Name, local: arg}
}

// routerDecorator checks whether a decorator expression is a call on a
// known router object and returns that router's path prefix.
func routerDecorator(routers map[routerKey]string, module, expr string) (string, bool) {
	i := strings.LastIndex(expr, ".")
	if i <= 0 {
		return "", false
	}
	prefix, ok := routers[routerKey{module: module, local: expr[:i]}]
	return prefix, ok
}

// correlate finds the call-graph node for a handler symbol.
func correlate(g *callgraph.Graph, module string, sym *pysrc.Symbol) (string, bool) {
	if _, ok := g.Node(sym.Qualified); ok {
		return sym.Qualified, false
	}
	// Same-module fallback by local name.
	for _, n := range g.Nodes() {
		if n.Module == module && n.Name == sym.Name {
			return n.Qualified, false
		}
	}
	return "", true
}
