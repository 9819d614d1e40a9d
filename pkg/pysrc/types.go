// Package pysrc scans a Python package and parses each module into a
// static summary: symbols, imports, call sites, decorators, and
// module-level assignments. Nothing is executed; the summary is exactly
// what tree-sitter can see in the source text.
package pysrc

// Kind classifies a symbol.
type Kind string

const (
	// KindFunction is a module-level or nested function.
	KindFunction Kind = "function"

	// KindMethod is a function defined inside a class body.
	KindMethod Kind = "method"

	// KindClass is a class definition. Classes carry their methods as
	// children and act as resolution scopes; they are not call-graph
	// nodes themselves.
	KindClass Kind = "class"
)

// Span is a 1-based line range in the source file.
type Span struct {
	StartLine int `json:"start_line" bson:"start_line"`
	EndLine   int `json:"end_line" bson:"end_line"`
}

// Decorator is a single decorator applied to a definition.
type Decorator struct {
	// Expr is the decorator expression without call arguments,
	// e.g. "app.get" for @app.get("/items").
	Expr string

	// Args holds positional string-literal arguments, in order.
	// Non-literal arguments are omitted.
	Args []string

	// Methods holds the elements of a methods=[...] keyword argument,
	// as written (e.g. "GET"). Empty when the keyword is absent.
	Methods []string

	// Tags holds the string-literal elements of a tags=[...] keyword
	// argument. Empty when the keyword is absent.
	Tags []string

	Line int
}

// Call is a call site inside a symbol body or at module level.
type Call struct {
	// Target is the callee expression as written, e.g. "helpers.fmt",
	// "f", or "self.save". Complex callees keep their literal text.
	Target string

	Line int
}

// Assign records a simple "name = expr" binding.
type Assign struct {
	Name string

	// Call is the callee text when the right-hand side is a call
	// expression ("c = Client()" records "Client"), empty otherwise.
	// This is the only form of assignment the resolver infers through.
	Call string

	Line int
}

// ImportedName is one name brought in by a from-import.
type ImportedName struct {
	Name  string
	Alias string
}

// Import is a single import statement binding.
type Import struct {
	// Module is the imported dotted module path. Relative imports are
	// already resolved against the importing module's package.
	Module string

	// Alias is set for "import m as a".
	Alias string

	// Names holds the imported names for from-imports; empty for plain
	// imports.
	Names []ImportedName

	// Wildcard marks "from m import *".
	Wildcard bool

	Line int
}

// TopLevelCall is a call statement at module level, such as
// app.include_router(router, prefix="/api").
type TopLevelCall struct {
	Target string
	Args   []string
	Kwargs map[string]string
	Line   int
}

// Symbol is a function, method, or class found in a module.
type Symbol struct {
	// Name is the local name at the definition site.
	Name string

	// Qualified is the dotted path: module, enclosing scopes, name.
	Qualified string

	Kind Kind

	// Class is the enclosing class's local name for methods, "" otherwise.
	Class string

	Span Span

	Decorators []Decorator

	// Calls are the call sites in this symbol's body, excluding bodies
	// of nested definitions (those belong to the nested symbol).
	Calls []Call

	// Assigns are simple bindings in this symbol's body, used for
	// constructor-based attribute resolution.
	Assigns []Assign

	// Children are definitions nested in this symbol's body: methods
	// for classes, inner functions for functions.
	Children []*Symbol
}

// Module is the parsed summary of one source file.
type Module struct {
	// Name is the dotted module identifier derived from the file path
	// relative to the scan root ("app/api/items.py" -> "app.api.items",
	// "app/__init__.py" -> "app").
	Name string

	// Path is the file path relative to the scan root, forward slashes.
	Path string

	Symbols []*Symbol
	Imports []Import

	// Assigns are module-level bindings; the application object the
	// route extractor looks for lives here.
	Assigns []Assign

	// Calls are module-level call statements.
	Calls []TopLevelCall
}

// Walk visits every symbol in the module in definition order,
// parents before children.
func (m *Module) Walk(fn func(*Symbol)) {
	var visit func(*Symbol)
	visit = func(s *Symbol) {
		fn(s)
		for _, c := range s.Children {
			visit(c)
		}
	}
	for _, s := range m.Symbols {
		visit(s)
	}
}

// ModuleName converts a file path (relative to the scan root) into a
// dotted module identifier. Package initializers collapse onto their
// package: "pkg/__init__.py" -> "pkg".
func ModuleName(relPath string) string {
	name := relPath
	if len(name) > 3 && name[len(name)-3:] == ".py" {
		name = name[:len(name)-3]
	}
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == '\\' {
			out = append(out, '.')
		} else {
			out = append(out, name[i])
		}
	}
	name = string(out)
	const initSuffix = ".__init__"
	if len(name) > len(initSuffix) && name[len(name)-len(initSuffix):] == initSuffix {
		name = name[:len(name)-len(initSuffix)]
	}
	return name
}
