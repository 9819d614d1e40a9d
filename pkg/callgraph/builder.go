package callgraph

import (
	"sort"
	"strings"

	"archmap/pkg/pysrc"
)

// importBinding is one local name introduced by an import statement.
type importBinding struct {
	module string // dotted module path
	attr   string // imported attribute for from-imports, "" otherwise
}

// qualified returns the dotted path the binding stands for.
func (b importBinding) qualified() string {
	if b.attr == "" {
		return b.module
	}
	return b.module + "." + b.attr
}

type builder struct {
	graph *Graph

	// classes maps a class's qualified name to its method set.
	classes map[string]map[string]string

	// topLevel maps module name -> local name -> qualified name for
	// module-level functions and classes.
	topLevel map[string]map[string]string

	// imports maps module name -> local name -> binding.
	imports map[string]map[string]importBinding
}

// Build constructs the call graph from parsed modules. Pass one indexes
// every symbol; pass two resolves call expressions against the complete
// index. The input modules are not retained.
func Build(modules []*pysrc.Module) *Graph {
	b := &builder{
		graph:    newGraph(),
		classes:  make(map[string]map[string]string),
		topLevel: make(map[string]map[string]string),
		imports:  make(map[string]map[string]importBinding),
	}

	for _, m := range modules {
		b.graph.modules = append(b.graph.modules, m.Name)
		b.indexModule(m)
	}

	for _, m := range modules {
		m.Walk(func(s *pysrc.Symbol) {
			if s.Kind == pysrc.KindClass {
				return
			}
			for _, call := range s.Calls {
				b.graph.addEdge(Edge{
					Caller: s.Qualified,
					Target: b.resolve(m, s, call.Target),
					Line:   call.Line,
				})
			}
		})
	}

	sort.Strings(b.graph.sorted)
	return b.graph
}

// indexModule registers a module's symbols and import bindings.
func (b *builder) indexModule(m *pysrc.Module) {
	top := make(map[string]string)
	b.topLevel[m.Name] = top
	for _, s := range m.Symbols {
		top[s.Name] = s.Qualified
	}

	m.Walk(func(s *pysrc.Symbol) {
		switch s.Kind {
		case pysrc.KindClass:
			methods := make(map[string]string)
			for _, c := range s.Children {
				if c.Kind == pysrc.KindMethod {
					methods[c.Name] = c.Qualified
				}
			}
			b.classes[s.Qualified] = methods
		default:
			b.graph.addNode(&Node{
				Qualified: s.Qualified,
				Name:      s.Name,
				Module:    m.Name,
				Kind:      s.Kind,
				File:      m.Path,
				Span:      s.Span,
			})
		}
	})

	bindings := make(map[string]importBinding)
	b.imports[m.Name] = bindings
	for _, imp := range m.Imports {
		switch {
		case len(imp.Names) > 0:
			for _, n := range imp.Names {
				local := n.Name
				if n.Alias != "" {
					local = n.Alias
				}
				bindings[local] = importBinding{module: imp.Module, attr: n.Name}
			}
		case imp.Alias != "":
			bindings[imp.Alias] = importBinding{module: imp.Module}
		default:
			// "import a.b" binds the name "a".
			head := imp.Module
			if i := strings.Index(head, "."); i >= 0 {
				head = head[:i]
			}
			bindings[head] = importBinding{module: head}
		}
	}
}
