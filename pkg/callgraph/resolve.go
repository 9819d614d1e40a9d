package callgraph

import (
	"strings"

	"archmap/pkg/pysrc"
)

// resolve maps a callee expression to a CallTarget. Resolution order:
// local scope (nested defs, enclosing function scopes, self-calls,
// same-module names), import bindings, then attribute calls through a
// statically inferable constructor assignment. Anything else is
// external; only exact matches resolve, ambiguity never guesses.
func (b *builder) resolve(m *pysrc.Module, sym *pysrc.Symbol, target string) CallTarget {
	if target == "" || strings.ContainsAny(target, " ()[]{}\"'") {
		return External(target)
	}

	parts := strings.Split(target, ".")
	if len(parts) == 1 {
		return b.resolveName(m, sym, target)
	}

	head, rest := parts[0], parts[1:]

	// self.method() against the enclosing class.
	if head == "self" && sym.Class != "" {
		if len(rest) == 1 {
			classQual := parentScope(sym.Qualified)
			if q, ok := b.classes[classQual][rest[0]]; ok {
				return Resolved(q, target)
			}
		}
		return External(target)
	}

	// obj.method() where obj was assigned from a resolvable constructor.
	if len(rest) == 1 {
		if ctor := lookupAssign(sym, m, head); ctor != "" {
			if classQual := b.resolveClassName(m, sym, ctor); classQual != "" {
				if q, ok := b.classes[classQual][rest[0]]; ok {
					return Resolved(q, target)
				}
			}
		}
	}

	// Import binding on the first segment: "import m", "import m as a",
	// or a from-imported module attribute.
	if binding, ok := b.imports[m.Name][head]; ok {
		candidate := binding.qualified() + "." + strings.Join(rest, ".")
		if _, ok := b.graph.nodes[candidate]; ok {
			return Resolved(candidate, target)
		}
		// Constructor call through an imported module: m.Client().
		if q := b.constructorTarget(candidate); q != "" {
			return Resolved(q, target)
		}
	}

	return External(target)
}

// resolveName handles undotted callees.
func (b *builder) resolveName(m *pysrc.Module, sym *pysrc.Symbol, name string) CallTarget {
	// A def nested in the caller's own body.
	for _, c := range sym.Children {
		if c.Name == name && c.Kind != pysrc.KindClass {
			return Resolved(c.Qualified, name)
		}
	}

	// A def in an enclosing function scope, nearest first. Python
	// closures see sibling defs of every enclosing function; class
	// scopes do not leak names into their methods and are skipped.
	for scope := parentScope(sym.Qualified); scope != "" && scope != m.Name; scope = parentScope(scope) {
		if _, isClass := b.classes[scope]; isClass {
			continue
		}
		candidate := scope + "." + name
		if _, isNode := b.graph.nodes[candidate]; isNode {
			return Resolved(candidate, name)
		}
	}

	// Module-level function or class in the same module.
	if q, ok := b.topLevel[m.Name][name]; ok {
		if _, isNode := b.graph.nodes[q]; isNode {
			return Resolved(q, name)
		}
		if init := b.constructorTarget(q); init != "" {
			return Resolved(init, name)
		}
		return External(name)
	}

	// Import binding: from m import f / from m import C as D.
	if binding, ok := b.imports[m.Name][name]; ok {
		q := binding.qualified()
		if _, isNode := b.graph.nodes[q]; isNode {
			return Resolved(q, name)
		}
		if init := b.constructorTarget(q); init != "" {
			return Resolved(init, name)
		}
	}

	return External(name)
}

// constructorTarget maps a class qualified name to its __init__ method
// node, or "" when the name is not a scanned class or has no __init__.
// Calling a class is the one place a name resolves past itself: the
// edge lands on the constructor.
func (b *builder) constructorTarget(classQual string) string {
	methods, ok := b.classes[classQual]
	if !ok {
		return ""
	}
	return methods["__init__"]
}

// resolveClassName maps a constructor callee text (as recorded in an
// assignment) to a class qualified name, or "".
func (b *builder) resolveClassName(m *pysrc.Module, sym *pysrc.Symbol, ctor string) string {
	parts := strings.Split(ctor, ".")
	if len(parts) == 1 {
		if q, ok := b.topLevel[m.Name][ctor]; ok {
			if _, isClass := b.classes[q]; isClass {
				return q
			}
		}
		if binding, ok := b.imports[m.Name][ctor]; ok {
			if _, isClass := b.classes[binding.qualified()]; isClass {
				return binding.qualified()
			}
		}
		return ""
	}

	if binding, ok := b.imports[m.Name][parts[0]]; ok {
		candidate := binding.qualified() + "." + strings.Join(parts[1:], ".")
		if _, isClass := b.classes[candidate]; isClass {
			return candidate
		}
	}
	return ""
}

// lookupAssign finds the last binding of name in the symbol body, then
// at module level.
func lookupAssign(sym *pysrc.Symbol, m *pysrc.Module, name string) string {
	for i := len(sym.Assigns) - 1; i >= 0; i-- {
		if sym.Assigns[i].Name == name {
			return sym.Assigns[i].Call
		}
	}
	for i := len(m.Assigns) - 1; i >= 0; i-- {
		if m.Assigns[i].Name == name {
			return m.Assigns[i].Call
		}
	}
	return ""
}

// parentScope strips the last segment of a qualified name.
func parentScope(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[:i]
	}
	return ""
}
