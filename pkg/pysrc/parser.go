package pysrc

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"archmap/pkg/errors"
)

// Tree-sitter node types used by the parser. The grammar exposes many
// more; only the ones relevant to symbols, imports, and calls are
// matched, everything else is descended through.
const (
	nodeModule        = "module"
	nodeFunctionDef   = "function_definition"
	nodeClassDef      = "class_definition"
	nodeDecoratedDef  = "decorated_definition"
	nodeDecorator     = "decorator"
	nodeImport        = "import_statement"
	nodeImportFrom    = "import_from_statement"
	nodeAliasedImport = "aliased_import"
	nodeWildcard      = "wildcard_import"
	nodeDottedName    = "dotted_name"
	nodeRelImport     = "relative_import"
	nodeImportPrefix  = "import_prefix"
	nodeExprStatement = "expression_statement"
	nodeAssignment    = "assignment"
	nodeCall          = "call"
	nodeIdentifier    = "identifier"
	nodeAttribute     = "attribute"
	nodeKeywordArg    = "keyword_argument"
	nodeArgumentList  = "argument_list"
	nodeString        = "string"
	nodeList          = "list"
)

// Parse parses one Python source file into a Module summary.
//
// name is the dotted module identifier and relPath the root-relative
// file path (both produced by the scanner). The returned error carries
// ErrCodeParse when tree-sitter reports syntax errors; callers treat
// that as a per-file diagnostic, not a scan failure.
func Parse(ctx context.Context, name, relPath string, src []byte) (*Module, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse %s", relPath)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.Type() != nodeModule {
		return nil, errors.New(errors.ErrCodeParse, "no module tree for %s", relPath)
	}
	if root.HasError() {
		return nil, errors.New(errors.ErrCodeParse, "syntax errors in %s", relPath)
	}

	p := &fileParser{src: src, module: name}
	m := &Module{Name: name, Path: relPath}
	p.parseStatements(root, m)
	return m, nil
}

type fileParser struct {
	src    []byte
	module string
}

// parseStatements handles the module-level statement list.
func (p *fileParser) parseStatements(root *sitter.Node, m *Module) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		st := root.NamedChild(i)
		switch st.Type() {
		case nodeImport:
			m.Imports = append(m.Imports, p.parsePlainImport(st)...)
		case nodeImportFrom:
			if imp, ok := p.parseFromImport(st); ok {
				m.Imports = append(m.Imports, imp)
			}
		case nodeFunctionDef:
			m.Symbols = append(m.Symbols, p.parseFunction(st, p.module, "", nil))
		case nodeClassDef:
			m.Symbols = append(m.Symbols, p.parseClass(st, p.module, nil))
		case nodeDecoratedDef:
			if sym := p.parseDecorated(st, p.module, ""); sym != nil {
				m.Symbols = append(m.Symbols, sym)
			}
		case nodeExprStatement:
			p.parseModuleExpr(st, m)
		}
	}
}

// parseModuleExpr records module-level assignments and call statements.
func (p *fileParser) parseModuleExpr(st *sitter.Node, m *Module) {
	for i := 0; i < int(st.NamedChildCount()); i++ {
		c := st.NamedChild(i)
		switch c.Type() {
		case nodeAssignment:
			if a, ok := p.parseAssign(c); ok {
				m.Assigns = append(m.Assigns, a)
			}
		case nodeCall:
			if tc, ok := p.parseTopLevelCall(c); ok {
				m.Calls = append(m.Calls, tc)
			}
		}
	}
}

// parseDecorated unwraps a decorated_definition into its inner symbol
// with decorators attached. className is set when the definition lives
// in a class body.
func (p *fileParser) parseDecorated(node *sitter.Node, qualPrefix, className string) *Symbol {
	var decorators []Decorator
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == nodeDecorator {
			if d, ok := p.parseDecorator(c); ok {
				decorators = append(decorators, d)
			}
		}
	}

	def := node.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Type() {
	case nodeFunctionDef:
		return p.parseFunction(def, qualPrefix, className, decorators)
	case nodeClassDef:
		return p.parseClass(def, qualPrefix, decorators)
	}
	return nil
}

// stringElements collects the string-literal elements of a list node.
func (p *fileParser) stringElements(list *sitter.Node) []string {
	var out []string
	for j := 0; j < int(list.NamedChildCount()); j++ {
		el := list.NamedChild(j)
		if el.Type() == nodeString {
			if s, ok := stringValue(el.Content(p.src)); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// parseDecorator extracts the decorator expression and, for call-form
// decorators, the positional string literals and the methods=[...] and
// tags=[...] lists.
func (p *fileParser) parseDecorator(node *sitter.Node) (Decorator, bool) {
	expr := node.NamedChild(0)
	if expr == nil {
		return Decorator{}, false
	}

	d := Decorator{Line: line(node)}
	switch expr.Type() {
	case nodeIdentifier, nodeAttribute:
		d.Expr = expr.Content(p.src)
		return d, true
	case nodeCall:
		fn := expr.ChildByFieldName("function")
		if fn == nil || (fn.Type() != nodeIdentifier && fn.Type() != nodeAttribute) {
			return Decorator{}, false
		}
		d.Expr = fn.Content(p.src)
		args := expr.ChildByFieldName("arguments")
		if args == nil {
			return d, true
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			switch a.Type() {
			case nodeString:
				if v, ok := stringValue(a.Content(p.src)); ok {
					d.Args = append(d.Args, v)
				}
			case nodeKeywordArg:
				k := a.ChildByFieldName("name")
				v := a.ChildByFieldName("value")
				if k == nil || v == nil || v.Type() != nodeList {
					continue
				}
				switch k.Content(p.src) {
				case "methods":
					d.Methods = append(d.Methods, p.stringElements(v)...)
				case "tags":
					d.Tags = append(d.Tags, p.stringElements(v)...)
				}
			}
		}
		return d, true
	}
	return Decorator{}, false
}

// parseFunction builds a function or method symbol, descending into the
// body for call sites, assignments, and nested definitions.
func (p *fileParser) parseFunction(node *sitter.Node, qualPrefix, className string, decorators []Decorator) *Symbol {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nameNode.Content(p.src)
	}

	sym := &Symbol{
		Name:       name,
		Qualified:  qualPrefix + "." + name,
		Kind:       KindFunction,
		Class:      className,
		Span:       spanOf(node),
		Decorators: decorators,
	}
	if className != "" {
		sym.Kind = KindMethod
	}

	if body := node.ChildByFieldName("body"); body != nil {
		p.scanBody(body, sym)
	}
	return sym
}

// parseClass builds a class symbol whose children are its methods and
// nested classes.
func (p *fileParser) parseClass(node *sitter.Node, qualPrefix string, decorators []Decorator) *Symbol {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nameNode.Content(p.src)
	}

	sym := &Symbol{
		Name:       name,
		Qualified:  qualPrefix + "." + name,
		Kind:       KindClass,
		Span:       spanOf(node),
		Decorators: decorators,
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return sym
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		st := body.NamedChild(i)
		switch st.Type() {
		case nodeFunctionDef:
			sym.Children = append(sym.Children, p.parseFunction(st, sym.Qualified, name, nil))
		case nodeClassDef:
			sym.Children = append(sym.Children, p.parseClass(st, sym.Qualified, nil))
		case nodeDecoratedDef:
			if child := p.parseDecorated(st, sym.Qualified, name); child != nil {
				sym.Children = append(sym.Children, child)
			}
		}
	}
	return sym
}

// scanBody walks a function body collecting call sites and assignments.
// Nested definitions become child symbols and their bodies are not
// visited again here.
func (p *fileParser) scanBody(node *sitter.Node, sym *Symbol) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case nodeFunctionDef:
			sym.Children = append(sym.Children, p.parseFunction(c, sym.Qualified, "", nil))
		case nodeClassDef:
			sym.Children = append(sym.Children, p.parseClass(c, sym.Qualified, nil))
		case nodeDecoratedDef:
			if child := p.parseDecorated(c, sym.Qualified, ""); child != nil {
				sym.Children = append(sym.Children, child)
			}
		case nodeCall:
			if t := p.calleeText(c); t != "" {
				sym.Calls = append(sym.Calls, Call{Target: t, Line: line(c)})
			}
			p.scanBody(c, sym)
		case nodeAssignment:
			if a, ok := p.parseAssign(c); ok {
				sym.Assigns = append(sym.Assigns, a)
			}
			p.scanBody(c, sym)
		default:
			p.scanBody(c, sym)
		}
	}
}

// calleeText returns the callee expression text of a call node, or ""
// when the callee is not a plain identifier or attribute chain.
func (p *fileParser) calleeText(call *sitter.Node) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if fn.Type() != nodeIdentifier && fn.Type() != nodeAttribute {
		return ""
	}
	return fn.Content(p.src)
}

// parseAssign records "name = expr" where name is a bare identifier.
// Tuple targets and attribute targets are ignored.
func (p *fileParser) parseAssign(node *sitter.Node) (Assign, bool) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != nodeIdentifier {
		return Assign{}, false
	}
	a := Assign{Name: left.Content(p.src), Line: line(node)}
	if right := node.ChildByFieldName("right"); right != nil && right.Type() == nodeCall {
		a.Call = p.calleeText(right)
	}
	return a, true
}

// parseTopLevelCall records a module-level call statement with its
// identifier and string-literal arguments.
func (p *fileParser) parseTopLevelCall(call *sitter.Node) (TopLevelCall, bool) {
	target := p.calleeText(call)
	if target == "" {
		return TopLevelCall{}, false
	}

	tc := TopLevelCall{Target: target, Line: line(call)}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return tc, true
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		switch a.Type() {
		case nodeIdentifier, nodeAttribute:
			tc.Args = append(tc.Args, a.Content(p.src))
		case nodeString:
			if v, ok := stringValue(a.Content(p.src)); ok {
				tc.Args = append(tc.Args, v)
			}
		case nodeKeywordArg:
			k := a.ChildByFieldName("name")
			v := a.ChildByFieldName("value")
			if k == nil || v == nil {
				continue
			}
			switch v.Type() {
			case nodeString:
				if s, ok := stringValue(v.Content(p.src)); ok {
					if tc.Kwargs == nil {
						tc.Kwargs = map[string]string{}
					}
					tc.Kwargs[k.Content(p.src)] = s
				}
			case nodeIdentifier, nodeAttribute:
				if tc.Kwargs == nil {
					tc.Kwargs = map[string]string{}
				}
				tc.Kwargs[k.Content(p.src)] = v.Content(p.src)
			}
		}
	}
	return tc, true
}

// parsePlainImport handles "import a.b, c as d".
func (p *fileParser) parsePlainImport(node *sitter.Node) []Import {
	var imports []Import
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case nodeDottedName:
			imports = append(imports, Import{Module: c.Content(p.src), Line: line(node)})
		case nodeAliasedImport:
			name := c.ChildByFieldName("name")
			alias := c.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			imp := Import{Module: name.Content(p.src), Line: line(node)}
			if alias != nil {
				imp.Alias = alias.Content(p.src)
			}
			imports = append(imports, imp)
		}
	}
	return imports
}

// parseFromImport handles "from x import a, b as c" including relative
// forms, resolving the module path against the current package.
func (p *fileParser) parseFromImport(node *sitter.Node) (Import, bool) {
	imp := Import{Line: line(node)}

	sawModule := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case nodeDottedName:
			if !sawModule {
				imp.Module = c.Content(p.src)
				sawModule = true
			} else {
				imp.Names = append(imp.Names, ImportedName{Name: c.Content(p.src)})
			}
		case nodeRelImport:
			if !sawModule {
				imp.Module = p.resolveRelative(c)
				sawModule = true
			}
		case nodeAliasedImport:
			name := c.ChildByFieldName("name")
			alias := c.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			in := ImportedName{Name: name.Content(p.src)}
			if alias != nil {
				in.Alias = alias.Content(p.src)
			}
			imp.Names = append(imp.Names, in)
		case nodeWildcard:
			imp.Wildcard = true
		}
	}
	if !sawModule {
		return Import{}, false
	}
	return imp, true
}

// resolveRelative turns a relative_import node into an absolute dotted
// path using the current module's package: one leading dot is the
// package itself, each further dot walks one package up.
func (p *fileParser) resolveRelative(node *sitter.Node) string {
	dots := 0
	suffix := ""
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case nodeImportPrefix:
			dots = len(c.Content(p.src))
		case nodeDottedName:
			suffix = c.Content(p.src)
		}
	}

	pkg := packageOf(p.module)
	parts := []string{}
	if pkg != "" {
		parts = strings.Split(pkg, ".")
	}
	up := dots - 1
	if up > len(parts) {
		up = len(parts)
	}
	parts = parts[:len(parts)-up]

	base := strings.Join(parts, ".")
	switch {
	case base == "":
		return suffix
	case suffix == "":
		return base
	default:
		return base + "." + suffix
	}
}

// packageOf returns the package portion of a dotted module name.
func packageOf(module string) string {
	if i := strings.LastIndex(module, "."); i >= 0 {
		return module[:i]
	}
	return ""
}

// stringValue extracts the value of a Python string literal, stripping
// prefix letters (r, f, b, u) and matching quotes. Returns false for
// text that does not look like a plain literal.
func stringValue(text string) (string, bool) {
	i := 0
	for i < len(text) && text[i] != '"' && text[i] != '\'' {
		i++
	}
	s := text[i:]
	if len(s) >= 6 && (strings.HasPrefix(s, `"""`) || strings.HasPrefix(s, "'''")) {
		return s[3 : len(s)-3], true
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// line returns the 1-based start line of a node.
func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// spanOf returns the 1-based line span of a node.
func spanOf(n *sitter.Node) Span {
	return Span{
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
}
