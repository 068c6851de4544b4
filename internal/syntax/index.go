package syntax

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"
)

// EnginePrefix is reserved for identifiers injected by the engine. User
// identifiers carrying it are never treated as declared names.
const EnginePrefix = "grafter"

// Index is the line map and declared-identifier set of one tree.
type Index struct {
	Tree *Tree
	// Lines maps a starting line to the statement whose header starts there.
	// When two statements share a line the later-visited one wins.
	Lines map[int]*Node
	// Identifiers lists declared names in first-declaration order.
	Identifiers []string

	seen map[string]struct{}
}

// NewIndex builds the index of t in one depth-first pass.
func NewIndex(t *Tree) *Index {
	idx := &Index{
		Tree:  t,
		Lines: make(map[int]*Node),
		seen:  make(map[string]struct{}),
	}

	t.Root.Walk(func(n *Node) bool {
		if n != t.Root {
			idx.visit(n)
		}

		return true
	})

	return idx
}

// Sequence translates a trace into the tree's statements. Lines without a
// statement are dropped and each statement appears once, in trace order.
func (idx *Index) Sequence(lines []int) []*Node {
	out := make([]*Node, 0, len(lines))
	seen := make(map[*Node]struct{}, len(lines))

	for _, line := range lines {
		n, ok := idx.Lines[line]
		if !ok {
			continue
		}

		if _, dup := seen[n]; dup {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out
}

// HasIdentifier reports whether name is declared in the tree.
func (idx *Index) HasIdentifier(name string) bool {
	_, ok := idx.seen[name]
	return ok
}

func (idx *Index) visit(n *Node) {
	if _, ok := n.Header.(ast.Stmt); ok && n.Line > 0 {
		idx.Lines[n.Line] = n
	}

	idx.declare(n.Header)

	for _, part := range headerParts(n.Header) {
		ast.Inspect(part, func(x ast.Node) bool {
			if x == nil {
				return false
			}

			idx.declare(x)

			return true
		})
	}
}

// declare records names introduced by x itself.
func (idx *Index) declare(x ast.Node) {
	switch x := x.(type) {
	case *ast.AssignStmt:
		for _, lhs := range x.Lhs {
			if id, ok := lhs.(*ast.Ident); ok {
				idx.add(id.Name)
			}
		}
	case *ast.RangeStmt:
		for _, e := range []ast.Expr{x.Key, x.Value} {
			if id, ok := e.(*ast.Ident); ok {
				idx.add(id.Name)
			}
		}
	case *ast.ValueSpec:
		for _, id := range x.Names {
			idx.add(id.Name)
		}
	case *ast.FuncDecl:
		idx.fields(x.Recv)
	case *ast.FuncType:
		idx.fields(x.Params)
		idx.fields(x.Results)
	}
}

func (idx *Index) fields(list *ast.FieldList) {
	if list == nil {
		return
	}

	for _, field := range list.List {
		for _, id := range field.Names {
			idx.add(id.Name)
		}
	}
}

func (idx *Index) add(name string) {
	if reserved(name) {
		return
	}

	if _, ok := idx.seen[name]; ok {
		return
	}

	idx.seen[name] = struct{}{}
	idx.Identifiers = append(idx.Identifiers, name)
}

func reserved(name string) bool {
	if name == "" || name == "_" {
		return true
	}

	if token.IsKeyword(name) || strings.HasPrefix(name, EnginePrefix) {
		return true
	}

	return types.Universe.Lookup(name) != nil
}

// headerParts returns the parts of a header that belong to the statement
// itself, leaving out nested bodies that are represented as child nodes.
func headerParts(h ast.Node) []ast.Node {
	var parts []ast.Node

	add := func(nodes ...ast.Node) {
		for _, n := range nodes {
			if n != nil && !isNilNode(n) {
				parts = append(parts, n)
			}
		}
	}

	switch h := h.(type) {
	case *ast.FuncDecl:
		add(h.Recv, h.Name, h.Type)
	case *ast.BlockStmt, *ast.SelectStmt, *ast.File:
	case *ast.IfStmt:
		add(h.Init, h.Cond)
	case *ast.ForStmt:
		add(h.Init, h.Cond, h.Post)
	case *ast.RangeStmt:
		add(h.Key, h.Value, h.X)
	case *ast.SwitchStmt:
		add(h.Init, h.Tag)
	case *ast.TypeSwitchStmt:
		add(h.Init, h.Assign)
	case *ast.CaseClause:
		for _, e := range h.List {
			add(e)
		}
	case *ast.CommClause:
		add(h.Comm)
	case *ast.LabeledStmt:
		add(h.Label)
	default:
		add(h)
	}

	return parts
}

// isNilNode catches typed nil pointers stored in ast interfaces.
func isNilNode(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.FieldList:
		return n == nil
	case *ast.Ident:
		return n == nil
	case *ast.FuncType:
		return n == nil
	}

	return false
}
