package syntax

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"
	"sort"
)

var printConfig = printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}

// Tree is a statement tree together with the file it was built from.
type Tree struct {
	Root *Node
	File *ast.File
	Fset *token.FileSet
}

// Parse parses src as a Go file into fset and builds its statement tree.
// Trees that will exchange nodes must share one FileSet.
func Parse(fset *token.FileSet, filename string, src []byte) (*Tree, error) {
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return Build(fset, file), nil
}

// Build converts a parsed file into a statement tree.
func Build(fset *token.FileSet, file *ast.File) *Tree {
	b := builder{fset: fset}

	root := &Node{Kind: KindFile, Header: file, compound: true}
	for _, decl := range file.Decls {
		root.Body = append(root.Body, b.decl(decl))
	}

	return &Tree{Root: root, File: file, Fset: fset}
}

// Render prints the tree as gofmt-style Go source.
func (t *Tree) Render() (string, error) {
	return RenderNode(t.Fset, t.File, t.Root)
}

// RenderNode prints root, a file-kind node, using file for the package clause.
func RenderNode(fset *token.FileSet, file *ast.File, root *Node) (string, error) {
	r := renderer{}

	out := *file
	out.Decls = r.decls(root.Body)
	out.Doc = nil
	out.Comments = nil

	var buf bytes.Buffer
	if err := printConfig.Fprint(&buf, fset, &out); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	return buf.String(), nil
}

// Normalize parses and re-renders src so that equivalent programs share one
// textual form and line numbering. Comments are dropped and function bodies
// hold no blank lines.
func Normalize(filename, src string) (string, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}

	compact(fset.File(file.Pos()), file, []byte(src))

	return Build(fset, file).Render()
}

// compact merges every line inside a function body that carries no token
// into the line after it, so the printer sees the body's statements on
// consecutive lines. Lines covered by a multi-line literal are kept.
func compact(tf *token.File, file *ast.File, src []byte) {
	used := tokenLines(src)
	blank := make(map[int]struct{})

	ast.Inspect(file, func(n ast.Node) bool {
		var body *ast.BlockStmt

		switch f := n.(type) {
		case *ast.FuncDecl:
			body = f.Body
		case *ast.FuncLit:
			body = f.Body
		}

		if body == nil || !body.Lbrace.IsValid() || !body.Rbrace.IsValid() {
			return true
		}

		for line := tf.Line(body.Lbrace) + 1; line < tf.Line(body.Rbrace); line++ {
			if _, ok := used[line]; !ok {
				blank[line] = struct{}{}
			}
		}

		return true
	})

	lines := make([]int, 0, len(blank))
	for line := range blank {
		lines = append(lines, line)
	}

	// Merging a line renumbers only the lines after it.
	sort.Sort(sort.Reverse(sort.IntSlice(lines)))

	for _, line := range lines {
		tf.MergeLine(line)
	}
}

// tokenLines returns the lines of src that hold at least one token other than
// a comment or an automatic semicolon.
func tokenLines(src []byte) map[int]struct{} {
	fset := token.NewFileSet()
	tf := fset.AddFile("", -1, len(src))

	var s scanner.Scanner
	s.Init(tf, src, nil, 0)

	used := make(map[int]struct{})

	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}

		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}

		first := tf.Line(pos)
		last := first

		if len(lit) > 1 {
			last = tf.Line(pos + token.Pos(len(lit)-1))
		}

		for line := first; line <= last; line++ {
			used[line] = struct{}{}
		}
	}

	return used
}

type builder struct {
	fset *token.FileSet
}

func (b builder) line(n ast.Node) int {
	pos := n.Pos()
	if !pos.IsValid() {
		return 0
	}

	return b.fset.Position(pos).Line
}

func (b builder) decl(d ast.Decl) *Node {
	if fd, ok := d.(*ast.FuncDecl); ok && fd.Body != nil {
		return NewCompound(fd, b.line(fd), b.stmts(fd.Body.List)...)
	}

	return NewLeaf(d, b.line(d))
}

func (b builder) stmts(list []ast.Stmt) []*Node {
	out := make([]*Node, 0, len(list))
	for _, s := range list {
		out = append(out, b.stmt(s))
	}

	return out
}

func (b builder) clauses(body *ast.BlockStmt) []*Node {
	if body == nil {
		return nil
	}

	return b.stmts(body.List)
}

func (b builder) stmt(s ast.Stmt) *Node {
	line := b.line(s)

	switch s := s.(type) {
	case *ast.BlockStmt:
		return NewCompound(s, line, b.stmts(s.List)...)
	case *ast.IfStmt:
		n := NewCompound(s, line, b.stmts(s.Body.List)...)

		switch e := s.Else.(type) {
		case *ast.BlockStmt:
			n.Else = b.stmts(e.List)
		case *ast.IfStmt:
			n.Else = []*Node{b.stmt(e)}
		}

		return n
	case *ast.ForStmt:
		return NewCompound(s, line, b.stmts(s.Body.List)...)
	case *ast.RangeStmt:
		return NewCompound(s, line, b.stmts(s.Body.List)...)
	case *ast.SwitchStmt:
		return NewCompound(s, line, b.clauses(s.Body)...)
	case *ast.TypeSwitchStmt:
		return NewCompound(s, line, b.clauses(s.Body)...)
	case *ast.SelectStmt:
		return NewCompound(s, line, b.clauses(s.Body)...)
	case *ast.CaseClause:
		return NewCompound(s, line, b.stmts(s.Body)...)
	case *ast.CommClause:
		return NewCompound(s, line, b.stmts(s.Body)...)
	case *ast.LabeledStmt:
		return NewCompound(s, line, b.stmt(s.Stmt))
	default:
		return NewLeaf(s, line)
	}
}
