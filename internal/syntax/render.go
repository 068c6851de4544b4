package syntax

import "go/ast"

// renderer turns a statement tree back into go/ast. Edited trees can place
// statements where Go does not accept them, so each slot repairs what it
// receives: clauses outside a switch become blocks, loose statements inside
// a switch join the preceding clause, and top-level statements are moved into
// a trailing init function.
type renderer struct{}

func (r renderer) decls(nodes []*Node) []ast.Decl {
	var (
		decls  []ast.Decl
		strays []*Node
	)

	for _, n := range nodes {
		switch h := n.Header.(type) {
		case *ast.FuncDecl:
			fd := *h
			if n.compound || h.Body != nil {
				fd.Body = r.blockFor(h.Body, n.Body)
			}

			decls = append(decls, &fd)

			if extra := r.trailing(n); len(extra) > 0 {
				strays = append(strays, extra...)
			}
		case ast.Decl:
			decls = append(decls, h)
		default:
			strays = append(strays, n)
		}
	}

	if len(strays) > 0 {
		decls = append(decls, &ast.FuncDecl{
			Name: ast.NewIdent("init"),
			Type: &ast.FuncType{Params: &ast.FieldList{}},
			Body: &ast.BlockStmt{List: r.block(strays)},
		})
	}

	return decls
}

// block renders nodes for a plain statement list.
func (r renderer) block(nodes []*Node) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(nodes))

	for _, n := range nodes {
		for _, s := range r.stmts(n) {
			switch c := s.(type) {
			case *ast.CaseClause:
				out = append(out, &ast.BlockStmt{List: c.Body})
			case *ast.CommClause:
				out = append(out, &ast.BlockStmt{List: c.Body})
			default:
				out = append(out, s)
			}
		}
	}

	return out
}

// stmts renders n followed by any children sitting in a role its header
// cannot hold.
func (r renderer) stmts(n *Node) []ast.Stmt {
	out := []ast.Stmt{r.stmt(n)}

	return append(out, r.block(r.trailing(n))...)
}

// trailing returns the children of n that have no place inside n's header.
func (r renderer) trailing(n *Node) []*Node {
	var out []*Node

	if !hasBody(n.Header) {
		out = append(out, n.Body...)
	}

	if _, ok := n.Header.(*ast.IfStmt); !ok {
		out = append(out, n.Else...)
	}

	return append(out, n.Finally...)
}

func (r renderer) stmt(n *Node) ast.Stmt {
	switch h := n.Header.(type) {
	case *ast.BlockStmt:
		return &ast.BlockStmt{Lbrace: h.Lbrace, List: r.block(n.Body), Rbrace: h.Rbrace}
	case *ast.IfStmt:
		c := *h
		c.Body = r.blockFor(h.Body, n.Body)
		c.Else = r.elseBranch(h.Else, n.Else)

		return &c
	case *ast.ForStmt:
		c := *h
		c.Body = r.blockFor(h.Body, n.Body)

		return &c
	case *ast.RangeStmt:
		c := *h
		c.Body = r.blockFor(h.Body, n.Body)

		return &c
	case *ast.SwitchStmt:
		c := *h
		c.Body = r.clauseBlock(h.Body, n.Body, false)

		return &c
	case *ast.TypeSwitchStmt:
		c := *h
		c.Body = r.clauseBlock(h.Body, n.Body, false)

		return &c
	case *ast.SelectStmt:
		c := *h
		c.Body = r.clauseBlock(h.Body, n.Body, true)

		return &c
	case *ast.CaseClause:
		c := *h
		c.Body = r.block(n.Body)

		return &c
	case *ast.CommClause:
		c := *h
		c.Body = r.block(n.Body)

		return &c
	case *ast.LabeledStmt:
		c := *h
		c.Stmt = r.labeled(n.Body)

		return &c
	case *ast.FuncDecl:
		return r.blockFor(h.Body, n.Body)
	case *ast.GenDecl:
		return &ast.DeclStmt{Decl: h}
	case *ast.File:
		return &ast.BlockStmt{List: r.block(n.Body)}
	case ast.Stmt:
		return h
	default:
		return &ast.EmptyStmt{Implicit: true}
	}
}

func (r renderer) blockFor(orig *ast.BlockStmt, nodes []*Node) *ast.BlockStmt {
	b := &ast.BlockStmt{List: r.block(nodes)}
	if orig != nil {
		b.Lbrace = orig.Lbrace
		b.Rbrace = orig.Rbrace
	}

	return b
}

func (r renderer) elseBranch(orig ast.Stmt, nodes []*Node) ast.Stmt {
	if len(nodes) == 0 {
		return nil
	}

	if len(nodes) == 1 && nodes[0].Kind == KindOf(&ast.IfStmt{}) {
		if out := r.stmts(nodes[0]); len(out) == 1 {
			if s, ok := out[0].(*ast.IfStmt); ok {
				return s
			}
		}
	}

	origBlock, _ := orig.(*ast.BlockStmt)

	return r.blockFor(origBlock, nodes)
}

func (r renderer) clauseBlock(orig *ast.BlockStmt, nodes []*Node, comm bool) *ast.BlockStmt {
	var out, orphans []ast.Stmt

	attach := func(list ...ast.Stmt) {
		if len(out) == 0 {
			orphans = append(orphans, list...)
			return
		}

		switch c := out[len(out)-1].(type) {
		case *ast.CaseClause:
			c.Body = append(c.Body, list...)
		case *ast.CommClause:
			c.Body = append(c.Body, list...)
		}
	}

	for _, n := range nodes {
		for _, s := range r.stmts(n) {
			switch c := s.(type) {
			case *ast.CaseClause:
				if comm {
					attach(c.Body...)
					continue
				}

				if len(out) == 0 && len(orphans) > 0 {
					c.Body = append(orphans, c.Body...)
					orphans = nil
				}

				out = append(out, c)
			case *ast.CommClause:
				if !comm {
					attach(c.Body...)
					continue
				}

				if len(out) == 0 && len(orphans) > 0 {
					c.Body = append(orphans, c.Body...)
					orphans = nil
				}

				out = append(out, c)
			case *ast.EmptyStmt:
			default:
				attach(s)
			}
		}
	}

	if len(orphans) > 0 {
		if comm {
			out = append(out, &ast.CommClause{Body: orphans})
		} else {
			out = append(out, &ast.CaseClause{Body: orphans})
		}
	}

	b := &ast.BlockStmt{List: out}
	if orig != nil {
		b.Lbrace = orig.Lbrace
		b.Rbrace = orig.Rbrace
	}

	return b
}

func (r renderer) labeled(nodes []*Node) ast.Stmt {
	list := r.block(nodes)

	switch len(list) {
	case 0:
		return &ast.EmptyStmt{Implicit: true}
	case 1:
		return list[0]
	default:
		return &ast.BlockStmt{List: list}
	}
}

func hasBody(h ast.Node) bool {
	switch h.(type) {
	case *ast.File, *ast.FuncDecl, *ast.BlockStmt, *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt,
		*ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt, *ast.CaseClause, *ast.CommClause,
		*ast.LabeledStmt:
		return true
	}

	return false
}
