// Package patch applies alignment edit maps to statement trees.
package patch

import (
	"errors"
	"fmt"

	"gooze.dev/pkg/grafter/internal/domain/align"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// ErrInconsistentTree reports a tree that breaks the single-parent invariant
// or an edit that cannot be placed. It indicates a programming error.
var ErrInconsistentTree = errors.New("inconsistent syntax tree")

// InconsistencyError describes where the invariant broke.
type InconsistencyError struct {
	Reason string
	Kind   syntax.Kind
	Line   int
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: %s (%s at line %d)", ErrInconsistentTree, e.Reason, e.Kind, e.Line)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistentTree
}

// Patch applies edits to t in place and renders the result.
func Patch(t *syntax.Tree, edits *align.Map) (string, error) {
	if err := Apply(t.Root, edits); err != nil {
		return "", err
	}

	return t.Render()
}

// Apply rewrites the tree under root in place. Each edit is consumed the first
// time its node is visited; edits keyed to nodes outside the tree are ignored.
// The caller's map is left untouched.
func Apply(root *syntax.Node, edits *align.Map) (err error) {
	if edits.Has(root) {
		return &InconsistencyError{Reason: "edit targets the root", Kind: root.Kind, Line: root.Line}
	}

	p := &patcher{
		pending:  make(map[*syntax.Node]align.Edit, edits.Len()),
		parents:  make(map[*syntax.Node]*syntax.Node),
		expanded: make(map[*syntax.Node]struct{}),
	}

	for _, k := range edits.Keys() {
		e, _ := edits.Get(k)
		p.pending[k] = e
	}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InconsistencyError)
			if !ok {
				panic(r)
			}

			err = ie
		}
	}()

	p.visit(root)

	return nil
}

type patcher struct {
	pending  map[*syntax.Node]align.Edit
	parents  map[*syntax.Node]*syntax.Node
	expanded map[*syntax.Node]struct{}
}

func (p *patcher) visit(n *syntax.Node) {
	p.register(n)

	result := p.fix(n)
	if result == nil {
		return
	}

	if _, seen := p.expanded[result]; seen {
		p.fail(result, "node reached twice")
	}

	p.expanded[result] = struct{}{}
	p.register(result)

	for _, role := range syntax.Roles {
		// The list is re-read every step; edits below splice into it.
		for i := 0; i < len(result.Children(role)); i++ {
			p.visit(result.Children(role)[i])
		}
	}
}

func (p *patcher) register(n *syntax.Node) {
	for _, role := range syntax.Roles {
		for _, c := range n.Children(role) {
			p.parents[c] = n
		}
	}
}

func (p *patcher) fix(n *syntax.Node) *syntax.Node {
	e, ok := p.pending[n]
	if !ok {
		return n
	}

	delete(p.pending, n)

	if e.Action != align.Delete && e.Donor == nil {
		p.fail(n, fmt.Sprintf("%s edit without donor", e.Action))
	}

	switch e.Action {
	case align.Delete:
		return p.remove(n)
	case align.Insert:
		return p.insert(n, e.Donor)
	case align.Replace:
		return p.replace(n, e.Donor)
	case align.Cut:
		return p.substitute(n, e.Donor.Clone())
	default:
		p.fail(n, fmt.Sprintf("unknown action %q", e.Action))
	}

	return nil
}

// remove splices n's children into its slot and fixes whatever lands there.
func (p *patcher) remove(n *syntax.Node) *syntax.Node {
	parent, role, idx := p.slot(n)
	list := parent.Children(role)
	hoisted := n.AllChildren()

	next := make([]*syntax.Node, 0, len(list)-1+len(hoisted))
	next = append(next, list[:idx]...)
	next = append(next, hoisted...)
	next = append(next, list[idx+1:]...)

	parent.SetChildren(role, next)
	delete(p.parents, n)
	p.register(parent)

	if idx >= len(next) {
		return nil
	}

	return p.fix(next[idx])
}

// insert places a header-only copy of donor in front of target.
func (p *patcher) insert(target, donor *syntax.Node) *syntax.Node {
	parent, role, idx := p.slot(target)
	list := parent.Children(role)

	copied := donor.HeaderOnly()

	next := make([]*syntax.Node, 0, len(list)+1)
	next = append(next, list[:idx]...)
	next = append(next, copied)
	next = append(next, list[idx:]...)

	parent.SetChildren(role, next)
	p.register(parent)

	return copied
}

// replace swaps target's header for a copy of donor keeping target's children.
func (p *patcher) replace(target, donor *syntax.Node) *syntax.Node {
	copied := donor.Clone()
	copied.Body = target.Body
	copied.Else = target.Else
	copied.Finally = target.Finally

	return p.substitute(target, copied)
}

func (p *patcher) substitute(target, with *syntax.Node) *syntax.Node {
	parent, role, idx := p.slot(target)

	next := append([]*syntax.Node(nil), parent.Children(role)...)
	next[idx] = with

	parent.SetChildren(role, next)
	delete(p.parents, target)
	p.register(parent)

	return with
}

func (p *patcher) slot(n *syntax.Node) (*syntax.Node, syntax.Role, int) {
	parent, ok := p.parents[n]
	if !ok {
		p.fail(n, "no registered parent")
	}

	role, idx, ok := parent.Locate(n)
	if !ok {
		p.fail(n, "parent does not hold node")
	}

	return parent, role, idx
}

func (p *patcher) fail(n *syntax.Node, reason string) {
	panic(&InconsistencyError{Reason: reason, Kind: n.Kind, Line: n.Line})
}
