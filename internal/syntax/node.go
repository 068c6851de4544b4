// Package syntax provides a statement-level tree over go/ast. Every statement
// becomes a Node with up to three child lists; expressions stay inside the
// node's header and are never edited on their own.
package syntax

import (
	"fmt"
	"go/ast"
	"reflect"
	"strings"
)

// Kind names a statement category using the go/ast type name, e.g.
// "IfStmt" or "AssignStmt".
type Kind string

const (
	// KindFile is the kind of every tree root.
	KindFile Kind = "File"
	// KindEmpty is the kind of the no-op placeholder statement.
	KindEmpty Kind = "EmptyStmt"
)

// Role selects one of a node's child lists.
type Role int

const (
	// Body is the primary body of a compound statement.
	Body Role = iota
	// Else is the alternative branch of a conditional.
	Else
	// Finally is kept for the general statement model; Go trees never fill it.
	Finally
)

// Roles lists every role in splice order.
var Roles = [...]Role{Body, Else, Finally}

func (r Role) String() string {
	switch r {
	case Body:
		return "body"
	case Else:
		return "else"
	case Finally:
		return "finally"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Node is one statement of a tree. Nodes are compared by pointer identity.
type Node struct {
	Kind Kind
	// Line is the starting line of the header, 0 when unknown.
	Line int
	// Header carries the statement or declaration. Nested bodies stored in
	// the header are stale once the node is built; the child lists win.
	Header  ast.Node
	Body    []*Node
	Else    []*Node
	Finally []*Node

	compound bool
}

// NewLeaf builds a node without children.
func NewLeaf(header ast.Node, line int) *Node {
	return &Node{Kind: KindOf(header), Line: line, Header: header}
}

// NewCompound builds a node that owns a primary body.
func NewCompound(header ast.Node, line int, body ...*Node) *Node {
	return &Node{Kind: KindOf(header), Line: line, Header: header, Body: body, compound: true}
}

// Placeholder returns a fresh no-op statement.
func Placeholder() *Node {
	return NewLeaf(&ast.EmptyStmt{Implicit: true}, 0)
}

// KindOf derives the kind from an ast node's dynamic type.
func KindOf(n ast.Node) Kind {
	if n == nil {
		return ""
	}

	return Kind(strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast."))
}

// Compound reports whether the node owns a primary body.
func (n *Node) Compound() bool {
	return n.compound
}

// Children returns the child list for role.
func (n *Node) Children(role Role) []*Node {
	switch role {
	case Body:
		return n.Body
	case Else:
		return n.Else
	case Finally:
		return n.Finally
	}

	return nil
}

// SetChildren replaces the child list for role.
func (n *Node) SetChildren(role Role, list []*Node) {
	switch role {
	case Body:
		n.Body = list
	case Else:
		n.Else = list
	case Finally:
		n.Finally = list
	}
}

// AllChildren concatenates Body, Else and Finally.
func (n *Node) AllChildren() []*Node {
	out := make([]*Node, 0, len(n.Body)+len(n.Else)+len(n.Finally))
	out = append(out, n.Body...)
	out = append(out, n.Else...)
	out = append(out, n.Finally...)

	return out
}

// Locate finds child among n's lists.
func (n *Node) Locate(child *Node) (Role, int, bool) {
	for _, role := range Roles {
		for i, c := range n.Children(role) {
			if c == child {
				return role, i, true
			}
		}
	}

	return Body, -1, false
}

// Clone deep-copies the node structure. Headers are shallow-copied: nodes
// never edit expressions, so header sub-trees may be shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	cp := *n
	cp.Header = cloneHeader(n.Header)
	cp.Body = cloneList(n.Body)
	cp.Else = cloneList(n.Else)
	cp.Finally = cloneList(n.Finally)

	return &cp
}

// HeaderOnly returns a deep copy whose primary body is a single placeholder
// and whose other branches are empty.
func (n *Node) HeaderOnly() *Node {
	cp := *n
	cp.Header = cloneHeader(n.Header)
	cp.Body = nil
	cp.Else = nil
	cp.Finally = nil

	if n.compound {
		cp.Body = []*Node{Placeholder()}
	}

	return &cp
}

// Walk visits n and its descendants depth-first, Body before Else before
// Finally. Returning false skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	for _, role := range Roles {
		for _, c := range n.Children(role) {
			c.Walk(fn)
		}
	}
}

// Kinds returns the kinds of nodes in order.
func Kinds(nodes []*Node) []Kind {
	out := make([]Kind, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Kind)
	}

	return out
}

func cloneList(list []*Node) []*Node {
	if list == nil {
		return nil
	}

	out := make([]*Node, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}

	return out
}

func cloneHeader(h ast.Node) ast.Node {
	if h == nil {
		return nil
	}

	v := reflect.ValueOf(h)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return h
	}

	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())

	out, ok := cp.Interface().(ast.Node)
	if !ok {
		return h
	}

	return out
}
