// Package align matches the executed statements of two trees by longest
// common subsequence over statement kinds and expresses the result as edits.
package align

import (
	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// Action tags an edit operation.
type Action string

// Supported actions.
const (
	Replace Action = "rep"
	Insert  Action = "ins"
	Delete  Action = "del"
	Cut     Action = "cut"
)

// Edit is one pending operation on a node. Donor is nil for Delete.
type Edit struct {
	Action Action
	Donor  *syntax.Node
}

// Map is an edit table keyed by node identity that remembers insertion order.
type Map struct {
	keys  []*syntax.Node
	edits map[*syntax.Node]Edit
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{edits: make(map[*syntax.Node]Edit)}
}

// Set associates e with n. Overwriting keeps n's original position.
func (em *Map) Set(n *syntax.Node, e Edit) {
	if _, ok := em.edits[n]; !ok {
		em.keys = append(em.keys, n)
	}

	em.edits[n] = e
}

// Get returns the edit scheduled for n.
func (em *Map) Get(n *syntax.Node) (Edit, bool) {
	e, ok := em.edits[n]
	return e, ok
}

// Has reports whether n carries an edit.
func (em *Map) Has(n *syntax.Node) bool {
	_, ok := em.edits[n]
	return ok
}

// Len returns the number of scheduled edits.
func (em *Map) Len() int {
	if em == nil {
		return 0
	}

	return len(em.keys)
}

// Keys returns the edited nodes in insertion order.
func (em *Map) Keys() []*syntax.Node {
	if em == nil {
		return nil
	}

	return append([]*syntax.Node(nil), em.keys...)
}

// Copy returns an independent table with the same entries and order.
func (em *Map) Copy() *Map {
	cp := NewMap()
	if em == nil {
		return cp
	}

	for _, k := range em.keys {
		cp.Set(k, em.edits[k])
	}

	return cp
}

// Entries renders the table for logs: action, edited line and donor line
// (the edited line again when there is no donor).
func (em *Map) Entries() []m.EditEntry {
	out := make([]m.EditEntry, 0, em.Len())

	for _, k := range em.Keys() {
		e := em.edits[k]

		donorLine := k.Line
		if e.Donor != nil {
			donorLine = e.Donor.Line
		}

		out = append(out, m.EditEntry{Action: string(e.Action), Line: k.Line, DonorLine: donorLine})
	}

	return out
}
