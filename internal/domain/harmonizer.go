package domain

import (
	"go/ast"

	"gooze.dev/pkg/grafter/internal/syntax"
)

// Harmonizer renames a mate's variables after the parent's so that donated
// statements refer to names the parent declares.
type Harmonizer struct{}

// Align pairs the names declared only in b with the names declared only in
// a, both in declaration order. The result maps b names to a names.
func (Harmonizer) Align(a, b *syntax.Index) map[string]string {
	onlyA := exclusive(a, b)
	onlyB := exclusive(b, a)

	names := make(map[string]string, min(len(onlyA), len(onlyB)))
	for i := 0; i < len(onlyA) && i < len(onlyB); i++ {
		names[onlyB[i]] = onlyA[i]
	}

	return names
}

// Rename rewrites identifier uses under root. Selector fields, composite
// literal keys and struct or interface member names are left alone.
func (h Harmonizer) Rename(root ast.Node, names map[string]string) {
	if len(names) == 0 || root == nil {
		return
	}

	ast.Inspect(root, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			h.Rename(x.X, names)
			return false
		case *ast.KeyValueExpr:
			if _, field := x.Key.(*ast.Ident); !field {
				h.Rename(x.Key, names)
			}

			h.Rename(x.Value, names)

			return false
		case *ast.StructType:
			for _, f := range x.Fields.List {
				h.Rename(f.Type, names)
			}

			return false
		case *ast.InterfaceType:
			return false
		case *ast.Ident:
			if to, ok := names[x.Name]; ok {
				x.Name = to
			}
		}

		return true
	})
}

func exclusive(of, other *syntax.Index) []string {
	var out []string

	for _, name := range of.Identifiers {
		if !other.HasIdentifier(name) {
			out = append(out, name)
		}
	}

	return out
}
