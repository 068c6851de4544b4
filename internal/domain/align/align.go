package align

import "gooze.dev/pkg/grafter/internal/syntax"

// Replacements aligns a and b by LCS over node kinds. The table is filled
// over the reversed sequences and walked back, so matches nearer the end of
// execution are fixed first. When both neighbours tie the B side is skipped,
// keeping A nodes in play.
func Replacements(a, b []*syntax.Node) *Map {
	ra, rb := reversed(a), reversed(b)
	dp := lcsTable(ra, rb)

	out := NewMap()

	i, j := len(ra), len(rb)
	for i > 0 && j > 0 {
		switch {
		case ra[i-1].Kind == rb[j-1].Kind:
			out.Set(ra[i-1], Edit{Action: Replace, Donor: rb[j-1]})
			i--
			j--
		case dp[i-1][j] > dp[i][j-1]:
			i--
		default:
			j--
		}
	}

	return out
}

// Insertions places every unmatched B node before the A node that follows
// the A match of its nearest matched B predecessor. The first B node to claim
// a slot keeps it.
func Insertions(a, b []*syntax.Node, rep *Map) *Map {
	matchOf := make(map[*syntax.Node]*syntax.Node, rep.Len())
	for _, an := range rep.Keys() {
		e, _ := rep.Get(an)
		matchOf[e.Donor] = an
	}

	position := make(map[*syntax.Node]int, len(a))
	for i, an := range a {
		position[an] = i
	}

	out := NewMap()

	for bi, bn := range b {
		if _, matched := matchOf[bn]; matched {
			continue
		}

		for k := bi - 1; k >= 0; k-- {
			an, ok := matchOf[b[k]]
			if !ok {
				continue
			}

			next := position[an] + 1
			if next < len(a) && !out.Has(a[next]) {
				out.Set(a[next], Edit{Action: Insert, Donor: bn})
			}

			break
		}
	}

	return out
}

// Deletions marks every A node without a replacement.
func Deletions(a []*syntax.Node, rep *Map) *Map {
	out := NewMap()

	for _, an := range a {
		if !rep.Has(an) {
			out.Set(an, Edit{Action: Delete})
		}
	}

	return out
}

// Unify merges ins over del; colliding keys take the insertion.
func Unify(del, ins *Map) *Map {
	out := del.Copy()
	for _, k := range ins.Keys() {
		e, _ := ins.Get(k)
		out.Set(k, e)
	}

	return out
}

// Trace aligns the statements executed along two traces. The length of the
// result is the LCS length used for trace similarity.
func Trace(a *syntax.Index, aLines []int, b *syntax.Index, bLines []int) *Map {
	return Replacements(a.Sequence(aLines), b.Sequence(bLines))
}

// Crossover builds replace edits turning a's executed statements into b's.
func Crossover(a *syntax.Index, aLines []int, b *syntax.Index, bLines []int) *Map {
	return Replacements(a.Sequence(aLines), b.Sequence(bLines))
}

// Mutation builds insert and delete edits relative to b; replacements are
// only used to anchor them.
func Mutation(a *syntax.Index, aLines []int, b *syntax.Index, bLines []int) *Map {
	sa, sb := a.Sequence(aLines), b.Sequence(bLines)
	rep := Replacements(sa, sb)

	return Unify(Deletions(sa, rep), Insertions(sa, sb, rep))
}

// lcsLength returns the LCS length of the kind sequences of a and b.
func lcsLength(a, b []*syntax.Node) int {
	dp := lcsTable(a, b)
	return dp[len(a)][len(b)]
}

func lcsTable(a, b []*syntax.Node) [][]int {
	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1].Kind == b[j-1].Kind {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	return dp
}

func reversed(nodes []*syntax.Node) []*syntax.Node {
	out := make([]*syntax.Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}

	return out
}
