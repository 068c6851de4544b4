package domain

import (
	"math"

	"gooze.dev/pkg/grafter/internal/domain/align"
	m "gooze.dev/pkg/grafter/internal/model"
)

// MaxFitness is the distance from (-1, -1) to the ideal point (1, 1).
var MaxFitness = distanceFromIdeal(-1, -1)

// Fitness scores child against parent. The unit-test score rewards tests the
// child turns from failing to passing and the trace score weights the LCS
// similarity of both executions per test the same way. The result is
// MaxFitness minus the distance of (UT, ET) from (1, 1).
func Fitness(suite m.Suite, parent, child *Record) float64 {
	ut, et := Scores(suite, parent, child)
	return MaxFitness - distanceFromIdeal(ut, et)
}

// Scores returns the unit-test and execution-trace scores, each in [-1, 1].
func Scores(suite m.Suite, parent, child *Record) (float64, float64) {
	total := float64(suite.Len())
	if total == 0 {
		return 0, 0
	}

	keep := (total - 1) / total
	lose := (1 - total) / total

	var ut, et float64

	for _, id := range suite.IDs() {
		parentPass := parent.Results[id] == m.Pass && hasResult(parent, id)
		childPass := child.Results[id] == m.Pass && hasResult(child, id)
		sim := traceSimilarity(parent, child, id)

		switch {
		case !parentPass && childPass:
			ut++
			et += sim
		case parentPass && childPass:
			ut += keep
			et += sim * keep
		case !parentPass && !childPass:
			ut += lose
			et += sim * lose
		default:
			ut--
			et -= sim
		}
	}

	return ut / total, divide(et, total)
}

func hasResult(rec *Record, id int) bool {
	_, ok := rec.Results[id]
	return ok
}

func traceSimilarity(parent, child *Record, id int) float64 {
	pt, ct := parent.Traces[id].Dedupe(), child.Traces[id].Dedupe()

	pi, ci := parent.Index(), child.Index()
	if pi == nil || ci == nil {
		return 0
	}

	lcs := align.Trace(pi, pt, ci, ct).Len()

	return divide(float64(lcs), float64(max(len(pt), len(ct))))
}

func distanceFromIdeal(x, y float64) float64 {
	return math.Hypot(1-x, 1-y)
}

func divide(a, b float64) float64 {
	if b == 0 {
		return 0
	}

	return a / b
}
