// Package faultloc scores executed lines by how strongly their execution
// correlates with failing tests.
package faultloc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	m "gooze.dev/pkg/grafter/internal/model"
)

// Formula names a suspiciousness formula.
type Formula string

const (
	// Jaccard scores fail / (exec + failures that missed the line).
	Jaccard Formula = "jaccard"
	// Tarantula scores the failing ratio against the passing ratio.
	Tarantula Formula = "tarantula"
)

// ErrUnknownFormula is returned for formula names that are not supported.
var ErrUnknownFormula = errors.New("unknown suspiciousness formula")

// Formulas lists the supported formula names.
func Formulas() []Formula {
	return []Formula{Jaccard, Tarantula}
}

// ParseFormula validates a formula name.
func ParseFormula(name string) (Formula, error) {
	for _, f := range Formulas() {
		if string(f) == name {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormula, name)
}

// Suspiciousness maps an executed line to its score in [0, 1]. Lines never
// executed by any test are absent.
type Suspiciousness map[int]float64

// Compute scores every executed line with the named formula.
func Compute(formula Formula, results m.TestResults, traces m.TraceHistory) (Suspiciousness, error) {
	c := tally(results, traces)

	switch formula {
	case Jaccard:
		return c.jaccard(), nil
	case Tarantula:
		return c.tarantula(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, formula)
	}
}

// OverScore returns the lines whose score is strictly greater than n, in
// ascending line order.
func (s Suspiciousness) OverScore(n float64) []int {
	var lines []int

	for line, score := range s {
		if score > n {
			lines = append(lines, line)
		}
	}

	sort.Ints(lines)

	return lines
}

// Set returns OverScore(n) as a membership set.
func (s Suspiciousness) Set(n float64) map[int]struct{} {
	set := make(map[int]struct{})
	for _, line := range s.OverScore(n) {
		set[line] = struct{}{}
	}

	return set
}

// Ranked returns the lines whose score is strictly greater than n, most
// suspicious first. Ties keep ascending line order.
func (s Suspiciousness) Ranked(n float64) []int {
	lines := s.OverScore(n)

	sort.SliceStable(lines, func(i, j int) bool {
		return s[lines[i]] > s[lines[j]]
	})

	return lines
}

type counts struct {
	exec, fail, pass     map[int]int
	totalFail, totalPass int
}

func tally(results m.TestResults, traces m.TraceHistory) counts {
	c := counts{
		exec: make(map[int]int),
		fail: make(map[int]int),
		pass: make(map[int]int),
	}

	for id, status := range results {
		passed := status == m.Pass
		if passed {
			c.totalPass++
		} else {
			c.totalFail++
		}

		seen := make(map[int]struct{})

		for _, line := range traces[id] {
			if _, dup := seen[line]; dup {
				continue
			}

			seen[line] = struct{}{}
			c.exec[line]++

			if passed {
				c.pass[line]++
			} else {
				c.fail[line]++
			}
		}
	}

	return c
}

func (c counts) jaccard() Suspiciousness {
	out := make(Suspiciousness, len(c.exec))

	for line, exec := range c.exec {
		fail := c.fail[line]

		denominator := exec + (c.totalFail - fail)
		if denominator == 0 {
			out[line] = fallback(fail, 0)
			continue
		}

		out[line] = round1(float64(fail) / float64(denominator))
	}

	return out
}

func (c counts) tarantula() Suspiciousness {
	out := make(Suspiciousness, len(c.exec))

	for line := range c.exec {
		fail, pass := c.fail[line], c.pass[line]

		if c.totalFail == 0 || c.totalPass == 0 {
			out[line] = fallback(fail, pass)
			continue
		}

		failRatio := float64(fail) / float64(c.totalFail)
		passRatio := float64(pass) / float64(c.totalPass)

		if failRatio+passRatio == 0 {
			out[line] = fallback(fail, pass)
			continue
		}

		out[line] = round1(failRatio / (failRatio + passRatio))
	}

	return out
}

func fallback(fail, pass int) float64 {
	if fail > 0 && pass == 0 {
		return 1
	}

	return 0
}

// round1 rounds to one decimal, half to even on the exact binary value.
func round1(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	if err != nil {
		return x
	}

	return v
}
