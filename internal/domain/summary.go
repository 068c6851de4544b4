package domain

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// Summarize builds one result per program, in program order. Programs that
// were not sampled into the population, or whose lineage found nothing, are
// reported unsolved.
func Summarize(programs []m.Program, solutions m.Solutions) m.Summary {
	results := make([]m.Result, 0, len(programs))

	for _, program := range programs {
		results = append(results, summarizeProgram(program, solutions[program.ID]))
	}

	return Aggregate(results)
}

// Aggregate computes the repair rate and the average relative patch size
// over solved results.
func Aggregate(results []m.Result) m.Summary {
	summary := m.Summary{Results: results, Total: len(results)}

	var rps float64

	for _, r := range results {
		if !r.Solved {
			continue
		}

		summary.Solved++
		rps += r.RPS
	}

	summary.RepairRate = divide(float64(summary.Solved), float64(summary.Total))
	summary.AverageRPS = divide(rps, float64(summary.Solved))

	return summary
}

func summarizeProgram(program m.Program, found []m.Solution) m.Result {
	buggy, err := syntax.Normalize(program.ID+".go", program.Source)
	if err != nil {
		buggy = program.Source
	}

	result := m.Result{InstanceID: program.ID, Buggy: buggy}
	if len(found) == 0 {
		return result
	}

	first := found[0]
	minimal, minChanged := found[0], ChangedLines(buggy, found[0].Source)

	for _, s := range found[1:] {
		if s.Generation < first.Generation {
			first = s
		}

		changed := ChangedLines(buggy, s.Source)
		if changed < minChanged || (changed == minChanged && s.Generation < minimal.Generation) {
			minimal, minChanged = s, changed
		}
	}

	result.Solved = true
	result.FirstPatch = first.Source
	result.FirstGeneration = first.Generation
	result.MinPatch = minimal.Source
	result.MinGeneration = minimal.Generation
	result.RPS = divide(float64(minChanged), float64(len(splitLines(buggy))))

	return result
}

// ChangedLines counts the lines touched turning a into b. A replaced block
// counts the longer of its two sides.
func ChangedLines(a, b string) int {
	matcher := difflib.NewMatcher(splitLines(a), splitLines(b))

	changed := 0

	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}

		changed += max(op.I2-op.I1, op.J2-op.J1)
	}

	return changed
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return lines
}
