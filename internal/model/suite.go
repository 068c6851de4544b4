package model

import (
	"fmt"
	"sort"
	"strings"
)

// TestCase is one stdin/stdout pair of a problem's suite.
type TestCase struct {
	ID     int    `yaml:"id"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// TestStatus is the outcome of running one test case.
type TestStatus int

const (
	// Pass means the program printed the expected output.
	Pass TestStatus = iota
	// Fail means the program ran to completion with a different output, or
	// could not be built at all.
	Fail
	// Error means the program crashed, exited non-zero or timed out.
	Error
)

func (s TestStatus) String() string {
	switch s {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// TestResults maps a test case id to its outcome.
type TestResults map[int]TestStatus

// Trace is the ordered, duplicate-free sequence of executed line numbers.
type Trace []int

// Dedupe collapses repeated lines keeping first occurrence order.
func (t Trace) Dedupe() Trace {
	seen := make(map[int]struct{}, len(t))
	out := make(Trace, 0, len(t))

	for _, line := range t {
		if _, ok := seen[line]; ok {
			continue
		}

		seen[line] = struct{}{}
		out = append(out, line)
	}

	return out
}

// TraceHistory maps a test case id to the trace it produced.
type TraceHistory map[int]Trace

// Execution is the cached record of running one candidate against the suite.
type Execution struct {
	ID      CandidateID
	Source  string
	Results TestResults
	Traces  TraceHistory
}

// Suite is the ordered collection of test cases of a problem.
type Suite struct {
	Cases []TestCase
}

// Len returns the number of test cases.
func (s Suite) Len() int {
	return len(s.Cases)
}

// IDs returns all test ids in suite order.
func (s Suite) IDs() []int {
	ids := make([]int, 0, len(s.Cases))
	for _, tc := range s.Cases {
		ids = append(ids, tc.ID)
	}

	return ids
}

// Case looks up a test case by id.
func (s Suite) Case(id int) (TestCase, bool) {
	for _, tc := range s.Cases {
		if tc.ID == id {
			return tc, true
		}
	}

	return TestCase{}, false
}

// Split partitions the suite's ids by outcome. Ids missing from results count
// as failed. Both slices follow suite order.
func (s Suite) Split(results TestResults) (passed, failed []int) {
	for _, id := range s.IDs() {
		if status, ok := results[id]; ok && status == Pass {
			passed = append(passed, id)
			continue
		}

		failed = append(failed, id)
	}

	return passed, failed
}

// IsAllPass reports whether every test case passed.
func (s Suite) IsAllPass(results TestResults) bool {
	if len(s.Cases) == 0 {
		return false
	}

	_, failed := s.Split(results)

	return len(failed) == 0
}

// Render formats a test case for logs.
func (s Suite) Render(id int) string {
	tc, ok := s.Case(id)
	if !ok {
		return fmt.Sprintf("#%d (unknown)", id)
	}

	return fmt.Sprintf("#%d input=%q output=%q", tc.ID, tc.Input, tc.Output)
}

// NormalizeOutput trims trailing whitespace from every line and drops
// trailing blank lines so that expected and actual outputs compare leniently.
func NormalizeOutput(out string) string {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// SortedLines returns the keys of a line-keyed set in ascending order.
func SortedLines[V any](set map[int]V) []int {
	lines := make([]int, 0, len(set))
	for line := range set {
		lines = append(lines, line)
	}

	sort.Ints(lines)

	return lines
}
