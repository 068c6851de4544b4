package domain

import (
	"context"
	"go/token"
	"strings"
	"sync"

	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// fakeOrchestrator passes a test when the candidate source contains the
// test's needle. Every statement line of a parsable source is traced.
type fakeOrchestrator struct {
	needles map[int]string

	mu    sync.Mutex
	calls int
}

func newFakeOrchestrator(needles map[int]string) *fakeOrchestrator {
	return &fakeOrchestrator{needles: needles}
}

func (f *fakeOrchestrator) Execute(ctx context.Context, job Job) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	exec := m.Execution{
		ID:      job.ID,
		Source:  job.Source,
		Results: m.TestResults{},
		Traces:  m.TraceHistory{},
	}

	tree, err := syntax.Parse(token.NewFileSet(), "candidate.go", []byte(job.Source))
	if err != nil {
		for _, id := range job.Suite.IDs() {
			exec.Results[id] = m.Fail
			exec.Traces[id] = m.Trace{}
		}

		return exec, nil
	}

	lines := m.Trace(m.SortedLines(syntax.NewIndex(tree).Lines))

	for _, id := range job.Suite.IDs() {
		exec.Results[id] = m.Fail
		if strings.Contains(job.Source, f.needles[id]) {
			exec.Results[id] = m.Pass
		}

		exec.Traces[id] = lines
	}

	return exec, nil
}

func (f *fakeOrchestrator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

const sumMinus = `package main

import "fmt"

func main() {
	var a, b int
	fmt.Scan(&a, &b)
	total := a - b
	fmt.Println(total)
}
`

const sumProduct = `package main

import "fmt"

func main() {
	var a, b int
	fmt.Scan(&a, &b)
	result := a * b
	fmt.Println(result)
}
`

const sumPlus = `package main

import "fmt"

func main() {
	var x, y int
	fmt.Scan(&x, &y)
	sum := x + y
	fmt.Println(sum)
}
`

func sumSuite() m.Suite {
	return m.Suite{Cases: []m.TestCase{
		{ID: 1, Input: "1 2\n", Output: "3\n"},
		{ID: 2, Input: "2 2\n", Output: "4\n"},
	}}
}

// sumNeedles makes test 1 pass for any addition and test 2 for any program
// that prints.
func sumNeedles() map[int]string {
	return map[int]string{1: " + ", 2: "fmt.Println"}
}

func sumProblem() m.Problem {
	return m.Problem{
		Root:  "sum",
		Suite: sumSuite(),
		Programs: []m.Program{
			{ID: "minus", Source: sumMinus},
			{ID: "plus", Source: sumPlus},
			{ID: "product", Source: sumProduct},
		},
	}
}
