package model

import "time"

// EditEntry is the log form of one edit operation: the action, the line of
// the edited node and the line of the donor node (or the edited line again
// when the edit has no donor).
type EditEntry struct {
	Action    string `json:"action"`
	Line      int    `json:"line"`
	DonorLine int    `json:"donor_line"`
}

// Step records one per-candidate repair step.
type Step struct {
	RunID         string
	Generation    int
	Parent1       CandidateID
	Parent1Source string
	Parent1Trace  Trace
	Parent2       CandidateID
	Parent2Source string
	Parent2Trace  Trace
	Names         map[string]string
	TestCase      int
	TestCaseText  string
	Suspicious    []int
	Crossover     []EditEntry
	Mutation      []EditEntry
	Patch         string
	Fitness       float64
	Solution      bool
	Survivor      CandidateID
	Duration      time.Duration
}

// Solution is one source text that passed every test, found at Generation.
type Solution struct {
	Generation int
	Source     string
}

// Solutions maps a lineage id to its solutions ordered by generation.
type Solutions map[string][]Solution

// Result summarizes the repair outcome for one input program.
type Result struct {
	InstanceID      string
	Solved          bool
	Buggy           string
	FirstPatch      string
	FirstGeneration int
	MinPatch        string
	MinGeneration   int
	RPS             float64
}

// Summary aggregates the results of a run.
type Summary struct {
	Results    []Result
	Total      int
	Solved     int
	RepairRate float64
	AverageRPS float64
}

// RunStatus tracks the lifecycle of a persisted run.
type RunStatus string

const (
	// RunRunning marks a run that has started but not finished.
	RunRunning RunStatus = "running"
	// RunFinished marks a run that completed every generation.
	RunFinished RunStatus = "finished"
	// RunFailed marks a run that stopped with an error.
	RunFailed RunStatus = "failed"
)

// Run is the persisted header of one repair run.
type Run struct {
	ID          string
	Problem     Path
	Seed        uint64
	Generations int
	Population  int
	Formula     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      RunStatus
}
