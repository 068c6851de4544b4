package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gooze.dev/pkg/grafter/internal/adapter"
	m "gooze.dev/pkg/grafter/internal/model"
)

// TraceFileEnv names the environment variable through which an instrumented
// candidate learns where to write its executed lines.
const TraceFileEnv = "GRAFTER_TRACE_FILE"

const candidateModule = "module grafter.candidate\n\ngo 1.21\n"

// Limits bounds the work done for one candidate.
type Limits struct {
	// Parallel is the number of test cases run concurrently, 1 when unset.
	Parallel     int
	TestTimeout  time.Duration
	BuildTimeout time.Duration
}

// Job asks for one candidate to be evaluated against a suite.
type Job struct {
	ID     m.CandidateID
	Source string
	Suite  m.Suite
	Limits Limits
}

// Orchestrator builds a candidate in a scratch directory and runs every test
// case of the suite against it, collecting outcomes and executed lines.
type Orchestrator interface {
	Execute(ctx context.Context, job Job) (m.Execution, error)
}

type orchestrator struct {
	fsAdapter     adapter.SourceFSAdapter
	goFileAdapter adapter.GoFileAdapter
	testAdapter   adapter.TestRunnerAdapter
}

// NewOrchestrator constructs an Orchestrator backed by the provided
// filesystem, instrumentation and process adapters.
func NewOrchestrator(
	fsAdapter adapter.SourceFSAdapter,
	goFileAdapter adapter.GoFileAdapter,
	testAdapter adapter.TestRunnerAdapter,
) Orchestrator {
	return &orchestrator{
		fsAdapter:     fsAdapter,
		goFileAdapter: goFileAdapter,
		testAdapter:   testAdapter,
	}
}

// Execute never reports a broken candidate as an error: programs that fail
// to parse or build fail every test. Errors are reserved for the scratch
// workspace and for a cancelled ctx.
func (to *orchestrator) Execute(ctx context.Context, job Job) (m.Execution, error) {
	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	instrumented, err := to.goFileAdapter.Instrument(job.ID.String()+".go", []byte(job.Source))
	if err != nil {
		slog.Debug("Candidate does not parse", "candidate", job.ID, "error", err)
		return failedExecution(job), nil
	}

	tmpDir, err := to.fsAdapter.CreateTempDir(ctx, "grafter-candidate-*")
	if err != nil {
		slog.Error("Failed to create temp dir", "error", err)
		return m.Execution{}, fmt.Errorf("failed to create temp dir: %w", err)
	}

	defer to.cleanupTempDir(ctx, tmpDir)

	if err := to.writeWorkspace(ctx, tmpDir, instrumented); err != nil {
		return m.Execution{}, err
	}

	binary := to.fsAdapter.JoinPath(ctx, string(tmpDir), "candidate")

	built, err := to.build(ctx, job, tmpDir, binary)
	if err != nil {
		return m.Execution{}, err
	}

	if !built {
		return failedExecution(job), nil
	}

	return to.runTests(ctx, job, tmpDir, binary)
}

func (to *orchestrator) writeWorkspace(ctx context.Context, tmpDir m.Path, instrumented []byte) error {
	mainPath := to.fsAdapter.JoinPath(ctx, string(tmpDir), "main.go")
	if err := to.fsAdapter.WriteFile(ctx, mainPath, instrumented, 0o600); err != nil {
		slog.Error("Failed to write candidate source", "path", mainPath, "error", err)
		return fmt.Errorf("failed to write candidate source: %w", err)
	}

	modPath := to.fsAdapter.JoinPath(ctx, string(tmpDir), "go.mod")
	if err := to.fsAdapter.WriteFile(ctx, modPath, []byte(candidateModule), 0o600); err != nil {
		slog.Error("Failed to write candidate module", "path", modPath, "error", err)
		return fmt.Errorf("failed to write candidate module: %w", err)
	}

	return nil
}

func (to *orchestrator) build(ctx context.Context, job Job, tmpDir, binary m.Path) (bool, error) {
	buildCtx := ctx

	if job.Limits.BuildTimeout > 0 {
		var cancel context.CancelFunc

		buildCtx, cancel = context.WithTimeout(ctx, job.Limits.BuildTimeout)
		defer cancel()
	}

	output, err := to.testAdapter.BuildProgram(buildCtx, string(tmpDir), string(binary))
	if err == nil {
		return true, nil
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	slog.Debug("Candidate does not build", "candidate", job.ID, "output", output)

	return false, nil
}

func (to *orchestrator) runTests(ctx context.Context, job Job, tmpDir, binary m.Path) (m.Execution, error) {
	exec := m.Execution{
		ID:      job.ID,
		Source:  job.Source,
		Results: make(m.TestResults, job.Suite.Len()),
		Traces:  make(m.TraceHistory, job.Suite.Len()),
	}

	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(max(1, job.Limits.Parallel))

	for _, tc := range job.Suite.Cases {
		group.Go(func() error {
			status, trace := to.runTest(ctx, job, tmpDir, binary, tc)

			mu.Lock()
			exec.Results[tc.ID] = status
			exec.Traces[tc.ID] = trace
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return m.Execution{}, err
	}

	return exec, nil
}

func (to *orchestrator) runTest(ctx context.Context, job Job, tmpDir, binary m.Path, tc m.TestCase) (m.TestStatus, m.Trace) {
	traceFile := to.fsAdapter.JoinPath(ctx, string(tmpDir), fmt.Sprintf("trace-%d.txt", tc.ID))

	runCtx := ctx

	if job.Limits.TestTimeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, job.Limits.TestTimeout)
		defer cancel()
	}

	output, runErr := to.testAdapter.RunProgram(runCtx, string(binary), tc.Input, []string{TraceFileEnv + "=" + string(traceFile)})
	trace := to.readTrace(ctx, traceFile)

	switch {
	case runErr != nil:
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			slog.Debug("Test timed out", "candidate", job.ID, "test", tc.ID)
		}

		return m.Error, trace
	case m.NormalizeOutput(output) == m.NormalizeOutput(tc.Output):
		return m.Pass, trace
	default:
		return m.Fail, trace
	}
}

func (to *orchestrator) readTrace(ctx context.Context, path m.Path) m.Trace {
	data, err := to.fsAdapter.ReadFile(ctx, path)
	if err != nil {
		return m.Trace{}
	}

	return ParseTrace(string(data))
}

// ParseTrace reads one line number per line, skipping anything malformed.
func ParseTrace(data string) m.Trace {
	var trace m.Trace

	for _, field := range strings.Fields(data) {
		line, err := strconv.Atoi(field)
		if err != nil {
			continue
		}

		trace = append(trace, line)
	}

	return trace.Dedupe()
}

func failedExecution(job Job) m.Execution {
	exec := m.Execution{
		ID:      job.ID,
		Source:  job.Source,
		Results: make(m.TestResults, job.Suite.Len()),
		Traces:  make(m.TraceHistory, job.Suite.Len()),
	}

	for _, id := range job.Suite.IDs() {
		exec.Results[id] = m.Fail
		exec.Traces[id] = m.Trace{}
	}

	return exec
}

// cleanupTempDir removes the temporary directory, logging errors if cleanup fails.
func (to *orchestrator) cleanupTempDir(ctx context.Context, tmpDir m.Path) {
	if err := to.fsAdapter.RemoveAll(ctx, tmpDir); err != nil {
		slog.Error("Failed to cleanup temp dir", "tmpDir", tmpDir, "error", err)
	}
}
