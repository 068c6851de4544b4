package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gooze.dev/pkg/grafter/internal/adapter"
	m "gooze.dev/pkg/grafter/internal/model"
)

// fakeRunner answers each stdin from a table and writes a fixed trace.
type fakeRunner struct {
	buildErr error
	outputs  map[string]string
	errs     map[string]error
	trace    string

	mu      sync.Mutex
	builds  int
	workDir string
	envs    [][]string
}

func (f *fakeRunner) BuildProgram(_ context.Context, workDir, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.builds++
	f.workDir = workDir

	if f.buildErr != nil {
		return "main.go:3: undefined: x", f.buildErr
	}

	return "", nil
}

func (f *fakeRunner) RunProgram(_ context.Context, _ string, stdin string, env []string) (string, error) {
	f.mu.Lock()
	f.envs = append(f.envs, env)
	f.mu.Unlock()

	for _, kv := range env {
		if path, ok := strings.CutPrefix(kv, TraceFileEnv+"="); ok && f.trace != "" {
			if err := os.WriteFile(path, []byte(f.trace), 0o600); err != nil {
				return "", err
			}
		}
	}

	if err := f.errs[stdin]; err != nil {
		return "", err
	}

	return f.outputs[stdin], nil
}

func newTestOrchestrator(runner *fakeRunner) Orchestrator {
	return NewOrchestrator(adapter.NewLocalSourceFSAdapter(), adapter.NewLocalGoFileAdapter(), runner)
}

func sumJob() Job {
	return Job{
		ID:     m.CandidateID{Lineage: "plus", Generation: 2},
		Source: sumPlus,
		Suite: m.Suite{Cases: []m.TestCase{
			{ID: 1, Input: "1 2\n", Output: "3\n"},
			{ID: 2, Input: "2 2\n", Output: "4\n"},
			{ID: 3, Input: "boom\n", Output: "0\n"},
		}},
		Limits: Limits{Parallel: 2, TestTimeout: time.Second, BuildTimeout: time.Second},
	}
}

func TestOrchestrator_Execute(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"1 2\n": "3  \n", "2 2\n": "5\n"},
		errs:    map[string]error{"boom\n": errors.New("exit status 2")},
		trace:   "6\n7\n6\nnoise\n8\n",
	}

	exec, err := newTestOrchestrator(runner).Execute(context.Background(), sumJob())
	require.NoError(t, err)

	assert.Equal(t, m.CandidateID{Lineage: "plus", Generation: 2}, exec.ID)
	assert.Equal(t, sumPlus, exec.Source)
	assert.Equal(t, m.TestResults{1: m.Pass, 2: m.Fail, 3: m.Error}, exec.Results)

	for id := 1; id <= 3; id++ {
		assert.Equal(t, m.Trace{6, 7, 8}, exec.Traces[id], "test %d", id)
	}

	assert.Equal(t, 1, runner.builds, "the candidate is built once")
	require.Len(t, runner.envs, 3)

	_, statErr := os.Stat(runner.workDir)
	assert.True(t, os.IsNotExist(statErr), "scratch directory is removed")
}

func TestOrchestrator_WritesInstrumentedWorkspace(t *testing.T) {
	var seen string

	runner := &fakeRunner{outputs: map[string]string{}}
	orch := NewOrchestrator(adapter.NewLocalSourceFSAdapter(), adapter.NewLocalGoFileAdapter(), &inspectingRunner{
		fakeRunner: runner,
		inspect: func(workDir string) {
			data, err := os.ReadFile(filepath.Join(workDir, "main.go"))
			require.NoError(t, err)
			seen = string(data)

			mod, err := os.ReadFile(filepath.Join(workDir, "go.mod"))
			require.NoError(t, err)
			assert.Contains(t, string(mod), "module grafter.candidate")
		},
	})

	_, err := orch.Execute(context.Background(), sumJob())
	require.NoError(t, err)

	assert.Contains(t, seen, "grafterTrace(")
	assert.Contains(t, seen, TraceFileEnv)
}

type inspectingRunner struct {
	*fakeRunner
	inspect func(workDir string)
}

func (r *inspectingRunner) BuildProgram(ctx context.Context, workDir, output string) (string, error) {
	r.inspect(workDir)
	return r.fakeRunner.BuildProgram(ctx, workDir, output)
}

func TestOrchestrator_BuildFailureFailsEveryTest(t *testing.T) {
	runner := &fakeRunner{buildErr: errors.New("exit status 1")}

	exec, err := newTestOrchestrator(runner).Execute(context.Background(), sumJob())
	require.NoError(t, err)

	assert.Equal(t, m.TestResults{1: m.Fail, 2: m.Fail, 3: m.Fail}, exec.Results)
	assert.Equal(t, m.TraceHistory{1: {}, 2: {}, 3: {}}, exec.Traces)
	assert.Empty(t, runner.envs)
}

func TestOrchestrator_UnparsableSourceIsNotBuilt(t *testing.T) {
	runner := &fakeRunner{}

	job := sumJob()
	job.Source = "package main\nfunc main() {"

	exec, err := newTestOrchestrator(runner).Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, m.TestResults{1: m.Fail, 2: m.Fail, 3: m.Fail}, exec.Results)
	assert.Zero(t, runner.builds)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOrchestrator(&fakeRunner{}).Execute(ctx, sumJob())
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseTrace(t *testing.T) {
	assert.Equal(t, m.Trace{3, 5, 4}, ParseTrace("3\n5\n3\n4\n"))
	assert.Equal(t, m.Trace{2}, ParseTrace("x\n2\n\n-\n"))
	assert.Empty(t, ParseTrace(""))
}
