package domain

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gooze.dev/pkg/grafter/internal/adapter"
	"gooze.dev/pkg/grafter/internal/controller"
	m "gooze.dev/pkg/grafter/internal/model"
)

const sumTests = `tests:
  - input: "1 2\n"
    output: "3\n"
  - input: "2 2\n"
    output: "4\n"
`

func writeProblem(t *testing.T) m.Path {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, adapter.ProgramsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, adapter.SuiteFile), []byte(sumTests), 0o600))

	for name, src := range map[string]string{"minus": sumMinus, "plus": sumPlus, "product": sumProduct} {
		require.NoError(t, os.WriteFile(filepath.Join(root, adapter.ProgramsDir, name+".go"), []byte(src), 0o600))
	}

	return m.Path(root)
}

type workflowFixture struct {
	workflow Workflow
	store    adapter.ReportStore
	out      *bytes.Buffer
}

func newWorkflowFixture(t *testing.T) workflowFixture {
	t.Helper()

	return newWorkflowFixtureWith(t, newFakeOrchestrator(sumNeedles()))
}

func newWorkflowFixtureWith(t *testing.T, orch Orchestrator) workflowFixture {
	t.Helper()

	store, err := adapter.OpenSQLiteReportStore(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	problems := adapter.NewLocalProblemAdapter(adapter.NewLocalSourceFSAdapter())

	return workflowFixture{
		workflow: NewWorkflow(problems, store, controller.NewSimpleUI(cmd), orch, nil),
		store:    store,
		out:      out,
	}
}

func repairArgs(problem m.Path) RepairArgs {
	return RepairArgs{
		Problem:     problem,
		Generations: 2,
		Seed:        7,
		Formula:     "jaccard",
		JournalDir:  "",
	}
}

func TestWorkflow_Repair(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	summary, err := fx.workflow.Repair(ctx, repairArgs(writeProblem(t)))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.GreaterOrEqual(t, summary.Solved, 1)

	runs, err := fx.store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, m.RunFinished, run.Status)
	assert.Equal(t, uint64(7), run.Seed)
	assert.Equal(t, 3, run.Population, "population 0 evolves every program")
	assert.Equal(t, 2, run.Generations)
	assert.Equal(t, "jaccard", run.Formula)
	assert.False(t, run.FinishedAt.IsZero())

	results, err := fx.store.LoadResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, summary.Results[i].InstanceID, r.InstanceID)
		assert.Equal(t, summary.Results[i].Solved, r.Solved)
		assert.Equal(t, summary.Results[i].MinPatch, r.MinPatch)
	}

	output := fx.out.String()
	assert.Contains(t, output, "Run "+run.ID)
	assert.Contains(t, output, "Generation 1/2")
	assert.Contains(t, output, "Generation 2/2")
	assert.Equal(t, 6, strings.Count(output, " fitness "), "one line per step")
	assert.Contains(t, output, "Repair rate:")
}

func TestWorkflow_RepairSameSeedSameSummary(t *testing.T) {
	problem := writeProblem(t)

	first, err := newWorkflowFixture(t).workflow.Repair(context.Background(), repairArgs(problem))
	require.NoError(t, err)

	second, err := newWorkflowFixture(t).workflow.Repair(context.Background(), repairArgs(problem))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWorkflow_RepairRejectsBadArgs(t *testing.T) {
	problem := writeProblem(t)

	tests := []struct {
		name   string
		mutate func(*RepairArgs)
		want   error
	}{
		{name: "population too large", mutate: func(a *RepairArgs) { a.Population = 5 }, want: ErrPopulationTooLarge},
		{name: "no generations", mutate: func(a *RepairArgs) { a.Generations = 0 }, want: ErrInvalidGenerations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newFakeOrchestrator(sumNeedles())
			fx := newWorkflowFixtureWith(t, orch)

			args := repairArgs(problem)
			tt.mutate(&args)

			_, err := fx.workflow.Repair(context.Background(), args)
			require.ErrorIs(t, err, tt.want)

			runs, err := fx.store.ListRuns(context.Background())
			require.NoError(t, err)
			assert.Empty(t, runs, "invalid runs are not stored")
			assert.Zero(t, orch.Calls())
		})
	}

	t.Run("unknown formula", func(t *testing.T) {
		args := repairArgs(problem)
		args.Formula = "ochiai"

		_, err := newWorkflowFixture(t).workflow.Repair(context.Background(), args)
		require.Error(t, err)
	})

	t.Run("missing problem", func(t *testing.T) {
		_, err := newWorkflowFixture(t).workflow.Repair(context.Background(), repairArgs(m.Path(t.TempDir())))
		require.Error(t, err)
	})
}

// cancellingOrchestrator cancels the run once the initial population has
// been evaluated.
type cancellingOrchestrator struct {
	*fakeOrchestrator
	after  int
	cancel context.CancelFunc
}

func (c *cancellingOrchestrator) Execute(ctx context.Context, job Job) (m.Execution, error) {
	if c.Calls() >= c.after {
		c.cancel()
	}

	return c.fakeOrchestrator.Execute(ctx, job)
}

func TestWorkflow_RepairCancelledRunIsStoredAsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := newWorkflowFixtureWith(t, &cancellingOrchestrator{
		fakeOrchestrator: newFakeOrchestrator(sumNeedles()),
		after:            3,
		cancel:           cancel,
	})

	_, err := fx.workflow.Repair(ctx, repairArgs(writeProblem(t)))
	require.ErrorIs(t, err, context.Canceled)

	runs, err := fx.store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, m.RunFailed, runs[0].Status)

	results, err := fx.store.LoadResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestWorkflow_View(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.workflow.View(ctx, ViewArgs{}))
	assert.Contains(t, fx.out.String(), "No runs recorded")

	_, err := fx.workflow.Repair(ctx, repairArgs(writeProblem(t)))
	require.NoError(t, err)

	runs, err := fx.store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	fx.out.Reset()
	require.NoError(t, fx.workflow.View(ctx, ViewArgs{}))
	assert.Contains(t, fx.out.String(), runs[0].ID)

	fx.out.Reset()
	require.NoError(t, fx.workflow.View(ctx, ViewArgs{RunID: runs[0].ID}))
	assert.Contains(t, fx.out.String(), "Repair rate:")
	assert.Contains(t, fx.out.String(), "plus")

	err = fx.workflow.View(ctx, ViewArgs{RunID: "missing"})
	require.ErrorIs(t, err, adapter.ErrRunNotFound)
}
