package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gooze.dev/pkg/grafter/internal/domain"
	domainmocks "gooze.dev/pkg/grafter/internal/domain/mocks"
	m "gooze.dev/pkg/grafter/internal/model"
)

func newTestRepairCmd(t *testing.T) (*domainmocks.MockWorkflow, func(args ...string) error) {
	t.Helper()

	mockWorkflow := domainmocks.NewMockWorkflow(t)

	originalWorkflow := workflow
	workflow = mockWorkflow
	t.Cleanup(func() { workflow = originalWorkflow })

	run := func(args ...string) error {
		cmd := newRootCmd()
		cmd.AddCommand(newRepairCmd())
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"repair"}, args...))

		return cmd.Execute()
	}

	return mockWorkflow, run
}

func TestRepairCmd_Defaults(t *testing.T) {
	mockWorkflow, run := newTestRepairCmd(t)

	mockWorkflow.On("Repair", mock.Anything, mock.MatchedBy(func(args domain.RepairArgs) bool {
		return args.Problem == m.Path("./examples/sum") &&
			args.Generations == 10 &&
			args.Population == 0 &&
			args.Seed == -1 &&
			args.Formula == "jaccard" &&
			args.Limits.Parallel == 1 &&
			args.Limits.TestTimeout == time.Second &&
			args.Limits.BuildTimeout == time.Minute
	})).Return(m.Summary{}, nil)

	require.NoError(t, run("./examples/sum"))
}

func TestRepairCmd_Flags(t *testing.T) {
	mockWorkflow, run := newTestRepairCmd(t)

	mockWorkflow.On("Repair", mock.Anything, mock.MatchedBy(func(args domain.RepairArgs) bool {
		return args.Generations == 3 &&
			args.Population == 2 &&
			args.Seed == 42 &&
			args.Formula == "tarantula" &&
			args.Limits.Parallel == 4 &&
			args.Limits.TestTimeout == 5*time.Second &&
			args.Limits.BuildTimeout == 30*time.Second
	})).Return(m.Summary{}, nil)

	err := run("-g", "3", "-n", "2", "--seed", "42", "--formula", "tarantula",
		"-p", "4", "--timeout", "5", "--build-timeout", "30", "./examples/sum")
	require.NoError(t, err)
}

func TestRepairCmd_WorkflowErrorIsReturned(t *testing.T) {
	mockWorkflow, run := newTestRepairCmd(t)

	mockWorkflow.On("Repair", mock.Anything, mock.Anything).Return(m.Summary{}, domain.ErrEmptySuite)

	err := run("./examples/sum")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptySuite))
}

func TestRepairCmd_RequiresProblem(t *testing.T) {
	_, run := newTestRepairCmd(t)

	require.Error(t, run())
}

func TestNewRepairCmd(t *testing.T) {
	cmd := newRepairCmd()

	assert.Equal(t, "repair <problem-dir>", cmd.Use)
	assert.Equal(t, repairLongDescription, cmd.Long)

	for _, name := range []string{
		generationsFlagName, populationFlagName, seedFlagName, formulaFlagName,
		runParallelFlagName, timeoutFlagName, buildTimeoutFlagName, metricsAddrFlagName,
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
