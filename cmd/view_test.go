package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gooze.dev/pkg/grafter/internal/domain"
	domainmocks "gooze.dev/pkg/grafter/internal/domain/mocks"
)

func TestViewCmd_ListsRunsWithoutArgs(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("View", mock.Anything, domain.ViewArgs{}).Return(nil)

	cmd.SetArgs([]string{"view"})
	err := cmd.Execute()
	require.NoError(t, err)
}

func TestViewCmd_RunIDIsPassedThrough(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("View", mock.Anything, domain.ViewArgs{RunID: "run-1"}).Return(nil)

	cmd.SetArgs([]string{"view", "run-1"})
	err := cmd.Execute()
	require.NoError(t, err)
}

func TestViewCmd_TooManyArgsAreRejected(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	cmd.SetArgs([]string{"view", "run-1", "run-2"})
	err := cmd.Execute()
	require.Error(t, err)
}

func TestViewCmd_OpensStoreAtDBFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.AddCommand(newViewCmd())

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	dbPath := t.TempDir() + "/history/runs.db"
	cmd.SetArgs([]string{"view", "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "No runs recorded")
	require.FileExists(t, dbPath)
}
