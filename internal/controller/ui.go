// Package controller provides the terminal front ends that report repair
// progress and results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "gooze.dev/pkg/grafter/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRepair StartMode = iota
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode        StartMode
	generations int
	population  int
}

// WithRepairMode prepares progress display for a run of the given size.
func WithRepairMode(generations, population int) StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRepair
		c.generations = generations
		c.population = population
	}
}

// WithViewMode sets the UI to stored run display.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

func newStartConfig(options []StartOption) StartConfig {
	cfg := StartConfig{mode: ModeRepair}
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI reports a repair run as it happens and renders stored runs.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayRunInfo(ctx context.Context, run m.Run, programs int)
	DisplayGeneration(ctx context.Context, gen, total int)
	DisplayStep(ctx context.Context, step m.Step)
	DisplaySummary(ctx context.Context, summary m.Summary)
	DisplayRuns(ctx context.Context, runs []m.Run) error
}

// NewUI returns the interactive TUI when stdout is a terminal and the plain
// line-based UI otherwise.
func NewUI(cmd *cobra.Command, isTTY bool) UI {
	if isTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
