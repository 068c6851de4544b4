package controller

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	m "gooze.dev/pkg/grafter/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd *cobra.Command
	cfg StartConfig
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cfg = newStartConfig(options)

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(_ context.Context) {}

// DisplayRunInfo prints the run header.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, run m.Run, programs int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Run %s on %s (seed %d)\n", run.ID, run.Problem, run.Seed)
	s.printf("%d program(s), population %d, %d generation(s), formula %s\n",
		programs, run.Population, run.Generations, run.Formula)
}

// DisplayGeneration announces the generation being evolved.
func (s *SimpleUI) DisplayGeneration(ctx context.Context, gen, total int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Generation %d/%d\n", gen, total)
}

// DisplayStep prints one finished step.
func (s *SimpleUI) DisplayStep(ctx context.Context, step m.Step) {
	if err := ctx.Err(); err != nil {
		return
	}

	marker := ""
	if step.Solution {
		marker = " solution"
	}

	s.printf("  %s x %s -> %s fitness %.4f%s%s\n",
		step.Parent1, step.Parent2, step.Survivor, step.Fitness, suspect(step), marker)
}

// DisplaySummary prints the results table and the minimal patches.
func (s *SimpleUI) DisplaySummary(ctx context.Context, summary m.Summary) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("\n%s", renderSummaryTable(summary))
	s.printf("%s\n", summaryLine(summary))

	for _, r := range summary.Results {
		if !r.Solved {
			continue
		}

		if diff := patchDiff(r); diff != "" {
			s.printf("\n%s", diff)
		}
	}
}

// DisplayRuns prints the stored runs.
func (s *SimpleUI) DisplayRuns(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		s.printf("No runs recorded\n")
		return nil
	}

	s.printf("%s", renderRunsTable(runs))

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
