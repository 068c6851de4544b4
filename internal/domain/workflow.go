package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gooze.dev/pkg/grafter/internal/adapter"
	"gooze.dev/pkg/grafter/internal/controller"
	"gooze.dev/pkg/grafter/internal/domain/faultloc"
	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/pkg"
)

// RepairArgs contains the arguments of one repair run.
type RepairArgs struct {
	Problem     m.Path
	Generations int
	// Population is the number of programs evolved; 0 evolves all of them.
	Population int
	// Seed fixes the random source; a negative seed is taken from the clock.
	Seed       int64
	Formula    string
	Limits     Limits
	JournalDir string
}

// ViewArgs selects stored runs to display.
type ViewArgs struct {
	// RunID selects one run; empty lists every run.
	RunID string
}

// Workflow defines the repair and history use cases of the CLI.
type Workflow interface {
	Repair(ctx context.Context, args RepairArgs) (m.Summary, error)
	View(ctx context.Context, args ViewArgs) error
}

type workflow struct {
	problems     adapter.ProblemAdapter
	store        adapter.ReportStore
	ui           controller.UI
	orchestrator Orchestrator
	metrics      *Metrics
}

// NewWorkflow creates a Workflow with the provided dependencies. metrics may
// be nil.
func NewWorkflow(
	problems adapter.ProblemAdapter,
	store adapter.ReportStore,
	ui controller.UI,
	orchestrator Orchestrator,
	metrics *Metrics,
) Workflow {
	return &workflow{
		problems:     problems,
		store:        store,
		ui:           ui,
		orchestrator: orchestrator,
		metrics:      metrics,
	}
}

// Repair loads the problem, evolves it and stores the run. The run header
// and any finished steps are stored even when the run is interrupted.
func (w *workflow) Repair(ctx context.Context, args RepairArgs) (m.Summary, error) {
	problem, cfg, err := w.prepare(ctx, args)
	if err != nil {
		return m.Summary{}, err
	}

	seed := uint64(args.Seed)
	if args.Seed < 0 {
		seed = ClockSeed()
		slog.Info("Using clock seed", "seed", seed)
	}

	run := m.Run{
		ID:          uuid.NewString(),
		Problem:     args.Problem,
		Seed:        seed,
		Generations: cfg.Generations,
		Population:  cfg.Population,
		Formula:     string(cfg.Formula),
		StartedAt:   time.Now().UTC(),
		Status:      m.RunRunning,
	}

	if err := w.store.BeginRun(ctx, run); err != nil {
		slog.Error("Failed to store run", "run", run.ID, "error", err)
		return m.Summary{}, fmt.Errorf("begin run: %w", err)
	}

	journal, err := pkg.NewFileSpill[m.Step](args.JournalDir)
	if err != nil {
		slog.Error("Failed to create step journal", "error", err)
		return m.Summary{}, fmt.Errorf("create journal: %w", err)
	}

	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Failed to close step journal", "path", journal.Path(), "error", closeErr)
		}
	}()

	if err := w.ui.Start(ctx, controller.WithRepairMode(cfg.Generations, cfg.Population)); err != nil {
		slog.Error("Failed to start UI", "error", err)
		return m.Summary{}, err
	}

	w.ui.DisplayRunInfo(ctx, run, len(problem.Programs))

	engine := NewEngine(w.orchestrator, NewRandom(seed),
		WithMetrics(w.metrics),
		WithStepHook(func(ctx context.Context, step m.Step) error {
			step.RunID = run.ID
			if err := journal.Append(step); err != nil {
				return fmt.Errorf("journal step: %w", err)
			}

			w.ui.DisplayStep(ctx, step)

			return nil
		}),
		WithGenerationHook(func(ctx context.Context, gen int, done bool) error {
			if !done {
				w.ui.DisplayGeneration(ctx, gen, cfg.Generations)
				return nil
			}

			return w.flush(ctx, journal)
		}),
	)

	solutions, runErr := engine.Run(ctx, problem, cfg)
	if runErr != nil {
		slog.Error("Repair stopped", "run", run.ID, "error", runErr)
	}

	// Persist what was found even when ctx was cancelled.
	persistCtx := context.WithoutCancel(ctx)

	summary := Summarize(problem.Programs, solutions)
	storeErr := w.finish(persistCtx, run, journal, summary, runErr)

	w.ui.DisplaySummary(persistCtx, summary)
	w.ui.Wait(persistCtx)
	w.ui.Close(persistCtx)

	slog.Info("Repair finished",
		"run", run.ID,
		"solved", summary.Solved,
		"total", summary.Total,
		"repairRate", summary.RepairRate,
	)

	return summary, errors.Join(runErr, storeErr)
}

func (w *workflow) prepare(ctx context.Context, args RepairArgs) (m.Problem, EngineConfig, error) {
	problem, err := w.problems.Load(ctx, args.Problem)
	if err != nil {
		slog.Error("Failed to load problem", "path", args.Problem, "error", err)
		return m.Problem{}, EngineConfig{}, fmt.Errorf("load problem: %w", err)
	}

	formula, err := faultloc.ParseFormula(args.Formula)
	if err != nil {
		return m.Problem{}, EngineConfig{}, err
	}

	cfg := EngineConfig{
		Generations: args.Generations,
		Population:  args.Population,
		Formula:     formula,
		Limits:      args.Limits,
	}

	if cfg.Population == 0 {
		cfg.Population = len(problem.Programs)
	}

	if err := Validate(problem, cfg); err != nil {
		return m.Problem{}, EngineConfig{}, err
	}

	return problem, cfg, nil
}

func (w *workflow) finish(ctx context.Context, run m.Run, journal pkg.FileSpill[m.Step], summary m.Summary, runErr error) error {
	var errs []error

	if err := w.flush(ctx, journal); err != nil {
		errs = append(errs, err)
	}

	if err := w.store.SaveResults(ctx, run.ID, summary.Results); err != nil {
		slog.Error("Failed to store results", "run", run.ID, "error", err)
		errs = append(errs, fmt.Errorf("save results: %w", err))
	}

	status := m.RunFinished
	if runErr != nil {
		status = m.RunFailed
	}

	if err := w.store.FinishRun(ctx, run.ID, status, time.Now().UTC()); err != nil {
		slog.Error("Failed to finish run", "run", run.ID, "error", err)
		errs = append(errs, fmt.Errorf("finish run: %w", err))
	}

	return errors.Join(errs...)
}

// flush moves the journaled steps into the store in one transaction.
func (w *workflow) flush(ctx context.Context, journal pkg.FileSpill[m.Step]) error {
	if journal.Len() == 0 {
		return nil
	}

	steps := make([]m.Step, 0, journal.Len())

	err := journal.Range(func(_ uint64, step m.Step) error {
		steps = append(steps, step)
		return nil
	})
	if err != nil {
		slog.Error("Failed to read step journal", "path", journal.Path(), "error", err)
		return fmt.Errorf("read journal: %w", err)
	}

	if err := w.store.SaveSteps(ctx, steps); err != nil {
		slog.Error("Failed to store steps", "count", len(steps), "error", err)
		return fmt.Errorf("save steps: %w", err)
	}

	if err := journal.Reset(); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}

	slog.Debug("Steps flushed", "count", len(steps))

	return nil
}

// View lists the stored runs, or shows the results of one of them.
func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	if err := w.ui.Start(ctx, controller.WithViewMode()); err != nil {
		slog.Error("Failed to start UI", "error", err)
		return err
	}

	defer w.ui.Close(ctx)

	if args.RunID == "" {
		runs, err := w.store.ListRuns(ctx)
		if err != nil {
			slog.Error("Failed to list runs", "error", err)
			return fmt.Errorf("list runs: %w", err)
		}

		return w.ui.DisplayRuns(ctx, runs)
	}

	run, err := w.store.GetRun(ctx, args.RunID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", args.RunID, err)
	}

	results, err := w.store.LoadResults(ctx, run.ID)
	if err != nil {
		slog.Error("Failed to load results", "run", run.ID, "error", err)
		return fmt.Errorf("load results: %w", err)
	}

	w.ui.DisplayRunInfo(ctx, run, len(results))
	w.ui.DisplaySummary(ctx, Aggregate(results))

	return nil
}
