package domain

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"log/slog"
	"time"

	"gooze.dev/pkg/grafter/internal/domain/align"
	"gooze.dev/pkg/grafter/internal/domain/faultloc"
	"gooze.dev/pkg/grafter/internal/domain/patch"
	m "gooze.dev/pkg/grafter/internal/model"
	"gooze.dev/pkg/grafter/internal/syntax"
)

// Configuration errors reported before the first generation.
var (
	ErrEmptySuite         = errors.New("test suite is empty")
	ErrPopulationTooLarge = errors.New("population is larger than the number of programs")
	ErrInvalidPopulation  = errors.New("population must be positive")
	ErrInvalidGenerations = errors.New("generations must be positive")
	ErrNoPrograms         = errors.New("problem has no programs")
)

// EngineConfig parameterizes one run of the genetic loop.
type EngineConfig struct {
	Generations int
	Population  int
	Formula     faultloc.Formula
	Limits      Limits
}

// StepHook observes every finished step. Returning an error stops the run.
type StepHook func(ctx context.Context, step m.Step) error

// GenerationHook observes generation boundaries. done is false when the
// generation starts and true once its population has been replaced.
type GenerationHook func(ctx context.Context, gen int, done bool) error

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithStepHook installs a per-step observer.
func WithStepHook(hook StepHook) EngineOption {
	return func(e *Engine) {
		e.onStep = hook
	}
}

// WithGenerationHook installs a generation boundary observer.
func WithGenerationHook(hook GenerationHook) EngineOption {
	return func(e *Engine) {
		e.onGeneration = hook
	}
}

// WithMetrics records progress on mt.
func WithMetrics(mt *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = mt
	}
}

// Engine evolves candidate repairs generation by generation.
type Engine struct {
	orchestrator Orchestrator
	rng          *Random
	cache        *Cache
	harmonizer   Harmonizer
	metrics      *Metrics

	onStep       StepHook
	onGeneration GenerationHook

	cfg   EngineConfig
	suite m.Suite
}

// NewEngine wires an engine to its execution collaborator and random source.
func NewEngine(orchestrator Orchestrator, rng *Random, opts ...EngineOption) *Engine {
	e := &Engine{
		orchestrator: orchestrator,
		rng:          rng,
		cache:        NewCache(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Validate checks cfg against problem without running anything.
func Validate(problem m.Problem, cfg EngineConfig) error {
	switch {
	case problem.Suite.Len() == 0:
		return ErrEmptySuite
	case len(problem.Programs) == 0:
		return ErrNoPrograms
	case cfg.Population <= 0:
		return ErrInvalidPopulation
	case cfg.Population > len(problem.Programs):
		return fmt.Errorf("%w: %d > %d", ErrPopulationTooLarge, cfg.Population, len(problem.Programs))
	case cfg.Generations <= 0:
		return ErrInvalidGenerations
	}

	if _, err := faultloc.ParseFormula(string(cfg.Formula)); err != nil {
		return err
	}

	return nil
}

// Run evolves the problem's programs and returns every all-passing source
// found, per lineage. Solutions found before an error are returned with it.
func (e *Engine) Run(ctx context.Context, problem m.Problem, cfg EngineConfig) (m.Solutions, error) {
	if err := Validate(problem, cfg); err != nil {
		return nil, err
	}

	e.cfg = cfg
	e.suite = problem.Suite

	solutions := m.Solutions{}

	pop, err := e.population(ctx, problem.Programs)
	if err != nil {
		return solutions, err
	}

	for gen := 1; gen <= cfg.Generations; gen++ {
		e.metrics.generationStarted(gen)

		if err := e.generationHook(ctx, gen, false); err != nil {
			return solutions, err
		}

		descendants := make(m.Population, 0, len(pop))

		for _, member := range pop {
			if err := ctx.Err(); err != nil {
				return solutions, fmt.Errorf("generation %d: %w", gen, err)
			}

			out, err := e.step(ctx, gen, member, pop)
			if err != nil {
				return solutions, fmt.Errorf("generation %d, candidate %s: %w", gen, member.ID, err)
			}

			if out.solved {
				lineage := member.ID.Lineage
				solutions[lineage] = append(solutions[lineage], m.Solution{Generation: gen, Source: out.solution})
				e.metrics.solutionFound()
			}

			descendants = append(descendants, out.survivor)

			if e.onStep != nil {
				if err := e.onStep(ctx, out.step); err != nil {
					return solutions, err
				}
			}
		}

		e.cache.Evict(pop.IDs()...)
		e.metrics.cacheSize(e.cache.Len())
		pop = descendants

		if err := e.generationHook(ctx, gen, true); err != nil {
			return solutions, err
		}
	}

	return solutions, nil
}

// population samples the initial members, normalizes their sources and
// evaluates them as generation 0.
func (e *Engine) population(ctx context.Context, programs []m.Program) (m.Population, error) {
	chosen := Sample(e.rng, programs, e.cfg.Population)
	pop := make(m.Population, 0, len(chosen))

	for _, program := range chosen {
		source, err := syntax.Normalize(program.ID+".go", program.Source)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", program.ID, err)
		}

		member := m.Member{ID: m.CandidateID{Lineage: program.ID}, Source: source}
		if _, err := e.evaluate(ctx, member.ID, member.Source); err != nil {
			return nil, err
		}

		pop = append(pop, member)
	}

	slog.Info("Initial population evaluated", "size", len(pop))

	return pop, nil
}

type outcome struct {
	survivor m.Member
	step     m.Step
	solved   bool
	solution string
}

func (e *Engine) step(ctx context.Context, gen int, p1 m.Member, pop m.Population) (outcome, error) {
	start := time.Now()
	childID := m.CandidateID{Lineage: p1.ID.Lineage, Generation: gen}

	parent, err := e.evaluate(ctx, p1.ID, p1.Source)
	if err != nil {
		return outcome{}, err
	}

	mate, err := e.selection(ctx, parent, pop)
	if err != nil {
		return outcome{}, err
	}

	step := m.Step{
		Generation:    gen,
		Parent1:       parent.ID,
		Parent1Source: parent.Source,
		Parent2:       mate.ID,
		Parent2Source: mate.Source,
	}

	childSource, err := e.modification(parent, mate, &step)
	if err != nil {
		return outcome{}, err
	}

	baseline, err := e.evaluate(ctx, childID.Previous(), parent.Source)
	if err != nil {
		return outcome{}, err
	}

	parentScore := Fitness(e.suite, baseline, parent)

	child, err := e.evaluate(ctx, childID, childSource)
	if err != nil {
		return outcome{}, err
	}

	step.Fitness = Fitness(e.suite, parent, child)
	step.Solution = e.suite.IsAllPass(child.Results)
	step.Survivor = childID

	out := outcome{survivor: m.Member{ID: childID, Source: childSource}}
	if step.Solution {
		out.solved, out.solution = true, childSource
	}

	if parentScore > step.Fitness {
		out.survivor.Source = baseline.Source
		step.Survivor = baseline.ID

		kept, err := e.reevaluate(ctx, childID, baseline.Source)
		if err != nil {
			return outcome{}, err
		}

		if !out.solved && e.suite.IsAllPass(kept.Results) {
			out.solved, out.solution = true, kept.Source
		}
	}

	step.Duration = time.Since(start)
	e.metrics.stepCompleted(step.Duration, step.Fitness)

	slog.Debug("Step finished",
		"generation", gen,
		"parent", parent.ID,
		"mate", mate.ID,
		"fitness", step.Fitness,
		"parentFitness", parentScore,
		"solution", step.Solution,
	)

	out.step = step

	return out, nil
}

// selection runs a tournament over half the population, excluding p1. Ties
// are broken by a coin flip; when nothing qualifies p1 mates with itself.
func (e *Engine) selection(ctx context.Context, p1 *Record, pop m.Population) (*Record, error) {
	var (
		mate *Record
		best float64
	)

	for _, member := range Sample(e.rng, pop, len(pop)/2) {
		if member.ID == p1.ID {
			continue
		}

		candidate, err := e.evaluate(ctx, member.ID, member.Source)
		if err != nil {
			return nil, err
		}

		score := Fitness(e.suite, p1, candidate)

		switch {
		case score > best:
			best = score
			mate = candidate
		case score == best:
			if mate == nil || e.rng.Coin() {
				mate = candidate
			}
		}
	}

	if mate == nil {
		return p1, nil
	}

	return mate, nil
}

// modification grafts the mate's executed statements onto the parent along
// one test's trace and renders the child.
func (e *Engine) modification(parent, mate *Record, step *m.Step) (string, error) {
	fset := token.NewFileSet()

	t1, err := syntax.Parse(fset, "parent.go", []byte(parent.Source))
	if err != nil {
		slog.Debug("Parent does not parse, child is a copy", "parent", parent.ID, "error", err)
		step.Patch = parent.Source

		return parent.Source, nil
	}

	t2, err := syntax.Parse(fset, "mate.go", []byte(mate.Source))
	if err != nil {
		slog.Debug("Mate does not parse, child is a copy", "mate", mate.ID, "error", err)
		step.Patch = parent.Source

		return parent.Source, nil
	}

	i1, i2 := syntax.NewIndex(t1), syntax.NewIndex(t2)

	names := e.harmonizer.Align(i1, i2)
	e.harmonizer.Rename(t2.File, names)
	step.Names = names

	testID := e.chooseTest(parent)
	step.TestCase = testID
	step.TestCaseText = e.suite.Render(testID)

	trace1 := parent.Traces[testID].Dedupe()
	trace2 := mate.Traces[testID].Dedupe()
	step.Parent1Trace = trace1
	step.Parent2Trace = trace2

	scores, err := faultloc.Compute(e.cfg.Formula, parent.Results, parent.Traces)
	if err != nil {
		return "", err
	}

	step.Suspicious = scores.Ranked(0)
	suspicious := scores.Set(0)

	restricted := make([]int, 0, len(trace1))
	for _, line := range trace1 {
		if _, ok := suspicious[line]; ok {
			restricted = append(restricted, line)
		}
	}

	crossover := align.Crossover(i1, restricted, i2, trace2)
	step.Crossover = crossover.Entries()

	crossed, err := patch.Patch(t1, crossover)
	if err != nil {
		return "", fmt.Errorf("crossover: %w", err)
	}

	t1, err = syntax.Parse(fset, "crossover.go", []byte(crossed))
	if err != nil {
		slog.Debug("Crossover output does not parse", "parent", parent.ID, "error", err)
		step.Patch = crossed

		return crossed, nil
	}

	mutation := align.Mutation(syntax.NewIndex(t1), restricted, i2, trace2)
	step.Mutation = mutation.Entries()

	child, err := patch.Patch(t1, mutation)
	if err != nil {
		return "", fmt.Errorf("mutation: %w", err)
	}

	step.Patch = child

	normalized, err := syntax.Normalize("child.go", child)
	if err != nil {
		slog.Debug("Child does not parse", "parent", parent.ID, "error", err)
		return child, nil
	}

	return normalized, nil
}

// chooseTest picks a failing test of rec at random, or any test when all pass.
func (e *Engine) chooseTest(rec *Record) int {
	if _, failed := e.suite.Split(rec.Results); len(failed) > 0 {
		return Choice(e.rng, failed)
	}

	return Choice(e.rng, e.suite.IDs())
}

func (e *Engine) evaluate(ctx context.Context, id m.CandidateID, source string) (*Record, error) {
	if rec, ok := e.cache.Get(id); ok {
		return rec, nil
	}

	return e.reevaluate(ctx, id, source)
}

func (e *Engine) reevaluate(ctx context.Context, id m.CandidateID, source string) (*Record, error) {
	exec, err := e.orchestrator.Execute(ctx, Job{ID: id, Source: source, Suite: e.suite, Limits: e.cfg.Limits})
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", id, err)
	}

	exec.ID = id
	exec.Source = source

	rec := NewRecord(exec)
	e.cache.Put(rec)
	e.metrics.candidateEvaluated()
	e.metrics.cacheSize(e.cache.Len())

	return rec, nil
}

func (e *Engine) generationHook(ctx context.Context, gen int, done bool) error {
	if e.onGeneration == nil {
		return nil
	}

	return e.onGeneration(ctx, gen, done)
}
