package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "gooze.dev/pkg/grafter/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle    = lipgloss.NewStyle().Faint(true)
	solutionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

const progressWidth = 40

// TUI implements UI using Bubble Tea for interactive progress display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	cfg     StartConfig
	program *tea.Program
	done    chan struct{}
	summary *m.Summary
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the progress program in repair mode. View mode renders
// directly without a program.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cfg = newStartConfig(options)
	t.summary = nil

	if t.cfg.mode != ModeRepair {
		return nil
	}

	t.program = tea.NewProgram(
		newRepairModel(t.cfg),
		tea.WithOutput(t.output),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)
	t.done = make(chan struct{})

	go func(program *tea.Program, done chan struct{}) {
		defer close(done)

		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			slog.Debug("Progress display stopped", "error", err)
		}
	}(t.program, t.done)

	return nil
}

// Wait blocks until the progress program has rendered the summary.
func (t *TUI) Wait(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops the progress program and prints the summary table.
func (t *TUI) Close(_ context.Context) {
	t.mu.Lock()
	program, done, summary := t.program, t.done, t.summary
	t.program, t.done, t.summary = nil, nil, nil
	t.mu.Unlock()

	if program != nil {
		program.Quit()
		<-done
	}

	if summary != nil {
		t.printSummary(*summary)
	}
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

type runInfoMsg struct {
	run      m.Run
	programs int
}

type generationMsg struct {
	gen, total int
}

type stepMsg struct {
	step m.Step
}

type finishedMsg struct{}

// DisplayRunInfo shows the run header.
func (t *TUI) DisplayRunInfo(ctx context.Context, run m.Run, programs int) {
	if ctx.Err() != nil {
		return
	}

	t.mu.Lock()
	running := t.program != nil
	t.mu.Unlock()

	if !running {
		_, _ = fmt.Fprintf(t.output, "%s %s  %s\n", titleStyle.Render("grafter run"), run.ID, labelStyle.Render(string(run.Problem)))
		return
	}

	t.send(runInfoMsg{run: run, programs: programs})
}

// DisplayGeneration advances the generation bar.
func (t *TUI) DisplayGeneration(ctx context.Context, gen, total int) {
	if ctx.Err() != nil {
		return
	}

	t.send(generationMsg{gen: gen, total: total})
}

// DisplayStep advances the step bar.
func (t *TUI) DisplayStep(ctx context.Context, step m.Step) {
	if ctx.Err() != nil {
		return
	}

	t.send(stepMsg{step: step})
}

// DisplaySummary keeps the summary for Close and lets the progress program
// finish.
func (t *TUI) DisplaySummary(_ context.Context, summary m.Summary) {
	t.mu.Lock()
	t.summary = &summary
	running := t.program != nil
	t.mu.Unlock()

	if running {
		t.send(finishedMsg{})
		return
	}

	// View mode has no program to close; print now.
	t.mu.Lock()
	t.summary = nil
	t.mu.Unlock()
	t.printSummary(summary)
}

// DisplayRuns prints the stored runs.
func (t *TUI) DisplayRuns(ctx context.Context, runs []m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(t.output, labelStyle.Render("No runs recorded"))
		return err
	}

	_, err := fmt.Fprintf(t.output, "%s\n%s", titleStyle.Render("Recorded runs"), renderRunsTable(runs))

	return err
}

func (t *TUI) printSummary(summary m.Summary) {
	var b strings.Builder

	b.WriteString("\n" + titleStyle.Render("Repair summary") + "\n")
	b.WriteString(renderSummaryTable(summary))
	b.WriteString(summaryLine(summary) + "\n")

	for _, r := range summary.Results {
		if !r.Solved {
			continue
		}

		if diff := patchDiff(r); diff != "" {
			b.WriteString("\n" + diff)
		}
	}

	_, _ = fmt.Fprint(t.output, b.String())
}

// repairModel is the Bubble Tea model of a running repair.
type repairModel struct {
	run       m.Run
	programs  int
	total     int
	perGen    int
	gen       int
	steps     int
	solutions int
	best      float64
	last      *m.Step
	genBar    progress.Model
	stepBar   progress.Model
	quitting  bool
}

func newRepairModel(cfg StartConfig) repairModel {
	return repairModel{
		total:   cfg.generations,
		perGen:  cfg.population,
		genBar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		stepBar: progress.New(progress.WithSolidFill("63"), progress.WithWidth(progressWidth)),
	}
}

func (rm repairModel) Init() tea.Cmd {
	return nil
}

func (rm repairModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runInfoMsg:
		rm.run = msg.run
		rm.programs = msg.programs
	case generationMsg:
		rm.gen = msg.gen
		rm.total = msg.total
		rm.steps = 0
	case stepMsg:
		rm.steps++

		step := msg.step
		rm.last = &step

		if step.Solution {
			rm.solutions++
		}

		if step.Fitness > rm.best {
			rm.best = step.Fitness
		}
	case finishedMsg:
		rm.quitting = true
		return rm, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			rm.quitting = true
			return rm, tea.Quit
		}
	}

	return rm, nil
}

func (rm repairModel) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s  %s\n\n", titleStyle.Render("grafter"), shortID(rm.run.ID), labelStyle.Render(string(rm.run.Problem)))

	fmt.Fprintf(&b, "%s %s %d/%d\n", labelStyle.Render("generation"), rm.genBar.ViewAs(rm.generationProgress()), rm.gen, rm.total)
	fmt.Fprintf(&b, "%s %s %d/%d\n\n", labelStyle.Render("step      "), rm.stepBar.ViewAs(ratio(rm.steps, rm.perGen)), rm.steps, rm.perGen)

	solutions := fmt.Sprintf("%d", rm.solutions)
	if rm.solutions > 0 {
		solutions = solutionStyle.Render(solutions)
	}

	fmt.Fprintf(&b, "%s %s  %s %.4f\n", labelStyle.Render("solutions"), solutions, labelStyle.Render("best fitness"), rm.best)

	if rm.last != nil {
		fmt.Fprintf(&b, "%s %s x %s -> %.4f%s\n",
			labelStyle.Render("last"), rm.last.Parent1, rm.last.Parent2, rm.last.Fitness, suspect(*rm.last))
	}

	return b.String()
}

func (rm repairModel) generationProgress() float64 {
	if rm.gen == 0 {
		return 0
	}

	return ratio(rm.gen-1, rm.total) + ratio(rm.steps, rm.perGen)/float64(max(1, rm.total))
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}

	return min(1, float64(n)/float64(d))
}
