package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	m "gooze.dev/pkg/grafter/internal/model"
)

const (
	// SuiteFile is the test suite file of a problem directory.
	SuiteFile = "tests.yaml"
	// ProgramsDir holds the buggy programs of a problem directory.
	ProgramsDir = "buggy"
)

// ErrDuplicateTestID is returned when two test cases share an id.
var ErrDuplicateTestID = errors.New("duplicate test id")

// ProblemAdapter loads a problem directory: its test suite and the buggy
// programs under repair.
type ProblemAdapter interface {
	Load(ctx context.Context, root m.Path) (m.Problem, error)
}

// LocalProblemAdapter reads problems through a SourceFSAdapter.
type LocalProblemAdapter struct {
	fs SourceFSAdapter
}

// NewLocalProblemAdapter constructs a LocalProblemAdapter.
func NewLocalProblemAdapter(fs SourceFSAdapter) *LocalProblemAdapter {
	return &LocalProblemAdapter{fs: fs}
}

type suiteFile struct {
	Tests []struct {
		ID     *int   `yaml:"id"`
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
	} `yaml:"tests"`
}

// Load reads root/tests.yaml and every root/buggy/*.go file. Programs are
// sorted by id.
func (a *LocalProblemAdapter) Load(ctx context.Context, root m.Path) (m.Problem, error) {
	suite, err := a.loadSuite(ctx, a.fs.JoinPath(ctx, string(root), SuiteFile))
	if err != nil {
		return m.Problem{}, err
	}

	programs, err := a.loadPrograms(ctx, a.fs.JoinPath(ctx, string(root), ProgramsDir))
	if err != nil {
		return m.Problem{}, err
	}

	slog.Debug("Problem loaded", "root", root, "tests", suite.Len(), "programs", len(programs))

	return m.Problem{Root: root, Suite: suite, Programs: programs}, nil
}

func (a *LocalProblemAdapter) loadSuite(ctx context.Context, path m.Path) (m.Suite, error) {
	data, err := a.fs.ReadFile(ctx, path)
	if err != nil {
		slog.Error("Failed to read test suite", "path", path, "error", err)
		return m.Suite{}, fmt.Errorf("failed to read test suite: %w", err)
	}

	return ParseSuite(data)
}

// ParseSuite decodes a tests.yaml document. Cases without an id are numbered
// by their 1-based position.
func ParseSuite(data []byte) (m.Suite, error) {
	var doc suiteFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return m.Suite{}, fmt.Errorf("failed to parse test suite: %w", err)
	}

	suite := m.Suite{Cases: make([]m.TestCase, 0, len(doc.Tests))}
	seen := make(map[int]struct{}, len(doc.Tests))

	for i, tc := range doc.Tests {
		id := i + 1
		if tc.ID != nil {
			id = *tc.ID
		}

		if _, dup := seen[id]; dup {
			return m.Suite{}, fmt.Errorf("%w: %d", ErrDuplicateTestID, id)
		}

		seen[id] = struct{}{}
		suite.Cases = append(suite.Cases, m.TestCase{ID: id, Input: tc.Input, Output: tc.Output})
	}

	return suite, nil
}

func (a *LocalProblemAdapter) loadPrograms(ctx context.Context, dir m.Path) ([]m.Program, error) {
	var programs []m.Program

	err := a.fs.Walk(ctx, dir, false, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".go" {
			return nil
		}

		program, err := a.loadProgram(ctx, m.Path(path))
		if err != nil {
			return err
		}

		programs = append(programs, program)

		return nil
	})
	if err != nil {
		slog.Error("Failed to load programs", "dir", dir, "error", err)
		return nil, fmt.Errorf("failed to load programs: %w", err)
	}

	sort.Slice(programs, func(i, j int) bool {
		return programs[i].ID < programs[j].ID
	})

	return programs, nil
}

func (a *LocalProblemAdapter) loadProgram(ctx context.Context, path m.Path) (m.Program, error) {
	content, err := a.fs.ReadFile(ctx, path)
	if err != nil {
		return m.Program{}, err
	}

	hash, err := a.fs.HashFile(ctx, path)
	if err != nil {
		return m.Program{}, err
	}

	id := strings.TrimSuffix(filepath.Base(string(path)), ".go")

	return m.Program{
		ID:     id,
		File:   m.File{Path: path, Hash: hash},
		Source: string(content),
	}, nil
}
