package adapter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	m "gooze.dev/pkg/grafter/internal/model"
)

func TestParseSuite(t *testing.T) {
	t.Run("assigns positional ids", func(t *testing.T) {
		suite, err := ParseSuite([]byte("tests:\n  - input: \"1 2\\n\"\n    output: \"3\\n\"\n  - id: 7\n    input: \"\"\n    output: \"0\"\n"))
		if err != nil {
			t.Fatalf("ParseSuite() error = %v", err)
		}

		want := []m.TestCase{{ID: 1, Input: "1 2\n", Output: "3\n"}, {ID: 7, Input: "", Output: "0"}}
		if len(suite.Cases) != len(want) {
			t.Fatalf("ParseSuite() = %v, want %v", suite.Cases, want)
		}

		for i := range want {
			if suite.Cases[i] != want[i] {
				t.Fatalf("case %d = %+v, want %+v", i, suite.Cases[i], want[i])
			}
		}
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := ParseSuite([]byte("tests:\n  - id: 1\n  - id: 1\n"))
		if !errors.Is(err, ErrDuplicateTestID) {
			t.Fatalf("ParseSuite() error = %v, want ErrDuplicateTestID", err)
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		if _, err := ParseSuite([]byte("tests: [")); err == nil {
			t.Fatalf("ParseSuite() expected error")
		}
	})
}

func TestLocalProblemAdapter_Load(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, SuiteFile), "tests:\n  - input: \"1\"\n    output: \"1\"\n")

	buggy := filepath.Join(root, ProgramsDir)
	mustMkdir(t, buggy)
	writeTestFile(t, filepath.Join(buggy, "b.go"), "package main\n\nfunc main() {}\n")
	writeTestFile(t, filepath.Join(buggy, "a.go"), "package main\n\nfunc main() {}\n")
	writeTestFile(t, filepath.Join(buggy, "notes.txt"), "ignored")
	mustMkdir(t, filepath.Join(buggy, "nested"))
	writeTestFile(t, filepath.Join(buggy, "nested", "c.go"), "package main\n")

	problem, err := NewLocalProblemAdapter(NewLocalSourceFSAdapter()).Load(context.Background(), m.Path(root))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if problem.Suite.Len() != 1 {
		t.Fatalf("Load() suite size = %d, want 1", problem.Suite.Len())
	}

	if len(problem.Programs) != 2 {
		t.Fatalf("Load() programs = %d, want 2", len(problem.Programs))
	}

	if problem.Programs[0].ID != "a" || problem.Programs[1].ID != "b" {
		t.Fatalf("Load() program order = %s, %s, want a, b", problem.Programs[0].ID, problem.Programs[1].ID)
	}

	if problem.Programs[0].File.Hash == "" {
		t.Fatalf("Load() did not hash program files")
	}
}

func TestLocalProblemAdapter_Load_MissingSuite(t *testing.T) {
	_, err := NewLocalProblemAdapter(NewLocalSourceFSAdapter()).Load(context.Background(), m.Path(t.TempDir()))
	if err == nil {
		t.Fatalf("Load() expected error for missing tests.yaml")
	}
}
