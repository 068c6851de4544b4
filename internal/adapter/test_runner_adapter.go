package adapter

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// defaultMaxOutput caps the captured stdout of one program run.
const defaultMaxOutput = 1 << 20

// TestRunnerAdapter abstracts building and running candidate programs.
type TestRunnerAdapter interface {
	// BuildProgram compiles the module in workDir into the binary at output.
	// Returns the combined compiler output and any error.
	BuildProgram(ctx context.Context, workDir, output string) (string, error)

	// RunProgram executes binary feeding stdin and returns what it printed
	// on stdout. env is appended to the current environment. A non-zero
	// exit, a crash or ctx expiring is an error.
	RunProgram(ctx context.Context, binary, stdin string, env []string) (string, error)
}

// LocalTestRunnerAdapter provides a concrete implementation using os/exec.
type LocalTestRunnerAdapter struct {
	goBinary  string
	maxOutput int
	waitDelay time.Duration
}

// NewLocalTestRunnerAdapter constructs a LocalTestRunnerAdapter that builds
// with the go binary found on PATH.
func NewLocalTestRunnerAdapter() *LocalTestRunnerAdapter {
	return &LocalTestRunnerAdapter{
		goBinary:  "go",
		maxOutput: defaultMaxOutput,
		waitDelay: time.Second,
	}
}

// BuildProgram runs 'go build' with the workspace and toolchain switching
// disabled so a candidate never reaches the network.
func (a *LocalTestRunnerAdapter) BuildProgram(ctx context.Context, workDir, output string) (string, error) {
	cmd := exec.CommandContext(ctx, a.goBinary, "build", "-o", output, ".")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "GOWORK=off", "GOTOOLCHAIN=local", "CGO_ENABLED=0", "GOFLAGS=-mod=mod")
	cmd.WaitDelay = a.waitDelay

	var out bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	return out.String(), err
}

// RunProgram executes a built candidate.
func (a *LocalTestRunnerAdapter) RunProgram(ctx context.Context, binary, stdin string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.WaitDelay = a.waitDelay

	var stdout bytes.Buffer

	cmd.Stdout = &limitedWriter{w: &stdout, limit: a.maxOutput}
	cmd.Stderr = io.Discard

	err := cmd.Run()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	return stdout.String(), err
}

// limitedWriter drops everything past limit bytes but reports full writes so
// the child process is never blocked on a closed pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return n, nil
	}

	if len(p) > remaining {
		p = p[:remaining]
	}

	written, err := lw.w.Write(p)
	lw.written += written

	if err != nil {
		return written, err
	}

	return n, nil
}
