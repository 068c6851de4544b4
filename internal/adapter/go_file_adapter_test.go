package adapter

import (
	"context"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

const instrumentSample = `package main

import (
	"fmt"
	"strings"
)

func main() {
	var n int
	fmt.Scan(&n)
	if n > 10 {
		fmt.Println("big")
	} else if n > 5 {
		fmt.Println("medium")
	} else {
		fmt.Println("small")
	}
	unused := 3
	switch {
	case n < 0:
		fmt.Println("negative")
	}
	for i, v := range []int{1} {
		fmt.Println(n)
	}
}
`

func TestLocalGoFileAdapter_Parse(t *testing.T) {
	adapter := NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	file, err := adapter.Parse(context.Background(), fset, "main.go", []byte(instrumentSample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if file.Name.Name != "main" {
		t.Fatalf("Parse() package = %s, want main", file.Name.Name)
	}
}

func TestLocalGoFileAdapter_Parse_InvalidSource(t *testing.T) {
	adapter := NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	if _, err := adapter.Parse(context.Background(), fset, "broken.go", []byte("package foo\n func")); err == nil {
		t.Fatalf("Parse() expected error for invalid source")
	}
}

func TestLocalGoFileAdapter_Parse_ContextCancellation(t *testing.T) {
	adapter := NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if _, err := adapter.Parse(ctx, fset, "example.go", []byte("package main\n func main() {}")); err == nil {
		t.Fatalf("Parse() expected error due to context cancellation")
	}
}

func TestLocalGoFileAdapter_Instrument(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	out, err := adapter.Instrument("main.go", []byte(instrumentSample))
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	got := string(out)

	if _, err := parser.ParseFile(token.NewFileSet(), "instrumented.go", out, 0); err != nil {
		t.Fatalf("Instrument() produced invalid Go: %v\n%s", err, got)
	}

	for _, want := range []string{
		"grafterTrace(9)",                // var n int
		"grafterTrace(11)",               // if n > 10
		"grafterTraceHit(13) && (n > 5)", // else if
		"grafterTrace(16)",               // else body
		"grafterTrace(20)",               // case clause
		"grafterTrace(23)",               // for range
		"_ = unused",
		"_ = i",
		"_ = v",
		`grafterOS "os"`,
		"func grafterTrace(line int)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Instrument() output missing %q\n%s", want, got)
		}
	}

	if strings.Contains(got, "\t\"strings\"") {
		t.Errorf("Instrument() kept unused strings import\n%s", got)
	}
}

func TestLocalGoFileAdapter_Instrument_SwitchBodyHoldsOnlyClauses(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	src := "package main\n\nfunc main() {\n\tx := 1\n\tswitch x {\n\tcase 1:\n\t\tx++\n\tdefault:\n\t}\n}\n"

	out, err := adapter.Instrument("main.go", []byte(src))
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	if _, err := parser.ParseFile(token.NewFileSet(), "instrumented.go", out, 0); err != nil {
		t.Fatalf("Instrument() produced invalid Go: %v\n%s", err, out)
	}

	if !strings.Contains(string(out), "grafterTrace(6)") || !strings.Contains(string(out), "grafterTrace(8)") {
		t.Fatalf("Instrument() did not trace both clauses\n%s", out)
	}
}

func TestLocalGoFileAdapter_Instrument_InvalidSource(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	if _, err := adapter.Instrument("broken.go", []byte("package main\nfunc main() {")); err == nil {
		t.Fatalf("Instrument() expected error for invalid source")
	}
}
