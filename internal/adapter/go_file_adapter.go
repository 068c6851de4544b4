package adapter

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"
)

// Identifiers introduced into instrumented candidates. Subject programs must
// not declare names with the grafter prefix.
const (
	traceFunc    = "grafterTrace"
	traceHitFunc = "grafterTraceHit"
)

var traceImports = [...][2]string{
	{"grafterOS", "os"},
	{"grafterStrconv", "strconv"},
	{"grafterSync", "sync"},
}

// traceRuntime is appended to every instrumented file. Each line is written
// once, unbuffered, so the trace survives os.Exit and panics.
const traceRuntime = `
var (
	grafterMu   grafterSync.Mutex
	grafterSeen = map[int]bool{}
	grafterOut  *grafterOS.File
)

func grafterTrace(line int) {
	grafterMu.Lock()
	defer grafterMu.Unlock()

	if grafterSeen[line] {
		return
	}

	grafterSeen[line] = true

	if grafterOut == nil {
		path := grafterOS.Getenv("GRAFTER_TRACE_FILE")
		if path == "" {
			return
		}

		f, err := grafterOS.OpenFile(path, grafterOS.O_CREATE|grafterOS.O_WRONLY|grafterOS.O_APPEND, 0o600)
		if err != nil {
			return
		}

		grafterOut = f
	}

	_, _ = grafterOut.WriteString(grafterStrconv.Itoa(line) + "\n")
}

func grafterTraceHit(line int) bool {
	grafterTrace(line)
	return true
}
`

// GoFileAdapter encapsulates Go-specific parsing and instrumentation so the
// domain layer can treat candidate sources as opaque text.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and source bytes.
	Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// Instrument rewrites a candidate so that running it appends every
	// executed statement line, once, to the file named by GRAFTER_TRACE_FILE.
	// Lines refer to src, not to the returned source.
	Instrument(filename string, src []byte) ([]byte, error)
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parser.ParseFile(fileSet, filename, src, 0)
}

// Instrument inserts trace calls before statements, marks else-if conditions
// and adds blank uses of local variables and drops unused imports so that
// candidates assembled from foreign statements still compile.
func (a *LocalGoFileAdapter) Instrument(filename string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()

	file, err := a.Parse(context.Background(), fset, filename, src)
	if err != nil {
		return nil, err
	}

	in := instrumenter{fset: fset}
	astutil.Apply(file, in.pre, in.post)

	pruneImports(fset, file)

	for _, imp := range traceImports {
		astutil.AddNamedImport(fset, file, imp[0], imp[1])
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("render instrumented %s: %w", filename, err)
	}

	buf.WriteString(traceRuntime)

	return buf.Bytes(), nil
}

type instrumenter struct {
	fset *token.FileSet
}

func (in instrumenter) line(n ast.Node) int {
	if n == nil || !n.Pos().IsValid() {
		return 0
	}

	return in.fset.Position(n.Pos()).Line
}

func (in instrumenter) pre(c *astutil.Cursor) bool {
	stmt, ok := c.Node().(ast.Stmt)
	if !ok {
		return true
	}

	// Synthetic statements carry no position.
	if !stmt.Pos().IsValid() {
		return false
	}

	if s, ok := stmt.(*ast.IfStmt); ok {
		if elif, ok := s.Else.(*ast.IfStmt); ok {
			elif.Cond = &ast.BinaryExpr{
				X:  call(traceHitFunc, in.line(elif)),
				Op: token.LAND,
				Y:  &ast.ParenExpr{X: elif.Cond},
			}
		}
	}

	if !inList(c) {
		return true
	}

	switch s := stmt.(type) {
	case *ast.CaseClause, *ast.CommClause:
		return true
	case *ast.LabeledStmt:
		c.InsertBefore(traceStmt(in.line(s)))

		if inner := in.line(s.Stmt); inner != in.line(s) && inner > 0 {
			c.InsertBefore(traceStmt(inner))
		}
	default:
		c.InsertBefore(traceStmt(in.line(s)))
	}

	for _, name := range declared(stmt) {
		c.InsertAfter(use(name))
	}

	return true
}

func (in instrumenter) post(c *astutil.Cursor) bool {
	switch s := c.Node().(type) {
	case *ast.CaseClause:
		s.Body = prepend(s.Body, in.line(s), nil)
	case *ast.CommClause:
		s.Body = prepend(s.Body, in.line(s), declared(s.Comm))
	case *ast.TypeSwitchStmt:
		if assign, ok := s.Assign.(*ast.AssignStmt); ok && assign.Tok == token.DEFINE {
			names := identNames(assign.Lhs)
			for _, clause := range s.Body.List {
				if cc, ok := clause.(*ast.CaseClause); ok {
					cc.Body = prepend(cc.Body, 0, names)
				}
			}
		}
	case *ast.RangeStmt:
		if s.Tok == token.DEFINE {
			s.Body.List = prepend(s.Body.List, 0, identNames([]ast.Expr{s.Key, s.Value}))
		}
	case *ast.IfStmt:
		s.Body.List = prepend(s.Body.List, 0, declared(s.Init))
	}

	return true
}

// inList reports whether the cursor sits in a statement list the trace
// calls may be inserted into. Switch and select bodies only hold clauses.
func inList(c *astutil.Cursor) bool {
	if c.Index() < 0 {
		return false
	}

	switch c.Parent().(type) {
	case *ast.BlockStmt, *ast.CaseClause, *ast.CommClause:
		return true
	default:
		return false
	}
}

// declared returns the local variables introduced by s.
func declared(s ast.Stmt) []string {
	switch s := s.(type) {
	case *ast.AssignStmt:
		if s.Tok == token.DEFINE {
			return identNames(s.Lhs)
		}
	case *ast.DeclStmt:
		gen, ok := s.Decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			return nil
		}

		var names []string

		for _, spec := range gen.Specs {
			if vs, ok := spec.(*ast.ValueSpec); ok {
				for _, id := range vs.Names {
					names = append(names, id.Name)
				}
			}
		}

		return withoutBlank(names)
	}

	return nil
}

func identNames(exprs []ast.Expr) []string {
	var names []string

	for _, e := range exprs {
		if id, ok := e.(*ast.Ident); ok {
			names = append(names, id.Name)
		}
	}

	return withoutBlank(names)
}

func withoutBlank(names []string) []string {
	out := names[:0]

	for _, name := range names {
		if name != "_" {
			out = append(out, name)
		}
	}

	return out
}

// prepend puts a trace of line (when positive) and blank uses of names in
// front of list.
func prepend(list []ast.Stmt, line int, names []string) []ast.Stmt {
	head := make([]ast.Stmt, 0, len(names)+1)
	if line > 0 {
		head = append(head, traceStmt(line))
	}

	for _, name := range names {
		head = append(head, use(name))
	}

	if len(head) == 0 {
		return list
	}

	return append(head, list...)
}

// pruneImports deletes imports no selector refers to.
func pruneImports(fset *token.FileSet, file *ast.File) {
	type imported struct{ name, path string }

	var unused []imported

	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil || astutil.UsesImport(file, path) {
			continue
		}

		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		}

		unused = append(unused, imported{name: name, path: path})
	}

	for _, imp := range unused {
		astutil.DeleteNamedImport(fset, file, imp.name, imp.path)
	}
}

func call(fn string, line int) *ast.CallExpr {
	return &ast.CallExpr{
		Fun:  ast.NewIdent(fn),
		Args: []ast.Expr{&ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(line)}},
	}
}

func traceStmt(line int) ast.Stmt {
	return &ast.ExprStmt{X: call(traceFunc, line)}
}

func use(name string) ast.Stmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{ast.NewIdent("_")},
		Tok: token.ASSIGN,
		Rhs: []ast.Expr{ast.NewIdent(name)},
	}
}
