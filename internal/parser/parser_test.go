package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/ast"
	"module/internal/types"
)

func TestParseStructGlobalAndFunc(t *testing.T) {
	src := `
struct Pair {
	var left : int;
	var right : int;
}

var total : int;

func sum(a : int, b : int) : int {
	var tmp : int;
	tmp = a + b;
	return tmp;
}
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Structs, 1)
	assert.Equal(t, "Pair", prog.Structs[0].Id)
	require.Len(t, prog.Structs[0].Fields, 2)

	require.Len(t, prog.Globals, 1)
	assert.Equal(t, "total", prog.Globals[0].Id)
	assert.Equal(t, types.IntT, prog.Globals[0].Type)

	require.Len(t, prog.Functions, 1)
	fn := prog.Functions[0]
	assert.Equal(t, "sum", fn.Id)
	assert.Equal(t, types.IntT, fn.ReturnType)
	require.Len(t, fn.Parameters, 2)
	require.Len(t, fn.Declarations, 1)
	require.Len(t, fn.Body, 2)
}

func TestParseReadAssignment(t *testing.T) {
	src := `
func main() {
	var x : int;
	x = read;
	println x;
}
`
	prog, err := Parse(src)
	require.NoError(t, err)
	fn := prog.Functions[0]
	assign, ok := fn.Body[0].(*ast.AssignStmt)
	require.True(t, ok)
	_, ok = assign.Source.(*ast.Read)
	assert.True(t, ok, "expected read as the assignment source")
}

func TestParseExpressionPrecedence(t *testing.T) {
	// a + b * c should parse as a + (b * c): Binary{Add, a, Binary{Mul, b, c}}
	src := `
func f() : int {
	return 1 + 2 * 3;
}
`
	prog, err := Parse(src)
	require.NoError(t, err)
	ret := prog.Functions[0].Body[0].(*ast.Return)
	top, ok := ret.Expr.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.Add, top.Op)
	right, ok := top.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.Mul, right.Op)
}

func TestParseInvocationVsAssignment(t *testing.T) {
	src := `
func f() {
	g();
	x = 1;
}
func g() {}
`
	prog, err := Parse(src)
	require.NoError(t, err)
	_, ok := prog.Functions[0].Body[0].(*ast.InvocationStmt)
	assert.True(t, ok)
	_, ok = prog.Functions[0].Body[1].(*ast.AssignStmt)
	assert.True(t, ok)
}

func TestParseErrorReportsLine(t *testing.T) {
	src := "func f( {\n}\n"
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1:")
}

func TestLexerTokensAndKeywords(t *testing.T) {
	toks, err := tokenizeAll("if x <= 10 { println x; }")
	require.NoError(t, err)
	var kinds []tokenKind
	for _, tk := range toks {
		kinds = append(kinds, tk.kind)
	}
	assert.Equal(t, []tokenKind{
		tIf, tIdent, tLe, tInt, tLBrace, tPrintLn, tIdent, tSemi, tRBrace, tEOF,
	}, kinds)
}
