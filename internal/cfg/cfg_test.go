package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/ast"
	"module/internal/types"
)

func TestBuildFunctionStraightLine(t *testing.T) {
	fn := &ast.Function{
		Id:         "f",
		ReturnType: types.VoidT,
		Body: []ast.Stmt{
			&ast.Print{Expr: &ast.IntLit{Value: 1}},
			&ast.Return{},
		},
	}
	entry := BuildFunction(fn)
	blocks := Blocks(entry)
	require.Len(t, blocks, 2)
	assert.Equal(t, Basic, blocks[0].Kind)
	assert.Equal(t, Return, blocks[1].Kind)
}

func TestBuildFunctionLoopBackEdge(t *testing.T) {
	fn := &ast.Function{
		Id:         "f",
		ReturnType: types.VoidT,
		Body: []ast.Stmt{
			&ast.Loop{
				Guard: &ast.BoolLit{Value: true},
				Body:  []ast.Stmt{&ast.Print{Expr: &ast.IntLit{Value: 1}}},
			},
			&ast.Return{},
		},
	}
	entry := BuildFunction(fn)
	assert.Equal(t, Conditional, entry.Kind)
	// The loop body's own block falls through back to the guard.
	assert.Equal(t, entry, entry.True.Next)
}

func TestReturnsShareOneSink(t *testing.T) {
	fn := &ast.Function{
		Id:         "f",
		ReturnType: types.IntT,
		LocalEnv:   ast.Environment{},
		Body: []ast.Stmt{
			&ast.Conditional{
				Guard: &ast.BoolLit{Value: true},
				Then:  []ast.Stmt{&ast.Return{Expr: &ast.IntLit{Value: 1}}},
				Else:  []ast.Stmt{&ast.Return{Expr: &ast.IntLit{Value: 2}}},
			},
		},
	}
	entry := BuildFunction(fn)
	require.Equal(t, Conditional, entry.Kind)
	assert.Same(t, entry.True.Next, entry.False.Next, "every return should jump to the same shared sink")
	assert.Equal(t, Return, entry.True.Next.Kind)
}

func TestEnumerateIsStableOverTraverse(t *testing.T) {
	fn := &ast.Function{
		Id:         "f",
		ReturnType: types.VoidT,
		Body:       []ast.Stmt{&ast.Return{}},
	}
	entry := BuildFunction(fn)
	labels := Enumerate(entry)
	assert.Equal(t, 0, labels[entry])
}
