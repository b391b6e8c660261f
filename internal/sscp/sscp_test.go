package sscp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/parser"
	"module/internal/sscp"
	"module/internal/ssa"
	"module/internal/typecheck"
)

func buildFunc(t *testing.T, src string) *aasm.Function {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, typecheck.Check(prog))
	lowered := aasm.Lower(prog)
	require.Len(t, lowered.Functions, 2)
	return lowered.Functions[0]
}

func TestRunFoldsConstantBinary(t *testing.T) {
	src := `
func f() : int {
	var x : int;
	x = 2 + 3;
	return x;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	ssa.Construct(fn)
	sscp.Run(fn)

	foldedToImm := false
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if ret, ok := ins.(*aasm.Ret); ok && ret.Value != nil {
				if imm, ok := ret.Value.Value.(aasm.Imm); ok {
					assert.Equal(t, int64(5), imm.Val)
					foldedToImm = true
				}
			}
		}
	}
	assert.True(t, foldedToImm, "return of a provably-constant sum should fold to an Imm")
}

func TestRunCollapsesConstantGuardToJump(t *testing.T) {
	src := `
func f() : int {
	var x : int;
	if (true) {
		x = 1;
	} else {
		x = 2;
	}
	return x;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	ssa.Construct(fn)
	sscp.Run(fn)

	sawBr := false
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if _, ok := ins.(*aasm.Br); ok {
				sawBr = true
			}
		}
	}
	assert.False(t, sawBr, "a Br with a concrete bool guard should collapse to a Jump")
}
