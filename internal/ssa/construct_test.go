package ssa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/cfg"
	"module/internal/parser"
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

func TestConstructPlacesPhiAtIfMerge(t *testing.T) {
	src := `
func f(cond : bool) : int {
	var x : int;
	if (cond) {
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

	var phi *aasm.Phi
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if p, ok := ins.(*aasm.Phi); ok {
				phi = p
			}
			// Every Store/Load through a plain Id-addressed local should
			// have been eliminated by promotion.
			if ld, ok := ins.(*aasm.Load); ok {
				_, isID := ld.Ptr.Value.(aasm.Id)
				assert.False(t, isID, "mem2reg should have removed Id-addressed loads")
			}
		}
	}
	require.NotNil(t, phi, "an if/else merge assigning the same local should get a Phi")

	require.Len(t, phi.Bindings, 2)
	vals := map[int64]bool{}
	for _, b := range phi.Bindings {
		imm, ok := b.Value.Value.(aasm.Imm)
		require.True(t, ok, "each predecessor should bind the Phi to the constant it actually assigned")
		vals[imm.Val] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, vals, "the Phi must carry the real 1/2 assignments, not both branches' stale zero value")
}

func TestConstructRemovesStraightLineLocalStores(t *testing.T) {
	src := `
func f() : int {
	var x : int;
	x = 5;
	return x;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	ssa.Construct(fn)
	blocks := cfg.Blocks(fn.Entry)
	assert.NotEmpty(t, blocks)
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if st, ok := ins.(*aasm.Store); ok {
				_, isID := st.Ptr.Value.(aasm.Id)
				assert.False(t, isID)
			}
		}
	}
}
