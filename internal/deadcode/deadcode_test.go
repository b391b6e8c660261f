package deadcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/deadcode"
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

func countBinaries(fn *aasm.Function) int {
	n := 0
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if _, ok := ins.(*aasm.Binary); ok {
				n++
			}
		}
	}
	return n
}

func TestRunDropsUnusedBinary(t *testing.T) {
	src := `
func f() : int {
	var x : int;
	var unused : int;
	x = 1;
	unused = x + 1;
	return x;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	ssa.Construct(fn)
	before := countBinaries(fn)
	deadcode.Run(fn)
	after := countBinaries(fn)
	assert.Greater(t, before, 0)
	assert.Equal(t, 0, after, "the dead `unused` computation should be eliminated")
}

func TestRunKeepsVoidCall(t *testing.T) {
	src := `
func f() {
	println 1;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	deadcode.Run(fn)
	sawCall := false
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if c, ok := ins.(*aasm.Call); ok && c.Id == "println" {
				sawCall = true
			}
		}
	}
	assert.True(t, sawCall, "a void call kept for its side effect must never be removed")
}
