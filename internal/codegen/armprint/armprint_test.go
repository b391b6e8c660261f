package armprint_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/codegen/armprint"
	"module/internal/parser"
	"module/internal/ssa"
	"module/internal/typecheck"
)

func lowerSrc(t *testing.T, src string) *aasm.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, typecheck.Check(prog))
	return aasm.Lower(prog)
}

func TestPrintEmitsCommAndGlobalAddressing(t *testing.T) {
	src := `
var counter : int;
func bump() {
	counter = counter + 1;
}
func main() : int {
	return 0;
}
`
	out := armprint.Print(lowerSrc(t, src))

	assert.Contains(t, out, "\t.comm\tcounter, 8, 8\n")
	assert.Contains(t, out, ".global bump\nbump:\n")
	assert.Contains(t, out, "\tadrp\tx9, counter\n")
	assert.Contains(t, out, "\tadd\tx9, x9, :lo12:counter\n")
}

func TestPrintLocalUsesFramePointerAddress(t *testing.T) {
	src := `
func f(n : int) : int {
	var x : int;
	x = n;
	return x;
}
func main() : int {
	return 0;
}
`
	out := armprint.Print(lowerSrc(t, src))

	assert.Contains(t, out, "\tstp\tfp, lr, [sp, #-16]!\n")
	assert.Contains(t, out, "\tadd\tx10, fp, #")
	assert.Contains(t, out, "\tret\n")
}

func TestPrintEmitsPrologueAndEpilogueForEveryFunction(t *testing.T) {
	src := `
func a() {
	println 1;
}
func b() : int {
	return 2;
}
func main() : int {
	return 0;
}
`
	out := armprint.Print(lowerSrc(t, src))

	assert.Contains(t, out, ".global a\na:\n")
	assert.Contains(t, out, ".global b\nb:\n")
	assert.Contains(t, out, "\tbl\tprintln\n")
	assert.Contains(t, out, "\tmov\tx9, #2\n")
}

func TestPrintStoresIncomingRegisterForSSAPromotedParameter(t *testing.T) {
	src := `
func addOne(n : int) : int {
	return n + 1;
}
func main() : int {
	return 0;
}
`
	lowered := lowerSrc(t, src)
	require.Len(t, lowered.Functions, 2)
	fn := lowered.Functions[0]
	ssa.Construct(fn)
	require.Contains(t, fn.ParamVars, "n")

	out := armprint.Print(lowered)

	// The prologue must store the incoming x0 both into the parameter's
	// (now-unused) Id-addressed slot and into its own SSA Var slot, or
	// the later `add` reads an uninitialized stack slot.
	assert.GreaterOrEqual(t, strings.Count(out, "\tstr\tx0, [fp, #"), 2)
}
