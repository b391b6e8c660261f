package llvmprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/codegen/llvmprint"
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

func TestPrintEmitsFunctionDefinitionAndGlobal(t *testing.T) {
	src := `
var counter : int;
func bump(n : int) : int {
	counter = counter + n;
	return counter;
}
func main() : int {
	return 0;
}
`
	lowered := lowerSrc(t, src)
	out, err := llvmprint.Print(lowered)
	require.NoError(t, err)

	assert.Contains(t, out, "define i64 @bump(i64")
	assert.Contains(t, out, "@counter = common global i64 0, align 4")
	assert.Contains(t, out, "declare")
}

func TestPrintStructFieldUsesMalloc(t *testing.T) {
	src := `
struct Pair {
	var a : int;
	var b : int;
}
func f() {
	var p : Pair;
	p = new Pair;
	p.a = 1;
}
func main() : int {
	return 0;
}
`
	lowered := lowerSrc(t, src)
	out, err := llvmprint.Print(lowered)
	require.NoError(t, err)

	assert.Contains(t, out, "%struct.Pair = type")
	assert.Contains(t, out, "call i8* @malloc")
}

func TestPrintVoidFunctionHasNoReturnValue(t *testing.T) {
	src := `
func greet() {
	println 1;
}
func main() : int {
	return 0;
}
`
	lowered := lowerSrc(t, src)
	out, err := llvmprint.Print(lowered)
	require.NoError(t, err)

	assert.Contains(t, out, "define void @greet()")
	assert.Contains(t, out, "call void @println(i64 1)")
}

func TestPrintBindsSSAPromotedParameter(t *testing.T) {
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
	for _, fn := range lowered.Functions {
		ssa.Construct(fn)
	}

	out, err := llvmprint.Print(lowered)
	require.NoError(t, err)

	assert.Contains(t, out, "define i64 @addOne(i64 %n)")
	assert.Contains(t, out, "add i64 %n, 1")
	assert.NotContains(t, out, "alloca", "an SSA-promoted parameter needs no stack slot")
}
