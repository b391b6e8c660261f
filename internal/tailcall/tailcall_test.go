package tailcall_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/aasm"
	"module/internal/cfg"
	"module/internal/parser"
	"module/internal/tailcall"
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

func TestRewriteSelfTailCallBecomesLoop(t *testing.T) {
	src := `
func loop(n : int) {
	if (n > 0) {
		loop(n - 1);
	}
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	originalEntry := fn.Entry
	newEntry := tailcall.Rewrite(fn)

	require.NotSame(t, originalEntry, newEntry, "a self tail call should get a new preamble entry")
	fn.Entry = newEntry

	sawCallTo := false
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if c, ok := ins.(*aasm.Call); ok && c.Id == "loop" {
				sawCallTo = true
			}
		}
	}
	assert.False(t, sawCallTo, "the self tail call should have been rewritten away, not left as a Call")

	sawBackEdge := false
	cfg.Traverse(newEntry, func(b *cfg.Block) {
		for _, ins := range fn.Instrs[b] {
			if j, ok := ins.(*aasm.Jump); ok && j.Next == originalEntry {
				sawBackEdge = true
			}
		}
	})
	assert.True(t, sawBackEdge, "expected a jump back to the original entry")
}

func TestRewriteNonTailFunctionUnchanged(t *testing.T) {
	src := `
func f(n : int) : int {
	return n + 1;
}
func main() : int {
	return 0;
}
`
	fn := buildFunc(t, src)
	entry := tailcall.Rewrite(fn)
	assert.Same(t, fn.Entry, entry)
}
