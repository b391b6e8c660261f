package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/parser"
)

func checkSrc(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	return Check(prog)
}

func TestCheckValidProgram(t *testing.T) {
	src := `
var total : int;
func add(a : int, b : int) : int {
	return a + b;
}
func main() : int {
	total = add(1, 2);
	println total;
	return 0;
}
`
	assert.NoError(t, checkSrc(t, src))
}

func TestCheckUndeclaredIdentIsError(t *testing.T) {
	src := `
func main() : int {
	println missing;
	return 0;
}
`
	err := checkSrc(t, src)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Undeclared, cerr.Kind)
}

func TestCheckGlobalResolvesWhenNoLocalShadow(t *testing.T) {
	src := `
var counter : int;
func bump() {
	counter = counter + 1;
}
func main() : int {
	return 0;
}
`
	assert.NoError(t, checkSrc(t, src))
}

func TestCheckLocalShadowsGlobal(t *testing.T) {
	// a local `var counter` must be preferred over the global of the
	// same name per §3's local-first resolution rule; assigning a bool
	// to it must succeed even though the global counter is an int.
	src := `
var counter : int;
func f() {
	var counter : bool;
	counter = true;
}
func main() : int {
	return 0;
}
`
	assert.NoError(t, checkSrc(t, src))
}

func TestCheckDuplicateGlobalIsRedeclared(t *testing.T) {
	src := `
var x : int;
var x : int;
func main() {}
`
	err := checkSrc(t, src)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Redeclared, cerr.Kind)
}

func TestCheckMissingReturnIsError(t *testing.T) {
	src := `
func f() : int {
	if (true) {
		return 1;
	}
}
func main() : int {
	return 0;
}
`
	err := checkSrc(t, src)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, NoReturn, cerr.Kind)
}

func TestCheckReadIsInt(t *testing.T) {
	src := `
func main() : int {
	var x : int;
	x = read;
	return 0;
}
`
	assert.NoError(t, checkSrc(t, src))
}

func TestCheckReadIntoBoolIsMismatch(t *testing.T) {
	src := `
func main() : int {
	var x : bool;
	x = read;
	return 0;
}
`
	err := checkSrc(t, src)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Mismatch, cerr.Kind)
}
