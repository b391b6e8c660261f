package driver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module/internal/driver"
)

func TestValidateRejectsSscpWithoutSsa(t *testing.T) {
	err := driver.Options{SSCP: true}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sscp requires --ssa")

	var derr *driver.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, driver.StageArgs, derr.Stage)
}

func TestValidateRejectsUnusedWithoutSsa(t *testing.T) {
	err := driver.Options{Unused: true}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--unused requires --ssa")
}

func TestValidateAcceptsSsaCombinations(t *testing.T) {
	assert.NoError(t, driver.Options{SSA: true, SSCP: true, Unused: true}.Validate())
	assert.NoError(t, driver.Options{}.Validate())
}

func TestRunEmitsLLVMTextWithoutInvokingClang(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.mini")
	require.NoError(t, os.WriteFile(src, []byte(`
func main() : int {
	return 0;
}
`), 0644))

	out, err := driver.Run(src, driver.Options{EmitOnly: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.ll"), out)

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "define i64 @main()")
}

func TestRunWithDbgStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.mini")
	require.NoError(t, os.WriteFile(src, []byte(`
func addOne(n : int) : int {
	return n + 1;
}
func main() : int {
	return addOne(0);
}
`), 0644))

	out, err := driver.Run(src, driver.Options{EmitOnly: true, SSA: true, SSCP: true, Unused: true, Dbg: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.ll"), out)
}

func TestRunEmitsArmTextWhenArmRequested(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.mini")
	require.NoError(t, os.WriteFile(src, []byte(`
func main() : int {
	return 0;
}
`), 0644))

	out, err := driver.Run(src, driver.Options{EmitOnly: true, Arm: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.s"), out)

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(contents), ".global main")
}

func TestRunReportsSyntaxStageError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.mini")
	require.NoError(t, os.WriteFile(src, []byte(`func ( { `), 0644))

	_, err := driver.Run(src, driver.Options{EmitOnly: true})
	require.Error(t, err)
	var derr *driver.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, driver.StageSyntax, derr.Stage)
}

func TestRunReportsSemanticStageError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.mini")
	require.NoError(t, os.WriteFile(src, []byte(`
func main() : int {
	return undeclared;
}
`), 0644))

	_, err := driver.Run(src, driver.Options{EmitOnly: true})
	require.Error(t, err)
	var derr *driver.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, driver.StageSemantic, derr.Stage)
}
