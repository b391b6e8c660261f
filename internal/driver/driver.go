// Package driver wires Mini's pipeline stages together: parse, typecheck,
// lower to AASM, the optional tail-call and SSA-family passes, print to
// LLVM IR or AArch64 assembly text, and (unless -S was given) hand the
// result to the host's clang to produce a binary. It follows §6/§7 of
// caseyavila/mini's driver.cpp: a strict stage order, a single-line
// diagnostic per failure, and no partial output on error.
package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"module/internal/aasm"
	"module/internal/codegen/armprint"
	"module/internal/codegen/llvmprint"
	"module/internal/deadcode"
	"module/internal/parser"
	"module/internal/sscp"
	"module/internal/ssa"
	"module/internal/tailcall"
	"module/internal/typecheck"
)

// Stage classifies which phase of the pipeline produced an error, so
// main can report it without string-matching.
type Stage string

const (
	StageArgs      Stage = "argument"
	StageIO        Stage = "I/O"
	StageSyntax    Stage = "syntax"
	StageSemantic  Stage = "type/scope"
	StageInternal  Stage = "internal"
	StageToolchain Stage = "toolchain"
)

// Error is the single-line diagnostic §7 requires: a stage tag plus a
// message, never a multi-line cause chain.
type Error struct {
	Stage   Stage
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %s", e.Stage, e.Message) }

func fail(stage Stage, format string, args ...interface{}) error {
	return &Error{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Options mirrors the CLI flag grammar in §6:
// mini [-S] [--tail] [--arm] [--ssa [--sscp] [--unused]] <file>
type Options struct {
	EmitOnly bool // -S: stop after writing the target-language text, don't invoke clang
	Tail     bool // --tail: rewrite self tail calls into a loop
	Arm      bool // --arm: print AArch64 assembly instead of LLVM IR
	SSA      bool // --ssa: run mem2reg SSA construction
	SSCP     bool // --sscp: run sparse simple constant propagation (requires SSA)
	Unused   bool // --unused: run unused-result elimination (requires SSA)
	Dbg      bool // --dbg: trace lowering/optimization decisions to stderr
}

// Validate enforces §6's flag-combination rule: --sscp and --unused each
// require --ssa.
func (o Options) Validate() error {
	if o.SSCP && !o.SSA {
		return fail(StageArgs, "--sscp requires --ssa")
	}
	if o.Unused && !o.SSA {
		return fail(StageArgs, "--unused requires --ssa")
	}
	return nil
}

// Run compiles the Mini source file at path per opts. On success it
// returns the path to the produced artifact (a .ll/.s text file if
// EmitOnly, otherwise a native executable).
func Run(path string, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	dbg := newTracer(opts.Dbg)

	src, err := os.ReadFile(path)
	if err != nil {
		return "", fail(StageIO, "%s: %v", path, err)
	}

	prog, err := parser.Parse(string(src))
	if err != nil {
		return "", fail(StageSyntax, "%v", err)
	}
	dbg.Printf("parsed %s: %d function(s), %d struct(s), %d global(s)", path, len(prog.Functions), len(prog.Structs), len(prog.Globals))

	if err := typecheck.Check(prog); err != nil {
		return "", fail(StageSemantic, "%v", err)
	}
	dbg.Printf("typecheck ok")

	lowered := aasm.Lower(prog)
	for _, fn := range lowered.Functions {
		dbg.traceFunction("lower", fn)
	}

	for _, fn := range lowered.Functions {
		if opts.Tail {
			fn.Entry = tailcall.Rewrite(fn)
			dbg.traceFunction("tailcall", fn)
		}
		if opts.SSA {
			ssa.Construct(fn)
			dbg.traceFunction("ssa", fn)
			if opts.SSCP {
				sscp.Run(fn)
				dbg.traceFunction("sscp", fn)
			}
			if opts.Unused {
				deadcode.Run(fn)
				dbg.traceFunction("deadcode", fn)
			}
		}
	}

	var text string
	var ext string
	if opts.Arm {
		text = armprint.Print(lowered)
		ext = ".s"
	} else {
		text, err = llvmprint.Print(lowered)
		if err != nil {
			return "", fail(StageInternal, "%v", err)
		}
		ext = ".ll"
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Dir(path)
	outText := filepath.Join(dir, base+ext)
	if err := os.WriteFile(outText, []byte(text), 0644); err != nil {
		return "", fail(StageIO, "%s: %v", outText, err)
	}

	if opts.EmitOnly {
		return outText, nil
	}

	bin := filepath.Join(dir, base)
	if err := compile(outText, bin); err != nil {
		os.Remove(outText)
		return "", err
	}
	os.Remove(outText)
	return bin, nil
}

// compile invokes the host clang to assemble/link outText (LLVM IR or
// assembly text) against the C runtime into a native executable. No
// partial output survives a failed invocation (§7).
func compile(outText, bin string) error {
	runtimeC := filepath.Join(filepath.Dir(outText), "..", "runtime", "util.c")
	if _, err := os.Stat(runtimeC); err != nil {
		if alt := findRuntime(); alt != "" {
			runtimeC = alt
		}
	}
	args := []string{outText, runtimeC, "-o", bin}
	cmd := exec.Command("clang", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(bin)
		return &Error{Stage: StageToolchain, Message: errors.Wrapf(err, "clang: %s", strings.TrimSpace(string(out))).Error()}
	}
	return nil
}

// findRuntime walks up from the working directory looking for
// runtime/util.c, since Run is usually invoked with a relative source
// path that doesn't share a root with the module's own runtime/.
func findRuntime() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "runtime", "util.c")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
