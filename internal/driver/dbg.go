package driver

import (
	"log"
	"os"

	"github.com/kr/pretty"

	"module/internal/aasm"
	"module/internal/cfg"
)

// tracer gates -dbg tracing, following the teacher's own dbg.Printf
// calls sprinkled through translateFunc/translateBlock: silent by
// default, a running narration of lowering/optimization decisions when
// enabled.
type tracer struct {
	log *log.Logger
}

func newTracer(enabled bool) *tracer {
	if !enabled {
		return &tracer{}
	}
	return &tracer{log: log.New(os.Stderr, "mini: ", 0)}
}

func (t *tracer) Printf(format string, args ...interface{}) {
	if t.log == nil {
		return
	}
	t.log.Printf(format, args...)
}

// dump pretty-prints a structural value (here, a function's AASM
// instruction listing) the same way the teacher's own
// kr/pretty import dumps x86asm.Arg values it doesn't otherwise know how
// to render.
func (t *tracer) dump(label string, v interface{}) {
	if t.log == nil {
		return
	}
	t.log.Printf("%s:", label)
	pretty.Println(v)
}

// traceFunction logs one function's block count and dumps its
// instruction listing; the driver calls it after lowering and after
// every optimization pass opts enabled.
func (t *tracer) traceFunction(stage string, fn *aasm.Function) {
	if t.log == nil {
		return
	}
	order := cfg.Blocks(fn.Entry)
	t.Printf("%s: function %q, %d block(s)", stage, fn.Id, len(order))
	t.dump(fn.Id+"."+stage, fn.Instrs)
}
