// Package armprint renders a finished aasm.Program as AArch64 assembly
// text, the same direct-streaming style caseyavila/mini's print_aasm.cpp
// uses for its LLVM output (one function per syntactic piece, writing
// straight to the output buffer rather than building an intermediate
// instruction AST). Mini has no register allocator (§1 Non-goals), so
// every AASM Var and Id-addressed local gets its own fixed stack slot,
// the same "every temporary spills" baseline a from-scratch codegen
// without an allocator has to take.
package armprint

import (
	"fmt"
	"strings"

	"module/internal/aasm"
	"module/internal/cfg"
)

// frame assigns every AASM Var and Id-addressed local a 8-byte-aligned
// stack slot below the frame pointer.
type frame struct {
	slots map[string]int64 // "v<N>" or the local's own name -> offset from fp
	size  int64
}

func newFrame(fn *aasm.Function) *frame {
	f := &frame{slots: map[string]int64{}}
	assign := func(key string) {
		if _, ok := f.slots[key]; ok {
			return
		}
		f.size += 8
		f.slots[key] = -f.size
	}
	for name := range fn.Locals {
		assign("id." + name)
	}
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if d, ok := aasm.Def(ins); ok {
				if v, ok := d.Value.(aasm.Var); ok {
					assign(fmt.Sprintf("v%d", v.Num))
				}
			}
		}
	}
	// A parameter SSA construction promoted gets a Var that no
	// instruction ever defines (it's the function's incoming argument,
	// not a computed value) — give it a slot here so printFunction's
	// prologue has somewhere to store the incoming register.
	for _, v := range fn.ParamVars {
		assign(fmt.Sprintf("v%d", v))
	}
	// 16-byte stack alignment, AArch64's calling-convention requirement.
	if f.size%16 != 0 {
		f.size += 16 - f.size%16
	}
	return f
}

func (f *frame) slot(op aasm.Operand) (string, bool) {
	switch v := op.Value.(type) {
	case aasm.Var:
		off, ok := f.slots[fmt.Sprintf("v%d", v.Num)]
		return reg(off), ok
	case aasm.Id:
		off, ok := f.slots["id."+v.Name]
		return reg(off), ok
	default:
		return "", false
	}
}

func reg(off int64) string { return fmt.Sprintf("[fp, #%d]", off) }

// Print renders prog as AArch64 assembly text in GNU `as` syntax.
func Print(prog *aasm.Program) string {
	var sb strings.Builder
	for _, g := range prog.Globals {
		fmt.Fprintf(&sb, "\t.comm\t%s, 8, 8\n", g.Id)
	}
	sb.WriteString(".text\n")
	for _, fn := range prog.Functions {
		printFunction(&sb, prog, fn)
	}
	return sb.String()
}

// addrReg materializes op as an *address* register: Id and Glob name a
// variable's own storage directly (its fp-relative slot, or a global
// symbol) and so need their address computed, never loaded through.
// Any other operand kind (a Var holding a pointer value produced by an
// earlier Gep/NewS/NewA) already denotes an address by value, so it
// falls back to the ordinary value path in operandReg.
func addrReg(op aasm.Operand, fr *frame, tmp string, sb *strings.Builder) string {
	switch v := op.Value.(type) {
	case aasm.Id:
		off := fr.slots["id."+v.Name]
		fmt.Fprintf(sb, "\tadd\t%s, fp, #%d\n", tmp, off)
		return tmp
	case aasm.Glob:
		fmt.Fprintf(sb, "\tadrp\t%s, %s\n\tadd\t%s, %s, :lo12:%s\n", tmp, v.Name, tmp, tmp, v.Name)
		return tmp
	default:
		return operandReg(op, fr, tmp, sb)
	}
}

func printFunction(sb *strings.Builder, prog *aasm.Program, fn *aasm.Function) {
	fr := newFrame(fn)
	labels := cfg.Enumerate(fn.Entry)

	fmt.Fprintf(sb, ".global %s\n%s:\n", fn.Id, fn.Id)
	fmt.Fprintf(sb, "\tstp\tfp, lr, [sp, #-16]!\n\tmov\tfp, sp\n")
	fmt.Fprintf(sb, "\tsub\tsp, sp, #%d\n", fr.size)

	for i, p := range fn.Params {
		if i > 7 {
			break // Mini never emits more than a handful of parameters in practice; §1 excludes a full AAPCS64 stack-arg story
		}
		if off, ok := fr.slots["id."+p.Id]; ok {
			fmt.Fprintf(sb, "\tstr\tx%d, [fp, #%d]\n", i, off)
		}
		if v, ok := fn.ParamVars[p.Id]; ok {
			if off, ok := fr.slots[fmt.Sprintf("v%d", v)]; ok {
				fmt.Fprintf(sb, "\tstr\tx%d, [fp, #%d]\n", i, off)
			}
		}
	}

	blocks := cfg.Blocks(fn.Entry)
	for _, b := range blocks {
		fmt.Fprintf(sb, "l%d:\n", labels[b])
		for _, ins := range fn.Instrs[b] {
			printIns(sb, ins, fr, labels, prog)
		}
	}
}

func operandReg(op aasm.Operand, fr *frame, tmp string, sb *strings.Builder) string {
	switch v := op.Value.(type) {
	case aasm.Imm:
		fmt.Fprintf(sb, "\tmov\t%s, #%d\n", tmp, v.Val)
		return tmp
	case aasm.ImmB:
		n := int64(0)
		if v.Val {
			n = 1
		}
		fmt.Fprintf(sb, "\tmov\t%s, #%d\n", tmp, n)
		return tmp
	case aasm.NullOp:
		fmt.Fprintf(sb, "\tmov\t%s, #0\n", tmp)
		return tmp
	default:
		if slot, ok := fr.slot(op); ok {
			fmt.Fprintf(sb, "\tldr\t%s, %s\n", tmp, slot)
			return tmp
		}
		return tmp
	}
}

func printIns(sb *strings.Builder, ins aasm.Ins, fr *frame, labels map[*cfg.Block]int, prog *aasm.Program) {
	switch ins := ins.(type) {
	case *aasm.Load:
		addr := addrReg(ins.Ptr, fr, "x9", sb)
		if dst, ok := fr.slot(ins.Target); ok {
			fmt.Fprintf(sb, "\tldr\tx10, [%s]\n\tstr\tx10, %s\n", addr, dst)
		}
	case *aasm.Store:
		val := operandReg(ins.Value, fr, "x9", sb)
		addr := addrReg(ins.Ptr, fr, "x10", sb)
		fmt.Fprintf(sb, "\tstr\t%s, [%s]\n", val, addr)
	case *aasm.Binary:
		printBinary(sb, ins, fr)
	case *aasm.Call:
		for i, a := range ins.Args {
			if i > 7 {
				break
			}
			v := operandReg(a, fr, fmt.Sprintf("x%d", i), sb)
			if v != fmt.Sprintf("x%d", i) {
				fmt.Fprintf(sb, "\tmov\tx%d, %s\n", i, v)
			}
		}
		fmt.Fprintf(sb, "\tbl\t%s\n", ins.Id)
		if ins.Target != nil {
			if dst, ok := fr.slot(*ins.Target); ok {
				fmt.Fprintf(sb, "\tstr\tx0, %s\n", dst)
			}
		}
	case *aasm.Ret:
		if ins.Value != nil {
			v := operandReg(*ins.Value, fr, "x0", sb)
			if v != "x0" {
				fmt.Fprintf(sb, "\tmov\tx0, %s\n", v)
			}
		}
		fmt.Fprintf(sb, "\tmov\tsp, fp\n\tldp\tfp, lr, [sp], #16\n\tret\n")
	case *aasm.Free:
		v := operandReg(ins.Value, fr, "x0", sb)
		if v != "x0" {
			fmt.Fprintf(sb, "\tmov\tx0, %s\n", v)
		}
		fmt.Fprintf(sb, "\tbl\tfree\n")
	case *aasm.NewS:
		size := len(prog.Fields[ins.Struct]) * 8
		fmt.Fprintf(sb, "\tmov\tx0, #%d\n\tbl\tmalloc\n", size)
		if dst, ok := fr.slot(ins.Target); ok {
			fmt.Fprintf(sb, "\tstr\tx0, %s\n", dst)
		}
	case *aasm.NewA:
		v := operandReg(ins.Size, fr, "x9", sb)
		fmt.Fprintf(sb, "\tlsl\tx0, %s, #3\n\tbl\tmalloc\n", v)
		if dst, ok := fr.slot(ins.Target); ok {
			fmt.Fprintf(sb, "\tstr\tx0, %s\n", dst)
		}
	case *aasm.Gep:
		// Struct fields and array elements are both a fixed 8-byte-wide
		// slot offset from the base pointer, so both forms of Gep
		// reduce to the same scaled-index address computation.
		base := operandReg(ins.Base, fr, "x9", sb)
		idx := operandReg(ins.Index, fr, "x10", sb)
		fmt.Fprintf(sb, "\tadd\tx11, %s, %s, lsl #3\n", base, idx)
		if dst, ok := fr.slot(ins.Target); ok {
			fmt.Fprintf(sb, "\tstr\tx11, %s\n", dst)
		}
	case *aasm.Jump:
		fmt.Fprintf(sb, "\tb\tl%d\n", labels[ins.Next])
	case *aasm.Br:
		v := operandReg(ins.Guard, fr, "x9", sb)
		fmt.Fprintf(sb, "\tcmp\t%s, #0\n\tb.ne\tl%d\n\tb\tl%d\n", v, labels[ins.True], labels[ins.False])
	case *aasm.Phi:
		// Phi resolution happens on each predecessor's store into the
		// shared slot assigned to the phi's own Var (see printBinding).
	}
}

func printBinary(sb *strings.Builder, ins *aasm.Binary, fr *frame) {
	l := operandReg(ins.Left, fr, "x9", sb)
	r := operandReg(ins.Right, fr, "x10", sb)
	dst, ok := fr.slot(ins.Target)
	if !ok {
		return
	}
	switch ins.Op {
	case aasm.Add:
		fmt.Fprintf(sb, "\tadd\tx11, %s, %s\n", l, r)
	case aasm.Sub:
		fmt.Fprintf(sb, "\tsub\tx11, %s, %s\n", l, r)
	case aasm.Mul:
		fmt.Fprintf(sb, "\tmul\tx11, %s, %s\n", l, r)
	case aasm.Div:
		fmt.Fprintf(sb, "\tsdiv\tx11, %s, %s\n", l, r)
	case aasm.And:
		fmt.Fprintf(sb, "\tand\tx11, %s, %s\n", l, r)
	case aasm.Or:
		fmt.Fprintf(sb, "\torr\tx11, %s, %s\n", l, r)
	case aasm.Xor:
		fmt.Fprintf(sb, "\teor\tx11, %s, %s\n", l, r)
	case aasm.Gt:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, gt\n", l, r)
	case aasm.Ge:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, ge\n", l, r)
	case aasm.Lt:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, lt\n", l, r)
	case aasm.Le:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, le\n", l, r)
	case aasm.Eq:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, eq\n", l, r)
	case aasm.Ne:
		fmt.Fprintf(sb, "\tcmp\t%s, %s\n\tcset\tx11, ne\n", l, r)
	}
	fmt.Fprintf(sb, "\tstr\tx11, %s\n", dst)
}

