// Package aasm defines Mini's Abstract Assembly: a small, closed
// instruction set between the type-checked AST and any target printer,
// plus the lowering pass that turns a checked cfg.Block tree into AASM.
// It follows caseyavila/mini's aasm.h/aasm.cpp.
package aasm

import (
	"module/internal/ast"
	"module/internal/cfg"
	"module/internal/types"
)

// OperandValue is the payload half of an Operand.
type OperandValue interface{ operandValue() }

type (
	// Imm is an integer immediate.
	Imm struct{ Val int64 }
	// ImmB is a boolean immediate.
	ImmB struct{ Val bool }
	// Var is a numbered temporary. Lowering numbers them from 1 within
	// each function; internal/ssa keeps those numbers and allocates new
	// ones above the highest for Phi targets and parameters.
	Var struct{ Num int }
	// Id is a symbolic local (a surface-level variable name, used
	// before SSA renaming replaces locals with Var temporaries).
	Id struct{ Name string }
	// Glob is a symbolic global (a top-level declaration).
	Glob struct{ Name string }
	// NullOp is the null pointer constant.
	NullOp struct{}
)

func (Imm) operandValue()    {}
func (ImmB) operandValue()   {}
func (Var) operandValue()    {}
func (Id) operandValue()     {}
func (Glob) operandValue()   {}
func (NullOp) operandValue() {}

// Operand is one instruction operand: its value tag plus its Mini type.
type Operand struct {
	Value OperandValue
	Type  types.Type
}

// BinOp enumerates AASM's binary opcodes (a mirror of ast.BinaryOp kept
// separate so the lowering boundary is explicit: AST operators become
// AASM opcodes exactly once, here).
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	And
	Or
	Xor
	Gt
	Ge
	Lt
	Le
	Eq
	Ne
)

func lowerBinOp(op ast.BinaryOp) BinOp {
	switch op {
	case ast.Add:
		return Add
	case ast.Sub:
		return Sub
	case ast.Mul:
		return Mul
	case ast.Div:
		return Div
	case ast.And:
		return And
	case ast.Or:
		return Or
	case ast.Gt:
		return Gt
	case ast.Ge:
		return Ge
	case ast.Lt:
		return Lt
	case ast.Le:
		return Le
	case ast.Eq:
		return Eq
	default:
		return Ne
	}
}

// Ins is any AASM instruction.
type Ins interface{ insNode() }

type (
	// Load reads *Ptr into Target.
	Load struct {
		Target Operand
		Ptr    Operand
	}
	// Store writes Value to *Ptr.
	Store struct {
		Ptr   Operand
		Value Operand
	}
	// Binary computes Left Op Right into Target.
	Binary struct {
		Target Operand
		Op     BinOp
		Left   Operand
		Right  Operand
	}
	// Call invokes Id with Args. Target is nil for a Void call used as
	// a statement.
	Call struct {
		Target *Operand
		Id     string
		Args   []Operand
	}
	// Ret returns from the function. Value is nil for a Void return.
	Ret struct {
		Value *Operand
	}
	// Free releases a struct or array allocation.
	Free struct {
		Value Operand
	}
	// NewS allocates a struct instance into Target.
	NewS struct {
		Target Operand
		Struct string
	}
	// NewA allocates an array of Size elements into Target.
	NewA struct {
		Target Operand
		Size   Operand
	}
	// Gep computes the address of Base's field/element Index into
	// Target (a "get element pointer", mirroring LLVM's instruction of
	// the same name).
	Gep struct {
		Target Operand
		Base   Operand
		Index  Operand
	}
	// Jump is an unconditional edge to Next.
	Jump struct {
		Next *cfg.Block
	}
	// Br is a conditional edge: True when Guard holds, else False.
	Br struct {
		Guard Operand
		True  *cfg.Block
		False *cfg.Block
	}
	// PhiBinding pairs an incoming predecessor with the operand it
	// contributes. Phi.Bindings is in the order SSA renaming visits the
	// predecessors (a dominator-tree walk over the deterministic
	// cfg.Blocks order), so printers and the SSCP/dead-code passes see
	// the same order on every run.
	PhiBinding struct {
		Pred  *cfg.Block
		Value Operand
	}
	// Phi merges one Operand per predecessor into Target.
	Phi struct {
		Target   Operand
		Bindings []PhiBinding
	}
)

func (*Load) insNode()   {}
func (*Store) insNode()  {}
func (*Binary) insNode() {}
func (*Call) insNode()   {}
func (*Ret) insNode()    {}
func (*Free) insNode()   {}
func (*NewS) insNode()   {}
func (*NewA) insNode()   {}
func (*Gep) insNode()    {}
func (*Jump) insNode()   {}
func (*Br) insNode()     {}
func (*Phi) insNode()    {}

// Uses returns pointers to every operand an instruction *reads*, i.e.
// every operand slot except a def target. This is the single traversal
// helper every consumer of "what does this instruction use" (SSA
// renaming, SSCP, dead-code elimination) shares, following the
// in_op_traverse helper centralized in unused_result.cpp. NewA's Size is
// included even though the original's traversal omits it: leaving it out
// lets dead-code elimination discard the size computation as unused,
// which is wrong, so this port treats it as a use.
func Uses(ins Ins) []*Operand {
	switch ins := ins.(type) {
	case *Load:
		return []*Operand{&ins.Ptr}
	case *Store:
		return []*Operand{&ins.Ptr, &ins.Value}
	case *Binary:
		return []*Operand{&ins.Left, &ins.Right}
	case *Call:
		ops := make([]*Operand, len(ins.Args))
		for i := range ins.Args {
			ops[i] = &ins.Args[i]
		}
		return ops
	case *Ret:
		if ins.Value == nil {
			return nil
		}
		return []*Operand{ins.Value}
	case *Free:
		return []*Operand{&ins.Value}
	case *NewS:
		return nil
	case *NewA:
		return []*Operand{&ins.Size}
	case *Gep:
		return []*Operand{&ins.Base, &ins.Index}
	case *Jump:
		return nil
	case *Br:
		return []*Operand{&ins.Guard}
	case *Phi:
		ops := make([]*Operand, len(ins.Bindings))
		for i := range ins.Bindings {
			ops[i] = &ins.Bindings[i].Value
		}
		return ops
	default:
		return nil
	}
}

// Def returns the operand an instruction defines, and whether it defines
// one at all (Store/Free/Ret/Jump/Br never do; a void Call doesn't
// either).
func Def(ins Ins) (Operand, bool) {
	switch ins := ins.(type) {
	case *Load:
		return ins.Target, true
	case *Binary:
		return ins.Target, true
	case *Call:
		if ins.Target == nil {
			return Operand{}, false
		}
		return *ins.Target, true
	case *NewS:
		return ins.Target, true
	case *NewA:
		return ins.Target, true
	case *Gep:
		return ins.Target, true
	case *Phi:
		return ins.Target, true
	default:
		return Operand{}, false
	}
}

// SetDef overwrites the operand an instruction defines.
func SetDef(ins Ins, op Operand) {
	switch ins := ins.(type) {
	case *Load:
		ins.Target = op
	case *Binary:
		ins.Target = op
	case *Call:
		ins.Target = &op
	case *NewS:
		ins.Target = op
	case *NewA:
		ins.Target = op
	case *Gep:
		ins.Target = op
	case *Phi:
		ins.Target = op
	}
}

// IsTerminator reports whether ins ends a block (Jump/Br/Ret); these are
// never candidates for dead-code elimination.
func IsTerminator(ins Ins) bool {
	switch ins.(type) {
	case *Jump, *Br, *Ret:
		return true
	default:
		return false
	}
}
