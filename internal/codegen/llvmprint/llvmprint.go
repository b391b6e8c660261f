// Package llvmprint lowers a finished aasm.Program to LLVM textual IR,
// building typed *ir.Module/*ir.Func/*ir.Block objects with
// github.com/llir/llvm and relying on the library's own String() method
// to render them — the same division of labor the teacher
// (golint-fixer-exp/cmd/bin2ll) uses: build typed IR, let llir stringify
// it. Struct/array GEP conventions follow caseyavila/mini's
// print_aasm.cpp (struct fields indexed through the named struct type,
// array elements indexed directly off an i64 pointer).
package llvmprint

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"module/internal/aasm"
	"module/internal/cfg"
	mtypes "module/internal/types"
)

// runtimeSig describes one of Mini's fixed runtime entry points (§6).
type runtimeSig struct {
	params []types.Type
	ret    types.Type
}

var runtime = map[string]runtimeSig{
	"print":   {params: []types.Type{types.I64}, ret: types.Void},
	"println": {params: []types.Type{types.I64}, ret: types.Void},
	"readnum": {params: nil, ret: types.I64},
	"malloc":  {params: []types.Type{types.I64}, ret: types.NewPointer(types.I8)},
	"free":    {params: []types.Type{types.NewPointer(types.I8)}, ret: types.Void},
}

type printer struct {
	module     *ir.Module
	structs    map[string]types.Type // Mini struct id -> *types.StructType
	fieldIndex map[string]map[string]int
	funcs      map[string]*ir.Func
	globals    map[string]*ir.Global
}

// Print builds prog's LLVM module and returns its textual .ll rendering.
func Print(prog *aasm.Program) (string, error) {
	p := &printer{
		module:     ir.NewModule(),
		structs:    map[string]types.Type{},
		fieldIndex: map[string]map[string]int{},
		funcs:      map[string]*ir.Func{},
		globals:    map[string]*ir.Global{},
	}

	for _, id := range prog.StructOrder {
		fields := prog.Fields[id]
		fieldTypes := make([]types.Type, len(fields))
		idx := map[string]int{}
		for i, f := range fields {
			fieldTypes[i] = p.llType(f.Type)
			idx[f.Id] = i
		}
		named := p.module.NewTypeDef("struct."+id, types.NewStruct(fieldTypes...))
		p.structs[id] = named
		p.fieldIndex[id] = idx
	}

	for name, sig := range runtime {
		p.funcs[name] = p.module.NewFunc(name, sig.ret, paramsOf(sig.params)...)
	}

	for _, g := range prog.Globals {
		t := p.llType(g.Type)
		var init constant.Constant
		if g.Type.IsStruct() || g.Type.IsArray() {
			init = constant.NewNull(t.(*types.PointerType))
		} else {
			init = constant.NewInt(0, t)
		}
		gv := p.module.NewGlobalDef(g.Id, init)
		gv.Linkage = enum.LinkageCommon
		gv.Align = 4
		p.globals[g.Id] = gv
	}

	for _, fn := range prog.Functions {
		params := make([]types.Type, len(fn.Params))
		for i, pr := range fn.Params {
			params[i] = p.llType(pr.Type)
		}
		f := p.module.NewFunc(fn.Id, p.llType(fn.ReturnType), paramsOf(params)...)
		for i, pr := range fn.Params {
			f.Params[i].SetName(pr.Id)
		}
		p.funcs[fn.Id] = f
	}

	for _, fn := range prog.Functions {
		if err := p.translateFunction(fn); err != nil {
			return "", errors.Wrapf(err, "llvmprint: function %q", fn.Id)
		}
	}

	return p.module.String(), nil
}

func paramsOf(ts []types.Type) []*ir.Param {
	ps := make([]*ir.Param, len(ts))
	for i, t := range ts {
		ps[i] = ir.NewParam("", t)
	}
	return ps
}

func (p *printer) llType(t mtypes.Type) types.Type {
	switch t.Kind {
	case mtypes.Int:
		return types.I64
	case mtypes.Bool:
		return types.I1
	case mtypes.Void:
		return types.Void
	case mtypes.Array:
		return types.NewPointer(types.I64)
	case mtypes.Struct:
		if st, ok := p.structs[t.Struct]; ok {
			return types.NewPointer(st)
		}
		return types.NewPointer(types.I8)
	default: // Null
		return types.NewPointer(types.I8)
	}
}

// funcCtx carries the per-function state translation needs: the LLVM
// blocks already created for each cfg.Block, the resolved value for
// every Var/Id the function has produced so far, and lazily-created
// allocas backing any Id-addressed local that SSA didn't promote away.
type funcCtx struct {
	p          *printer
	fn         *aasm.Function
	blocks     map[*cfg.Block]*ir.Block
	varValues  map[int]value.Value
	locals     map[string]*ir.InstAlloca
	pendingPhi []pendingPhi
}

type pendingPhi struct {
	phi *ir.InstPhi
	ins *aasm.Phi
}

func (p *printer) translateFunction(fn *aasm.Function) error {
	f := p.funcs[fn.Id]
	order := cfg.Blocks(fn.Entry)

	fc := &funcCtx{
		p:         p,
		fn:        fn,
		blocks:    map[*cfg.Block]*ir.Block{},
		varValues: map[int]value.Value{},
		locals:    map[string]*ir.InstAlloca{},
	}

	for i, b := range order {
		fc.blocks[b] = f.NewBlock(fmt.Sprintf("l%d", i))
	}

	entryBlock := fc.blocks[order[0]]
	for i, pr := range fn.Params {
		if v, ok := fn.ParamVars[pr.Id]; ok {
			// SSA construction already promoted this parameter: its
			// initial value is the Var ssa.Construct seeded, never a
			// Load/Store target, so no instruction will ever bind it
			// through the usual translateIns path. Bind it here instead.
			fc.varValues[v] = f.Params[i]
			continue
		}
		if needsAlloca(fn, pr.Id) {
			alloc := entryBlock.NewAlloca(p.llType(pr.Type))
			alloc.SetName(pr.Id + ".addr")
			fc.locals[pr.Id] = alloc
			entryBlock.NewStore(f.Params[i], alloc)
		}
	}

	for _, b := range order {
		fc.translateBlock(b)
	}
	for _, pp := range fc.pendingPhi {
		for _, bind := range pp.ins.Bindings {
			pred, ok := fc.blocks[bind.Pred]
			if !ok {
				continue
			}
			pp.phi.Incs = append(pp.phi.Incs, ir.NewIncoming(fc.resolve(bind.Value), pred))
		}
	}
	return nil
}

// needsAlloca reports whether a parameter is still Id-addressed anywhere
// in the function (SSA construction, when it ran, already eliminated
// every such reference).
func needsAlloca(fn *aasm.Function, name string) bool {
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if ld, ok := ins.(*aasm.Load); ok {
				if id, ok := ld.Ptr.Value.(aasm.Id); ok && id.Name == name {
					return true
				}
			}
			if st, ok := ins.(*aasm.Store); ok {
				if id, ok := st.Ptr.Value.(aasm.Id); ok && id.Name == name {
					return true
				}
			}
		}
	}
	return false
}

func (fc *funcCtx) allocaFor(name string, t types.Type, blk *ir.Block) *ir.InstAlloca {
	if a, ok := fc.locals[name]; ok {
		return a
	}
	entry := fc.blocks[cfg.Blocks(fc.fn.Entry)[0]]
	a := entry.NewAlloca(t)
	a.SetName(name + ".addr")
	fc.locals[name] = a
	return a
}

func (fc *funcCtx) resolve(op aasm.Operand) value.Value {
	switch v := op.Value.(type) {
	case aasm.Imm:
		return constant.NewInt(v.Val, types.I64)
	case aasm.ImmB:
		return constant.NewBool(v.Val)
	case aasm.NullOp:
		return constant.NewNull(fc.p.llType(op.Type).(*types.PointerType))
	case aasm.Var:
		return fc.varValues[v.Num]
	case aasm.Id, aasm.Glob:
		return nil // only ever an address operand; resolved via addrOf
	default:
		return nil
	}
}

func (fc *funcCtx) addrOf(op aasm.Operand, blk *ir.Block) value.Value {
	switch v := op.Value.(type) {
	case aasm.Id:
		return fc.allocaFor(v.Name, fc.p.llType(op.Type), blk)
	case aasm.Glob:
		return fc.p.globals[v.Name]
	default:
		return fc.resolve(op)
	}
}

func (fc *funcCtx) translateBlock(b *cfg.Block) {
	blk := fc.blocks[b]
	instrs := fc.fn.Instrs[b]

	for _, ins := range instrs {
		fc.translateIns(ins, blk)
	}
}

func (fc *funcCtx) translateIns(ins aasm.Ins, blk *ir.Block) {
	switch ins := ins.(type) {
	case *aasm.Load:
		ptr := fc.addrOf(ins.Ptr, blk)
		v := blk.NewLoad(ptr)
		fc.bind(ins.Target, v)
	case *aasm.Store:
		ptr := fc.addrOf(ins.Ptr, blk)
		blk.NewStore(fc.resolve(ins.Value), ptr)
	case *aasm.Binary:
		l, r := fc.resolve(ins.Left), fc.resolve(ins.Right)
		fc.bind(ins.Target, binaryOp(blk, ins.Op, l, r))
	case *aasm.Call:
		callee, ok := fc.p.funcs[ins.Id]
		if !ok {
			return
		}
		args := make([]value.Value, len(ins.Args))
		for i, a := range ins.Args {
			args[i] = fc.resolve(a)
		}
		res := blk.NewCall(callee, args...)
		if ins.Target != nil {
			fc.bind(*ins.Target, res)
		}
	case *aasm.Ret:
		if ins.Value == nil {
			blk.NewRet(nil)
			return
		}
		blk.NewRet(fc.resolve(*ins.Value))
	case *aasm.Free:
		ptr := fc.resolve(ins.Value)
		blk.NewCall(fc.p.funcs["free"], ptr)
	case *aasm.NewS:
		size := int64(len(fc.p.fieldIndex[ins.Struct])) * 8
		raw := blk.NewCall(fc.p.funcs["malloc"], constant.NewInt(size, types.I64))
		fc.bind(ins.Target, raw)
	case *aasm.NewA:
		elems := fc.resolve(ins.Size)
		bytes := blk.NewMul(elems, constant.NewInt(8, types.I64))
		raw := blk.NewCall(fc.p.funcs["malloc"], bytes)
		fc.bind(ins.Target, raw)
	case *aasm.Gep:
		fc.translateGep(ins, blk)
	case *aasm.Jump:
		blk.NewBr(fc.blocks[ins.Next])
	case *aasm.Br:
		cond := fc.resolve(ins.Guard)
		blk.NewCondBr(cond, fc.blocks[ins.True], fc.blocks[ins.False])
	case *aasm.Phi:
		phi := blk.NewPhi()
		fc.varValues[ins.Target.Value.(aasm.Var).Num] = phi
		fc.pendingPhi = append(fc.pendingPhi, pendingPhi{phi: phi, ins: ins})
	}
}

// translateGep computes a field or element address. A struct field
// needs the leading "dereference self" index LLVM GEP always requires
// on a struct pointer (0, fieldIdx); an array element, addressed
// directly off a flat i64 buffer, needs only the element index.
func (fc *funcCtx) translateGep(ins *aasm.Gep, blk *ir.Block) {
	base := fc.resolve(ins.Base)
	idx := fc.resolve(ins.Index)
	var v value.Value
	if ins.Base.Type.IsStruct() {
		v = blk.NewGetElementPtr(base, constant.NewInt(0, types.I64), idx)
	} else {
		v = blk.NewGetElementPtr(base, idx)
	}
	fc.bind(ins.Target, v)
}

func (fc *funcCtx) bind(target aasm.Operand, v value.Value) {
	switch t := target.Value.(type) {
	case aasm.Var:
		fc.varValues[t.Num] = v
	case aasm.Id:
		// Non-promoted target (shouldn't occur: Load/Binary/etc. always
		// define a Var), kept for completeness.
	}
}

func binaryOp(blk *ir.Block, op aasm.BinOp, l, r value.Value) value.Value {
	switch op {
	case aasm.Add:
		return blk.NewAdd(l, r)
	case aasm.Sub:
		return blk.NewSub(l, r)
	case aasm.Mul:
		return blk.NewMul(l, r)
	case aasm.Div:
		return blk.NewSDiv(l, r)
	case aasm.And:
		return blk.NewAnd(l, r)
	case aasm.Or:
		return blk.NewOr(l, r)
	case aasm.Xor:
		return blk.NewXor(l, r)
	case aasm.Gt:
		return blk.NewICmp(ir.IntSGT, l, r)
	case aasm.Ge:
		return blk.NewICmp(ir.IntSGE, l, r)
	case aasm.Lt:
		return blk.NewICmp(ir.IntSLT, l, r)
	case aasm.Le:
		return blk.NewICmp(ir.IntSLE, l, r)
	case aasm.Eq:
		return blk.NewICmp(ir.IntEQ, l, r)
	default: // Ne
		return blk.NewICmp(ir.IntNE, l, r)
	}
}
