package aasm

import (
	"module/internal/ast"
	"module/internal/cfg"
	"module/internal/types"
)

// Program is a whole lowered Mini program: struct layouts, global
// declarations and every function's AASM.
type Program struct {
	StructOrder []string
	Fields      map[string][]ast.Param
	Globals     []ast.Param
	Functions   []*Function
}

// Function is one lowered Mini function.
type Function struct {
	Id         string
	Params     []ast.Param
	ReturnType types.Type
	Entry      *cfg.Block
	Instrs     map[*cfg.Block][]Ins
	Locals     ast.Environment

	// ParamVars maps a parameter's own name to the Var number ssa.Construct
	// seeded its initial SSA value with, nil unless SSA construction has
	// run on this function. No instruction ever defines that Var (it is
	// the function's incoming argument, not a computed value), so target
	// printers must bind it themselves rather than relying on the usual
	// Def()-based bookkeeping.
	ParamVars map[string]int
}

// symtab is the small read-only table lowering consults to recover the
// type of an expression without the checker having annotated the AST.
type symtab struct {
	fields     map[string]map[string]types.Type
	fieldOrder map[string][]string
	funcs      map[string]types.Type // function id -> return type
	globals    ast.Environment
	env        ast.Environment
}

// isGlobal reports whether name resolves to a global rather than a local
// (§3: name resolution tries local first, then global).
func (st *symtab) isGlobal(name string) bool {
	if _, local := st.env[name]; local {
		return false
	}
	_, ok := st.globals[name]
	return ok
}

// Lower runs AASM lowering over an entire checked program (§4.3).
func Lower(prog *ast.Program) *Program {
	out := &Program{Fields: map[string][]ast.Param{}, Globals: prog.Globals}
	for _, s := range prog.Structs {
		out.StructOrder = append(out.StructOrder, s.Id)
		out.Fields[s.Id] = s.Fields
	}

	globals := ast.Environment{}
	for _, g := range prog.Globals {
		globals[g.Id] = g.Type
	}

	fieldTypes := map[string]map[string]types.Type{}
	fieldOrder := map[string][]string{}
	for _, s := range prog.Structs {
		m := map[string]types.Type{}
		var order []string
		for _, f := range s.Fields {
			m[f.Id] = f.Type
			order = append(order, f.Id)
		}
		fieldTypes[s.Id] = m
		fieldOrder[s.Id] = order
	}
	funcRet := map[string]types.Type{}
	for _, fn := range prog.Functions {
		funcRet[fn.Id] = fn.ReturnType
	}

	for _, fn := range prog.Functions {
		out.Functions = append(out.Functions, lowerFunction(fn, fieldTypes, fieldOrder, funcRet, globals))
	}
	return out
}

func lowerFunction(fn *ast.Function, fieldTypes map[string]map[string]types.Type, fieldOrder map[string][]string, funcRet map[string]types.Type, globals ast.Environment) *Function {
	entry := cfg.BuildFunction(fn)
	st := &symtab{fields: fieldTypes, fieldOrder: fieldOrder, funcs: funcRet, globals: globals, env: fn.LocalEnv}

	lf := &Function{
		Id:         fn.Id,
		Params:     fn.Parameters,
		ReturnType: fn.ReturnType,
		Entry:      entry,
		Instrs:     map[*cfg.Block][]Ins{},
		Locals:     fn.LocalEnv,
	}

	tmp := 0
	cfg.Traverse(entry, func(b *cfg.Block) {
		var instrs []Ins
		for _, s := range b.Statements {
			instrs = lowerStmt(s, instrs, &tmp, st)
		}
		switch b.Kind {
		case cfg.Basic:
			if b.Next != nil {
				instrs = append(instrs, &Jump{Next: b.Next})
			}
		case cfg.Conditional:
			guard := lowerExpr(b.Guard, &instrs, &tmp, st)
			instrs = append(instrs, &Br{Guard: guard, True: b.True, False: b.False})
		case cfg.Return:
			// Statements already holds the lone Return; handled above via
			// lowerStmt producing a Ret instruction.
		}
		lf.Instrs[b] = instrs
	})
	return lf
}

func freshVar(tmp *int, t types.Type) Operand {
	*tmp++
	return Operand{Value: Var{Num: *tmp}, Type: t}
}

func lowerStmt(s ast.Stmt, instrs []Ins, tmp *int, st *symtab) []Ins {
	switch s := s.(type) {
	case *ast.InvocationStmt:
		lowerCallStmt(s.Call, &instrs, tmp, st)
		return instrs
	case *ast.AssignStmt:
		addr, addrType := lowerAddr(s.LValue, &instrs, tmp, st)
		val := lowerSource(s.Source, addrType, &instrs, tmp, st)
		instrs = append(instrs, &Store{Ptr: addr, Value: val})
		return instrs
	case *ast.Print:
		v := lowerExpr(s.Expr, &instrs, tmp, st)
		instrs = append(instrs, &Call{Id: "print", Args: []Operand{v}})
		return instrs
	case *ast.PrintLn:
		v := lowerExpr(s.Expr, &instrs, tmp, st)
		instrs = append(instrs, &Call{Id: "println", Args: []Operand{v}})
		return instrs
	case *ast.Delete:
		v := lowerExpr(s.Expr, &instrs, tmp, st)
		instrs = append(instrs, &Free{Value: v})
		return instrs
	case *ast.Return:
		if s.Expr == nil {
			instrs = append(instrs, &Ret{})
			return instrs
		}
		v := lowerExpr(s.Expr, &instrs, tmp, st)
		instrs = append(instrs, &Ret{Value: &v})
		return instrs
	default:
		return instrs
	}
}

// lowerSource lowers the right-hand side of an assignment. new-struct and
// new-array expressions need the target type (struct id, element type)
// which the assignment's lvalue already fixed, so they're handled here
// rather than in the general lowerExpr.
func lowerSource(e ast.Expr, lvalType types.Type, instrs *[]Ins, tmp *int, st *symtab) Operand {
	switch e := e.(type) {
	case *ast.NewStruct:
		target := freshVar(tmp, types.StructT(e.Struct))
		*instrs = append(*instrs, &NewS{Target: target, Struct: e.Struct})
		return target
	case *ast.NewArray:
		size := lowerExpr(e.Size, instrs, tmp, st)
		target := freshVar(tmp, types.ArrayT)
		*instrs = append(*instrs, &NewA{Target: target, Size: size})
		return target
	case *ast.Read:
		target := freshVar(tmp, types.IntT)
		*instrs = append(*instrs, &Call{Target: &target, Id: "readnum"})
		return target
	default:
		return lowerExpr(e, instrs, tmp, st)
	}
}

func lowerCallStmt(inv *ast.Invocation, instrs *[]Ins, tmp *int, st *symtab) {
	args := make([]Operand, len(inv.Arguments))
	for i, a := range inv.Arguments {
		args[i] = lowerExpr(a, instrs, tmp, st)
	}
	ret := st.funcs[inv.Id]
	if ret.IsVoid() {
		*instrs = append(*instrs, &Call{Id: inv.Id, Args: args})
	} else {
		target := freshVar(tmp, ret)
		*instrs = append(*instrs, &Call{Target: &target, Id: inv.Id, Args: args})
	}
}

// lowerAddr computes the address operand (and pointee type) an lvalue
// resolves to, emitting Gep instructions for field/element access.
func lowerAddr(lv ast.LValue, instrs *[]Ins, tmp *int, st *symtab) (Operand, types.Type) {
	switch lv := lv.(type) {
	case *ast.LIdent:
		if st.isGlobal(lv.Name) {
			t := st.globals[lv.Name]
			return Operand{Value: Glob{Name: lv.Name}, Type: t}, t
		}
		t := st.env[lv.Name]
		return Operand{Value: Id{Name: lv.Name}, Type: t}, t
	case *ast.LDot:
		base, baseType := lowerAddr(lv.LValue, instrs, tmp, st)
		baseVal := loadFrom(base, baseType, instrs, tmp)
		fieldT := st.fields[baseType.Struct][lv.Id]
		idx := fieldIndex(st, baseType.Struct, lv.Id)
		target := freshVar(tmp, fieldT)
		*instrs = append(*instrs, &Gep{Target: target, Base: baseVal, Index: Operand{Value: Imm{Val: int64(idx)}, Type: types.IntT}})
		return target, fieldT
	case *ast.LIndex:
		base, baseType := lowerAddr(lv.LValue, instrs, tmp, st)
		baseVal := loadFrom(base, baseType, instrs, tmp)
		idx := lowerExpr(lv.Index, instrs, tmp, st)
		target := freshVar(tmp, types.IntT)
		*instrs = append(*instrs, &Gep{Target: target, Base: baseVal, Index: idx})
		return target, types.IntT
	default:
		return Operand{}, types.Type{}
	}
}

func loadFrom(ptr Operand, t types.Type, instrs *[]Ins, tmp *int) Operand {
	target := freshVar(tmp, t)
	*instrs = append(*instrs, &Load{Target: target, Ptr: ptr})
	return target
}

func fieldIndex(st *symtab, structID, field string) int {
	// A field's index is its position in the struct's declaration
	// order, which Lower records per struct in st.fieldOrder.
	order := st.fieldOrder[structID]
	for i, f := range order {
		if f == field {
			return i
		}
	}
	return -1
}

func lowerExpr(e ast.Expr, instrs *[]Ins, tmp *int, st *symtab) Operand {
	switch e := e.(type) {
	case *ast.Ident:
		if st.isGlobal(e.Name) {
			t := st.globals[e.Name]
			return loadFrom(Operand{Value: Glob{Name: e.Name}, Type: t}, t, instrs, tmp)
		}
		t := st.env[e.Name]
		return loadFrom(Operand{Value: Id{Name: e.Name}, Type: t}, t, instrs, tmp)
	case *ast.IntLit:
		return Operand{Value: Imm{Val: e.Value}, Type: types.IntT}
	case *ast.BoolLit:
		return Operand{Value: ImmB{Val: e.Value}, Type: types.BoolT}
	case *ast.NullLit:
		return Operand{Value: NullOp{}, Type: types.NullT}
	case *ast.Dot:
		return lowerFieldOrIndexRead(e, instrs, tmp, st)
	case *ast.Index:
		return lowerFieldOrIndexRead(e, instrs, tmp, st)
	case *ast.Unary:
		v := lowerExpr(e.Expr, instrs, tmp, st)
		zero := Operand{Value: Imm{Val: 0}, Type: types.IntT}
		switch e.Op {
		case ast.Neg:
			target := freshVar(tmp, types.IntT)
			*instrs = append(*instrs, &Binary{Target: target, Op: Sub, Left: zero, Right: v})
			return target
		default: // Not
			target := freshVar(tmp, types.BoolT)
			*instrs = append(*instrs, &Binary{Target: target, Op: Xor, Left: v, Right: Operand{Value: ImmB{Val: true}, Type: types.BoolT}})
			return target
		}
	case *ast.Binary:
		l := lowerExpr(e.Left, instrs, tmp, st)
		r := lowerExpr(e.Right, instrs, tmp, st)
		resultT := types.BoolT
		switch e.Op {
		case ast.Add, ast.Sub, ast.Mul, ast.Div:
			resultT = types.IntT
		}
		target := freshVar(tmp, resultT)
		*instrs = append(*instrs, &Binary{Target: target, Op: lowerBinOp(e.Op), Left: l, Right: r})
		return target
	case *ast.Invocation:
		return lowerCallExpr(e, instrs, tmp, st)
	default:
		return Operand{}
	}
}

func lowerCallExpr(inv *ast.Invocation, instrs *[]Ins, tmp *int, st *symtab) Operand {
	args := make([]Operand, len(inv.Arguments))
	for i, a := range inv.Arguments {
		args[i] = lowerExpr(a, instrs, tmp, st)
	}
	ret := st.funcs[inv.Id]
	target := freshVar(tmp, ret)
	*instrs = append(*instrs, &Call{Target: &target, Id: inv.Id, Args: args})
	return target
}

// lowerFieldOrIndexRead lowers a Dot or Index used as an rvalue: compute
// its address the same way an lvalue would, then load through it.
func lowerFieldOrIndexRead(e ast.Expr, instrs *[]Ins, tmp *int, st *symtab) Operand {
	lv := exprToLValue(e)
	addr, t := lowerAddr(lv, instrs, tmp, st)
	return loadFrom(addr, t, instrs, tmp)
}

// exprToLValue reinterprets a Dot/Index expression as the equivalent
// LValue shape so address computation has one implementation.
func exprToLValue(e ast.Expr) ast.LValue {
	switch e := e.(type) {
	case *ast.Ident:
		return &ast.LIdent{Name: e.Name}
	case *ast.Dot:
		return &ast.LDot{LValue: exprToLValue(e.Expr), Id: e.Id}
	case *ast.Index:
		return &ast.LIndex{LValue: exprToLValue(e.Left), Index: e.Index}
	default:
		return nil
	}
}
