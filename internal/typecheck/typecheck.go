// Package typecheck implements Mini's static semantics: name resolution,
// type assignment for every expression, lvalue and statement, and the
// structural "returns on all paths" check. It follows the rules in
// caseyavila/mini's type_checker.cpp, reproduced in Go idiom.
package typecheck

import (
	"fmt"

	"github.com/pkg/errors"

	"module/internal/ast"
	"module/internal/types"
)

// Kind classifies a checker diagnostic so callers can branch on it
// without string-matching the message.
type Kind string

const (
	Undeclared Kind = "undeclared"
	Mismatch   Kind = "mismatch"
	Arity      Kind = "arity"
	NoReturn   Kind = "noreturn"
	Redeclared Kind = "redeclared"
)

// Error is a user-facing diagnostic: a one-word Kind plus a rendered
// message naming the offending identifier. It is intentionally not
// wrapped by github.com/pkg/errors — it is meant to be printed as a
// single line, not a cause chain.
type Error struct {
	Kind    Kind
	Ident   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, ident, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Ident: ident, Message: fmt.Sprintf(format, args...)}
}

// structs and funcSig are resolved once up front so expression checking
// can look up field layouts and call signatures without re-walking the
// program.
type funcSig struct {
	params []types.Type
	ret    types.Type
}

// Checker holds the whole-program tables built before checking any
// function body.
type Checker struct {
	structs map[string]ast.StructDecl
	fields  map[string]map[string]types.Type
	funcs   map[string]funcSig
	topEnv  ast.Environment
}

// resolve looks an identifier up local-first, then global, per §3's name
// resolution rule.
func (c *Checker) resolve(name string, env ast.Environment) (types.Type, bool) {
	if t, ok := env[name]; ok {
		return t, true
	}
	t, ok := c.topEnv[name]
	return t, ok
}

// Check type-checks prog in place, filling in Function.LocalEnv and
// Program.TopEnv, and returns the first *Error encountered, if any.
func Check(prog *ast.Program) error {
	c := &Checker{
		structs: map[string]ast.StructDecl{},
		fields:  map[string]map[string]types.Type{},
		funcs:   map[string]funcSig{},
	}

	for _, s := range prog.Structs {
		if _, dup := c.structs[s.Id]; dup {
			return newErr(Redeclared, s.Id, "struct %q declared twice", s.Id)
		}
		c.structs[s.Id] = s
		fm := map[string]types.Type{}
		for _, f := range s.Fields {
			fm[f.Id] = f.Type
		}
		c.fields[s.Id] = fm
	}

	prog.TopEnv = ast.Environment{}
	for _, g := range prog.Globals {
		if _, dup := prog.TopEnv[g.Id]; dup {
			return newErr(Redeclared, g.Id, "global %q declared twice", g.Id)
		}
		if g.Type.IsStruct() {
			if _, ok := c.structs[g.Type.Struct]; !ok {
				return newErr(Undeclared, g.Type.Struct, "undeclared struct %q", g.Type.Struct)
			}
		}
		prog.TopEnv[g.Id] = g.Type
	}
	c.topEnv = prog.TopEnv

	foundMain := false
	for _, fn := range prog.Functions {
		if _, dup := c.funcs[fn.Id]; dup {
			return newErr(Redeclared, fn.Id, "function %q declared twice", fn.Id)
		}
		params := make([]types.Type, len(fn.Parameters))
		for i, p := range fn.Parameters {
			params[i] = p.Type
		}
		c.funcs[fn.Id] = funcSig{params: params, ret: fn.ReturnType}
		if fn.Id == "main" {
			foundMain = true
			if !fn.ReturnType.IsInt() {
				return newErr(Mismatch, "main", "function \"main\" must return int")
			}
		}
	}
	if !foundMain {
		return newErr(Undeclared, "main", "program has no \"main\" function")
	}

	for _, fn := range prog.Functions {
		if err := c.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkFunction(fn *ast.Function) error {
	env := ast.Environment{}
	for _, p := range fn.Parameters {
		if _, dup := env[p.Id]; dup {
			return newErr(Redeclared, p.Id, "parameter %q declared twice in %q", p.Id, fn.Id)
		}
		env[p.Id] = p.Type
	}
	for _, d := range fn.Declarations {
		if _, dup := env[d.Id]; dup {
			return newErr(Redeclared, d.Id, "local %q declared twice in %q", d.Id, fn.Id)
		}
		env[d.Id] = d.Type
	}
	fn.LocalEnv = env

	if err := c.checkStmts(fn, fn.Body, env); err != nil {
		return err
	}

	if fn.ReturnType.IsVoid() {
		if !returnsOnAllPaths(fn.Body) {
			fn.Body = append(fn.Body, &ast.Return{})
		}
	} else if !returnsOnAllPaths(fn.Body) {
		return newErr(NoReturn, fn.Id, "function %q does not return on all paths", fn.Id)
	}
	return nil
}

// returnsOnAllPaths is the structural check from type_checker.cpp: only a
// trailing Return, or an if/else whose both branches return, counts.
// Loops never count, since their body may run zero times.
func returnsOnAllPaths(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *ast.Return:
		return true
	case *ast.Conditional:
		if s.Else == nil {
			return false
		}
		return returnsOnAllPaths(s.Then) && returnsOnAllPaths(s.Else)
	default:
		return false
	}
}

func (c *Checker) checkStmts(fn *ast.Function, stmts []ast.Stmt, env ast.Environment) error {
	for _, s := range stmts {
		if err := c.checkStmt(fn, s, env); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStmt(fn *ast.Function, s ast.Stmt, env ast.Environment) error {
	switch s := s.(type) {
	case *ast.InvocationStmt:
		_, err := c.checkInvocation(s.Call, env)
		return err
	case *ast.AssignStmt:
		lt, err := c.checkLValue(s.LValue, env)
		if err != nil {
			return err
		}
		rt, err := c.checkExpr(s.Source, env)
		if err != nil {
			return err
		}
		if !types.Equal(lt, rt) {
			return newErr(Mismatch, "", "cannot assign %s to %s", rt, lt)
		}
		return nil
	case *ast.Conditional:
		gt, err := c.checkExpr(s.Guard, env)
		if err != nil {
			return err
		}
		if !gt.IsBool() {
			return newErr(Mismatch, "", "if guard must be bool, got %s", gt)
		}
		if err := c.checkStmts(fn, s.Then, env); err != nil {
			return err
		}
		if s.Else != nil {
			return c.checkStmts(fn, s.Else, env)
		}
		return nil
	case *ast.Loop:
		gt, err := c.checkExpr(s.Guard, env)
		if err != nil {
			return err
		}
		if !gt.IsBool() {
			return newErr(Mismatch, "", "while guard must be bool, got %s", gt)
		}
		return c.checkStmts(fn, s.Body, env)
	case *ast.Print:
		t, err := c.checkExpr(s.Expr, env)
		if err != nil {
			return err
		}
		if !t.IsInt() {
			return newErr(Mismatch, "", "print expects int, got %s", t)
		}
		return nil
	case *ast.PrintLn:
		t, err := c.checkExpr(s.Expr, env)
		if err != nil {
			return err
		}
		if !t.IsInt() {
			return newErr(Mismatch, "", "println expects int, got %s", t)
		}
		return nil
	case *ast.Delete:
		t, err := c.checkExpr(s.Expr, env)
		if err != nil {
			return err
		}
		if !t.IsStruct() && !t.IsArray() {
			return newErr(Mismatch, "", "delete expects a struct or array, got %s", t)
		}
		return nil
	case *ast.Return:
		if s.Expr == nil {
			if !fn.ReturnType.IsVoid() {
				return newErr(Mismatch, fn.Id, "function %q must return a value", fn.Id)
			}
			return nil
		}
		t, err := c.checkExpr(s.Expr, env)
		if err != nil {
			return err
		}
		if !types.Equal(t, fn.ReturnType) {
			return newErr(Mismatch, fn.Id, "function %q returns %s, got %s", fn.Id, fn.ReturnType, t)
		}
		return nil
	default:
		return errors.Errorf("typecheck: unhandled statement %T", s)
	}
}

func (c *Checker) checkLValue(lv ast.LValue, env ast.Environment) (types.Type, error) {
	switch lv := lv.(type) {
	case *ast.LIdent:
		t, ok := c.resolve(lv.Name, env)
		if !ok {
			return types.Type{}, newErr(Undeclared, lv.Name, "undeclared identifier %q", lv.Name)
		}
		return t, nil
	case *ast.LDot:
		t, err := c.checkLValue(lv.LValue, env)
		if err != nil {
			return types.Type{}, err
		}
		return c.fieldType(t, lv.Id)
	case *ast.LIndex:
		t, err := c.checkLValue(lv.LValue, env)
		if err != nil {
			return types.Type{}, err
		}
		if !t.IsArray() {
			return types.Type{}, newErr(Mismatch, "", "cannot index non-array type %s", t)
		}
		it, err := c.checkExpr(lv.Index, env)
		if err != nil {
			return types.Type{}, err
		}
		if !it.IsInt() {
			return types.Type{}, newErr(Mismatch, "", "array index must be int, got %s", it)
		}
		return types.IntT, nil
	default:
		return types.Type{}, errors.Errorf("typecheck: unhandled lvalue %T", lv)
	}
}

func (c *Checker) fieldType(structType types.Type, field string) (types.Type, error) {
	if !structType.IsStruct() {
		return types.Type{}, newErr(Mismatch, field, "cannot access field %q of non-struct type %s", field, structType)
	}
	fm, ok := c.fields[structType.Struct]
	if !ok {
		return types.Type{}, newErr(Undeclared, structType.Struct, "undeclared struct %q", structType.Struct)
	}
	ft, ok := fm[field]
	if !ok {
		return types.Type{}, newErr(Undeclared, field, "struct %q has no field %q", structType.Struct, field)
	}
	return ft, nil
}

func (c *Checker) checkInvocation(inv *ast.Invocation, env ast.Environment) (types.Type, error) {
	sig, ok := c.funcs[inv.Id]
	if !ok {
		return types.Type{}, newErr(Undeclared, inv.Id, "undeclared function %q", inv.Id)
	}
	if len(inv.Arguments) != len(sig.params) {
		return types.Type{}, newErr(Arity, inv.Id, "function %q expects %d arguments, got %d", inv.Id, len(sig.params), len(inv.Arguments))
	}
	for i, arg := range inv.Arguments {
		at, err := c.checkExpr(arg, env)
		if err != nil {
			return types.Type{}, err
		}
		if !types.Equal(at, sig.params[i]) {
			return types.Type{}, newErr(Mismatch, inv.Id, "argument %d of %q: expected %s, got %s", i, inv.Id, sig.params[i], at)
		}
	}
	return sig.ret, nil
}

func (c *Checker) checkExpr(e ast.Expr, env ast.Environment) (types.Type, error) {
	switch e := e.(type) {
	case *ast.Ident:
		t, ok := c.resolve(e.Name, env)
		if !ok {
			return types.Type{}, newErr(Undeclared, e.Name, "undeclared identifier %q", e.Name)
		}
		return t, nil
	case *ast.IntLit:
		return types.IntT, nil
	case *ast.BoolLit:
		return types.BoolT, nil
	case *ast.NullLit:
		return types.NullT, nil
	case *ast.Read:
		return types.IntT, nil
	case *ast.NewStruct:
		if _, ok := c.structs[e.Struct]; !ok {
			return types.Type{}, newErr(Undeclared, e.Struct, "undeclared struct %q", e.Struct)
		}
		return types.StructT(e.Struct), nil
	case *ast.NewArray:
		t, err := c.checkExpr(e.Size, env)
		if err != nil {
			return types.Type{}, err
		}
		if !t.IsInt() {
			return types.Type{}, newErr(Mismatch, "", "array size must be int, got %s", t)
		}
		return types.ArrayT, nil
	case *ast.Dot:
		t, err := c.checkExpr(e.Expr, env)
		if err != nil {
			return types.Type{}, err
		}
		return c.fieldType(t, e.Id)
	case *ast.Index:
		t, err := c.checkExpr(e.Left, env)
		if err != nil {
			return types.Type{}, err
		}
		if !t.IsArray() {
			return types.Type{}, newErr(Mismatch, "", "cannot index non-array type %s", t)
		}
		it, err := c.checkExpr(e.Index, env)
		if err != nil {
			return types.Type{}, err
		}
		if !it.IsInt() {
			return types.Type{}, newErr(Mismatch, "", "array index must be int, got %s", it)
		}
		return types.IntT, nil
	case *ast.Unary:
		t, err := c.checkExpr(e.Expr, env)
		if err != nil {
			return types.Type{}, err
		}
		switch e.Op {
		case ast.Neg:
			if !t.IsInt() {
				return types.Type{}, newErr(Mismatch, "", "unary - expects int, got %s", t)
			}
			return types.IntT, nil
		case ast.Not:
			if !t.IsBool() {
				return types.Type{}, newErr(Mismatch, "", "unary ! expects bool, got %s", t)
			}
			return types.BoolT, nil
		}
		return types.Type{}, errors.Errorf("typecheck: unhandled unary op %v", e.Op)
	case *ast.Binary:
		return c.checkBinary(e, env)
	case *ast.Invocation:
		return c.checkInvocation(e, env)
	default:
		return types.Type{}, errors.Errorf("typecheck: unhandled expression %T", e)
	}
}

func (c *Checker) checkBinary(e *ast.Binary, env ast.Environment) (types.Type, error) {
	lt, err := c.checkExpr(e.Left, env)
	if err != nil {
		return types.Type{}, err
	}
	rt, err := c.checkExpr(e.Right, env)
	if err != nil {
		return types.Type{}, err
	}
	switch e.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Div:
		if !lt.IsInt() || !rt.IsInt() {
			return types.Type{}, newErr(Mismatch, "", "arithmetic operator expects int operands, got %s and %s", lt, rt)
		}
		return types.IntT, nil
	case ast.Gt, ast.Ge, ast.Lt, ast.Le:
		if !lt.IsInt() || !rt.IsInt() {
			return types.Type{}, newErr(Mismatch, "", "comparison expects int operands, got %s and %s", lt, rt)
		}
		return types.BoolT, nil
	case ast.And, ast.Or:
		if !lt.IsBool() || !rt.IsBool() {
			return types.Type{}, newErr(Mismatch, "", "boolean operator expects bool operands, got %s and %s", lt, rt)
		}
		return types.BoolT, nil
	case ast.Eq, ast.Ne:
		if !types.Equal(lt, rt) {
			return types.Type{}, newErr(Mismatch, "", "cannot compare %s and %s", lt, rt)
		}
		return types.BoolT, nil
	default:
		return types.Type{}, errors.Errorf("typecheck: unhandled binary op %v", e.Op)
	}
}
