package parser

import (
	"fmt"

	"module/internal/ast"
	"module/internal/types"
)

// parser is a single-pass, single-token-lookahead recursive-descent
// parser over a pre-tokenized buffer. It never backtracks: every
// production either consumes exactly what it expects or returns an
// error naming the line and the token it found instead.
type parser struct {
	toks []token
	pos  int
}

// Parse turns Mini source text into an *ast.Program. It implements the
// grammar the concrete-syntax side of caseyavila/mini's ANTLR file
// describes, reduced to what the rest of this pipeline consumes.
func Parse(src string) (*ast.Program, error) {
	toks, err := tokenizeAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseProgram()
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) peek() token { return p.cur() }

func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	if !p.at(k) {
		return token{}, fmt.Errorf("line %d: expected %s, found %s", p.cur().line, k, p.describeCur())
	}
	return p.advance(), nil
}

func (p *parser) describeCur() string {
	if p.at(tIdent) || p.at(tInt) {
		return fmt.Sprintf("%q", p.cur().text)
	}
	return p.cur().kind.String()
}

// parseProgram consumes struct declarations, global var declarations
// and function definitions in any order, per §3: "A program is: type
// declarations..., global declarations, and function definitions...".
func (p *parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.at(tEOF) {
		switch {
		case p.at(tStruct):
			sd, err := p.parseStructDecl()
			if err != nil {
				return nil, err
			}
			prog.Structs = append(prog.Structs, sd)
		case p.at(tVar):
			g, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			prog.Globals = append(prog.Globals, g)
		case p.at(tFunc):
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			prog.Functions = append(prog.Functions, fn)
		default:
			return nil, fmt.Errorf("line %d: expected struct, var or func declaration, found %s", p.cur().line, p.describeCur())
		}
	}
	return prog, nil
}

func (p *parser) parseStructDecl() (ast.StructDecl, error) {
	if _, err := p.expect(tStruct); err != nil {
		return ast.StructDecl{}, err
	}
	name, err := p.expect(tIdent)
	if err != nil {
		return ast.StructDecl{}, err
	}
	if _, err := p.expect(tLBrace); err != nil {
		return ast.StructDecl{}, err
	}
	var fields []ast.Param
	for !p.at(tRBrace) {
		f, err := p.parseVarDecl()
		if err != nil {
			return ast.StructDecl{}, err
		}
		fields = append(fields, f)
	}
	if _, err := p.expect(tRBrace); err != nil {
		return ast.StructDecl{}, err
	}
	return ast.StructDecl{Id: name.text, Fields: fields}, nil
}

// parseVarDecl parses `var id : type ;`, used for both struct fields
// and global/local declarations.
func (p *parser) parseVarDecl() (ast.Param, error) {
	if _, err := p.expect(tVar); err != nil {
		return ast.Param{}, err
	}
	name, err := p.expect(tIdent)
	if err != nil {
		return ast.Param{}, err
	}
	if _, err := p.expect(tColon); err != nil {
		return ast.Param{}, err
	}
	t, err := p.parseType()
	if err != nil {
		return ast.Param{}, err
	}
	if _, err := p.expect(tSemi); err != nil {
		return ast.Param{}, err
	}
	return ast.Param{Id: name.text, Type: t}, nil
}

func (p *parser) parseType() (types.Type, error) {
	switch {
	case p.at(tIntType):
		p.advance()
		return types.IntT, nil
	case p.at(tBoolType):
		p.advance()
		return types.BoolT, nil
	case p.at(tLBracket):
		p.advance()
		if _, err := p.expect(tIntType); err != nil {
			return types.Type{}, err
		}
		if _, err := p.expect(tRBracket); err != nil {
			return types.Type{}, err
		}
		return types.ArrayT, nil
	case p.at(tIdent):
		name := p.advance().text
		return types.StructT(name), nil
	}
	return types.Type{}, fmt.Errorf("line %d: expected a type, found %s", p.cur().line, p.describeCur())
}

func (p *parser) parseFunction() (*ast.Function, error) {
	if _, err := p.expect(tFunc); err != nil {
		return nil, err
	}
	name, err := p.expect(tIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tLParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(tRParen) {
		if len(params) > 0 {
			if _, err := p.expect(tComma); err != nil {
				return nil, err
			}
		}
		id, err := p.expect(tIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tColon); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Id: id.text, Type: t})
	}
	if _, err := p.expect(tRParen); err != nil {
		return nil, err
	}
	ret := types.VoidT
	if p.at(tColon) {
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tLBrace); err != nil {
		return nil, err
	}
	var decls []ast.Param
	for p.at(tVar) {
		d, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	body, err := p.parseStmts(tRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRBrace); err != nil {
		return nil, err
	}
	return &ast.Function{
		Id:           name.text,
		Parameters:   params,
		ReturnType:   ret,
		Declarations: decls,
		Body:         body,
	}, nil
}

func (p *parser) parseStmts(end tokenKind) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.at(end) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) parseStmt() (ast.Stmt, error) {
	switch {
	case p.at(tIf):
		return p.parseIf()
	case p.at(tWhile):
		return p.parseWhile()
	case p.at(tPrint):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemi); err != nil {
			return nil, err
		}
		return &ast.Print{Expr: e}, nil
	case p.at(tPrintLn):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemi); err != nil {
			return nil, err
		}
		return &ast.PrintLn{Expr: e}, nil
	case p.at(tDelete):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemi); err != nil {
			return nil, err
		}
		return &ast.Delete{Expr: e}, nil
	case p.at(tReturn):
		p.advance()
		if p.at(tSemi) {
			p.advance()
			return &ast.Return{}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemi); err != nil {
			return nil, err
		}
		return &ast.Return{Expr: e}, nil
	case p.at(tIdent):
		return p.parseIdentStmt()
	}
	return nil, fmt.Errorf("line %d: expected a statement, found %s", p.cur().line, p.describeCur())
}

func (p *parser) parseIf() (ast.Stmt, error) {
	p.advance()
	if _, err := p.expect(tLParen); err != nil {
		return nil, err
	}
	guard, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tLBrace); err != nil {
		return nil, err
	}
	then, err := p.parseStmts(tRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRBrace); err != nil {
		return nil, err
	}
	var els []ast.Stmt
	if p.at(tElse) {
		p.advance()
		if _, err := p.expect(tLBrace); err != nil {
			return nil, err
		}
		els, err = p.parseStmts(tRBrace)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBrace); err != nil {
			return nil, err
		}
	}
	return &ast.Conditional{Guard: guard, Then: then, Else: els}, nil
}

func (p *parser) parseWhile() (ast.Stmt, error) {
	p.advance()
	if _, err := p.expect(tLParen); err != nil {
		return nil, err
	}
	guard, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tLBrace); err != nil {
		return nil, err
	}
	body, err := p.parseStmts(tRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRBrace); err != nil {
		return nil, err
	}
	return &ast.Loop{Guard: guard, Body: body}, nil
}

// parseIdentStmt disambiguates a bare-identifier-leading statement:
// `id ( ... )` is an invocation statement, anything else starting with
// an lvalue is an assignment (whose source may be an expression, `new`,
// or `read`).
func (p *parser) parseIdentStmt() (ast.Stmt, error) {
	name := p.advance().text
	if p.at(tLParen) {
		call, err := p.parseCallArgs(name)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemi); err != nil {
			return nil, err
		}
		return &ast.InvocationStmt{Call: call}, nil
	}

	var lv ast.LValue = &ast.LIdent{Name: name}
	for {
		switch {
		case p.at(tDot):
			p.advance()
			field, err := p.expect(tIdent)
			if err != nil {
				return nil, err
			}
			lv = &ast.LDot{LValue: lv, Id: field.text}
		case p.at(tLBracket):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRBracket); err != nil {
				return nil, err
			}
			lv = &ast.LIndex{LValue: lv, Index: idx}
		default:
			goto assign
		}
	}
assign:
	if _, err := p.expect(tAssign); err != nil {
		return nil, err
	}
	src, err := p.parseAssignSource()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemi); err != nil {
		return nil, err
	}
	return &ast.AssignStmt{LValue: lv, Source: src}, nil
}

// parseAssignSource parses an assignment's right-hand side: `read`,
// `new Id`, `new [ size ]`, or a general expression.
func (p *parser) parseAssignSource() (ast.Expr, error) {
	if p.at(tRead) {
		p.advance()
		return &ast.Read{}, nil
	}
	if p.at(tNew) {
		return p.parseNew()
	}
	return p.parseExpr()
}

func (p *parser) parseNew() (ast.Expr, error) {
	p.advance()
	if p.at(tLBracket) {
		p.advance()
		size, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBracket); err != nil {
			return nil, err
		}
		return &ast.NewArray{Size: size}, nil
	}
	name, err := p.expect(tIdent)
	if err != nil {
		return nil, err
	}
	return &ast.NewStruct{Struct: name.text}, nil
}

func (p *parser) parseCallArgs(name string) (*ast.Invocation, error) {
	if _, err := p.expect(tLParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(tRParen) {
		if len(args) > 0 {
			if _, err := p.expect(tComma); err != nil {
				return nil, err
			}
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if _, err := p.expect(tRParen); err != nil {
		return nil, err
	}
	return &ast.Invocation{Id: name, Arguments: args}, nil
}

// Expression grammar, precedence climbing weakest-to-strongest:
// or > and > equality > relational > additive > multiplicative
// > unary > postfix > primary.

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(tAnd) {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.And, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(tEq) || p.at(tNe) {
		op := ast.Eq
		if p.at(tNe) {
			op = ast.Ne
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(tLt) || p.at(tLe) || p.at(tGt) || p.at(tGe) {
		var op ast.BinaryOp
		switch {
		case p.at(tLt):
			op = ast.Lt
		case p.at(tLe):
			op = ast.Le
		case p.at(tGt):
			op = ast.Gt
		case p.at(tGe):
			op = ast.Ge
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(tPlus) || p.at(tMinus) {
		op := ast.Add
		if p.at(tMinus) {
			op = ast.Sub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tStar) || p.at(tSlash) {
		op := ast.Mul
		if p.at(tSlash) {
			op = ast.Div
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.at(tMinus) {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.Neg, Expr: e}, nil
	}
	if p.at(tNot) {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.Not, Expr: e}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tDot):
			p.advance()
			field, err := p.expect(tIdent)
			if err != nil {
				return nil, err
			}
			e = &ast.Dot{Expr: e, Id: field.text}
		case p.at(tLBracket):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRBracket); err != nil {
				return nil, err
			}
			e = &ast.Index{Left: e, Index: idx}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	switch {
	case p.at(tInt):
		t := p.advance()
		return &ast.IntLit{Value: t.ival}, nil
	case p.at(tTrue):
		p.advance()
		return &ast.BoolLit{Value: true}, nil
	case p.at(tFalse):
		p.advance()
		return &ast.BoolLit{Value: false}, nil
	case p.at(tNull):
		p.advance()
		return &ast.NullLit{}, nil
	case p.at(tLParen):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen); err != nil {
			return nil, err
		}
		return e, nil
	case p.at(tIdent):
		name := p.advance().text
		if p.at(tLParen) {
			return p.parseCallArgs(name)
		}
		return &ast.Ident{Name: name}, nil
	}
	return nil, fmt.Errorf("line %d: expected an expression, found %s", p.cur().line, p.describeCur())
}
