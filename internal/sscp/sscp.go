// Package sscp implements sparse simple constant propagation over SSA
// AASM, following caseyavila/mini's sscp.cpp (§4.6).
package sscp

import (
	"module/internal/aasm"
	"module/internal/cfg"
)

// lattice is the 3-level SSCP lattice: Top (not yet known), a concrete
// constant, or Bot (known not to be a compile-time constant).
type lattice interface{ isLattice() }

type (
	top  struct{}
	bot  struct{}
	null struct{}
	vint int64
	vbl  bool
)

func (top) isLattice()  {}
func (bot) isLattice()  {}
func (null) isLattice() {}
func (vint) isLattice() {}
func (vbl) isLattice()  {}

type defSite struct {
	block *cfg.Block
	index int
}

type useSite struct {
	block *cfg.Block
	index int
}

// Run mutates fn in place, folding every operand that SSCP can prove
// constant and collapsing any Br whose guard becomes a concrete bool
// into a Jump.
func Run(fn *aasm.Function) {
	blocks := cfg.Blocks(fn.Entry)
	defMap := definitionMap(fn, blocks)
	useMap := useMapOf(fn, blocks, defMap)
	valueMap := map[aasm.Operand]lattice{}

	for op, site := range defMap {
		switch fn.Instrs[site.block][site.index].(type) {
		case *aasm.Binary, *aasm.Phi:
			valueMap[op] = top{}
		}
	}

	for {
		newConst := updateValueMap(fn, defMap, valueMap)
		if len(newConst) == 0 {
			break
		}
		for op := range newConst {
			for _, use := range useMap[op] {
				fn.Instrs[use.block][use.index] = rewriteIns(fn.Instrs[use.block][use.index], valueMap)
			}
		}
	}

	// A guard that was a literal from the start never appears in useMap.
	for _, b := range blocks {
		for i, ins := range fn.Instrs[b] {
			if _, ok := ins.(*aasm.Br); ok {
				fn.Instrs[b][i] = rewriteIns(ins, valueMap)
			}
		}
	}
}

func definitionMap(fn *aasm.Function, blocks []*cfg.Block) map[aasm.Operand]defSite {
	defs := map[aasm.Operand]defSite{}
	for _, b := range blocks {
		for i, ins := range fn.Instrs[b] {
			if op, ok := aasm.Def(ins); ok {
				if _, isVar := op.Value.(aasm.Var); isVar {
					defs[op] = defSite{block: b, index: i}
				}
			}
		}
	}
	return defs
}

func useMapOf(fn *aasm.Function, blocks []*cfg.Block, defMap map[aasm.Operand]defSite) map[aasm.Operand][]useSite {
	uses := map[aasm.Operand][]useSite{}
	for _, b := range blocks {
		for i, ins := range fn.Instrs[b] {
			for _, op := range aasm.Uses(ins) {
				if _, ok := defMap[*op]; ok {
					uses[*op] = append(uses[*op], useSite{block: b, index: i})
				}
			}
		}
	}
	return uses
}

func opValue(op aasm.Operand, valueMap map[aasm.Operand]lattice) lattice {
	switch v := op.Value.(type) {
	case aasm.Imm:
		return vint(v.Val)
	case aasm.ImmB:
		return vbl(v.Val)
	case aasm.Glob:
		return bot{}
	case aasm.Id:
		return bot{}
	case aasm.Var:
		if val, ok := valueMap[op]; ok {
			return val
		}
		return top{}
	default:
		return null{}
	}
}

func boolEq(v lattice, b bool) bool {
	vb, ok := v.(vbl)
	return ok && bool(vb) == b
}

// updateValueMap re-evaluates every currently-Top operand's defining
// Binary or Phi and returns the set of operands that just became a
// concrete constant (Top -> vint/vbl/null).
func updateValueMap(fn *aasm.Function, defMap map[aasm.Operand]defSite, valueMap map[aasm.Operand]lattice) map[aasm.Operand]bool {
	newConst := map[aasm.Operand]bool{}

	for op, val := range valueMap {
		if _, isTop := val.(top); !isTop {
			continue
		}
		site := defMap[op]
		ins := fn.Instrs[site.block][site.index]

		switch ins := ins.(type) {
		case *aasm.Binary:
			lv := opValue(ins.Left, valueMap)
			rv := opValue(ins.Right, valueMap)

			if ins.Op == aasm.Or && (boolEq(lv, true) || boolEq(rv, true)) {
				valueMap[op] = vbl(true)
				newConst[op] = true
				continue
			}
			if ins.Op == aasm.And && (boolEq(lv, false) || boolEq(rv, false)) {
				valueMap[op] = vbl(false)
				newConst[op] = true
				continue
			}
			if _, ok := lv.(bot); ok {
				valueMap[op] = bot{}
				continue
			}
			if _, ok := rv.(bot); ok {
				valueMap[op] = bot{}
				continue
			}
			if _, ok := lv.(top); ok {
				continue
			}
			if _, ok := rv.(top); ok {
				continue
			}

			result, ok := foldBinary(ins.Op, lv, rv)
			if !ok {
				valueMap[op] = bot{}
				continue
			}
			valueMap[op] = result
			newConst[op] = true

		case *aasm.Phi:
			if len(ins.Bindings) == 0 {
				continue
			}
			phiVal := opValue(ins.Bindings[0].Value, valueMap)
			for _, bind := range ins.Bindings {
				bv := opValue(bind.Value, valueMap)
				if _, ok := bv.(bot); ok {
					phiVal = bot{}
					continue
				}
				if _, ok := bv.(top); ok {
					if _, isBot := phiVal.(bot); !isBot {
						phiVal = top{}
					}
					continue
				}
				if phiVal != bv {
					if _, isTop := phiVal.(top); !isTop {
						phiVal = bot{}
					}
				}
			}
			valueMap[op] = phiVal
			switch phiVal.(type) {
			case vint, vbl, null:
				newConst[op] = true
			}
		}
	}
	return newConst
}

func foldBinary(op aasm.BinOp, lv, rv lattice) (lattice, bool) {
	switch op {
	case aasm.Add:
		return vint(lv.(vint) + rv.(vint)), true
	case aasm.Sub:
		return vint(lv.(vint) - rv.(vint)), true
	case aasm.Mul:
		return vint(lv.(vint) * rv.(vint)), true
	case aasm.Div:
		if rv.(vint) == 0 {
			return bot{}, false
		}
		return vint(lv.(vint) / rv.(vint)), true
	case aasm.And:
		return vbl(lv.(vbl) && rv.(vbl)), true
	case aasm.Or:
		return vbl(lv.(vbl) || rv.(vbl)), true
	case aasm.Xor:
		return vbl(lv.(vbl) != rv.(vbl)), true
	case aasm.Gt:
		return vbl(lv.(vint) > rv.(vint)), true
	case aasm.Ge:
		return vbl(lv.(vint) >= rv.(vint)), true
	case aasm.Lt:
		return vbl(lv.(vint) < rv.(vint)), true
	case aasm.Le:
		return vbl(lv.(vint) <= rv.(vint)), true
	case aasm.Ne:
		return vbl(lv != rv), true
	case aasm.Eq:
		return vbl(lv == rv), true
	default:
		return bot{}, false
	}
}

// rewriteIns substitutes every operand SSCP has proven constant with an
// Imm/ImmB literal, and collapses a Br whose Guard just became constant
// into an unconditional Jump.
func rewriteIns(ins aasm.Ins, valueMap map[aasm.Operand]lattice) aasm.Ins {
	for _, op := range aasm.Uses(ins) {
		val, ok := valueMap[*op]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case vint:
			op.Value = aasm.Imm{Val: int64(v)}
		case vbl:
			op.Value = aasm.ImmB{Val: bool(v)}
		}
	}
	if br, ok := ins.(*aasm.Br); ok {
		if b, ok := br.Guard.Value.(aasm.ImmB); ok {
			if b.Val {
				return &aasm.Jump{Next: br.True}
			}
			return &aasm.Jump{Next: br.False}
		}
	}
	return ins
}
