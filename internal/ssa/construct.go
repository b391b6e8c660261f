package ssa

import (
	"sort"

	"module/internal/aasm"
	"module/internal/cfg"
	"module/internal/types"
)

// phiSite is a Phi instruction still being built: its bindings are
// filled in as each predecessor finishes renaming, and its variable name
// is kept alongside it only for this pass's own bookkeeping (the final
// aasm.Phi never stores it — an SSA value's name doesn't matter once
// every reference to it is by Var number).
type phiSite struct {
	varName string
	ins     *aasm.Phi
}

// Construct promotes every Id-addressed local in fn into SSA form: it
// inserts Phi nodes at the iterated dominance frontier of each
// variable's assignments, then replaces every read of a promoted local
// with the value (a Var or an immediate) that reaches it, removing the
// Load/Store pairs that used to
// stand in for memory access. Loads/Stores through a Var or Glob address
// (struct fields, array elements, globals) are left untouched — only
// Id-addressed locals are memory-promoted, exactly as caseyavila/mini's
// ssa_function does.
func Construct(fn *aasm.Function) {
	blocks := cfg.Blocks(fn.Entry)
	preds, _ := cfg.PredsSuccs(fn.Entry)
	dom := dominators(blocks, fn.Entry, preds)
	idom := immediateDominators(blocks, fn.Entry, dom)
	df := dominanceFrontiers(blocks, preds, idom)
	doms := children(blocks, fn.Entry, idom)

	counter := maxVarNum(fn) + 1

	defBlocks := definingBlocks(fn, blocks)
	phis := placePhis(fn, blocks, defBlocks, df, &counter)

	paramVars := map[string]int{}
	stack := map[string][]aasm.Operand{}
	for name, t := range fn.Locals {
		if _, isParam := paramSet(fn)[name]; isParam {
			stack[name] = []aasm.Operand{{Value: aasm.Var{Num: counter}, Type: t}}
			paramVars[name] = counter
			counter++
		} else {
			stack[name] = []aasm.Operand{zeroValue(t)}
		}
	}
	fn.ParamVars = paramVars

	renameBlock(fn, fn.Entry, stack, doms, phis, &counter)
}

func paramSet(fn *aasm.Function) map[string]bool {
	m := map[string]bool{}
	for _, p := range fn.Params {
		m[p.Id] = true
	}
	return m
}

func zeroValue(t types.Type) aasm.Operand {
	switch t.Kind {
	case types.Bool:
		return aasm.Operand{Value: aasm.ImmB{Val: false}, Type: t}
	case types.Int:
		return aasm.Operand{Value: aasm.Imm{Val: 0}, Type: t}
	default:
		return aasm.Operand{Value: aasm.NullOp{}, Type: t}
	}
}

func maxVarNum(fn *aasm.Function) int {
	max := 0
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			if d, ok := aasm.Def(ins); ok {
				if v, ok := d.Value.(aasm.Var); ok && v.Num > max {
					max = v.Num
				}
			}
			for _, u := range aasm.Uses(ins) {
				if v, ok := u.Value.(aasm.Var); ok && v.Num > max {
					max = v.Num
				}
			}
		}
	}
	return max
}

// definingBlocks maps each promotable local name to the set of blocks
// that Store into it.
func definingBlocks(fn *aasm.Function, blocks []*cfg.Block) map[string]map[*cfg.Block]bool {
	defs := map[string]map[*cfg.Block]bool{}
	for _, b := range blocks {
		for _, ins := range fn.Instrs[b] {
			st, ok := ins.(*aasm.Store)
			if !ok {
				continue
			}
			id, ok := st.Ptr.Value.(aasm.Id)
			if !ok {
				continue
			}
			if _, ok := fn.Locals[id.Name]; !ok {
				continue
			}
			if defs[id.Name] == nil {
				defs[id.Name] = map[*cfg.Block]bool{}
			}
			defs[id.Name][b] = true
		}
	}
	return defs
}

// placePhis runs the standard iterated-dominance-frontier worklist per
// variable and prepends the resulting Phi instructions to each block's
// instruction list.
func placePhis(fn *aasm.Function, blocks []*cfg.Block, defBlocks map[string]map[*cfg.Block]bool, df map[*cfg.Block]map[*cfg.Block]bool, counter *int) map[*cfg.Block][]*phiSite {
	sites := map[*cfg.Block][]*phiSite{}
	hasPhi := map[string]map[*cfg.Block]bool{}

	order := make([]string, 0, len(fn.Locals))
	for name := range fn.Locals {
		order = append(order, name)
	}
	sort.Strings(order) // deterministic iteration across runs

	for _, name := range order {
		t := fn.Locals[name]
		worklist := make([]*cfg.Block, 0, len(defBlocks[name]))
		for b := range defBlocks[name] {
			worklist = append(worklist, b)
		}
		sort.Slice(worklist, func(i, j int) bool { return worklist[i].ID < worklist[j].ID })
		hasPhi[name] = map[*cfg.Block]bool{}

		for len(worklist) > 0 {
			b := worklist[0]
			worklist = worklist[1:]
			var frontier []*cfg.Block
			for d := range df[b] {
				frontier = append(frontier, d)
			}
			sort.Slice(frontier, func(i, j int) bool { return frontier[i].ID < frontier[j].ID })
			for _, d := range frontier {
				if hasPhi[name][d] {
					continue
				}
				target := aasm.Operand{Value: aasm.Var{Num: *counter}, Type: t}
				*counter++
				phi := &aasm.Phi{Target: target}
				sites[d] = append(sites[d], &phiSite{varName: name, ins: phi})
				hasPhi[name][d] = true
				if !defBlocks[name][d] {
					worklist = append(worklist, d)
				}
			}
		}
	}
	for b, ps := range sites {
		var phiInstrs []aasm.Ins
		for _, p := range ps {
			phiInstrs = append(phiInstrs, p.ins)
		}
		fn.Instrs[b] = append(phiInstrs, fn.Instrs[b]...)
	}
	return sites
}

// renameBlock is the dominator-tree DFS from ssa.cpp's rename_cfg: the
// stack map is copied on entry to every recursive call so a sibling
// subtree never observes definitions made by another, matching the
// original's pass-by-value stack (which in C++ deep-copies automatically;
// Go requires doing that copy explicitly since maps and slices are
// reference types).
func renameBlock(fn *aasm.Function, b *cfg.Block, stack map[string][]aasm.Operand, doms map[*cfg.Block][]*cfg.Block, phis map[*cfg.Block][]*phiSite, counter *int) {
	local := cloneStack(stack)

	for _, site := range phis[b] {
		local[site.varName] = append(local[site.varName], site.ins.Target)
	}

	replace := map[int]aasm.Operand{}
	var out []aasm.Ins
	skipPhis := len(phis[b])
	for i, ins := range fn.Instrs[b] {
		if i < skipPhis {
			out = append(out, ins)
			continue
		}
		// Id-promotion is checked against the instruction's raw operands,
		// before substituteUses has a chance to rewrite Ptr away from Id
		// (every local's stack is seeded non-empty, so the generic Id
		// branch below would otherwise always fire first and the
		// promoted-local folding below would never see an Id Ptr again).
		if ld, ok := ins.(*aasm.Load); ok {
			if id, ok := ld.Ptr.Value.(aasm.Id); ok {
				if _, promoted := fn.Locals[id.Name]; promoted {
					target, ok := ld.Target.Value.(aasm.Var)
					if ok {
						replace[target.Num] = topOf(local, id.Name)
					}
					continue
				}
			}
		}
		if st, ok := ins.(*aasm.Store); ok {
			if id, ok := st.Ptr.Value.(aasm.Id); ok {
				if _, promoted := fn.Locals[id.Name]; promoted {
					substituteOperand(&st.Value, replace, local)
					local[id.Name] = append(local[id.Name], st.Value)
					continue
				}
			}
		}

		substituteUses(ins, replace, local)
		out = append(out, ins)
	}
	fn.Instrs[b] = out

	for _, s := range cfg.Succs(b) {
		if s == nil {
			continue
		}
		for _, site := range phis[s] {
			site.ins.Bindings = append(site.ins.Bindings, aasm.PhiBinding{
				Pred:  b,
				Value: topOf(local, site.varName),
			})
		}
	}

	for _, child := range doms[b] {
		renameBlock(fn, child, local, doms, phis, counter)
	}
}

func topOf(stack map[string][]aasm.Operand, name string) aasm.Operand {
	s := stack[name]
	if len(s) == 0 {
		return aasm.Operand{}
	}
	return s[len(s)-1]
}

func substituteUses(ins aasm.Ins, replace map[int]aasm.Operand, stack map[string][]aasm.Operand) {
	for _, op := range aasm.Uses(ins) {
		substituteOperand(op, replace, stack)
	}
}

func substituteOperand(op *aasm.Operand, replace map[int]aasm.Operand, stack map[string][]aasm.Operand) {
	if v, ok := op.Value.(aasm.Var); ok {
		if r, ok := replace[v.Num]; ok {
			*op = r
		}
		return
	}
	if id, ok := op.Value.(aasm.Id); ok {
		if s, ok := stack[id.Name]; ok && len(s) > 0 {
			*op = s[len(s)-1]
		}
	}
}

func cloneStack(stack map[string][]aasm.Operand) map[string][]aasm.Operand {
	out := make(map[string][]aasm.Operand, len(stack))
	for k, v := range stack {
		cp := make([]aasm.Operand, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
