// Package deadcode implements unused-result elimination over AASM,
// following caseyavila/mini's unused_result.cpp (§4.7): repeatedly drop
// any instruction whose result is never used, until a pass removes
// nothing.
package deadcode

import "module/internal/aasm"

// Run mutates fn in place.
func Run(fn *aasm.Function) {
	for removeOnce(fn) {
	}
}

func removeOnce(fn *aasm.Function) bool {
	used := map[aasm.Operand]bool{}
	for _, instrs := range fn.Instrs {
		for _, ins := range instrs {
			for _, op := range aasm.Uses(ins) {
				used[*op] = true
			}
		}
	}

	changed := false
	for b, instrs := range fn.Instrs {
		var kept []aasm.Ins
		for _, ins := range instrs {
			if isRemovable(ins) {
				def, _ := aasm.Def(ins)
				if !used[def] {
					changed = true
					continue
				}
			}
			kept = append(kept, ins)
		}
		fn.Instrs[b] = kept
	}
	return changed
}

// isRemovable reports whether ins is a candidate for unused-result
// elimination at all. Store/Free/Ret/Jump/Br and a void Call are never
// candidates, since they're kept for their effect rather than their
// result; every other instruction (Load, Binary, Call-with-target, NewS,
// NewA, Gep, Phi) is dropped once its result has no remaining use.
func isRemovable(ins aasm.Ins) bool {
	switch ins := ins.(type) {
	case *aasm.Store, *aasm.Free, *aasm.Ret, *aasm.Jump, *aasm.Br:
		return false
	case *aasm.Call:
		return ins.Target != nil
	default:
		_, ok := aasm.Def(ins)
		return ok
	}
}
