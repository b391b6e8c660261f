// Package tailcall rewrites same-function tail calls into a loop back
// edge, following caseyavila/mini's tail_rec.cpp (§4.4). It runs on the
// lowered AASM, before SSA construction.
package tailcall

import (
	"module/internal/aasm"
	"module/internal/cfg"
)

// Rewrite mutates fn in place, replacing any tail call to itself with a
// parameter-shuffle-and-jump-to-entry sequence, and returns the (possibly
// new) entry block. A function with no self tail call is returned
// unchanged, same as tail_rec_func leaving func.entry_ref alone.
func Rewrite(fn *aasm.Function) *cfg.Block {
	sink := retSinkOf(fn)
	if sink == nil {
		return fn.Entry
	}

	tailed := false
	newEntry := cfg.NewBasicBlock(fn.Entry)

	cfg.Traverse(fn.Entry, func(b *cfg.Block) {
		if b.Kind != cfg.Basic || b.Next != sink {
			return
		}
		instrs := fn.Instrs[b]
		// The terminating Jump to sink is always last; the tail-call
		// candidate, if any, is the instruction right before it (before
		// the Store of its result into _return, for a non-Void function).
		tail := len(instrs) - 2
		if !fn.ReturnType.IsVoid() {
			tail--
		}
		if tail < 0 {
			return
		}
		// Lowering already linearizes call arguments into prior
		// instructions, so unlike tail_rec.cpp there is no nested call
		// expression to exclude here by the time AASM exists.
		call, ok := tailCallIn(instrs[tail:], fn)
		if !ok || call.Id != fn.Id {
			return
		}

		args := call.Args
		tmpNames := make([]string, len(fn.Params))
		rewritten := append([]aasm.Ins{}, instrs[:tail]...)
		for i, p := range fn.Params {
			tmp := "_" + p.Id
			tmpNames[i] = tmp
			fn.Locals[tmp] = p.Type
			rewritten = append(rewritten, &aasm.Store{
				Ptr:   aasm.Operand{Value: aasm.Id{Name: tmp}, Type: p.Type},
				Value: args[i],
			})
		}
		for i, p := range fn.Params {
			rewritten = append(rewritten, &aasm.Store{
				Ptr:   aasm.Operand{Value: aasm.Id{Name: p.Id}, Type: p.Type},
				Value: aasm.Operand{Value: aasm.Id{Name: tmpNames[i]}, Type: p.Type},
			})
		}
		rewritten = append(rewritten, &aasm.Jump{Next: fn.Entry})
		fn.Instrs[b] = rewritten
		b.Next = fn.Entry
		tailed = true
	})

	if !tailed {
		return fn.Entry
	}
	fn.Instrs[newEntry] = []aasm.Ins{&aasm.Jump{Next: fn.Entry}}
	fn.Entry = newEntry
	return newEntry
}

// retSinkOf finds fn's return sink, the unique cfg.Block of Kind Return.
func retSinkOf(fn *aasm.Function) *cfg.Block {
	var sink *cfg.Block
	cfg.Traverse(fn.Entry, func(b *cfg.Block) {
		if b.Kind == cfg.Return {
			sink = b
		}
	})
	return sink
}

// tailCallIn recognizes the instructions a tail-positioned block ends on
// just before its jump to the sink, starting at instrs[0]: for a Void
// function, a bare Call to fn; for any other, a Call whose Target is
// then stored into the _return pseudo-variable.
func tailCallIn(instrs []aasm.Ins, fn *aasm.Function) (*aasm.Call, bool) {
	call, ok := instrs[0].(*aasm.Call)
	if !ok {
		return nil, false
	}
	if fn.ReturnType.IsVoid() {
		return call, call.Target == nil
	}
	if call.Target == nil {
		return nil, false
	}
	st, ok := instrs[1].(*aasm.Store)
	if !ok || st.Value != *call.Target {
		return nil, false
	}
	id, ok := st.Ptr.Value.(aasm.Id)
	return call, ok && id.Name == "_return"
}
