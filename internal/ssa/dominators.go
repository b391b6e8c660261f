// Package ssa builds dominator information and promotes Mini's
// Id-addressed locals into SSA values, following the classical Cytron,
// Ferrante, Rosen & Wegman construction as implemented in
// caseyavila/mini's ssa.cpp (§4.5).
package ssa

import "module/internal/cfg"

// dominators computes, for every reachable block, the set of blocks
// that dominate it, via the textbook iterative fixed-point dataflow:
// Dom(entry) = {entry}; Dom(b) = {b} ∪ ⋂ Dom(p) for every predecessor p.
func dominators(blocks []*cfg.Block, entry *cfg.Block, preds map[*cfg.Block][]*cfg.Block) map[*cfg.Block]map[*cfg.Block]bool {
	all := map[*cfg.Block]bool{}
	for _, b := range blocks {
		all[b] = true
	}

	dom := map[*cfg.Block]map[*cfg.Block]bool{}
	for _, b := range blocks {
		if b == entry {
			dom[b] = map[*cfg.Block]bool{entry: true}
			continue
		}
		dom[b] = map[*cfg.Block]bool{}
		for k := range all {
			dom[b][k] = true
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range blocks {
			if b == entry {
				continue
			}
			var next map[*cfg.Block]bool
			for _, p := range preds[b] {
				if next == nil {
					next = map[*cfg.Block]bool{}
					for k := range dom[p] {
						next[k] = true
					}
					continue
				}
				for k := range next {
					if !dom[p][k] {
						delete(next, k)
					}
				}
			}
			if next == nil {
				next = map[*cfg.Block]bool{}
			}
			next[b] = true
			if !setEqual(next, dom[b]) {
				dom[b] = next
				changed = true
			}
		}
	}
	return dom
}

func setEqual(a, b map[*cfg.Block]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// immediateDominators derives each block's unique immediate dominator
// from its dominator set by pairwise elimination: idom(b) is the strict
// dominator of b that is itself dominated by every other strict
// dominator of b.
func immediateDominators(blocks []*cfg.Block, entry *cfg.Block, dom map[*cfg.Block]map[*cfg.Block]bool) map[*cfg.Block]*cfg.Block {
	idom := map[*cfg.Block]*cfg.Block{}
	for _, b := range blocks {
		if b == entry {
			continue
		}
		var strict []*cfg.Block
		for d := range dom[b] {
			if d != b {
				strict = append(strict, d)
			}
		}
		for _, cand := range strict {
			dominatesAllOthers := true
			for _, other := range strict {
				if other == cand {
					continue
				}
				if !dom[cand][other] {
					dominatesAllOthers = false
					break
				}
			}
			if dominatesAllOthers {
				idom[b] = cand
				break
			}
		}
	}
	return idom
}

// dominanceFrontiers computes DF(b) for every block: for each join point
// b with two or more predecessors, walk up the idom chain from each
// predecessor until reaching idom(b), adding b to every block visited
// along the way.
func dominanceFrontiers(blocks []*cfg.Block, preds map[*cfg.Block][]*cfg.Block, idom map[*cfg.Block]*cfg.Block) map[*cfg.Block]map[*cfg.Block]bool {
	df := map[*cfg.Block]map[*cfg.Block]bool{}
	for _, b := range blocks {
		df[b] = map[*cfg.Block]bool{}
	}
	for _, b := range blocks {
		if len(preds[b]) < 2 {
			continue
		}
		for _, p := range preds[b] {
			runner := p
			for runner != nil && runner != idom[b] {
				df[runner][b] = true
				runner = idom[runner]
			}
		}
	}
	return df
}

// children builds the dominator tree's child lists from idom.
func children(blocks []*cfg.Block, entry *cfg.Block, idom map[*cfg.Block]*cfg.Block) map[*cfg.Block][]*cfg.Block {
	ch := map[*cfg.Block][]*cfg.Block{}
	for _, b := range blocks {
		if b == entry {
			continue
		}
		p := idom[b]
		ch[p] = append(ch[p], b)
	}
	return ch
}
