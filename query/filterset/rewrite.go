// Copyright (C) 2024 Entrace Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package filterset

import "github.com/algorithmiker/entrace/query/rewrite"

// rewriteState threads the in-progress arena generation and its current
// root through the generic rewrite.Fixpoint driver (see query/rewrite).
type rewriteState struct {
	arena *Arena
	root  ID
}

// Rewrite applies the fixed-point rewrite rules (flattening, Not(Not(x))
// cancellation, RelDnf fusion, and RelDnf grouping under And/Or) and
// returns the ID of the rewritten root within a.
//
// Each pass builds an entirely new generation of nodes rather than
// editing a's existing ones in place, preserving the arena's append-only
// construction discipline across rewriting as well as construction.
// Once Rewrite returns, a itself has been updated to hold the final
// generation, and the returned ID is valid within it; IDs obtained from
// a before calling Rewrite are no longer meaningful.
func (a *Arena) Rewrite(root ID) ID {
	rule := func(s rewriteState) (rewriteState, bool) {
		next, newRoot, changed := s.arena.onePass(s.root)
		return rewriteState{arena: next, root: newRoot}, changed
	}
	final, _ := rewrite.Fixpoint(rewriteState{arena: a, root: root}, []rewrite.Rule[rewriteState]{rule})
	*a = *final.arena
	return final.root
}

// onePass performs one full bottom-up rewrite sweep over every node in
// a, in ID order. Because the arena is append-only (a node's children
// always have strictly smaller IDs), a single forward pass over
// 0..len(a.nodes) is enough to have every child already rewritten by
// the time its parent is visited — no recursion needed.
func (a *Arena) onePass(root ID) (next *Arena, newRoot ID, changed bool) {
	out := &Arena{src: a.src, dnfFusionLimit: a.dnfFusionLimit, nodes: make([]node, 0, len(a.nodes))}
	remap := make([]ID, len(a.nodes))

	for i, n := range a.nodes {
		var newID ID
		switch n.kind {
		case KindDead:
			newID = out.Dead()

		case KindPrimitive:
			newID = out.Primitive(n.bitmap)

		case KindBlackBox:
			newID = out.BlackBox(remap[n.src])

		case KindNot:
			src := remap[n.src]
			if out.nodes[src].kind == KindNot {
				// Not(Not(x)) -> x
				newID = out.nodes[src].src
				changed = true
			} else {
				newID = out.Not(src)
			}

		case KindRelDnf:
			src := remap[n.src]
			srcNode := out.nodes[src]
			if srcNode.kind == KindRelDnf {
				fused := cartesian(n.clauses, srcNode.clauses)
				if len(fused) <= a.dnfFusionLimit {
					newID = out.RelDnf(fused, srcNode.src)
					changed = true
					break
				}
			}
			newID = out.RelDnf(n.clauses, src)

		case KindAnd, KindOr:
			remapped := make([]ID, len(n.children))
			for j, c := range n.children {
				remapped[j] = remap[c]
			}
			flat, flattened := flattenChildren(out, remapped, n.kind)
			grouped, groupedChanged := groupRelDnf(out, flat, n.kind, a.dnfFusionLimit)
			if flattened || groupedChanged {
				changed = true
			}
			switch len(grouped) {
			case 1:
				newID = grouped[0]
				if len(n.children) != 1 {
					changed = true
				}
			default:
				newID = out.push(node{kind: n.kind, children: grouped})
			}
		}
		remap[i] = newID
	}

	return out, remap[root], changed
}

// flattenChildren expands any child that is itself an And/Or of the
// same kind into this level's child list (And([… And(g) …]) ->
// And(flattened)). BlackBox nodes are opaque from the outside: a
// BlackBox wrapping an And/Or is never unwrapped here.
func flattenChildren(a *Arena, children []ID, kind Kind) ([]ID, bool) {
	out := make([]ID, 0, len(children))
	changed := false
	for _, c := range children {
		cn := a.nodes[c]
		if cn.kind == kind {
			out = append(out, cn.children...)
			changed = true
		} else {
			out = append(out, c)
		}
	}
	return out, changed
}

// groupRelDnf groups children that are RelDnf nodes sharing an
// identical source into a single fused RelDnf node. Or grouping
// concatenates clause lists (always
// safe, never enlarges materialization cost beyond the sum of its
// parts). And grouping takes the size-guarded Cartesian product of
// clause lists; if that would exceed limit, the group's members are
// left unfused and simply passed through.
func groupRelDnf(a *Arena, children []ID, kind Kind, limit int) ([]ID, bool) {
	type group struct {
		src     ID
		clauses [][]Clause
		ids     []ID
	}
	groups := make(map[ID]*group)
	var order []ID
	var passthrough []ID

	for _, c := range children {
		n := a.nodes[c]
		if n.kind != KindRelDnf {
			passthrough = append(passthrough, c)
			continue
		}
		g, ok := groups[n.src]
		if !ok {
			g = &group{src: n.src}
			groups[n.src] = g
			order = append(order, n.src)
		}
		g.clauses = append(g.clauses, n.clauses)
		g.ids = append(g.ids, c)
	}

	if len(order) == 0 {
		return passthrough, false
	}

	changed := false
	out := append([]ID(nil), passthrough...)
	for _, src := range order {
		g := groups[src]
		if len(g.ids) == 1 {
			out = append(out, g.ids[0])
			continue
		}
		switch kind {
		case KindOr:
			merged := g.clauses[0]
			for _, cs := range g.clauses[1:] {
				merged = concatClauses(merged, cs)
			}
			out = append(out, a.RelDnf(merged, src))
			changed = true
		case KindAnd:
			merged := g.clauses[0]
			fits := true
			for _, cs := range g.clauses[1:] {
				candidate := cartesian(merged, cs)
				if len(candidate) > limit {
					fits = false
					break
				}
				merged = candidate
			}
			if fits {
				out = append(out, a.RelDnf(merged, src))
				changed = true
			} else {
				out = append(out, g.ids...)
			}
		}
	}
	return out, changed
}
