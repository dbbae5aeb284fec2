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

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/algorithmiker/entrace/store"
)

// DefaultDNFFusionLimit is the default cap on the number of clauses a
// RelDnf fusion rewrite is allowed to produce. A fusion that would
// exceed this is skipped (left unrewritten, still semantically correct,
// just not flattened further).
const DefaultDNFFusionLimit = 256

// Arena owns one query's filterset DAG. An Arena is private to a single
// query/worker: arenas are never shared, and each worker builds its own.
type Arena struct {
	src            store.Reader
	nodes          []node
	dnfFusionLimit int
}

// NewArena returns an Arena that evaluates predicates against src.
func NewArena(src store.Reader) *Arena {
	return &Arena{src: src, dnfFusionLimit: DefaultDNFFusionLimit}
}

// SetDNFFusionLimit overrides the guard on RelDnf fusion's resulting
// clause count.
func (a *Arena) SetDNFFusionLimit(n int) { a.dnfFusionLimit = n }

func (a *Arena) push(n node) ID {
	id := ID(len(a.nodes))
	a.nodes = append(a.nodes, n)
	return id
}

// Dead returns the absorbing empty-set node.
func (a *Arena) Dead() ID { return a.push(node{kind: KindDead}) }

// Primitive wraps an existing bitmap as a concrete node. The bitmap's
// elements must lie within [0, N).
func (a *Arena) Primitive(bm *roaring.Bitmap) ID {
	return a.push(node{kind: KindPrimitive, bitmap: bm})
}

// FromRange builds a Primitive node covering the inclusive span
// identifier range [lo, hi].
func (a *Arena) FromRange(lo, hi uint32) ID {
	bm := roaring.New()
	if hi >= lo {
		bm.AddRange(uint64(lo), uint64(hi)+1)
	}
	return a.Primitive(bm)
}

// BlackBox marks src as an opaque, non-rewritable subtree equal to src
// itself.
func (a *Arena) BlackBox(src ID) ID {
	return a.push(node{kind: KindBlackBox, src: src})
}

// RelDnf builds a disjunctive-normal-form predicate over src: a span in
// src matches iff at least one clause's predicates all hold for it.
func (a *Arena) RelDnf(clauses []Clause, src ID) ID {
	return a.push(node{kind: KindRelDnf, clauses: clauses, src: src})
}

// And returns the intersection of children. Sharing is preserved:
// passing the same ID as a child of two different And/Or nodes never
// duplicates the referenced subtree.
func (a *Arena) And(children []ID) ID {
	cp := make([]ID, len(children))
	copy(cp, children)
	return a.push(node{kind: KindAnd, children: cp})
}

// Or returns the union of children.
func (a *Arena) Or(children []ID) ID {
	cp := make([]ID, len(children))
	copy(cp, children)
	return a.push(node{kind: KindOr, children: cp})
}

// Not returns the complement of src relative to the full span range.
func (a *Arena) Not(src ID) ID {
	return a.push(node{kind: KindNot, src: src})
}
