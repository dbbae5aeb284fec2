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
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// twoChildTrace builds a three-span fixture: root (id 0) plus two children
// both messaged "constructed node", with breadth 2 and 1.
func twoChildTrace(t *testing.T) *store.Buffer {
	t.Helper()
	b := store.NewBuffer()
	for _, breadth := range []int64{2, 1} {
		_, err := b.Append(&span.Record{
			Parent:   span.Root,
			Message:  "constructed node",
			Metadata: span.Metadata{Name: "node", Level: span.LevelInfo, Target: "entrace"},
			Attrs:    []span.Attr{{Name: "breadth", Value: span.Int(breadth)}},
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return b
}

func materializeSorted(t *testing.T, a *Arena, id ID) []uint32 {
	t.Helper()
	got, err := a.Materialize(context.Background(), id)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	return got
}

// TestMessageEqualityFiltersOutRoot: filter(target="message",
// relation=EQ, value="constructed node") over the whole range returns
// both children but not the root (whose message is empty).
func TestMessageEqualityFiltersOutRoot(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	f := a.RelDnf([]Clause{{{Attr: "message", Rel: EQ, Const: span.String("constructed node")}}}, whole)
	got := materializeSorted(t, a, f)
	want := []uint32{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("message equality filter: got %v want %v", got, want)
	}
}

// TestBreadthGreaterThanSelectsOneChild: breadth > 1 selects only the
// first child.
func TestBreadthGreaterThanSelectsOneChild(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	f := a.RelDnf([]Clause{{{Attr: "breadth", Rel: GT, Const: span.Int(1)}}}, whole)
	got := materializeSorted(t, a, f)
	want := []uint32{1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("breadth filter: got %v want %v", got, want)
	}
}

// TestNotOfBreadthFilterSelectsComplement: Not(breadth > 1) selects the
// root and the second child.
func TestNotOfBreadthFilterSelectsComplement(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	f := a.RelDnf([]Clause{{{Attr: "breadth", Rel: GT, Const: span.Int(1)}}}, whole)
	notF := a.Not(f)
	got := materializeSorted(t, a, notF)
	want := []uint32{0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("negated breadth filter: got %v want %v", got, want)
	}
}

// TestAndOrSetEquality checks that And/Or of two Primitive ranges
// matches plain set intersection/union regardless of rewriting.
func TestAndOrSetEquality(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	left := a.FromRange(0, 1)
	right := a.FromRange(1, 2)

	and := a.And([]ID{left, right})
	gotAnd := materializeSorted(t, a, and)
	if !reflect.DeepEqual(gotAnd, []uint32{1}) {
		t.Fatalf("And set equality: got %v want [1]", gotAnd)
	}

	b2 := twoChildTrace(t)
	a2 := NewArena(b2)
	left2 := a2.FromRange(0, 1)
	right2 := a2.FromRange(1, 2)
	or := a2.Or([]ID{left2, right2})
	gotOr := materializeSorted(t, a2, or)
	if !reflect.DeepEqual(gotOr, []uint32{0, 1, 2}) {
		t.Fatalf("Or set equality: got %v want [0 1 2]", gotOr)
	}
}

// TestNotNotIdempotence checks that Not(Not(x)) materializes
// identically to x, and that the rewrite collapses it structurally.
func TestNotNotIdempotence(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	x := a.FromRange(0, 1)
	nn := a.Not(a.Not(x))

	// Materialize rewrites the arena it runs on, which invalidates ids
	// taken from it earlier, so x is materialized in an arena of its own
	// and a is left untouched for the structural check below.
	b3 := twoChildTrace(t)
	a3 := NewArena(b3)
	gotX := materializeSorted(t, a3, a3.FromRange(0, 1))

	b2 := twoChildTrace(t)
	a2 := NewArena(b2)
	x2 := a2.FromRange(0, 1)
	nn2 := a2.Not(a2.Not(x2))
	gotNN := materializeSorted(t, a2, nn2)

	if !reflect.DeepEqual(gotX, gotNN) {
		t.Fatalf("Not(Not(x)) != x: got %v vs %v", gotNN, gotX)
	}

	rewritten := a.Rewrite(nn)
	if a.nodes[rewritten].kind == KindNot {
		t.Fatalf("Not(Not(x)) did not collapse: root kind is still KindNot")
	}
}

// TestDnfEquivalence checks that an Or of two RelDnf nodes sharing a
// source fuses into one RelDnf node with concatenated clauses, and that
// the materialized result is unaffected by the fusion.
func TestDnfEquivalence(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	f1 := a.RelDnf([]Clause{{{Attr: "breadth", Rel: EQ, Const: span.Int(2)}}}, whole)
	f2 := a.RelDnf([]Clause{{{Attr: "breadth", Rel: EQ, Const: span.Int(1)}}}, whole)
	or := a.Or([]ID{f1, f2})

	got := materializeSorted(t, a, or)
	want := []uint32{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DNF equivalence: got %v want %v", got, want)
	}

	rewritten := a.Rewrite(or)
	if a.nodes[rewritten].kind != KindRelDnf {
		t.Fatalf("Or of same-source RelDnf nodes did not fuse: root kind is %v", a.nodes[rewritten].kind)
	}
	if len(a.nodes[rewritten].clauses) != 2 {
		t.Fatalf("fused RelDnf clause count: got %d want 2", len(a.nodes[rewritten].clauses))
	}
}

// TestRewriteIdempotence checks that rewriting an already-rewritten
// root is a no-op: it materializes to the same set and does not change
// structurally on a second pass.
func TestRewriteIdempotence(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	f := a.RelDnf([]Clause{{{Attr: "breadth", Rel: GT, Const: span.Int(0)}}}, whole)
	nested := a.Or([]ID{a.Or([]ID{f}), a.Dead()})

	once := a.Rewrite(nested)
	countAfterFirst := len(a.nodes)
	twice := a.Rewrite(once)
	countAfterSecond := len(a.nodes)

	if countAfterFirst != countAfterSecond {
		t.Fatalf("second rewrite changed node count: %d vs %d", countAfterFirst, countAfterSecond)
	}
	if once != twice {
		t.Fatalf("second rewrite changed root id: %d vs %d", once, twice)
	}
}

// TestBlackBoxOpaque checks that a BlackBox-wrapped And is never
// flattened into its parent And, unlike a plain nested And.
func TestBlackBoxOpaque(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	inner := a.And([]ID{a.FromRange(0, 1), a.FromRange(1, 2)})
	boxed := a.BlackBox(inner)
	outer := a.And([]ID{boxed, a.FromRange(0, 2)})

	rewritten := a.Rewrite(outer)
	n := a.nodes[rewritten]
	if len(n.children) != 2 {
		t.Fatalf("BlackBox child got flattened away: children=%v", n.children)
	}
}

func TestDeadIsAbsorbing(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	whole := a.FromRange(b.SpanRange())
	and := a.And([]ID{whole, a.Dead()})
	got := materializeSorted(t, a, and)
	if len(got) != 0 {
		t.Fatalf("And with Dead: got %v want empty", got)
	}
}

func TestDNFFusionSizeGuard(t *testing.T) {
	b := twoChildTrace(t)
	a := NewArena(b)
	a.SetDNFFusionLimit(1)
	whole := a.FromRange(b.SpanRange())
	f1 := a.RelDnf([]Clause{
		{{Attr: "breadth", Rel: EQ, Const: span.Int(1)}},
		{{Attr: "breadth", Rel: EQ, Const: span.Int(2)}},
	}, whole)
	f2 := a.RelDnf([]Clause{
		{{Attr: "breadth", Rel: GT, Const: span.Int(0)}},
		{{Attr: "breadth", Rel: LT, Const: span.Int(0)}},
	}, whole)
	and := a.And([]ID{f1, f2})

	// 2x2 cartesian product = 4 clauses, exceeding the limit of 1: the
	// fusion must be skipped, leaving two separate RelDnf nodes under
	// the And rather than one fused node.
	rewritten := a.Rewrite(and)
	n := a.nodes[rewritten]
	if n.kind != KindAnd {
		t.Fatalf("expected unfused And, got kind %v", n.kind)
	}
	if len(n.children) != 2 {
		t.Fatalf("expected 2 passthrough children, got %d", len(n.children))
	}
}
