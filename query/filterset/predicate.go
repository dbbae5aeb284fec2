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

// Package filterset implements the query engine's lazy algebra of span
// sets: a per-query arena of DAG nodes, the fixed-point rewrite rules
// that normalize the DAG before evaluation, and the bottom-up
// materializer that turns a node into a concrete, sorted list of span
// identifiers.
package filterset

import (
	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// Relation is the comparison a Predicate applies between an attribute's
// value and a constant.
type Relation uint8

const (
	EQ Relation = iota
	LT
	GT
)

func (r Relation) String() string {
	switch r {
	case EQ:
		return "="
	case LT:
		return "<"
	case GT:
		return ">"
	default:
		return "?"
	}
}

// Predicate is (attribute_name, relation, constant), the atomic unit of
// filtering.
type Predicate struct {
	Attr string
	Rel  Relation
	Const span.Value
}

// eval reports whether predicate p holds for span i: a missing
// attribute or incomparable types are false, never an error. "message"
// is a reserved attribute name addressing the span's Message field
// rather than a user attribute, since Message is not itself stored as
// an Attr.
func (p Predicate) eval(r store.Reader, i uint32) (bool, error) {
	var v span.Value
	var ok bool
	var err error
	if p.Attr == "message" {
		var msg string
		msg, ok, err = r.Message(i)
		v = span.String(msg)
	} else {
		v, ok, err = r.AttributeByName(i, p.Attr)
	}
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	cmp, ok := v.Compare(p.Const)
	if !ok {
		return false, nil
	}
	switch p.Rel {
	case EQ:
		return cmp == 0, nil
	case LT:
		return cmp < 0, nil
	case GT:
		return cmp > 0, nil
	default:
		return false, nil
	}
}

// Clause is an AND-group of predicates; Clauses (a list of Clause) forms
// a DNF: matches iff any clause's predicates all hold.
type Clause []Predicate

func (c Clause) eval(r store.Reader, i uint32) (bool, error) {
	for _, p := range c {
		ok, err := p.eval(r, i)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// cartesian returns the clause-wise Cartesian product of a and b: every
// clause in the result is the concatenation of one clause from a and
// one from b. Used by RelDnf fusion.
func cartesian(a, b []Clause) []Clause {
	out := make([]Clause, 0, len(a)*len(b))
	for _, ca := range a {
		for _, cb := range b {
			merged := make(Clause, 0, len(ca)+len(cb))
			merged = append(merged, ca...)
			merged = append(merged, cb...)
			out = append(out, merged)
		}
	}
	return out
}

func concatClauses(a, b []Clause) []Clause {
	out := make([]Clause, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
