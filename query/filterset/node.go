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

import "github.com/RoaringBitmap/roaring"

// Kind distinguishes the filterset DAG node variants.
type Kind uint8

const (
	KindDead Kind = iota
	KindPrimitive
	KindBlackBox
	KindRelDnf
	KindAnd
	KindOr
	KindNot
)

// ID is a stable index into an Arena's node vector. IDs are assigned in
// construction order, so a node's children always have a strictly
// smaller ID than the node itself: the arena is append-only and every
// constructor only accepts already-built IDs, which rules out cycles by
// construction.
type ID int32

// node is one arena entry. Only the fields relevant to Kind are
// meaningful; the rest are zero.
type node struct {
	kind Kind

	// KindPrimitive
	bitmap *roaring.Bitmap

	// KindBlackBox, KindRelDnf, KindNot
	src ID

	// KindRelDnf
	clauses []Clause

	// KindAnd, KindOr
	children []ID
}
