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

package store

import "github.com/algorithmiker/entrace/span"

// Reader is the read interface the query engine and worker pool use to
// navigate a span tree. Both Buffer (the in-memory/stream-ingested form)
// and File (the memory-mapped indexed form) implement it. Every method
// is pure and safe to call concurrently from any number of goroutines:
// implementations must not mutate shared state while serving reads.
type Reader interface {
	// SpanCount returns N, the total number of spans including the
	// synthetic root.
	SpanCount() uint32

	// SpanRange returns the inclusive identifier range (0, N-1).
	SpanRange() (lo, hi uint32)

	// Parent returns i's parent identifier. The root is its own parent.
	Parent(i uint32) (uint32, error)

	// Children returns i's child identifiers in ingestion order.
	Children(i uint32) ([]uint32, error)

	// ChildCount returns len(Children(i)) without allocating a slice.
	ChildCount(i uint32) (int, error)

	// Metadata returns i's structural metadata.
	Metadata(i uint32) (span.Metadata, error)

	// Message returns i's optional message and whether one is present.
	Message(i uint32) (string, bool, error)

	// Attributes returns i's (name, value) attribute list in the order
	// the span recorded them.
	Attributes(i uint32) ([]span.Attr, error)

	// AttributeByName returns the value of the first attribute on i
	// named name, and whether one was found.
	AttributeByName(i uint32, name string) (span.Value, bool, error)

	// Stringify returns a canonical textual rendering of span i, used
	// by ContainsAnywhere. It covers only span i itself, not its
	// descendants (see ContainsAnywhere below).
	Stringify(i uint32) (string, error)

	// ContainsAnywhere reports whether needle appears as a substring of
	// Stringify(i). It does NOT recurse into i's children: a script that
	// wants to search a subtree calls Children and recurses itself.
	ContainsAnywhere(i uint32, needle string) (bool, error)
}
