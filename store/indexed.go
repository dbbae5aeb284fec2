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

import (
	"fmt"
	"io"

	"github.com/algorithmiker/entrace/internal/binenc"
	"github.com/algorithmiker/entrace/span"
)

// WriteIndexed serializes src into the indexed form: an offset
// table, a pool section of per-span child-id lists, and a data section
// of the serialized span records (root excluded, as in stream form).
//
// The offset and pool sections are written first and kept contiguous so
// a memory-mapped reader keeps them hot in cache; building both requires
// knowing every record's encoded length ahead of the data section, so
// this function first encodes every record to learn its length, then
// emits the three sections, reading child lists from src while writing
// the pool section.
func WriteIndexed(w io.Writer, src Reader) error {
	n := src.SpanCount()
	if n == 0 {
		return fmt.Errorf("store: source span count is 0 (root is always present): %w", ErrCorruptIndex)
	}
	m := n - 1 // records 1..n-1; root is implicit

	// Pass 1: encode each non-root record and keep its bytes.
	bodies := make([][]byte, m)
	enc := binenc.NewWriter(256)
	for j := uint32(0); j < m; j++ {
		id := j + 1
		rec, err := recordOf(src, id)
		if err != nil {
			return err
		}
		enc.Reset()
		rec.Encode(enc)
		body := make([]byte, enc.Len())
		copy(body, enc.Bytes())
		bodies[j] = body
	}

	// Pass 2: emit header, offset table, pool section, data section.
	head := binenc.NewWriter(64)
	WriteHeader(head, TagIndexed)
	if _, err := w.Write(head.Bytes()); err != nil {
		return &IoError{Op: "write indexed header", Err: err}
	}

	offsets := binenc.NewWriter(8 * int(m+1))
	offsets.Uint64(uint64(m))
	var cur uint64
	for j := uint32(0); j < m; j++ {
		offsets.Uint64(cur)
		cur += uint64(len(bodies[j]))
	}
	if _, err := w.Write(offsets.Bytes()); err != nil {
		return &IoError{Op: "write offset table", Err: err}
	}

	pool := binenc.NewWriter(4 * int(n))
	pool.Uint64(uint64(n))
	for i := uint32(0); i < n; i++ {
		children, err := src.Children(i)
		if err != nil {
			return err
		}
		pool.Uint32List(children)
	}
	if _, err := w.Write(pool.Bytes()); err != nil {
		return &IoError{Op: "write pool section", Err: err}
	}

	for j := uint32(0); j < m; j++ {
		if _, err := w.Write(bodies[j]); err != nil {
			return &IoError{Op: "write data section", Err: err}
		}
	}
	return nil
}

func recordOf(src Reader, id uint32) (*span.Record, error) {
	parent, err := src.Parent(id)
	if err != nil {
		return nil, err
	}
	meta, err := src.Metadata(id)
	if err != nil {
		return nil, err
	}
	attrs, err := src.Attributes(id)
	if err != nil {
		return nil, err
	}
	msg, _, err := src.Message(id)
	if err != nil {
		return nil, err
	}
	return &span.Record{Parent: parent, Message: msg, Metadata: meta, Attrs: attrs}, nil
}
