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
	"bytes"
	"fmt"
	"io"
)

// StreamToIndexed converts a stream-form reader to indexed form,
// writing the result to w. Conversion is atomic: the input is fully
// parsed into a Buffer (a format error anywhere aborts before anything
// is written to w), and then WriteIndexed assembles the three
// indexed-form sections from that Buffer in one pass.
func StreamToIndexed(r io.Reader, w io.Writer) error {
	buf, err := ReadStream(r)
	if err != nil {
		return fmt.Errorf("store: StreamToIndexed: %w", err)
	}
	return WriteIndexed(w, buf)
}

// IndexedToStream converts an indexed-form reader back to stream form,
// writing the result to w. This direction drops the offset table and
// pool section; it is the inverse of StreamToIndexed and round-trips
// the data section byte-for-byte.
func IndexedToStream(f *File, w io.Writer) error {
	sw := NewStreamWriter(w)
	n := f.SpanCount()
	for id := uint32(1); id < n; id++ {
		rec, err := f.record(id)
		if err != nil {
			return fmt.Errorf("store: IndexedToStream: %w", err)
		}
		if err := sw.Append(rec); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// BufferToIndexedBytes is a convenience used by tests and the CLI to
// render a Buffer directly to an in-memory indexed-form byte slice.
func BufferToIndexedBytes(b *Buffer) ([]byte, error) {
	var out bytes.Buffer
	if err := WriteIndexed(&out, b); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
