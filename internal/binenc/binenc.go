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

// Package binenc implements the canonical little-endian binary encoding
// shared by every on-disk and on-wire representation in entrace: the
// stream form, the indexed form, and the socket framing all build on the
// primitives in this package so that a byte produced by one encoder means
// the same thing to every decoder.
package binenc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer appends canonically encoded values to an in-memory buffer.
// It never returns an error; callers drain Bytes() once done.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with cap bytes of initial capacity.
func NewWriter(cap int) *Writer {
	return &Writer{buf: make([]byte, 0, cap)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the buffer for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) Uint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) Uint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Varint appends n as an unsigned LEB128 varint, used for sequence
// lengths (attribute counts, clause widths, child-list lengths).
func (w *Writer) Varint(n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	k := binary.PutUvarint(tmp[:], n)
	w.buf = append(w.buf, tmp[:k]...)
}

// String appends a varint byte length followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	w.Varint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// Uint32List appends a varint-length-prefixed list of uint32 identifiers,
// the encoding used for child-id lists in the indexed form's pool section.
func (w *Writer) Uint32List(ids []uint32) {
	w.Varint(uint64(len(ids)))
	for _, id := range ids {
		w.Uint32(id)
	}
}

// Reader decodes values written by Writer from a byte slice, advancing
// an internal cursor. All methods return io.ErrUnexpectedEOF (wrapped)
// when the underlying slice is exhausted early; this is the low-level
// signal that higher layers turn into ErrIncompleteFrame.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("binenc: need %d bytes, have %d: %w", n, r.Remaining(), io.ErrUnexpectedEOF)
	}
	return nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) Varint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("binenc: truncated varint: %w", io.ErrUnexpectedEOF)
	}
	r.pos += n
	return v, nil
}

func (r *Reader) String() (string, error) {
	n, err := r.Varint()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *Reader) Uint32List() ([]uint32, error) {
	n, err := r.Varint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i], err = r.Uint32()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
