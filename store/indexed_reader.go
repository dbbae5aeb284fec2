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
	"strings"

	"github.com/algorithmiker/entrace/internal/binenc"
	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store/mmapfile"
)

// File is a random-access reader over the indexed form. It may
// be backed by a memory-mapped region (OpenFile) or by an in-memory byte
// slice (NewFileFromBytes, used in tests and for small trace files).
//
// The offset table and the fully-decoded pool section (per-span child
// lists) are parsed once at construction time, since both are small
// relative to the data section and sit right at the front of the file
// for cache locality; span records themselves are deserialized lazily,
// one per call, directly from the mapped bytes.
type File struct {
	mapped   *mmapfile.File // nil when backed by a plain []byte
	raw      []byte
	offsets  []uint64 // offsets[j] = byte offset of record j+1, relative to data section start
	pool     [][]uint32
	dataBase int // byte offset where the data section begins within raw
}

// OpenFile memory-maps path and parses it as indexed form.
func OpenFile(path string) (*File, error) {
	m, err := mmapfile.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open indexed file", Err: err}
	}
	f, err := newFile(m.Bytes())
	if err != nil {
		m.Close()
		return nil, err
	}
	f.mapped = m
	return f, nil
}

// NewFileFromBytes parses raw as indexed form without memory-mapping.
// raw must remain valid for the lifetime of the returned File.
func NewFileFromBytes(raw []byte) (*File, error) {
	return newFile(raw)
}

func newFile(raw []byte) (*File, error) {
	r := binenc.NewReader(raw)
	_, tag, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if tag != TagIndexed {
		return nil, fmt.Errorf("store: File given a %s-tagged file: %w", tag, ErrUnsupportedFormat)
	}

	m, err := r.Uint64()
	if err != nil {
		return nil, fmt.Errorf("store: reading offset table count: %w", ErrCorruptIndex)
	}
	offsets := make([]uint64, m)
	for j := range offsets {
		offsets[j], err = r.Uint64()
		if err != nil {
			return nil, fmt.Errorf("store: reading offset %d: %w", j, ErrCorruptIndex)
		}
	}

	k, err := r.Uint64()
	if err != nil {
		return nil, fmt.Errorf("store: reading pool count: %w", ErrCorruptIndex)
	}
	if k != m+1 {
		return nil, fmt.Errorf("store: pool count %d does not match span count %d: %w", k, m+1, ErrCorruptIndex)
	}
	pool := make([][]uint32, k)
	for i := range pool {
		children, err := r.Uint32List()
		if err != nil {
			return nil, fmt.Errorf("store: reading pool entry %d: %w", i, ErrCorruptIndex)
		}
		for _, c := range children {
			if uint64(c) >= k {
				return nil, fmt.Errorf("store: pool entry %d references out-of-range child %d (N=%d): %w", i, c, k, ErrCorruptIndex)
			}
		}
		pool[i] = children
	}

	f := &File{raw: raw, offsets: offsets, pool: pool, dataBase: r.Pos()}
	return f, nil
}

// Close releases the memory mapping, if any. It is a no-op for Files
// constructed with NewFileFromBytes.
func (f *File) Close() error {
	if f.mapped != nil {
		return f.mapped.Close()
	}
	return nil
}

func (f *File) n() uint32 { return uint32(len(f.pool)) }

func (f *File) check(i uint32) error {
	if i >= f.n() {
		return fmt.Errorf("store: span id %d out of range [0,%d): %w", i, f.n(), ErrCorruptIndex)
	}
	return nil
}

// recordBytes returns the encoded bytes of non-root span id (id >= 1).
func (f *File) recordBytes(id uint32) ([]byte, error) {
	j := id - 1
	if int(j) >= len(f.offsets) {
		return nil, fmt.Errorf("store: record offset index %d out of range: %w", j, ErrCorruptIndex)
	}
	start := f.dataBase + int(f.offsets[j])
	var end int
	if int(j)+1 < len(f.offsets) {
		end = f.dataBase + int(f.offsets[j+1])
	} else {
		end = len(f.raw)
	}
	if start < 0 || end > len(f.raw) || start > end {
		return nil, fmt.Errorf("store: record %d bounds [%d,%d) outside file of length %d: %w", id, start, end, len(f.raw), ErrCorruptIndex)
	}
	return f.raw[start:end], nil
}

func (f *File) record(id uint32) (*span.Record, error) {
	if id == span.Root {
		return &span.Record{Parent: span.Root}, nil
	}
	b, err := f.recordBytes(id)
	if err != nil {
		return nil, err
	}
	rec, err := span.DecodeRecord(binenc.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("store: decoding span %d: %w", id, err)
	}
	return rec, nil
}

func (f *File) SpanCount() uint32 { return f.n() }

func (f *File) SpanRange() (uint32, uint32) { return 0, f.n() - 1 }

func (f *File) Parent(i uint32) (uint32, error) {
	if err := f.check(i); err != nil {
		return 0, err
	}
	if i == span.Root {
		return span.Root, nil
	}
	rec, err := f.record(i)
	if err != nil {
		return 0, err
	}
	return rec.Parent, nil
}

func (f *File) Children(i uint32) ([]uint32, error) {
	if err := f.check(i); err != nil {
		return nil, err
	}
	out := make([]uint32, len(f.pool[i]))
	copy(out, f.pool[i])
	return out, nil
}

func (f *File) ChildCount(i uint32) (int, error) {
	if err := f.check(i); err != nil {
		return 0, err
	}
	return len(f.pool[i]), nil
}

func (f *File) Metadata(i uint32) (span.Metadata, error) {
	if err := f.check(i); err != nil {
		return span.Metadata{}, err
	}
	rec, err := f.record(i)
	if err != nil {
		return span.Metadata{}, err
	}
	return rec.Metadata, nil
}

func (f *File) Message(i uint32) (string, bool, error) {
	if err := f.check(i); err != nil {
		return "", false, err
	}
	rec, err := f.record(i)
	if err != nil {
		return "", false, err
	}
	return rec.Message, rec.Message != "", nil
}

func (f *File) Attributes(i uint32) ([]span.Attr, error) {
	if err := f.check(i); err != nil {
		return nil, err
	}
	rec, err := f.record(i)
	if err != nil {
		return nil, err
	}
	return rec.Attrs, nil
}

func (f *File) AttributeByName(i uint32, name string) (span.Value, bool, error) {
	if err := f.check(i); err != nil {
		return span.Value{}, false, err
	}
	rec, err := f.record(i)
	if err != nil {
		return span.Value{}, false, err
	}
	v, ok := rec.AttrByName(name)
	return v, ok, nil
}

func (f *File) Stringify(i uint32) (string, error) {
	if err := f.check(i); err != nil {
		return "", err
	}
	rec, err := f.record(i)
	if err != nil {
		return "", err
	}
	return stringifyRecord(rec), nil
}

func (f *File) ContainsAnywhere(i uint32, needle string) (bool, error) {
	s, err := f.Stringify(i)
	if err != nil {
		return false, err
	}
	return strings.Contains(s, needle), nil
}

var _ Reader = (*File)(nil)
