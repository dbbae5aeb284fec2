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

package span

import (
	"fmt"

	"github.com/algorithmiker/entrace/internal/binenc"
)

// ID is a span identifier: a 32-bit unsigned integer, dense from 0 to
// N-1. Identifier 0 is the synthetic root.
type ID = uint32

// Root is the synthetic span identifier into which orphan spans are
// parented; it is its own parent.
const Root ID = 0

// Attr is a single (name, value) attribute. Names need not be unique
// within a span's attribute list.
type Attr struct {
	Name  string
	Value Value
}

// Record is the logical representation of one span, independent of
// whichever on-disk form it was read from.
type Record struct {
	Parent   ID
	Message  string // optional, "" means absent
	Metadata Metadata
	Attrs    []Attr
}

// AttrByName returns the value of the first attribute named name, and
// whether one was found.
func (r *Record) AttrByName(name string) (Value, bool) {
	for i := range r.Attrs {
		if r.Attrs[i].Name == name {
			return r.Attrs[i].Value, true
		}
	}
	return Value{}, false
}

// Encode appends the canonical encoding of r to w. The root span is
// never encoded directly (it is implicit in every file format); this
// method encodes whatever record it is given.
func (r *Record) Encode(w *binenc.Writer) {
	w.Uint32(r.Parent)
	w.Bool(r.Message != "")
	if r.Message != "" {
		w.String(r.Message)
	}
	r.Metadata.Encode(w)
	w.Varint(uint64(len(r.Attrs)))
	for i := range r.Attrs {
		w.String(r.Attrs[i].Name)
		r.Attrs[i].Value.Encode(w)
	}
}

// DecodeRecord reads a Record encoded by Record.Encode.
func DecodeRecord(r *binenc.Reader) (*Record, error) {
	rec := &Record{}
	var err error
	if rec.Parent, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("span: decoding parent: %w", err)
	}
	hasMsg, err := r.Bool()
	if err != nil {
		return nil, fmt.Errorf("span: decoding message flag: %w", err)
	}
	if hasMsg {
		if rec.Message, err = r.String(); err != nil {
			return nil, fmt.Errorf("span: decoding message: %w", err)
		}
	}
	rec.Metadata, err = DecodeMetadata(r)
	if err != nil {
		return nil, err
	}
	n, err := r.Varint()
	if err != nil {
		return nil, fmt.Errorf("span: decoding attr count: %w", err)
	}
	if n > 0 {
		rec.Attrs = make([]Attr, n)
		for i := range rec.Attrs {
			if rec.Attrs[i].Name, err = r.String(); err != nil {
				return nil, fmt.Errorf("span: decoding attr %d name: %w", i, err)
			}
			rec.Attrs[i].Value, err = DecodeValue(r)
			if err != nil {
				return nil, fmt.Errorf("span: decoding attr %d value: %w", i, err)
			}
		}
	}
	return rec, nil
}
