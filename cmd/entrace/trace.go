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

package main

import (
	"fmt"
	"os"

	"github.com/algorithmiker/entrace/internal/binenc"
	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// recordOf reassembles a Record from a Reader's exported accessors, for
// the one Reader implementation (Buffer) that doesn't need it
// internally — File already keeps its own private version, and
// IndexedToStream covers the File-to-stream path directly.
func recordOf(r store.Reader, id uint32) (*span.Record, error) {
	parent, err := r.Parent(id)
	if err != nil {
		return nil, err
	}
	meta, err := r.Metadata(id)
	if err != nil {
		return nil, err
	}
	attrs, err := r.Attributes(id)
	if err != nil {
		return nil, err
	}
	msg, _, err := r.Message(id)
	if err != nil {
		return nil, err
	}
	return &span.Record{Parent: parent, Message: msg, Metadata: meta, Attrs: attrs}, nil
}

// openTrace opens path as whichever of the two on-disk forms it holds,
// peeking the magic header's tag byte (offset 9) to decide: stream
// form is read in fully as a Buffer, indexed form is memory-mapped as a
// File. Both satisfy store.Reader. The returned close func must be
// called once the reader is no longer needed.
func openTrace(path string) (store.Reader, func() error, error) {
	head, err := peekHeader(path)
	if err != nil {
		return nil, nil, err
	}
	switch head {
	case store.TagIndexed:
		f, err := store.OpenFile(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case store.TagStream:
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		b, err := store.ReadStream(file)
		if err != nil {
			return nil, nil, err
		}
		return b, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("entrace: %s: %w", path, store.ErrUnsupportedFormat)
	}
}

func peekHeader(path string) (store.Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var buf [store.HeaderSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("entrace: %s: reading header: %w", path, err)
	}
	_, tag, err := store.ReadHeader(binenc.NewReader(buf[:]))
	if err != nil {
		return 0, err
	}
	return tag, nil
}
