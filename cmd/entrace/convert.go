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
	"os"

	"github.com/algorithmiker/entrace/store"
)

// convert reads path (in whichever form it is already in) and rewrites
// it into to (either "stream" or "indexed"), writing to -o (stdout by
// default).
func convert(to, path string) {
	r, closeFn, err := openTrace(path)
	if err != nil {
		exitf("convert: %v", err)
	}
	defer closeFn()

	out := os.Stdout
	if dasho != "-" {
		f, err := os.Create(dasho)
		if err != nil {
			exitf("convert: creating %s: %v", dasho, err)
		}
		defer f.Close()
		out = f
	}

	switch to {
	case "stream":
		if err := streamFrom(r, out); err != nil {
			exitf("convert: %v", err)
		}
	case "indexed":
		if err := store.WriteIndexed(out, r); err != nil {
			exitf("convert: %v", err)
		}
	case "stream+s2":
		if err := store.WriteStreamCompressed(out, r, store.CodecS2); err != nil {
			exitf("convert: %v", err)
		}
	case "stream+zstd":
		if err := store.WriteStreamCompressed(out, r, store.CodecZstd); err != nil {
			exitf("convert: %v", err)
		}
	default:
		exitf("convert: unknown target form %q (want stream, indexed, stream+s2, or stream+zstd)", to)
	}
}

// streamFrom writes r out in stream form regardless of which concrete
// Reader backs it (Buffer already is one; File goes through
// IndexedToStream).
func streamFrom(r store.Reader, out *os.File) error {
	if f, ok := r.(*store.File); ok {
		return store.IndexedToStream(f, out)
	}
	sw := store.NewStreamWriter(out)
	n := r.SpanCount()
	for id := uint32(1); id < n; id++ {
		rec, err := recordOf(r, id)
		if err != nil {
			return err
		}
		if err := sw.Append(rec); err != nil {
			return err
		}
	}
	return sw.Flush()
}
