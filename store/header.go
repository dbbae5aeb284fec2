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

	"github.com/algorithmiker/entrace/internal/binenc"
)

// magic is the first 8 bytes of every entrace file or frame stream.
var magic = [8]byte{0x00, 'E', 'N', 'T', 'R', 'A', 'C', 'E'}

// FormatVersion is the encoding version this build writes. Any change to
// the canonical binary encoding must bump this.
const FormatVersion uint8 = 1

// Tag identifies which of the two storage encodings (or socket framing
// variant) follows the header.
type Tag uint8

const (
	TagIndexed             Tag = 0
	TagStream              Tag = 1
	TagLengthPrefixedStream Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagIndexed:
		return "indexed"
	case TagStream:
		return "stream"
	case TagLengthPrefixedStream:
		return "length-prefixed-stream"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// HeaderSize is the fixed size, in bytes, of the magic header.
const HeaderSize = 10

// WriteHeader appends a 10-byte magic header for the given tag.
func WriteHeader(w *binenc.Writer, tag Tag) {
	for _, b := range magic {
		w.Uint8(b)
	}
	w.Uint8(FormatVersion)
	w.Uint8(uint8(tag))
}

// ReadHeader reads and validates the 10-byte magic header, returning the
// format version and storage tag found. It rejects any input whose
// first 8 bytes mismatch the expected magic, and any version greater
// than FormatVersion (this build cannot read formats from the future).
func ReadHeader(r *binenc.Reader) (version uint8, tag Tag, err error) {
	for i := 0; i < 8; i++ {
		b, err := r.Uint8()
		if err != nil {
			return 0, 0, fmt.Errorf("store: reading magic: %w", ErrUnsupportedFormat)
		}
		if b != magic[i] {
			return 0, 0, fmt.Errorf("store: bad magic byte %d: %w", i, ErrUnsupportedFormat)
		}
	}
	version, err = r.Uint8()
	if err != nil {
		return 0, 0, fmt.Errorf("store: reading version: %w", ErrUnsupportedFormat)
	}
	tagByte, err := r.Uint8()
	if err != nil {
		return 0, 0, fmt.Errorf("store: reading tag: %w", ErrUnsupportedFormat)
	}
	tag = Tag(tagByte)
	if version > FormatVersion {
		return version, tag, fmt.Errorf("store: format version %d newer than supported %d: %w", version, FormatVersion, ErrUnsupportedFormat)
	}
	switch tag {
	case TagIndexed, TagStream, TagLengthPrefixedStream:
	default:
		return version, tag, fmt.Errorf("store: unknown storage tag %d: %w", tagByte, ErrUnsupportedFormat)
	}
	return version, tag, nil
}
