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
	"testing"
)

func TestWriteStreamCompressedRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecS2, CodecZstd} {
		codec := codec
		t.Run(string(codec), func(t *testing.T) {
			b := twoChildTrace(t)

			var out bytes.Buffer
			if err := WriteStreamCompressed(&out, b, codec); err != nil {
				t.Fatalf("WriteStreamCompressed: %v", err)
			}

			got, err := ReadStreamCompressed(bytes.NewReader(out.Bytes()), codec)
			if err != nil {
				t.Fatalf("ReadStreamCompressed: %v", err)
			}
			if got.SpanCount() != b.SpanCount() {
				t.Fatalf("span count mismatch: got %d want %d", got.SpanCount(), b.SpanCount())
			}
			for id := uint32(0); id < b.SpanCount(); id++ {
				wantMeta, _ := b.Metadata(id)
				gotMeta, _ := got.Metadata(id)
				if wantMeta != gotMeta {
					t.Fatalf("span %d metadata mismatch: got %+v want %+v", id, gotMeta, wantMeta)
				}
			}
		})
	}
}

func TestCompressUnknownCodec(t *testing.T) {
	b := twoChildTrace(t)
	var out bytes.Buffer
	if err := WriteStreamCompressed(&out, b, Codec("bogus")); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}
