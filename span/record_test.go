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
	"reflect"
	"testing"

	"github.com/algorithmiker/entrace/internal/binenc"
)

func TestRecordEncodeRoundTrip(t *testing.T) {
	samples := []*Record{
		{
			Parent:  0,
			Message: "constructed node",
			Metadata: Metadata{
				Name:   "span-1",
				Level:  LevelInfo,
				Target: "entrace",
			},
			Attrs: []Attr{
				{Name: "breadth", Value: Int(2)},
				{Name: "msg", Value: String("constructed node")},
			},
		},
		{
			Parent: 5,
			Metadata: Metadata{
				Name:       "span-2",
				Level:      LevelError,
				File:       "main.rs",
				Line:       12,
				HasLine:    true,
				Target:     "entrace::ingest",
				ModulePath: "entrace::ingest::socket",
			},
		},
	}
	for i, rec := range samples {
		w := binenc.NewWriter(64)
		rec.Encode(w)
		got, err := DecodeRecord(binenc.NewReader(w.Bytes()))
		if err != nil {
			t.Fatalf("sample %d: decode: %v", i, err)
		}
		if !reflect.DeepEqual(got, rec) {
			t.Fatalf("sample %d: round trip mismatch: got %#v want %#v", i, got, rec)
		}
	}
}

func TestAttrByNameFirstMatch(t *testing.T) {
	rec := &Record{
		Attrs: []Attr{
			{Name: "msg_idx", Value: Int(1)},
			{Name: "msg_idx", Value: Int(2)},
		},
	}
	v, ok := rec.AttrByName("msg_idx")
	if !ok || v.Int() != 1 {
		t.Fatalf("expected first match (1), got %v ok=%v", v, ok)
	}
	_, ok = rec.AttrByName("missing")
	if ok {
		t.Fatal("expected no match for missing attribute")
	}
}
