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
	"testing"

	"github.com/algorithmiker/entrace/internal/binenc"
)

func TestValueEncodeRoundTrip(t *testing.T) {
	samples := []Value{
		Null(),
		Int(-42),
		Uint(42),
		Float(3.25),
		Bool(true),
		Bool(false),
		String("constructed node"),
		String(""),
	}
	for _, v := range samples {
		w := binenc.NewWriter(16)
		v.Encode(w)
		got, err := DecodeValue(binenc.NewReader(w.Bytes()))
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if got.Tag() != v.Tag() || got.String() != v.String() {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, v)
		}
	}
}

func TestValueCompareCrossTag(t *testing.T) {
	_, ok := Int(1).Compare(String("1"))
	if ok {
		t.Fatal("cross-tag comparison should not be ok")
	}
}

func TestValueCompareOrdering(t *testing.T) {
	cases := []struct {
		a, b Value
		want int
	}{
		{Int(1), Int(2), -1},
		{Int(2), Int(1), 1},
		{Int(1), Int(1), 0},
		{Uint(5), Uint(5), 0},
		{Float(1.5), Float(1.0), 1},
		{String("a"), String("b"), -1},
		{Bool(false), Bool(true), -1},
	}
	for _, c := range cases {
		got, ok := c.a.Compare(c.b)
		if !ok {
			t.Fatalf("expected comparable values: %v vs %v", c.a, c.b)
		}
		if got != c.want {
			t.Fatalf("%v vs %v: got %d want %d", c.a, c.b, got, c.want)
		}
	}
}
