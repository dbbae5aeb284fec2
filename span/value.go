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

// Package span defines the logical data model shared by the storage
// layer and the query engine: tagged attribute values, span metadata,
// and the span record itself.
package span

import (
	"fmt"
	"strconv"

	"github.com/algorithmiker/entrace/internal/binenc"
)

// Tag identifies the dynamic type carried by a Value.
type Tag uint8

const (
	TagNull Tag = iota
	TagInt
	TagUint
	TagFloat
	TagBool
	TagString
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagInt:
		return "int"
	case TagUint:
		return "uint"
	case TagFloat:
		return "float"
	case TagBool:
		return "bool"
	case TagString:
		return "string"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Value is a tagged scalar used for attribute values and filter
// constants. The zero Value is TagNull.
type Value struct {
	tag Tag
	i   int64
	u   uint64
	f   float64
	b   bool
	s   string
}

func Null() Value            { return Value{tag: TagNull} }
func Int(v int64) Value      { return Value{tag: TagInt, i: v} }
func Uint(v uint64) Value    { return Value{tag: TagUint, u: v} }
func Float(v float64) Value  { return Value{tag: TagFloat, f: v} }
func Bool(v bool) Value      { return Value{tag: TagBool, b: v} }
func String(v string) Value  { return Value{tag: TagString, s: v} }

func (v Value) Tag() Tag { return v.tag }
func (v Value) IsNull() bool { return v.tag == TagNull }

// Int returns the signed integer payload; valid only when Tag() == TagInt.
func (v Value) Int() int64 { return v.i }

// Uint returns the unsigned integer payload; valid only when Tag() == TagUint.
func (v Value) Uint() uint64 { return v.u }

// Float returns the floating-point payload; valid only when Tag() == TagFloat.
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload; valid only when Tag() == TagBool.
func (v Value) Bool() bool { return v.b }

// Str returns the string payload; valid only when Tag() == TagString.
func (v Value) Str() string { return v.s }

// String renders a human-readable form used by Stringify.
func (v Value) String() string {
	switch v.tag {
	case TagNull:
		return "null"
	case TagInt:
		return strconv.FormatInt(v.i, 10)
	case TagUint:
		return strconv.FormatUint(v.u, 10)
	case TagFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TagBool:
		return strconv.FormatBool(v.b)
	case TagString:
		return v.s
	default:
		return ""
	}
}

// Compare orders two values of the same tag. ok is false when the tags
// differ (cross-tag comparisons are not ordered, per the data model).
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if v.tag != other.tag {
		return 0, false
	}
	switch v.tag {
	case TagNull:
		return 0, true
	case TagInt:
		return cmpOrdered(v.i, other.i), true
	case TagUint:
		return cmpOrdered(v.u, other.u), true
	case TagFloat:
		return cmpOrdered(v.f, other.f), true
	case TagBool:
		return cmpOrdered(boolToInt(v.b), boolToInt(other.b)), true
	case TagString:
		return cmpOrdered(v.s, other.s), true
	default:
		return 0, false
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T interface {
	~int | ~int64 | ~uint64 | ~float64 | ~string
}](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Encode appends the canonical tagged-union encoding of v to w: a
// one-byte discriminant followed by the variant's payload.
func (v Value) Encode(w *binenc.Writer) {
	w.Uint8(uint8(v.tag))
	switch v.tag {
	case TagNull:
	case TagInt:
		w.Int64(v.i)
	case TagUint:
		w.Uint64(v.u)
	case TagFloat:
		w.Float64(v.f)
	case TagBool:
		w.Bool(v.b)
	case TagString:
		w.String(v.s)
	}
}

// DecodeValue reads a Value encoded by Value.Encode.
func DecodeValue(r *binenc.Reader) (Value, error) {
	tagByte, err := r.Uint8()
	if err != nil {
		return Value{}, fmt.Errorf("span: decoding value tag: %w", err)
	}
	tag := Tag(tagByte)
	switch tag {
	case TagNull:
		return Null(), nil
	case TagInt:
		i, err := r.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("span: decoding int value: %w", err)
		}
		return Int(i), nil
	case TagUint:
		u, err := r.Uint64()
		if err != nil {
			return Value{}, fmt.Errorf("span: decoding uint value: %w", err)
		}
		return Uint(u), nil
	case TagFloat:
		f, err := r.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("span: decoding float value: %w", err)
		}
		return Float(f), nil
	case TagBool:
		b, err := r.Bool()
		if err != nil {
			return Value{}, fmt.Errorf("span: decoding bool value: %w", err)
		}
		return Bool(b), nil
	case TagString:
		s, err := r.String()
		if err != nil {
			return Value{}, fmt.Errorf("span: decoding string value: %w", err)
		}
		return String(s), nil
	default:
		return Value{}, fmt.Errorf("span: unrecognized value tag %d", tagByte)
	}
}
