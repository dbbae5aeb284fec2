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

package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/algorithmiker/entrace/span"
)

// Value is a dynamically-typed value crossing the script boundary. It
// covers the same shapes scripts can build: nil, bool, number, string,
// a list (array-like table), and a table (string-keyed table) — plus a
// function, a script-defined callback that a host function can call back
// into. Filterset handles and span identifiers cross as plain numbers.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindTable
	KindFunc
)

type Value struct {
	Kind  Kind
	Bool  bool
	Num   float64
	Str   string
	List  Values
	Table map[string]Value
	Call  func(Values) (Values, error)
}

// Callable returns v's underlying callback and true when v wraps a
// script-defined function (passed in as foreach's argument, for
// instance); ok is false for every other Kind.
func (v Value) Callable() (func(Values) (Values, error), bool) {
	if v.Kind != KindFunc || v.Call == nil {
		return nil, false
	}
	return v.Call, true
}

// Values is an ordered sequence of Value, used for both call arguments
// and multi-value returns.
type Values []Value

func Nil() Value           { return Value{Kind: KindNil} }
func FromBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func FromNumber(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func FromString(s string) Value { return Value{Kind: KindString, Str: s} }
func FromList(v Values) Value { return Value{Kind: KindList, List: v} }

// FromUint32List builds a list Value of span identifiers.
func FromUint32List(ids []uint32) Value {
	v := make(Values, len(ids))
	for i, id := range ids {
		v[i] = FromNumber(float64(id))
	}
	return FromList(v)
}

// Uint32List converts a list Value back into span identifiers, skipping
// any non-numeric element.
func (v Value) Uint32List() []uint32 {
	if v.Kind != KindList {
		return nil
	}
	out := make([]uint32, 0, len(v.List))
	for _, e := range v.List {
		if e.Kind == KindNumber {
			out = append(out, uint32(e.Num))
		}
	}
	return out
}

// SpanValue converts a script Value into the span.Value it denotes.
// Numbers that carry no fractional part convert to a signed 64-bit
// integer rather than a float, since Lua has no separate integer type
// and most attribute values crossing the script boundary are counts or
// identifiers better represented exactly.
func (v Value) SpanValue() span.Value {
	switch v.Kind {
	case KindNil:
		return span.Null()
	case KindBool:
		return span.Bool(v.Bool)
	case KindString:
		return span.String(v.Str)
	case KindNumber:
		if i := int64(v.Num); float64(i) == v.Num {
			return span.Int(i)
		}
		return span.Float(v.Num)
	default:
		return span.Null()
	}
}

// FromSpanValue converts a span.Value into its script-visible form.
func FromSpanValue(v span.Value) Value {
	switch v.Tag() {
	case span.TagNull:
		return Nil()
	case span.TagInt:
		return FromNumber(float64(v.Int()))
	case span.TagUint:
		return FromNumber(float64(v.Uint()))
	case span.TagFloat:
		return FromNumber(v.Float())
	case span.TagBool:
		return FromBool(v.Bool())
	case span.TagString:
		return FromString(v.Str())
	default:
		return Nil()
	}
}

// FromLua converts a gopher-lua value into a Value. L is the state lv
// lives in; it is captured by reference when lv is a function, so that
// Value.Callable can call back into the script later.
func FromLua(L *lua.LState, lv lua.LValue) Value {
	switch t := lv.(type) {
	case *lua.LNilType:
		return Nil()
	case lua.LBool:
		return FromBool(bool(t))
	case lua.LNumber:
		return FromNumber(float64(t))
	case lua.LString:
		return FromString(string(t))
	case *lua.LTable:
		if n := t.Len(); n > 0 {
			list := make(Values, n)
			for i := 1; i <= n; i++ {
				list[i-1] = FromLua(L, t.RawGetInt(i))
			}
			return FromList(list)
		}
		tbl := make(map[string]Value)
		t.ForEach(func(k, val lua.LValue) {
			tbl[k.String()] = FromLua(L, val)
		})
		return Value{Kind: KindTable, Table: tbl}
	case *lua.LFunction:
		fn := t
		return Value{Kind: KindFunc, Call: func(callArgs Values) (Values, error) {
			top := L.GetTop()
			L.Push(fn)
			for _, a := range callArgs {
				L.Push(ToLua(L, a))
			}
			if err := L.PCall(len(callArgs), lua.MultRet, nil); err != nil {
				return nil, err
			}
			n := L.GetTop() - top
			out := make(Values, n)
			for i := 0; i < n; i++ {
				out[i] = FromLua(L, L.Get(top+1+i))
			}
			L.SetTop(top)
			return out, nil
		}}
	default:
		return Nil()
	}
}

// ToLua converts a Value into a gopher-lua value living in L.
func ToLua(L *lua.LState, v Value) lua.LValue {
	switch v.Kind {
	case KindNil:
		return lua.LNil
	case KindBool:
		return lua.LBool(v.Bool)
	case KindNumber:
		return lua.LNumber(v.Num)
	case KindString:
		return lua.LString(v.Str)
	case KindList:
		tbl := L.NewTable()
		for i, e := range v.List {
			tbl.RawSetInt(i+1, ToLua(L, e))
		}
		return tbl
	case KindTable:
		tbl := L.NewTable()
		for k, e := range v.Table {
			tbl.RawSetString(k, ToLua(L, e))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// StringField returns the string-valued field named name, or "" if
// absent or not a string.
func (v Value) StringField(name string) (string, bool) {
	if v.Kind != KindTable {
		return "", false
	}
	f, ok := v.Table[name]
	if !ok || f.Kind != KindString {
		return "", false
	}
	return f.Str, true
}

// Field returns the raw field named name from a table Value.
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindTable {
		return Value{}, false
	}
	f, ok := v.Table[name]
	return f, ok
}
