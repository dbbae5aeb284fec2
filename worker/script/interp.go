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

// Package script wraps an embedded scripting interpreter behind a small
// capability interface: load a script, install host functions, call a
// function, and set a cancellation hook. The
// worker pool programs against Interpreter, not against any particular
// scripting language; the concrete backing here is gopher-lua, a pure
// Go Lua 5.1 implementation, but any interpreter meeting this
// capability set is a drop-in replacement.
package script

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Func is a host function exposed to scripts. args are the positional
// call arguments already converted to Go values (see Value); the
// returned Values become the script-visible return values.
type Func func(args []Value) (Values, error)

// Interpreter is the capability abstraction a worker needs from its
// embedded scripting engine.
type Interpreter interface {
	// Install binds name to fn in the script's global namespace.
	Install(name string, fn Func)
	// Load compiles src without running it.
	Load(src string) error
	// Run executes the loaded script to completion and returns its
	// final top-level return value(s).
	Run(ctx context.Context) (Values, error)
	// Close releases the interpreter instance.
	Close()
}

// Lua is the gopher-lua backed Interpreter.
type Lua struct {
	state  *lua.LState
	loaded *lua.LFunction
}

// New returns a fresh interpreter instance. Each worker owns exactly
// one, created for the duration of a single query.
func New() *Lua {
	return &Lua{state: lua.NewState()}
}

func (l *Lua) Install(name string, fn Func) {
	l.state.SetGlobal(name, l.state.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		args := make([]Value, n)
		for i := 1; i <= n; i++ {
			args[i-1] = FromLua(L, L.Get(i))
		}
		out, err := fn(args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for _, v := range out {
			L.Push(ToLua(L, v))
		}
		return len(out)
	}))
}

func (l *Lua) Load(src string) error {
	fn, err := l.state.LoadString(src)
	if err != nil {
		return fmt.Errorf("script: compiling script: %w", err)
	}
	l.loaded = fn
	return nil
}

// Run executes the loaded chunk. Cancellation is checked at the
// interpreter's instruction boundary via gopher-lua's context support
// (LState.SetContext), which aborts the running script the next time
// its bytecode dispatch loop polls ctx.Done().
func (l *Lua) Run(ctx context.Context) (Values, error) {
	l.state.SetContext(ctx)
	if l.loaded == nil {
		return nil, fmt.Errorf("script: Run called before Load")
	}
	top := l.state.GetTop()
	l.state.Push(l.loaded)
	if err := l.state.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	n := l.state.GetTop() - top
	out := make(Values, n)
	for i := 0; i < n; i++ {
		out[i] = FromLua(l.state, l.state.Get(top+1+i))
	}
	l.state.SetTop(top)
	return out, nil
}

func (l *Lua) Close() { l.state.Close() }

var _ Interpreter = (*Lua)(nil)
