// Package script runs user-supplied Lua in a restricted interpreter. Scripts
// see only the values handed to them: no io, os, package loading or file access.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a script run when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

var ErrScript = errors.New("script error")

// LogFunc receives log calls made from a script.
type LogFunc func(level, message string)

// Env is what a script sees besides its code.
type Env struct {
	// Globals are exposed as Lua globals, converted from Go values.
	Globals map[string]any
	// Log backs the log/warn/error globals.
	Log LogFunc
	// Functions are extra Go callables exposed by name.
	Functions map[string]func(args ...any) (any, error)
}

var openLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

var removedBaseFuncs = []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "collectgarbage"}

// Run executes code as a function body and returns its first return value
// converted back to Go.
func Run(ctx context.Context, code string, env Env) (any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)

		defer cancel()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range openLibs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrScript, lib.name, err)
		}
	}

	for _, name := range removedBaseFuncs {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetContext(ctx)

	for name, value := range env.Globals {
		L.SetGlobal(name, ToLua(L, value))
	}

	for _, level := range []string{"log", "warn", "error"} {
		L.SetGlobal(level, L.NewFunction(logFunction(level, env.Log)))
	}

	for name, fn := range env.Functions {
		L.SetGlobal(name, L.NewFunction(goFunction(fn)))
	}

	top := L.GetTop()

	if err := L.DoString(code); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrScript, ctx.Err())
		}

		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}

	if L.GetTop() == top {
		return nil, nil
	}

	return FromLua(L.Get(top + 1)), nil
}

// Eval runs expr as a single expression and reports its Lua truthiness.
func Eval(ctx context.Context, expr string, env Env) (bool, error) {
	v, err := Run(ctx, "return ("+expr+")", env)
	if err != nil {
		return false, err
	}

	return Truthy(v), nil
}

// Truthy follows script semantics: nil and false are false, everything else true.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}

func logFunction(level string, fn LogFunc) lua.LGFunction {
	return func(L *lua.LState) int {
		if fn == nil {
			return 0
		}

		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}

		fn(level, strings.Join(parts, " "))

		return 0
	}
}

func goFunction(fn func(args ...any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		args := make([]any, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			args = append(args, FromLua(L.Get(i)))
		}

		out, err := fn(args...)
		if err != nil {
			L.RaiseError("%s", err.Error())

			return 0
		}

		L.Push(ToLua(L, out))

		return 1
	}
}

// ToLua converts JSON-shaped Go values into Lua values.
func ToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case []any:
		tbl := L.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, ToLua(L, item))
		}

		return tbl
	case []string:
		tbl := L.NewTable()
		for i, item := range v {
			tbl.RawSetInt(i+1, lua.LString(item))
		}

		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range v {
			tbl.RawSetString(k, ToLua(L, item))
		}

		return tbl
	default:
		normalized, err := normalize(v)
		if err != nil {
			return lua.LString(fmt.Sprint(v))
		}

		return ToLua(L, normalized)
	}
}

// FromLua converts a Lua value back to Go. Tables with a contiguous 1..n
// integer key range become []any, other tables map[string]any.
func FromLua(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil
		}

		return f
	case *lua.LTable:
		return tableToGo(v)
	default:
		return value.String()
	}
}

func tableToGo(t *lua.LTable) any {
	n := t.MaxN()

	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			arr = append(arr, FromLua(t.RawGetInt(i)))
		}

		return arr
	}

	obj := make(map[string]any, count)

	t.ForEach(func(k, v lua.LValue) {
		obj[k.String()] = FromLua(v)
	})

	return obj
}
