// Package luafilter evaluates an inline Lua predicate against archive entry
// names in a sandboxed interpreter.
package luafilter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a single predicate evaluation.
const DefaultTimeout = time.Second

var errTimeout = errors.New("lua filter: sandbox timeout")

// Predicate is a compiled filter. It is safe for sequential use by multiple
// goroutines; evaluations are serialized.
type Predicate struct {
	mu      sync.Mutex
	L       *lua.LState
	fn      *lua.LFunction
	Timeout time.Duration
}

// Compile prepares code for evaluation. Expressions without an explicit
// return are wrapped as "return (<code>)".
func Compile(code string) (*Predicate, error) {
	src := strings.TrimSpace(code)
	if src == "" {
		return nil, errors.New("lua filter: empty predicate")
	}
	if !containsReturn(src) {
		src = "return (" + src + ")"
	}
	L := newSandboxState()
	fn, err := L.LoadString(src)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("lua filter: %w", err)
	}
	return &Predicate{L: L, fn: fn, Timeout: DefaultTimeout}, nil
}

// Keep evaluates the predicate with the global "path" set to name.
// Directory names end with "/" and also set the global "dir" to true.
func (p *Predicate) Keep(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
		defer cancel()
		p.L.SetContext(ctx)
		defer p.L.RemoveContext()
	}
	p.L.SetGlobal("path", lua.LString(name))
	p.L.SetGlobal("dir", lua.LBool(strings.HasSuffix(name, "/")))

	p.L.Push(p.fn)
	if err := p.L.PCall(0, 1, nil); err != nil {
		if isTimeoutError(err) {
			return false, errTimeout
		}
		return false, fmt.Errorf("lua filter: %w", err)
	}
	ret := p.L.Get(-1)
	p.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the interpreter.
func (p *Predicate) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.L.Close()
}

func newSandboxState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:     true,
		RegistrySize:     256,
		RegistryMaxSize:  4096,
		RegistryGrowStep: 0,
	})
	openLib := func(name string, f lua.LGFunction) {
		L.Push(L.NewFunction(f))
		L.Push(lua.LString(name))
		L.Call(1, 0)
	}
	openLib("base", lua.OpenBase)
	openLib("string", lua.OpenString)
	openLib("table", lua.OpenTable)
	openLib("math", lua.OpenMath)
	// no file or module loading from inside the sandbox
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func containsReturn(s string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		if f == "return" {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadline") || strings.Contains(msg, "context canceled")
}
