package vm

import (
	"context"

	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/strset"
)

// FuncDef is a user-defined, lexically scoped, recursive function.
type FuncDef struct {
	Name   string
	Params []string
	Body   *Program
	// DefScope is the scope the function closes over; a call creates
	// a fresh child of DefScope (not of the caller's scope), which is
	// what makes the scoping lexical rather than dynamic.
	DefScope *Scope
}

// Scope is one level of the function-name resolution chain. Nested
// function definitions shadow identically named outer ones.
type Scope struct {
	parent *Scope
	funcs  map[string]*FuncDef
	vars   map[string]Value
}

// NewScope creates a child scope of parent (nil for the root scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, funcs: make(map[string]*FuncDef), vars: make(map[string]Value)}
}

// Define registers fn in this scope, closing over it.
func (s *Scope) Define(fn *FuncDef) {
	fn.DefScope = s
	s.funcs[fn.Name] = fn
}

// Lookup searches this scope and its ancestors for a function.
func (s *Scope) Lookup(name string) (*FuncDef, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if fn, ok := sc.funcs[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Names collects every function name visible from this scope, used to
// build fuzzy-match suggestions.
func (s *Scope) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for sc := s; sc != nil; sc = sc.parent {
		for name := range sc.funcs {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// SetVar binds a parameter in this scope only (no outer shadowing
// lookup needed for writes: parameters always bind fresh per call).
func (s *Scope) SetVar(name string, v Value) { s.vars[name] = v }

// LookupVar searches this scope and its ancestors for a variable
// binding (a function parameter).
func (s *Scope) LookupVar(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// BuiltinFunc is the signature every builtin implements.
type BuiltinFunc func(ctx *ExecContext, args []Value) (Value, error)

// ExecContext is the state threaded through one Run call: the value
// stack, the match-frame stack, the search list, the recipe's
// auto-variables, and the function/builtin registries (spec §4.3).
type ExecContext struct {
	Ctx context.Context

	Interns *strset.Table
	Frames  *match.FrameStack

	// SearchList is the colon-separated directory hint sequence used
	// to resolve bare filenames (cook's search_list).
	SearchList []string

	// Auto-variables, bound at recipe entry.
	Target      *strset.List
	Ingredients *strset.List
	Younger     *strset.List

	Builtins map[string]BuiltinFunc
	Root     *Scope

	stack []Value

	// MaxCallDepth guards against runaway recursion in user-defined
	// functions; 0 means DefaultMaxCallDepth.
	MaxCallDepth int
	callDepth    int
}

// DefaultMaxCallDepth is the recursion ceiling applied when
// ExecContext.MaxCallDepth is left at zero.
const DefaultMaxCallDepth = 1000

func (c *ExecContext) push(v Value) { c.stack = append(c.stack, v) }

func (c *ExecContext) pop() Value {
	n := len(c.stack)
	v := c.stack[n-1]
	c.stack = c.stack[:n-1]
	return v
}

func (c *ExecContext) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	start := len(c.stack) - n
	args := append([]Value(nil), c.stack[start:]...)
	c.stack = c.stack[:start]
	return args
}

func (c *ExecContext) maxCallDepth() int {
	if c.MaxCallDepth > 0 {
		return c.MaxCallDepth
	}
	return DefaultMaxCallDepth
}
