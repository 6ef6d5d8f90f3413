package cookbook

import (
	"fmt"
	"strings"

	"github.com/mdhender/cook/internal/strset"
	"github.com/mdhender/cook/internal/vm"
)

// RuntimeBuiltins returns the small set of builtins the compiler
// above emits calls to (__var, __join_parts, __collect). They are not
// part of the cookbook language's public builtin surface (spec §4.3
// lists the user-facing ones); they are this compiler's code-
// generation primitives, kept here rather than in package vm because
// they are specific to how this package lowers expressions, not to
// the VM itself.
func RuntimeBuiltins() map[string]vm.BuiltinFunc {
	return map[string]vm.BuiltinFunc{
		"__var":        biVar,
		"__join_parts": biJoinParts,
		"__collect":    biCollect,
	}
}

// Merge combines vm.DefaultBuiltins() with RuntimeBuiltins(), the
// table an ExecContext actually needs to run compiled cookbook
// programs.
func Merge() map[string]vm.BuiltinFunc {
	out := vm.DefaultBuiltins()
	for name, fn := range RuntimeBuiltins() {
		out[name] = fn
	}
	return out
}

func biVar(ctx *vm.ExecContext, args []vm.Value) (vm.Value, error) {
	name := args[0].AsScalar()
	switch name {
	case "target":
		return vm.List(ctx.Target), nil
	case "ingredient":
		return vm.List(ctx.Ingredients), nil
	case "younger":
		return vm.List(ctx.Younger), nil
	}
	if v, ok := ctx.Frames.Lookup(name); ok {
		return vm.Scalar(ctx.Interns.Intern(v)), nil
	}
	return vm.Value{}, fmt.Errorf("unbound variable %q", name)
}

func biJoinParts(ctx *vm.ExecContext, args []vm.Value) (vm.Value, error) {
	var b strings.Builder
	for _, a := range args {
		if a.IsScalar() {
			b.WriteString(a.AsScalar())
		} else {
			b.WriteString(strings.Join(a.AsStrings(), " "))
		}
	}
	return vm.Scalar(ctx.Interns.Intern(b.String())), nil
}

func biCollect(ctx *vm.ExecContext, args []vm.Value) (vm.Value, error) {
	ss := make([]string, len(args))
	for i, a := range args {
		ss[i] = a.AsScalar()
	}
	return vm.List(strset.FromStrings(ctx.Interns, ss)), nil
}
