package vm

import (
	"errors"
	"fmt"

	"github.com/mdhender/cook/internal/strset"
)

// Run executes prog against ctx from its first instruction, returning
// once it reaches the end (implicit success), a fail-with-message
// opcode, a waitError from a builtin, or ctx.Ctx is cancelled.
func Run(prog *Program, ctx *ExecContext) Result {
	ip := 0
	var last Value

	for ip < len(prog.Instructions) {
		if ctx.Ctx != nil {
			select {
			case <-ctx.Ctx.Done():
				return Result{Status: StatusInterrupted, Err: ctx.Ctx.Err()}
			default:
			}
		}

		instr := prog.Instructions[ip]
		switch instr.Op {
		case OpPushString:
			ctx.push(Scalar(ctx.Interns.Intern(instr.Str)))
			ip++

		case OpPushList:
			ctx.push(List(strset.FromStrings(ctx.Interns, instr.Strs)))
			ip++

		case OpJump:
			ip = instr.Target

		case OpJumpIfFalse:
			v := ctx.pop()
			if !v.Truthy() {
				ip = instr.Target
			} else {
				ip++
			}

		case OpCallBuiltin:
			fn, ok := ctx.Builtins[instr.Str]
			if !ok {
				return Result{Status: StatusError, Err: unknownNameError("builtin", instr.Str, builtinNames(ctx.Builtins))}
			}
			args := ctx.popN(instr.Argc)
			v, err := fn(ctx, args)
			if err != nil {
				var we *waitError
				if errors.As(err, &we) {
					return Result{Status: StatusWait, WaitFor: we.ingredient}
				}
				return Result{Status: StatusError, Err: fmt.Errorf("line %d: builtin %q: %w", instr.Line, instr.Str, err)}
			}
			ctx.push(v)
			ip++

		case OpCallUser:
			fn, ok := ctx.Root.Lookup(instr.Str)
			if !ok {
				return Result{Status: StatusError, Err: unknownNameError("function", instr.Str, ctx.Root.Names())}
			}
			args := ctx.popN(instr.Argc)
			res := callUserFunc(ctx, fn, args)
			if res.Status != StatusSuccess {
				return res
			}
			ctx.push(res.Value)
			ip++

		case OpMatchPush:
			ctx.Frames.Push(instr.Frame)
			ip++

		case OpMatchPop:
			ctx.Frames.Pop()
			ip++

		case OpFailWithMessage:
			reason := ""
			if len(ctx.stack) > 0 {
				reason = ctx.pop().AsScalar()
			}
			msg := instr.Str
			if reason != "" {
				msg = fmt.Sprintf("%s: %s", msg, reason)
			}
			return Result{Status: StatusError, Err: fmt.Errorf("line %d: %s", instr.Line, msg)}

		default:
			return Result{Status: StatusError, Err: fmt.Errorf("line %d: unknown opcode %v", instr.Line, instr.Op)}
		}
	}

	if len(ctx.stack) > 0 {
		last = ctx.pop()
	}
	return Result{Status: StatusSuccess, Value: last}
}

// callUserFunc invokes fn with args bound to its parameters in a fresh
// child scope of fn.DefScope (lexical, not dynamic, scoping), then
// runs its body, enforcing the recursion depth guard.
func callUserFunc(ctx *ExecContext, fn *FuncDef, args []Value) Result {
	ctx.callDepth++
	defer func() { ctx.callDepth-- }()
	if ctx.callDepth > ctx.maxCallDepth() {
		return Result{Status: StatusError, Err: fmt.Errorf("function %q: call depth exceeded %d, probable runaway recursion", fn.Name, ctx.maxCallDepth())}
	}

	callScope := NewScope(fn.DefScope)
	for i, param := range fn.Params {
		var v Value
		if i < len(args) {
			v = args[i]
		}
		callScope.SetVar(param, v)
	}

	savedRoot := ctx.Root
	ctx.Root = callScope
	defer func() { ctx.Root = savedRoot }()

	return Run(fn.Body, ctx)
}
