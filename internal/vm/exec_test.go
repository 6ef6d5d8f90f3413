package vm

import (
	"testing"

	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/strset"
)

func newTestContext() *ExecContext {
	interns := strset.NewTable()
	return &ExecContext{
		Interns:  interns,
		Frames:   match.NewFrameStack(),
		Builtins: DefaultBuiltins(),
		Root:     NewScope(nil),
	}
}

func TestPushStringImplicitSuccess(t *testing.T) {
	ctx := newTestContext()
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushString, Str: "foo.o"},
	}}
	res := Run(prog, ctx)
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", res.Status)
	}
	if res.Value.AsScalar() != "foo.o" {
		t.Errorf("value = %q, want foo.o", res.Value.AsScalar())
	}
}

func TestJumpIfFalse(t *testing.T) {
	ctx := newTestContext()
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushString, Str: ""},       // 0: falsy
		{Op: OpJumpIfFalse, Target: 3},    // 1
		{Op: OpPushString, Str: "taken"},  // 2 (skipped)
		{Op: OpPushString, Str: "landed"}, // 3
	}}
	res := Run(prog, ctx)
	if res.Value.AsScalar() != "landed" {
		t.Errorf("value = %q, want landed", res.Value.AsScalar())
	}
}

func TestCallBuiltinHeadTail(t *testing.T) {
	ctx := newTestContext()
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushList, Strs: []string{"a", "b", "c"}},
		{Op: OpCallBuiltin, Str: "tail", Argc: 1},
	}}
	res := Run(prog, ctx)
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, err = %v", res.Status, res.Err)
	}
	got := res.Value.AsStrings()
	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("tail = %v, want %v", got, want)
	}
}

func TestCallUnknownBuiltinSuggestsClosest(t *testing.T) {
	ctx := newTestContext()
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushList, Strs: []string{"a"}},
		{Op: OpCallBuiltin, Str: "haed", Argc: 1}, // typo for "head"
	}}
	res := Run(prog, ctx)
	if res.Status != StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	if res.Err == nil || !contains(res.Err.Error(), "head") {
		t.Errorf("error %v should suggest %q", res.Err, "head")
	}
}

func TestFailWithMessage(t *testing.T) {
	ctx := newTestContext()
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushString, Str: "disk full"},
		{Op: OpFailWithMessage, Str: "recipe aborted"},
	}}
	res := Run(prog, ctx)
	if res.Status != StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	if !contains(res.Err.Error(), "recipe aborted") || !contains(res.Err.Error(), "disk full") {
		t.Errorf("error = %v, want both message and reason", res.Err)
	}
}

func TestMatchPushPop(t *testing.T) {
	ctx := newTestContext()
	if _, ok := ctx.Frames.Lookup("stem"); ok {
		t.Fatal("expected empty frame stack initially")
	}
	prog := &Program{Instructions: []Instruction{
		{Op: OpMatchPush, Frame: match.Frame{"stem": "foo"}},
		{Op: OpPushString, Str: "sentinel"},
		{Op: OpMatchPop},
	}}
	Run(prog, ctx)
	if _, ok := ctx.Frames.Lookup("stem"); ok {
		t.Error("frame should have been popped")
	}
}

// TestUserFunctionRecursion defines a function that counts down to
// zero by calling itself, exercising OpCallUser recursion and the
// per-call parameter scope together.
func TestUserFunctionRecursion(t *testing.T) {
	ctx := newTestContext()

	countdown := &FuncDef{
		Name:   "countdown",
		Params: []string{"n"},
		Body: &Program{Instructions: []Instruction{
			// if n == "0" jump to the base case
			{Op: OpPushString, Str: "0"},
			{Op: OpCallBuiltin, Str: "param-n-eq", Argc: 1},
			{Op: OpJumpIfFalse, Target: 5},
			{Op: OpPushString, Str: "0"},
			{Op: OpJump, Target: 7},
			// recursive case: push n-1 and recurse
			{Op: OpCallBuiltin, Str: "param-n-dec", Argc: 0},
			{Op: OpCallUser, Str: "countdown", Argc: 1},
		}},
	}
	ctx.Root.Define(countdown)

	// Builtins that reach into the current call frame's "n" parameter;
	// a real cookbook compiler would instead emit push-var opcodes,
	// but ExecContext doesn't need one to prove recursion works.
	ctx.Builtins["param-n-eq"] = func(c *ExecContext, args []Value) (Value, error) {
		n, _ := c.Root.LookupVar("n")
		if n.AsScalar() == args[0].AsScalar() {
			return Scalar(c.Interns.Intern("1")), nil
		}
		return List(strset.NewList()), nil
	}
	ctx.Builtins["param-n-dec"] = func(c *ExecContext, args []Value) (Value, error) {
		n, _ := c.Root.LookupVar("n")
		v := n.AsScalar()[0] - '1'
		return Scalar(c.Interns.Intern(string(rune('0' + v)))), nil
	}

	prog := &Program{Instructions: []Instruction{
		{Op: OpPushString, Str: "2"},
		{Op: OpCallUser, Str: "countdown", Argc: 1},
	}}
	res := Run(prog, ctx)
	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, err = %v", res.Status, res.Err)
	}
	if res.Value.AsScalar() != "0" {
		t.Errorf("value = %q, want 0", res.Value.AsScalar())
	}
}

func TestBuiltinWaitSentinel(t *testing.T) {
	ctx := newTestContext()
	ctx.Builtins["need"] = func(ctx *ExecContext, args []Value) (Value, error) {
		return Value{}, Wait("some/ingredient.o")
	}
	prog := &Program{Instructions: []Instruction{
		{Op: OpPushList},
		{Op: OpCallBuiltin, Str: "need", Argc: 1},
	}}
	res := Run(prog, ctx)
	if res.Status != StatusWait {
		t.Fatalf("status = %v, want wait", res.Status)
	}
	if res.WaitFor != "some/ingredient.o" {
		t.Errorf("WaitFor = %q, want some/ingredient.o", res.WaitFor)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
