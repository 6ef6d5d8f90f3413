package vm

import "github.com/mdhender/cook/internal/match"

// Opcode is one instruction in a compiled recipe body or precondition.
type Opcode int

const (
	OpPushString Opcode = iota
	OpPushList
	OpJump
	OpJumpIfFalse
	OpCallBuiltin
	OpCallUser
	OpMatchPush
	OpMatchPop
	OpFailWithMessage
)

func (op Opcode) String() string {
	switch op {
	case OpPushString:
		return "push-string"
	case OpPushList:
		return "push-list"
	case OpJump:
		return "jump"
	case OpJumpIfFalse:
		return "jump-if-false"
	case OpCallBuiltin:
		return "call-builtin"
	case OpCallUser:
		return "call-user-function"
	case OpMatchPush:
		return "match-push"
	case OpMatchPop:
		return "match-pop"
	case OpFailWithMessage:
		return "fail-with-message"
	default:
		return "unknown-opcode"
	}
}

// Instruction is one decoded opcode plus its operands. Only the fields
// relevant to Op are meaningful; the zero value of the rest is
// harmless.
type Instruction struct {
	Op Opcode

	// OpPushString operand, or OpCallBuiltin/OpCallUser's callee name,
	// or OpFailWithMessage's message template.
	Str string

	// OpPushList operand.
	Strs []string

	// OpJump / OpJumpIfFalse target: an absolute index into the
	// enclosing Program's Instructions slice.
	Target int

	// OpCallBuiltin / OpCallUser argument count: the top N stack
	// values are popped, in push order, and passed as arguments.
	Argc int

	// Line is the source line this instruction originated from, for
	// diagnostics.
	Line int

	// Frame is the match frame OpMatchPush installs; only meaningful
	// for that opcode.
	Frame match.Frame
}

// Program is one compiled opcode sequence: a recipe body, a
// precondition, or a user-defined function body.
type Program struct {
	Instructions []Instruction
	Source       string // cookbook file, for diagnostics
}
