package cookbook

import (
	"fmt"
	"strings"

	"github.com/mdhender/cook/internal/vm"
)

// compileExpr compiles one expression string into a Program. The
// grammar recognized here is deliberately small: literal text,
// `$name` variable references (auto-variables target/ingredient/
// younger, or a match-frame capture such as `$stem`), and bracketed
// builtin calls `[name arg arg...]`, which may nest. Everything a line
// produces concatenates into the line's single result value, the way
// a cookbook recipe line is really one interpolated shell command.
func compileExpr(s string, line int) (*vm.Program, error) {
	var instrs []vm.Instruction
	n, err := compileSegment(s, &instrs, line)
	if err != nil {
		return nil, err
	}
	switch {
	case n == 0:
		instrs = append(instrs, vm.Instruction{Op: vm.OpPushString, Str: "", Line: line})
	case n > 1:
		instrs = append(instrs, vm.Instruction{Op: vm.OpCallBuiltin, Str: "__join_parts", Argc: n, Line: line})
	}
	return &vm.Program{Instructions: instrs}, nil
}

// compileSegment appends instructions for s to *instrs and returns how
// many values it leaves on the stack (each a "part" to be joined by
// the caller).
func compileSegment(s string, instrs *[]vm.Instruction, line int) (int, error) {
	parts := 0
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			*instrs = append(*instrs, vm.Instruction{Op: vm.OpPushString, Str: lit.String(), Line: line})
			parts++
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '$':
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			if j == i+1 {
				lit.WriteByte(s[i])
				continue
			}
			flush()
			name := s[i+1 : j]
			*instrs = append(*instrs,
				vm.Instruction{Op: vm.OpPushString, Str: name, Line: line},
				vm.Instruction{Op: vm.OpCallBuiltin, Str: "__var", Argc: 1, Line: line},
			)
			parts++
			i = j - 1

		case '[':
			depth := 1
			j := i + 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '[':
					depth++
				case ']':
					depth--
				}
				if depth > 0 {
					j++
				}
			}
			if depth != 0 {
				return 0, fmt.Errorf("line %d: unmatched '[' in %q", line, s)
			}
			flush()
			call := s[i+1 : j]
			if err := compileCall(call, instrs, line); err != nil {
				return 0, err
			}
			parts++
			i = j

		default:
			lit.WriteByte(s[i])
		}
	}
	flush()
	return parts, nil
}

// compileCall compiles the inside of a `[name arg arg...]` builtin
// call.
func compileCall(call string, instrs *[]vm.Instruction, line int) error {
	fields := splitTopLevel(call)
	if len(fields) == 0 {
		return fmt.Errorf("line %d: empty builtin call %q", line, call)
	}
	name := fields[0]
	args := fields[1:]
	for _, arg := range args {
		sub, err := compileExpr(arg, line)
		if err != nil {
			return err
		}
		inlineProgram(instrs, sub)
	}
	*instrs = append(*instrs, vm.Instruction{Op: vm.OpCallBuiltin, Str: name, Argc: len(args), Line: line})
	return nil
}

// inlineProgram appends sub's instructions to instrs, rewriting any
// jump targets by the offset at which they land (sub-expressions never
// jump across that boundary in this compiler, but the rewrite keeps
// the invariant true if a future builtin's argument expression ever
// needs one).
func inlineProgram(instrs *[]vm.Instruction, sub *vm.Program) {
	offset := len(*instrs)
	for _, in := range sub.Instructions {
		if in.Op == vm.OpJump || in.Op == vm.OpJumpIfFalse {
			in.Target += offset
		}
		*instrs = append(*instrs, in)
	}
}

// splitTopLevel splits on whitespace, treating '[' ']' as nesting that
// whitespace inside does not split on.
func splitTopLevel(s string) []string {
	var fields []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '[':
			depth++
			cur.WriteByte(c)
		case c == ']':
			depth--
			cur.WriteByte(c)
		case (c == ' ' || c == '\t') && depth == 0:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// compileLines compiles each line independently and collects their
// results into one list value via __collect, matching the out-of-date/
// up-to-date body contract: "evaluates to the string list of shell
// commands to run".
func compileLines(lines []string, startLine int) (*vm.Program, error) {
	var instrs []vm.Instruction
	n := 0
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		sub, err := compileExpr(l, startLine+i)
		if err != nil {
			return nil, err
		}
		inlineProgram(&instrs, sub)
		n++
	}
	instrs = append(instrs, vm.Instruction{Op: vm.OpCallBuiltin, Str: "__collect", Argc: n, Line: startLine})
	return &vm.Program{Instructions: instrs}, nil
}
