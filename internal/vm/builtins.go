package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/strset"
)

// DefaultBuiltins returns the builtin table described in spec §4.3:
// list arithmetic, wildcard/glob, string-list pattern substitution,
// text/file I/O, and stripdot.
func DefaultBuiltins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"head":      biHead,
		"tail":      biTail,
		"count":     biCount,
		"words":     biWords,
		"firstword": biFirstword,
		"sort":      biSort,
		"quote":     biQuote,
		"prepost":   biPrepost,
		"catenate":  biCatenate,
		"upcase":    biUpcase,
		"downcase":  biDowncase,
		"wildcard":  biWildcard,
		"subst":     biSubst,
		"read":      biRead,
		"write":     biWrite,
		"stripdot":  biStripdot,
	}
}

func requireArgs(name string, args []Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func biHead(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("head", args, 1); err != nil {
		return Value{}, err
	}
	h := args[0].AsList().Head()
	if h == nil {
		return List(strset.NewList()), nil
	}
	return Scalar(h), nil
}

func biTail(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("tail", args, 1); err != nil {
		return Value{}, err
	}
	return List(args[0].AsList().Tail()), nil
}

func biCount(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("count", args, 1); err != nil {
		return Value{}, err
	}
	n := args[0].AsList().Len()
	return Scalar(ctx.Interns.Intern(fmt.Sprintf("%d", n))), nil
}

func biWords(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("words", args, 1); err != nil {
		return Value{}, err
	}
	return biCount(ctx, args)
}

func biFirstword(ctx *ExecContext, args []Value) (Value, error) {
	return biHead(ctx, args)
}

func biSort(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("sort", args, 1); err != nil {
		return Value{}, err
	}
	return List(args[0].AsList().Sorted()), nil
}

func biQuote(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("quote", args, 1); err != nil {
		return Value{}, err
	}
	ss := args[0].AsStrings()
	quoted := make([]string, len(ss))
	for i, s := range ss {
		if strings.ContainsAny(s, " \t\"'\\") {
			quoted[i] = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
		} else {
			quoted[i] = s
		}
	}
	return List(strset.FromStrings(ctx.Interns, quoted)), nil
}

// biPrepost prepends prefix and appends suffix to every element of a
// list: prepost(prefix, suffix, list).
func biPrepost(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("prepost", args, 3); err != nil {
		return Value{}, err
	}
	prefix := args[0].AsScalar()
	suffix := args[1].AsScalar()
	ss := args[2].AsStrings()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = prefix + s + suffix
	}
	return List(strset.FromStrings(ctx.Interns, out)), nil
}

func biCatenate(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("catenate", args, 1); err != nil {
		return Value{}, err
	}
	return Scalar(ctx.Interns.Intern(CatenateText(args[0]))), nil
}

func biUpcase(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("upcase", args, 1); err != nil {
		return Value{}, err
	}
	ss := args[0].AsStrings()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return List(strset.FromStrings(ctx.Interns, out)), nil
}

func biDowncase(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("downcase", args, 1); err != nil {
		return Value{}, err
	}
	ss := args[0].AsStrings()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return List(strset.FromStrings(ctx.Interns, out)), nil
}

// biWildcard expands each space-separated glob pattern in its argument
// against the filesystem, honoring ctx.SearchList the way cook
// resolves bare names against its search_list.
func biWildcard(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("wildcard", args, 1); err != nil {
		return Value{}, err
	}
	var all []string
	for _, pattern := range args[0].AsStrings() {
		for _, p := range strings.Fields(pattern) {
			matches, err := filepath.Glob(p)
			if err != nil {
				return Value{}, fmt.Errorf("wildcard %q: %w", p, err)
			}
			if len(matches) == 0 && !filepath.IsAbs(p) {
				for _, dir := range ctx.SearchList {
					m2, err := filepath.Glob(filepath.Join(dir, p))
					if err != nil {
						return Value{}, fmt.Errorf("wildcard %q: %w", p, err)
					}
					matches = append(matches, m2...)
				}
			}
			all = append(all, matches...)
		}
	}
	return List(strset.FromStrings(ctx.Interns, all)), nil
}

// biSubst applies cook-style '%' pattern substitution to every element
// of a list: subst(fromPattern, toPattern, list).
func biSubst(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("subst", args, 3); err != nil {
		return Value{}, err
	}
	from, err := match.Compile(match.CookStyle, args[0].AsScalar())
	if err != nil {
		return Value{}, err
	}
	to, err := match.Compile(match.CookStyle, args[1].AsScalar())
	if err != nil {
		return Value{}, err
	}
	ss := args[2].AsStrings()
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		frame, ok := from.Attempt(s)
		if !ok {
			out = append(out, s)
			continue
		}
		reconstructed, err := to.Reconstruct(frame)
		if err != nil {
			return Value{}, err
		}
		out = append(out, reconstructed)
	}
	return List(strset.FromStrings(ctx.Interns, out)), nil
}

func biRead(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("read", args, 1); err != nil {
		return Value{}, err
	}
	path := args[0].AsScalar()
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("read %q: %w", path, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return List(strset.FromStrings(ctx.Interns, lines)), nil
}

func biWrite(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("write", args, 2); err != nil {
		return Value{}, err
	}
	path := args[0].AsScalar()
	text := strings.Join(args[1].AsStrings(), "\n")
	if text != "" {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return Value{}, fmt.Errorf("write %q: %w", path, err)
	}
	return args[0], nil
}

func biStripdot(ctx *ExecContext, args []Value) (Value, error) {
	if err := requireArgs("stripdot", args, 1); err != nil {
		return Value{}, err
	}
	ss := match.StripDotList(args[0].AsStrings(), true)
	return List(strset.FromStrings(ctx.Interns, ss)), nil
}
