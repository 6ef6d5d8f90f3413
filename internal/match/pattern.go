// Package match implements cook's pattern-vs-name matching engine
// (spec §4.4): the two selectable matching modes (cook-style '%' and
// POSIX regex), the match-frame stack used while instantiating a
// recipe, and path normalization (stripdot, spec §4.5).
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode selects which matching engine a Pattern uses. It is a
// process-wide (engine-context-wide) setting per spec §4.4.
type Mode int

const (
	// CookStyle: a single '%' matches a non-empty substring; leading
	// or trailing literal text anchors the match. A pattern may
	// contain at most one '%'.
	CookStyle Mode = iota
	// RegexMode: the pattern is a POSIX-style regular expression;
	// captures are referenced positionally (\1, \2, ...) the way sed
	// and cook's own regex dialect do.
	RegexMode
)

// Frame holds the variable bindings produced by one match. Capture
// names in CookStyle mode are always "stem" (cook recognizes only one
// wildcard per pattern); in RegexMode they are "1", "2", ... for each
// parenthesized group.
type Frame map[string]string

// Pattern is a compiled target or ingredient pattern.
type Pattern struct {
	mode Mode
	raw  string

	// CookStyle fields.
	prefix, suffix string
	hasWildcard    bool

	// RegexMode fields.
	re        *regexp.Regexp
	numGroups int
}

// Compile parses a pattern string under the given mode.
func Compile(mode Mode, pattern string) (*Pattern, error) {
	switch mode {
	case CookStyle:
		return compileCookStyle(pattern)
	case RegexMode:
		return compileRegex(pattern)
	default:
		return nil, fmt.Errorf("match: unknown mode %d", mode)
	}
}

func compileCookStyle(pattern string) (*Pattern, error) {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return &Pattern{mode: CookStyle, raw: pattern, prefix: pattern, hasWildcard: false}, nil
	}
	if strings.IndexByte(pattern[idx+1:], '%') >= 0 {
		return nil, fmt.Errorf("match: pattern %q has more than one %%, which cook does not support", pattern)
	}
	return &Pattern{
		mode:        CookStyle,
		raw:         pattern,
		prefix:      pattern[:idx],
		suffix:      pattern[idx+1:],
		hasWildcard: true,
	}, nil
}

func compileRegex(pattern string) (*Pattern, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("match: invalid regex pattern %q: %w", pattern, err)
	}
	return &Pattern{mode: RegexMode, raw: pattern, re: re, numGroups: re.NumSubexp()}, nil
}

// IsPattern reports whether this Pattern has any capturing wildcard
// (as opposed to being a literal name).
func (p *Pattern) IsPattern() bool {
	switch p.mode {
	case CookStyle:
		return p.hasWildcard
	case RegexMode:
		return p.numGroups > 0
	}
	return false
}

// Raw returns the original pattern text.
func (p *Pattern) Raw() string { return p.raw }

// Attempt returns a match frame binding the wildcard capture(s) to
// name's matched substrings if the pattern accepts name, or (nil,
// false) otherwise. This is the `attempt` contract from spec §4.4.
func (p *Pattern) Attempt(name string) (Frame, bool) {
	switch p.mode {
	case CookStyle:
		return p.attemptCookStyle(name)
	case RegexMode:
		return p.attemptRegex(name)
	}
	return nil, false
}

func (p *Pattern) attemptCookStyle(name string) (Frame, bool) {
	if !p.hasWildcard {
		if name == p.raw {
			return Frame{}, true
		}
		return nil, false
	}
	if !strings.HasPrefix(name, p.prefix) || !strings.HasSuffix(name, p.suffix) {
		return nil, false
	}
	// Guard against prefix/suffix overlap producing a negative-length
	// stem window (e.g. pattern "a%a" against name "a").
	if len(p.prefix)+len(p.suffix) > len(name) {
		return nil, false
	}
	stem := name[len(p.prefix) : len(name)-len(p.suffix)]
	if stem == "" {
		// cook requires the wildcard to match a non-empty substring.
		return nil, false
	}
	return Frame{"stem": stem}, true
}

func (p *Pattern) attemptRegex(name string) (Frame, bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	f := make(Frame, len(m)-1)
	for i := 1; i < len(m); i++ {
		f[strconv.Itoa(i)] = m[i]
	}
	return f, true
}

// Reconstruct applies frame to this pattern to produce a concrete
// string: reconstruct_lhs/rhs in spec §4.4, the mechanism by which an
// ingredient name is derived from a target's match frame.
func (p *Pattern) Reconstruct(frame Frame) (string, error) {
	switch p.mode {
	case CookStyle:
		if !p.hasWildcard {
			return p.raw, nil
		}
		stem, ok := frame["stem"]
		if !ok {
			return "", fmt.Errorf("match: frame has no %q binding to reconstruct %q", "stem", p.raw)
		}
		return p.prefix + stem + p.suffix, nil
	case RegexMode:
		return reconstructRegexTemplate(p.raw, frame)
	}
	return "", fmt.Errorf("match: unknown mode")
}

// reconstructRegexTemplate substitutes \1, \2, ... references in a
// template string (cook's ingredient-pattern analogue when in regex
// mode) with the corresponding frame bindings.
func reconstructRegexTemplate(template string, frame Frame) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] == '\\' && i+1 < len(template) && template[i+1] >= '1' && template[i+1] <= '9' {
			j := i + 1
			start := j
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				j++
			}
			ref := template[start:j]
			val, ok := frame[ref]
			if !ok {
				return "", fmt.Errorf("match: frame has no capture \\%s to reconstruct %q", ref, template)
			}
			b.WriteString(val)
			i = j - 1
			continue
		}
		b.WriteByte(template[i])
	}
	return b.String(), nil
}

// UsageMask computes which capture names are referenced across a list
// of pattern strings (spec §4.4), used to elide unreferenced captures
// so that multiple equivalent matches collapse. Patterns are given as
// raw reconstruction templates appropriate to mode.
func UsageMask(mode Mode, templates []string) map[string]bool {
	used := make(map[string]bool)
	for _, t := range templates {
		switch mode {
		case CookStyle:
			if strings.Contains(t, "%") {
				used["stem"] = true
			}
		case RegexMode:
			for i := 0; i < len(t); i++ {
				if t[i] == '\\' && i+1 < len(t) && t[i+1] >= '1' && t[i+1] <= '9' {
					j := i + 1
					start := j
					for j < len(t) && t[j] >= '0' && t[j] <= '9' {
						j++
					}
					used[t[start:j]] = true
					i = j - 1
				}
			}
		}
	}
	return used
}
