// Package vm implements the opcode stack machine that evaluates
// recipe-body expressions (spec §4.3): a tagged string/string-list
// value type, the instruction set, builtins, user-defined lexically
// scoped functions, and fuzzy-match suggestions on lookup failure.
package vm

import (
	"strings"

	"github.com/mdhender/cook/internal/strset"
)

// Value is the VM's only runtime type: either a single interned
// string (Scalar) or an ordered string list (List), never both.
type Value struct {
	list *strset.List
}

// Scalar wraps a single string as a one-element list, which is how
// cook represents scalars: every value is really a string list, and a
// list of length one is used wherever a scalar is expected.
func Scalar(s *strset.String) Value {
	return Value{list: strset.NewList(s)}
}

// List wraps an already-built string list.
func List(l *strset.List) Value {
	if l == nil {
		l = strset.NewList()
	}
	return Value{list: l}
}

// IsScalar reports whether the value has exactly one element, the
// convention the VM uses when a builtin requires a plain string.
func (v Value) IsScalar() bool { return v.list.Len() == 1 }

// AsScalar returns the value's first element's text, or "" for an
// empty list.
func (v Value) AsScalar() string {
	if v.list.Len() == 0 {
		return ""
	}
	return v.list.At(0).Text()
}

// AsList returns the underlying list.
func (v Value) AsList() *strset.List { return v.list }

// AsStrings renders the value to plain strings.
func (v Value) AsStrings() []string { return v.list.Strings() }

// Truthy implements cook's boolean convention for precondition
// evaluation: empty list (or a list whose sole element is empty,
// "false" or "0") is false, anything else is true.
func (v Value) Truthy() bool {
	if v.list.Len() == 0 {
		return false
	}
	if v.list.Len() == 1 {
		s := v.list.At(0).Text()
		return s != "" && s != "false" && s != "0"
	}
	return true
}

// Concat joins a and b into one value, flattening lists the way cook's
// string-list concatenation does.
func Concat(a, b Value) Value {
	return Value{list: a.list.Append(b.list.Items()...)}
}

// CatenateText joins every element of v with no separator, a distinct
// operation from list Concat (used by the "catenate" builtin).
func CatenateText(v Value) string {
	return strings.Join(v.AsStrings(), "")
}
