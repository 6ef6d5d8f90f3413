// Package cookbook is the thin, intentionally minimal cookbook-language
// lexer/parser/compiler. The language itself is out of scope (spec
// §1 names the cookbook parser as a contract-only external
// collaborator); this package exists only to turn cookbook text into
// the *vm.Program opcode lists the engine actually runs, so the rest
// of the tree has something real to execute against.
package cookbook

import (
	"strconv"

	"github.com/mdhender/cook/internal/vm"
)

// Position is a source location used for diagnostics.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return p.File + ":" + strconv.Itoa(p.Line)
}

// EdgeType classifies how strongly an ingredient is bound to its
// target, mirroring graph.EdgeType (spec §3's edge-type bitset: strict
// forces a rebuild when newer, weak only orders execution, exists is
// satisfied by mere presence). cookbook cannot import graph without
// creating an import cycle, so the ingredient grammar carries its own
// copy; internal/graph/build.go translates it at instantiation time.
type EdgeType int

const (
	// EdgeStrict is cook's default: the ingredient forces a rebuild
	// when it is newer than the target.
	EdgeStrict EdgeType = iota
	// EdgeWeak only establishes build order; it never triggers a
	// rebuild on its own.
	EdgeWeak
	// EdgeExists is satisfied the moment the ingredient exists,
	// regardless of timestamps.
	EdgeExists
)

// PatternRecipe is the static definition described in spec §3's "Pattern
// recipe": target patterns, ingredient patterns, and the six opcode
// programs a recipe carries (precondition, flags, single-thread,
// host-binding, and the out-of-date/up-to-date bodies).
type PatternRecipe struct {
	Targets []string

	// Ingredients holds each ingredient pattern with any leading
	// edge-type decoration already stripped. IngredientEdges[i] is
	// the edge type decoration on Ingredients[i] named, following
	// real cook's edge_type_extract: an ingredient token may start
	// with "[weak]" or "[exists]" to override the default strict
	// binding, e.g. "%.o : %.c [weak]version.h".
	Ingredients     []string
	IngredientEdges []EdgeType

	Precondition *vm.Program // evaluates truthy/falsy; nil means "always true"
	Flags        *vm.Program // evaluates to a string list of flag names; nil means none
	SingleThread *vm.Program // evaluates truthy if this recipe must run alone under a tag
	HostBinding  *vm.Program // evaluates to a host tag string; nil means unbound

	OutOfDate *vm.Program // evaluates to the string list of shell commands to run
	UpToDate  *vm.Program // evaluates to the string list of shell commands to run when already current; nil means none

	Pos Position
}

// Cookbook is a parsed cookbook file: pattern recipes in declaration
// order, which spec §4.6 step 5 relies on for first-match-wins
// semantics.
type Cookbook struct {
	Recipes []*PatternRecipe
}
