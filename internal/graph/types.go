// Package graph builds cook's dependency graph (spec §4.6): files and
// recipes as arena-indexed nodes (DESIGN NOTES §9 prefers integer
// indices over raw pointers), edges typed by a bitset, and lazy,
// pattern-driven construction starting from a set of goal names.
package graph

import (
	"time"

	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/match"
)

// EdgeType is a bitset so a union of edge requests (the same file
// wanted through two different paths) is well-defined.
type EdgeType uint8

const (
	EdgeStrict EdgeType = 1 << iota // forces rebuild if newer; also cook's "default"
	EdgeWeak                       // ordering only, never triggers rebuild
	EdgeExists                      // satisfied by mere existence
)

// EdgeDefault is cook's default edge: it behaves like EdgeStrict for
// rebuild propagation.
const EdgeDefault = EdgeStrict

// StatState is a file-node's last-known filesystem state.
type StatState int

const (
	StatUnknown StatState = iota
	StatExists
	StatMissing
	StatStale
)

// Leafness classifies why a file has no producing recipe (spec §4.6).
type Leafness int

const (
	LeafUnknown Leafness = iota
	LeafExists
	LeafExplicit
	InteriorExists
	InteriorExplicit
	ExteriorExplicit
	Indeterminate
	LeafError
)

func (l Leafness) String() string {
	switch l {
	case LeafExists:
		return "leaf_exists"
	case LeafExplicit:
		return "leaf_explicit"
	case InteriorExists:
		return "interior_exists"
	case InteriorExplicit:
		return "interior_explicit"
	case ExteriorExplicit:
		return "exterior_explicit"
	case Indeterminate:
		return "indeterminate"
	case LeafError:
		return "error"
	default:
		return "unknown"
	}
}

// FileNode is one file name in the graph. Per invariant 1, a name
// appears exactly once; Graph's fileIndex map enforces that.
type FileNode struct {
	Index      int
	Name       string
	State      StatState
	MTime      time.Time
	Producer   int // recipe-node index, or -1 if this file has none
	Dependents []int
	Leaf       Leafness
}

// IngredientEdge pairs an ingredient file-node index with the edge
// type it was requested under.
type IngredientEdge struct {
	File int
	Type EdgeType
}

// RecipeNode is one instantiated pattern recipe: the pattern it came
// from, the match frame captured at instantiation, and its resolved
// targets/ingredients.
type RecipeNode struct {
	Index   int
	Recipe  *cookbook.PatternRecipe
	Frame   match.Frame
	Targets []int
	Edges   []IngredientEdge

	// Resolved once, at instantiation, from the recipe's static
	// opcode programs (spec §3's pattern recipe fields).
	SingleThreadTag string // "" means not single-threaded
	HostTag         string // "" means unbound, any host
	Flags           []string
}
