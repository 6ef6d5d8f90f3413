package graph

import (
	"context"
	"fmt"

	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/cookerr"
	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/strset"
	"github.com/mdhender/cook/internal/vm"
)

// Graph is the arena: Files and Recipes are append-only slices indexed
// by FileNode.Index / RecipeNode.Index, so a reference is a plain int
// rather than a pointer (DESIGN NOTES §9).
type Graph struct {
	Files   []*FileNode
	Recipes []*RecipeNode

	fileIndex map[string]int
	book      *cookbook.Cookbook
	mode      match.Mode
	stripdot  bool
	lax       bool // indeterminate leaves permitted instead of a hard error

	interns  *strset.Table
	stats    *statcache.Cache
	builtins map[string]vm.BuiltinFunc
}

// Options configures a Build run.
type Options struct {
	Mode     match.Mode
	Stripdot bool
	Lax      bool
}

// New creates an empty graph bound to a parsed cookbook and the shared
// interning table / stat cache the rest of the engine uses.
func New(book *cookbook.Cookbook, interns *strset.Table, stats *statcache.Cache, opts Options) *Graph {
	return &Graph{
		fileIndex: make(map[string]int),
		book:      book,
		mode:      opts.Mode,
		stripdot:  opts.Stripdot,
		lax:       opts.Lax,
		interns:   interns,
		stats:     stats,
		builtins:  cookbook.Merge(),
	}
}

type want struct {
	name     string
	parent   int // recipe-node index, or -1 for a goal with no parent
	edgeType EdgeType
}

// Build runs spec §4.6's lazy construction algorithm from a set of
// goal names.
func (g *Graph) Build(ctx context.Context, goals []string) error {
	queue := make([]want, 0, len(goals))
	for _, name := range goals {
		queue = append(queue, want{name: name, parent: -1, edgeType: EdgeDefault})
	}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]

		name := match.StripDot(w.name, g.stripdot)
		fi, isNew := g.getOrCreateFile(name)

		if w.parent >= 0 {
			g.addEdge(w.parent, fi, w.edgeType)
		}
		if !isNew {
			continue
		}

		more, err := g.resolveFile(ctx, fi)
		if err != nil {
			return err
		}
		queue = append(queue, more...)
	}

	return g.checkCycles()
}

func (g *Graph) getOrCreateFile(name string) (int, bool) {
	if idx, ok := g.fileIndex[name]; ok {
		return idx, false
	}
	idx := len(g.Files)
	g.Files = append(g.Files, &FileNode{Index: idx, Name: name, Producer: -1})
	g.fileIndex[name] = idx
	return idx, true
}

func (g *Graph) addEdge(parentRecipe, fileIdx int, et EdgeType) {
	g.Recipes[parentRecipe].Edges = append(g.Recipes[parentRecipe].Edges, IngredientEdge{File: fileIdx, Type: et})
	g.Files[fileIdx].Dependents = append(g.Files[fileIdx].Dependents, parentRecipe)
}

// resolveFile implements spec §4.6 steps 4-6 for a freshly created
// file-node: try each pattern recipe in declaration order, and fall
// back to leaf classification if none accepted.
func (g *Graph) resolveFile(ctx context.Context, fi int) ([]want, error) {
	name := g.Files[fi].Name

	for _, pr := range g.book.Recipes {
		frame, ok := attemptTargets(g.mode, pr.Targets, name)
		if !ok {
			continue
		}

		execCtx := g.newExecContext(ctx, frame)
		execCtx.Target = strset.FromStrings(g.interns, []string{name})

		if pr.Precondition != nil {
			res := vm.Run(pr.Precondition, execCtx)
			if res.Status == vm.StatusError {
				return nil, cookerr.Wrap(cookerr.KindSemantic, fmt.Errorf("precondition for %q at %s: %w", name, pr.Pos, res.Err))
			}
			if res.Status != vm.StatusSuccess {
				return nil, cookerr.New(cookerr.KindGraph, "precondition for %q at %s did not complete", name, pr.Pos)
			}
			if !res.Value.Truthy() {
				continue
			}
		}

		return g.instantiate(pr, frame, fi, execCtx)
	}

	return g.classifyLeaf(fi)
}

// instantiate accepts pr as the producer of fi, computes its
// ingredient name list by reconstructing each ingredient pattern
// against frame, and queues each ingredient as a new want.
func (g *Graph) instantiate(pr *cookbook.PatternRecipe, frame match.Frame, fi int, execCtx *vm.ExecContext) ([]want, error) {
	ri := len(g.Recipes)
	node := &RecipeNode{Index: ri, Recipe: pr, Frame: frame, Targets: []int{fi}}
	g.Recipes = append(g.Recipes, node)
	g.Files[fi].Producer = ri

	var ingredientNames []string
	for _, tmpl := range pr.Ingredients {
		p, err := match.Compile(g.mode, tmpl)
		if err != nil {
			return nil, cookerr.Wrap(cookerr.KindSemantic, err)
		}
		reconstructed, err := p.Reconstruct(frame)
		if err != nil {
			return nil, cookerr.Wrap(cookerr.KindSemantic, fmt.Errorf("reconstructing ingredient %q for %q: %w", tmpl, g.Files[fi].Name, err))
		}
		ingredientNames = append(ingredientNames, reconstructed)
	}

	execCtx.Ingredients = strset.FromStrings(g.interns, ingredientNames)

	if pr.Flags != nil {
		res := vm.Run(pr.Flags, execCtx)
		if res.Status == vm.StatusSuccess {
			node.Flags = res.Value.AsStrings()
		}
	}
	if pr.SingleThread != nil {
		res := vm.Run(pr.SingleThread, execCtx)
		if res.Status == vm.StatusSuccess && res.Value.Truthy() {
			node.SingleThreadTag = res.Value.AsScalar()
		}
	}
	if pr.HostBinding != nil {
		res := vm.Run(pr.HostBinding, execCtx)
		if res.Status == vm.StatusSuccess {
			node.HostTag = res.Value.AsScalar()
		}
	}

	wants := make([]want, len(ingredientNames))
	for i, n := range ingredientNames {
		wants[i] = want{name: n, parent: ri, edgeType: edgeTypeOf(pr, i)}
	}
	return wants, nil
}

// edgeTypeOf translates the cookbook-level edge decoration on
// pr.Ingredients[i] into a graph.EdgeType. PatternRecipe literals built
// directly (as in older tests) may leave IngredientEdges nil or
// shorter than Ingredients; such entries default to EdgeDefault.
func edgeTypeOf(pr *cookbook.PatternRecipe, i int) EdgeType {
	if i >= len(pr.IngredientEdges) {
		return EdgeDefault
	}
	switch pr.IngredientEdges[i] {
	case cookbook.EdgeWeak:
		return EdgeWeak
	case cookbook.EdgeExists:
		return EdgeExists
	default:
		return EdgeStrict
	}
}

// classifyLeaf implements spec §4.6 step 6: a file with no accepting
// pattern is a leaf if it exists on disk, otherwise an error unless
// lax options permit an indeterminate leaf.
func (g *Graph) classifyLeaf(fi int) ([]want, error) {
	name := g.Files[fi].Name
	if g.stats.Exists(name) {
		g.Files[fi].Leaf = LeafExists
		g.Files[fi].State = StatExists
		g.Files[fi].MTime = g.stats.ModTime(name)
		return nil, nil
	}
	if g.lax {
		g.Files[fi].Leaf = Indeterminate
		return nil, nil
	}
	g.Files[fi].Leaf = LeafError
	return nil, cookerr.New(cookerr.KindGraph, "no recipe to build %q and the file does not exist", name)
}

func (g *Graph) newExecContext(ctx context.Context, frame match.Frame) *vm.ExecContext {
	ec := &vm.ExecContext{
		Ctx:      ctx,
		Interns:  g.interns,
		Frames:   match.NewFrameStack(),
		Builtins: g.builtins,
		Root:     vm.NewScope(nil),
	}
	ec.Frames.Push(frame)
	return ec
}

// RecipeExecContext rebuilds the execution context for running a
// recipe node's out-of-date/up-to-date body at walk time: the same
// match frame captured at instantiation, plus the target/ingredients/
// younger auto-variables a body line may reference.
func (g *Graph) RecipeExecContext(ctx context.Context, node *RecipeNode, younger []string) *vm.ExecContext {
	ec := g.newExecContext(ctx, node.Frame)
	targetNames := make([]string, len(node.Targets))
	for i, fi := range node.Targets {
		targetNames[i] = g.Files[fi].Name
	}
	ingredientNames := make([]string, len(node.Edges))
	for i, e := range node.Edges {
		ingredientNames[i] = g.Files[e.File].Name
	}
	ec.Target = strset.FromStrings(g.interns, targetNames)
	ec.Ingredients = strset.FromStrings(g.interns, ingredientNames)
	ec.Younger = strset.FromStrings(g.interns, younger)
	return ec
}

// Interns exposes the graph's shared interning table, needed by
// callers (the walker) that build their own ExecContexts.
func (g *Graph) Interns() *strset.Table { return g.interns }

// Builtins exposes the merged builtin table the graph was constructed
// with.
func (g *Graph) Builtins() map[string]vm.BuiltinFunc { return g.builtins }

// attemptTargets tries each of a recipe's target patterns against
// name, returning the first accepting frame.
func attemptTargets(mode match.Mode, targets []string, name string) (match.Frame, bool) {
	for _, t := range targets {
		p, err := match.Compile(mode, t)
		if err != nil {
			continue
		}
		if frame, ok := p.Attempt(name); ok {
			return frame, true
		}
	}
	return nil, false
}
