package walker

import (
	"context"
	"fmt"

	"github.com/mdhender/cook/internal/cookerr"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/vm"
)

// Pair is one (target, ingredient) edge, spec §4.7's walk_pairs mode.
type Pair struct {
	Target     string
	Ingredient string
}

// Pairs lists every (target, ingredient) edge in the graph without
// running anything, for `cook --pairs`.
func Pairs(g *graph.Graph) []Pair {
	var pairs []Pair
	for _, node := range g.Recipes {
		for _, e := range node.Edges {
			ingredient := g.Files[e.File].Name
			for _, ti := range node.Targets {
				pairs = append(pairs, Pair{Target: g.Files[ti].Name, Ingredient: ingredient})
			}
		}
	}
	return pairs
}

// Graph renders the dependency subgraph reachable from the already
// built graph as Graphviz DOT, for `cook --graph`, mirroring the
// teacher's PrintGraph: one node per file, boxed when the file has no
// producing recipe (a leaf ingredient), an edge per (target,
// ingredient) pair.
func Graph(g *graph.Graph) []string {
	lines := []string{"digraph cook {", "  rankdir=LR;"}
	for _, f := range g.Files {
		if f.Producer < 0 {
			lines = append(lines, fmt.Sprintf("  %q [shape=box];", f.Name))
		}
	}
	for _, node := range g.Recipes {
		for _, ti := range node.Targets {
			target := g.Files[ti].Name
			for _, e := range node.Edges {
				lines = append(lines, fmt.Sprintf("  %q -> %q;", target, g.Files[e.File].Name))
			}
		}
	}
	lines = append(lines, "}")
	return lines
}

// Script evaluates every recipe node's out-of-date body in dependency
// order and returns the shell command lines that would reproduce the
// build, spec §4.7's walk_script mode. No subprocess runs; the VM's
// opcode programs are evaluated purely for their command-list result.
func Script(ctx context.Context, g *graph.Graph) ([]string, error) {
	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, ri := range order {
		node := g.Recipes[ri]
		if node.Recipe.OutOfDate == nil || len(node.Targets) == 0 {
			continue
		}
		execCtx := g.RecipeExecContext(ctx, node, nil)
		res := vm.Run(node.Recipe.OutOfDate, execCtx)
		if res.Status != vm.StatusSuccess {
			return nil, cookerr.New(cookerr.KindSemantic, "recipe body for %q: %v", g.Files[node.Targets[0]].Name, res.Err)
		}
		lines = append(lines, fmt.Sprintf("# %s", g.Files[node.Targets[0]].Name))
		lines = append(lines, res.Value.AsStrings()...)
	}
	return lines, nil
}

// topoOrder returns recipe-node indices such that every strict-edge
// producer precedes its dependents, via Kahn's algorithm over the same
// edge set cycle.go's DFS pass already proved acyclic.
func topoOrder(g *graph.Graph) ([]int, error) {
	n := len(g.Recipes)
	remaining := make([]int, n)
	dependents := make(map[int][]int)

	for ri, node := range g.Recipes {
		count := 0
		for _, e := range node.Edges {
			if e.Type&graph.EdgeStrict == 0 {
				continue
			}
			producer := g.Files[e.File].Producer
			if producer < 0 || producer == ri {
				continue
			}
			count++
			dependents[producer] = append(dependents[producer], ri)
		}
		remaining[ri] = count
	}

	var queue []int
	for ri, c := range remaining {
		if c == 0 {
			queue = append(queue, ri)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		ri := queue[0]
		queue = queue[1:]
		order = append(order, ri)
		for _, dep := range dependents[ri] {
			remaining[dep]--
			if remaining[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != n {
		return nil, cookerr.New(cookerr.KindGraph, "topoOrder: graph has a cycle cycle.go should have rejected")
	}
	return order, nil
}
