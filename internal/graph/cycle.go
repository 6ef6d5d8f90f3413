package graph

import (
	"strings"

	"github.com/mdhender/cook/internal/cookerr"
)

type color int

const (
	white color = iota
	gray
	black
)

// checkCycles runs a DFS over strict edges only (EdgeDefault behaves
// like EdgeStrict; EdgeWeak/EdgeExists are ordering-only and never
// participate in cycle detection, spec §4.6) and reports the first
// back-edge found as a path from the cycle's root back to itself.
func (g *Graph) checkCycles() error {
	colors := make([]color, len(g.Files))
	var path []int

	var visit func(fi int) error
	visit = func(fi int) error {
		colors[fi] = gray
		path = append(path, fi)

		producer := g.Files[fi].Producer
		if producer >= 0 {
			for _, e := range g.Recipes[producer].Edges {
				if e.Type&EdgeStrict == 0 {
					continue
				}
				switch colors[e.File] {
				case white:
					if err := visit(e.File); err != nil {
						return err
					}
				case gray:
					return g.cycleError(path, e.File)
				}
			}
		}

		path = path[:len(path)-1]
		colors[fi] = black
		return nil
	}

	for fi := range g.Files {
		if colors[fi] == white {
			if err := visit(fi); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) cycleError(path []int, closesAt int) error {
	start := 0
	for i, fi := range path {
		if fi == closesAt {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start+1)
	for _, fi := range path[start:] {
		names = append(names, g.Files[fi].Name)
	}
	names = append(names, g.Files[closesAt].Name)
	return cookerr.New(cookerr.KindGraph, "dependency cycle: %s", strings.Join(names, " -> "))
}
