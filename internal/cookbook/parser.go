package cookbook

import (
	"fmt"
	"io"
	"strings"
)

// Parse reads a cookbook file and compiles every pattern recipe it
// contains. The grammar:
//
//	target-pattern... : ingredient-pattern...
//	    directive-or-body-line
//	    ...
//
// An unindented line starting a recipe must contain a top-level ':'
// separating target patterns from ingredient patterns (the ingredient
// side may be empty; the target side may not). Every following indented line is either a directive
// (precondition/single-thread/host/flags, or the "up-to-date:" marker
// that switches the body being collected) or a body line, a shell
// command template evaluated by the opcode VM.
func Parse(r io.Reader, filename string) (*Cookbook, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	cur := &cursor{lines: lines}
	cb := &Cookbook{}

	for {
		line, lineNum, ok := cur.next()
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if isIndented(line) {
			return nil, fmt.Errorf("%s:%d: unexpected indented line outside a recipe", filename, lineNum)
		}

		recipe, err := parseRecipeHeader(trimmed, Position{File: filename, Line: lineNum})
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, lineNum, err)
		}

		var outOfDate, upToDate []string
		collectingUpToDate := false
		for {
			peeked, ok := cur.peek()
			if !ok || !isIndented(peeked) {
				break
			}
			body, bodyLine, _ := cur.next()
			bt := strings.TrimSpace(body)
			if bt == "" || strings.HasPrefix(bt, "#") {
				continue
			}

			switch {
			case bt == "up-to-date:":
				collectingUpToDate = true
			case strings.HasPrefix(bt, "precondition "):
				prog, err := compileExpr(strings.TrimPrefix(bt, "precondition "), bodyLine)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", filename, bodyLine, err)
				}
				recipe.Precondition = prog
			case bt == "single-thread" || strings.HasPrefix(bt, "single-thread "):
				rest := strings.TrimSpace(strings.TrimPrefix(bt, "single-thread"))
				if rest == "" {
					rest = "1"
				}
				prog, err := compileExpr(rest, bodyLine)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", filename, bodyLine, err)
				}
				recipe.SingleThread = prog
			case strings.HasPrefix(bt, "host "):
				prog, err := compileExpr(strings.TrimPrefix(bt, "host "), bodyLine)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", filename, bodyLine, err)
				}
				recipe.HostBinding = prog
			case strings.HasPrefix(bt, "flags "):
				prog, err := compileExpr(strings.TrimPrefix(bt, "flags "), bodyLine)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", filename, bodyLine, err)
				}
				recipe.Flags = prog
			default:
				if collectingUpToDate {
					upToDate = append(upToDate, bt)
				} else {
					outOfDate = append(outOfDate, bt)
				}
			}
		}

		recipe.OutOfDate, err = compileLines(outOfDate, recipe.Pos.Line+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if len(upToDate) > 0 {
			recipe.UpToDate, err = compileLines(upToDate, recipe.Pos.Line+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}
		}

		cb.Recipes = append(cb.Recipes, recipe)
	}

	return cb, nil
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func parseRecipeHeader(line string, pos Position) (*PatternRecipe, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return nil, fmt.Errorf("recipe header %q has no ':' separating targets from ingredients", line)
	}
	targets := strings.Fields(line[:idx])
	rawIngredients := strings.Fields(line[idx+1:])
	if len(targets) == 0 {
		return nil, fmt.Errorf("recipe header %q names no targets", line)
	}

	ingredients := make([]string, len(rawIngredients))
	edges := make([]EdgeType, len(rawIngredients))
	for i, tok := range rawIngredients {
		ingredients[i], edges[i] = extractEdgeType(tok)
	}

	return &PatternRecipe{Targets: targets, Ingredients: ingredients, IngredientEdges: edges, Pos: pos}, nil
}

// extractEdgeType strips a leading "[weak]" or "[exists]" decoration
// from an ingredient token, reporting the edge type it names. A token
// with no recognized decoration is strict, cook's default.
func extractEdgeType(tok string) (string, EdgeType) {
	switch {
	case strings.HasPrefix(tok, "[weak]"):
		return strings.TrimPrefix(tok, "[weak]"), EdgeWeak
	case strings.HasPrefix(tok, "[exists]"):
		return strings.TrimPrefix(tok, "[exists]"), EdgeExists
	default:
		return tok, EdgeStrict
	}
}
