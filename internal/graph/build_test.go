package graph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/strset"
)

func parseTestCookbook(t *testing.T, src string) *cookbook.Cookbook {
	t.Helper()
	cb, err := cookbook.Parse(strings.NewReader(src), "test.cook")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cb
}

func TestBuildSimpleChain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cb := parseTestCookbook(t, `
%.o : %.c
    cc -c $ingredient -o $target
`)

	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle})
	target := filepath.Join(dir, "foo.o")
	ingredient := src

	if err := g.Build(context.Background(), []string{target, ingredient}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	ti, ok := g.fileIndex[target]
	if !ok {
		t.Fatalf("target %q not in graph", target)
	}
	if g.Files[ti].Producer < 0 {
		t.Errorf("target %q should have a producing recipe", target)
	}

	ii, ok := g.fileIndex[ingredient]
	if !ok {
		t.Fatalf("ingredient %q not in graph", ingredient)
	}
	if g.Files[ii].Leaf != LeafExists {
		t.Errorf("ingredient leaf = %v, want LeafExists", g.Files[ii].Leaf)
	}
}

func TestBuildMissingLeafIsError(t *testing.T) {
	cb := parseTestCookbook(t, `
%.o : %.c
    cc -c $ingredient -o $target
`)
	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle})
	err := g.Build(context.Background(), []string{"missing.o"})
	if err == nil {
		t.Fatal("expected an error for a missing, unproducible ingredient")
	}
}

func TestBuildLaxAllowsIndeterminateLeaf(t *testing.T) {
	cb := parseTestCookbook(t, `
%.o : %.c
    cc -c $ingredient -o $target
`)
	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle, Lax: true})
	if err := g.Build(context.Background(), []string{"missing.o"}); err != nil {
		t.Fatalf("Build with Lax=true: %v", err)
	}
	fi := g.fileIndex["missing.c"]
	if g.Files[fi].Leaf != Indeterminate {
		t.Errorf("leaf = %v, want Indeterminate", g.Files[fi].Leaf)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	cb := parseTestCookbook(t, `
a : b
    echo a
b : a
    echo b
`)
	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle})
	err := g.Build(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestBuildAssignsIngredientEdgeTypes(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".c", ".h", ".marker"} {
		if err := os.WriteFile(filepath.Join(dir, "foo"+ext), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cb := parseTestCookbook(t, `
%.o : %.c [weak]%.h [exists]%.marker
    cc -c $ingredient -o $target
`)
	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle})
	target := filepath.Join(dir, "foo.o")
	if err := g.Build(context.Background(), []string{target}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	ti := g.fileIndex[target]
	node := g.Recipes[g.Files[ti].Producer]

	got := make(map[string]EdgeType, len(node.Edges))
	for _, e := range node.Edges {
		got[filepath.Ext(g.Files[e.File].Name)] = e.Type
	}
	want := map[string]EdgeType{".c": EdgeStrict, ".h": EdgeWeak, ".marker": EdgeExists}
	for ext, edgeType := range want {
		if got[ext] != edgeType {
			t.Errorf("edge type for %q = %v, want %v", ext, got[ext], edgeType)
		}
	}
}

func TestPreconditionRejectsRecipe(t *testing.T) {
	cb := parseTestCookbook(t, `
%.o : %.c
    precondition false
    cc -c $ingredient -o $target
`)
	g := New(cb, strset.NewTable(), statcache.New(), Options{Mode: match.CookStyle})
	err := g.Build(context.Background(), []string{"nonexistent-dir/alt.o"})
	if err == nil {
		t.Fatal("expected an error: precondition always false, and the file does not exist")
	}
}
