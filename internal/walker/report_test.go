package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPairsListsEveryEdge(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "foo.o")

	g, _ := buildTestGraph(t, dir, `
%.o : %.c
    cc -c $ingredient -o $target
`, []string{target, src})

	pairs := Pairs(g)
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].Target != target || pairs[0].Ingredient != src {
		t.Errorf("pairs[0] = %+v", pairs[0])
	}
}

func TestGraphBoxesLeafFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "foo.o")

	g, _ := buildTestGraph(t, dir, `
%.o : %.c
    cc -c $ingredient -o $target
`, []string{target, src})

	lines := Graph(g)
	if lines[0] != "digraph cook {" || lines[len(lines)-1] != "}" {
		t.Fatalf("Graph did not produce a well-formed DOT document: %v", lines)
	}

	var sawBox, sawEdge bool
	for _, l := range lines {
		if strings.Contains(l, "shape=box") {
			sawBox = true
		}
		if strings.Contains(l, "->") {
			sawEdge = true
		}
	}
	if !sawBox {
		t.Error("expected a boxed leaf file node for foo.c")
	}
	if !sawEdge {
		t.Error("expected an edge from foo.o to foo.c")
	}
}

func TestScriptEmitsHeaderAndCommands(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "foo.o")

	g, _ := buildTestGraph(t, dir, `
%.o : %.c
    cc -c $ingredient -o $target
`, []string{target, src})

	lines, err := Script(context.Background(), g)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected a header comment plus at least one command, got %v", lines)
	}
}
