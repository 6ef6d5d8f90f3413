package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/fingerprint"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/strset"
)

// recordingRunner collects the command lists it was asked to run, in
// the order recipes actually executed, so tests can assert both
// completion and ordering/exclusion behavior.
type recordingRunner struct {
	mu   sync.Mutex
	runs [][]string
}

func (r *recordingRunner) Run(_ context.Context, _ *graph.RecipeNode, commands []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, commands)
	return nil
}

func buildTestGraph(t *testing.T, dir, src string, goals []string) (*graph.Graph, *statcache.Cache) {
	t.Helper()
	cb, err := cookbook.Parse(strings.NewReader(src), "test.cook")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stats := statcache.New()
	g := graph.New(cb, strset.NewTable(), stats, graph.Options{Mode: match.CookStyle})
	if err := g.Build(context.Background(), goals); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g, stats
}

func TestWalkRebuildsStaleTarget(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "foo.c")
	targetFile := filepath.Join(dir, "foo.o")
	if err := os.WriteFile(srcFile, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, stats := buildTestGraph(t, dir, `
%.o : %.c
    cc -c $ingredient -o $target
`, []string{targetFile, srcFile})

	fp := fingerprint.NewTextStore("cook-test", dir, stats)
	runner := &recordingRunner{}
	w := New(g, stats, fp, runner, Options{Jobs: 2})

	if err := w.Walk(context.Background()); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(runner.runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runner.runs))
	}
	if len(runner.runs[0]) != 1 || !strings.Contains(runner.runs[0][0], "cc -c") {
		t.Errorf("run = %v", runner.runs[0])
	}
}

func TestWalkSkipsUpToDateTarget(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "foo.c")
	targetFile := filepath.Join(dir, "foo.o")
	if err := os.WriteFile(srcFile, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Target newer than ingredient: up to date by mtime alone.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(targetFile, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, stats := buildTestGraph(t, dir, `
%.o : %.c
    cc -c $ingredient -o $target
`, []string{targetFile, srcFile})

	fp := fingerprint.NewTextStore("cook-test", dir, stats)
	runner := &recordingRunner{}
	w := New(g, stats, fp, runner, Options{Jobs: 1})

	if err := w.Walk(context.Background()); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(runner.runs) != 0 {
		t.Errorf("got %d runs, want 0 (target is up to date)", len(runner.runs))
	}
}

func TestWalkEnforcesSingleThreadTag(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.c", "b.c"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	g, stats := buildTestGraph(t, dir, `
%.o : %.c
    single-thread
    cc -c $ingredient -o $target
`, []string{filepath.Join(dir, "a.o"), filepath.Join(dir, "a.c"), filepath.Join(dir, "b.o"), filepath.Join(dir, "b.c")})

	fp := fingerprint.NewTextStore("cook-test", dir, stats)

	var active, maxActive int
	var mu sync.Mutex
	tracker := runnerFunc(func(ctx context.Context, node *graph.RecipeNode, commands []string) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})

	w := New(g, stats, fp, tracker, Options{Jobs: 4})
	if err := w.Walk(context.Background()); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if maxActive > 1 {
		t.Errorf("max concurrent single-thread recipes = %d, want 1", maxActive)
	}
}

// failingRunner fails any command list containing a line with
// poisonMarker, succeeding otherwise.
type failingRunner struct {
	poisonMarker string
}

func (r *failingRunner) Run(_ context.Context, _ *graph.RecipeNode, commands []string) error {
	for _, c := range commands {
		if strings.Contains(c, r.poisonMarker) {
			return errors.New("boom")
		}
	}
	return nil
}

func TestFailedProducerPoisonsDependentWithoutContinue(t *testing.T) {
	dir := t.TempDir()
	aTarget := filepath.Join(dir, "a.out")
	bTarget := filepath.Join(dir, "b.out")

	g, stats := buildTestGraph(t, dir, aTarget+` : `+bTarget+`
    echo building a
`+bTarget+` :
    fail-me
`, []string{aTarget})

	fp := fingerprint.NewTextStore("cook-test", dir, stats)
	w := New(g, stats, fp, &failingRunner{poisonMarker: "fail-me"}, Options{Jobs: 1})

	if err := w.Walk(context.Background()); err == nil {
		t.Fatal("expected Walk to report the failed recipe")
	}

	results := w.Results()
	if results[bTarget] != Failed {
		t.Errorf("b state = %v, want Failed", results[bTarget])
	}
	if results[aTarget] != Failed {
		t.Errorf("a state = %v, want Failed (its producer b failed)", results[aTarget])
	}
}

func TestContinueOnFailureStillPoisonsDependentButRunsSiblings(t *testing.T) {
	dir := t.TempDir()
	aTarget := filepath.Join(dir, "a.out")
	bTarget := filepath.Join(dir, "b.out")
	cTarget := filepath.Join(dir, "c.out")

	g, stats := buildTestGraph(t, dir, aTarget+` : `+bTarget+`
    echo building a
`+bTarget+` :
    fail-me
`+cTarget+` :
    echo building c
`, []string{aTarget, cTarget})

	fp := fingerprint.NewTextStore("cook-test", dir, stats)
	w := New(g, stats, fp, &failingRunner{poisonMarker: "fail-me"}, Options{Jobs: 2, ContinueOnFailure: true})

	if err := w.Walk(context.Background()); err == nil {
		t.Fatal("expected Walk to report the failed recipe even with --continue")
	}

	results := w.Results()
	if results[bTarget] != Failed {
		t.Errorf("b state = %v, want Failed", results[bTarget])
	}
	if results[aTarget] != Failed {
		t.Errorf("a state = %v, want Failed: --continue only spares unrelated goals, not b's own dependents", results[aTarget])
	}
	if results[cTarget] == Failed {
		t.Errorf("c state = %v, want a non-failed terminal state: --continue must let unrelated goals finish", results[cTarget])
	}
}

type runnerFunc func(ctx context.Context, node *graph.RecipeNode, commands []string) error

func (f runnerFunc) Run(ctx context.Context, node *graph.RecipeNode, commands []string) error {
	return f(ctx, node, commands)
}
