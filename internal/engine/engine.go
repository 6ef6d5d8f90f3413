// Package engine wires a parsed cookbook to a dependency graph, a
// fingerprint store, and the parallel walker into one reusable build
// run, the way exec.go's Executor did in the teacher tree, so cmd/cook
// and internal/mcpserver share one code path instead of each
// re-deriving the same Build/Walk sequence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mdhender/cook/internal/config"
	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/fingerprint"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/strset"
	"github.com/mdhender/cook/internal/subproc"
	"github.com/mdhender/cook/internal/walker"
)

// Options configures a Run.
type Options struct {
	CookbookPath string
	Goals        []string

	Jobs              int
	ContinueOnFailure bool
	HostCapacity      map[string]int
	Stripdot          bool
	Lax               bool
	RegexMode         bool
	Force             bool

	DryRun  bool
	Verbose bool

	FingerprintBackend string // "text" (default) or "sqlite"
	FingerprintDir     string
	StatCacheSize      int

	Logger *slog.Logger

	// OnRecipeDone, if set, is forwarded to walker.Options so a caller
	// can record per-recipe outcomes (e.g. internal/metrics) without
	// internal/engine depending on that package.
	OnRecipeDone func(target string, state walker.State, d time.Duration)
}

// Result reports the outcome of one Run. RunID identifies this build
// session so a caller can correlate its log lines and metrics across
// concurrent cook invocations (e.g. several CI jobs writing to the
// same log stream).
type Result struct {
	RunID   string
	Targets map[string]walker.State
}

// Run parses a cookbook, builds its graph for the requested goals, and
// walks it to completion, returning the per-target terminal state.
func Run(ctx context.Context, opts Options) (Result, error) {
	runID := uuid.New().String()
	logger := opts.Logger
	if logger != nil {
		logger = logger.With("run_id", runID)
	}

	f, err := os.Open(opts.CookbookPath)
	if err != nil {
		return Result{RunID: runID}, fmt.Errorf("engine: open cookbook: %w", err)
	}
	defer f.Close()

	book, err := cookbook.Parse(f, opts.CookbookPath)
	if err != nil {
		return Result{RunID: runID}, fmt.Errorf("engine: parse cookbook: %w", err)
	}

	stats := newStatCache(opts.StatCacheSize)
	interns := strset.NewTable()

	mode := match.CookStyle
	if opts.RegexMode {
		mode = match.RegexMode
	}

	g := graph.New(book, interns, stats, graph.Options{
		Mode:     mode,
		Stripdot: opts.Stripdot,
		Lax:      opts.Lax,
	})
	if err := g.Build(ctx, opts.Goals); err != nil {
		return Result{RunID: runID}, fmt.Errorf("engine: build graph: %w", err)
	}

	fp, closeFp, err := newFingerprintStore(opts, stats)
	if err != nil {
		return Result{RunID: runID}, err
	}
	defer closeFp()

	run := &subproc.Runner{
		Logger:  logger,
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
		Stream:  opts.Jobs == 1,
	}

	w := walker.New(g, stats, fp, run, walker.Options{
		Jobs:              opts.Jobs,
		ContinueOnFailure: opts.ContinueOnFailure,
		HostCapacity:      opts.HostCapacity,
		Force:             opts.Force,
		OnRecipeDone:      opts.OnRecipeDone,
	})

	if logger != nil {
		logger.Info("build starting", "goals", opts.Goals, "cookbook", opts.CookbookPath)
	}
	walkErr := w.Walk(ctx)
	return Result{RunID: runID, Targets: w.Results()}, walkErr
}

func newStatCache(size int) *statcache.Cache {
	if size > 0 {
		return statcache.NewBounded(size)
	}
	return statcache.New()
}

func newFingerprintStore(opts Options, stats *statcache.Cache) (fingerprint.Store, func(), error) {
	backend := opts.FingerprintBackend
	if backend == "" {
		backend = "text"
	}

	switch backend {
	case "sqlite":
		dbPath := opts.FingerprintDir
		if dbPath == "" {
			dbPath = ".cook.fingerprints.db"
		}
		store, err := fingerprint.NewSQLiteStore(dbPath, stats)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: open sqlite fingerprint store: %w", err)
		}
		return store, func() { store.Close() }, nil

	case "text":
		store := fingerprint.NewTextStore("cook", opts.FingerprintDir, stats)
		return store, func() { store.Sync(true) }, nil

	default:
		return nil, nil, fmt.Errorf("engine: unknown fingerprint backend %q", backend)
	}
}

// BaseOptionsFromFile folds a loaded .cookrc.yaml into Options, letting
// callers layer flag > env > file > built-in default the way
// internal/config.FirstSet expects.
func BaseOptionsFromFile(f config.File) Options {
	opts := Options{
		Jobs:               f.Jobs,
		ContinueOnFailure:  f.Continue,
		HostCapacity:       f.HostCapacity,
		FingerprintBackend: f.FingerprintBackend,
		StatCacheSize:      f.StatCacheSize,
	}
	if f.Stripdot != nil {
		opts.Stripdot = *f.Stripdot
	}
	return opts
}
