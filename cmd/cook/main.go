// Copyright 2026 The cook Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mdhender/cook/internal/config"
	"github.com/mdhender/cook/internal/cookbook"
	"github.com/mdhender/cook/internal/cookerr"
	"github.com/mdhender/cook/internal/engine"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/match"
	"github.com/mdhender/cook/internal/mcpserver"
	"github.com/mdhender/cook/internal/metrics"
	"github.com/mdhender/cook/internal/statcache"
	"github.com/mdhender/cook/internal/strset"
	"github.com/mdhender/cook/internal/walker"
	"github.com/mdhender/cook/internal/watch"
)

var flags struct {
	cookbookPath       string
	jobs               int
	force              bool
	dryRun             bool
	stripdot           bool
	regexMode          bool
	continueOnFailure  bool
	verbose            bool
	pairs              bool
	script             bool
	graph              bool
	watch              bool
	mcp                bool
	metricsAddr        string
	fingerprintBackend string
	fingerprintDir     string
	statCacheSize      int
	host               []string
}

var rootCmd = &cobra.Command{
	Use:     "cook [goals...]",
	Short:   "cook brings a set of named targets up to date from a cookbook",
	Version: "0.1.0",
	RunE:    runRoot,
}

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cook: %s\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failure to spec §6's three exit codes. Errors
// cookerr never saw a Kind for are cobra's own usage/flag-parsing
// failures, which spec §6 calls fatal with exit 2.
func exitCode(err error) int {
	if cookerr.KindOf(err) == cookerr.KindUnknown {
		return 2
	}
	return cookerr.ExitCode(err)
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.cookbookPath, "file", "f", "", "cookbook to read (default: .cookrc.yaml defaults, else COOKBOOK)")
	f.IntVar(&flags.jobs, "parallel", 0, "parallel jobs (0 = unlimited)")
	f.BoolVarP(&flags.force, "force", "B", false, "unconditional rebuild, ignoring staleness checks")
	f.BoolVarP(&flags.dryRun, "dry-run", "n", false, "print commands without executing them")
	f.BoolVar(&flags.stripdot, "stripdot", true, "strip a leading \"./\" from file names before matching")
	f.BoolVar(&flags.regexMode, "regex", false, "match recipe patterns as POSIX regular expressions instead of cook's %-style patterns")
	f.BoolVar(&flags.continueOnFailure, "continue", false, "keep building independent goals after a recipe fails")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "log every recipe command as it runs")
	f.BoolVar(&flags.pairs, "pairs", false, "print (target, ingredient) pairs instead of building")
	f.BoolVar(&flags.script, "script", false, "print a shell script that reproduces the build instead of running it")
	f.BoolVar(&flags.graph, "graph", false, "print the dependency subgraph as Graphviz DOT instead of building")
	f.StringArrayVar(&flags.host, "host", nil, "tag=slots host-affinity binding, repeatable (e.g. --host gpu=2)")
	f.BoolVar(&flags.watch, "watch", false, "rebuild the requested goals whenever an ingredient file changes")
	f.BoolVar(&flags.mcp, "mcp", false, "run an MCP server over stdio exposing status/build tools instead of building")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "expose Prometheus build metrics on this address (e.g. :9090)")
	f.StringVar(&flags.fingerprintBackend, "fingerprint-backend", "", "content-fingerprint store backend: text (default) or sqlite")
	f.StringVar(&flags.fingerprintDir, "fingerprint-dir", "", "directory (text backend) or file path (sqlite backend) for fingerprint state")
	f.IntVar(&flags.statCacheSize, "stat-cache-size", 0, "bound the in-memory stat cache to an LRU of this many entries (0 = unbounded)")
}

func runRoot(cmd *cobra.Command, args []string) error {
	goals, vars := splitArgs(args)
	if len(vars) > 0 {
		return cookerr.New(cookerr.KindSemantic, "name=value variable overrides on the command line are not yet supported")
	}

	rc, err := config.LoadFile(".cookrc.yaml")
	if err != nil {
		return cookerr.Wrap(cookerr.KindIO, err)
	}
	opts := mergeOptions(rc)
	opts.Goals = goals

	logger := newLogger()
	opts.Logger = logger

	var rec *metrics.Recorder
	metricsAddr := config.FirstSet(flags.metricsAddr, rc.MetricsAddr)
	if metricsAddr != "" {
		rec = metrics.New()
		go serveMetrics(metricsAddr, rec, logger)
		opts.OnRecipeDone = func(target string, st walker.State, d time.Duration) {
			rec.RecipeFinished(outcomeFor(st), d)
		}
	}

	if flags.mcp {
		return runMCP(opts.CookbookPath, logger)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	notifyInterrupt(cancel)

	if flags.pairs || flags.script || flags.graph {
		return runReport(ctx, opts.CookbookPath, goals)
	}

	runOnce := func() error {
		_, err := engine.Run(ctx, opts)
		return err
	}

	if flags.watch {
		return runWatch(ctx, opts.CookbookPath, goals, runOnce, logger)
	}
	return runOnce()
}

// mergeOptions layers cobra flags over a loaded .cookrc.yaml, flags
// winning whenever a flag was set to something other than its zero
// value (internal/config.FirstSet's flag-over-file precedence, spec
// §6's CLI options read before any cookbook is touched).
func mergeOptions(rc config.File) engine.Options {
	opts := engine.BaseOptionsFromFile(rc)

	opts.CookbookPath = config.FirstSet(flags.cookbookPath, os.Getenv("COOK_FILE"), rc.Cookbook, "COOKBOOK")
	if flags.jobs != 0 {
		opts.Jobs = flags.jobs
	}
	if flags.continueOnFailure {
		opts.ContinueOnFailure = true
	}
	if cmdFlagChanged("stripdot") {
		opts.Stripdot = flags.stripdot
	}
	opts.RegexMode = flags.regexMode
	opts.Force = flags.force
	opts.DryRun = flags.dryRun
	opts.Verbose = flags.verbose
	if flags.fingerprintBackend != "" {
		opts.FingerprintBackend = flags.fingerprintBackend
	}
	if flags.fingerprintDir != "" {
		opts.FingerprintDir = flags.fingerprintDir
	}
	if flags.statCacheSize != 0 {
		opts.StatCacheSize = flags.statCacheSize
	}
	if hosts := parseHostFlags(flags.host); len(hosts) > 0 {
		if opts.HostCapacity == nil {
			opts.HostCapacity = make(map[string]int, len(hosts))
		}
		for tag, n := range hosts {
			opts.HostCapacity[tag] = n
		}
	}
	return opts
}

// parseHostFlags turns repeated --host tag=slots flags into a host
// capacity map, spec §4.7's static host-affinity binding list.
func parseHostFlags(raw []string) map[string]int {
	out := make(map[string]int, len(raw))
	for _, kv := range raw {
		tag, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			continue
		}
		out[tag] = n
	}
	return out
}

func cmdFlagChanged(name string) bool {
	f := rootCmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// splitArgs separates positional goal names from name=value variable
// overrides, the way the teacher's cmd/mk/main.go did with strings.Cut.
func splitArgs(args []string) (goals []string, vars map[string]string) {
	vars = map[string]string{}
	for _, a := range args {
		if name, value, ok := strings.Cut(a, "="); ok {
			vars[name] = value
			continue
		}
		goals = append(goals, a)
	}
	return goals, vars
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func serveMetrics(addr string, rec *metrics.Recorder, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", "addr", addr, "error", err)
	}
}

func notifyInterrupt(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
}

func outcomeFor(st walker.State) metrics.Outcome {
	switch st {
	case walker.DoneUpToDate:
		return metrics.OutcomeUpToDate
	case walker.DoneRebuilt:
		return metrics.OutcomeRebuilt
	default:
		return metrics.OutcomeFailed
	}
}

func runMCP(cookbookPath string, logger *slog.Logger) error {
	s := mcpserver.New(mcpserver.Config{
		CookbookPath: cookbookPath,
		Jobs:         flags.jobs,
		Stripdot:     flags.stripdot,
		Logger:       logger,
	})
	if err := server.ServeStdio(s); err != nil {
		return cookerr.Wrap(cookerr.KindIO, err)
	}
	return nil
}

func runReport(ctx context.Context, cookbookPath string, goals []string) error {
	f, err := os.Open(cookbookPath)
	if err != nil {
		return cookerr.Wrap(cookerr.KindIO, err)
	}
	defer f.Close()

	book, err := cookbook.Parse(f, cookbookPath)
	if err != nil {
		return cookerr.Wrap(cookerr.KindParse, err)
	}

	mode := match.CookStyle
	if flags.regexMode {
		mode = match.RegexMode
	}
	stats := statcache.New()
	g := graph.New(book, strset.NewTable(), stats, graph.Options{Mode: mode, Stripdot: flags.stripdot})
	if err := g.Build(ctx, goals); err != nil {
		return cookerr.Wrap(cookerr.KindGraph, err)
	}

	if flags.pairs {
		for _, p := range walker.Pairs(g) {
			fmt.Printf("%s %s\n", p.Target, p.Ingredient)
		}
		return nil
	}

	if flags.graph {
		for _, line := range walker.Graph(g) {
			fmt.Println(line)
		}
		return nil
	}

	lines, err := walker.Script(ctx, g)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func runWatch(ctx context.Context, cookbookPath string, goals []string, build func() error, logger *slog.Logger) error {
	if err := build(); err != nil {
		logger.Error("initial build failed", "error", err)
	}

	w, err := watch.New(watch.Config{
		Dirs: watchDirs(cookbookPath, goals),
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("rebuilding after file change", "changed", changed)
			return build()
		},
	})
	if err != nil {
		return cookerr.Wrap(cookerr.KindIO, err)
	}
	defer w.Close()

	if err := w.Run(ctx); err != nil {
		return cookerr.Wrap(cookerr.KindIO, err)
	}
	return nil
}

// watchDirs derives the set of directories --watch should register
// with fsnotify: every directory holding a goal or a cookbook.
func watchDirs(cookbookPath string, goals []string) []string {
	dirs := map[string]bool{dirOf(cookbookPath): true}
	for _, g := range goals {
		dirs[dirOf(g)] = true
	}
	out := make([]string, 0, len(dirs))
	for d := range dirs {
		out = append(out, d)
	}
	return out
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
