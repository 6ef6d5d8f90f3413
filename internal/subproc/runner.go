package subproc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mdhender/cook/internal/graph"
)

// flushMu serializes stdout/stderr flushes across concurrently
// completing recipes, mirroring the teacher's outputMu in exec.go.
var flushMu sync.Mutex

// Runner adapts Run to the walker.Runner interface: a recipe body
// evaluates to a list of shell command lines, and Runner executes
// each in turn, stopping at the first failure.
type Runner struct {
	Logger  *slog.Logger
	DryRun  bool
	Verbose bool
	// Stream is true when the walk's concurrency cap is 1 (the
	// teacher's "serial" mode): output goes straight to the terminal
	// instead of being buffered and flushed atomically.
	Stream bool
}

// Run implements walker.Runner.
func (r *Runner) Run(ctx context.Context, node *graph.RecipeNode, commands []string) error {
	for _, line := range commands {
		if r.DryRun {
			r.log(slog.LevelInfo, "would run", "command", line)
			continue
		}

		res, err := Run(ctx, line, Options{Stream: r.Stream})

		if !r.Stream {
			flushMu.Lock()
			os.Stdout.Write(res.Stdout)
			os.Stderr.Write(res.Stderr)
			flushMu.Unlock()
		}

		if r.Verbose || err != nil {
			r.log(slog.LevelInfo, "ran recipe command",
				"command", line,
				"exit_code", res.ExitCode,
				"user_time", res.UserTime,
				"sys_time", res.SysTime,
			)
		}

		if err != nil {
			return fmt.Errorf("command %q: %w", line, err)
		}
	}
	return nil
}

func (r *Runner) log(level slog.Level, msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.Log(context.Background(), level, msg, args...)
}
