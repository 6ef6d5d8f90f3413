// Package watch implements cook's --watch rebuild loop: an fsnotify
// watcher over the directories a build touched, debounced so a burst
// of edits collapses into one rebuild, invalidating
// internal/statcache entries for changed paths before calling back
// into the engine.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mdhender/cook/internal/statcache"
)

// defaultDebounce is the quiet period after the last filesystem event
// before OnChange fires, coalescing editor save bursts into one run.
const defaultDebounce = 300 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Dirs lists the directories to watch (non-recursive per entry;
	// pass every directory that holds a file reachable from the
	// build, typically gathered from the graph's FileNode names).
	Dirs []string

	// Debounce overrides defaultDebounce when positive.
	Debounce time.Duration

	// OnChange is called after the debounce window closes with the
	// deduplicated set of changed paths. A nil callback is a no-op.
	OnChange func(ctx context.Context, changed []string) error

	// Stats is cleared for every changed path before OnChange runs,
	// so the next build sees fresh stat results.
	Stats *statcache.Cache
}

// Watcher runs Config.OnChange in a debounced loop until its context
// is cancelled.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// New creates a Watcher and registers every directory in cfg.Dirs.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	seen := make(map[string]bool)
	for _, d := range cfg.Dirs {
		dir := filepath.Clean(d)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fsw.Add(dir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			_ = fsw.Close()
			return nil, fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
	}

	return &Watcher{cfg: cfg, fsw: fsw, debounce: debounce}, nil
}

// Close releases the underlying fsnotify resources.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, processing filesystem events and dispatching debounced
// callbacks, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var mu sync.Mutex
	pending := make(map[string]bool)
	var timer *time.Timer

	fire := func() {
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
			if w.cfg.Stats != nil {
				w.cfg.Stats.Clear(p)
			}
		}
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(os.Stderr, "cook: watch callback failed: %v\n", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		_ = w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed")
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			pending[evt.Name] = true
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed")
			}
			fmt.Fprintf(os.Stderr, "cook: watch error: %v\n", err)
		}
	}
}
