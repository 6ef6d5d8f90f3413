package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mdhender/cook/internal/statcache"
)

func TestWatcherDebouncesIntoOneCallback(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.c")
	if err := os.WriteFile(target, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats := statcache.New()
	stats.ModTime(target) // prime the cache so Clear has something to invalidate

	var mu sync.Mutex
	var calls int
	var lastChanged []string
	done := make(chan struct{}, 1)

	w, err := New(Config{
		Dirs:     []string{dir},
		Debounce: 40 * time.Millisecond,
		Stats:    stats,
		OnChange: func(ctx context.Context, changed []string) error {
			mu.Lock()
			calls++
			lastChanged = append([]string(nil), changed...)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(target, []byte("int main(){ return 0; }"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (writes should coalesce into one callback)", calls)
	}
	if len(lastChanged) == 0 {
		t.Error("expected at least one changed path")
	}
}

func TestNewSkipsMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist")

	w, err := New(Config{Dirs: []string{dir, missing}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
}
