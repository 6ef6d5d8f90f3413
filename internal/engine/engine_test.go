package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdhender/cook/internal/walker"
)

func TestRunBuildsStaleTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cookbookPath := filepath.Join(dir, "COOKBOOK")
	cookbookSrc := "%.o : %.c\n    cc -c $ingredient -o $target\n"
	if err := os.WriteFile(cookbookPath, []byte(cookbookSrc), 0o644); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(dir, "foo.o")
	res, err := Run(context.Background(), Options{
		CookbookPath:       cookbookPath,
		Goals:              []string{target, src},
		Jobs:               1,
		DryRun:             true,
		FingerprintBackend: "text",
		FingerprintDir:     dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Targets[target] != walker.DoneRebuilt {
		t.Errorf("target state = %v, want DoneRebuilt", res.Targets[target])
	}
}

func TestRunRejectsUnknownFingerprintBackend(t *testing.T) {
	dir := t.TempDir()
	cookbookPath := filepath.Join(dir, "COOKBOOK")
	if err := os.WriteFile(cookbookPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), Options{
		CookbookPath:       cookbookPath,
		FingerprintBackend: "carrier-pigeon",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown fingerprint backend")
	}
}
