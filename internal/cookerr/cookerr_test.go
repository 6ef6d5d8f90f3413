package cookerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("disk full")
	wrapped := Wrap(KindIO, base)

	if KindOf(wrapped) != KindIO {
		t.Errorf("KindOf = %v, want %v", KindOf(wrapped), KindIO)
	}
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is should see through the wrap to the original cause")
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should report KindUnknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil should report KindUnknown")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{New(KindParse, "bad token"), 2},
		{New(KindSemantic, "no recipe for %q", "foo"), 2},
		{New(KindInterrupt, "stopped"), 3},
		{New(KindIO, "stat failed"), 1},
		{New(KindChild, "exit 1"), 1},
		{New(KindGraph, "cycle"), 1},
		{fmt.Errorf("wrapped: %w", New(KindParse, "nested")), 2},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
