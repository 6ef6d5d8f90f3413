package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderExposesCounters(t *testing.T) {
	r := New()
	r.RecipeStarted()
	r.RecipeFinished(OutcomeRebuilt, 250*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "cook_recipes_total") {
		t.Error("expected cook_recipes_total in exposition output")
	}
	if !strings.Contains(body, "cook_recipes_running") {
		t.Error("expected cook_recipes_running in exposition output")
	}
	if !strings.Contains(body, "cook_build_duration_seconds") {
		t.Error("expected cook_build_duration_seconds in exposition output")
	}
}

func TestTwoRecordersDoNotCollide(t *testing.T) {
	r1 := New()
	r2 := New()
	r1.RecipeStarted()
	r2.RecipeFinished(OutcomeFailed, time.Second)
	// Constructing two Recorders must not panic from a duplicate
	// registration on a shared global registry.
}
