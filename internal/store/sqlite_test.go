package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/persona/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Deterministic, strictly increasing timestamps
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func sampleOutcome(id, username string, degraded bool) *model.Outcome {
	persona := &model.PersonaRecord{Username: username, Citations: map[string][]model.Citation{}}
	if degraded {
		persona = model.UnknownPersona()
	}
	return &model.Outcome{
		RunID:       id,
		Username:    username,
		HasActivity: true,
		Persona:     persona,
		Provider:    "groq",
		Model:       "llama-3.1-8b-instant",
		Posts:       3,
		Comments:    4,
		Diagnostics: &model.Diagnostics{AttemptedCites: 5, ResolvedCites: 2},
		Grounding:   &model.Grounding{Index: 37, Confidence: "low", Signals: []model.Signal{}},
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleOutcome("run-1", "spez", false)
	if err := s.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Username != "spez" || run.Provider != "groq" || run.Citations != 2 || run.Grounding != 37 || run.Degraded {
		t.Errorf("Unexpected run metadata: %+v", run)
	}
	if diff := cmp.Diff(want, run.Outcome); diff != "" {
		t.Errorf("Stored outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, o := range []*model.Outcome{
		sampleOutcome("a", "spez", false),
		sampleOutcome("b", "kn0thing", true),
		sampleOutcome("c", "Spez", false),
	} {
		if err := s.SaveRun(ctx, o); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	all, err := s.ListRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	ids := []string{}
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids); diff != "" {
		t.Errorf("Expected newest first (-want +got):\n%s", diff)
	}
	if !all[1].Degraded {
		t.Error("Expected run b to be degraded")
	}
	if all[0].Outcome != nil {
		t.Error("ListRuns should not load outcomes")
	}

	spez, _ := s.ListRuns(ctx, "SPEZ", 10)
	if len(spez) != 2 {
		t.Errorf("Expected 2 runs for spez (case-insensitive), got %d", len(spez))
	}

	limited, _ := s.ListRuns(ctx, "", 1)
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("Expected only the newest run, got %+v", limited)
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.SaveRun(ctx, sampleOutcome("x", "spez", false))
	_ = s.SaveRun(ctx, sampleOutcome("x", "spez", true))

	runs, _ := s.ListRuns(ctx, "", 10)
	if len(runs) != 1 || !runs[0].Degraded {
		t.Errorf("Expected one replaced run, got %+v", runs)
	}
}

func TestSQLiteStore_RejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveRun(context.Background(), sampleOutcome("", "spez", false)); err == nil {
		t.Error("Expected error for a run without id")
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	_ = s.SaveRun(context.Background(), sampleOutcome("keep", "spez", false))
	_ = s.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if err := reopened.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if _, err := reopened.GetRun(context.Background(), "keep"); err != nil {
		t.Errorf("Expected run to persist, got %v", err)
	}
}
