package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/store"
)

func TestRules_SaveLoadCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	texts := []string{"IF a=1 THEN b=1"}
	if err := s.SaveRules(ctx, "default", texts); err != nil {
		t.Fatalf("SaveRules: %v", err)
	}
	texts[0] = "tampered"

	got, err := s.LoadRules(ctx, "default")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if got[0] != "IF a=1 THEN b=1" {
		t.Errorf("stored rules aliased caller slice: %v", got)
	}
}

func TestRules_MissingSet(t *testing.T) {
	s := New()
	if _, err := s.LoadRules(context.Background(), "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveRules(context.Background(), "", nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRules_ListSorted(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SaveRules(ctx, "zeta", nil)
	s.SaveRules(ctx, "alpha", nil)

	names, _ := s.ListRuleSets(ctx)
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("expected [alpha zeta], got %v", names)
	}
}

func TestRuns_ListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	start := time.Now()

	for i := 0; i < 5; i++ {
		r := store.Run{
			ID:        fmt.Sprintf("run-%d", i),
			Mode:      "forward",
			StartedAt: start.Add(time.Duration(i) * time.Second),
			Facts:     []store.Fact{{Attribute: "a", Value: "1", Provenance: "given"}},
		}
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-4" || runs[2].ID != "run-2" {
		t.Errorf("unexpected order: %s .. %s", runs[0].ID, runs[2].ID)
	}
	if runs[0].Facts != nil {
		t.Error("summaries should not carry facts")
	}

	full, err := s.GetRun(ctx, "run-4")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(full.Facts) != 1 {
		t.Errorf("expected facts on full run, got %v", full.Facts)
	}
}

func TestRuns_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := store.Run{ID: "x", Mode: "backward"}

	if err := s.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := s.RecordRun(ctx, r); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := s.GetRun(ctx, "y"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.RecordRun(ctx, store.Run{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
