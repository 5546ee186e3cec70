package inference

import (
	"context"
	"testing"
	"time"
)

func TestLogAssignsOrderedIDs(t *testing.T) {
	l := NewLog()
	now := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)

	a := l.Append(Entry{Mode: ModeForward, Rule: "IF a=1 THEN b=1", Fact: "b=1", Time: now})
	b := l.Append(Entry{Mode: ModeForward, Rule: "IF b=1 THEN c=1", Fact: "c=1", Time: now})

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected IDs to be assigned")
	}
	if !(a.ID < b.ID) {
		t.Errorf("IDs within the same millisecond must increase: %s >= %s", a.ID, b.ID)
	}
}

func TestLogEntriesIsACopy(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Fact: "b=1"})

	entries := l.Entries()
	entries[0].Fact = "tampered"

	if l.Entries()[0].Fact != "b=1" {
		t.Error("log entry mutated through Entries()")
	}
}

func TestLogKeepsExplicitID(t *testing.T) {
	l := NewLog()
	e := l.Append(Entry{ID: "fixed", Fact: "b=1"})
	if e.ID != "fixed" {
		t.Errorf("expected explicit ID to survive, got %s", e.ID)
	}
}

func TestLogReset(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Fact: "b=1"})
	l.Reset()
	if l.Len() != 0 {
		t.Errorf("expected empty log after Reset, got %d", l.Len())
	}
}

func TestEnginesAcceptNilLog(t *testing.T) {
	set := mustRules(t, "IF a=1 THEN b=1", "IF b=1 THEN c=1")

	store := storeWith("a", "1")
	res := Forward(context.Background(), set, store, nil, Options{})
	if res.Termination != Fixpoint || len(res.Fired) != 2 {
		t.Errorf("unexpected forward result without a log: %+v", res)
	}

	store = storeWith("a", "1")
	bres, err := Backward(context.Background(), set, store, goal("c", "1"), nil, nil, Options{})
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if !bres.Proved {
		t.Error("expected goal proved without a log")
	}
	if v, _ := store.Get("b"); v != "1" {
		t.Errorf("expected b=1 derived, got %q", v)
	}
}
