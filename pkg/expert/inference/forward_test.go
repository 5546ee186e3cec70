package inference

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/expert/pkg/expert/facts"
	"github.com/cognicore/expert/pkg/expert/rules"
)

func mustRules(t *testing.T, lines ...string) rules.Set {
	t.Helper()
	var set rules.Set
	for _, line := range lines {
		r, err := rules.Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", line, err)
		}
		set = set.Add(r)
	}
	return set
}

func storeWith(pairs ...string) *facts.Store {
	s := facts.NewStore()
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

func fixedClock() func() time.Time {
	base := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestForwardSmartHomeScenario(t *testing.T) {
	set := mustRules(t, "IF время_суток=вечер AND присутствие_людей=да THEN включить_освещение=да")
	store := storeWith("время_суток", "вечер", "присутствие_людей", "да")
	log := NewLog()

	res := Forward(context.Background(), set, store, log, Options{Now: fixedClock()})

	if res.Termination != Fixpoint {
		t.Errorf("expected fixpoint, got %s", res.Termination)
	}
	if res.Passes != 2 {
		t.Errorf("expected firing pass plus confirming pass, got %d passes", res.Passes)
	}
	if diff := cmp.Diff([]string{set.At(0).Text()}, res.Fired); diff != "" {
		t.Errorf("fired mismatch (-want +got):\n%s", diff)
	}

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Fact != "включить_освещение=да" {
		t.Errorf("unexpected logged fact %q", entries[0].Fact)
	}
	if entries[0].Mode != ModeForward || entries[0].RuleIndex != 0 {
		t.Errorf("unexpected entry metadata: %+v", entries[0])
	}
	if store.Provenance("включить_освещение") != facts.Derived {
		t.Errorf("expected derived provenance, got %s", store.Provenance("включить_освещение"))
	}
}

func TestForwardMidPassAssertionWaitsForNextPass(t *testing.T) {
	set := mustRules(t,
		"IF a=1 THEN b=1",
		"IF b=1 THEN c=1",
	)
	store := storeWith("a", "1")

	res := Forward(context.Background(), set, store, NewLog(), Options{MaxIterations: 1})

	if res.Termination != CapExceeded {
		t.Errorf("expected cap after one changing pass, got %s", res.Termination)
	}
	if store.Has("c") {
		t.Error("c must not be derived in the same pass that derived b")
	}
	if !store.Has("b") {
		t.Error("b should be derived in the first pass")
	}
}

func TestForwardFirstWriteWins(t *testing.T) {
	set := mustRules(t,
		"IF a=1 THEN x=first",
		"IF a=1 THEN x=second",
	)
	store := storeWith("a", "1")
	log := NewLog()

	res := Forward(context.Background(), set, store, log, Options{})

	if v, _ := store.Get("x"); v != "first" {
		t.Errorf("expected x=first, got %q", v)
	}
	if len(res.Fired) != 1 || log.Len() != 1 {
		t.Errorf("expected exactly one firing, got fired=%d log=%d", len(res.Fired), log.Len())
	}
}

func TestForwardNeverOverwritesGivenFacts(t *testing.T) {
	set := mustRules(t, "IF a=1 THEN b=derived")
	store := storeWith("a", "1", "b", "given")

	res := Forward(context.Background(), set, store, NewLog(), Options{})

	if v, _ := store.Get("b"); v != "given" {
		t.Errorf("given fact overwritten with %q", v)
	}
	if len(res.Fired) != 0 {
		t.Errorf("expected no firings, got %v", res.Fired)
	}
	if res.Passes != 1 || res.Termination != Fixpoint {
		t.Errorf("expected fixpoint after 1 pass, got %d/%s", res.Passes, res.Termination)
	}
}

func TestForwardIterationCap(t *testing.T) {
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("IF a%d=1 THEN a%d=1", i, i+1))
	}
	set := mustRules(t, lines...)
	store := storeWith("a0", "1")

	res := Forward(context.Background(), set, store, NewLog(), Options{})

	if res.Termination != CapExceeded {
		t.Fatalf("expected cap, got %s", res.Termination)
	}
	if res.Passes != DefaultMaxIterations {
		t.Errorf("expected %d passes, got %d", DefaultMaxIterations, res.Passes)
	}
	if len(res.Fired) != DefaultMaxIterations {
		t.Errorf("expected %d firings, got %d", DefaultMaxIterations, len(res.Fired))
	}
	if store.Has("a11") {
		t.Error("a11 should not be reachable within the cap")
	}
}

func TestForwardConvergesIndependentOfOrder(t *testing.T) {
	lines := []string{
		"IF время_суток=вечер AND присутствие_людей=да THEN включить_основное_освещение=да",
		"IF температура_внешняя=холодно AND присутствие_людей=да THEN включить_отопление=да",
		"IF включить_отопление=да THEN закрыть_окна=да",
		"IF закрыть_окна=да AND музыка=да THEN уют=да",
		"IF закрыть_окна=да AND включить_основное_освещение=да THEN комфорт=да",
		"IF присутствие_людей=нет THEN режим_экономии_энергии=да",
	}
	initial := []string{
		"время_суток", "вечер",
		"присутствие_людей", "да",
		"температура_внешняя", "холодно",
	}

	var want map[string]string
	for shift := 0; shift < len(lines); shift++ {
		rotated := append(append([]string(nil), lines[shift:]...), lines[:shift]...)
		for _, order := range [][]string{rotated, reversed(rotated)} {
			store := storeWith(initial...)
			res := Forward(context.Background(), mustRules(t, order...), store, NewLog(), Options{})
			if res.Termination != Fixpoint {
				t.Fatalf("acyclic set hit the cap with order %v", order)
			}
			got := store.Snapshot()
			if want == nil {
				want = got
				continue
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("final facts depend on rule order (-want +got):\n%s", diff)
			}
		}
	}
	if want["комфорт"] != "да" {
		t.Errorf("expected комфорт=да to be derived, got %v", want)
	}
}

func TestForwardCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := mustRules(t, "IF a=1 THEN b=1")
	store := storeWith("a", "1")
	res := Forward(ctx, set, store, NewLog(), Options{})

	if res.Termination != Cancelled {
		t.Errorf("expected cancelled, got %s", res.Termination)
	}
	if store.Has("b") {
		t.Error("no rule should fire after cancellation")
	}
}

func TestForwardPanicsOnRuleWithoutConditions(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a rule with no conditions")
		}
	}()
	Forward(context.Background(), rules.NewSet(rules.Rule{}), facts.NewStore(), NewLog(), Options{})
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
