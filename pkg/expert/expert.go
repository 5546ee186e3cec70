package expert

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/expert/pkg/expert/config"
	"github.com/cognicore/expert/pkg/expert/facts"
	"github.com/cognicore/expert/pkg/expert/inference"
	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/rules"
	"github.com/cognicore/expert/pkg/expert/store"
)

// Session is the main expert system facade: a rule set, a fact store and
// the inference log shared by every run until Reset.
type Session struct {
	mu      sync.Mutex
	rules   rules.Set
	initial config.Pairs
	facts   *facts.Store
	log     *inference.Log
	store   store.Store
	ruleSet string
	engine  inference.Options
	logger  *zap.Logger
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// Options configures a Session
type Options struct {
	Rules   rules.Set
	Facts   config.Pairs // initial facts, restored by Reset
	Store   store.Store  // optional; persists rule edits and run history
	RuleSet string       // rule set name in Store
	Engine  inference.Options
	Logger  *zap.Logger
	Now     func() time.Time
}

// New creates a Session with the given dependencies
func New(opts Options) *Session {
	s := &Session{
		rules:   opts.Rules,
		initial: append(config.Pairs(nil), opts.Facts...),
		log:     inference.NewLog(),
		store:   opts.Store,
		ruleSet: opts.RuleSet,
		engine:  opts.Engine,
		logger:  opts.Logger,
		now:     opts.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if s.ruleSet == "" {
		s.ruleSet = store.DefaultRuleSet
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.engine.Logger = s.logger
	s.engine.Now = s.now
	s.facts = s.initialFacts()
	return s
}

// Close cleanly shuts down the Session's store
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Session) initialFacts() *facts.Store {
	fs := facts.NewStore()
	for _, p := range s.initial {
		fs.Set(p.Attribute, p.Value)
	}
	return fs
}

// LoadStoredRules replaces the rule set with the stored one of the same name.
// It reports false, without error, when no store is configured or the set
// was never saved.
func (s *Session) LoadStoredRules(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	texts, err := s.store.LoadRules(ctx, s.ruleSet)
	if errors.Is(err, internalerr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	loaded := make([]rules.Rule, 0, len(texts))
	for i, text := range texts {
		r, err := rules.Parse(text)
		if err != nil {
			return false, fmt.Errorf("stored rule %d: %w", i+1, err)
		}
		loaded = append(loaded, r)
	}

	s.mu.Lock()
	s.rules = rules.NewSet(loaded...)
	s.mu.Unlock()
	return true, nil
}

// HasStoredRules reports whether the store holds this session's rule set.
func (s *Session) HasStoredRules(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	_, err := s.store.LoadRules(ctx, s.ruleSet)
	if errors.Is(err, internalerr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ReplaceRules swaps in set and persists it, discarding the previous rules.
func (s *Session) ReplaceRules(ctx context.Context, set rules.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveRules(ctx, set); err != nil {
		return err
	}
	s.rules = set
	return nil
}

// Rules returns the current rule set
func (s *Session) Rules() rules.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// Facts returns every known fact in insertion order
func (s *Session) Facts() []facts.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facts.Facts()
}

// Log returns the inference log entries since the last Reset
func (s *Session) Log() []inference.Entry {
	return s.log.Entries()
}

// Reset restores the initial facts and clears the log
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = s.initialFacts()
	s.log.Reset()
}

// Supply adds a given fact between runs. An existing value is replaced.
// The value is stored exactly as passed.
func (s *Session) Supply(attr, value string) error {
	if attr == "" || strings.ContainsFunc(attr, unicode.IsSpace) || strings.Contains(attr, "=") {
		return fmt.Errorf("%w: attribute must be non-empty without spaces or '=', got %q", internalerr.ErrInvalidInput, attr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts.Set(attr, value)
	return nil
}

// Forward runs forward chaining over the current facts and records the run.
// A store failure is returned alongside the result; the facts are already updated.
func (s *Session) Forward(ctx context.Context) (inference.ForwardResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	before := s.log.Len()
	res := inference.Forward(ctx, s.rules, s.facts, s.log, s.engine)

	run := s.newRun(inference.ModeForward, started, before)
	run.Termination = string(res.Termination)
	run.Passes = res.Passes
	return res, s.record(ctx, run)
}

// Backward tries to prove goal, consulting asker for attributes no rule concludes
func (s *Session) Backward(ctx context.Context, goal rules.Condition, asker inference.Asker) (inference.BackwardResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	before := s.log.Len()
	res, err := inference.Backward(ctx, s.rules, s.facts, goal, asker, s.log, s.engine)
	if err != nil {
		return res, err
	}

	run := s.newRun(inference.ModeBackward, started, before)
	run.Goal = goal.String()
	run.Proved = res.Proved
	return res, s.record(ctx, run)
}

func (s *Session) newRun(mode inference.Mode, started time.Time, logFrom int) store.Run {
	run := store.Run{
		ID:        ulid.MustNew(ulid.Timestamp(started), s.entropy).String(),
		Mode:      string(mode),
		StartedAt: started,
	}
	for _, f := range s.facts.Facts() {
		run.Facts = append(run.Facts, store.Fact{
			Attribute:  f.Attribute,
			Value:      f.Value,
			Provenance: f.Provenance.String(),
		})
	}
	for _, e := range s.log.Entries()[logFrom:] {
		run.Entries = append(run.Entries, store.Entry{
			ID:        e.ID,
			RuleIndex: e.RuleIndex,
			Rule:      e.Rule,
			Fact:      e.Fact,
			Time:      e.Time,
		})
	}
	return run
}

func (s *Session) record(ctx context.Context, run store.Run) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		s.logger.Warn("record run failed", zap.String("run", run.ID), zap.Error(err))
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// AddRule parses a rule line and appends it to the rule set
func (s *Session) AddRule(ctx context.Context, text string) (rules.Rule, error) {
	r, err := rules.Parse(text)
	if err != nil {
		return rules.Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.rules.Add(r)
	if err := s.saveRules(ctx, next); err != nil {
		return rules.Rule{}, err
	}
	s.rules = next
	return r, nil
}

// RemoveRule deletes the rule at index i (0-based)
func (s *Session) RemoveRule(ctx context.Context, i int) (rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.rules.Remove(i)
	if err != nil {
		return rules.Rule{}, err
	}
	removed := s.rules.At(i)
	if err := s.saveRules(ctx, next); err != nil {
		return rules.Rule{}, err
	}
	s.rules = next
	return removed, nil
}

// ImportRules parses rule text and appends every valid rule. Lines that
// fail to parse are reported and skipped.
func (s *Session) ImportRules(ctx context.Context, text string) (rules.Report, error) {
	parsed, report := rules.ParseText(text)
	for _, pe := range report.Errors {
		s.logger.Warn("skipping rule", zap.Int("line", pe.Line), zap.String("reason", pe.Reason))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.rules.Extend(parsed)
	if err := s.saveRules(ctx, next); err != nil {
		return report, err
	}
	s.rules = next
	return report, nil
}

// SaveRules persists the current rule set. A no-op without a store.
func (s *Session) SaveRules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRules(ctx, s.rules)
}

func (s *Session) saveRules(ctx context.Context, set rules.Set) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveRules(ctx, s.ruleSet, set.Texts()); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}

// Recommendation lists the derived facts filed under one category
type Recommendation struct {
	Category string
	Facts    []facts.Fact
}

// Recommendations groups derived facts by category, in category order.
// Categories with no derived facts are omitted.
func (s *Session) Recommendations(categories config.Categories) []Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Recommendation
	for _, cat := range categories {
		rec := Recommendation{Category: cat.Name}
		for _, attr := range cat.Attributes {
			if s.facts.Provenance(attr) != facts.Derived {
				continue
			}
			v, _ := s.facts.Get(attr)
			rec.Facts = append(rec.Facts, facts.Fact{Attribute: attr, Value: v, Provenance: facts.Derived})
		}
		if len(rec.Facts) > 0 {
			out = append(out, rec)
		}
	}
	return out
}
