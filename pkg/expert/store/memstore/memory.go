package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu    sync.RWMutex
	rules map[string][]string
	runs  map[string]store.Run
	order []string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rules: make(map[string][]string),
		runs:  make(map[string]store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRules replaces the named rule set.
func (s *Store) SaveRules(ctx context.Context, name string, texts []string) error {
	if name == "" {
		return fmt.Errorf("save rules: empty name: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[name] = append([]string{}, texts...)
	return nil
}

// LoadRules returns the named rule set.
func (s *Store) LoadRules(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	texts, ok := s.rules[name]
	if !ok {
		return nil, fmt.Errorf("rule set %q: %w", name, internalerr.ErrNotFound)
	}
	return append([]string{}, texts...), nil
}

// ListRuleSets returns rule set names sorted alphabetically.
func (s *Store) ListRuleSets(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RecordRun stores a run. IDs must be unique.
func (s *Store) RecordRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("record run: empty id: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[r.ID]; exists {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrDuplicate)
	}
	s.runs[r.ID] = copyRun(r)
	s.order = append(s.order, r.ID)
	return nil
}

// GetRun returns a run with its facts and log entries.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return copyRun(r), nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	out := make([]store.Run, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.runs[s.order[i]]
		r.Facts = nil
		r.Entries = nil
		out = append(out, r)
	}
	return out, nil
}

func copyRun(r store.Run) store.Run {
	r.Facts = append([]store.Fact(nil), r.Facts...)
	r.Entries = append([]store.Entry(nil), r.Entries...)
	return r
}
