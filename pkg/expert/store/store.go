package store

import (
	"context"
	"time"
)

// Store persists rule sets and the history of chaining runs.
type Store interface {
	Close() error

	// Rule sets, stored as their source text in declaration order
	SaveRules(ctx context.Context, name string, texts []string) error
	LoadRules(ctx context.Context, name string) ([]string, error)
	ListRuleSets(ctx context.Context) ([]string, error)

	// Run history
	RecordRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is one completed forward or backward chaining run.
type Run struct {
	ID          string
	Mode        string // forward, backward
	Goal        string // "attribute=value", backward only
	Proved      bool
	Termination string // fixpoint, cap, cancelled; forward only
	Passes      int
	StartedAt   time.Time
	Facts       []Fact
	Entries     []Entry
}

// Fact is a stored fact with its provenance label.
type Fact struct {
	Attribute  string
	Value      string
	Provenance string // given, derived, asked
}

// Entry is a stored inference log entry.
type Entry struct {
	ID        string
	RuleIndex int
	Rule      string
	Fact      string
	Time      time.Time
}

// DefaultRuleSet is the name used when a caller does not pick one.
const DefaultRuleSet = "default"
