package inference

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/expert/pkg/expert/rules"
)

// Entry records one rule application.
type Entry struct {
	ID        string
	Mode      Mode
	RuleIndex int
	Rule      string
	Fact      string // "attribute=value"
	Time      time.Time
}

// Log is an append-only record of rule applications.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	entropy *ulid.MonotonicEntropy
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Append adds an entry, assigning an ID when it has none.
func (l *Log) Append(e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		t := e.Time
		if t.IsZero() {
			t = time.Now()
		}
		e.ID = ulid.MustNew(ulid.Timestamp(t), l.entropy).String()
	}
	l.entries = append(l.entries, e)
	return e
}

// record appends the application of rule idx concluding c.
func (l *Log) record(mode Mode, idx int, r rules.Rule, now time.Time) Entry {
	return l.Append(Entry{
		Mode:      mode,
		RuleIndex: idx,
		Rule:      r.Text(),
		Fact:      r.Conclusion().String(),
		Time:      now,
	})
}

// Entries returns a copy of the log in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards every entry. Used between independent runs only.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
