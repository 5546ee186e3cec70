package inference

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Default limits for a chaining run.
const (
	DefaultMaxIterations = 10
	DefaultMaxDepth      = 50
)

// Mode identifies which strategy produced a log entry or run.
type Mode string

const (
	ModeForward  Mode = "forward"
	ModeBackward Mode = "backward"
)

// Termination explains why a forward run stopped.
type Termination string

const (
	Fixpoint    Termination = "fixpoint"
	CapExceeded Termination = "cap"
	Cancelled   Termination = "cancelled"
)

// Asker supplies a value for an attribute that no rule could prove.
// ok=false means the source declines to answer.
type Asker interface {
	Ask(ctx context.Context, attribute string) (value string, ok bool, err error)
}

// AskFunc adapts a function to the Asker interface.
type AskFunc func(ctx context.Context, attribute string) (string, bool, error)

// Ask implements Asker.
func (f AskFunc) Ask(ctx context.Context, attribute string) (string, bool, error) {
	return f(ctx, attribute)
}

// Answers is an Asker backed by a fixed map; attributes not in the map are declined.
type Answers map[string]string

// Ask implements Asker.
func (a Answers) Ask(_ context.Context, attribute string) (string, bool, error) {
	v, ok := a[attribute]
	return v, ok, nil
}

// Options tunes a chaining run. Zero values fall back to defaults.
type Options struct {
	MaxIterations int
	MaxDepth      int
	Logger        *zap.Logger
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
