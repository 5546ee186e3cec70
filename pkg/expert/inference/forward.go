package inference

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/expert/pkg/expert/facts"
	"github.com/cognicore/expert/pkg/expert/rules"
)

// ForwardResult describes a completed forward run.
type ForwardResult struct {
	Fired       []string // rule texts in firing order
	Passes      int
	Termination Termination
}

// Forward derives every fact reachable from the store by repeated rule application.
//
// Each pass evaluates every rule once, in declaration order, against the facts
// as they stood when the pass began; a conclusion asserted mid-pass is only
// visible to conditions on the next pass. A rule fires only while its
// conclusion attribute is absent from the store, so the first value written
// for an attribute is never replaced.
//
// The loop stops at a fixpoint (a pass with no firings) or after
// opts.MaxIterations passes. Cancellation is checked between passes.
// A nil log is replaced by a fresh one that the caller never sees.
func Forward(ctx context.Context, set rules.Set, store *facts.Store, log *Log, opts Options) ForwardResult {
	opts = opts.withDefaults()
	if log == nil {
		log = NewLog()
	}
	logger := opts.Logger.With(zap.String("mode", string(ModeForward)))

	res := ForwardResult{Termination: CapExceeded}

	for pass := 1; pass <= opts.MaxIterations; pass++ {
		if ctx.Err() != nil {
			logger.Warn("forward chaining cancelled", zap.Int("passes", res.Passes), zap.Error(ctx.Err()))
			res.Termination = Cancelled
			return res
		}
		res.Passes = pass

		before := store.Clone()
		changed := false
		for i := 0; i < set.Len(); i++ {
			r := set.At(i)
			mustHaveConditions(r)

			concl := r.Conclusion()
			if store.Has(concl.Attribute) || !satisfied(before, r) {
				continue
			}

			store.Derive(concl.Attribute, concl.Value)
			entry := log.record(ModeForward, i, r, opts.Now())
			res.Fired = append(res.Fired, r.Text())
			changed = true

			logger.Debug("rule fired",
				zap.Int("pass", pass),
				zap.String("rule", r.Text()),
				zap.String("fact", entry.Fact))
		}

		if !changed {
			res.Termination = Fixpoint
			logger.Info("forward chaining reached fixpoint",
				zap.Int("passes", pass),
				zap.Int("fired", len(res.Fired)))
			return res
		}
	}

	logger.Warn("forward chaining hit iteration cap",
		zap.Int("max_iterations", opts.MaxIterations),
		zap.Int("fired", len(res.Fired)))
	return res
}

func satisfied(store *facts.Store, r rules.Rule) bool {
	for i := 0; i < r.NumConditions(); i++ {
		if !store.Matches(r.Condition(i)) {
			return false
		}
	}
	return true
}

// mustHaveConditions panics on a rule the parser should never have produced.
func mustHaveConditions(r rules.Rule) {
	if r.NumConditions() == 0 {
		panic(fmt.Sprintf("inference: rule %q has no conditions", r.Text()))
	}
}
