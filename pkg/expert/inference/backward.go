package inference

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/expert/pkg/expert/facts"
	"github.com/cognicore/expert/pkg/expert/rules"
)

// BackwardResult describes a completed backward run.
type BackwardResult struct {
	Proved          bool
	DepthExceeded   bool
	MaxDepthReached int
	Asked           []string // attributes queried, in order
}

// prover carries the state of one backward run.
type prover struct {
	set    rules.Set
	store  *facts.Store
	asker  Asker
	log    *Log
	logger *zap.Logger
	now    func() time.Time
	limit  int

	depth int
	asked map[string]struct{}
	res   BackwardResult
}

// Backward tries to prove goal against the store.
//
// A known attribute is authoritative. Otherwise every rule concluding exactly
// goal is tried in declaration order, proving its conditions as subgoals; the
// first rule whose conditions all hold asserts the goal. When no rule succeeds
// the asker is consulted, at most once per attribute per run. Branches deeper
// than opts.MaxDepth fail, which bounds cyclic rule sets.
//
// The only error returned is context cancellation observed around an ask.
// A nil log is replaced by a fresh one that the caller never sees.
func Backward(ctx context.Context, set rules.Set, store *facts.Store, goal rules.Condition, asker Asker, log *Log, opts Options) (BackwardResult, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = NewLog()
	}
	p := &prover{
		set:    set,
		store:  store,
		asker:  asker,
		log:    log,
		logger: opts.Logger.With(zap.String("mode", string(ModeBackward))),
		now:    opts.Now,
		limit:  opts.MaxDepth,
		asked:  make(map[string]struct{}),
	}

	proved, err := p.prove(ctx, goal)
	if err != nil {
		return p.res, err
	}
	p.res.Proved = proved

	p.logger.Info("backward chaining finished",
		zap.String("goal", goal.String()),
		zap.Bool("proved", proved),
		zap.Int("max_depth_reached", p.res.MaxDepthReached))
	return p.res, nil
}

func (p *prover) prove(ctx context.Context, goal rules.Condition) (bool, error) {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > p.res.MaxDepthReached {
		p.res.MaxDepthReached = p.depth
	}
	if p.depth > p.limit {
		p.res.DepthExceeded = true
		p.logger.Warn("recursion depth exceeded",
			zap.String("goal", goal.String()),
			zap.Int("max_depth", p.limit))
		return false, nil
	}

	p.logger.Debug("goal", zap.String("goal", goal.String()), zap.Int("depth", p.depth))

	if v, ok := p.store.Get(goal.Attribute); ok {
		return v == goal.Value, nil
	}

	for _, idx := range p.set.Concluding(goal) {
		r := p.set.At(idx)
		mustHaveConditions(r)

		ok, err := p.proveAll(ctx, r)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		// A subgoal may have settled the attribute through another path.
		if v, known := p.store.Get(goal.Attribute); known {
			return v == goal.Value, nil
		}
		p.store.Derive(goal.Attribute, goal.Value)
		p.log.record(ModeBackward, idx, r, p.now())
		p.logger.Debug("goal proved",
			zap.String("goal", goal.String()),
			zap.String("rule", r.Text()),
			zap.Int("depth", p.depth))
		return true, nil
	}

	return p.ask(ctx, goal)
}

func (p *prover) proveAll(ctx context.Context, r rules.Rule) (bool, error) {
	for i := 0; i < r.NumConditions(); i++ {
		ok, err := p.prove(ctx, r.Condition(i))
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p *prover) ask(ctx context.Context, goal rules.Condition) (bool, error) {
	if p.asker == nil {
		return false, nil
	}
	if _, done := p.asked[goal.Attribute]; done {
		return false, nil
	}
	p.asked[goal.Attribute] = struct{}{}
	p.res.Asked = append(p.res.Asked, goal.Attribute)

	if err := ctx.Err(); err != nil {
		return false, err
	}
	value, ok, err := p.asker.Ask(ctx, goal.Attribute)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		p.logger.Warn("fact source failed; treating as no answer",
			zap.String("attribute", goal.Attribute),
			zap.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}

	p.store.Answer(goal.Attribute, value)
	return value == goal.Value, nil
}
