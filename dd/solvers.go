package dd

import (
	"cmp"
	"context"
	"hash/maphash"
	"slices"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Context describes a problem as a sequence of decisions, one layer of the
// diagram per variable.
type Context[TValue cmp.Ordered, TCost any] interface {
	GetStartingState() State[TValue, TCost]
	GetValues(variable int) []TValue
	GetVariables() int
	Compare(a, b TCost) int
	WorstCost() TCost
}

type State[TValue cmp.Ordered, TCost any] interface {
	// TransitionTo returns nil when value is infeasible from this state.
	TransitionTo(context Context[TValue, TCost], value TValue) State[TValue, TCost]
	Cost(context Context[TValue, TCost]) TCost
	Heuristic(context Context[TValue, TCost]) TCost
	HashBytes() []byte
	Equals(state State[TValue, TCost]) bool
	Solution(context Context[TValue, TCost]) []TValue
}

// layer holds the distinct states of one level of the diagram.
type layer[TValue cmp.Ordered, TCost cmp.Ordered] struct {
	byHash     map[uint64][]int
	states     []State[TValue, TCost]
	duplicates int
}

func (l *layer[TValue, TCost]) add(context Context[TValue, TCost], hasher *maphash.Hash, s State[TValue, TCost]) {
	hasher.Reset()
	hasher.Write(s.HashBytes())
	hash := hasher.Sum64()
	for _, i := range l.byHash[hash] {
		if !s.Equals(l.states[i]) {
			continue
		}
		l.duplicates++
		if context.Compare(s.Cost(context), l.states[i].Cost(context)) < 0 {
			l.states[i] = s
		}
		return
	}
	l.byHash[hash] = append(l.byHash[hash], len(l.states))
	l.states = append(l.states, s)
}

func (l *layer[TValue, TCost]) best(context Context[TValue, TCost]) (TCost, []TValue) {
	if len(l.states) == 0 {
		return context.WorstCost(), nil
	}
	best := slices.MinFunc(l.states, func(a, b State[TValue, TCost]) int {
		return context.Compare(a.Cost(context), b.Cost(context))
	})
	return best.Cost(context), best.Solution(context)
}

// expansion builds the diagram top down. States whose cost reaches cutoff
// are dropped, so costs must not decrease along a path. reduce trims every
// layer but the last.
type expansion[TValue cmp.Ordered, TCost cmp.Ordered] struct {
	context Context[TValue, TCost]
	reduce  func([]State[TValue, TCost]) []State[TValue, TCost]
	cutoff  TCost
	logger  logrus.FieldLogger
}

func (e *expansion[TValue, TCost]) run(ctx context.Context) (TCost, []TValue, error) {
	worst := e.context.WorstCost()
	variables := e.context.GetVariables()
	parents := []State[TValue, TCost]{e.context.GetStartingState()}
	var hasher maphash.Hash
	for j := 0; j < variables; j++ {
		if err := ctx.Err(); err != nil {
			return worst, nil, errors.Wrapf(err, "expanding layer %d", j+1)
		}
		l := &layer[TValue, TCost]{byHash: map[uint64][]int{}}
		for _, parent := range parents {
			for _, value := range e.context.GetValues(j) {
				child := parent.TransitionTo(e.context, value)
				if child == nil || e.context.Compare(child.Cost(e.context), e.cutoff) >= 0 {
					continue
				}
				l.add(e.context, &hasher, child)
			}
		}
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"layer":      j + 1,
				"states":     len(l.states),
				"duplicates": l.duplicates,
			}).Debug("expanded layer")
		}
		if j == variables-1 {
			cost, values := l.best(e.context)
			return cost, values, nil
		}
		parents = e.reduce(l.states)
		if len(parents) == 0 {
			return worst, nil, nil
		}
	}
	return worst, nil, nil
}

// SolveRestricted keeps at most maxWidth states per layer, preferring the
// smallest heuristic values, and drops states that cannot beat cutoff. The
// result is feasible but not necessarily optimal.
func SolveRestricted[TValue cmp.Ordered, TCost cmp.Ordered](ctx context.Context, context Context[TValue, TCost], maxWidth int, cutoff TCost, logger logrus.FieldLogger) (TCost, []TValue, error) {
	e := &expansion[TValue, TCost]{
		context: context,
		cutoff:  cutoff,
		logger:  logger,
		reduce: func(states []State[TValue, TCost]) []State[TValue, TCost] {
			if maxWidth > 0 && len(states) > maxWidth {
				slices.SortStableFunc(states, func(a, b State[TValue, TCost]) int {
					return context.Compare(a.Heuristic(context), b.Heuristic(context))
				})
				return states[:maxWidth]
			}
			return states
		},
	}
	return e.run(ctx)
}

func SolveByFullExpansion[TValue cmp.Ordered, TCost cmp.Ordered](ctx context.Context, context Context[TValue, TCost], logger logrus.FieldLogger) (TCost, []TValue, error) {
	e := &expansion[TValue, TCost]{
		context: context,
		cutoff:  context.WorstCost(),
		logger:  logger,
		reduce: func(states []State[TValue, TCost]) []State[TValue, TCost] {
			return states
		},
	}
	return e.run(ctx)
}
