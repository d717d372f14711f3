package pricing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"leagues_go/lp"
	"leagues_go/model"
)

type Strategy string

const (
	// StrategyHeuristic runs the local search and falls back to the binary
	// program only when it finds nothing.
	StrategyHeuristic Strategy = "heuristic"
	StrategyExact     Strategy = "exact"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyHeuristic, StrategyExact:
		return Strategy(s), nil
	case "":
		return StrategyHeuristic, nil
	}
	return "", errors.Errorf("unknown pricing strategy %q", s)
}

type Source int

const (
	SourceNone Source = iota
	SourceHeuristic
	SourceMIP
)

func (s Source) String() string {
	switch s {
	case SourceHeuristic:
		return "heuristic"
	case SourceMIP:
		return "mip"
	}
	return "none"
}

type Options struct {
	Strategy      Strategy
	Populate      bool
	PopulateLimit int
	// NodeLimit bounds the exact search; 0 means unlimited.
	NodeLimit int
	Print     bool
	Logger    logrus.FieldLogger
}

// Pricing finds leagues whose reduced cost is negative for the current
// master duals. Fixations are forwarded to both the clique manager and the
// binary program so they always agree.
type Pricing struct {
	opts      Options
	heuristic *Heuristic
	exact     *Exact
	logger    logrus.FieldLogger
}

func New(problem *model.Problem, solver lp.Solver, opts Options) *Pricing {
	if opts.PopulateLimit <= 0 {
		opts.PopulateLimit = 1000
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyHeuristic
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	exact := NewExact(problem, solver)
	exact.Populate = opts.Populate
	exact.PopulateLimit = opts.PopulateLimit
	exact.NodeLimit = opts.NodeLimit
	return &Pricing{
		opts:      opts,
		heuristic: NewHeuristic(problem),
		exact:     exact,
		logger:    logger.WithField("component", "pricing"),
	}
}

func (p *Pricing) Fix(i, j int, together bool) {
	p.heuristic.Fix(i, j, together)
	p.exact.Fix(i, j, together)
}

func (p *Pricing) Reset() {
	p.heuristic.Reset()
	p.exact.Reset()
}

func (p *Pricing) CliqueManager() *CliqueManager {
	return p.heuristic.CliqueManager()
}

// Solve returns the leagues whose cost minus the duals of their teams is
// below mu - EPS, cheapest first, together with those values.
func (p *Pricing) Solve(ctx context.Context, duals []float64, mu float64) ([]*model.League, []float64, Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, SourceNone, errors.Wrap(err, "pricing")
	}
	var leagues []*model.League
	var costs []float64
	source := SourceNone
	if p.opts.Strategy == StrategyHeuristic && p.heuristic.Solve(duals, mu) {
		leagues, costs, source = p.heuristic.Leagues(), p.heuristic.Costs(), SourceHeuristic
	} else {
		found, err := p.exact.Solve(ctx, duals, mu)
		if err != nil {
			return nil, nil, SourceNone, err
		}
		if found {
			leagues, costs, source = p.exact.Leagues(), p.exact.Costs(), SourceMIP
		}
	}
	if len(leagues) > p.opts.PopulateLimit {
		leagues, costs = leagues[:p.opts.PopulateLimit], costs[:p.opts.PopulateLimit]
	}
	if p.opts.Print && len(leagues) > 0 {
		p.logger.WithFields(logrus.Fields{
			"source":  source,
			"columns": len(leagues),
			"best":    costs[0],
			"mu":      mu,
		}).Debug("pricing")
	}
	return leagues, costs, source, nil
}
