package bnp

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"leagues_go/lp"
	"leagues_go/model"
	"leagues_go/pricing"
)

const artificialCost = 10e6

// ColumnGeneration solves the master LP of one node:
//
//	min  Σ cost_j λ_j + artificialCost Σ a_t
//	s.t. Σ_{j∋t} λ_j + a_t = 1   for every team t  (dual γ_t)
//	     Σ λ_j <= ⌊n / minLeagueSize⌋             (dual μ <= 0)
//
// alternating with pricing until no league has negative reduced cost.
type ColumnGeneration struct {
	problem *model.Problem
	solver  lp.Solver
	pricing *pricing.Pricing
	params  Parameters
	logger  logrus.FieldLogger

	m           *lp.Model
	coverRows   []lp.Row
	maxLeagues  lp.Row
	artificials []lp.Var
	columns     []*Column
	keys        mapset.Set[string]
	fixedOne    []Pair
	fixedZero   []Pair

	iter      int
	result    *lp.Result
	objective float64
}

func NewColumnGeneration(problem *model.Problem, solver lp.Solver, params Parameters, logger logrus.FieldLogger) *ColumnGeneration {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	nodeLimit := 0
	if params.LimitPricingIters {
		nodeLimit = params.MaxItersPricing
	}
	cg := &ColumnGeneration{
		problem: problem,
		solver:  solver,
		params:  params,
		logger:  logger,
		pricing: pricing.New(problem, solver, pricing.Options{
			Strategy:      params.PricingStrategy,
			Populate:      params.Populate,
			PopulateLimit: params.PopulateLimit,
			NodeLimit:     nodeLimit,
			Print:         params.PrintPricing,
			Logger:        logger,
		}),
		keys:      mapset.NewThreadUnsafeSet[string](),
		objective: math.MaxFloat64,
	}
	cg.buildMaster()
	return cg
}

func (cg *ColumnGeneration) buildMaster() {
	n := cg.problem.NTeams()
	cg.m = lp.NewModel("master")
	cg.coverRows = make([]lp.Row, n)
	cg.artificials = make([]lp.Var, n)
	for t := 0; t < n; t++ {
		cg.coverRows[t] = cg.m.AddConstraint(fmt.Sprintf("cover_%d", t), nil, lp.Equal, 1)
	}
	cg.maxLeagues = cg.m.AddConstraint("max_leagues", nil, lp.LessEqual, float64(cg.problem.MaxLeagues()))
	for t := 0; t < n; t++ {
		cg.artificials[t] = cg.m.AddColumn(fmt.Sprintf("a_%d", t), artificialCost, math.Inf(1),
			[]lp.ColumnTerm{{Row: cg.coverRows[t], Coef: 1}})
	}
}

// Reset removes every column and fixation.
func (cg *ColumnGeneration) Reset() {
	cg.pricing.Reset()
	cg.buildMaster()
	cg.columns = cg.columns[:0]
	cg.keys.Clear()
	cg.fixedOne = cg.fixedOne[:0]
	cg.fixedZero = cg.fixedZero[:0]
	cg.iter = 0
	cg.result = nil
	cg.objective = math.MaxFloat64
}

func (cg *ColumnGeneration) Fix(i, j int, together bool) {
	if together {
		cg.fixedOne = append(cg.fixedOne, Pair{i, j})
	} else {
		cg.fixedZero = append(cg.fixedZero, Pair{i, j})
	}
	cg.pricing.Fix(i, j, together)
}

// AddColumn adds league to the master unless a column with the same teams
// exists.
func (cg *ColumnGeneration) AddColumn(league *model.League, objective float64) (*Column, bool) {
	if !cg.keys.Add(league.Key()) {
		return nil, false
	}
	terms := make([]lp.ColumnTerm, 0, league.Size()+1)
	for _, t := range league.Teams() {
		terms = append(terms, lp.ColumnTerm{Row: cg.coverRows[t], Coef: 1})
	}
	terms = append(terms, lp.ColumnTerm{Row: cg.maxLeagues, Coef: 1})
	col := &Column{
		League:    league,
		Var:       cg.m.AddColumn("l_"+league.Key(), float64(league.Cost()), math.Inf(1), terms),
		Objective: objective,
		Iter:      cg.iter,
	}
	cg.columns = append(cg.columns, col)
	return col, true
}

func (cg *ColumnGeneration) Columns() []*Column {
	return cg.columns
}

func (cg *ColumnGeneration) Objective() float64 {
	return cg.objective
}

func (cg *ColumnGeneration) CliqueManager() *pricing.CliqueManager {
	return cg.pricing.CliqueManager()
}

// HasArtificialVars reports whether the last master solution still needs an
// artificial variable (or no solution exists yet).
func (cg *ColumnGeneration) HasArtificialVars() bool {
	if cg.result == nil {
		return true
	}
	for _, a := range cg.artificials {
		if cg.result.Value(a) > EPS {
			return true
		}
	}
	return false
}

// removeArtificialVars drops the artificials once the columns cover every
// team, so the duals come from the set partitioning LP alone.
func (cg *ColumnGeneration) removeArtificialVars() {
	for _, a := range cg.artificials {
		cg.m.RemoveVar(a)
	}
	cg.artificials = nil
}

func (cg *ColumnGeneration) duals() ([]float64, float64) {
	gamma := make([]float64, len(cg.coverRows))
	for t, r := range cg.coverRows {
		gamma[t] = cg.result.Dual(r)
	}
	return gamma, cg.result.Dual(cg.maxLeagues)
}

// removeExpired refreshes active columns and drops those idle for more than
// itersColumnLife iterations whose reduced cost exceeds columnMinReducedCost.
func (cg *ColumnGeneration) removeExpired() {
	if !cg.params.RemoveColumns {
		return
	}
	gamma, mu := cg.duals()
	kept := cg.columns[:0]
	for _, col := range cg.columns {
		if cg.result.Value(col.Var) > EPS {
			col.Iter = cg.iter
		} else if col.Iter < cg.iter-cg.params.ItersColumnLife {
			reduced := float64(col.League.Cost()) - mu
			for _, t := range col.League.Teams() {
				reduced -= gamma[t]
			}
			if reduced > cg.params.ColumnMinReducedCost {
				cg.m.RemoveVar(col.Var)
				cg.keys.Remove(col.League.Key())
				continue
			}
		}
		kept = append(kept, col)
	}
	clear(cg.columns[len(kept):])
	cg.columns = kept
}

// Solve runs column generation to optimality of the master LP. It returns
// false when the node is infeasible, and an error when ctx expires or the LP
// or pricing fails.
func (cg *ColumnGeneration) Solve(ctx context.Context) (bool, error) {
	start := time.Now()
	hasArtificial := true
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return false, errors.Wrap(err, "column generation")
		}
		cg.iter++
		prevObjective := cg.objective
		res, err := cg.solver.SolveLP(ctx, cg.m)
		if errors.Is(err, lp.ErrInfeasible) {
			cg.logger.WithError(err).Debug("no solution for the master problem")
			cg.result = nil
			return false, nil
		}
		if err != nil {
			return false, errors.Wrap(err, "column generation")
		}
		cg.result = res
		cg.objective = res.Objective
		if prevObjective-cg.objective < EPS {
			cg.iter--
		} else {
			cg.removeExpired()
		}

		if hasArtificial && !cg.HasArtificialVars() {
			hasArtificial = false
			cg.removeArtificialVars()
			cg.logger.Debug("all artificial variables are zero, removed them")
			continue
		}

		gamma, mu := cg.duals()
		leagues, costs, source, err := cg.pricing.Solve(ctx, gamma, mu)
		if err != nil {
			return false, err
		}
		added := 0
		for k, league := range leagues {
			col := &Column{League: league, Objective: costs[k]}
			if err := col.Valid(gamma, mu, cg.fixedOne, cg.fixedZero); err != nil {
				panic(fmt.Sprintf("invalid column from %s pricing: %v", source, err))
			}
			if _, ok := cg.AddColumn(league, costs[k]); ok {
				added++
			}
		}

		cg.logger.WithFields(logrus.Fields{
			"iter":      iteration,
			"objective": cg.objective,
			"columns":   added,
			"source":    source,
			"total":     len(cg.columns),
			"elapsed":   time.Since(start).Round(time.Millisecond),
		}).Debug("column generation")
		if added == 0 {
			break
		}
	}

	for _, col := range cg.columns {
		col.Value = cg.result.Value(col.Var)
	}
	return !cg.HasArtificialVars(), nil
}

// activeColumns lists the columns with a positive value, largest first.
func (cg *ColumnGeneration) activeColumns() []*Column {
	var out []*Column
	for _, col := range cg.columns {
		if col.Value > EPS {
			out = append(out, col)
		}
	}
	slices.SortStableFunc(out, func(a, b *Column) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	return out
}
