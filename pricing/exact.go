package pricing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"leagues_go/lp"
	"leagues_go/model"
)

// Exact prices with a binary program: x_i selects team i, y_ij marks that
// compatible teams i and j play in the same league.
type Exact struct {
	problem *model.Problem
	solver  lp.Solver

	Populate      bool
	PopulateLimit int
	// NodeLimit stops the search after that many nodes without a new league.
	NodeLimit int
	Gap       float64

	m *lp.Model
	x []lp.Var
	y map[[2]int]lp.Var

	leagues []*model.League
	costs   []float64
}

func NewExact(problem *model.Problem, solver lp.Solver) *Exact {
	e := &Exact{problem: problem, solver: solver, PopulateLimit: 1, Gap: 0.5}
	e.build()
	return e
}

func pairKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

func (e *Exact) build() {
	p := e.problem
	n := p.NTeams()
	e.m = lp.NewModel("pricing")
	e.x = make([]lp.Var, n)
	e.y = map[[2]int]lp.Var{}
	for i := 0; i < n; i++ {
		e.x[i] = e.m.AddBinary(fmt.Sprintf("x_%d", i), 0)
	}
	e.m.AddConstraint("min_size", lp.Sum(1, e.x...), lp.GreaterEqual, float64(p.MinLeagueSize))
	e.m.AddConstraint("max_size", lp.Sum(1, e.x...), lp.LessEqual, float64(p.MaxLeagueSize))

	for _, club := range p.Clubs {
		if len(club.Teams) <= p.MaxTeamSameClub {
			continue
		}
		vars := make([]lp.Var, len(club.Teams))
		for k, t := range club.Teams {
			vars[k] = e.x[t]
		}
		e.m.AddConstraint(fmt.Sprintf("club_%d", club.Code), lp.Sum(1, vars...), lp.LessEqual, float64(p.MaxTeamSameClub))
	}

	perTeam := make([][]lp.Var, n)
	var allY []lp.Var
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !p.Compatible(i, j) {
				e.m.AddConstraint(fmt.Sprintf("apart_%d_%d", i, j), lp.Sum(1, e.x[i], e.x[j]), lp.LessEqual, 1)
				continue
			}
			y := e.m.AddBinary(fmt.Sprintf("y_%d_%d", i, j), 2*float64(p.WeightedDistTime(i, j)))
			e.y[[2]int{i, j}] = y
			perTeam[i] = append(perTeam[i], y)
			perTeam[j] = append(perTeam[j], y)
			allY = append(allY, y)
			e.m.AddConstraint(fmt.Sprintf("link_%d_%d", i, j),
				[]lp.Term{{Var: e.x[i], Coef: 1}, {Var: e.x[j], Coef: 1}, {Var: y, Coef: -1}}, lp.LessEqual, 1)
		}
	}

	minPairs := float64((p.MinLeagueSize - 1) * p.MinLeagueSize / 2)
	e.m.AddConstraint("min_pairs", lp.Sum(1, allY...), lp.GreaterEqual, minPairs)
	for t := 0; t < n; t++ {
		lower := append(lp.Sum(1, perTeam[t]...), lp.Term{Var: e.x[t], Coef: -float64(p.MinLeagueSize - 1)})
		e.m.AddConstraint(fmt.Sprintf("pairs_lb_%d", t), lower, lp.GreaterEqual, 0)
		upper := append(lp.Sum(1, perTeam[t]...), lp.Term{Var: e.x[t], Coef: -float64(p.MaxLeagueSize - 1)})
		e.m.AddConstraint(fmt.Sprintf("pairs_ub_%d", t), upper, lp.LessEqual, 0)
	}
}

func (e *Exact) Fix(i, j int, together bool) {
	name := fmt.Sprintf("fix_%d_%d", i, j)
	if together {
		e.m.AddConstraint(name+"_a", []lp.Term{{Var: e.x[i], Coef: 1}, {Var: e.x[j], Coef: -1}}, lp.LessEqual, 0)
		e.m.AddConstraint(name+"_b", []lp.Term{{Var: e.x[j], Coef: 1}, {Var: e.x[i], Coef: -1}}, lp.LessEqual, 0)
		return
	}
	if y, ok := e.y[pairKey(i, j)]; ok {
		e.m.RemoveVar(y)
	}
	e.m.AddConstraint(name, lp.Sum(1, e.x[i], e.x[j]), lp.LessEqual, 1)
}

func (e *Exact) Reset() {
	e.leagues, e.costs = nil, nil
	e.build()
}

// Solve searches leagues with cost - Σγ < mu - EPS. It returns false when
// none exists (or a limit stopped the search before finding one).
func (e *Exact) Solve(ctx context.Context, duals []float64, mu float64) (bool, error) {
	e.leagues, e.costs = nil, nil
	for t, x := range e.x {
		e.m.SetObjective(x, -duals[t])
	}
	opts := lp.MIPOptions{
		Cutoff:        mu - EPS,
		Gap:           e.Gap,
		Populate:      e.Populate,
		PopulateLimit: e.PopulateLimit,
		NodeLimit:     e.NodeLimit,
	}
	results, err := e.solver.SolveMIP(ctx, e.m, opts)
	if err != nil {
		return false, errors.Wrap(err, "exact pricing")
	}
	for _, res := range results {
		league := model.NewLeague(e.problem)
		for t, x := range e.x {
			if res.Value(x) > 0.5 {
				league.Add(t)
			}
		}
		cost := float64(league.Cost())
		for _, t := range league.Teams() {
			cost -= duals[t]
		}
		if cost < mu-EPS {
			e.leagues = append(e.leagues, league)
			e.costs = append(e.costs, cost)
		}
	}
	return len(e.leagues) > 0, nil
}

func (e *Exact) Leagues() []*model.League {
	return e.leagues
}

func (e *Exact) Costs() []float64 {
	return e.costs
}
