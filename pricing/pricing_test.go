package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leagues_go/lp"
	"leagues_go/model"
)

// twoClusters has teams {0,1,2} and {3,4,5}, one club each, with travel 1
// inside a cluster and 10 across.
func twoClusters(t *testing.T) *model.Problem {
	clubs := make([]model.Club, 6)
	teams := make([]model.Team, 6)
	dist := make([][]int, 6)
	zero := make([][]int, 6)
	for i := range clubs {
		clubs[i] = model.Club{ID: i, Code: 100 + i}
		teams[i] = model.Team{ID: i, Code: 10 + i, Level: 1, Club: i}
		dist[i] = make([]int, 6)
		zero[i] = make([]int, 6)
		for j := range dist[i] {
			switch {
			case i == j:
			case i/3 == j/3:
				dist[i][j] = 1
			default:
				dist[i][j] = 10
			}
		}
	}
	params := model.Params{MinLeagueSize: 3, MaxLeagueSize: 3, MaxLevelDiff: 1, MaxTeamSameClub: 6,
		MaxTravelDist: 100, MaxTravelTime: 100, WeightTravelDist: 1}
	p, err := model.NewProblem("clusters", params, clubs, teams, dist, zero)
	require.NoError(t, err)
	return p
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCliqueManagerMerge(t *testing.T) {
	p := twoClusters(t)
	cm := NewCliqueManager(p)
	assert.Len(t, cm.Alive(), 6)

	cm.Fix(0, 3, true)
	assert.Len(t, cm.Alive(), 5)
	c := cm.CliqueOf(3)
	assert.Same(t, c, cm.CliqueOf(0))
	assert.Equal(t, []int{0, 3}, c.Teams)
	assert.Equal(t, 20.0, c.ObjectiveNoGamma)
	assert.Equal(t, 22.0, cm.Delta(c, cm.CliqueOf(1)))
	assert.NotPanics(t, cm.Verify)

	cm.Fix(1, 4, false)
	cm.Fix(4, 5, true)
	assert.True(t, cm.CliqueOf(1).ConflictsWith(cm.CliqueOf(5)))
	assert.NotPanics(t, cm.Verify)

	assert.Panics(t, func() { cm.Fix(1, 5, true) })
	assert.Panics(t, func() { cm.Fix(0, 3, false) })

	cm.UpdateGamma([]float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 5.0, c.Gamma)
	assert.Equal(t, 15.0, c.ObjectiveInclGamma())

	cm.Clear()
	assert.Len(t, cm.Alive(), 6)
	assert.False(t, cm.CliqueOf(1).ConflictsWith(cm.CliqueOf(4)))
	assert.NotPanics(t, cm.Verify)
}

func TestCliqueManagerIncompatible(t *testing.T) {
	p := twoClusters(t)
	p.MaxTravelDist = 5
	p2, err := model.NewProblem(p.Name, p.Params, p.Clubs, p.Teams, distances(p), distances(p))
	require.NoError(t, err)
	cm := NewCliqueManager(p2)
	assert.True(t, cm.CliqueOf(0).ConflictsWith(cm.CliqueOf(4)))
	assert.False(t, cm.CliqueOf(0).ConflictsWith(cm.CliqueOf(2)))
}

func distances(p *model.Problem) [][]int {
	out := make([][]int, len(p.Clubs))
	for a := range out {
		out[a] = make([]int, len(p.Clubs))
		for b := range out[a] {
			out[a][b] = p.TravelDist(p.Clubs[a].Teams[0], p.Clubs[b].Teams[0])
		}
	}
	return out
}

func TestPricingLeagueMoves(t *testing.T) {
	p := twoClusters(t)
	cm := NewCliqueManager(p)
	cm.Fix(0, 5, false)
	cm.UpdateGamma(uniform(6, 10))

	pl := newPricingLeague(cm, cm.CliqueOf(0))
	assert.True(t, pl.infeasible)
	assert.Equal(t, []int{5}, pl.conflict)
	assert.NotPanics(t, pl.verify)

	one := cm.CliqueOf(1)
	require.True(t, pl.canAdd(one))
	pl.add(one, pl.deltaIfAdd(one))
	two := cm.CliqueOf(2)
	pl.add(two, pl.deltaIfAdd(two))
	assert.False(t, pl.infeasible)
	assert.InDelta(t, -24, pl.objective, EPS)
	assert.False(t, pl.canAddSize(1))
	assert.NotPanics(t, pl.verify)

	pl.remove(one, pl.deltaIfRemove(one))
	assert.True(t, pl.infeasible)
	assert.Equal(t, []int{0, 2}, pl.teams())
	assert.NotPanics(t, pl.verify)
}

func TestHeuristicFindsClusters(t *testing.T) {
	p := twoClusters(t)
	h := NewHeuristic(p)
	duals := uniform(6, 10)
	require.True(t, h.Solve(duals, 0))

	leagues, costs := h.Leagues(), h.Costs()
	require.Len(t, leagues, 2)
	for i, l := range leagues {
		require.NoError(t, l.Validate())
		assert.InDelta(t, float64(l.Cost())-30, costs[i], EPS)
		assert.InDelta(t, -24, costs[i], EPS)
	}
	assert.ElementsMatch(t, []string{"0,1,2", "3,4,5"}, []string{leagues[0].Key(), leagues[1].Key()})

	assert.False(t, h.Solve(duals, -24))
}

func TestHeuristicRespectsFixations(t *testing.T) {
	p := twoClusters(t)
	h := NewHeuristic(p)
	h.Fix(0, 3, true)
	duals := uniform(6, 30)
	require.True(t, h.Solve(duals, 0))
	for _, l := range h.Leagues() {
		assert.Equal(t, l.Contains(0), l.Contains(3), l.Key())
	}
	assert.Panics(t, func() {
		h.cm.setSolving(true)
		defer h.cm.setSolving(false)
		h.Fix(1, 2, true)
	})

	// same fixations after a reset give the same leagues
	first := keys(h.Leagues())
	h.Reset()
	h.Fix(0, 3, true)
	require.True(t, h.Solve(duals, 0))
	assert.Equal(t, first, keys(h.Leagues()))
}

func keys(leagues []*model.League) []string {
	out := make([]string, len(leagues))
	for i, l := range leagues {
		out[i] = l.Key()
	}
	return out
}

func TestExactPricing(t *testing.T) {
	p := twoClusters(t)
	e := NewExact(p, lp.NewGonumSolver())
	e.Gap = 0
	duals := uniform(6, 10)

	found, err := e.Solve(context.Background(), duals, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, -24, e.Costs()[0], EPS)
	require.NoError(t, e.Leagues()[0].Validate())

	found, err = e.Solve(context.Background(), duals, -24)
	require.NoError(t, err)
	assert.False(t, found)

	e.Fix(0, 1, false)
	e.Fix(2, 3, true)
	found, err = e.Solve(context.Background(), uniform(6, 20), 0)
	require.NoError(t, err)
	require.True(t, found)
	for _, l := range e.Leagues() {
		assert.False(t, l.Contains(0) && l.Contains(1))
		assert.Equal(t, l.Contains(2), l.Contains(3))
	}

	e.Reset()
	found, err = e.Solve(context.Background(), duals, 0)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPricingStrategies(t *testing.T) {
	p := twoClusters(t)
	duals := uniform(6, 10)

	heur := New(p, lp.NewGonumSolver(), Options{})
	leagues, costs, source, err := heur.Solve(context.Background(), duals, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, source)
	assert.Len(t, leagues, len(costs))

	exact := New(p, lp.NewGonumSolver(), Options{Strategy: StrategyExact, PopulateLimit: 1})
	leagues, _, source, err = exact.Solve(context.Background(), duals, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceMIP, source)
	assert.Len(t, leagues, 1)

	_, _, source, err = heur.Solve(context.Background(), duals, -100)
	require.NoError(t, err)
	assert.Equal(t, SourceNone, source)

	_, err = ParseStrategy("annealing")
	require.Error(t, err)
}

func TestPricingWithoutTeams(t *testing.T) {
	params := model.Params{MinLeagueSize: 3, MaxLeagueSize: 3, MaxLevelDiff: 1, MaxTeamSameClub: 6,
		MaxTravelDist: 100, MaxTravelTime: 100, WeightTravelDist: 1}
	p, err := model.NewProblem("empty", params, nil, nil, nil, nil)
	require.NoError(t, err)

	h := NewHeuristic(p)
	assert.False(t, h.Solve(nil, 0))

	for _, strategy := range []Strategy{StrategyHeuristic, StrategyExact} {
		pr := New(p, lp.NewGonumSolver(), Options{Strategy: strategy})
		leagues, _, source, err := pr.Solve(context.Background(), nil, 0)
		require.NoError(t, err, strategy)
		assert.Empty(t, leagues)
		assert.Equal(t, SourceNone, source)
	}
}
