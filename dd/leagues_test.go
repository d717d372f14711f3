package dd

import (
	"context"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leagues_go/model"
)

func lineProblem(t *testing.T, positions []int, minSize, maxSize, maxDist int) *model.Problem {
	n := len(positions)
	clubs := make([]model.Club, n)
	teams := make([]model.Team, n)
	dist := make([][]int, n)
	for i, x := range positions {
		clubs[i] = model.Club{ID: i, Code: 100 + i}
		teams[i] = model.Team{ID: i, Code: 10 + i, Level: 1, Club: i}
		dist[i] = make([]int, n)
		for j, y := range positions {
			dist[i][j] = max(x-y, y-x)
		}
	}
	params := model.Params{MinLeagueSize: minSize, MaxLeagueSize: maxSize, MaxLevelDiff: 1, MaxTeamSameClub: 10,
		MaxTravelDist: maxDist, MaxTravelTime: math.MaxInt32, WeightTravelDist: 1}
	p, err := model.NewProblem("line", params, clubs, teams, dist, dist)
	require.NoError(t, err)
	return p
}

func discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func TestFullExpansionFindsOptimum(t *testing.T) {
	p := lineProblem(t, []int{0, 1, 2, 20, 21, 22}, 3, 3, 100)
	cost, values, err := SolveByFullExpansion[int, int](context.Background(), NewLeagueContext(p), discard())
	require.NoError(t, err)
	require.NotNil(t, values)
	// each league travels 1+1+2 twice
	assert.Equal(t, 16, cost)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, values)

	sol := Partition(p, values)
	require.NoError(t, sol.Validate())
	assert.Equal(t, cost, sol.Objective)
}

func TestFullExpansionInfeasible(t *testing.T) {
	p := lineProblem(t, []int{0, 1, 2, 3, 50}, 2, 4, 10)
	cost, values, err := SolveByFullExpansion[int, int](context.Background(), NewLeagueContext(p), nil)
	require.NoError(t, err)
	assert.Nil(t, values)
	assert.Equal(t, math.MaxInt, cost)

	_, ok, err := WarmStart(context.Background(), p, 4, math.MaxInt, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestrictedIsFeasibleUpperBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		positions := make([]int, 8)
		for k := range positions {
			positions[k] = rng.Intn(50)
		}
		p := lineProblem(t, positions, 2, 4, 100)
		best, _, err := SolveByFullExpansion[int, int](context.Background(), NewLeagueContext(p), nil)
		require.NoError(t, err)
		for _, width := range []int{1, 3, 20} {
			sol, ok, err := WarmStart(context.Background(), p, width, math.MaxInt, discard())
			require.NoError(t, err)
			require.True(t, ok, "width %d", width)
			require.NoError(t, sol.Validate())
			assert.GreaterOrEqual(t, sol.Objective, best)
		}
	}
}

func TestTransitionRespectsLimits(t *testing.T) {
	p := lineProblem(t, []int{0, 1, 2, 3, 4}, 2, 3, 3)
	ctx := NewLeagueContext(p)
	assert.Equal(t, []int{0, 1}, ctx.GetValues(0))

	s := ctx.GetStartingState()
	assert.Nil(t, s.TransitionTo(ctx, 1), "slots open in order")
	s = s.TransitionTo(ctx, 0)
	s = s.TransitionTo(ctx, 0)
	s = s.TransitionTo(ctx, 0)
	require.NotNil(t, s)
	assert.Nil(t, s.TransitionTo(ctx, 0), "league is full")
	// team 4 is left to complete the league team 3 opens
	s = s.TransitionTo(ctx, 1)
	require.NotNil(t, s)
	assert.Equal(t, 2*1+2*2+2*1, s.Cost(ctx))
	assert.Equal(t, []int{0, 0, 0, 1}, s.Solution(ctx))

	other := ctx.GetStartingState().TransitionTo(ctx, 0)
	assert.False(t, s.Equals(other))
}

func TestWarmStartCutoff(t *testing.T) {
	p := lineProblem(t, []int{0, 1, 2, 20, 21, 22}, 3, 3, 100)
	sol, ok, err := WarmStart(context.Background(), p, 0, 17, discard())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 16, sol.Objective)

	// nothing beats the optimum
	_, ok, err = WarmStart(context.Background(), p, 0, 16, discard())
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err = WarmStart(ctx, p, 0, math.MaxInt, discard())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
