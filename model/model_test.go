package model

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoClusters has teams {0,1,2} and {3,4,5}, each in its own club. Travel is
// 1 inside a cluster and 10 across.
func twoClusters(t *testing.T) *Problem {
	clubs := make([]Club, 6)
	teams := make([]Team, 6)
	dist := squareMatrix(6)
	for i := range clubs {
		clubs[i] = Club{ID: i, Code: 100 + i}
		teams[i] = Team{ID: i, Code: 10 + i, Level: 1, Club: i}
		for j := range clubs {
			switch {
			case i == j:
			case i/3 == j/3:
				dist[i][j] = 1
			default:
				dist[i][j] = 10
			}
		}
	}
	params := Params{MinLeagueSize: 3, MaxLeagueSize: 3, MaxLevelDiff: 1, MaxTeamSameClub: 6,
		MaxTravelDist: 100, MaxTravelTime: 100, WeightTravelDist: 1}
	p, err := NewProblem("clusters", params, clubs, teams, dist, squareMatrix(6))
	require.NoError(t, err)
	return p
}

func TestLeagueIncrementalCost(t *testing.T) {
	p := twoClusters(t)
	l := NewLeague(p, 2, 0, 1)
	assert.Equal(t, []int{0, 1, 2}, l.Teams())
	assert.Equal(t, 6, l.Cost())
	assert.False(t, l.Add(1))

	l.Add(3)
	assert.Equal(t, 6+2*30, l.Cost())
	assert.Equal(t, l.Cost(), l.TravelDist())
	assert.Equal(t, 0, l.TravelTime())
	require.Error(t, l.Validate())

	assert.True(t, l.Remove(3))
	assert.Equal(t, 6, l.Cost())
	assert.Equal(t, "0,1,2", l.Key())
	require.NoError(t, l.Validate())

	c := l.Clone()
	c.Remove(0)
	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 2, c.Size())
}

func TestCompatibility(t *testing.T) {
	p := twoClusters(t)
	assert.Empty(t, p.IncompatiblePairs())
	assert.Equal(t, 2, p.MaxLeagues())

	p.MaxTravelDist = 5
	assert.True(t, p.Compatible(0, 1))
	assert.False(t, p.Compatible(0, 4))

	p.Teams[5].Level = 4
	assert.False(t, p.Compatible(4, 5))
}

func TestSolutionValidate(t *testing.T) {
	p := twoClusters(t)
	s := NewSolution(p)
	s.AddLeague(NewLeague(p, 0, 1, 2))
	require.ErrorContains(t, s.Validate(), "not assigned")

	s.AddLeague(NewLeague(p, 3, 4, 5))
	require.NoError(t, s.Validate())
	assert.Equal(t, 12, s.Objective)

	s.Objective = 11
	require.ErrorContains(t, s.Validate(), "objective")
}

func TestSolutionRoundTrip(t *testing.T) {
	p := twoClusters(t)
	s := NewSolution(p)
	s.AddLeague(NewLeague(p, 0, 1, 2))
	s.AddLeague(NewLeague(p, 3, 4, 5))

	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"nLeagues": 2`)

	back, err := ReadSolution(p, &buf)
	require.NoError(t, err)
	assert.Equal(t, s.Objective, back.Objective)
	assert.Equal(t, s.Leagues[1].Key(), back.Leagues[1].Key())
}

const instanceJSON = `{
  "params": {"minLeagueSize": 2, "maxLeagueSize": 3, "maxLevelDiff": 1, "maxTeamSameClub": 2,
             "maxTravelDist": 50, "maxTravelTime": 60, "weightTravelDist": 2, "weightTravelTime": 1},
  "clubs": [
    {"id": 0, "cod": 501, "name": "North", "nFields": 1, "latitude": 0, "longitude": 0},
    {"id": 1, "cod": 502, "name": "South", "nFields": 2, "latitude": 1, "longitude": 1}
  ],
  "teams": [
    {"id": 0, "cod": 7, "club": "North", "clubCod": 501, "level": 1},
    {"id": 1, "cod": 8, "club": "North", "clubCod": 501, "level": 2},
    {"id": 2, "cod": 9, "club": "South", "clubCod": 502, "level": 4}
  ],
  "timeDistMatrix": [
    {"src": 501, "dest": 502, "time": 20, "dist": 30}
  ]
}`

func TestLoadProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.json")
	require.NoError(t, os.WriteFile(path, []byte(instanceJSON), 0o644))

	p, err := LoadProblem(path)
	require.NoError(t, err)
	assert.Equal(t, "small", p.Name)
	assert.Equal(t, 3, p.NTeams())
	assert.Equal(t, []int{0, 1}, p.Clubs[0].Teams)
	assert.Equal(t, 30, p.TravelDist(0, 2))
	assert.Equal(t, 30, p.TravelDist(2, 1))
	assert.Equal(t, 20, p.TravelTime(2, 0))
	assert.Equal(t, 80, p.WeightedDistTime(1, 2))
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}}, p.IncompatiblePairs())

	team, ok := p.TeamByCode(9)
	require.True(t, ok)
	assert.Equal(t, 2, team)

	_, err = LoadProblem(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRandomProblem(t *testing.T) {
	params := Params{MinLeagueSize: 2, MaxLeagueSize: 4, MaxLevelDiff: 2, MaxTeamSameClub: 2,
		MaxTravelDist: 200, MaxTravelTime: 200, WeightTravelDist: 1}
	p, err := RandomProblem(rand.New(rand.NewSource(3)), 5, 2, params)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.NTeams(), 5)
	for a := range p.Teams {
		assert.Equal(t, 0, p.TravelDist(a, a))
		for b := range p.Teams {
			assert.Equal(t, p.TravelDist(a, b), p.TravelDist(b, a))
		}
	}
}
