package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leagues_go/bnp"
	"leagues_go/model"
	"leagues_go/pricing"
)

// two pairs of nearby clubs, far from each other
const instanceJSON = `{
  "params": {"minLeagueSize": 3, "maxLeagueSize": 3, "maxLevelDiff": 1, "maxTeamSameClub": 2,
             "maxTravelDist": 50, "maxTravelTime": 50, "weightTravelDist": 1, "weightTravelTime": 0},
  "clubs": [
    {"id": 0, "cod": 1, "name": "A"},
    {"id": 1, "cod": 2, "name": "B"},
    {"id": 2, "cod": 3, "name": "C"},
    {"id": 3, "cod": 4, "name": "D"}
  ],
  "teams": [
    {"id": 0, "cod": 10, "club": "A", "clubCod": 1, "level": 1},
    {"id": 1, "cod": 11, "club": "A", "clubCod": 1, "level": 1},
    {"id": 2, "cod": 12, "club": "B", "clubCod": 2, "level": 1},
    {"id": 3, "cod": 13, "club": "C", "clubCod": 3, "level": 1},
    {"id": 4, "cod": 14, "club": "C", "clubCod": 3, "level": 1},
    {"id": 5, "cod": 15, "club": "D", "clubCod": 4, "level": 1}
  ],
  "timeDistMatrix": [
    {"src": 1, "dest": 2, "time": 5, "dist": 5},
    {"src": 3, "dest": 4, "time": 5, "dist": 5},
    {"src": 1, "dest": 3, "time": 100, "dist": 100},
    {"src": 1, "dest": 4, "time": 100, "dist": 100},
    {"src": 2, "dest": 3, "time": 100, "dist": 100},
    {"src": 2, "dest": 4, "time": 100, "dist": 100}
  ]
}`

func writeInstance(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "pairs.json")
	require.NoError(t, os.WriteFile(path, []byte(instanceJSON), 0o644))
	return path
}

func TestSolveCommand(t *testing.T) {
	path := writeInstance(t)
	dir := filepath.Dir(path)
	out := filepath.Join(dir, "pairs.out.json")
	paramsOut := filepath.Join(dir, "effective.yaml")

	rootCmd := createRootCommand(context.Background(), &Input{}, "")
	rootCmd.SetArgs([]string{"solve", path, "-q", "-o", out,
		"--params", filepath.Join(dir, "missing.yaml"), "--threads", "2", "--warm-start-width", "4",
		"--write-params", paramsOut})
	require.NoError(t, rootCmd.Execute())

	problem, err := model.LoadProblem(path)
	require.NoError(t, err)
	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()
	sol, err := model.ReadSolution(problem, file)
	require.NoError(t, err)
	assert.Equal(t, 40, sol.Objective)

	params, err := bnp.LoadParameters(paramsOut)
	require.NoError(t, err)
	assert.Equal(t, 2, params.NThreads)
	assert.Equal(t, 4, params.WarmStartWidth)
}

func TestSolveCommandInitialSolution(t *testing.T) {
	path := writeInstance(t)
	problem, err := model.LoadProblem(path)
	require.NoError(t, err)
	initial := model.NewSolution(problem)
	initial.AddLeague(model.NewLeague(problem, 0, 1, 3))
	initial.AddLeague(model.NewLeague(problem, 2, 4, 5))
	// cross-cluster leagues break the travel limit
	require.Error(t, initial.Validate())

	good := model.NewSolution(problem)
	good.AddLeague(model.NewLeague(problem, 0, 1, 2))
	good.AddLeague(model.NewLeague(problem, 3, 4, 5))
	initialPath := filepath.Join(filepath.Dir(path), "initial.json")
	require.NoError(t, good.WriteFile(initialPath))

	rootCmd := createRootCommand(context.Background(), &Input{}, "")
	rootCmd.SetArgs([]string{"solve", path, "-q", "--initial", initialPath, "--threads", "2"})
	require.NoError(t, rootCmd.Execute())
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "pairs.sol.json"))
	assert.NoError(t, err)
}

func TestLoadParametersFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "bp.json")
	require.NoError(t, os.WriteFile(paramsPath, []byte(`{"nThreads": 3, "cyclicBFS": true, "timeLimit": "2m"}`), 0o644))

	input := &Input{}
	rootCmd := createRootCommand(context.Background(), input, "")
	solveCmd, _, err := rootCmd.Find([]string{"solve"})
	require.NoError(t, err)
	require.NoError(t, solveCmd.ParseFlags([]string{"--params", paramsPath, "--threads", "5", "--pricing", "exact"}))

	params, err := loadParameters(input, solveCmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 5, params.NThreads)
	assert.True(t, params.CyclicBFS)
	assert.Equal(t, 2*time.Minute, params.TimeLimit)
	assert.Equal(t, pricing.StrategyExact, params.PricingStrategy)

	require.NoError(t, solveCmd.ParseFlags([]string{"--pricing", "annealing"}))
	_, err = loadParameters(input, solveCmd.Flags())
	assert.Error(t, err)
}
