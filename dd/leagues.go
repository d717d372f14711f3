package dd

import (
	"cmp"
	"context"
	"encoding/binary"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"leagues_go/model"
)

// LeagueContext assigns the teams, in id order, to league slots. A team joins
// an open slot or opens the next one, so every partition has exactly one
// assignment.
type LeagueContext struct {
	problem *model.Problem
	values  []int
}

func NewLeagueContext(problem *model.Problem) *LeagueContext {
	values := make([]int, problem.MaxLeagues())
	for i := range values {
		values[i] = i
	}
	return &LeagueContext{problem: problem, values: values}
}

func (c *LeagueContext) GetStartingState() State[int, int] {
	return &leagueState{}
}

func (c *LeagueContext) GetValues(variable int) []int {
	return c.values
}

func (c *LeagueContext) GetVariables() int {
	return c.problem.NTeams()
}

func (c *LeagueContext) Compare(a, b int) int {
	return cmp.Compare(a, b)
}

func (c *LeagueContext) WorstCost() int {
	return math.MaxInt
}

type leagueState struct {
	assignment []int
	sizes      []int
	cost       int
}

func (s *leagueState) TransitionTo(context Context[int, int], slot int) State[int, int] {
	p := context.(*LeagueContext).problem
	team := len(s.assignment)
	if slot > len(s.sizes) || (slot < len(s.sizes) && s.sizes[slot] >= p.MaxLeagueSize) {
		return nil
	}
	cost := s.cost
	sameClub := 1
	for other, l := range s.assignment {
		if l != slot {
			continue
		}
		if !p.Compatible(other, team) {
			return nil
		}
		if p.Teams[other].Club == p.Teams[team].Club {
			sameClub++
		}
		cost += 2 * p.WeightedDistTime(other, team)
	}
	if sameClub > p.MaxTeamSameClub {
		return nil
	}

	sizes := slices.Clone(s.sizes)
	if slot == len(sizes) {
		sizes = append(sizes, 1)
	} else {
		sizes[slot]++
	}
	// the remaining teams must bring every league up to the minimum size
	missing := 0
	for _, size := range sizes {
		missing += max(0, p.MinLeagueSize-size)
	}
	if missing > p.NTeams()-team-1 {
		return nil
	}
	return &leagueState{
		assignment: append(slices.Clone(s.assignment), slot),
		sizes:      sizes,
		cost:       cost,
	}
}

func (s *leagueState) Cost(context Context[int, int]) int {
	return s.cost
}

func (s *leagueState) Heuristic(context Context[int, int]) int {
	return s.cost
}

func (s *leagueState) HashBytes() []byte {
	out := make([]byte, 0, 2*len(s.assignment))
	for _, slot := range s.assignment {
		out = binary.AppendUvarint(out, uint64(slot))
	}
	return out
}

func (s *leagueState) Equals(state State[int, int]) bool {
	return slices.Equal(s.assignment, state.(*leagueState).assignment)
}

func (s *leagueState) Solution(context Context[int, int]) []int {
	return slices.Clone(s.assignment)
}

// Partition turns a slot per team into a solution.
func Partition(problem *model.Problem, assignment []int) *model.Solution {
	var leagues []*model.League
	for team, slot := range assignment {
		for len(leagues) <= slot {
			leagues = append(leagues, model.NewLeague(problem))
		}
		leagues[slot].Add(team)
	}
	sol := model.NewSolution(problem)
	for _, l := range leagues {
		if l.Size() > 0 {
			sol.AddLeague(l)
		}
	}
	return sol
}

// WarmStart searches a restricted diagram of the given width for a solution
// cheaper than ub. It reports false when the diagram holds none.
func WarmStart(ctx context.Context, problem *model.Problem, width, ub int, logger logrus.FieldLogger) (*model.Solution, bool, error) {
	cost, assignment, err := SolveRestricted[int, int](ctx, NewLeagueContext(problem), width, ub, logger)
	if err != nil || assignment == nil {
		return nil, false, err
	}
	sol := Partition(problem, assignment)
	if sol.Objective != cost {
		panic("diagram cost does not match the league costs")
	}
	return sol, true, nil
}
