package model

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// League keeps its teams sorted by id. Cost, TravelDist and TravelTime count
// every pair twice (home and away).
type League struct {
	problem    *Problem
	teams      []int
	cost       int
	travelDist int
	travelTime int
}

func NewLeague(problem *Problem, teams ...int) *League {
	l := &League{problem: problem, teams: make([]int, 0, len(teams))}
	for _, t := range teams {
		l.Add(t)
	}
	return l
}

func (l *League) Add(team int) bool {
	pos, found := slices.BinarySearch(l.teams, team)
	if found {
		return false
	}
	for _, other := range l.teams {
		l.cost += 2 * l.problem.WeightedDistTime(other, team)
		l.travelDist += 2 * l.problem.TravelDist(other, team)
		l.travelTime += 2 * l.problem.TravelTime(other, team)
	}
	l.teams = slices.Insert(l.teams, pos, team)
	return true
}

func (l *League) Remove(team int) bool {
	pos, found := slices.BinarySearch(l.teams, team)
	if !found {
		return false
	}
	l.teams = slices.Delete(l.teams, pos, pos+1)
	for _, other := range l.teams {
		l.cost -= 2 * l.problem.WeightedDistTime(other, team)
		l.travelDist -= 2 * l.problem.TravelDist(other, team)
		l.travelTime -= 2 * l.problem.TravelTime(other, team)
	}
	return true
}

func (l *League) Contains(team int) bool {
	_, found := slices.BinarySearch(l.teams, team)
	return found
}

// Teams must not be modified by the caller.
func (l *League) Teams() []int {
	return l.teams
}

func (l *League) Size() int {
	return len(l.teams)
}

func (l *League) Cost() int {
	return l.cost
}

func (l *League) TravelDist() int {
	return l.travelDist
}

func (l *League) TravelTime() int {
	return l.travelTime
}

func (l *League) Problem() *Problem {
	return l.problem
}

// Key identifies the team set; two leagues with the same teams share it.
func (l *League) Key() string {
	var sb strings.Builder
	for i, t := range l.teams {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(t))
	}
	return sb.String()
}

func (l *League) Clone() *League {
	return &League{
		problem:    l.problem,
		teams:      slices.Clone(l.teams),
		cost:       l.cost,
		travelDist: l.travelDist,
		travelTime: l.travelTime,
	}
}

func (l *League) String() string {
	return "League[" + l.Key() + "]"
}

// Validate reports the first violated league rule.
func (l *League) Validate() error {
	p := l.problem
	if len(l.teams) < p.MinLeagueSize {
		return errors.Errorf("league %v has %d teams, minimum is %d", l.teams, len(l.teams), p.MinLeagueSize)
	}
	if len(l.teams) > p.MaxLeagueSize {
		return errors.Errorf("league %v has %d teams, maximum is %d", l.teams, len(l.teams), p.MaxLeagueSize)
	}
	perClub := map[int]int{}
	for i, a := range l.teams {
		perClub[p.Teams[a].Club]++
		if perClub[p.Teams[a].Club] > p.MaxTeamSameClub {
			return errors.Errorf("league %v has too many teams from club %d", l.teams, p.Clubs[p.Teams[a].Club].Code)
		}
		for _, b := range l.teams[i+1:] {
			if p.TravelDist(a, b) > p.MaxTravelDist {
				return errors.Errorf("teams %d and %d exceed the maximum travel distance", p.Teams[a].Code, p.Teams[b].Code)
			}
			if p.TravelTime(a, b) > p.MaxTravelTime {
				return errors.Errorf("teams %d and %d exceed the maximum travel time", p.Teams[a].Code, p.Teams[b].Code)
			}
			diff := p.Teams[a].Level - p.Teams[b].Level
			if diff > p.MaxLevelDiff || -diff > p.MaxLevelDiff {
				return errors.Errorf("teams %d and %d exceed the maximum level difference", p.Teams[a].Code, p.Teams[b].Code)
			}
		}
	}
	return nil
}
