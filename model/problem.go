package model

import (
	"github.com/pkg/errors"
)

type Params struct {
	MinLeagueSize    int `json:"minLeagueSize"`
	MaxLeagueSize    int `json:"maxLeagueSize"`
	MaxLevelDiff     int `json:"maxLevelDiff"`
	MaxTeamSameClub  int `json:"maxTeamSameClub"`
	MaxTravelDist    int `json:"maxTravelDist"`
	MaxTravelTime    int `json:"maxTravelTime"`
	WeightTravelDist int `json:"weightTravelDist"`
	WeightTravelTime int `json:"weightTravelTime"`
}

type Club struct {
	ID    int
	Code  int
	Name  string
	Teams []int
}

type Team struct {
	ID    int
	Code  int
	Name  string
	Level int
	Club  int
}

// Problem is read-only once built and is shared by every solver goroutine.
type Problem struct {
	Name string
	Params
	Clubs []Club
	Teams []Team

	dist, time, weighted [][]int // indexed by club id
	incompatible         [][2]int
	teamByCode           map[int]int
}

// NewProblem wires teams to their clubs and precomputes the weighted travel
// matrix and the list of team pairs that can never share a league.
// dist and time are square club-by-club matrices.
func NewProblem(name string, params Params, clubs []Club, teams []Team, dist, time [][]int) (*Problem, error) {
	if params.MinLeagueSize <= 0 || params.MaxLeagueSize < params.MinLeagueSize {
		return nil, errors.Errorf("invalid league size bounds [%d, %d]", params.MinLeagueSize, params.MaxLeagueSize)
	}
	if len(dist) != len(clubs) || len(time) != len(clubs) {
		return nil, errors.Errorf("travel matrices must be %d x %d", len(clubs), len(clubs))
	}
	p := &Problem{
		Name:       name,
		Params:     params,
		Clubs:      make([]Club, len(clubs)),
		Teams:      make([]Team, len(teams)),
		dist:       dist,
		time:       time,
		weighted:   make([][]int, len(clubs)),
		teamByCode: make(map[int]int, len(teams)),
	}
	for c, club := range clubs {
		if club.ID != c {
			return nil, errors.Errorf("club %d is stored at position %d", club.ID, c)
		}
		if len(dist[c]) != len(clubs) || len(time[c]) != len(clubs) {
			return nil, errors.Errorf("travel matrix row %d must have %d entries", c, len(clubs))
		}
		p.Clubs[c] = Club{ID: club.ID, Code: club.Code, Name: club.Name}
		p.weighted[c] = make([]int, len(clubs))
		for d := range clubs {
			p.weighted[c][d] = dist[c][d]*params.WeightTravelDist + time[c][d]*params.WeightTravelTime
		}
	}
	for t, team := range teams {
		if team.ID != t {
			return nil, errors.Errorf("team %d is stored at position %d", team.ID, t)
		}
		if team.Club < 0 || team.Club >= len(clubs) {
			return nil, errors.Errorf("team %d references unknown club %d", team.ID, team.Club)
		}
		p.Teams[t] = team
		p.Clubs[team.Club].Teams = append(p.Clubs[team.Club].Teams, t)
		p.teamByCode[team.Code] = t
	}
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			if !p.Compatible(i, j) {
				p.incompatible = append(p.incompatible, [2]int{i, j})
			}
		}
	}
	return p, nil
}

func (p *Problem) NTeams() int {
	return len(p.Teams)
}

func (p *Problem) TravelDist(a, b int) int {
	return p.dist[p.Teams[a].Club][p.Teams[b].Club]
}

func (p *Problem) TravelTime(a, b int) int {
	return p.time[p.Teams[a].Club][p.Teams[b].Club]
}

func (p *Problem) WeightedDistTime(a, b int) int {
	return p.weighted[p.Teams[a].Club][p.Teams[b].Club]
}

func (p *Problem) Compatible(a, b int) bool {
	diff := p.Teams[a].Level - p.Teams[b].Level
	if diff < 0 {
		diff = -diff
	}
	return diff <= p.MaxLevelDiff &&
		p.TravelDist(a, b) <= p.MaxTravelDist &&
		p.TravelTime(a, b) <= p.MaxTravelTime
}

// IncompatiblePairs lists (i, j), i < j, of teams that fail Compatible.
func (p *Problem) IncompatiblePairs() [][2]int {
	return p.incompatible
}

// MaxLeagues is the largest number of leagues any partition can use.
func (p *Problem) MaxLeagues() int {
	return len(p.Teams) / p.MinLeagueSize
}

func (p *Problem) TeamByCode(code int) (int, bool) {
	t, ok := p.teamByCode[code]
	return t, ok
}
