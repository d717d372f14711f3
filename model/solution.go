package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

type Solution struct {
	Problem   *Problem
	Leagues   []*League
	Objective int
}

func NewSolution(problem *Problem) *Solution {
	return &Solution{Problem: problem}
}

func (s *Solution) AddLeague(league *League) {
	s.Leagues = append(s.Leagues, league)
	s.Objective += league.Cost()
}

func (s *Solution) TravelDist() int {
	total := 0
	for _, l := range s.Leagues {
		total += l.TravelDist()
	}
	return total
}

func (s *Solution) TravelTime() int {
	total := 0
	for _, l := range s.Leagues {
		total += l.TravelTime()
	}
	return total
}

// Validate checks that every team sits in exactly one feasible league and
// that Objective matches the league costs.
func (s *Solution) Validate() error {
	covered := make([]bool, s.Problem.NTeams())
	objective := 0
	for _, l := range s.Leagues {
		if err := l.Validate(); err != nil {
			return err
		}
		for _, t := range l.Teams() {
			if covered[t] {
				return errors.Errorf("team %d is assigned to more than one league", s.Problem.Teams[t].Code)
			}
			covered[t] = true
		}
		objective += l.Cost()
	}
	for t, ok := range covered {
		if !ok {
			return errors.Errorf("team %d is not assigned to any league", s.Problem.Teams[t].Code)
		}
	}
	if objective != s.Objective {
		return errors.Errorf("objective %d does not match league costs %d", s.Objective, objective)
	}
	return nil
}

type solutionFile struct {
	Problem   string       `json:"problem"`
	Objective int          `json:"objective"`
	Time      int          `json:"time"`
	Dist      int          `json:"dist"`
	NLeagues  int          `json:"nLeagues"`
	Leagues   []leagueFile `json:"leagues"`
}

type leagueFile struct {
	Time   int   `json:"time"`
	Dist   int   `json:"dist"`
	NTeams int   `json:"nTeams"`
	Teams  []int `json:"teams"`
}

// WriteJSON writes team codes, not internal ids.
func (s *Solution) WriteJSON(w io.Writer) error {
	out := solutionFile{
		Problem:   s.Problem.Name,
		Objective: s.Objective,
		Time:      s.TravelTime(),
		Dist:      s.TravelDist(),
		NLeagues:  len(s.Leagues),
		Leagues:   make([]leagueFile, 0, len(s.Leagues)),
	}
	for _, l := range s.Leagues {
		codes := make([]int, 0, l.Size())
		for _, t := range l.Teams() {
			codes = append(codes, s.Problem.Teams[t].Code)
		}
		out.Leagues = append(out.Leagues, leagueFile{Time: l.TravelTime(), Dist: l.TravelDist(), NTeams: l.Size(), Teams: codes})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(out), "writing solution")
}

func (s *Solution) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	err = s.WriteJSON(file)
	if cerr := file.Close(); err == nil {
		err = errors.Wrapf(cerr, "closing %s", path)
	}
	return err
}

// ReadSolution loads a solution written by WriteJSON and validates it.
func ReadSolution(problem *Problem, r io.Reader) (*Solution, error) {
	var in solutionFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, errors.Wrap(err, "parsing solution")
	}
	s := NewSolution(problem)
	for _, lf := range in.Leagues {
		l := NewLeague(problem)
		for _, code := range lf.Teams {
			t, ok := problem.TeamByCode(code)
			if !ok {
				return nil, errors.Errorf("unknown team code %d", code)
			}
			l.Add(t)
		}
		s.AddLeague(l)
	}
	if in.Objective != s.Objective {
		return nil, errors.Errorf("file objective %d differs from computed objective %d", in.Objective, s.Objective)
	}
	return s, errors.Wrap(s.Validate(), "invalid solution")
}
