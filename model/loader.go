package model

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type instanceFile struct {
	Params Params `json:"params"`
	Clubs  []struct {
		ID        int     `json:"id"`
		Code      int     `json:"cod"`
		Name      string  `json:"name"`
		NFields   int     `json:"nFields"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"clubs"`
	Teams []struct {
		ID       int    `json:"id"`
		Code     int    `json:"cod"`
		Club     string `json:"club"`
		ClubCode int    `json:"clubCod"`
		Level    int    `json:"level"`
	} `json:"teams"`
	Matrix []struct {
		Src  int `json:"src"`
		Dest int `json:"dest"`
		Time int `json:"time"`
		Dist int `json:"dist"`
	} `json:"timeDistMatrix"`
}

// LoadProblem reads a JSON instance. Travel cells reference clubs by code and
// are mirrored, so each unordered pair only needs to appear once.
func LoadProblem(path string) (*Problem, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading instance %s", path)
	}
	var in instanceFile
	if err = json.Unmarshal(fileBytes, &in); err != nil {
		return nil, errors.Wrapf(err, "parsing instance %s", path)
	}

	clubs := make([]Club, len(in.Clubs))
	clubByCode := make(map[int]int, len(in.Clubs))
	for _, c := range in.Clubs {
		if c.ID < 0 || c.ID >= len(clubs) {
			return nil, errors.Errorf("club id %d out of range", c.ID)
		}
		clubs[c.ID] = Club{ID: c.ID, Code: c.Code, Name: c.Name}
		clubByCode[c.Code] = c.ID
	}

	teams := make([]Team, len(in.Teams))
	for _, t := range in.Teams {
		if t.ID < 0 || t.ID >= len(teams) {
			return nil, errors.Errorf("team id %d out of range", t.ID)
		}
		club, ok := clubByCode[t.ClubCode]
		if !ok {
			return nil, errors.Errorf("team %d references unknown club code %d", t.Code, t.ClubCode)
		}
		teams[t.ID] = Team{ID: t.ID, Code: t.Code, Name: t.Club, Level: t.Level, Club: club}
	}

	dist := squareMatrix(len(clubs))
	time := squareMatrix(len(clubs))
	for _, cell := range in.Matrix {
		a, okA := clubByCode[cell.Src]
		b, okB := clubByCode[cell.Dest]
		if !okA || !okB {
			return nil, errors.Errorf("travel cell references unknown club (%d, %d)", cell.Src, cell.Dest)
		}
		dist[a][b], dist[b][a] = cell.Dist, cell.Dist
		time[a][b], time[b][a] = cell.Time, cell.Time
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := NewProblem(name, in.Params, clubs, teams, dist, time)
	return p, errors.Wrapf(err, "building instance %s", path)
}

func squareMatrix(n int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}

// RandomProblem places clubs uniformly on a 100x100 grid with Manhattan
// distances (time = dist) and gives each club between one and
// teamsPerClub teams with a random level in [1, 5].
func RandomProblem(rng *rand.Rand, nClubs, teamsPerClub int, params Params) (*Problem, error) {
	xs := make([]int, nClubs)
	ys := make([]int, nClubs)
	clubs := make([]Club, nClubs)
	var teams []Team
	for c := 0; c < nClubs; c++ {
		xs[c], ys[c] = rng.Intn(100), rng.Intn(100)
		clubs[c] = Club{ID: c, Code: 1000 + c, Name: "Club" + string(rune('A'+c%26))}
		for k := rng.Intn(teamsPerClub) + 1; k > 0; k-- {
			id := len(teams)
			teams = append(teams, Team{ID: id, Code: 1 + id, Name: clubs[c].Name, Level: rng.Intn(5) + 1, Club: c})
		}
	}
	dist := squareMatrix(nClubs)
	for a := 0; a < nClubs; a++ {
		for b := 0; b < nClubs; b++ {
			dist[a][b] = abs(xs[a]-xs[b]) + abs(ys[a]-ys[b])
		}
	}
	return NewProblem("random", params, clubs, teams, dist, dist)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
