package pricing

import (
	"math/rand"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"leagues_go/model"
)

const (
	maxFullIterations      = 50
	maxRunsWithoutFeasible = 5000
	maxRunImprovements     = 50
)

// Heuristic looks for leagues with negative reduced cost by running short
// local searches from seed cliques, most attractive duals first.
type Heuristic struct {
	problem *model.Problem
	cm      *CliqueManager
	rng     *rand.Rand

	neighbourhoods []neighbourhood
	found          []foundLeague
	seen           mapset.Set[string]
	cutoff         float64
}

type foundLeague struct {
	teams []int
	cost  float64
}

func NewHeuristic(problem *model.Problem) *Heuristic {
	h := &Heuristic{
		problem: problem,
		cm:      NewCliqueManager(problem),
		seen:    mapset.NewThreadUnsafeSet[string](),
	}
	h.reseed()
	return h
}

func (h *Heuristic) reseed() {
	h.rng = rand.New(rand.NewSource(0))
	h.neighbourhoods = []neighbourhood{
		addNeighbourhood{h.rng},
		removeNeighbourhood{h.rng},
		removeAddNeighbourhood{h.rng},
	}
}

func (h *Heuristic) CliqueManager() *CliqueManager {
	return h.cm
}

func (h *Heuristic) Fix(i, j int, together bool) {
	h.cm.Fix(i, j, together)
}

// Reset clears all fixations and restarts the random sequence, so replaying
// the same fixations reproduces the same search.
func (h *Heuristic) Reset() {
	h.found = h.found[:0]
	h.seen.Clear()
	h.cm.Clear()
	h.reseed()
}

// Solve reports whether at least one league with objective below
// cutoff - EPS was found.
func (h *Heuristic) Solve(duals []float64, cutoff float64) bool {
	h.cutoff = cutoff
	h.found = h.found[:0]
	h.seen.Clear()
	h.cm.UpdateGamma(duals)
	h.cm.setSolving(true)
	defer h.cm.setSolving(false)

	cliques := h.cm.Alive()
	if len(cliques) == 0 {
		return false
	}
	h.rng.Shuffle(len(cliques), func(i, j int) {
		cliques[i], cliques[j] = cliques[j], cliques[i]
	})
	sort.SliceStable(cliques, func(i, j int) bool {
		return cliques[i].Gamma > cliques[j].Gamma
	})

	runsWithoutFeasible, totalRuns, next := 0, 0, 0
	for totalRuns < maxFullIterations || (len(h.found) == 0 && runsWithoutFeasible < maxRunsWithoutFeasible) {
		league := newPricingLeague(h.cm, cliques[next])
		next = (next + 1) % len(cliques)
		for step := 0; step < maxRunImprovements; step++ {
			accept := 0.5
			if len(h.found) == 0 {
				accept = 0.8
			}
			m := h.neighbourhoods[h.rng.Intn(len(h.neighbourhoods))].bestImprove(league, accept)
			if m != nil {
				m.execute(league)
				h.eval(league)
			}
		}
		if len(h.found) == 0 {
			runsWithoutFeasible++
		}
		totalRuns++
	}

	slices.SortStableFunc(h.found, func(a, b foundLeague) int {
		switch {
		case a.cost < b.cost:
			return -1
		case a.cost > b.cost:
			return 1
		}
		return 0
	})
	return len(h.found) > 0
}

func (h *Heuristic) eval(pl *pricingLeague) {
	if pl.infeasible || pl.objective >= h.cutoff-EPS {
		return
	}
	teams := pl.teams()
	key := model.NewLeague(h.problem, teams...).Key()
	if h.seen.Add(key) {
		h.found = append(h.found, foundLeague{teams: teams, cost: pl.objective})
	}
}

// Leagues returns the leagues of the last Solve, cheapest first.
func (h *Heuristic) Leagues() []*model.League {
	out := make([]*model.League, len(h.found))
	for i, f := range h.found {
		out[i] = model.NewLeague(h.problem, f.teams...)
	}
	return out
}

// Costs is parallel to Leagues.
func (h *Heuristic) Costs() []float64 {
	out := make([]float64, len(h.found))
	for i, f := range h.found {
		out[i] = f.cost
	}
	return out
}
