package pricing

import (
	"fmt"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"leagues_go/model"
)

const EPS = 1e-6

// TeamClique is a group of teams that branching forced into the same league.
type TeamClique struct {
	ID       int
	Teams    []int
	clubs    map[int]int
	MinLevel int
	MaxLevel int
	// ObjectiveNoGamma is the travel weight between every pair of members.
	ObjectiveNoGamma float64
	Gamma            float64
	conflicts        mapset.Set[int]
}

func (c *TeamClique) Size() int {
	return len(c.Teams)
}

func (c *TeamClique) ObjectiveInclGamma() float64 {
	return c.ObjectiveNoGamma - c.Gamma
}

func (c *TeamClique) ConflictsWith(other *TeamClique) bool {
	return c.conflicts.Contains(other.ID)
}

// sortedConflicts keeps the local search reproducible for a given seed.
func (c *TeamClique) sortedConflicts() []int {
	ids := c.conflicts.ToSlice()
	slices.Sort(ids)
	return ids
}

func (c *TeamClique) String() string {
	return fmt.Sprintf("Clique[%d %v]", c.ID, c.Teams)
}

// CliqueManager keeps the team cliques of one branch-and-bound node. Cliques
// live in an arena indexed by the id of the team they were created from; a
// merged clique stays in the arena but leaves the alive list.
type CliqueManager struct {
	problem  *model.Problem
	cliques  []*TeamClique
	alive    []int
	cliqueOf []int
	delta    [][]float64
	solving  bool
}

func NewCliqueManager(problem *model.Problem) *CliqueManager {
	n := problem.NTeams()
	cm := &CliqueManager{
		problem:  problem,
		cliques:  make([]*TeamClique, n),
		cliqueOf: make([]int, n),
		delta:    make([][]float64, n),
	}
	for i := range cm.delta {
		cm.delta[i] = make([]float64, n)
	}
	cm.Clear()
	return cm
}

// Clear drops every fixation except the permanent conflicts between
// incompatible teams.
func (cm *CliqueManager) Clear() {
	if cm.solving {
		panic("clique manager cleared while solving")
	}
	p := cm.problem
	cm.alive = cm.alive[:0]
	for t := range cm.cliques {
		team := p.Teams[t]
		cm.cliques[t] = &TeamClique{
			ID:        t,
			Teams:     []int{t},
			clubs:     map[int]int{team.Club: 1},
			MinLevel:  team.Level,
			MaxLevel:  team.Level,
			conflicts: mapset.NewThreadUnsafeSet[int](),
		}
		cm.cliqueOf[t] = t
		cm.alive = append(cm.alive, t)
		for u := range cm.cliques {
			if u != t {
				cm.delta[t][u] = 2 * float64(p.WeightedDistTime(t, u))
			} else {
				cm.delta[t][u] = 0
			}
		}
	}
	for _, pair := range p.IncompatiblePairs() {
		cm.Fix(pair[0], pair[1], false)
	}
}

// Fix forces teams i and j into the same league (together) or into
// different leagues.
func (cm *CliqueManager) Fix(i, j int, together bool) {
	if cm.solving {
		panic("clique manager fixed while solving")
	}
	a, b := cm.cliques[cm.cliqueOf[i]], cm.cliques[cm.cliqueOf[j]]
	if !together {
		if a == b {
			panic(fmt.Sprintf("teams %d and %d are already in %v", i, j, a))
		}
		a.conflicts.Add(b.ID)
		b.conflicts.Add(a.ID)
		return
	}
	if a == b {
		return
	}
	if a.ConflictsWith(b) {
		panic(fmt.Sprintf("cannot merge conflicting %v and %v", a, b))
	}
	cm.merge(a, b)
}

func (cm *CliqueManager) merge(into, from *TeamClique) {
	pos := slices.Index(cm.alive, from.ID)
	cm.alive = slices.Delete(cm.alive, pos, pos+1)

	into.ObjectiveNoGamma += cm.delta[into.ID][from.ID] + from.ObjectiveNoGamma
	into.Gamma += from.Gamma
	into.MinLevel = min(into.MinLevel, from.MinLevel)
	into.MaxLevel = max(into.MaxLevel, from.MaxLevel)
	for club, n := range from.clubs {
		into.clubs[club] += n
	}
	for _, t := range from.Teams {
		cm.cliqueOf[t] = into.ID
	}
	into.Teams = append(into.Teams, from.Teams...)
	slices.Sort(into.Teams)

	from.conflicts.Each(func(k int) bool {
		other := cm.cliques[k]
		other.conflicts.Remove(from.ID)
		other.conflicts.Add(into.ID)
		into.conflicts.Add(k)
		return false
	})
	from.conflicts.Clear()

	for _, c := range cm.alive {
		if c == into.ID {
			continue
		}
		cm.delta[into.ID][c] += cm.delta[from.ID][c]
		cm.delta[c][into.ID] = cm.delta[into.ID][c]
	}
}

// UpdateGamma sets every clique's gamma to the sum of its members' duals.
func (cm *CliqueManager) UpdateGamma(duals []float64) {
	for _, id := range cm.alive {
		c := cm.cliques[id]
		c.Gamma = 0
		for _, t := range c.Teams {
			c.Gamma += duals[t]
		}
	}
}

func (cm *CliqueManager) Alive() []*TeamClique {
	out := make([]*TeamClique, len(cm.alive))
	for i, id := range cm.alive {
		out[i] = cm.cliques[id]
	}
	return out
}

func (cm *CliqueManager) CliqueOf(team int) *TeamClique {
	return cm.cliques[cm.cliqueOf[team]]
}

// Delta is the travel weight between the members of a and those of b.
func (cm *CliqueManager) Delta(a, b *TeamClique) float64 {
	return cm.delta[a.ID][b.ID]
}

func (cm *CliqueManager) setSolving(solving bool) {
	cm.solving = solving
}

// Verify recomputes the clique bookkeeping from scratch and panics on any
// mismatch.
func (cm *CliqueManager) Verify() {
	p := cm.problem
	seen := make([]bool, p.NTeams())
	for _, id := range cm.alive {
		c := cm.cliques[id]
		intra := 0.0
		minLevel, maxLevel := math.MaxInt, math.MinInt
		clubs := map[int]int{}
		for k, t := range c.Teams {
			if seen[t] {
				panic(fmt.Sprintf("team %d in more than one clique", t))
			}
			seen[t] = true
			if cm.cliqueOf[t] != id {
				panic(fmt.Sprintf("team %d points to clique %d instead of %d", t, cm.cliqueOf[t], id))
			}
			for _, u := range c.Teams[k+1:] {
				intra += 2 * float64(p.WeightedDistTime(t, u))
			}
			minLevel = min(minLevel, p.Teams[t].Level)
			maxLevel = max(maxLevel, p.Teams[t].Level)
			clubs[p.Teams[t].Club]++
		}
		if math.Abs(intra-c.ObjectiveNoGamma) > EPS {
			panic(fmt.Sprintf("%v intra weight %v, expected %v", c, c.ObjectiveNoGamma, intra))
		}
		if minLevel != c.MinLevel || maxLevel != c.MaxLevel {
			panic(fmt.Sprintf("%v levels [%d, %d], expected [%d, %d]", c, c.MinLevel, c.MaxLevel, minLevel, maxLevel))
		}
		for club, n := range clubs {
			if c.clubs[club] != n {
				panic(fmt.Sprintf("%v has %d teams of club %d, expected %d", c, c.clubs[club], club, n))
			}
		}
		for _, other := range cm.alive {
			if other == id {
				continue
			}
			inter := 0.0
			for _, t := range c.Teams {
				for _, u := range cm.cliques[other].Teams {
					inter += 2 * float64(p.WeightedDistTime(t, u))
				}
			}
			if math.Abs(inter-cm.delta[id][other]) > EPS {
				panic(fmt.Sprintf("inter weight %v between %d and %d, expected %v", cm.delta[id][other], id, other, inter))
			}
			if c.conflicts.Contains(other) != cm.cliques[other].conflicts.Contains(id) {
				panic(fmt.Sprintf("asymmetric conflict between %d and %d", id, other))
			}
		}
	}
	for t, ok := range seen {
		if !ok {
			panic(fmt.Sprintf("team %d is in no alive clique", t))
		}
	}
}
