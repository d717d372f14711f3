package pricing

import (
	"fmt"
	"math"
	"slices"

	"leagues_go/model"
)

type cliqueState uint8

const (
	stateIdle cliqueState = iota
	statePresent
	stateConflict
)

// pricingLeague is the league the local search grows and shrinks. Every
// alive clique is either present, idle (could be added) or in conflict with
// at least one present clique; conflict counts belong to the league.
type pricingLeague struct {
	cm      *CliqueManager
	problem *model.Problem

	present, idle, conflict []int
	state                   []cliqueState
	pos                     []int // index within the list matching state
	nConflicts              []int

	clubs              map[int]int
	size               int
	minLevel, maxLevel int
	objective          float64
	infeasible         bool
}

func newPricingLeague(cm *CliqueManager, first *TeamClique) *pricingLeague {
	p := cm.problem
	n := len(cm.cliques)
	pl := &pricingLeague{
		cm:         cm,
		problem:    p,
		state:      make([]cliqueState, n),
		pos:        make([]int, n),
		nConflicts: make([]int, n),
		clubs:      make(map[int]int, len(first.clubs)),
		size:       first.Size(),
		minLevel:   first.MaxLevel - p.MaxLevelDiff,
		maxLevel:   first.MinLevel + p.MaxLevelDiff,
		objective:  first.ObjectiveInclGamma(),
	}
	for club, k := range first.clubs {
		pl.clubs[club] = k
	}
	pl.push(statePresent, first.ID)
	for _, id := range cm.alive {
		switch {
		case id == first.ID:
		case first.conflicts.Contains(id):
			pl.nConflicts[id] = 1
			pl.push(stateConflict, id)
		default:
			pl.push(stateIdle, id)
		}
	}
	pl.infeasible = pl.size < p.MinLeagueSize || pl.size > p.MaxLeagueSize
	return pl
}

func (pl *pricingLeague) list(s cliqueState) *[]int {
	switch s {
	case statePresent:
		return &pl.present
	case stateConflict:
		return &pl.conflict
	default:
		return &pl.idle
	}
}

func (pl *pricingLeague) push(s cliqueState, id int) {
	l := pl.list(s)
	pl.state[id] = s
	pl.pos[id] = len(*l)
	*l = append(*l, id)
}

func (pl *pricingLeague) move(id int, to cliqueState) {
	l := pl.list(pl.state[id])
	i, last := pl.pos[id], len(*l)-1
	(*l)[i] = (*l)[last]
	pl.pos[(*l)[i]] = i
	*l = (*l)[:last]
	pl.push(to, id)
}

func (pl *pricingLeague) canAddSize(n int) bool {
	return pl.problem.MaxLeagueSize >= pl.size+n
}

func (pl *pricingLeague) canRemoveSize(n int) bool {
	return pl.problem.MinLeagueSize <= pl.size-n
}

// canAdd checks size, level window and club quota for an idle clique.
// Travel limits are already conflicts in the clique manager.
func (pl *pricingLeague) canAdd(c *TeamClique) bool {
	if !pl.canAddSize(c.Size()) || c.MinLevel < pl.minLevel || c.MaxLevel > pl.maxLevel {
		return false
	}
	for club, k := range c.clubs {
		if pl.clubs[club]+k > pl.problem.MaxTeamSameClub {
			return false
		}
	}
	return true
}

func (pl *pricingLeague) deltaIfAdd(c *TeamClique) float64 {
	delta := c.ObjectiveInclGamma()
	for _, id := range pl.present {
		if id != c.ID {
			delta += pl.cm.delta[id][c.ID]
		}
	}
	return delta
}

func (pl *pricingLeague) deltaIfRemove(c *TeamClique) float64 {
	return -pl.deltaIfAdd(c)
}

func (pl *pricingLeague) add(c *TeamClique, delta float64) {
	if pl.state[c.ID] != stateIdle {
		panic(fmt.Sprintf("adding %v which is not idle", c))
	}
	pl.maxLevel = min(pl.maxLevel, c.MinLevel+pl.problem.MaxLevelDiff)
	pl.minLevel = max(pl.minLevel, c.MaxLevel-pl.problem.MaxLevelDiff)
	pl.objective += delta
	pl.move(c.ID, statePresent)
	for _, id := range c.sortedConflicts() {
		pl.nConflicts[id]++
		if pl.nConflicts[id] == 1 {
			pl.move(id, stateConflict)
		}
	}
	for club, k := range c.clubs {
		pl.clubs[club] += k
	}
	pl.size += c.Size()
	pl.updateInfeasible()
}

func (pl *pricingLeague) remove(c *TeamClique, delta float64) {
	if pl.state[c.ID] != statePresent {
		panic(fmt.Sprintf("removing %v which is not present", c))
	}
	pl.move(c.ID, stateIdle)
	for _, id := range c.sortedConflicts() {
		pl.nConflicts[id]--
		if pl.nConflicts[id] == 0 {
			pl.move(id, stateIdle)
		}
	}
	lo, hi := math.MaxInt, math.MinInt
	for _, id := range pl.present {
		lo = min(lo, pl.cm.cliques[id].MinLevel)
		hi = max(hi, pl.cm.cliques[id].MaxLevel)
	}
	pl.minLevel = hi - pl.problem.MaxLevelDiff
	pl.maxLevel = lo + pl.problem.MaxLevelDiff
	pl.objective += delta
	for club, k := range c.clubs {
		pl.clubs[club] -= k
	}
	pl.size -= c.Size()
	pl.updateInfeasible()
}

func (pl *pricingLeague) updateInfeasible() {
	pl.infeasible = pl.size < pl.problem.MinLeagueSize || pl.size > pl.problem.MaxLeagueSize
}

func (pl *pricingLeague) teams() []int {
	var out []int
	for _, id := range pl.present {
		out = append(out, pl.cm.cliques[id].Teams...)
	}
	slices.Sort(out)
	return out
}

// verify recomputes the partition, the conflict counts and the objective and
// panics on any mismatch.
func (pl *pricingLeague) verify() {
	total := len(pl.present) + len(pl.idle) + len(pl.conflict)
	if total != len(pl.cm.alive) {
		panic(fmt.Sprintf("league lists hold %d cliques, %d alive", total, len(pl.cm.alive)))
	}
	for _, s := range []cliqueState{statePresent, stateIdle, stateConflict} {
		for i, id := range *pl.list(s) {
			if pl.state[id] != s || pl.pos[id] != i {
				panic(fmt.Sprintf("clique %d misplaced in league lists", id))
			}
		}
	}
	objective := 0.0
	size := 0
	for i, id := range pl.present {
		c := pl.cm.cliques[id]
		objective += c.ObjectiveInclGamma()
		size += c.Size()
		for _, other := range pl.present[i+1:] {
			objective += pl.cm.delta[id][other]
		}
	}
	for _, id := range pl.cm.alive {
		count := 0
		for _, p := range pl.present {
			if pl.cm.cliques[p].conflicts.Contains(id) {
				count++
			}
		}
		if pl.state[id] != statePresent && count != pl.nConflicts[id] {
			panic(fmt.Sprintf("clique %d has %d conflicts, counted %d", id, count, pl.nConflicts[id]))
		}
		if (count > 0) != (pl.state[id] == stateConflict) && pl.state[id] != statePresent {
			panic(fmt.Sprintf("clique %d has %d conflicts but state %d", id, count, pl.state[id]))
		}
	}
	if size != pl.size {
		panic(fmt.Sprintf("league size %d, expected %d", pl.size, size))
	}
	if math.Abs(objective-pl.objective) > EPS {
		panic(fmt.Sprintf("league objective %v, expected %v", pl.objective, objective))
	}
}
