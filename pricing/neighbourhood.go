package pricing

import (
	"math"
	"math/rand"
)

type move interface {
	delta() float64
	execute(pl *pricingLeague)
}

// neighbourhood returns its best move among candidates that pass a random
// gate, or nil when none qualifies.
type neighbourhood interface {
	bestImprove(pl *pricingLeague, accept float64) move
}

type addMove struct {
	clique *TeamClique
	d      float64
}

func (m *addMove) delta() float64 { return m.d }

func (m *addMove) execute(pl *pricingLeague) { pl.add(m.clique, m.d) }

type removeMove struct {
	clique *TeamClique
	d      float64
}

func (m *removeMove) delta() float64 { return m.d }

func (m *removeMove) execute(pl *pricingLeague) { pl.remove(m.clique, m.d) }

type removeAddMove struct {
	removed, added *TeamClique
	removeDelta    float64
	addDelta       float64
}

func (m *removeAddMove) delta() float64 { return m.removeDelta + m.addDelta }

func (m *removeAddMove) execute(pl *pricingLeague) {
	pl.remove(m.removed, m.removeDelta)
	pl.add(m.added, m.addDelta)
}

type addNeighbourhood struct{ rng *rand.Rand }

func (n addNeighbourhood) bestImprove(pl *pricingLeague, accept float64) move {
	if !pl.canAddSize(1) {
		return nil
	}
	best := bestAdd(pl, n.rng, accept, nil)
	if best == nil {
		return nil
	}
	return best
}

func bestAdd(pl *pricingLeague, rng *rand.Rand, accept float64, skip *TeamClique) *addMove {
	var best *addMove
	bestDelta := math.Inf(1)
	for _, id := range pl.idle {
		c := pl.cm.cliques[id]
		if c == skip || !pl.canAdd(c) {
			continue
		}
		if d := pl.deltaIfAdd(c); d < bestDelta && rng.Float64() < accept {
			best, bestDelta = &addMove{clique: c, d: d}, d
		}
	}
	return best
}

type removeNeighbourhood struct{ rng *rand.Rand }

func (n removeNeighbourhood) bestImprove(pl *pricingLeague, accept float64) move {
	if !pl.canRemoveSize(1) {
		return nil
	}
	var best *removeMove
	bestDelta := math.Inf(1)
	for _, id := range pl.present {
		c := pl.cm.cliques[id]
		if !pl.canRemoveSize(c.Size()) {
			continue
		}
		if d := pl.deltaIfRemove(c); d < bestDelta && n.rng.Float64() < accept {
			best, bestDelta = &removeMove{clique: c, d: d}, d
		}
	}
	if best == nil {
		return nil
	}
	return best
}

type removeAddNeighbourhood struct{ rng *rand.Rand }

func (n removeAddNeighbourhood) bestImprove(pl *pricingLeague, accept float64) move {
	if len(pl.present) < 2 {
		return nil
	}
	var removed *TeamClique
	removeDelta := math.Inf(1)
	for _, id := range pl.present {
		c := pl.cm.cliques[id]
		if d := pl.deltaIfRemove(c); d < removeDelta && n.rng.Float64() < accept {
			removed, removeDelta = c, d
		}
	}
	if removed == nil {
		return nil
	}

	pl.remove(removed, removeDelta)
	added := bestAdd(pl, n.rng, accept, removed)
	pl.add(removed, -removeDelta)

	if added == nil {
		return nil
	}
	return &removeAddMove{removed: removed, added: added.clique, removeDelta: removeDelta, addDelta: added.d}
}
