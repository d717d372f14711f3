package bnp

import (
	"math"
	"sync/atomic"

	"github.com/oleiade/lane/v2"
	"leagues_go/model"
)

// boundTracker is a multiset of the bounds of open nodes. Removed bounds
// leave the queue lazily.
type boundTracker struct {
	counts map[float64]int
	queue  *lane.PriorityQueue[float64, float64]
}

func newBoundTracker() *boundTracker {
	return &boundTracker{
		counts: map[float64]int{},
		queue:  lane.NewMinPriorityQueue[float64, float64](),
	}
}

func (b *boundTracker) Add(bound float64) {
	b.counts[bound]++
	if b.counts[bound] == 1 {
		b.queue.Push(bound, bound)
	}
}

// Remove drops one occurrence of bound, if any.
func (b *boundTracker) Remove(bound float64) {
	switch b.counts[bound] {
	case 0:
	case 1:
		delete(b.counts, bound)
	default:
		b.counts[bound]--
	}
}

// Min is the smallest tracked bound, or MaxFloat64 when empty.
func (b *boundTracker) Min() float64 {
	for b.queue.Size() > 0 {
		bound, _, _ := b.queue.Pop()
		if b.counts[bound] > 0 {
			b.queue.Push(bound, bound)
			return bound
		}
	}
	return math.MaxFloat64
}

func (b *boundTracker) Len() int {
	total := 0
	for _, n := range b.counts {
		total += n
	}
	return total
}

type incumbentEntry struct {
	solution  *model.Solution
	objective int
}

// incumbent is the best known upper bound. It only ever decreases.
type incumbent struct {
	best atomic.Pointer[incumbentEntry]
}

// Offer installs sol if it improves on the current upper bound.
func (inc *incumbent) Offer(sol *model.Solution) bool {
	return inc.offer(&incumbentEntry{solution: sol, objective: sol.Objective})
}

// Bound lowers the upper bound without a solution to go with it.
func (inc *incumbent) Bound(ub int) bool {
	return inc.offer(&incumbentEntry{objective: ub})
}

func (inc *incumbent) offer(entry *incumbentEntry) bool {
	for {
		cur := inc.best.Load()
		if cur != nil && entry.objective >= cur.objective {
			return false
		}
		if inc.best.CompareAndSwap(cur, entry) {
			return true
		}
	}
}

func (inc *incumbent) UB() int {
	if cur := inc.best.Load(); cur != nil {
		return cur.objective
	}
	return math.MaxInt
}

func (inc *incumbent) Solution() *model.Solution {
	if cur := inc.best.Load(); cur != nil {
		return cur.solution
	}
	return nil
}
