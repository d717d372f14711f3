package bnp

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"leagues_go/model"
)

// candidate is a pair of teams sharing leagues with a fractional total value.
type candidate struct {
	Pair
	Value  float64
	weight int
}

// BranchNode is a node of the branch-and-price tree. Its fixations are pairs
// of teams forced into the same league (fixedOne) or apart (fixedZero).
type BranchNode struct {
	ID         int
	Level      int
	LowerBound float64

	problem    *model.Problem
	rng        *rand.Rand
	feasible   bool
	solution   *model.Solution
	leagues    []*model.League
	fixedOne   []Pair
	fixedZero  []Pair
	candidates []candidate
}

func NewRootNode(problem *model.Problem, id int, leagues []*model.League) *BranchNode {
	return &BranchNode{
		ID:         id,
		LowerBound: math.MaxFloat64,
		problem:    problem,
		rng:        rand.New(rand.NewSource(0)),
		leagues:    slices.Clone(leagues),
	}
}

func (n *BranchNode) Feasible() bool {
	return n.feasible
}

// Integer reports whether the node relaxation is integral.
func (n *BranchNode) Integer() bool {
	return n.solution != nil
}

func (n *BranchNode) Fractional() bool {
	return n.feasible && n.solution == nil
}

func (n *BranchNode) Solution() *model.Solution {
	return n.solution
}

func (n *BranchNode) String() string {
	return fmt.Sprintf("Node[%d lvl=%d lb=%.2f]", n.ID, n.Level, n.LowerBound)
}

// Less orders nodes by bound, then by fewer fractional pairs, then by more
// forced pairs.
func (n *BranchNode) Less(other *BranchNode) bool {
	if n.LowerBound != other.LowerBound {
		return n.LowerBound < other.LowerBound
	}
	if len(n.candidates) != len(other.candidates) {
		return len(n.candidates) < len(other.candidates)
	}
	if len(n.fixedOne) != len(other.fixedOne) {
		return len(n.fixedOne) > len(other.fixedOne)
	}
	return n.ID < other.ID
}

func (n *BranchNode) LessThan(other *BranchNode) bool {
	return n.Less(other)
}

// Solve runs column generation on the node. The returned error is non-nil
// only when ctx expired.
func (n *BranchNode) Solve(ctx context.Context, cg *ColumnGeneration) error {
	cg.Reset()
	for _, league := range n.leagues {
		cg.AddColumn(league, 0)
	}
	for _, p := range n.fixedOne {
		cg.Fix(p.I, p.J, true)
	}
	for _, p := range n.fixedZero {
		cg.Fix(p.I, p.J, false)
	}

	feasible, err := cg.Solve(ctx)
	if err != nil {
		return err
	}
	n.solution = nil
	n.candidates = nil
	n.feasible = feasible
	if !feasible {
		n.LowerBound = math.MaxFloat64
		n.leagues = nil
		return nil
	}

	n.LowerBound = cg.Objective()
	columns := cg.Columns()
	n.leagues = make([]*model.League, len(columns))
	for i, col := range columns {
		n.leagues[i] = col.League
	}

	values := map[Pair]float64{}
	for _, col := range columns {
		if col.Value <= EPS || col.Value >= 1-EPS {
			continue
		}
		teams := col.League.Teams()
		for a, i := range teams {
			for _, j := range teams[a+1:] {
				values[Pair{i, j}] += col.Value
			}
		}
	}
	for p, v := range values {
		// the same pair spread over several columns summing to one
		if v > 1-EPS {
			continue
		}
		n.candidates = append(n.candidates, candidate{Pair: p, Value: v, weight: n.problem.WeightedDistTime(p.I, p.J)})
	}

	if len(n.candidates) == 0 {
		n.solution = model.NewSolution(n.problem)
		seen := map[string]bool{}
		for _, col := range cg.activeColumns() {
			if key := col.League.Key(); !seen[key] {
				seen[key] = true
				n.solution.AddLeague(col.League.Clone())
			}
		}
		if err := n.solution.Validate(); err != nil {
			panic(fmt.Sprintf("integer node %d yields an invalid solution: %v", n.ID, err))
		}
		return nil
	}

	slices.SortFunc(n.candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.weight, a.weight); c != 0 {
			return c
		}
		if c := cmp.Compare(min(b.Value, 1-b.Value), min(a.Value, 1-a.Value)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.I, b.I); c != 0 {
			return c
		}
		return cmp.Compare(a.J, b.J)
	})
	return nil
}

// child copies n with the pair p fixed and the leagues violating the
// fixation dropped.
func (n *BranchNode) child(id int, p Pair, together bool) *BranchNode {
	c := &BranchNode{
		ID:         id,
		Level:      n.Level + 1,
		LowerBound: n.LowerBound,
		problem:    n.problem,
		rng:        rand.New(rand.NewSource(n.rng.Int63())),
		fixedOne:   slices.Clone(n.fixedOne),
		fixedZero:  slices.Clone(n.fixedZero),
	}
	if together {
		c.fixedOne = append(c.fixedOne, p)
	} else {
		c.fixedZero = append(c.fixedZero, p)
	}
	for _, league := range n.leagues {
		hasI, hasJ := league.Contains(p.I), league.Contains(p.J)
		if together && hasI != hasJ {
			continue
		}
		if !together && hasI && hasJ {
			continue
		}
		c.leagues = append(c.leagues, league)
	}
	return c
}

// OpenChildren branches on up to k candidate pairs and solves every child in
// parallel. The caller holds slots units of sem; they are released as the
// last children finish. The pair of children ranked best is returned.
func (n *BranchNode) OpenChildren(ctx context.Context, pool chan *ColumnGeneration, k int, sem *semaphore.Weighted, slots int, nextID func() int) ([2]*BranchNode, error) {
	cands := slices.Clone(n.candidates)
	var branches [][2]*BranchNode
	for i := 0; i < k && len(cands) > 0; i++ {
		pick := 0
		if i > 0 {
			pick = n.rng.Intn(len(cands))
		}
		p := cands[pick].Pair
		cands = slices.Delete(cands, pick, pick+1)
		branches = append(branches, [2]*BranchNode{n.child(nextID(), p, true), n.child(nextID(), p, false)})
	}

	nChildren := 2 * len(branches)
	if nChildren < slots {
		sem.Release(int64(slots - nChildren))
		slots = nChildren
	}
	// a slot is returned once fewer children are unfinished than slots held
	var unfinished atomic.Int64
	unfinished.Store(int64(nChildren))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, slots))
	for _, branch := range branches {
		for _, node := range branch {
			g.Go(func() error {
				cg := <-pool
				defer func() {
					pool <- cg
					if unfinished.Add(-1) < int64(slots) {
						sem.Release(1)
					}
				}()
				return node.Solve(gctx, cg)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return [2]*BranchNode{}, err
	}

	slices.SortStableFunc(branches, compareBranches)
	return branches[0], nil
}

func compareBranches(a, b [2]*BranchNode) int {
	fracA := countIf(a, (*BranchNode).Fractional)
	fracB := countIf(b, (*BranchNode).Fractional)
	if fracA != fracB {
		return cmp.Compare(fracA, fracB)
	}
	intA := countIf(a, (*BranchNode).Integer) > 0
	intB := countIf(b, (*BranchNode).Integer) > 0
	if intA != intB {
		if intA {
			return -1
		}
		return 1
	}
	minA := min(a[0].LowerBound, a[1].LowerBound)
	minB := min(b[0].LowerBound, b[1].LowerBound)
	if math.Abs(minA-minB) < EPS {
		return cmp.Compare(minB, minA)
	}
	return cmp.Compare(max(b[0].LowerBound, b[1].LowerBound), max(a[0].LowerBound, a[1].LowerBound))
}

func countIf(branch [2]*BranchNode, pred func(*BranchNode) bool) int {
	count := 0
	for _, node := range branch {
		if pred(node) {
			count++
		}
	}
	return count
}
