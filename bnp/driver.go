package bnp

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"leagues_go/lp"
	"leagues_go/model"
)

// ErrTimeLimit is returned when the search stopped before finding any
// solution.
var ErrTimeLimit = errors.New("time limit reached before a solution was found")

// ErrNodesDropped is returned when solver errors cost the search nodes and no
// solution was found.
var ErrNodesDropped = errors.New("search incomplete after solver errors")

const statusInterval = 5 * time.Second

type Result struct {
	Solution *model.Solution
	// Optimal is true when the search tree was exhausted.
	Optimal    bool
	LowerBound float64
	RootBound  float64
	Nodes      int
	Runtime    time.Duration
}

// Driver runs a parallel branch-and-price search over league assignments.
type Driver struct {
	problem *model.Problem
	solver  lp.Solver
	params  Parameters
	logger  logrus.FieldLogger

	sem     *semaphore.Weighted
	pool    chan *ColumnGeneration
	inc     incumbent
	nextID  atomic.Int64
	initial []*model.League

	mu           sync.Mutex
	store        nodeStore
	bounds       *boundTracker
	nWorkers     int
	dropped      int // nodes lost to solver errors
	currentLevel int
	lb, rootLB   float64
	start        time.Time
	lastPrint    time.Time
}

func NewDriver(problem *model.Problem, solver lp.Solver, params Parameters, logger logrus.FieldLogger) *Driver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Driver{
		problem: problem,
		solver:  solver,
		params:  params,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(params.NThreads)),
		store:   newNodeStore(params.CyclicBFS),
		bounds:  newBoundTracker(),
	}
}

// SetIncumbent seeds the search with a known solution. Its leagues become
// the initial columns of the root node.
func (d *Driver) SetIncumbent(sol *model.Solution) error {
	if err := sol.Validate(); err != nil {
		return errors.Wrap(err, "initial solution")
	}
	if d.inc.Offer(sol) {
		d.initial = append(d.initial, sol.Leagues...)
	}
	return nil
}

// SetUpperBound prunes every node that cannot beat ub.
func (d *Driver) SetUpperBound(ub int) {
	d.inc.Bound(ub)
}

func (d *Driver) newID() int {
	return int(d.nextID.Add(1) - 1)
}

// Solve explores the tree until it is exhausted or ctx (bounded by the time
// limit) expires. On expiry the best solution found so far is returned with
// Optimal unset, or ErrTimeLimit when there is none.
func (d *Driver) Solve(ctx context.Context) (*Result, error) {
	if d.params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.params.TimeLimit)
		defer cancel()
	}
	d.start = time.Now()
	d.lastPrint = d.start

	d.pool = make(chan *ColumnGeneration, max(2, d.params.NThreads))
	for i := 0; i < cap(d.pool); i++ {
		d.pool <- NewColumnGeneration(d.problem, d.solver, d.params, d.logger)
	}

	root := NewRootNode(d.problem, d.newID(), d.initial)
	cg := <-d.pool
	err := root.Solve(ctx, cg)
	d.pool <- cg
	if err != nil {
		if ctx.Err() == nil {
			d.logger.WithError(err).Error("root node failed")
			d.dropped++
		}
		return d.result(false)
	}
	d.mu.Lock()
	d.addRoot(root)
	d.mu.Unlock()

	var wg sync.WaitGroup
	wake := make(chan struct{}, 1)
	slots := int64(min(2*d.params.StrongBranching, d.params.NThreads))
	for ctx.Err() == nil {
		if err := d.sem.Acquire(ctx, slots); err != nil {
			break
		}
		d.mu.Lock()
		if d.store.Len() == 0 {
			idle := d.nWorkers == 0
			d.mu.Unlock()
			d.sem.Release(slots)
			if idle {
				break
			}
			select {
			case <-wake:
			case <-ctx.Done():
			}
			continue
		}
		node := d.store.Pop(d.currentLevel)
		d.currentLevel = node.Level + 1
		d.nWorkers++
		if time.Since(d.lastPrint) >= statusInterval {
			d.status(node, "progress")
		}
		d.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			d.openNode(ctx, node, int(slots))
			d.mu.Lock()
			d.nWorkers--
			d.mu.Unlock()
			select {
			case wake <- struct{}{}:
			default:
			}
		}()
	}
	wg.Wait()

	return d.result(ctx.Err() == nil && d.dropped == 0)
}

func (d *Driver) result(optimal bool) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := &Result{
		Solution:   d.inc.Solution(),
		Optimal:    optimal,
		LowerBound: d.lb,
		RootBound:  d.rootLB,
		Nodes:      int(d.nextID.Load()),
		Runtime:    time.Since(d.start),
	}
	switch {
	case optimal && res.Solution != nil:
		res.LowerBound = float64(res.Solution.Objective)
	case optimal && d.inc.UB() == math.MaxInt:
		// no assignment of teams to leagues exists
		res.LowerBound = math.Inf(1)
	}
	if optimal {
		d.logger.WithField("runtime", res.Runtime.Round(time.Millisecond)).Info("search tree exhausted")
		return res, nil
	}
	if d.dropped > 0 {
		d.logger.WithField("dropped", d.dropped).Warn("nodes were dropped, solution is not guaranteed optimal")
		if res.Solution == nil {
			return res, ErrNodesDropped
		}
		return res, nil
	}
	d.logger.WithField("runtime", res.Runtime.Round(time.Millisecond)).Warn("time limit reached, solution is not guaranteed optimal")
	if res.Solution == nil {
		return res, ErrTimeLimit
	}
	return res, nil
}

// openNode branches on parent unless the incumbent already dominates it.
func (d *Driver) openNode(ctx context.Context, parent *BranchNode, slots int) {
	log := d.logger.WithFields(logrus.Fields{"node": parent.ID, "level": parent.Level})
	if ub := d.inc.UB(); math.Ceil(parent.LowerBound-EPS) >= float64(ub) {
		d.sem.Release(int64(slots))
		log.Debugf("pruned children by parent cost, %.2f >= %d", parent.LowerBound, ub)
	} else {
		log.Debugf("opening node (lb=%.2f)", parent.LowerBound)
		children, err := parent.OpenChildren(ctx, d.pool, d.params.StrongBranching, d.sem, slots, d.newID)
		if err != nil {
			if ctx.Err() != nil {
				log.WithError(err).Debug("node interrupted")
				return
			}
			log.WithError(err).Error("node dropped")
			d.mu.Lock()
			// its bound stays tracked, the subtree is unexplored
			d.dropped++
			d.mu.Unlock()
			return
		}
		d.mu.Lock()
		d.addChildren(children[:]...)
		d.mu.Unlock()
	}
	d.mu.Lock()
	d.setLB(parent)
	d.mu.Unlock()
}

// addRoot sets the first lower bound and stores the root, whose bound then
// stays tracked until the root is opened. d.mu must be held.
func (d *Driver) addRoot(root *BranchNode) {
	d.setLB(root)
	d.addChildren(root)
	d.rootLB = d.lb
}

// addChildren stores the solved nodes worth exploring. d.mu must be held.
func (d *Driver) addChildren(children ...*BranchNode) {
	for _, node := range children {
		log := d.logger.WithFields(logrus.Fields{"node": node.ID, "level": node.Level})
		ub := d.inc.UB()
		switch {
		case !node.Feasible():
			log.Debug("infeasible")
		case node.Integer() && node.Solution().Objective < ub:
			log.Debugf("improved best solution, %d", node.Solution().Objective)
			d.setUB(node)
		case node.Integer():
			log.Debugf("pruned integer node with cost %d >= %d", node.Solution().Objective, ub)
		case math.Ceil(node.LowerBound-EPS) >= float64(ub):
			log.Debugf("pruned node with lower bound %.2f >= %d", node.LowerBound, ub)
		default:
			log.Debugf("added to the store with lb=%.2f", node.LowerBound)
			d.store.Push(node)
			d.bounds.Add(node.LowerBound)
		}
	}
}

// setLB raises the global lower bound once node is done. d.mu must be held.
func (d *Driver) setLB(node *BranchNode) {
	d.bounds.Remove(node.LowerBound)
	lb := min(float64(d.inc.UB()), node.LowerBound, d.bounds.Min())
	if lb > d.lb+EPS {
		d.lb = lb
		d.status(node, "lb")
	}
}

// setUB installs the integer solution of node and purges the nodes it
// dominates. d.mu must be held.
func (d *Driver) setUB(node *BranchNode) {
	if !d.inc.Offer(node.Solution()) {
		return
	}
	ub := float64(d.inc.UB())
	for _, pruned := range d.store.Purge(func(n *BranchNode) bool {
		return math.Round(n.LowerBound-EPS) >= ub
	}) {
		d.bounds.Remove(pruned.LowerBound)
	}
	d.status(node, "solution")
}

// status logs one progress line. d.mu must be held.
func (d *Driver) status(node *BranchNode, event string) {
	d.lastPrint = time.Now()
	nodeObj := fmt.Sprintf("%.2f", node.LowerBound)
	if node.Integer() {
		nodeObj = fmt.Sprintf("%d***", node.Solution().Objective)
	}
	objective, bestUB, gap := "-", "-", "-"
	if d.lb > 0 {
		objective = fmt.Sprintf("%.2f", d.lb)
	}
	if ub := d.inc.UB(); ub < math.MaxInt {
		bestUB = fmt.Sprintf("%d", ub)
		if d.lb > 0 {
			gap = fmt.Sprintf("%.2f%%", 100*(float64(ub)-d.lb)/float64(ub))
		}
	}
	d.logger.WithFields(logrus.Fields{
		"runtime":   time.Since(d.start).Round(100 * time.Millisecond),
		"nodes":     d.nextID.Load(),
		"heap":      d.store.Len(),
		"id":        node.ID,
		"lvl":       node.Level,
		"nodeObj":   nodeObj,
		"objective": objective,
		"bestUB":    bestUB,
		"gap":       gap,
	}).Info(event)
}
