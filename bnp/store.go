package bnp

import (
	"slices"

	"github.com/oleiade/lane/v2"
	"golang.org/x/exp/maps"
)

// nodeStore holds the open nodes waiting for a worker.
type nodeStore interface {
	Push(node *BranchNode)
	// Pop returns the next node, nil when the store is empty. level is the
	// level the search would like to continue from.
	Pop(level int) *BranchNode
	Len() int
	// Purge removes and returns every node for which drop is true.
	Purge(drop func(*BranchNode) bool) []*BranchNode
}

func newNodeStore(cyclic bool) nodeStore {
	if cyclic {
		return &cyclicStore{levels: map[int]*lane.PriorityQueue[*BranchNode, float64]{}}
	}
	return &bestBoundStore{}
}

// bestBoundStore always returns the open node with the smallest bound.
type bestBoundStore struct {
	root *PriorityTree[*BranchNode]
	n    int
}

func (s *bestBoundStore) Push(node *BranchNode) {
	s.root = s.root.MeldElement(node)
	s.n++
}

func (s *bestBoundStore) Pop(int) *BranchNode {
	if s.root == nil {
		return nil
	}
	node := s.root.Min()
	s.root = s.root.DeleteMin()
	s.n--
	return node
}

func (s *bestBoundStore) Len() int {
	return s.n
}

func (s *bestBoundStore) Purge(drop func(*BranchNode) bool) []*BranchNode {
	var kept, dropped []*BranchNode
	s.root.Each(func(node *BranchNode) {
		if drop(node) {
			dropped = append(dropped, node)
		} else {
			kept = append(kept, node)
		}
	})
	if len(dropped) == 0 {
		return nil
	}
	s.root, s.n = nil, 0
	for _, node := range kept {
		s.Push(node)
	}
	return dropped
}

// cyclicStore keeps one queue per tree level and serves the levels round
// robin, diving deeper after every pop.
type cyclicStore struct {
	levels map[int]*lane.PriorityQueue[*BranchNode, float64]
	n      int
}

func (s *cyclicStore) Push(node *BranchNode) {
	queue, ok := s.levels[node.Level]
	if !ok {
		queue = lane.NewMinPriorityQueue[*BranchNode, float64]()
		s.levels[node.Level] = queue
	}
	queue.Push(node, node.LowerBound)
	s.n++
}

func (s *cyclicStore) Pop(level int) *BranchNode {
	if len(s.levels) == 0 {
		return nil
	}
	keys := maps.Keys(s.levels)
	slices.Sort(keys)
	pos, _ := slices.BinarySearch(keys, level)
	if pos == len(keys) {
		pos = 0
	}
	queue := s.levels[keys[pos]]
	node, _, _ := queue.Pop()
	if queue.Size() == 0 {
		delete(s.levels, keys[pos])
	}
	s.n--
	return node
}

func (s *cyclicStore) Len() int {
	return s.n
}

func (s *cyclicStore) Purge(drop func(*BranchNode) bool) []*BranchNode {
	var dropped []*BranchNode
	for level, queue := range s.levels {
		var kept []*BranchNode
		for queue.Size() > 0 {
			node, _, _ := queue.Pop()
			if drop(node) {
				dropped = append(dropped, node)
			} else {
				kept = append(kept, node)
			}
		}
		for _, node := range kept {
			queue.Push(node, node.LowerBound)
		}
		if len(kept) == 0 {
			delete(s.levels, level)
		}
	}
	s.n -= len(dropped)
	return dropped
}
