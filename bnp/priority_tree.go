package bnp

import "math/rand"

type ordered[T any] interface {
	LessThan(other T) bool
}

// PriorityTree is a randomized meldable heap with four children per node.
// The nil tree is empty.
type PriorityTree[T ordered[T]] struct {
	children [4]*PriorityTree[T]
	element  T
	parent   *PriorityTree[T]
}

func (this *PriorityTree[T]) breakConnectionToParent(replacement *PriorityTree[T]) {
	if this == nil || this.parent == nil {
		return
	}
	for i, child := range this.parent.children {
		if child == this {
			this.parent.children[i] = replacement
			break
		}
	}
	this.parent = nil
}

func (q1 *PriorityTree[T]) Meld(q2 *PriorityTree[T]) *PriorityTree[T] {
	if q1 == nil {
		q2.breakConnectionToParent(nil)
		return q2
	}
	if q2 == nil {
		q1.breakConnectionToParent(nil)
		return q1
	}
	if q1 == q2 {
		return q1
	}

	// q1 holds the smaller root
	if q2.element.LessThan(q1.element) {
		q1, q2 = q2, q1
	}

	ret := q1
	ret.breakConnectionToParent(nil)

	for {
		childIdx := rand.Intn(len(q1.children))

		if q1.children[childIdx] == nil {
			q2.parent = q1
			q1.children[childIdx] = q2
			break
		}

		if !q2.element.LessThan(q1.children[childIdx].element) {
			q1 = q1.children[childIdx]
			continue
		}

		// q2 takes the child's slot and the child is melded below q2
		tmp := q1.children[childIdx]
		q1.children[childIdx] = q2
		q2.parent = q1
		q1 = q2
		q2 = tmp
	}

	return ret
}

func (this *PriorityTree[T]) MeldElement(element T) *PriorityTree[T] {
	return this.Meld(&PriorityTree[T]{element: element})
}

func (this *PriorityTree[T]) Min() T {
	return this.element
}

func (this *PriorityTree[T]) DeleteMin() *PriorityTree[T] {
	parent := this.parent
	newRoot := this.children[0].Meld(this.children[1])
	for i := 2; i < len(this.children); i++ {
		newRoot = newRoot.Meld(this.children[i])
	}

	if parent != nil {
		this.breakConnectionToParent(newRoot)
		if newRoot != nil {
			newRoot.parent = parent
		}
	}
	return newRoot
}

// Each visits every element in no particular order.
func (this *PriorityTree[T]) Each(visit func(T)) {
	if this == nil {
		return
	}
	visit(this.element)
	for _, child := range this.children {
		child.Each(visit)
	}
}
