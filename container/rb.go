package container

import (
	"golang.org/x/exp/constraints"
)

type Direction uint8
type Color bool

const (
	Left  Direction = 0
	Right Direction = 1
)

const (
	Black Color = false
	Red   Color = true
)

type Comparable[T any] interface {
	Compare(T) int
}

// RBTree is a red-black tree. Inserting a key that is already present replaces its value.
type RBTree[K Comparable[K], V any] struct {
	Root     *RBNode[K, V]
	NumNodes int

	// Rotated, if set, is called with the node that moved down during a rotation.
	Rotated func(node *RBNode[K, V])
}

type RBNode[K Comparable[K], V any] struct {
	Parent   *RBNode[K, V]
	Children [2]*RBNode[K, V]
	Key      K
	Value    V
	color    Color
}

func NewRBNode[K Comparable[K], V any](k K, v V) *RBNode[K, V] {
	return &RBNode[K, V]{
		Key:   k,
		Value: v,
	}
}

func (t *RBTree[K, V]) Len() int { return t.NumNodes }

// Search returns the node with key k if it exists. Otherwise it returns the node that would become k's parent
// and the side on which k would be attached.
func (t *RBTree[K, V]) Search(k K) (node *RBNode[K, V], found bool, dir Direction) {
	if t.Root == nil {
		return nil, false, 0
	}

	x := t.Root
	for {
		c := k.Compare(x.Key)
		if c == 0 {
			return x, true, 0
		} else if c < 0 {
			dir = Left
		} else {
			dir = Right
		}

		child := x.Children[dir]
		if child == nil {
			return x, false, dir
		}
		x = child
	}
}

func (t *RBTree[K, V]) rotate(p *RBNode[K, V], dir Direction) *RBNode[K, V] {
	g := p.Parent
	s := p.Children[1-dir]
	c := s.Children[dir]
	p.Children[1-dir] = c
	if c != nil {
		c.Parent = p
	}
	s.Children[dir] = p
	p.Parent = s
	s.Parent = g
	if g == nil {
		t.Root = s
	} else if p == g.Children[Right] {
		g.Children[Right] = s
	} else {
		g.Children[Left] = s
	}

	if t.Rotated != nil {
		t.Rotated(p)
	}
	return s
}

func (t *RBTree[K, V]) Insert(k K, v V) *RBNode[K, V] {
	p, ok, dir := t.Search(k)
	if ok {
		p.Value = v
		return p
	}
	t.NumNodes++
	n := NewRBNode(k, v)
	t.insert(n, p, dir)
	return n
}

func (t *RBTree[K, V]) insert(n *RBNode[K, V], p *RBNode[K, V], dir Direction) {
	n.color = Red
	n.Parent = p
	if p == nil {
		t.Root = n
		return
	}
	p.Children[dir] = n

	for p != nil {
		if p.color == Black {
			return
		}

		g := p.Parent
		if g == nil {
			p.color = Black
			return
		}

		dir = p.childDir()
		u := g.Children[1-dir]
		if u == nil || u.color == Black {
			if n == p.Children[1-dir] {
				t.rotate(p, dir)
				n = p
				p = g.Children[dir]
			}

			t.rotate(g, 1-dir)
			p.color = Black
			g.color = Red
			return
		}

		// Red uncle: push the blackness down from the grandparent and continue above it.
		p.color = Black
		u.color = Black
		g.color = Red
		n = g
		p = n.Parent
	}
	n.color = Black
}

func (n *RBNode[K, V]) childDir() Direction {
	if n.Parent.Children[Right] == n {
		return Right
	}
	return Left
}

// Interval is a half-open interval [Min, Max).
type Interval[T constraints.Ordered] struct {
	Min, Max T
}

type Value[T constraints.Ordered, V any] struct {
	MaxSubtree T
	Value      V
}

func (ival Interval[T]) Compare(oval Interval[T]) int {
	switch {
	case ival.Min < oval.Min:
		return -1
	case ival.Min > oval.Min:
		return 1
	case ival.Max < oval.Max:
		return -1
	case ival.Max > oval.Max:
		return 1
	default:
		return 0
	}
}

// Empty reports whether the interval contains no points.
func (ival Interval[T]) Empty() bool {
	return !(ival.Min < ival.Max)
}

// Overlaps reports whether the two intervals share at least one point. Touching intervals ([1, 2) and [2, 3))
// don't overlap, and neither does an empty interval with anything.
func (ival Interval[T]) Overlaps(oval Interval[T]) bool {
	if ival.Empty() || oval.Empty() {
		return false
	}
	return ival.Min < oval.Max && oval.Min < ival.Max
}

// IntervalTree is an augmented red-black tree answering overlap queries over half-open intervals.
type IntervalTree[T constraints.Ordered, V any] struct {
	RBTree[Interval[T], Value[T, V]]
}

func NewIntervalTree[T constraints.Ordered, V any]() *IntervalTree[T, V] {
	t := &IntervalTree[T, V]{}
	t.Rotated = func(node *RBNode[Interval[T], Value[T, V]]) {
		t.updateAug(node)
	}
	return t
}

func (t *IntervalTree[T, V]) Insert(min, max T, value V) *RBNode[Interval[T], Value[T, V]] {
	n := t.RBTree.Insert(Interval[T]{min, max}, Value[T, V]{MaxSubtree: max, Value: value})
	t.updateAug(n)
	return n
}

func (t *IntervalTree[T, V]) updateAug(n *RBNode[Interval[T], Value[T, V]]) {
	for ; n != nil; n = n.Parent {
		max := n.Key.Max
		for _, c := range n.Children {
			if c != nil && c.Value.MaxSubtree > max {
				max = c.Value.MaxSubtree
			}
		}
		n.Value.MaxSubtree = max
	}
}

// Find appends to out all nodes whose intervals overlap [min, max), in ascending order.
func (t *IntervalTree[T, V]) Find(
	min T,
	max T,
	out []*RBNode[Interval[T], Value[T, V]],
) []*RBNode[Interval[T], Value[T, V]] {
	t.FindIter(min, max, func(node *RBNode[Interval[T], Value[T, V]]) bool {
		out = append(out, node)
		return false
	})
	return out
}

// FindIter calls cb for every node overlapping [min, max) in ascending order, stopping early if cb returns true.
func (t *IntervalTree[T, V]) FindIter(
	min T,
	max T,
	cb func(node *RBNode[Interval[T], Value[T, V]]) bool,
) {
	q := Interval[T]{min, max}
	if q.Empty() {
		return
	}
	t.findIter(t.Root, q, cb)
}

// Any reports whether any stored interval overlaps [min, max).
func (t *IntervalTree[T, V]) Any(min, max T) bool {
	found := false
	t.FindIter(min, max, func(*RBNode[Interval[T], Value[T, V]]) bool {
		found = true
		return true
	})
	return found
}

func (t *IntervalTree[T, V]) findIter(
	node *RBNode[Interval[T], Value[T, V]],
	q Interval[T],
	cb func(node *RBNode[Interval[T], Value[T, V]]) bool,
) bool {
	if node == nil {
		return false
	}

	if node.Value.MaxSubtree <= q.Min {
		// Everything in this subtree ends before the query starts.
		return false
	}

	if t.findIter(node.Children[Left], q, cb) {
		return true
	}

	if node.Key.Overlaps(q) {
		if cb(node) {
			return true
		}
	}

	if node.Key.Min >= q.Max {
		// The right subtree only holds intervals starting at or after this one.
		return false
	}
	return t.findIter(node.Children[Right], q, cb)
}
