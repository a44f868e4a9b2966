// Package bptree implements the shared B+ tree engine: a leaf arena of
// compact, variant-specific containers, internal nodes carrying count/sum
// aggregate deques, and the engine itself, which owns rebalancing, bulk
// build, leaf-arena recycling, and serialization. Every other façade in
// this module (DPS, DBS, DS64, DWT, the permutation trees, and the
// range-reporting tree) is a thin specialisation of Tree[V].
package bptree

import (
	"encoding/binary"
	"fmt"
	"io"
)

// nodeHandle is either an absent tree (no root), a single leaf addressed
// by its arena index, or a pointer to the top internal node.
type nodeHandle[V any] struct {
	isLeaf bool
	leaf   int
	node   *internalNode[V]
}

func (h nodeHandle[V]) absent() bool { return !h.isLeaf && h.node == nil }

// pathEntry records one step of a root-to-leaf descent: the internal node
// visited and the index of the child chosen.
type pathEntry[V any] struct {
	node *internalNode[V]
	idx  int
}

// Tree is the generic B+ tree engine. V is the value type stored
// in leaves (uint64 for DPS/DS64, bool for DBS, PermItem for DP).
type Tree[V any] struct {
	dMax int
	lMax int

	sumsEnabled bool
	weightFn    func(V) uint64
	newLeaf     func() LeafContainer[V]

	// SuperLeftPushMode makes insert-overflow rebalancing shift as many
	// values as will fit into the left sibling rather than the minimum
	// needed to resolve the overflow.
	SuperLeftPushMode bool

	// OnMigrate is invoked whenever values move from one leaf to another
	// during rebalancing (sibling shift, split, steal, merge). Set by the
	// permutation façade so partner pointers stay correct.
	OnMigrate func(srcLeaf, dstLeaf int, moved []V)
	// OnReindex is invoked once after SortLeaves with the full
	// old-arena-index -> new-arena-index mapping.
	OnReindex func(oldToNew map[int]int)

	arena *leafArena[V]
	pool  *nodePool[V]

	root          nodeHandle[V]
	height        int
	size          int
	totalSumCache uint64
}

// NewTree constructs an empty tree. newLeaf manufactures empty leaf
// containers of the concrete variant the façade wants; weightFn computes
// a value's contribution to the sum aggregate (ignored when sumsEnabled
// is false).
func NewTree[V any](dMax, lMax int, sumsEnabled bool, newLeaf func() LeafContainer[V], weightFn func(V) uint64) (*Tree[V], error) {
	if dMax < 4 || lMax < 4 {
		return nil, ErrConfig
	}
	return &Tree[V]{
		dMax:        dMax,
		lMax:        lMax,
		sumsEnabled: sumsEnabled,
		weightFn:    weightFn,
		newLeaf:     newLeaf,
		arena:       newLeafArena[V](),
		pool:        &nodePool[V]{},
	}, nil
}

func (t *Tree[V]) Size() int   { return t.size }
func (t *Tree[V]) Height() int { return t.height }
func (t *Tree[V]) DMax() int   { return t.dMax }
func (t *Tree[V]) LMax() int   { return t.lMax }

// Clear empties the tree, releasing the leaf arena and node pool.
func (t *Tree[V]) Clear() {
	t.arena = newLeafArena[V]()
	t.pool = &nodePool[V]{}
	t.root = nodeHandle[V]{}
	t.height = 0
	t.size = 0
	t.totalSumCache = 0
}

func (t *Tree[V]) leafWeight(l LeafContainer[V]) uint64 {
	if !t.sumsEnabled {
		return 0
	}
	return l.(SummableLeaf[V]).PsumTotal()
}

func (t *Tree[V]) notifyMigrate(src, dst int, moved []V) {
	if t.OnMigrate != nil && len(moved) > 0 {
		t.OnMigrate(src, dst, moved)
	}
}

// LeafAt exposes the concrete leaf container holding arena index idx, for
// façades (DBS, DWT, permutation) that need to call variant-specific
// operations (rank/select, GetNewKey) beyond the generic contract.
func (t *Tree[V]) LeafAt(idx int) LeafContainer[V] { return t.arena.get(idx) }

// LeafIndexFor returns the arena index of the leaf holding logical
// position i, along with the local offset inside that leaf.
func (t *Tree[V]) LeafIndexFor(i int) (leafIdx, offset int, err error) {
	if i < 0 || i >= t.size {
		return 0, 0, ErrOutOfRange
	}
	_, leafIdx, offset = t.locate(i, false)
	return leafIdx, offset, nil
}

// PositionOfLeaf returns the logical position of offset within the leaf
// at arena index leafIdx, computed by summing the count aggregate of
// every leaf to its left. Used by the permutation façade to turn a
// (leaf, local offset) pair found by linear scan back into a logical
// index.
func (t *Tree[V]) PositionOfLeaf(leafIdx, offset int) (int, bool) {
	if t.root.isLeaf {
		if t.root.leaf != leafIdx {
			return 0, false
		}
		return offset, true
	}
	base, ok := positionOfLeafInNode(t.root.node, leafIdx)
	if !ok {
		return 0, false
	}
	return base + offset, true
}

func positionOfLeafInNode[V any](n *internalNode[V], leafIdx int) (int, bool) {
	base := 0
	if n.isParentOfLeaves {
		for i, c := range n.children {
			if c == leafIdx {
				return base, true
			}
			base += n.count[i]
		}
		return 0, false
	}
	for i, k := range n.kids {
		if sub, ok := positionOfLeafInNode(k, leafIdx); ok {
			return base + sub, true
		}
		base += n.count[i]
	}
	return 0, false
}

// ---------------------------------------------------------------------
// Path discovery
// ---------------------------------------------------------------------

func (t *Tree[V]) locate(i int, forInsert bool) ([]pathEntry[V], int, int) {
	if t.root.isLeaf {
		return nil, t.root.leaf, i
	}
	var path []pathEntry[V]
	node := t.root.node
	remaining := i
	for {
		var idx int
		if forInsert && remaining >= node.totalCount() {
			idx = node.degree() - 1
		} else {
			idx = node.searchOnCountDeque(remaining)
		}
		before := 0
		if idx > 0 {
			before = node.psumOnCountDeque(idx - 1)
		}
		localRemaining := remaining - before
		path = append(path, pathEntry[V]{node: node, idx: idx})
		if node.isParentOfLeaves {
			return path, node.children[idx], localRemaining
		}
		node = node.kids[idx]
		remaining = localRemaining
	}
}

// ---------------------------------------------------------------------
// Point queries
// ---------------------------------------------------------------------

func (t *Tree[V]) At(i int) (V, error) {
	var zero V
	if i < 0 || i >= t.size {
		return zero, ErrOutOfRange
	}
	_, leafIdx, offset := t.locate(i, false)
	return t.arena.get(leafIdx).At(offset), nil
}

// Psum returns the sum of the first i+1 values. Requires sums to
// be enabled.
func (t *Tree[V]) Psum(i int) (uint64, error) {
	if !t.sumsEnabled {
		return 0, ErrConfig
	}
	if i < 0 || i >= t.size {
		return 0, ErrOutOfRange
	}
	if t.root.isLeaf {
		leaf := t.arena.get(t.root.leaf).(SummableLeaf[V])
		return leaf.Psum(i), nil
	}
	node := t.root.node
	remaining := i
	var acc uint64
	for {
		idx := node.searchOnCountDeque(remaining)
		before := 0
		for k := 0; k < idx; k++ {
			acc += node.sum[k]
			before += node.count[k]
		}
		localRemaining := remaining - before
		if node.isParentOfLeaves {
			leaf := t.arena.get(node.children[idx]).(SummableLeaf[V])
			return acc + leaf.Psum(localRemaining), nil
		}
		node = node.kids[idx]
		remaining = localRemaining
	}
}

// PsumTotal returns the sum of every value in the tree.
func (t *Tree[V]) PsumTotal() uint64 { return t.totalSumCache }

// AdjustSum adds delta to the value at position i in place, propagating
// the change through every ancestor's sum aggregate (used by DPS's
// increment/decrement/set-value operations). It does not touch the count
// aggregate or move the value between leaves.
func (t *Tree[V]) AdjustSum(i int, delta int64) error {
	if !t.sumsEnabled {
		return ErrConfig
	}
	if i < 0 || i >= t.size {
		return ErrOutOfRange
	}
	path, leafIdx, offset := t.locate(i, false)
	leaf := t.arena.get(leafIdx).(SummableLeaf[V])
	leaf.Increment(offset, delta)
	t.totalSumCache = uint64(int64(t.totalSumCache) + delta)
	for _, pe := range path {
		pe.node.increment(pe.idx, 0, delta)
	}
	t.debugCheck()
	return nil
}

// Search returns the smallest i such that Psum(i) >= s, or -1 if
// PsumTotal() < s.
func (t *Tree[V]) Search(s uint64) int {
	if !t.sumsEnabled || t.root.absent() {
		return -1
	}
	if t.totalSumCache < s {
		return -1
	}
	if t.root.isLeaf {
		leaf := t.arena.get(t.root.leaf).(SummableLeaf[V])
		return leaf.Search(s)
	}
	node := t.root.node
	base := 0
	target := s
	for {
		idx := node.searchOnSumDeque(target)
		if idx < 0 {
			return -1
		}
		for k := 0; k < idx; k++ {
			base += node.count[k]
			target -= node.sum[k]
		}
		if node.isParentOfLeaves {
			leaf := t.arena.get(node.children[idx]).(SummableLeaf[V])
			local := leaf.Search(target)
			if local < 0 {
				return -1
			}
			return base + local
		}
		node = node.kids[idx]
	}
}

// DescendByComplement descends by the (count-sum) aggregate, used by
// DBS.Select0. target is 1-indexed: passing k locates the leaf holding
// the k-th 0-bit. It returns that leaf, the count of elements preceding
// it, and the residual 1-indexed target to resolve inside the leaf via
// its own Select0.
func (t *Tree[V]) DescendByComplement(target int) (leafIdx, base, localTarget int, ok bool) {
	if t.root.absent() {
		return 0, 0, 0, false
	}
	if t.root.isLeaf {
		return t.root.leaf, 0, target, true
	}
	node := t.root.node
	for {
		idx := node.searchOnComplementDeque(target)
		if idx < 0 {
			return 0, 0, 0, false
		}
		for k := 0; k < idx; k++ {
			base += node.count[k]
			target -= node.count[k] - int(node.sum[k])
		}
		if node.isParentOfLeaves {
			return node.children[idx], base, target, true
		}
		node = node.kids[idx]
	}
}

// ---------------------------------------------------------------------
// Insertion
// ---------------------------------------------------------------------

func (t *Tree[V]) PushBack(v V) error  { return t.Insert(t.size, v) }
func (t *Tree[V]) PushFront(v V) error { return t.Insert(0, v) }

func (t *Tree[V]) PushManyBack(vs []V) error {
	for _, v := range vs {
		if err := t.Insert(t.size, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree[V]) PushManyFront(vs []V) error {
	for i := len(vs) - 1; i >= 0; i-- {
		if err := t.Insert(0, vs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree[V]) Insert(i int, v V) error {
	if i < 0 || i > t.size {
		return ErrOutOfRange
	}
	if t.root.absent() {
		leaf := t.newLeaf()
		leaf.PushBack(v)
		idx := t.arena.alloc(leaf)
		t.root = nodeHandle[V]{isLeaf: true, leaf: idx}
		t.height = 1
		t.size = 1
		if t.sumsEnabled {
			t.totalSumCache = t.weightFn(v)
		}
		t.debugCheck()
		return nil
	}

	path, leafIdx, offset := t.locate(i, true)
	leaf := t.arena.get(leafIdx)
	leaf.Insert(offset, v)
	t.size++

	var w uint64
	if t.sumsEnabled {
		w = t.weightFn(v)
		t.totalSumCache += w
	}
	for _, pe := range path {
		pe.node.increment(pe.idx, 1, int64(w))
	}

	if leaf.Size() > t.lMax {
		t.afterInsertOverflow(path, leafIdx)
	}
	t.debugCheck()
	return nil
}

func (t *Tree[V]) afterInsertOverflow(path []pathEntry[V], leafIdx int) {
	if len(path) > 0 {
		parent := path[len(path)-1].node
		childPos := path[len(path)-1].idx
		if t.tryShiftLeafSibling(parent, childPos) {
			return
		}
	}
	right := t.splitLeaf(leafIdx)
	t.insertNewLeafSibling(path, right)
}

// tryShiftLeafSibling tries to resolve a leaf overflow by moving values
// into a neighbour with headroom, preferring the left sibling.
func (t *Tree[V]) tryShiftLeafSibling(parent *internalNode[V], childIdx int) bool {
	leafIdx := parent.childLeaf(childIdx)
	leaf := t.arena.get(leafIdx)
	overflow := leaf.Size() - t.lMax
	if overflow <= 0 {
		return true
	}

	if childIdx > 0 {
		leftIdx := parent.childLeaf(childIdx - 1)
		left := t.arena.get(leftIdx)
		room := t.lMax - left.Size()
		if room > 0 {
			k := overflow
			if t.SuperLeftPushMode {
				k = room
			}
			if k > room {
				k = room
			}
			if k > leaf.Size() {
				k = leaf.Size()
			}
			if k > 0 {
				moved := leaf.PopFront(k)
				left.PushManyBack(moved)
				t.notifyMigrate(leafIdx, leftIdx, moved)
				parent.count[childIdx-1] = left.Size()
				parent.count[childIdx] = leaf.Size()
				if parent.sum != nil {
					parent.sum[childIdx-1] = t.leafWeight(left)
					parent.sum[childIdx] = t.leafWeight(leaf)
				}
				if leaf.Size() <= t.lMax {
					return true
				}
			}
		}
	}

	if childIdx < parent.degree()-1 {
		rightIdx := parent.childLeaf(childIdx + 1)
		right := t.arena.get(rightIdx)
		room := t.lMax - right.Size()
		if room > 0 {
			k := overflow
			if k > room {
				k = room
			}
			if k > leaf.Size() {
				k = leaf.Size()
			}
			if k > 0 {
				moved := leaf.PopBack(k)
				right.PushManyFront(moved)
				t.notifyMigrate(leafIdx, rightIdx, moved)
				parent.count[childIdx+1] = right.Size()
				parent.count[childIdx] = leaf.Size()
				if parent.sum != nil {
					parent.sum[childIdx+1] = t.leafWeight(right)
					parent.sum[childIdx] = t.leafWeight(leaf)
				}
				if leaf.Size() <= t.lMax {
					return true
				}
			}
		}
	}

	return leaf.Size() <= t.lMax
}

// splitLeaf splits the overflowing leaf at leafIdx in place (it keeps the
// left half) and returns the arena index of the new right sibling.
func (t *Tree[V]) splitLeaf(leafIdx int) int {
	leaf := t.arena.get(leafIdx)
	d := leaf.Size()
	rightCount := d - d/2 // ceil(d/2); left keeps floor(d/2)
	moved := leaf.PopBack(rightCount)
	right := t.newLeaf()
	right.PushManyBack(moved)
	rightIdx := t.arena.alloc(right)
	t.notifyMigrate(leafIdx, rightIdx, moved)
	return rightIdx
}

// insertNewLeafSibling inserts rightLeaf as the sibling immediately after
// the leaf path descended through, creating a new root if necessary.
func (t *Tree[V]) insertNewLeafSibling(path []pathEntry[V], rightLeaf int) {
	if len(path) == 0 {
		leftLeaf := t.root.leaf
		newRoot := newInternalNode[V](true, t.sumsEnabled)
		lc := t.arena.get(leftLeaf)
		rc := t.arena.get(rightLeaf)
		newRoot.appendLeafChild(leftLeaf, lc.Size(), t.leafWeight(lc))
		newRoot.appendLeafChild(rightLeaf, rc.Size(), t.leafWeight(rc))
		t.root = nodeHandle[V]{node: newRoot}
		t.height = 2
		return
	}
	level := len(path) - 1
	parent := path[level].node
	childIdx := path[level].idx
	lc := t.arena.get(parent.childLeaf(childIdx))
	parent.count[childIdx] = lc.Size()
	if parent.sum != nil {
		parent.sum[childIdx] = t.leafWeight(lc)
	}
	rc := t.arena.get(rightLeaf)
	parent.insertLeafChild(childIdx+1, rightLeaf, rc.Size(), t.leafWeight(rc))
	t.fixupAfterChildInsert(path, level)
}

// fixupAfterChildInsert checks the node at path[level] for overflow after
// a child was just inserted into it, shifting to a sibling, splitting, or
// growing a new root as needed.
func (t *Tree[V]) fixupAfterChildInsert(path []pathEntry[V], level int) {
	parent := path[level].node
	if parent.degree() <= t.dMax {
		return
	}
	if level > 0 {
		gp := path[level-1].node
		gIdx := path[level-1].idx
		if t.tryShiftNodeSibling(gp, gIdx) {
			return
		}
	}
	right := t.splitInternalNode(parent)
	if level == 0 {
		newRoot := newInternalNode[V](false, t.sumsEnabled)
		newRoot.appendNodeChild(parent, parent.totalCount(), parent.totalSum())
		newRoot.appendNodeChild(right, right.totalCount(), right.totalSum())
		t.root = nodeHandle[V]{node: newRoot}
		t.height++
		return
	}
	gp := path[level-1].node
	gIdx := path[level-1].idx
	gp.count[gIdx] = parent.totalCount()
	if gp.sum != nil {
		gp.sum[gIdx] = parent.totalSum()
	}
	gp.insertNodeChild(gIdx+1, right, right.totalCount(), right.totalSum())
	t.fixupAfterChildInsert(path, level-1)
}

// tryShiftNodeSibling is the internal-node analogue of
// tryShiftLeafSibling, shifting whole children instead of values.
func (t *Tree[V]) tryShiftNodeSibling(parent *internalNode[V], childIdx int) bool {
	node := parent.childNode(childIdx)
	overflow := node.degree() - t.dMax
	if overflow <= 0 {
		return true
	}
	if childIdx > 0 {
		left := parent.childNode(childIdx - 1)
		room := t.dMax - left.degree()
		if room > 0 {
			k := overflow
			if t.SuperLeftPushMode {
				k = room
			}
			if k > room {
				k = room
			}
			if k > 0 {
				t.shiftNodeChildrenRightToLeft(left, node, k)
				parent.count[childIdx-1] = left.totalCount()
				parent.count[childIdx] = node.totalCount()
				if parent.sum != nil {
					parent.sum[childIdx-1] = left.totalSum()
					parent.sum[childIdx] = node.totalSum()
				}
				if node.degree() <= t.dMax {
					return true
				}
			}
		}
	}
	if childIdx < parent.degree()-1 {
		right := parent.childNode(childIdx + 1)
		room := t.dMax - right.degree()
		if room > 0 {
			k := overflow
			if k > room {
				k = room
			}
			if k > 0 {
				t.shiftNodeChildrenLeftToRight(node, right, k)
				parent.count[childIdx+1] = right.totalCount()
				parent.count[childIdx] = node.totalCount()
				if parent.sum != nil {
					parent.sum[childIdx+1] = right.totalSum()
					parent.sum[childIdx] = node.totalSum()
				}
				if node.degree() <= t.dMax {
					return true
				}
			}
		}
	}
	return node.degree() <= t.dMax
}

func (t *Tree[V]) splitInternalNode(n *internalNode[V]) *internalNode[V] {
	d := n.degree()
	rightCount := d - d/2
	leftCount := d - rightCount
	right := t.pool.get(n.isParentOfLeaves, t.sumsEnabled)
	if n.isParentOfLeaves {
		right.children = append(right.children, n.children[leftCount:]...)
		n.children = n.children[:leftCount]
	} else {
		right.kids = append(right.kids, n.kids[leftCount:]...)
		n.kids = n.kids[:leftCount]
		right.reindexKids()
	}
	right.count = append(right.count, n.count[leftCount:]...)
	n.count = n.count[:leftCount]
	if n.sum != nil {
		right.sum = append(right.sum, n.sum[leftCount:]...)
		n.sum = n.sum[:leftCount]
	}
	return right
}

// ---------------------------------------------------------------------
// Removal
// ---------------------------------------------------------------------

func (t *Tree[V]) Remove(i int) (V, error) {
	var zero V
	if i < 0 || i >= t.size {
		return zero, ErrOutOfRange
	}
	path, leafIdx, offset := t.locate(i, false)
	leaf := t.arena.get(leafIdx)
	v := leaf.Remove(offset)
	t.size--

	var deltaSum int64
	if t.sumsEnabled {
		w := t.weightFn(v)
		t.totalSumCache -= w
		deltaSum = -int64(w)
	}
	for _, pe := range path {
		pe.node.increment(pe.idx, -1, deltaSum)
	}

	t.afterRemoveFixup(path, leafIdx)
	t.debugCheck()
	return v, nil
}

func (t *Tree[V]) afterRemoveFixup(path []pathEntry[V], leafIdx int) {
	leaf := t.arena.get(leafIdx)
	if len(path) == 0 {
		if leaf.Size() == 0 {
			t.arena.retire(leafIdx)
			t.root = nodeHandle[V]{}
			t.height = 0
		}
		return
	}
	minLeaf := t.lMax / 2
	if leaf.Size() >= minLeaf {
		return
	}
	level := len(path) - 1
	parent := path[level].node
	childIdx := path[level].idx
	if t.tryBorrowLeaf(parent, childIdx) {
		return
	}
	removePos := t.mergeLeaf(parent, childIdx)
	parent.removeChild(removePos)
	t.fixupAfterChildRemove(path, level)
}

func (t *Tree[V]) tryBorrowLeaf(parent *internalNode[V], childIdx int) bool {
	leaf := t.arena.get(parent.childLeaf(childIdx))
	minLeaf := t.lMax / 2
	if childIdx > 0 {
		leftIdx := parent.childLeaf(childIdx - 1)
		left := t.arena.get(leftIdx)
		if left.Size() > minLeaf {
			moved := left.PopBack(1)
			leaf.PushManyFront(moved)
			t.notifyMigrate(leftIdx, parent.childLeaf(childIdx), moved)
			parent.count[childIdx-1] = left.Size()
			parent.count[childIdx] = leaf.Size()
			if parent.sum != nil {
				parent.sum[childIdx-1] = t.leafWeight(left)
				parent.sum[childIdx] = t.leafWeight(leaf)
			}
			return true
		}
	}
	if childIdx < parent.degree()-1 {
		rightIdx := parent.childLeaf(childIdx + 1)
		right := t.arena.get(rightIdx)
		if right.Size() > minLeaf {
			moved := right.PopFront(1)
			leaf.PushManyBack(moved)
			t.notifyMigrate(rightIdx, parent.childLeaf(childIdx), moved)
			parent.count[childIdx+1] = right.Size()
			parent.count[childIdx] = leaf.Size()
			if parent.sum != nil {
				parent.sum[childIdx+1] = t.leafWeight(right)
				parent.sum[childIdx] = t.leafWeight(leaf)
			}
			return true
		}
	}
	return false
}

// mergeLeaf merges the leaf at childIdx with a neighbour (left preferred)
// and returns the parent position that must now be removed.
func (t *Tree[V]) mergeLeaf(parent *internalNode[V], childIdx int) int {
	var leftPos, rightPos int
	if childIdx > 0 {
		leftPos, rightPos = childIdx-1, childIdx
	} else {
		leftPos, rightPos = childIdx, childIdx+1
	}
	leftIdx := parent.childLeaf(leftPos)
	rightIdx := parent.childLeaf(rightPos)
	left := t.arena.get(leftIdx)
	right := t.arena.get(rightIdx)

	moved := right.PopFront(right.Size())
	left.PushManyBack(moved)
	t.notifyMigrate(rightIdx, leftIdx, moved)

	parent.count[leftPos] = left.Size()
	if parent.sum != nil {
		parent.sum[leftPos] = t.leafWeight(left)
	}
	t.arena.retire(rightIdx)
	return rightPos
}

// fixupAfterChildRemove checks the node at path[level] for underflow
// after a child was just removed from it.
func (t *Tree[V]) fixupAfterChildRemove(path []pathEntry[V], level int) {
	if level < 0 {
		return
	}
	node := path[level].node
	if level == 0 {
		if node.degree() == 1 {
			t.collapseRoot(node)
		}
		return
	}
	minDeg := t.dMax / 2
	if node.degree() >= minDeg {
		return
	}
	parent := path[level-1].node
	childIdx := path[level-1].idx
	if t.tryBorrowNode(parent, childIdx) {
		return
	}
	removePos := t.mergeNode(parent, childIdx)
	parent.removeChild(removePos)
	t.fixupAfterChildRemove(path, level-1)
}

func (t *Tree[V]) collapseRoot(root *internalNode[V]) {
	if root.isParentOfLeaves {
		leafIdx := root.children[0]
		t.root = nodeHandle[V]{isLeaf: true, leaf: leafIdx}
		t.height = 1
	} else {
		child := root.kids[0]
		child.parent = nil
		t.root = nodeHandle[V]{node: child}
		t.height--
	}
	t.pool.put(root)
}

func (t *Tree[V]) tryBorrowNode(parent *internalNode[V], childIdx int) bool {
	node := parent.childNode(childIdx)
	minDeg := t.dMax / 2
	if childIdx > 0 {
		left := parent.childNode(childIdx - 1)
		if left.degree() > minDeg {
			t.shiftNodeChildrenLeftToRight(left, node, 1)
			parent.count[childIdx-1] = left.totalCount()
			parent.count[childIdx] = node.totalCount()
			if parent.sum != nil {
				parent.sum[childIdx-1] = left.totalSum()
				parent.sum[childIdx] = node.totalSum()
			}
			return true
		}
	}
	if childIdx < parent.degree()-1 {
		right := parent.childNode(childIdx + 1)
		if right.degree() > minDeg {
			t.shiftNodeChildrenRightToLeft(node, right, 1)
			parent.count[childIdx+1] = right.totalCount()
			parent.count[childIdx] = node.totalCount()
			if parent.sum != nil {
				parent.sum[childIdx+1] = right.totalSum()
				parent.sum[childIdx] = node.totalSum()
			}
			return true
		}
	}
	return false
}

func (t *Tree[V]) mergeNode(parent *internalNode[V], childIdx int) int {
	var leftPos, rightPos int
	if childIdx > 0 {
		leftPos, rightPos = childIdx-1, childIdx
	} else {
		leftPos, rightPos = childIdx, childIdx+1
	}
	left := parent.childNode(leftPos)
	right := parent.childNode(rightPos)
	for right.degree() > 0 {
		cnt := right.count[0]
		var sum uint64
		if right.sum != nil {
			sum = right.sum[0]
		}
		if right.isParentOfLeaves {
			left.appendLeafChild(right.children[0], cnt, sum)
		} else {
			left.appendNodeChild(right.kids[0], cnt, sum)
		}
		right.removeChild(0)
	}
	parent.count[leftPos] = left.totalCount()
	if parent.sum != nil {
		parent.sum[leftPos] = left.totalSum()
	}
	t.pool.put(right)
	return rightPos
}

// shiftNodeChildrenLeftToRight moves left's last k children to right's
// front, preserving order.
func (t *Tree[V]) shiftNodeChildrenLeftToRight(left, right *internalNode[V], k int) {
	n := left.degree()
	type moved struct {
		leaf int
		node *internalNode[V]
		cnt  int
		sum  uint64
	}
	items := make([]moved, k)
	for i := 0; i < k; i++ {
		src := n - k + i
		m := moved{cnt: left.count[src]}
		if left.sum != nil {
			m.sum = left.sum[src]
		}
		if left.isParentOfLeaves {
			m.leaf = left.children[src]
		} else {
			m.node = left.kids[src]
		}
		items[i] = m
	}
	left.count = left.count[:n-k]
	if left.sum != nil {
		left.sum = left.sum[:n-k]
	}
	if left.isParentOfLeaves {
		left.children = left.children[:n-k]
	} else {
		left.kids = left.kids[:n-k]
	}
	for i := k - 1; i >= 0; i-- {
		it := items[i]
		if right.isParentOfLeaves {
			right.insertLeafChild(0, it.leaf, it.cnt, it.sum)
		} else {
			right.insertNodeChild(0, it.node, it.cnt, it.sum)
		}
	}
}

// shiftNodeChildrenRightToLeft moves right's first k children to left's
// back, preserving order.
func (t *Tree[V]) shiftNodeChildrenRightToLeft(left, right *internalNode[V], k int) {
	for i := 0; i < k; i++ {
		cnt := right.count[0]
		var sum uint64
		if right.sum != nil {
			sum = right.sum[0]
		}
		if right.isParentOfLeaves {
			leaf := right.children[0]
			left.appendLeafChild(leaf, cnt, sum)
		} else {
			node := right.kids[0]
			left.appendNodeChild(node, cnt, sum)
		}
		right.removeChild(0)
	}
}

// ---------------------------------------------------------------------
// Bulk build
// ---------------------------------------------------------------------

// chunkSizes partitions total items into chunks of at most max each,
// guaranteeing every chunk (including the last) stays within
// [max/2, max], per the leaf/internal-node size invariant.
func chunkSizes(total, max int) []int {
	if total == 0 {
		return nil
	}
	if total <= max {
		return []int{total}
	}
	var sizes []int
	remaining := total
	for remaining > max {
		if remaining-max >= max/2 {
			sizes = append(sizes, max)
			remaining -= max
		} else {
			left := remaining / 2
			right := remaining - left
			sizes = append(sizes, left, right)
			remaining = 0
		}
	}
	if remaining > 0 {
		sizes = append(sizes, remaining)
	}
	return sizes
}

type buildItem[V any] struct {
	isLeaf bool
	leaf   int
	node   *internalNode[V]
	count  int
	sum    uint64
}

// BulkBuild replaces the tree's contents with values, chunking the input
// into full leaves and building each internal level bottom-up.
func (t *Tree[V]) BulkBuild(values []V) error {
	t.Clear()
	if len(values) == 0 {
		return nil
	}
	sizes := chunkSizes(len(values), t.lMax)
	items := make([]buildItem[V], len(sizes))
	offset := 0
	for i, sz := range sizes {
		leaf := t.newLeaf()
		leaf.PushManyBack(values[offset : offset+sz])
		idx := t.arena.alloc(leaf)
		items[i] = buildItem[V]{isLeaf: true, leaf: idx, count: sz, sum: t.leafWeight(leaf)}
		offset += sz
	}
	t.buildFromItems(items, len(values))
	t.debugCheck()
	return nil
}

func (t *Tree[V]) buildFromItems(items []buildItem[V], totalSize int) {
	if len(items) == 0 {
		t.root = nodeHandle[V]{}
		t.height = 0
		t.size = 0
		t.totalSumCache = 0
		return
	}
	height := 1
	for len(items) > 1 {
		groupSizes := chunkSizes(len(items), t.dMax)
		var next []buildItem[V]
		gi := 0
		for _, gs := range groupSizes {
			isParentOfLeaves := items[gi].isLeaf
			node := newInternalNode[V](isParentOfLeaves, t.sumsEnabled)
			var cnt int
			var sum uint64
			for k := 0; k < gs; k++ {
				it := items[gi+k]
				if isParentOfLeaves {
					node.appendLeafChild(it.leaf, it.count, it.sum)
				} else {
					node.appendNodeChild(it.node, it.count, it.sum)
				}
				cnt += it.count
				sum += it.sum
			}
			next = append(next, buildItem[V]{node: node, count: cnt, sum: sum})
			gi += gs
		}
		items = next
		height++
	}
	root := items[0]
	if root.isLeaf {
		t.root = nodeHandle[V]{isLeaf: true, leaf: root.leaf}
		t.height = 1
	} else {
		t.root = nodeHandle[V]{node: root.node}
		t.height = height
	}
	t.size = totalSize
	t.totalSumCache = root.sum
}

// ---------------------------------------------------------------------
// Leaf sort / defragmentation
// ---------------------------------------------------------------------

func (t *Tree[V]) collectLeafOrder() []int {
	if t.root.absent() {
		return nil
	}
	if t.root.isLeaf {
		return []int{t.root.leaf}
	}
	var order []int
	var walk func(n *internalNode[V])
	walk = func(n *internalNode[V]) {
		if n.isParentOfLeaves {
			order = append(order, n.children...)
		} else {
			for _, k := range n.kids {
				walk(k)
			}
		}
	}
	walk(t.root.node)
	return order
}

// SortLeaves rearranges the leaf arena into left-to-right logical order,
// as required before serialization. It rebuilds the arena directly
// (rather than swapping pairs in place) and reports the full
// old-index -> new-index remap via OnReindex so cross-linked façades
// (the permutation trees) can rewrite partner references in one pass.
func (t *Tree[V]) SortLeaves() {
	order := t.collectLeafOrder()
	n := len(order)
	if n == 0 {
		return
	}
	alreadySorted := true
	for i, idx := range order {
		if idx != i {
			alreadySorted = false
			break
		}
	}
	if alreadySorted && len(t.arena.leaves) == n {
		return
	}

	oldToNew := make(map[int]int, n)
	newLeaves := make([]LeafContainer[V], n)
	for newIdx, oldIdx := range order {
		newLeaves[newIdx] = t.arena.leaves[oldIdx]
		oldToNew[oldIdx] = newIdx
	}
	t.arena.leaves = newLeaves
	t.arena.occupied = make([]bool, n)
	for i := range t.arena.occupied {
		t.arena.occupied[i] = true
	}
	t.arena.freeList = nil

	t.remapLeafIndices(oldToNew)
	if t.OnReindex != nil {
		t.OnReindex(oldToNew)
	}
}

func (t *Tree[V]) remapLeafIndices(oldToNew map[int]int) {
	if t.root.absent() {
		return
	}
	if t.root.isLeaf {
		t.root.leaf = oldToNew[t.root.leaf]
		return
	}
	var walk func(n *internalNode[V])
	walk = func(n *internalNode[V]) {
		if n.isParentOfLeaves {
			for i, c := range n.children {
				n.children[i] = oldToNew[c]
			}
		} else {
			for _, k := range n.kids {
				walk(k)
			}
		}
	}
	walk(t.root.node)
}

// ---------------------------------------------------------------------
// Serialisation
// ---------------------------------------------------------------------

// Serialize writes D_max, L_max, the leaf count, and every leaf (in
// left-to-right order) to w. It sorts the leaf arena first so the file
// format is a plain sequence of leaves; serialization is the sanctioned
// caller of SortLeaves.
func (t *Tree[V]) Serialize(w io.Writer) error {
	t.SortLeaves()
	if err := binary.Write(w, binary.LittleEndian, uint64(t.dMax)); err != nil {
		return fmt.Errorf("bptree: write dMax: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(t.lMax)); err != nil {
		return fmt.Errorf("bptree: write lMax: %w", err)
	}
	leaves := t.collectLeafOrder()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(leaves))); err != nil {
		return fmt.Errorf("bptree: write leaf count: %w", err)
	}
	for _, idx := range leaves {
		if err := t.arena.get(idx).Serialize(w); err != nil {
			return fmt.Errorf("bptree: write leaf %d: %w", idx, err)
		}
	}
	return nil
}

// unbufferedByteReader adds ReadByte to a plain io.Reader by issuing
// one-byte reads. Unlike a buffered wrapper it never reads past the
// bytes it returns, so the underlying stream stays positioned exactly
// where the last consumed byte left it and remains usable by callers
// that continue reading the same stream (the next leaf, the next tree
// blob in a multi-tree file).
type unbufferedByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *unbufferedByteReader) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *unbufferedByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// leafStreamReader returns r itself when it can already serve byte-wise
// reads, and otherwise one shared unbuffered adapter, so every leaf's
// Deserialize sees the same reader and no bytes are skipped between
// leaves.
func leafStreamReader(r io.Reader) io.Reader {
	if _, ok := r.(io.ByteReader); ok {
		return r
	}
	return &unbufferedByteReader{r: r}
}

// Deserialize replaces the tree's contents by reading a stream written by
// Serialize.
func (t *Tree[V]) Deserialize(r io.Reader) error {
	var dMax, lMax, n uint64
	if err := binary.Read(r, binary.LittleEndian, &dMax); err != nil {
		return fmt.Errorf("bptree: read dMax: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &lMax); err != nil {
		return fmt.Errorf("bptree: read lMax: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("bptree: read leaf count: %w", err)
	}
	if dMax < 4 || lMax < 4 {
		return ErrConfig
	}
	t.dMax = int(dMax)
	t.lMax = int(lMax)
	t.arena = newLeafArena[V]()
	t.pool = &nodePool[V]{}

	if n == 0 {
		t.root = nodeHandle[V]{}
		t.height = 0
		t.size = 0
		t.totalSumCache = 0
		return nil
	}

	lr := leafStreamReader(r)
	items := make([]buildItem[V], n)
	total := 0
	for i := uint64(0); i < n; i++ {
		leaf := t.newLeaf()
		if err := leaf.Deserialize(lr); err != nil {
			return fmt.Errorf("bptree: read leaf %d: %w", i, err)
		}
		idx := t.arena.alloc(leaf)
		items[i] = buildItem[V]{isLeaf: true, leaf: idx, count: leaf.Size(), sum: t.leafWeight(leaf)}
		total += leaf.Size()
	}
	t.buildFromItems(items, total)
	return nil
}

// ---------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------

// MemoryUsageLine is one line of a get_memory_usage_info report.
type MemoryUsageLine struct {
	Paragraph int
	Label     string
	Bytes     uint64
}

// approxNodeBytes is a rough per-internal-node accounting (two int
// slices plus a uint64 slice plus bookkeeping fields), good enough for a
// comparative memory report rather than an exact allocator accounting.
const approxNodeBytes = 96

// GetMemoryUsageInfo reports the tree's leaf-arena and internal-node
// memory footprint, indented by paragraph.
func (t *Tree[V]) GetMemoryUsageInfo(paragraph int) []MemoryUsageLine {
	var leafBytes uint64
	for i, occ := range t.arena.occupied {
		if occ {
			leafBytes += uint64(t.arena.leaves[i].ByteSize())
		}
	}
	nodeBytes := uint64(t.countNodes()) * approxNodeBytes
	return []MemoryUsageLine{
		{paragraph, "leaf_arena", leafBytes},
		{paragraph, "internal_nodes", nodeBytes},
	}
}

// SizeInBytes is the total reported by GetMemoryUsageInfo plus the fixed
// header.
func (t *Tree[V]) SizeInBytes() uint64 {
	var total uint64 = 24 // dMax + lMax + leaf count, little-endian u64 each
	for _, line := range t.GetMemoryUsageInfo(0) {
		total += line.Bytes
	}
	return total
}

func (t *Tree[V]) countNodes() int {
	if t.root.isLeaf || t.root.absent() {
		return 0
	}
	n := 0
	var walk func(node *internalNode[V])
	walk = func(node *internalNode[V]) {
		n++
		if !node.isParentOfLeaves {
			for _, k := range node.kids {
				walk(k)
			}
		}
	}
	walk(t.root.node)
	return n
}

// debugCheck runs the full invariant verification after a mutating
// operation when DebugChecks is set, aborting with a diagnostic on the
// first mismatch.
func (t *Tree[V]) debugCheck() {
	if !DebugChecks {
		return
	}
	if err := t.Verify(); err != nil {
		invariantViolation(err.Error())
	}
}

// Verify recomputes every aggregate from scratch and compares it against
// what the tree currently reports, returning an error on mismatch. It is
// intended for tests and for DebugChecks-gated assertions, not the hot
// path.
func (t *Tree[V]) Verify() error {
	if t.root.absent() {
		if t.size != 0 {
			return fmt.Errorf("bptree: empty root but size=%d", t.size)
		}
		return nil
	}
	cnt, sum, leafCount, err := t.verifyNode(t.root)
	if err != nil {
		return err
	}
	if cnt != t.size {
		return fmt.Errorf("bptree: size mismatch: tracked=%d actual=%d", t.size, cnt)
	}
	if t.sumsEnabled && sum != t.totalSumCache {
		return fmt.Errorf("bptree: sum mismatch: tracked=%d actual=%d", t.totalSumCache, sum)
	}
	if !t.root.isLeaf && t.root.node.degree() < 2 {
		return fmt.Errorf("bptree: root internal node has degree %d < 2", t.root.node.degree())
	}
	if leafCount > 1 {
		for _, idx := range t.collectLeafOrder() {
			sz := t.arena.get(idx).Size()
			if sz < t.lMax/2 || sz > t.lMax {
				return fmt.Errorf("bptree: leaf %d has size %d outside [%d, %d]", idx, sz, t.lMax/2, t.lMax)
			}
		}
	}
	return nil
}

func (t *Tree[V]) verifyNode(h nodeHandle[V]) (count int, sum uint64, leaves int, err error) {
	if h.isLeaf {
		leaf := t.arena.get(h.leaf)
		return leaf.Size(), t.leafWeight(leaf), 1, nil
	}
	n := h.node
	if n.degree() > t.dMax {
		return 0, 0, 0, fmt.Errorf("bptree: internal node has degree %d > %d", n.degree(), t.dMax)
	}
	if n != t.root.node && n.degree() < t.dMax/2 {
		return 0, 0, 0, fmt.Errorf("bptree: non-root internal node has degree %d < %d", n.degree(), t.dMax/2)
	}
	for i := 0; i < n.degree(); i++ {
		var childCnt int
		var childSum uint64
		var childLeaves int
		if n.isParentOfLeaves {
			leaf := t.arena.get(n.children[i])
			childCnt = leaf.Size()
			childSum = t.leafWeight(leaf)
			childLeaves = 1
		} else {
			childCnt, childSum, childLeaves, err = t.verifyNode(nodeHandle[V]{node: n.kids[i]})
			if err != nil {
				return 0, 0, 0, err
			}
		}
		if childCnt != n.count[i] {
			return 0, 0, 0, fmt.Errorf("bptree: count aggregate mismatch at child %d: tracked=%d actual=%d", i, n.count[i], childCnt)
		}
		if t.sumsEnabled && childSum != n.sum[i] {
			return 0, 0, 0, fmt.Errorf("bptree: sum aggregate mismatch at child %d: tracked=%d actual=%d", i, n.sum[i], childSum)
		}
		count += childCnt
		sum += childSum
		leaves += childLeaves
	}
	return count, sum, leaves, nil
}
