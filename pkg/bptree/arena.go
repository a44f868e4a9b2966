package bptree

// nodePoolCap bounds the retired-internal-node pool: a bounded
// stack of reusable node objects. Overflow entries are simply dropped for
// the garbage collector to reclaim.
const nodePoolCap = 4096

// leafArena owns the dense, growable vector of leaf containers plus the
// free-list of retired indices available for reuse. Addressing a
// leaf by its arena index instead of a pointer is what lets the
// permutation specialisation store cross-tree references as plain
// integers.
type leafArena[V any] struct {
	leaves   []LeafContainer[V]
	occupied []bool
	freeList []int
}

func newLeafArena[V any]() *leafArena[V] {
	return &leafArena[V]{}
}

// alloc installs leaf into the arena (reusing a retired slot if one is
// free) and returns its index.
func (a *leafArena[V]) alloc(leaf LeafContainer[V]) int {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.leaves[idx] = leaf
		a.occupied[idx] = true
		return idx
	}
	a.leaves = append(a.leaves, leaf)
	a.occupied = append(a.occupied, true)
	return len(a.leaves) - 1
}

// retire clears and frees idx for reuse.
func (a *leafArena[V]) retire(idx int) {
	a.leaves[idx].Clear()
	a.occupied[idx] = false
	a.freeList = append(a.freeList, idx)
}

func (a *leafArena[V]) get(idx int) LeafContainer[V] { return a.leaves[idx] }

func (a *leafArena[V]) set(idx int, leaf LeafContainer[V]) { a.leaves[idx] = leaf }

// nodePool is a bounded stack of retired internal-node objects available
// for reuse.
type nodePool[V any] struct {
	free []*internalNode[V]
}

func (p *nodePool[V]) get(isParentOfLeaves, sumsEnabled bool) *internalNode[V] {
	if n := len(p.free); n > 0 {
		node := p.free[n-1]
		p.free = p.free[:n-1]
		node.isParentOfLeaves = isParentOfLeaves
		node.children = node.children[:0]
		node.kids = node.kids[:0]
		node.count = node.count[:0]
		if sumsEnabled {
			if node.sum == nil {
				node.sum = make([]uint64, 0, 8)
			} else {
				node.sum = node.sum[:0]
			}
		} else {
			node.sum = nil
		}
		node.parent = nil
		node.parentEdge = 0
		return node
	}
	return newInternalNode[V](isParentOfLeaves, sumsEnabled)
}

func (p *nodePool[V]) put(n *internalNode[V]) {
	if len(p.free) >= nodePoolCap {
		return
	}
	p.free = append(p.free, n)
}
