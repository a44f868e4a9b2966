// Package rangetree implements the dynamic range-reporting tree façade
//: a weight-balanced wavelet tree over a permutation R[y] = x,
// represented level by level as a DBS of routing bits plus a DPS of node
// sizes, supporting point insertion/removal by rank and axis-aligned
// rectangle enumeration.
package rangetree

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/dbs"
	"github.com/succinct-go/dynseq/pkg/dps"
	"github.com/succinct-go/dynseq/pkg/facade"
)

func levelSuffix(h int) string { return "[level=" + strconv.Itoa(h) + "]" }

// DRR is a dynamic range-reporting tree over a permutation of x-ranks
// indexed by y-rank.
type DRR struct {
	height int
	bits   []*dbs.DBS
	lens   []*dps.DPS
	n      int
	dMax   int
	lMax   int
}

var _ facade.Facade = (*DRR)(nil)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// capacity0 is U(0,H): the root's upper-bound capacity.
func capacity0(h int) int {
	if h >= 3 {
		return 1 << uint(h-1)
	}
	return 2
}

// capacityAt is U(h,H) = U(0,H-h).
func capacityAt(h, height int) int { return capacity0(height - h) }

// pickHeight returns the minimal H with U(0,H) > n.
func pickHeight(n int) int {
	h := 1
	for capacity0(h) <= n {
		h++
	}
	return h
}

// New constructs an empty DRR with the given internal-node and leaf
// capacities passed through to every level's DBS/DPS.
func New(dMax, lMax int) (*DRR, error) {
	return newAtHeight(1, dMax, lMax)
}

func newAtHeight(height, dMax, lMax int) (*DRR, error) {
	r := &DRR{height: height, dMax: dMax, lMax: lMax}
	r.bits = make([]*dbs.DBS, height)
	r.lens = make([]*dps.DPS, height)
	for h := 0; h < height; h++ {
		b, err := dbs.New(dMax, lMax)
		if err != nil {
			return nil, err
		}
		l, err := dps.New(dMax, lMax)
		if err != nil {
			return nil, err
		}
		r.bits[h] = b
		r.lens[h] = l
		for id := 0; id < (1 << uint(h)); id++ {
			if err := l.PushBack(0); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *DRR) Size() int { return r.n }

func (r *DRR) SizeInBytes() uint64 {
	var total uint64
	for h := 0; h < r.height; h++ {
		total += r.bits[h].SizeInBytes() + r.lens[h].SizeInBytes()
	}
	return total
}

func (r *DRR) Verify() error {
	for h := 0; h < r.height; h++ {
		if r.lens[h].Size() != 1<<uint(h) {
			return bptree.ErrCorrupt
		}
		if err := r.bits[h].Verify(); err != nil {
			return err
		}
		if err := r.lens[h].Verify(); err != nil {
			return err
		}
	}
	return nil
}

func (r *DRR) Clear() {
	fresh, err := newAtHeight(1, r.dMax, r.lMax)
	if err != nil {
		return
	}
	*r = *fresh
}

// GetMemoryUsageInfo composes every level's bit/length reports under the
// "rangetree" label.
func (r *DRR) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	lines := []bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "rangetree"}}
	for h := 0; h < r.height; h++ {
		bitLines := r.bits[h].GetMemoryUsageInfo(paragraph + 1)
		if len(bitLines) > 0 {
			bitLines[0].Label = bitLines[0].Label + levelSuffix(h)
		}
		lenLines := r.lens[h].GetMemoryUsageInfo(paragraph + 1)
		if len(lenLines) > 0 {
			lenLines[0].Label = lenLines[0].Label + levelSuffix(h)
		}
		lines = append(lines, bitLines...)
		lines = append(lines, lenLines...)
	}
	return lines
}

// nodeStart returns the offset of node id's bit-string within bits[h].
func (r *DRR) nodeStart(h, id int) int {
	if id == 0 {
		return 0
	}
	v, _ := r.lens[h].Psum(id - 1)
	return int(v)
}

// nodeZeroCount returns the number of 0-bits currently stored in node
// (h,id): equivalently the current size of its left child.
func (r *DRR) nodeZeroCount(h, id int) int {
	off := r.nodeStart(h, id)
	sz, _ := r.lens[h].At(id)
	total, _ := r.bits[h].Rank0(off + int(sz))
	before, _ := r.bits[h].Rank0(off)
	return int(total - before)
}

// localInclusiveRank returns the count of bit b among node[0..localPos]
// inclusive, the position carried to the next level on insert/remove
// (mirrors pkg/dwt's descent primitive).
func localInclusiveRank(level *dbs.DBS, nodeOff, localPos int, b bool) int {
	global := nodeOff + localPos
	if b {
		total, _ := level.Rank1(global + 1)
		before, _ := level.Rank1(nodeOff)
		return int(total - before)
	}
	total, _ := level.Rank0(global + 1)
	before, _ := level.Rank0(nodeOff)
	return int(total - before)
}

// localExclusiveRank returns the count of bit b among node[0..localPos),
// the node-local position a new bit at localPos will occupy in the child
// once inserted.
func localExclusiveRank(level *dbs.DBS, nodeOff, localPos int, b bool) int {
	global := nodeOff + localPos
	if b {
		total, _ := level.Rank1(global)
		before, _ := level.Rank1(nodeOff)
		return int(total - before)
	}
	total, _ := level.Rank0(global)
	before, _ := level.Rank0(nodeOff)
	return int(total - before)
}

// localSelect returns the node-local position of the (localK+1)-th
// occurrence of bit b within node (level at offset nodeOff), or -1.
func localSelect(level *dbs.DBS, nodeOff, localK int, b bool) int {
	var before uint64
	if b {
		before, _ = level.Rank1(nodeOff)
	} else {
		before, _ = level.Rank0(nodeOff)
	}
	var global int
	if b {
		global = level.Select1(int(before) + localK)
	} else {
		global = level.Select0(int(before) + localK)
	}
	if global < 0 {
		return -1
	}
	return global - nodeOff
}

// addStep records one level of an Add descent, captured in a read-only
// routing pass so the write pass and the rebuild decision both see the
// pre-insert state.
type addStep struct {
	id      int
	nodeOff int
	pos     int
	bit     bool
}

// Add inserts the point (xRank, yRank) into the permutation. A read-only
// pass routes by comparing xRank to each visited node's current 0-count
// (its left subtree's size), then a write pass inserts one routing bit
// per level. At the bottom level a lone value is stored as a 0-bit, and
// a second arrival rewrites the pair so the 0-bit always marks the
// smaller x. If the
// target bottom node is already full, the point is spliced into a freshly
// reconstructed rank array instead, and any capacity overflow along the
// path triggers a whole-tree rebuild after the write pass.
func (r *DRR) Add(xRank, yRank int) error {
	if yRank < 0 || yRank > r.n || xRank < 0 || xRank > r.n {
		return bptree.ErrOutOfRange
	}

	steps := make([]addStep, r.height)
	pos, id, xr := yRank, 0, xRank
	overflow := r.n+1 >= capacity0(r.height)
	bottomFull := false
	for h := 0; h < r.height; h++ {
		nodeOff := r.nodeStart(h, id)
		sz, err := r.lens[h].At(id)
		if err != nil {
			return err
		}
		if int(sz)+1 > capacityAt(h, r.height) {
			overflow = true
		}
		if h == r.height-1 {
			bottomFull = sz >= 2
			steps[h] = addStep{id: id, nodeOff: nodeOff, pos: pos, bit: xr != 0}
			break
		}
		leftCount := r.nodeZeroCount(h, id)
		var bit bool
		if xr >= leftCount {
			bit = true
			xr -= leftCount
		}
		steps[h] = addStep{id: id, nodeOff: nodeOff, pos: pos, bit: bit}
		pos = localExclusiveRank(r.bits[h], nodeOff, pos, bit)
		id = 2*id + boolToInt(bit)
	}

	if bottomFull {
		return r.rebuildWithPoint(xRank, yRank)
	}

	for h := 0; h < r.height; h++ {
		st := steps[h]
		if h == r.height-1 {
			sz, _ := r.lens[h].At(st.id)
			switch {
			case sz == 0:
				if err := r.bits[h].Insert(st.nodeOff+st.pos, false); err != nil {
					return err
				}
			case !st.bit:
				// New point takes local x 0; the resident entry moves up.
				if err := r.bits[h].SetBit(st.nodeOff, true); err != nil {
					return err
				}
				if err := r.bits[h].Insert(st.nodeOff+st.pos, false); err != nil {
					return err
				}
			default:
				if err := r.bits[h].SetBit(st.nodeOff, false); err != nil {
					return err
				}
				if err := r.bits[h].Insert(st.nodeOff+st.pos, true); err != nil {
					return err
				}
			}
		} else {
			if err := r.bits[h].Insert(st.nodeOff+st.pos, st.bit); err != nil {
				return err
			}
		}
		if err := r.lens[h].Increment(st.id, 1); err != nil {
			return err
		}
	}
	r.n++
	if overflow {
		return r.rebuildWholeTree()
	}
	return nil
}

// rebuildWithPoint reconstructs the rank array from the current (still
// consistent) tree, splices (xRank, yRank) into it, and rebuilds.
func (r *DRR) rebuildWithPoint(xRank, yRank int) error {
	perm := make([]int, 0, r.n+1)
	for y := 0; y < r.n; y++ {
		x, err := r.AccessXRank(y)
		if err != nil {
			return err
		}
		if x >= xRank {
			x++
		}
		perm = append(perm, x)
	}
	perm = append(perm, 0)
	copy(perm[yRank+1:], perm[yRank:])
	perm[yRank] = xRank
	return r.Build(perm)
}

// Remove deletes the point at yRank and returns its xRank.
func (r *DRR) Remove(yRank int) (int, error) {
	if yRank < 0 || yRank >= r.n {
		return 0, bptree.ErrOutOfRange
	}
	xr, err := r.AccessXRank(yRank)
	if err != nil {
		return 0, err
	}
	pos, id := yRank, 0
	for h := 0; h < r.height; h++ {
		nodeOff := r.nodeStart(h, id)
		bit, err := r.bits[h].At(nodeOff + pos)
		if err != nil {
			return 0, err
		}
		rank := localInclusiveRank(r.bits[h], nodeOff, pos, bit)
		if _, err := r.bits[h].Remove(nodeOff + pos); err != nil {
			return 0, err
		}
		sz, _ := r.lens[h].At(id)
		if err := r.lens[h].SetValue(id, sz-1); err != nil {
			return 0, err
		}
		pos = rank - 1
		id = 2*id + boolToInt(bit)
	}
	r.n--
	if r.height > 1 && r.n < capacity0(r.height)/2 {
		if err := r.rebuildWholeTree(); err != nil {
			return xr, err
		}
	}
	return xr, nil
}

// accessXFrom computes the x-rank offset, relative to node (h,id)'s own
// x-span, of the point at node-local position localPos.
func (r *DRR) accessXFrom(h, id, localPos int) int {
	pos, xr := localPos, 0
	for lvl := h; lvl < r.height; lvl++ {
		nodeOff := r.nodeStart(lvl, id)
		bit, _ := r.bits[lvl].At(nodeOff + pos)
		if bit {
			xr += r.nodeZeroCount(lvl, id)
		}
		rank := localInclusiveRank(r.bits[lvl], nodeOff, pos, bit)
		pos = rank - 1
		id = 2*id + boolToInt(bit)
	}
	return xr
}

// AccessXRank returns R[yRank], the x-rank of the point at y-rank yRank.
func (r *DRR) AccessXRank(yRank int) (int, error) {
	if yRank < 0 || yRank >= r.n {
		return 0, bptree.ErrOutOfRange
	}
	return r.accessXFrom(0, 0, yRank), nil
}

// AccessPoint is AccessXRank with an ok-style result instead of an error
// (a convenience wrapper for callers that prefer not to
// handle bptree's sentinel errors directly).
func (r *DRR) AccessPoint(yRank int) (int, bool) {
	x, err := r.AccessXRank(yRank)
	return x, err == nil
}

// AccessYRank returns the y-rank of the point whose x-rank is xRank, the
// inverse of AccessXRank: route top-down by comparing xRank against each
// node's current 0-count, then translate the resulting leaf position back
// up to a global y-rank via repeated select.
func (r *DRR) AccessYRank(xRank int) (int, error) {
	if xRank < 0 || xRank >= r.n {
		return 0, bptree.ErrOutOfRange
	}
	ids := make([]int, r.height+1)
	path := make([]bool, r.height)
	id, xr := 0, xRank
	for h := 0; h < r.height; h++ {
		leftCount := r.nodeZeroCount(h, id)
		var bit bool
		if xr < leftCount {
			bit = false
		} else {
			bit = true
			xr -= leftCount
		}
		path[h] = bit
		id = 2*id + boolToInt(bit)
		ids[h+1] = id
	}
	pos := xr
	for h := r.height - 1; h >= 0; h-- {
		nodeOff := r.nodeStart(h, ids[h])
		p := localSelect(r.bits[h], nodeOff, pos, path[h])
		if p < 0 {
			return 0, bptree.ErrCorrupt
		}
		pos = p
	}
	return pos, nil
}

// RangeReport lists the x-ranks of every point with x in [xMin,xMax] and
// y in [yMin,yMax].
func (r *DRR) RangeReport(xMin, xMax, yMin, yMax int) []int {
	var out []int
	if r.n == 0 {
		return out
	}
	if yMax >= r.n {
		yMax = r.n - 1
	}
	if yMin < 0 {
		yMin = 0
	}
	r.rangeReport(0, 0, 0, r.n, yMin, yMax, xMin, xMax, &out)
	return out
}

func (r *DRR) rangeReport(h, id, xlo, xhi, loLocal, hiLocal, xMin, xMax int, out *[]int) {
	if loLocal > hiLocal || xlo >= xhi {
		return
	}
	if xhi-1 < xMin || xlo > xMax {
		return
	}
	if h == r.height-1 || (xlo >= xMin && xhi-1 <= xMax) {
		for y := loLocal; y <= hiLocal; y++ {
			x := xlo + r.accessXFrom(h, id, y)
			if x >= xMin && x <= xMax {
				*out = append(*out, x)
			}
		}
		return
	}
	nodeOff := r.nodeStart(h, id)
	leftSz := r.nodeZeroCount(h, id)

	rank0Lo, _ := r.bits[h].Rank0(nodeOff + loLocal)
	rank0Before, _ := r.bits[h].Rank0(nodeOff)
	rank0HiP1, _ := r.bits[h].Rank0(nodeOff + hiLocal + 1)
	leftLo := int(rank0Lo - rank0Before)
	leftHi := int(rank0HiP1-rank0Before) - 1

	rank1Lo, _ := r.bits[h].Rank1(nodeOff + loLocal)
	rank1Before, _ := r.bits[h].Rank1(nodeOff)
	rank1HiP1, _ := r.bits[h].Rank1(nodeOff + hiLocal + 1)
	rightLo := int(rank1Lo - rank1Before)
	rightHi := int(rank1HiP1-rank1Before) - 1

	r.rangeReport(h+1, 2*id, xlo, xlo+leftSz, leftLo, leftHi, xMin, xMax, out)
	r.rangeReport(h+1, 2*id+1, xlo+leftSz, xhi, rightLo, rightHi, xMin, xMax, out)
}

// rebuildWholeTree reconstructs the permutation from scratch, choosing a
// new height to fit the current size. Any capacity violation along an
// insert/remove path funnels here, not only root overflow; see DESIGN.md
// for the trade against subtree-local rebuilds.
func (r *DRR) rebuildWholeTree() error {
	perm := make([]int, r.n)
	for y := 0; y < r.n; y++ {
		x, err := r.AccessXRank(y)
		if err != nil {
			return err
		}
		perm[y] = x
	}
	rebuilt, err := buildInternal(perm, r.dMax, r.lMax)
	if err != nil {
		return err
	}
	*r = *rebuilt
	return nil
}

type buildItem struct {
	localKey int
	y        int
}

// Build replaces the permutation with R, where R[y] is the x-rank of the
// point at y-rank y: pick the minimal height, then split each
// node's items into a left/right half by local rank, level by level.
func (r *DRR) Build(perm []int) error {
	rebuilt, err := buildInternal(perm, r.dMax, r.lMax)
	if err != nil {
		return err
	}
	*r = *rebuilt
	return nil
}

func buildInternal(perm []int, dMax, lMax int) (*DRR, error) {
	n := len(perm)
	height := pickHeight(n)
	r, err := newAtHeight(height, dMax, lMax)
	if err != nil {
		return nil, err
	}
	for h := range r.lens {
		r.lens[h].Clear()
	}

	items := make([]buildItem, n)
	for y, x := range perm {
		items[y] = buildItem{localKey: x, y: y}
	}
	level := [][]buildItem{items}

	for h := 0; h < height; h++ {
		next := make([][]buildItem, 0, 2*len(level))
		for id := 0; id < len(level); id++ {
			nodeItems := level[id]
			sz := len(nodeItems)
			half := (sz + 1) / 2
			left := make([]buildItem, 0, half)
			right := make([]buildItem, 0, sz-half)
			for _, it := range nodeItems {
				bit := it.localKey >= half
				if err := r.bits[h].PushBack(bit); err != nil {
					return nil, err
				}
				// The subset of keys below/at-or-above half is already a
				// dense, order-preserving range (0..half-1 or
				// half..sz-1), so the new local rank is a direct
				// reindex of the old one, not the scan order.
				if bit {
					right = append(right, buildItem{localKey: it.localKey - half, y: it.y})
				} else {
					left = append(left, buildItem{localKey: it.localKey, y: it.y})
				}
			}
			if err := r.lens[h].PushBack(uint64(sz)); err != nil {
				return nil, err
			}
			next = append(next, left, right)
		}
		level = next
	}
	r.n = n
	return r, nil
}

// Swap exchanges the contents of r and other.
func (r *DRR) Swap(other *DRR) { *r, *other = *other, *r }

func (r *DRR) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(r.height)); err != nil {
		return err
	}
	for h := 0; h < r.height; h++ {
		if err := r.bits[h].Serialize(w); err != nil {
			return err
		}
		if err := r.lens[h].Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

func (r *DRR) Deserialize(rd io.Reader) error {
	var height uint64
	if err := binary.Read(rd, binary.LittleEndian, &height); err != nil {
		return err
	}
	rebuilt, err := newAtHeight(int(height), r.dMax, r.lMax)
	if err != nil {
		return err
	}
	for h := 0; h < rebuilt.height; h++ {
		if err := rebuilt.bits[h].Deserialize(rd); err != nil {
			return err
		}
		rebuilt.lens[h].Clear()
		if err := rebuilt.lens[h].Deserialize(rd); err != nil {
			return err
		}
	}
	rootSize, err := rebuilt.lens[0].At(0)
	if err != nil {
		return err
	}
	rebuilt.n = int(rootSize)
	*r = *rebuilt
	return nil
}
