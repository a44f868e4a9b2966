// Package permutation implements the dynamic permutation façade:
// two cross-linked B+ trees of (pointer, key) pairs, one holding π and
// one holding π⁻¹, kept mutually consistent across inserts, erases, and
// rebalancing moves via the engine's OnMigrate hook.
package permutation

import (
	"io"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/facade"
)

const stubKey = 0xFF

// Permutation holds T_π and T_π⁻¹. Both run with sums disabled;
// position is the only addressable dimension on either side.
type Permutation struct {
	pi    *bptree.Tree[bptree.PermItem]
	piInv *bptree.Tree[bptree.PermItem]
}

var _ facade.Facade = (*Permutation)(nil)

func zeroWeight(bptree.PermItem) uint64 { return 0 }

func newLinkedTree(dMax, lMax int) (*bptree.Tree[bptree.PermItem], error) {
	return bptree.NewTree[bptree.PermItem](dMax, lMax, false,
		func() bptree.LeafContainer[bptree.PermItem] { return bptree.NewPermLeaf() },
		zeroWeight,
	)
}

// New constructs an empty permutation over two trees with the given
// internal-node and leaf capacities.
func New(dMax, lMax int) (*Permutation, error) {
	pi, err := newLinkedTree(dMax, lMax)
	if err != nil {
		return nil, err
	}
	piInv, err := newLinkedTree(dMax, lMax)
	if err != nil {
		return nil, err
	}
	p := &Permutation{pi: pi, piInv: piInv}
	p.wireHooks()
	return p, nil
}

func (p *Permutation) wireHooks() {
	p.pi.OnMigrate = func(src, dst int, moved []bptree.PermItem) {
		p.onMigrate(p.pi, p.piInv, src, dst, moved)
	}
	p.piInv.OnMigrate = func(src, dst int, moved []bptree.PermItem) {
		p.onMigrate(p.piInv, p.pi, src, dst, moved)
	}
	// SortLeaves (fired by Serialize) remaps an entire tree's leaf arena
	// in one pass; OnReindex gives us the full old->new map in one
	// callback, which we apply to every Pointer in the other tree that
	// referenced a leaf of the tree that just got reindexed.
	p.pi.OnReindex = func(oldToNew map[int]int) { p.onReindex(p.piInv, oldToNew) }
	p.piInv.OnReindex = func(oldToNew map[int]int) { p.onReindex(p.pi, oldToNew) }
}

func (p *Permutation) onReindex(other *bptree.Tree[bptree.PermItem], oldToNew map[int]int) {
	if len(oldToNew) == 0 {
		return
	}
	seen := make(map[int]bool)
	n := other.Size()
	for i := 0; i < n; i++ {
		leafIdx, _, err := other.LeafIndexFor(i)
		if err != nil || seen[leafIdx] {
			continue
		}
		seen[leafIdx] = true
		leaf := other.LeafAt(leafIdx)
		vals := leaf.ToValues(nil)
		for j, v := range vals {
			newPtr, ok := oldToNew[int(v.Pointer)]
			if !ok || newPtr == int(v.Pointer) {
				continue
			}
			leaf.Remove(j)
			leaf.Insert(j, bptree.PermItem{Pointer: uint64(newPtr), Key: v.Key})
		}
	}
}

// onMigrate rewrites the partner entry in the other tree whenever an item
// moves between leaves in self. self is the tree the migration
// happened in; other is its cross-linked partner tree.
func (p *Permutation) onMigrate(self, other *bptree.Tree[bptree.PermItem], src, dst int, moved []bptree.PermItem) {
	for _, x := range moved {
		partnerLeaf := int(x.Pointer)
		yLeaf := other.LeafAt(partnerLeaf)
		vals := yLeaf.ToValues(nil)

		yIdx := -1
		for j, v := range vals {
			if v.Pointer == uint64(src) && v.Key == x.Key {
				yIdx = j
				break
			}
		}
		if yIdx < 0 {
			continue // partner not found: item has no live partner yet (transient stub)
		}

		keyTaken := false
		for j, v := range vals {
			if j != yIdx && v.Pointer == uint64(dst) && v.Key == x.Key {
				keyTaken = true
				break
			}
		}
		newKey := x.Key
		if keyTaken {
			newKey = yLeaf.(bptree.PermLeafOps[bptree.PermItem]).GetNewKey(uint64(dst))
		}

		yLeaf.Remove(yIdx)
		yLeaf.Insert(yIdx, bptree.PermItem{Pointer: uint64(dst), Key: newKey})

		if newKey != x.Key {
			selfLeaf := self.LeafAt(dst)
			svals := selfLeaf.ToValues(nil)
			for j, v := range svals {
				if v == x {
					selfLeaf.Remove(j)
					selfLeaf.Insert(j, bptree.PermItem{Pointer: x.Pointer, Key: newKey})
					break
				}
			}
		}
	}
}

func access(self, other *bptree.Tree[bptree.PermItem], i int) (int, error) {
	leafIdx, offset, err := self.LeafIndexFor(i)
	if err != nil {
		return 0, err
	}
	x := self.LeafAt(leafIdx).At(offset)
	yLeaf := other.LeafAt(int(x.Pointer))
	vals := yLeaf.ToValues(nil)
	for j, v := range vals {
		if v.Pointer == uint64(leafIdx) && v.Key == x.Key {
			pos, ok := other.PositionOfLeaf(int(x.Pointer), j)
			if !ok {
				return 0, bptree.ErrCorrupt
			}
			return pos, nil
		}
	}
	return 0, bptree.ErrCorrupt
}

// Pi returns π(i): the logical position in T_π⁻¹ of i's partner.
func (p *Permutation) Pi(i int) (int, error) { return access(p.pi, p.piInv, i) }

// PiInverse returns π⁻¹(i), symmetric to Pi.
func (p *Permutation) PiInverse(i int) (int, error) { return access(p.piInv, p.pi, i) }

func overwriteAt(tree *bptree.Tree[bptree.PermItem], leafIdx, offset int, v bptree.PermItem) {
	leaf := tree.LeafAt(leafIdx)
	leaf.Remove(offset)
	leaf.Insert(offset, v)
}

// Insert places a new element at position p in T_π whose partner lives
// at position q in T_π⁻¹: insert placeholder stubs at both positions,
// mint a fresh shared key against the two landing leaves, then overwrite
// both stubs.
func (p *Permutation) Insert(pos, q int) error {
	stub := bptree.PermItem{Pointer: 0, Key: stubKey}
	if err := p.pi.Insert(pos, stub); err != nil {
		return err
	}
	leafA, offA, err := p.pi.LeafIndexFor(pos)
	if err != nil {
		return err
	}
	if err := p.piInv.Insert(q, stub); err != nil {
		return err
	}
	leafB, offB, err := p.piInv.LeafIndexFor(q)
	if err != nil {
		return err
	}

	aLeaf := p.pi.LeafAt(leafA).(bptree.PermLeafOps[bptree.PermItem])
	key := aLeaf.GetNewKey(uint64(leafB))

	overwriteAt(p.pi, leafA, offA, bptree.PermItem{Pointer: uint64(leafB), Key: key})
	overwriteAt(p.piInv, leafB, offB, bptree.PermItem{Pointer: uint64(leafA), Key: key})
	return nil
}

// Erase removes the element at position pos in T_π along with its
// partner in T_π⁻¹. Neither tree needs further cross-tree fixup:
// the removed partner's (pointer, key) disappears together with it.
func (p *Permutation) Erase(pos int) error {
	q, err := p.Pi(pos)
	if err != nil {
		return err
	}
	if _, err := p.pi.Remove(pos); err != nil {
		return err
	}
	if _, err := p.piInv.Remove(q); err != nil {
		return err
	}
	return nil
}

// Build replaces the permutation's contents from perm, where perm[i] is
// π(i). Both trees are resized to len(perm) stub entries, then every
// position is linked in a single left-to-right pass, O(n log n) total.
func (p *Permutation) Build(perm []uint64) error {
	n := len(perm)
	stubs := make([]bptree.PermItem, n)
	for i := range stubs {
		stubs[i] = bptree.PermItem{Pointer: 0, Key: stubKey}
	}
	pi, err := newLinkedTree(p.pi.DMax(), p.pi.LMax())
	if err != nil {
		return err
	}
	piInv, err := newLinkedTree(p.pi.DMax(), p.pi.LMax())
	if err != nil {
		return err
	}
	if err := pi.BulkBuild(stubs); err != nil {
		return err
	}
	if err := piInv.BulkBuild(stubs); err != nil {
		return err
	}
	p.pi, p.piInv = pi, piInv
	p.wireHooks()

	for i, q := range perm {
		leafA, offA, err := p.pi.LeafIndexFor(i)
		if err != nil {
			return err
		}
		leafB, offB, err := p.piInv.LeafIndexFor(int(q))
		if err != nil {
			return err
		}
		aLeaf := p.pi.LeafAt(leafA).(bptree.PermLeafOps[bptree.PermItem])
		key := aLeaf.GetNewKey(uint64(leafB))
		overwriteAt(p.pi, leafA, offA, bptree.PermItem{Pointer: uint64(leafB), Key: key})
		overwriteAt(p.piInv, leafB, offB, bptree.PermItem{Pointer: uint64(leafA), Key: key})
	}
	return nil
}

// BuildStreaming consumes π⁻¹ values back-to-front via a pull-style
// callback and constructs the permutation from them, for producers that
// emit inverse values in reverse order rather than holding a full slice.
func (p *Permutation) BuildStreaming(inverseReverse func() (uint64, bool)) error {
	var reversed []uint64
	for {
		v, ok := inverseReverse()
		if !ok {
			break
		}
		reversed = append(reversed, v)
	}
	n := len(reversed)
	piInvArr := make([]uint64, n)
	for j, v := range reversed {
		piInvArr[n-1-j] = v
	}
	perm := make([]uint64, n)
	for j, v := range piInvArr {
		perm[v] = uint64(j)
	}
	return p.Build(perm)
}

func (p *Permutation) Size() int           { return p.pi.Size() }
func (p *Permutation) SizeInBytes() uint64 { return p.pi.SizeInBytes() + p.piInv.SizeInBytes() }

func (p *Permutation) Verify() error {
	if err := p.pi.Verify(); err != nil {
		return err
	}
	return p.piInv.Verify()
}

func (p *Permutation) Clear() {
	p.pi.Clear()
	p.piInv.Clear()
}

// Swap exchanges the contents of p and other. Both sides' migrate and
// reindex hooks close over their owning façade, so they are re-wired
// after the trees change hands.
func (p *Permutation) Swap(other *Permutation) {
	p.pi, other.pi = other.pi, p.pi
	p.piInv, other.piInv = other.piInv, p.piInv
	p.wireHooks()
	other.wireHooks()
}

// Serialize writes T_π then T_π⁻¹. Both arenas are sorted before
// either tree is written: sorting T_π⁻¹ rewrites the pointers held in
// T_π's leaves, so serializing T_π first and sorting afterwards would
// persist stale cross-references.
func (p *Permutation) Serialize(w io.Writer) error {
	p.pi.SortLeaves()
	p.piInv.SortLeaves()
	if err := p.pi.Serialize(w); err != nil {
		return err
	}
	return p.piInv.Serialize(w)
}

func (p *Permutation) Deserialize(r io.Reader) error {
	if err := p.pi.Deserialize(r); err != nil {
		return err
	}
	return p.piInv.Deserialize(r)
}

// GetMemoryUsageInfo composes both trees' reports under the
// "permutation" label, [pi] and [pi_inv] distinguishing the two sides.
func (p *Permutation) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	lines := []bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "permutation"}}
	piLines := p.pi.GetMemoryUsageInfo(paragraph + 1)
	if len(piLines) > 0 {
		piLines[0].Label = piLines[0].Label + "[pi]"
	}
	piInvLines := p.piInv.GetMemoryUsageInfo(paragraph + 1)
	if len(piInvLines) > 0 {
		piInvLines[0].Label = piInvLines[0].Label + "[pi_inv]"
	}
	lines = append(lines, piLines...)
	lines = append(lines, piInvLines...)
	return lines
}
