package bptree

import (
	"encoding/binary"
	"io"
)

// PermItem is one entry of a permutation tree's leaf: a pointer to
// the partner leaf in the other direction's tree, and a key distinguishing
// this entry among any others in that leaf that share the same pointer.
// The pair (Pointer, Key) is what the opposite tree stores as a handle
// back to this element; it never changes except when GetNewKey mints a
// fresh key during a cross-tree move.
type PermItem struct {
	Pointer uint64
	Key     uint8
}

// PermLeaf is the leaf container shared by a permutation tree and its
// inverse: a plain ordered slice of PermItem, no sum aggregate
// (permutation trees run with sums disabled; position is the only
// addressable dimension on either side).
type PermLeaf struct {
	items []PermItem
}

func NewPermLeaf() LeafContainer[PermItem] { return &PermLeaf{} }

func (l *PermLeaf) Size() int            { return len(l.items) }
func (l *PermLeaf) At(i int) PermItem     { return l.items[i] }

func (l *PermLeaf) Insert(i int, v PermItem) {
	l.items = append(l.items, PermItem{})
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
}

func (l *PermLeaf) Remove(i int) PermItem {
	v := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	return v
}

func (l *PermLeaf) PushBack(v PermItem)  { l.items = append(l.items, v) }
func (l *PermLeaf) PushFront(v PermItem) { l.Insert(0, v) }

func (l *PermLeaf) PushManyBack(vs []PermItem) { l.items = append(l.items, vs...) }

func (l *PermLeaf) PushManyFront(vs []PermItem) {
	merged := make([]PermItem, 0, len(vs)+len(l.items))
	merged = append(merged, vs...)
	merged = append(merged, l.items...)
	l.items = merged
}

func (l *PermLeaf) PopBack(k int) []PermItem {
	n := len(l.items)
	out := append([]PermItem(nil), l.items[n-k:]...)
	l.items = l.items[:n-k]
	return out
}

func (l *PermLeaf) PopFront(k int) []PermItem {
	out := append([]PermItem(nil), l.items[:k]...)
	l.items = l.items[k:]
	return out
}

func (l *PermLeaf) Swap(other LeafContainer[PermItem]) {
	o := other.(*PermLeaf)
	l.items, o.items = o.items, l.items
}

func (l *PermLeaf) Clear() { l.items = l.items[:0] }

func (l *PermLeaf) ToValues(out []PermItem) []PermItem { return append(out, l.items...) }

func (l *PermLeaf) ByteSize() int { return 9 * len(l.items) }

// GetNewKey scans entries whose Pointer equals partnerLeafIdx and returns
// the smallest uint8 not already used as a Key among them. Every
// leaf holds at most L_max entries, so at most L_max keys are ever in
// use against a given partner leaf, well under the 256 keys a uint8
// affords.
func (l *PermLeaf) GetNewKey(partnerLeafIdx uint64) uint8 {
	var used [256]bool
	for _, it := range l.items {
		if it.Pointer == partnerLeafIdx {
			used[it.Key] = true
		}
	}
	for k := 0; k < 256; k++ {
		if !used[k] {
			return uint8(k)
		}
	}
	invariantViolation("no free key against partner leaf")
	return 0
}

func (l *PermLeaf) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.items))); err != nil {
		return err
	}
	for _, it := range l.items {
		if err := binary.Write(w, binary.LittleEndian, it.Pointer); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, it.Key); err != nil {
			return err
		}
	}
	return nil
}

func (l *PermLeaf) Deserialize(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	l.items = make([]PermItem, n)
	for i := range l.items {
		if err := binary.Read(r, binary.LittleEndian, &l.items[i].Pointer); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &l.items[i].Key); err != nil {
			return err
		}
	}
	return nil
}
