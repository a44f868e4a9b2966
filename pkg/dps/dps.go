// Package dps implements the dynamic prefix sum façade: a B+ tree
// over uint64 values with the sum aggregate enabled, giving O(log n / B)
// positional access, prefix sums, and threshold search on top of the
// shared engine in pkg/bptree.
package dps

import (
	"io"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/facade"
)

// DPS is a dynamic prefix-sum sequence of uint64 values.
type DPS struct {
	tree *bptree.Tree[uint64]
}

var _ facade.Facade = (*DPS)(nil)

// New constructs an empty DPS with the given internal-node and leaf
// capacities.
func New(dMax, lMax int) (*DPS, error) {
	tr, err := bptree.NewTree[uint64](dMax, lMax, true,
		func() bptree.LeafContainer[uint64] { return bptree.NewVarU64Leaf() },
		func(v uint64) uint64 { return v },
	)
	if err != nil {
		return nil, err
	}
	return &DPS{tree: tr}, nil
}

func (d *DPS) Size() int            { return d.tree.Size() }
func (d *DPS) SizeInBytes() uint64  { return d.tree.SizeInBytes() }
func (d *DPS) Verify() error        { return d.tree.Verify() }
func (d *DPS) Clear()               { d.tree.Clear() }

func (d *DPS) At(i int) (uint64, error)    { return d.tree.At(i) }
func (d *DPS) Psum(i int) (uint64, error)  { return d.tree.Psum(i) }
func (d *DPS) PsumTotal() uint64           { return d.tree.PsumTotal() }
func (d *DPS) Search(s uint64) int         { return d.tree.Search(s) }

func (d *DPS) Insert(i int, v uint64) error { return d.tree.Insert(i, v) }
func (d *DPS) Remove(i int) (uint64, error) { return d.tree.Remove(i) }
func (d *DPS) PushBack(v uint64) error      { return d.tree.PushBack(v) }
func (d *DPS) PushFront(v uint64) error     { return d.tree.PushFront(v) }

func (d *DPS) PopBack() (uint64, error) {
	if d.tree.Size() == 0 {
		return 0, bptree.ErrOutOfRange
	}
	return d.tree.Remove(d.tree.Size() - 1)
}

func (d *DPS) PopFront() (uint64, error) {
	if d.tree.Size() == 0 {
		return 0, bptree.ErrOutOfRange
	}
	return d.tree.Remove(0)
}

// Increment adds delta to the value at position i, updating every
// ancestor's sum aggregate.
func (d *DPS) Increment(i int, delta int64) error { return d.tree.AdjustSum(i, delta) }

// Decrement is Increment with the delta's sign flipped.
func (d *DPS) Decrement(i int, delta int64) error { return d.tree.AdjustSum(i, -delta) }

// SetValue replaces the value at i, expressed as an increment by the
// signed difference.
func (d *DPS) SetValue(i int, v uint64) error {
	cur, err := d.tree.At(i)
	if err != nil {
		return err
	}
	return d.tree.AdjustSum(i, int64(v)-int64(cur))
}

// SetValues replaces a contiguous run starting at i with seq.
func (d *DPS) SetValues(i int, seq []uint64) error {
	for k, v := range seq {
		if err := d.SetValue(i+k, v); err != nil {
			return err
		}
	}
	return nil
}

// PredecessorIndex returns the largest index i with Psum(i) <= v, derived
// from Search(v) refined by one comparison against that index's prefix
// sum.
func (d *DPS) PredecessorIndex(v uint64) int {
	idx := d.tree.Search(v)
	if idx < 0 {
		if d.tree.Size() == 0 {
			return -1
		}
		return d.tree.Size() - 1
	}
	p, _ := d.tree.Psum(idx)
	if p == v {
		return idx
	}
	return idx - 1
}

// SuccessorIndex returns the smallest index i with Psum(i) >= v, or -1 if
// v exceeds the total sum.
func (d *DPS) SuccessorIndex(v uint64) int { return d.tree.Search(v) }

// Swap exchanges the contents of d and other.
func (d *DPS) Swap(other *DPS) { d.tree, other.tree = other.tree, d.tree }

// Build replaces the sequence's contents via bulk construction.
func (d *DPS) Build(seq []uint64) error { return d.tree.BulkBuild(seq) }

func (d *DPS) Serialize(w io.Writer) error   { return d.tree.Serialize(w) }
func (d *DPS) Deserialize(r io.Reader) error { return d.tree.Deserialize(r) }

// GetMemoryUsageInfo composes the underlying tree's report under the
// "dps" label.
func (d *DPS) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	return append([]bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "dps"}},
		d.tree.GetMemoryUsageInfo(paragraph + 1)...)
}

// Iterator walks a snapshot of the sequence taken at creation:
// mutating the DPS while an iterator is live is unsupported.
type Iterator struct {
	vals []uint64
	pos  int
}

func (d *DPS) NewIterator() *Iterator {
	vals := make([]uint64, d.tree.Size())
	for i := range vals {
		vals[i], _ = d.tree.At(i)
	}
	return &Iterator{vals: vals}
}

func (it *Iterator) Next() (uint64, bool) {
	if it.pos >= len(it.vals) {
		return 0, false
	}
	v := it.vals[it.pos]
	it.pos++
	return v, true
}
