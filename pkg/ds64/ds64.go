// Package ds64 implements the dynamic uint64 sequence façade: a
// B+ tree over fixed-width uint64 values with the sum aggregate disabled
// with positional access and mutation only, no prefix sums or search.
package ds64

import (
	"io"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/facade"
)

// DS64 is a dynamic sequence of fixed-width uint64 values.
type DS64 struct {
	tree *bptree.Tree[uint64]
}

var _ facade.Facade = (*DS64)(nil)

// New constructs an empty DS64 with the given internal-node and leaf
// capacities.
func New(dMax, lMax int) (*DS64, error) {
	tr, err := bptree.NewTree[uint64](dMax, lMax, false,
		func() bptree.LeafContainer[uint64] { return bptree.NewFixedU64Leaf() },
		func(uint64) uint64 { return 0 },
	)
	if err != nil {
		return nil, err
	}
	return &DS64{tree: tr}, nil
}

func (d *DS64) Size() int           { return d.tree.Size() }
func (d *DS64) SizeInBytes() uint64 { return d.tree.SizeInBytes() }
func (d *DS64) Verify() error       { return d.tree.Verify() }
func (d *DS64) Clear()              { d.tree.Clear() }

func (d *DS64) At(i int) (uint64, error) { return d.tree.At(i) }

func (d *DS64) Insert(i int, v uint64) error { return d.tree.Insert(i, v) }
func (d *DS64) Remove(i int) (uint64, error) { return d.tree.Remove(i) }
func (d *DS64) PushBack(v uint64) error      { return d.tree.PushBack(v) }
func (d *DS64) PushFront(v uint64) error     { return d.tree.PushFront(v) }

func (d *DS64) PopBack() (uint64, error) {
	if d.tree.Size() == 0 {
		return 0, bptree.ErrOutOfRange
	}
	return d.tree.Remove(d.tree.Size() - 1)
}

func (d *DS64) PopFront() (uint64, error) {
	if d.tree.Size() == 0 {
		return 0, bptree.ErrOutOfRange
	}
	return d.tree.Remove(0)
}

// SetValue overwrites the value at i in place via a remove/insert pair
// (sums are disabled, so there is no aggregate to patch incrementally,
// unlike DPS.SetValue).
func (d *DS64) SetValue(i int, v uint64) error {
	if _, err := d.tree.Remove(i); err != nil {
		return err
	}
	return d.tree.Insert(i, v)
}

// PushMany appends seq to the back of the sequence.
func (d *DS64) PushMany(seq []uint64) error { return d.tree.PushManyBack(seq) }

// Swap exchanges the contents of d and other.
func (d *DS64) Swap(other *DS64) { d.tree, other.tree = other.tree, d.tree }

// Build replaces the sequence's contents via bulk construction.
func (d *DS64) Build(seq []uint64) error { return d.tree.BulkBuild(seq) }

func (d *DS64) Serialize(w io.Writer) error   { return d.tree.Serialize(w) }
func (d *DS64) Deserialize(r io.Reader) error { return d.tree.Deserialize(r) }

// GetMemoryUsageInfo composes the underlying tree's report under the
// "ds64" label.
func (d *DS64) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	return append([]bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "ds64"}},
		d.tree.GetMemoryUsageInfo(paragraph + 1)...)
}

// Iterator walks a snapshot of the sequence taken at creation:
// mutating the DS64 while an iterator is live is unsupported.
type Iterator struct {
	vals []uint64
	pos  int
}

func (d *DS64) NewIterator() *Iterator {
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
