// Package dbs implements the dynamic bit sequence façade: a
// specialisation of DPS where every value is a single bit, the leaf
// container is word-packed, and the sum aggregate doubles as rank.
package dbs

import (
	"io"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/facade"
)

// DBS is a dynamic bit sequence supporting access, rank, and select.
type DBS struct {
	tree *bptree.Tree[bool]
}

var _ facade.Facade = (*DBS)(nil)

func weightBit(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// New constructs an empty DBS with the given internal-node and leaf
// capacities.
func New(dMax, lMax int) (*DBS, error) {
	tr, err := bptree.NewTree[bool](dMax, lMax, true,
		func() bptree.LeafContainer[bool] { return bptree.NewBitLeaf() },
		weightBit,
	)
	if err != nil {
		return nil, err
	}
	return &DBS{tree: tr}, nil
}

func (d *DBS) Size() int           { return d.tree.Size() }
func (d *DBS) SizeInBytes() uint64 { return d.tree.SizeInBytes() }
func (d *DBS) Verify() error       { return d.tree.Verify() }
func (d *DBS) Clear()              { d.tree.Clear() }

func (d *DBS) At(i int) (bool, error) { return d.tree.At(i) }

func (d *DBS) Insert(i int, b bool) error  { return d.tree.Insert(i, b) }
func (d *DBS) Remove(i int) (bool, error)  { return d.tree.Remove(i) }
func (d *DBS) PushBack(b bool) error       { return d.tree.PushBack(b) }
func (d *DBS) PushFront(b bool) error      { return d.tree.PushFront(b) }
func (d *DBS) PushManyBack(bs []bool) error {
	for _, b := range bs {
		if err := d.tree.PushBack(b); err != nil {
			return err
		}
	}
	return nil
}

// Rank1 returns the number of set bits in T[0..i), i.e. psum(i-1) folded
// into Psum's own inclusive range: rank1(i) = psum(i-1), 0 for i=0.
func (d *DBS) Rank1(i int) (uint64, error) {
	if i <= 0 {
		return 0, nil
	}
	return d.tree.Psum(i - 1)
}

// Rank0 returns the number of clear bits in T[0..i).
func (d *DBS) Rank0(i int) (uint64, error) {
	if i <= 0 {
		return 0, nil
	}
	ones, err := d.tree.Psum(i - 1)
	if err != nil {
		return 0, err
	}
	return uint64(i) - ones, nil
}

// Select1 returns the index of the (k+1)-th set bit (0-indexed k), or -1
// if there are fewer than k+1 ones.
func (d *DBS) Select1(k int) int {
	if k < 0 {
		return -1
	}
	return d.tree.Search(uint64(k + 1))
}

// Select0 returns the index of the (k+1)-th clear bit, descending the
// tree by the count-minus-sum (complement) aggregate and resolving the
// residual inside the target leaf's own Select0.
func (d *DBS) Select0(k int) int {
	if k < 0 {
		return -1
	}
	leafIdx, base, local, ok := d.tree.DescendByComplement(k + 1)
	if !ok {
		return -1
	}
	leaf := d.tree.LeafAt(leafIdx).(bptree.BitLeafOps[bool])
	pos := leaf.Select0(local - 1)
	if pos < 0 {
		return -1
	}
	return base + pos
}

// SetBit flips the bit at i to b, expressed as a signed increment so the
// rank aggregate only updates when the bit actually changes.
func (d *DBS) SetBit(i int, b bool) error {
	cur, err := d.tree.At(i)
	if err != nil {
		return err
	}
	if cur == b {
		return nil
	}
	delta := int64(1)
	if !b {
		delta = -1
	}
	return d.tree.AdjustSum(i, delta)
}

func (d *DBS) Count1() uint64 { return d.tree.PsumTotal() }
func (d *DBS) Count0() uint64 { return uint64(d.tree.Size()) - d.tree.PsumTotal() }

// Swap exchanges the contents of d and other.
func (d *DBS) Swap(other *DBS) { d.tree, other.tree = other.tree, d.tree }

// Build replaces the sequence's contents via bulk construction.
func (d *DBS) Build(bits []bool) error { return d.tree.BulkBuild(bits) }

func (d *DBS) Serialize(w io.Writer) error   { return d.tree.Serialize(w) }
func (d *DBS) Deserialize(r io.Reader) error { return d.tree.Deserialize(r) }

// GetMemoryUsageInfo composes the underlying tree's report under the
// "dbs" label.
func (d *DBS) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	return append([]bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "dbs"}},
		d.tree.GetMemoryUsageInfo(paragraph + 1)...)
}

// Tree exposes the underlying engine for callers (DWT) that need to wire
// OnMigrate/OnReindex hooks or descend the tree directly.
func (d *DBS) Tree() *bptree.Tree[bool] { return d.tree }
