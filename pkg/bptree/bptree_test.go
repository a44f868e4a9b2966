package bptree

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func newU64Tree(t *testing.T) *Tree[uint64] {
	t.Helper()
	tr, err := NewTree[uint64](8, 8, true, func() LeafContainer[uint64] { return NewVarU64Leaf() }, func(v uint64) uint64 { return v })
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tr
}

func TestTreeInsertAtRoundTrip(t *testing.T) {
	tr := newU64Tree(t)
	const n = 500
	want := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		v := uint64(rand.Intn(1000))
		pos := rand.Intn(i + 1)
		if err := tr.Insert(pos, v); err != nil {
			t.Fatalf("Insert(%d, %d): %v", pos, v, err)
		}
		want = append(want, 0)
		copy(want[pos+1:], want[pos:])
		want[pos] = v
	}
	if tr.Size() != n {
		t.Fatalf("Size() = %d, want %d", tr.Size(), n)
	}
	for i, w := range want {
		got, err := tr.At(i)
		if err != nil || got != w {
			t.Fatalf("At(%d) = %d, %v, want %d", i, got, err, w)
		}
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTreeRemoveMatchesReference(t *testing.T) {
	tr := newU64Tree(t)
	const n = 400
	want := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		v := uint64(i)
		if err := tr.PushBack(v); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
		want = append(want, v)
	}
	for len(want) > 0 {
		pos := rand.Intn(len(want))
		got, err := tr.Remove(pos)
		if err != nil {
			t.Fatalf("Remove(%d): %v", pos, err)
		}
		if got != want[pos] {
			t.Fatalf("Remove(%d) = %d, want %d", pos, got, want[pos])
		}
		want = append(want[:pos], want[pos+1:]...)
		if pos%37 == 0 {
			if err := tr.Verify(); err != nil {
				t.Fatalf("Verify after remove: %v", err)
			}
		}
	}
	if tr.Size() != 0 {
		t.Fatalf("Size() = %d after draining, want 0", tr.Size())
	}
}

func TestTreePsumAndSearch(t *testing.T) {
	tr := newU64Tree(t)
	vals := []uint64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}
	for i, v := range vals {
		if err := tr.Insert(i, v); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	var running uint64
	for i, v := range vals {
		running += v
		got, err := tr.Psum(i)
		if err != nil || got != running {
			t.Fatalf("Psum(%d) = %d, %v, want %d", i, got, err, running)
		}
	}
	if total := tr.PsumTotal(); total != running {
		t.Fatalf("PsumTotal() = %d, want %d", total, running)
	}
	// Search(s) should land on the first index whose inclusive prefix sum
	// reaches s.
	idx := tr.Search(14) // 3+1+4+1+5 = 14, at index 4
	if idx != 4 {
		t.Fatalf("Search(14) = %d, want 4", idx)
	}
	if got := tr.Search(running + 1); got != -1 {
		t.Fatalf("Search(total+1) = %d, want -1", got)
	}
}

func TestTreeBulkBuildMatchesSequentialInsert(t *testing.T) {
	const n = 300
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(rand.Intn(1 << 20))
	}

	bulk := newU64Tree(t)
	if err := bulk.BulkBuild(vals); err != nil {
		t.Fatalf("BulkBuild: %v", err)
	}
	if err := bulk.Verify(); err != nil {
		t.Fatalf("Verify after BulkBuild: %v", err)
	}
	if bulk.Size() != n {
		t.Fatalf("Size() = %d, want %d", bulk.Size(), n)
	}
	for i, v := range vals {
		got, err := bulk.At(i)
		if err != nil || got != v {
			t.Fatalf("At(%d) = %d, %v, want %d", i, got, err, v)
		}
	}
}

func TestTreeSerializeDeserializeRoundTrip(t *testing.T) {
	const n = 250
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(i * 7 % 101)
	}
	tr := newU64Tree(t)
	if err := tr.BulkBuild(vals); err != nil {
		t.Fatalf("BulkBuild: %v", err)
	}

	var buf bytes.Buffer
	if err := tr.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tr2 := newU64Tree(t)
	if err := tr2.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if tr2.Size() != n {
		t.Fatalf("Size() = %d after round trip, want %d", tr2.Size(), n)
	}
	for i, v := range vals {
		got, err := tr2.At(i)
		if err != nil || got != v {
			t.Fatalf("At(%d) = %d, %v, want %d", i, got, err, v)
		}
	}
	if err := tr2.Verify(); err != nil {
		t.Fatalf("Verify after round trip: %v", err)
	}
}

// plainReader hides a source's ReadByte so deserialization sees only the
// bare io.Reader contract, the shape a raw file stream presents.
type plainReader struct {
	r io.Reader
}

func (p *plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestTreeDeserializeFromPlainReader(t *testing.T) {
	const n = 300
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(i * 13 % 509)
	}
	tr := newU64Tree(t)
	if err := tr.BulkBuild(vals); err != nil {
		t.Fatalf("BulkBuild: %v", err)
	}
	var buf bytes.Buffer
	if err := tr.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Every leaf after the first reads from the same stream, so any
	// read-ahead inside one leaf's varint decoding corrupts the rest.
	tr2 := newU64Tree(t)
	if err := tr2.Deserialize(&plainReader{r: &buf}); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if tr2.Size() != n {
		t.Fatalf("Size() = %d, want %d", tr2.Size(), n)
	}
	for i, v := range vals {
		got, err := tr2.At(i)
		if err != nil || got != v {
			t.Fatalf("At(%d) = %d, %v, want %d", i, got, err, v)
		}
	}
	if err := tr2.Verify(); err != nil {
		t.Fatalf("Verify after round trip: %v", err)
	}
}

func TestTreeDebugChecks(t *testing.T) {
	DebugChecks = true
	defer func() { DebugChecks = false }()

	tr := newU64Tree(t)
	for i := 0; i < 100; i++ {
		if err := tr.Insert(rand.Intn(tr.Size()+1), uint64(i)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	for i := 0; i < 50; i++ {
		if _, err := tr.Remove(rand.Intn(tr.Size())); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
	if err := tr.AdjustSum(0, 5); err != nil {
		t.Fatalf("AdjustSum: %v", err)
	}

	// A hand-corrupted aggregate must trip the post-operation check.
	tr.root.node.count[0]++
	defer func() {
		if recover() == nil {
			t.Fatalf("mutating after aggregate corruption: want invariant panic")
		}
	}()
	tr.Insert(0, 1)
}

func TestTreeSortLeavesReindexHook(t *testing.T) {
	tr := newU64Tree(t)
	for i := 0; i < 200; i++ {
		tr.PushBack(uint64(i))
	}
	// Churn the tree so arena slots end up out of logical order.
	for i := 0; i < 50; i++ {
		tr.Remove(rand.Intn(tr.Size()))
	}
	for i := 0; i < 50; i++ {
		tr.Insert(rand.Intn(tr.Size()+1), uint64(1000+i))
	}

	var remapCalls int
	tr.OnReindex = func(oldToNew map[int]int) { remapCalls++ }
	tr.SortLeaves()
	if remapCalls != 1 {
		t.Fatalf("OnReindex called %d times, want 1", remapCalls)
	}
	order := tr.collectLeafOrder()
	for i, idx := range order {
		if idx != i {
			t.Fatalf("leaf order not sorted: position %d holds arena index %d", i, idx)
		}
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("Verify after SortLeaves: %v", err)
	}
}

func TestFixedU64LeafBasics(t *testing.T) {
	l := NewFixedU64Leaf()
	l.PushBack(1)
	l.PushBack(2)
	l.Insert(1, 99)
	if l.Size() != 3 || l.At(1) != 99 {
		t.Fatalf("unexpected leaf contents after insert")
	}
	v := l.Remove(0)
	if v != 1 || l.Size() != 2 {
		t.Fatalf("Remove: got %d, size %d", v, l.Size())
	}

	var buf bytes.Buffer
	if err := l.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	l2 := NewFixedU64Leaf()
	if err := l2.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if l2.Size() != l.Size() || l2.At(0) != l.At(0) || l2.At(1) != l.At(1) {
		t.Fatalf("round trip mismatch")
	}
}

func TestBitLeafRankSelect(t *testing.T) {
	l := &BitLeaf{}
	bits := []bool{true, false, true, true, false, false, true, false, true}
	for i, b := range bits {
		l.Insert(i, b)
	}
	if got := l.Rank1(len(bits) - 1); got != 5 {
		t.Fatalf("Rank1(last) = %d, want 5", got)
	}
	if got := l.Select1(0); got != 0 {
		t.Fatalf("Select1(0) = %d, want 0", got)
	}
	if got := l.Select1(4); got != 8 {
		t.Fatalf("Select1(4) = %d, want 8", got)
	}
	if got := l.Select0(0); got != 1 {
		t.Fatalf("Select0(0) = %d, want 1", got)
	}
	if got := l.Select1(5); got != -1 {
		t.Fatalf("Select1(5) = %d, want -1", got)
	}

	removed := l.Remove(0)
	if !removed {
		t.Fatalf("Remove(0) = %v, want true", removed)
	}
	if l.Size() != len(bits)-1 {
		t.Fatalf("Size() = %d, want %d", l.Size(), len(bits)-1)
	}
}

func TestPermLeafGetNewKey(t *testing.T) {
	l := &PermLeaf{}
	l.PushBack(PermItem{Pointer: 7, Key: 0})
	l.PushBack(PermItem{Pointer: 7, Key: 2})
	l.PushBack(PermItem{Pointer: 9, Key: 0})
	k := l.GetNewKey(7)
	if k != 1 {
		t.Fatalf("GetNewKey(7) = %d, want 1", k)
	}
	k2 := l.GetNewKey(9)
	if k2 != 1 {
		t.Fatalf("GetNewKey(9) = %d, want 1", k2)
	}
	k3 := l.GetNewKey(42)
	if k3 != 0 {
		t.Fatalf("GetNewKey(42) = %d, want 0", k3)
	}
}
