package dps

import "testing"

func newTestDPS(t *testing.T) *DPS {
	t.Helper()
	d, err := New(8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDPSBasics(t *testing.T) {
	d := newTestDPS(t)
	vals := []uint64{3, 1, 4, 1, 5, 9, 2, 6}
	for i, v := range vals {
		if err := d.Insert(i, v); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if d.Size() != len(vals) {
		t.Fatalf("Size() = %d, want %d", d.Size(), len(vals))
	}
	got, err := d.Psum(4)
	if err != nil || got != 14 {
		t.Fatalf("Psum(4) = %d, %v, want 14", got, err)
	}
	if idx := d.Search(14); idx != 4 {
		t.Fatalf("Search(14) = %d, want 4", idx)
	}
	if err := d.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestDPSPrefixSumScenario checks literal psum/search results on a
// small fixed sequence.
func TestDPSPrefixSumScenario(t *testing.T) {
	d := newTestDPS(t)
	if err := d.Build([]uint64{3, 1, 4, 1, 5, 9, 2, 6}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	psums := []struct {
		i    int
		want uint64
	}{{0, 3}, {3, 9}, {7, 31}}
	for _, c := range psums {
		if got, err := d.Psum(c.i); err != nil || got != c.want {
			t.Fatalf("Psum(%d) = %d, %v, want %d", c.i, got, err, c.want)
		}
	}
	searches := []struct {
		s    uint64
		want int
	}{{1, 0}, {3, 0}, {4, 1}, {10, 4}, {31, 7}, {32, -1}}
	for _, c := range searches {
		if got := d.Search(c.s); got != c.want {
			t.Fatalf("Search(%d) = %d, want %d", c.s, got, c.want)
		}
	}
	if got, _ := d.At(5); got != 9 {
		t.Fatalf("At(5) = %d, want 9", got)
	}
	if err := d.Insert(3, 7); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got, _ := d.Psum(3); got != 15 {
		t.Fatalf("Psum(3) after insert = %d, want 15", got)
	}
}

func TestDPSIncrementDecrementSetValue(t *testing.T) {
	d := newTestDPS(t)
	for _, v := range []uint64{10, 20, 30} {
		d.PushBack(v)
	}
	if err := d.Increment(1, 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	got, _ := d.At(1)
	if got != 25 {
		t.Fatalf("At(1) = %d, want 25", got)
	}
	if err := d.Decrement(1, 5); err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	got, _ = d.At(1)
	if got != 20 {
		t.Fatalf("At(1) = %d, want 20", got)
	}
	if err := d.SetValue(0, 100); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	got, _ = d.At(0)
	if got != 100 {
		t.Fatalf("At(0) = %d, want 100", got)
	}
	if total := d.PsumTotal(); total != 100+20+30 {
		t.Fatalf("PsumTotal() = %d, want %d", total, 100+20+30)
	}
}

func TestDPSPredecessorSuccessor(t *testing.T) {
	d := newTestDPS(t)
	for _, v := range []uint64{5, 5, 5, 5} { // prefix sums: 5,10,15,20
		d.PushBack(v)
	}
	if idx := d.PredecessorIndex(12); idx != 1 {
		t.Fatalf("PredecessorIndex(12) = %d, want 1", idx)
	}
	if idx := d.PredecessorIndex(10); idx != 1 {
		t.Fatalf("PredecessorIndex(10) = %d, want 1", idx)
	}
	if idx := d.PredecessorIndex(3); idx != -1 {
		t.Fatalf("PredecessorIndex(3) = %d, want -1", idx)
	}
	if idx := d.SuccessorIndex(11); idx != 2 {
		t.Fatalf("SuccessorIndex(11) = %d, want 2", idx)
	}
	if idx := d.SuccessorIndex(21); idx != -1 {
		t.Fatalf("SuccessorIndex(21) = %d, want -1", idx)
	}
}

func TestDPSIterator(t *testing.T) {
	d := newTestDPS(t)
	want := []uint64{1, 2, 3, 4, 5}
	if err := d.Build(want); err != nil {
		t.Fatalf("Build: %v", err)
	}
	it := d.NewIterator()
	var got []uint64
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != len(want) {
		t.Fatalf("iterator yielded %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
