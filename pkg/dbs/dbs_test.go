package dbs

import "testing"

func newTestDBS(t *testing.T) *DBS {
	t.Helper()
	d, err := New(8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// TestDBSRankSelect checks literal rank/select results on bits
// [1,0,1,1,0,0,1,0,1,1], rank1/rank0 in the exclusive convention
// (rank1(i) counts ones in [0,i)).
func TestDBSRankSelect(t *testing.T) {
	d := newTestDBS(t)
	bits := []bool{true, false, true, true, false, false, true, false, true, true}
	if err := d.Build(bits); err != nil {
		t.Fatalf("Build: %v", err)
	}
	cases := []struct {
		i    int
		want uint64
	}{{0, 0}, {1, 1}, {5, 3}, {10, 6}}
	for _, c := range cases {
		if got, _ := d.Rank1(c.i); got != c.want {
			t.Fatalf("Rank1(%d) = %d, want %d", c.i, got, c.want)
		}
	}
	if got := d.Select1(0); got != 0 {
		t.Fatalf("Select1(0) = %d, want 0", got)
	}
	if got := d.Select1(2); got != 3 {
		t.Fatalf("Select1(2) = %d, want 3", got)
	}
	if got := d.Select1(5); got != 9 {
		t.Fatalf("Select1(5) = %d, want 9", got)
	}
	if got := d.Select0(0); got != 1 {
		t.Fatalf("Select0(0) = %d, want 1", got)
	}
	if got := d.Select0(3); got != 7 {
		t.Fatalf("Select0(3) = %d, want 7", got)
	}
	if got := d.Select0(4); got != -1 {
		t.Fatalf("Select0(4) = %d, want -1", got)
	}
	if err := d.SetBit(4, true); err != nil {
		t.Fatalf("SetBit: %v", err)
	}
	if got, _ := d.Rank1(10); got != 7 {
		t.Fatalf("Rank1(10) after SetBit = %d, want 7", got)
	}
	if err := d.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDBSSetBit(t *testing.T) {
	d := newTestDBS(t)
	for _, b := range []bool{false, false, false} {
		if err := d.PushBack(b); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
	}
	if err := d.SetBit(1, true); err != nil {
		t.Fatalf("SetBit: %v", err)
	}
	got, _ := d.At(1)
	if !got {
		t.Fatalf("At(1) = false, want true")
	}
	if d.Count1() != 1 {
		t.Fatalf("Count1() = %d, want 1", d.Count1())
	}
	// Setting a bit to its current value is a no-op.
	if err := d.SetBit(1, true); err != nil {
		t.Fatalf("SetBit (no-op): %v", err)
	}
	if d.Count1() != 1 {
		t.Fatalf("Count1() after no-op = %d, want 1", d.Count1())
	}
}

func TestDBSInsertRemove(t *testing.T) {
	d := newTestDBS(t)
	for i := 0; i < 20; i++ {
		if err := d.Insert(i, i%3 == 0); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if d.Size() != 20 {
		t.Fatalf("Size() = %d, want 20", d.Size())
	}
	removed, err := d.Remove(0)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatalf("Remove(0) = false, want true (0%%3==0)")
	}
	if err := d.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
