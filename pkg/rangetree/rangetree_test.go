package rangetree

import (
	"bytes"
	"sort"
	"testing"
)

func newTestDRR(t *testing.T) *DRR {
	t.Helper()
	r, err := New(8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func sortedInts(xs []int) []int {
	out := make([]int, len(xs))
	copy(out, xs)
	sort.Ints(out)
	return out
}

func assertSameSet(t *testing.T, got, want []int) {
	t.Helper()
	g, w := sortedInts(got), sortedInts(want)
	if len(g) != len(w) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range g {
		if g[i] != w[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestDRRRangeReport checks literal report and access results on a
// small fixed permutation.
func TestDRRRangeReport(t *testing.T) {
	r := newTestDRR(t)
	perm := []int{4, 1, 6, 3, 0, 5, 2, 7}
	if err := r.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", r.Size())
	}
	if err := r.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	assertSameSet(t, r.RangeReport(5, 7, 1, 3), []int{6})
	assertSameSet(t, r.RangeReport(0, 3, 0, 7), []int{1, 3, 0, 2})
	assertSameSet(t, r.RangeReport(0, 7, 0, 7), []int{0, 1, 2, 3, 4, 5, 6, 7})

	for y, want := range perm {
		got, err := r.AccessXRank(y)
		if err != nil {
			t.Fatalf("AccessXRank(%d): %v", y, err)
		}
		if got != want {
			t.Fatalf("AccessXRank(%d) = %d, want %d", y, got, want)
		}
		yBack, err := r.AccessYRank(want)
		if err != nil {
			t.Fatalf("AccessYRank(%d): %v", want, err)
		}
		if yBack != y {
			t.Fatalf("AccessYRank(%d) = %d, want %d", want, yBack, y)
		}
	}
}

// TestDRRIncrementalBuild inserts the same permutation one point at a
// time via Add, forcing several capacity-triggered rebuilds, and checks
// the result matches a direct Build.
func TestDRRIncrementalBuild(t *testing.T) {
	r := newTestDRR(t)
	perm := []int{4, 1, 6, 3, 0, 5, 2, 7}
	for y, x := range perm {
		// The x-rank passed to Add is relative to the points already
		// inserted, not to the final permutation.
		xr := 0
		for j := 0; j < y; j++ {
			if perm[j] < x {
				xr++
			}
		}
		if err := r.Add(xr, y); err != nil {
			t.Fatalf("Add(%d,%d): %v", xr, y, err)
		}
	}
	if r.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", r.Size())
	}
	if err := r.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for y, want := range perm {
		got, err := r.AccessXRank(y)
		if err != nil {
			t.Fatalf("AccessXRank(%d): %v", y, err)
		}
		if got != want {
			t.Fatalf("AccessXRank(%d) = %d, want %d", y, got, want)
		}
	}
	assertSameSet(t, r.RangeReport(0, 7, 0, 7), []int{0, 1, 2, 3, 4, 5, 6, 7})
}

// TestDRRRemove removes a point and checks the remaining permutation's
// rank array shifts down, mirroring the engine's reindex-on-removal
// behaviour for the other façades.
func TestDRRRemove(t *testing.T) {
	r := newTestDRR(t)
	perm := []int{4, 1, 6, 3, 0, 5, 2, 7}
	if err := r.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	removed, err := r.Remove(2) // removes (x=6, y=2)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != 6 {
		t.Fatalf("Remove(2) = %d, want 6", removed)
	}
	if r.Size() != 7 {
		t.Fatalf("Size() = %d, want 7", r.Size())
	}
	if err := r.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// Removing x=6 shifts every higher x-rank down by one.
	want := []int{4, 1, 3, 0, 5, 2, 6}
	for y, w := range want {
		got, err := r.AccessXRank(y)
		if err != nil {
			t.Fatalf("AccessXRank(%d): %v", y, err)
		}
		if got != w {
			t.Fatalf("AccessXRank(%d) = %d, want %d", y, got, w)
		}
	}
}

func TestDRREmpty(t *testing.T) {
	r := newTestDRR(t)
	if r.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", r.Size())
	}
	if got := r.RangeReport(0, 10, 0, 10); len(got) != 0 {
		t.Fatalf("RangeReport on empty tree = %v, want empty", got)
	}
	if _, err := r.AccessXRank(0); err == nil {
		t.Fatalf("AccessXRank(0) on empty tree: want error")
	}
	if err := r.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDRRSerializeRoundTrip(t *testing.T) {
	r := newTestDRR(t)
	perm := []int{4, 1, 6, 3, 0, 5, 2, 7}
	if err := r.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := r.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	loaded, err := New(8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loaded.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if loaded.Size() != r.Size() {
		t.Fatalf("Size() = %d, want %d", loaded.Size(), r.Size())
	}
	for y, want := range perm {
		got, err := loaded.AccessXRank(y)
		if err != nil {
			t.Fatalf("AccessXRank(%d): %v", y, err)
		}
		if got != want {
			t.Fatalf("AccessXRank(%d) = %d, want %d", y, got, want)
		}
	}
}
