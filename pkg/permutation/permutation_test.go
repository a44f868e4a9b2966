package permutation

import "testing"

func newTestPermutation(t *testing.T) *Permutation {
	t.Helper()
	p, err := New(4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func checkBijection(t *testing.T, p *Permutation, n int) {
	t.Helper()
	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		v, err := p.Pi(i)
		if err != nil {
			t.Fatalf("Pi(%d): %v", i, err)
		}
		if v < 0 || v >= n || seen[v] {
			t.Fatalf("Pi(%d) = %d is not a valid bijective image (n=%d)", i, v, n)
		}
		seen[v] = true
		back, err := p.PiInverse(v)
		if err != nil {
			t.Fatalf("PiInverse(%d): %v", v, err)
		}
		if back != i {
			t.Fatalf("PiInverse(Pi(%d)) = %d, want %d", i, back, i)
		}
	}
}

func TestPermutationBuildIdentity(t *testing.T) {
	p := newTestPermutation(t)
	perm := []uint64{0, 1, 2, 3, 4, 5, 6, 7}
	if err := p.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	checkBijection(t, p, len(perm))
}

func TestPermutationBuildShuffled(t *testing.T) {
	p := newTestPermutation(t)
	perm := []uint64{3, 1, 4, 0, 2, 7, 5, 6, 9, 8}
	if err := p.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Size() != len(perm) {
		t.Fatalf("Size() = %d, want %d", p.Size(), len(perm))
	}
	checkBijection(t, p, len(perm))
	for i, want := range perm {
		got, err := p.Pi(i)
		if err != nil || uint64(got) != want {
			t.Fatalf("Pi(%d) = %d, %v, want %d", i, got, err, want)
		}
	}
	if err := p.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestPermutationScenario checks literal access and insert results on
// π = [2,0,3,1].
func TestPermutationScenario(t *testing.T) {
	p := newTestPermutation(t)
	if err := p.Build([]uint64{2, 0, 3, 1}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, err := p.Pi(0); err != nil || got != 2 {
		t.Fatalf("Pi(0) = %d, %v, want 2", got, err)
	}
	if got, err := p.Pi(2); err != nil || got != 3 {
		t.Fatalf("Pi(2) = %d, %v, want 3", got, err)
	}
	if got, err := p.PiInverse(3); err != nil || got != 2 {
		t.Fatalf("PiInverse(3) = %d, %v, want 2", got, err)
	}
	// Insert a new element at π-position 2 mapping to inverse position 1:
	// existing images >= 1 shift up, so π becomes [3,0,1,4,2].
	if err := p.Insert(2, 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got, err := p.Pi(2); err != nil || got != 1 {
		t.Fatalf("Pi(2) after insert = %d, %v, want 1", got, err)
	}
	want := []int{3, 0, 1, 4, 2}
	for i, w := range want {
		got, err := p.Pi(i)
		if err != nil || got != w {
			t.Fatalf("Pi(%d) = %d, %v, want %d", i, got, err, w)
		}
	}
	checkBijection(t, p, p.Size())
}

func TestPermutationInsertGrowsBijection(t *testing.T) {
	p := newTestPermutation(t)
	if err := p.Build([]uint64{0, 1, 2}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Insert(1, 2); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	checkBijection(t, p, p.Size())
	got, err := p.Pi(1)
	if err != nil || got != 2 {
		t.Fatalf("Pi(1) = %d, %v, want 2", got, err)
	}
}

func TestPermutationEraseShrinksBijection(t *testing.T) {
	p := newTestPermutation(t)
	perm := []uint64{4, 0, 3, 1, 2}
	if err := p.Build(perm); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Erase(2); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if p.Size() != len(perm)-1 {
		t.Fatalf("Size() = %d, want %d", p.Size(), len(perm)-1)
	}
	checkBijection(t, p, p.Size())
}

func TestPermutationManyInsertsRebalance(t *testing.T) {
	p := newTestPermutation(t)
	if err := p.Insert(0, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Repeated front/back insertion forces splits and shifts across
	// several leaves, exercising the cross-tree migrate hook.
	for i := 1; i < 40; i++ {
		pos := i / 2
		q := i - pos
		if err := p.Insert(pos, q); err != nil {
			t.Fatalf("Insert(%d,%d) at i=%d: %v", pos, q, i, err)
		}
		checkBijection(t, p, p.Size())
	}
	if err := p.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
