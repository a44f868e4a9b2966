package refstore

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *RefStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "refstore")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRefStorePushAt(t *testing.T) {
	s := openTemp(t)
	for _, v := range []uint64{10, 20, 30} {
		if err := s.PushBack(v); err != nil {
			t.Fatalf("PushBack(%d): %v", v, err)
		}
	}
	if s.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", s.Size())
	}
	for i, want := range []uint64{10, 20, 30} {
		got, err := s.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("At(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestRefStoreInsertRemove(t *testing.T) {
	s := openTemp(t)
	for _, v := range []uint64{10, 20, 30, 40} {
		if err := s.PushBack(v); err != nil {
			t.Fatalf("PushBack(%d): %v", v, err)
		}
	}
	if err := s.Insert(2, 99); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	want := []uint64{10, 20, 99, 30, 40}
	for i, w := range want {
		got, err := s.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != w {
			t.Fatalf("At(%d) = %d, want %d", i, got, w)
		}
	}
	removed, err := s.Remove(2)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != 99 {
		t.Fatalf("Remove returned %d, want 99", removed)
	}
	want = []uint64{10, 20, 30, 40}
	for i, w := range want {
		got, err := s.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != w {
			t.Fatalf("At(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestRefStoreOutOfRange(t *testing.T) {
	s := openTemp(t)
	if _, err := s.At(0); err == nil {
		t.Fatalf("At on empty store: want error, got nil")
	}
	if _, err := s.Remove(0); err == nil {
		t.Fatalf("Remove on empty store: want error, got nil")
	}
	if err := s.Insert(5, 1); err == nil {
		t.Fatalf("Insert past end: want error, got nil")
	}
}

func TestRefStoreRunID(t *testing.T) {
	s := openTemp(t)
	if s.RunID() == "" {
		t.Fatalf("RunID() empty")
	}
}
