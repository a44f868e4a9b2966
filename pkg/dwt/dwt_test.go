package dwt

import (
	"bytes"
	"testing"
)

func TestDWTBuildAndAt(t *testing.T) {
	text := []byte("banana")
	alphabet := []byte{'a', 'b', 'n'}
	w, err := New(alphabet, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Build(text, alphabet); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if w.Size() != len(text) {
		t.Fatalf("Size() = %d, want %d", w.Size(), len(text))
	}
	for i, want := range text {
		got, err := w.At(i)
		if err != nil || got != want {
			t.Fatalf("At(%d) = %c, %v, want %c", i, got, err, want)
		}
	}
	if err := w.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDWTRankSelectCount(t *testing.T) {
	text := []byte("banana")
	w, err := New([]byte{'a', 'b', 'n'}, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Build(text, []byte{'a', 'b', 'n'}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	// "banana": a at 1,3,5; n at 2,4; b at 0.
	if got := w.Rank(6, 'a'); got != 3 {
		t.Fatalf("Rank(6,'a') = %d, want 3", got)
	}
	if got := w.Rank(3, 'a'); got != 1 {
		t.Fatalf("Rank(3,'a') = %d, want 1", got)
	}
	if got := w.Select(0, 'a'); got != 1 {
		t.Fatalf("Select(0,'a') = %d, want 1", got)
	}
	if got := w.Select(2, 'a'); got != 5 {
		t.Fatalf("Select(2,'a') = %d, want 5", got)
	}
	if got := w.Select(3, 'a'); got != -1 {
		t.Fatalf("Select(3,'a') = %d, want -1", got)
	}
	if got := w.CountC('n'); got != 2 {
		t.Fatalf("CountC('n') = %d, want 2", got)
	}
	if got := w.Rank(6, 'n'); got != 2 {
		t.Fatalf("Rank(6,'n') = %d, want 2", got)
	}
	if got := w.Rank(6, 'b'); got != 1 {
		t.Fatalf("Rank(6,'b') = %d, want 1", got)
	}
	if got := w.Select(0, 'n'); got != 2 {
		t.Fatalf("Select(0,'n') = %d, want 2", got)
	}
	if got := w.Select(1, 'n'); got != 4 {
		t.Fatalf("Select(1,'n') = %d, want 4", got)
	}
	if got := w.Select(2, 'n'); got != -1 {
		t.Fatalf("Select(2,'n') = %d, want -1", got)
	}
	// Inserting an extra n at position 3 yields "bannana"-shaped counts.
	if err := w.Insert(3, 'n'); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := w.Rank(7, 'n'); got != 3 {
		t.Fatalf("Rank(7,'n') after insert = %d, want 3", got)
	}
}

func TestDWTInsertRemove(t *testing.T) {
	w, err := New([]byte{'x', 'y', 'z'}, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, c := range []byte("xyzxyz") {
		if err := w.PushBack(c); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
	}
	if err := w.Insert(0, 'z'); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := w.At(0)
	if err != nil || got != 'z' {
		t.Fatalf("At(0) = %c, %v, want z", got, err)
	}
	removed, err := w.Remove(0)
	if err != nil || removed != 'z' {
		t.Fatalf("Remove(0) = %c, %v, want z", removed, err)
	}
	if w.Size() != 6 {
		t.Fatalf("Size() = %d, want 6", w.Size())
	}
	if err := w.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDWTToTextAndAlphabet(t *testing.T) {
	w, err := New([]byte{'c', 'a', 'b'}, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Build([]byte("cabbage"), []byte{'c', 'a', 'b', 'g', 'e'}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := w.ToText(); !bytes.Equal(got, []byte("cabbage")) {
		t.Fatalf("ToText() = %q, want %q", got, "cabbage")
	}
	want := []byte{'a', 'b', 'c', 'e', 'g'}
	if got := w.Alphabet(); !bytes.Equal(got, want) {
		t.Fatalf("Alphabet() = %q, want %q", got, want)
	}
}

func TestDWTSerializeDeserializeRoundTrip(t *testing.T) {
	w, err := New([]byte{'a', 'b', 'c'}, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Build([]byte("abcabcabc"), []byte{'a', 'b', 'c'}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := w.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w2, err := New(nil, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w2.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !bytes.Equal(w2.ToText(), w.ToText()) {
		t.Fatalf("round trip mismatch: got %q, want %q", w2.ToText(), w.ToText())
	}
}
