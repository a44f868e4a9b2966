// Package refstore is a naive reference comparator: a pebble-backed
// positional KV store that cmd/dynseqbench's --mode=baseline runs its own
// random operation stream against, so it can report relative timings
// against a real disk-backed structure with no B+ tree underneath. It is never
// imported by the core library (pkg/bptree and its façades).
package refstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
)

// ErrOutOfRange mirrors pkg/bptree.ErrOutOfRange for the baseline's own
// positional bounds checks.
var ErrOutOfRange = errors.New("refstore: index out of range")

// RefStore is a naive, disk-backed sequence of fixed-width uint64
// values: every positional Insert/Remove walks and rewrites every
// record after the touched position, the O(n) behaviour the B+ tree
// engine (pkg/bptree) exists to avoid.
type RefStore struct {
	db  *pebble.DB
	run ksuid.KSUID
	n   int
}

// Open creates (or reopens) a pebble store at dir, tagging the session
// with a fresh run identifier.
func Open(dir string) (*RefStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("refstore: open: %w", err)
	}
	return &RefStore{db: db, run: ksuid.New()}, nil
}

// RunID returns the ksuid minted for this store's session when it was
// opened.
func (s *RefStore) RunID() string { return s.run.String() }

func posKey(pos int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(pos))
	return b
}

func encodeValue(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// Size returns the number of stored values.
func (s *RefStore) Size() int { return s.n }

// At reads the value at pos.
func (s *RefStore) At(pos int) (uint64, error) {
	if pos < 0 || pos >= s.n {
		return 0, fmt.Errorf("refstore: at(%d): %w", pos, ErrOutOfRange)
	}
	b, closer, err := s.db.Get(posKey(pos))
	if err != nil {
		return 0, fmt.Errorf("refstore: at(%d): %w", pos, err)
	}
	defer closer.Close()
	return binary.LittleEndian.Uint64(b), nil
}

// PushBack appends a value in O(1), the one operation where the naive
// baseline doesn't lose to the B+ tree engine.
func (s *RefStore) PushBack(v uint64) error {
	if err := s.db.Set(posKey(s.n), encodeValue(v), pebble.NoSync); err != nil {
		return fmt.Errorf("refstore: push_back: %w", err)
	}
	s.n++
	return nil
}

// Insert shifts every record at or after pos up by one slot before
// writing v at pos.
func (s *RefStore) Insert(pos int, v uint64) error {
	if pos < 0 || pos > s.n {
		return fmt.Errorf("refstore: insert(%d): %w", pos, ErrOutOfRange)
	}
	for i := s.n; i > pos; i-- {
		prev, closer, err := s.db.Get(posKey(i - 1))
		if err != nil {
			return fmt.Errorf("refstore: insert shift: %w", err)
		}
		buf := append([]byte(nil), prev...)
		closer.Close()
		if err := s.db.Set(posKey(i), buf, pebble.NoSync); err != nil {
			return fmt.Errorf("refstore: insert shift: %w", err)
		}
	}
	if err := s.db.Set(posKey(pos), encodeValue(v), pebble.NoSync); err != nil {
		return fmt.Errorf("refstore: insert(%d): %w", pos, err)
	}
	s.n++
	return nil
}

// Remove shifts every record after pos down by one slot, then drops the
// now-duplicated tail record.
func (s *RefStore) Remove(pos int) (uint64, error) {
	if pos < 0 || pos >= s.n {
		return 0, fmt.Errorf("refstore: remove(%d): %w", pos, ErrOutOfRange)
	}
	removed, err := s.At(pos)
	if err != nil {
		return 0, err
	}
	for i := pos; i < s.n-1; i++ {
		next, closer, err := s.db.Get(posKey(i + 1))
		if err != nil {
			return 0, fmt.Errorf("refstore: remove shift: %w", err)
		}
		buf := append([]byte(nil), next...)
		closer.Close()
		if err := s.db.Set(posKey(i), buf, pebble.NoSync); err != nil {
			return 0, fmt.Errorf("refstore: remove shift: %w", err)
		}
	}
	if err := s.db.Delete(posKey(s.n-1), pebble.NoSync); err != nil {
		return 0, fmt.Errorf("refstore: remove(%d): %w", pos, err)
	}
	s.n--
	return removed, nil
}

// Close releases the underlying pebble handle.
func (s *RefStore) Close() error { return s.db.Close() }
