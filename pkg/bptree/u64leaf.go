package bptree

import (
	"encoding/binary"
	"io"
)

// u64store is the slice bookkeeping shared by FixedU64Leaf and VarU64Leaf:
// both keep their values as a plain, insertion-ordered uint64 slice and
// differ only in aggregate support and wire encoding.
type u64store struct {
	vals []uint64
}

func (s *u64store) Size() int       { return len(s.vals) }
func (s *u64store) At(i int) uint64 { return s.vals[i] }

func (s *u64store) Insert(i int, v uint64) {
	s.vals = append(s.vals, 0)
	copy(s.vals[i+1:], s.vals[i:])
	s.vals[i] = v
}

func (s *u64store) Remove(i int) uint64 {
	v := s.vals[i]
	s.vals = append(s.vals[:i], s.vals[i+1:]...)
	return v
}

func (s *u64store) PushBack(v uint64)  { s.vals = append(s.vals, v) }
func (s *u64store) PushFront(v uint64) { s.Insert(0, v) }

func (s *u64store) PushManyBack(vs []uint64) { s.vals = append(s.vals, vs...) }

func (s *u64store) PushManyFront(vs []uint64) {
	merged := make([]uint64, 0, len(vs)+len(s.vals))
	merged = append(merged, vs...)
	merged = append(merged, s.vals...)
	s.vals = merged
}

func (s *u64store) PopBack(k int) []uint64 {
	n := len(s.vals)
	out := append([]uint64(nil), s.vals[n-k:]...)
	s.vals = s.vals[:n-k]
	return out
}

func (s *u64store) PopFront(k int) []uint64 {
	out := append([]uint64(nil), s.vals[:k]...)
	s.vals = s.vals[k:]
	return out
}

func (s *u64store) Clear() { s.vals = s.vals[:0] }

func (s *u64store) ToValues(out []uint64) []uint64 { return append(out, s.vals...) }

// FixedU64Leaf is DS64's leaf container: fixed-width uint64
// storage with no sum aggregate, since DS64 exposes only positional
// access.
type FixedU64Leaf struct {
	u64store
}

func NewFixedU64Leaf() LeafContainer[uint64] { return &FixedU64Leaf{} }

func (l *FixedU64Leaf) Swap(other LeafContainer[uint64]) {
	o := other.(*FixedU64Leaf)
	l.vals, o.vals = o.vals, l.vals
}

func (l *FixedU64Leaf) ByteSize() int { return 8 * len(l.vals) }

func (l *FixedU64Leaf) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.vals))); err != nil {
		return err
	}
	for _, v := range l.vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func (l *FixedU64Leaf) Deserialize(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	l.vals = make([]uint64, n)
	for i := range l.vals {
		if err := binary.Read(r, binary.LittleEndian, &l.vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// VarU64Leaf is DPS's default leaf container: the same dense
// uint64 storage, plus the prefix-sum aggregate DPS needs, serialized as
// a varint-coded stream rather than fixed 8-byte words so a leaf full of
// small deltas (the common DPS access pattern) costs proportionally less
// on disk.
type VarU64Leaf struct {
	u64store
}

func NewVarU64Leaf() LeafContainer[uint64] { return &VarU64Leaf{} }

func (l *VarU64Leaf) Swap(other LeafContainer[uint64]) {
	o := other.(*VarU64Leaf)
	l.vals, o.vals = o.vals, l.vals
}

func (l *VarU64Leaf) Psum(i int) uint64 {
	var s uint64
	for k := 0; k <= i; k++ {
		s += l.vals[k]
	}
	return s
}

func (l *VarU64Leaf) PsumTotal() uint64 {
	var s uint64
	for _, v := range l.vals {
		s += v
	}
	return s
}

func (l *VarU64Leaf) ReversePsum(i int) uint64 {
	var s uint64
	n := len(l.vals)
	for k := n - 1; k >= n-1-i; k-- {
		s += l.vals[k]
	}
	return s
}

func (l *VarU64Leaf) Search(s uint64) int {
	var acc uint64
	for i, v := range l.vals {
		acc += v
		if acc >= s {
			return i
		}
	}
	return -1
}

func (l *VarU64Leaf) Increment(i int, delta int64) {
	l.vals[i] = uint64(int64(l.vals[i]) + delta)
}

func (l *VarU64Leaf) ByteSize() int {
	var buf [binary.MaxVarintLen64]byte
	total := 0
	for _, v := range l.vals {
		total += binary.PutUvarint(buf[:], v)
	}
	return total
}

func (l *VarU64Leaf) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.vals))); err != nil {
		return err
	}
	buf := make([]byte, binary.MaxVarintLen64)
	for _, v := range l.vals {
		n := binary.PutUvarint(buf, v)
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

func (l *VarU64Leaf) Deserialize(r io.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	br, ok := r.(io.ByteReader)
	if !ok {
		// Never wrap in a buffered reader here: read-ahead bytes would be
		// lost to the caller, who keeps reading the same stream for the
		// next leaf.
		br = &unbufferedByteReader{r: r}
	}
	l.vals = make([]uint64, n)
	for i := range l.vals {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return err
		}
		l.vals[i] = v
	}
	return nil
}
