// Package dwt implements the dynamic wavelet tree façade: a fixed
// alphabet of 8-bit symbols over H = ceil(log2 |U|) levels, each level h
// holding 2^h DBS nodes partitioning the text by the h top bits of each
// symbol's sorted rank (MSB first).
package dwt

import (
	"encoding/binary"
	"io"
	"sort"
	"strconv"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/dbs"
	"github.com/succinct-go/dynseq/pkg/facade"
)

// DWT is a dynamic wavelet tree over a fixed byte alphabet.
type DWT struct {
	alphabet []byte // sorted, deduplicated
	rankOf   map[byte]uint64
	charOf   []byte // rank -> symbol
	h        int    // number of levels
	levels   [][]*dbs.DBS
	n        int
	dMax     int
	lMax     int
}

var _ facade.Facade = (*DWT)(nil)

func ceilLog2(n int) int {
	h := 0
	for (1 << h) < n {
		h++
	}
	return h
}

// New constructs an empty DWT over the given alphabet (deduplicated and
// sorted internally), with the given internal-node and leaf capacities
// passed through to every level's DBS.
func New(alphabet []byte, dMax, lMax int) (*DWT, error) {
	seen := make(map[byte]bool, len(alphabet))
	sorted := make([]byte, 0, len(alphabet))
	for _, c := range alphabet {
		if !seen[c] {
			seen[c] = true
			sorted = append(sorted, c)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	w := &DWT{
		alphabet: sorted,
		rankOf:   make(map[byte]uint64, len(sorted)),
		charOf:   sorted,
		h:        ceilLog2(len(sorted)),
		dMax:     dMax,
		lMax:     lMax,
	}
	for r, c := range sorted {
		w.rankOf[c] = uint64(r)
	}
	w.levels = make([][]*dbs.DBS, w.h)
	for level := 0; level < w.h; level++ {
		nodes := make([]*dbs.DBS, 1<<uint(level))
		for id := range nodes {
			node, err := dbs.New(dMax, lMax)
			if err != nil {
				return nil, err
			}
			nodes[id] = node
		}
		w.levels[level] = nodes
	}
	return w, nil
}

func bitAt(r uint64, k int) bool { return (r>>uint(k))&1 != 0 }

// inclusiveRank returns the count of bit b in node[0..pos], the primitive
// the level-descent in At/Insert/Remove needs: the child position is the
// inclusive rank of the bit just read or written minus one. The inclusive
// rank is one more than the exclusive count DBS.Rank1/Rank0 expose
// publicly when the bit at pos is b.
func inclusiveRank(node *dbs.DBS, pos int, b bool) uint64 {
	if pos < 0 {
		return 0
	}
	if b {
		r, _ := node.Rank1(pos + 1)
		return r
	}
	r, _ := node.Rank0(pos + 1)
	return r
}

func (w *DWT) Size() int { return w.n }

func (w *DWT) SizeInBytes() uint64 {
	var total uint64
	for _, level := range w.levels {
		for _, node := range level {
			total += node.SizeInBytes()
		}
	}
	return total
}

func (w *DWT) Verify() error {
	for _, level := range w.levels {
		for _, node := range level {
			if err := node.Verify(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *DWT) Clear() {
	for _, level := range w.levels {
		for _, node := range level {
			node.Clear()
		}
	}
	w.n = 0
}

// GetMemoryUsageInfo composes every level's DBS reports under the "dwt"
// label.
func (w *DWT) GetMemoryUsageInfo(paragraph int) []bptree.MemoryUsageLine {
	lines := []bptree.MemoryUsageLine{{Paragraph: paragraph, Label: "dwt"}}
	for h, level := range w.levels {
		for id, node := range level {
			sub := node.GetMemoryUsageInfo(paragraph + 1)
			if len(sub) > 0 {
				sub[0].Label = sub[0].Label + sprintLevelNode(h, id)
			}
			lines = append(lines, sub...)
		}
	}
	return lines
}

func sprintLevelNode(h, id int) string {
	return "[level=" + strconv.Itoa(h) + ",node=" + strconv.Itoa(id) + "]"
}

// At returns the symbol at text position i, reconstructing its rank bit
// by bit while descending the levels.
func (w *DWT) At(i int) (byte, error) {
	if i < 0 || i >= w.n {
		return 0, bptree.ErrOutOfRange
	}
	pos, id := i, 0
	var r uint64
	for level := 0; level < w.h; level++ {
		node := w.levels[level][id]
		b, err := node.At(pos)
		if err != nil {
			return 0, err
		}
		var bit uint64
		if b {
			bit = 1
		}
		r = (r << 1) | bit
		rank := inclusiveRank(node, pos, b)
		pos = int(rank) - 1
		id = 2*id + int(bit)
	}
	return w.charOf[r], nil
}

// Rank returns the number of occurrences of c in T[0..i).
func (w *DWT) Rank(i int, c byte) uint64 {
	r, ok := w.rankOf[c]
	if !ok {
		return 0
	}
	if i > w.n {
		i = w.n
	}
	if i <= 0 {
		return 0
	}
	pos, id := i, 0
	for level := 0; level < w.h; level++ {
		if pos == 0 {
			return 0
		}
		b := bitAt(r, w.h-1-level)
		node := w.levels[level][id]
		var cnt uint64
		var err error
		if b {
			cnt, err = node.Rank1(pos)
		} else {
			cnt, err = node.Rank0(pos)
		}
		if err != nil {
			return 0
		}
		pos = int(cnt)
		id = 2*id + boolToInt(b)
	}
	return uint64(pos)
}

// Select returns the 0-based position of the (i+1)-th occurrence of c,
// or -1 if fewer than i+1 occurrences exist, walking the levels bottom
// up.
func (w *DWT) Select(i int, c byte) int {
	r, ok := w.rankOf[c]
	if !ok {
		return -1
	}
	if w.h == 0 {
		// Single-symbol alphabet: the text is i+1 copies of c or shorter.
		if i < 0 || i >= w.n {
			return -1
		}
		return i
	}
	ids := make([]int, w.h+1)
	for level := 0; level < w.h; level++ {
		ids[level+1] = 2*ids[level] + boolToInt(bitAt(r, w.h-1-level))
	}
	pos := i
	for level := w.h - 1; level >= 0; level-- {
		node := w.levels[level][ids[level]]
		b := bitAt(r, w.h-1-level)
		if b {
			pos = node.Select1(pos)
		} else {
			pos = node.Select0(pos)
		}
		if pos < 0 {
			return -1
		}
	}
	return pos
}

// CountC returns the total number of occurrences of c in the text.
func (w *DWT) CountC(c byte) uint64 { return w.Rank(w.n, c) }

// Insert inserts c at text position i: at each level the bit of the
// symbol's rank is inserted at the current node-local position, and the
// position carried to the next level is the inclusive rank of that bit
// after insertion minus one. An empty alphabet yields bptree.ErrConfig.
func (w *DWT) Insert(i int, c byte) error {
	if i < 0 || i > w.n {
		return bptree.ErrOutOfRange
	}
	if len(w.alphabet) == 0 {
		return bptree.ErrConfig
	}
	r, ok := w.rankOf[c]
	if !ok {
		return errUnknownSymbol(c)
	}
	pos, id := i, 0
	for level := 0; level < w.h; level++ {
		b := bitAt(r, w.h-1-level)
		node := w.levels[level][id]
		if err := node.Insert(pos, b); err != nil {
			return err
		}
		rank := inclusiveRank(node, pos, b)
		pos = int(rank) - 1
		id = 2*id + boolToInt(b)
	}
	w.n++
	return nil
}

func (w *DWT) PushBack(c byte) error { return w.Insert(w.n, c) }

func (w *DWT) PushMany(seq []byte) error {
	for _, c := range seq {
		if err := w.PushBack(c); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the symbol at text position i and returns it, walking
// the same descent as At but deleting the routed bit at every level.
func (w *DWT) Remove(i int) (byte, error) {
	c, err := w.At(i)
	if err != nil {
		return 0, err
	}
	r := w.rankOf[c]
	pos, id := i, 0
	for level := 0; level < w.h; level++ {
		b := bitAt(r, w.h-1-level)
		node := w.levels[level][id]
		rank := inclusiveRank(node, pos, b)
		if _, err := node.Remove(pos); err != nil {
			return 0, err
		}
		pos = int(rank) - 1
		id = 2*id + boolToInt(b)
	}
	w.n--
	return c, nil
}

// Build replaces the text with seq over the given alphabet, rebuilding
// every level from scratch via sequential insertion.
func (w *DWT) Build(seq []byte, alphabet []byte) error {
	rebuilt, err := New(alphabet, w.dMax, w.lMax)
	if err != nil {
		return err
	}
	for _, c := range seq {
		if err := rebuilt.PushBack(c); err != nil {
			return err
		}
	}
	*w = *rebuilt
	return nil
}

// Swap exchanges the contents of w and other.
func (w *DWT) Swap(other *DWT) { *w, *other = *other, *w }

// ToText reconstructs the full text by walking At(i) for every position
// (a debug and dump helper, not a hot path).
func (w *DWT) ToText() []byte {
	out := make([]byte, 0, w.n)
	for i := 0; i < w.n; i++ {
		c, _ := w.At(i)
		out = append(out, c)
	}
	return out
}

// Alphabet returns the sorted, deduplicated symbol table.
func (w *DWT) Alphabet() []byte {
	out := make([]byte, len(w.alphabet))
	copy(out, w.alphabet)
	return out
}

func (w *DWT) Serialize(wr io.Writer) error {
	if err := binary.Write(wr, binary.LittleEndian, uint32(len(w.alphabet))); err != nil {
		return err
	}
	if _, err := wr.Write(w.alphabet); err != nil {
		return err
	}
	if err := binary.Write(wr, binary.LittleEndian, uint32(w.n)); err != nil {
		return err
	}
	for _, level := range w.levels {
		for _, node := range level {
			if err := node.Serialize(wr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *DWT) Deserialize(r io.Reader) error {
	var alen uint32
	if err := binary.Read(r, binary.LittleEndian, &alen); err != nil {
		return err
	}
	alphabet := make([]byte, alen)
	if _, err := io.ReadFull(r, alphabet); err != nil {
		return err
	}
	rebuilt, err := New(alphabet, w.dMax, w.lMax)
	if err != nil {
		return err
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	rebuilt.n = int(n)
	for _, level := range rebuilt.levels {
		for _, node := range level {
			if err := node.Deserialize(r); err != nil {
				return err
			}
		}
	}
	*w = *rebuilt
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type errUnknownSymbol byte

func (e errUnknownSymbol) Error() string { return "dwt: symbol not in alphabet" }
