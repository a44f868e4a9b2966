package cmd

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/succinct-go/dynseq/pkg/bptree"
	"github.com/succinct-go/dynseq/pkg/config"
	"github.com/succinct-go/dynseq/pkg/dbs"
	"github.com/succinct-go/dynseq/pkg/dps"
	"github.com/succinct-go/dynseq/pkg/ds64"
	"github.com/succinct-go/dynseq/pkg/dwt"
	"github.com/succinct-go/dynseq/pkg/facade"
	"github.com/succinct-go/dynseq/pkg/harness"
	"github.com/succinct-go/dynseq/pkg/permutation"
	"github.com/succinct-go/dynseq/pkg/rangetree"
)

// workload is the uniform surface cmd/dynseqbench drives every façade
// through, adapting facade.Facade (pkg/facade) plus the mutation a
// random benchmark tick issues and the serialize/deserialize round trip
// verify uses. It is purely a CLI-side convenience and does not change
// any façade's public semantics.
type workload interface {
	facade.Facade
	Build(cfg *config.Config) error
	// Reset constructs an empty façade instance (no random data), the
	// shape Deserialize needs to write into: load mirrors store onto an
	// already-constructed tree.
	Reset(cfg *config.Config) error
	RandomOp(rng *rand.Rand, cfg *config.Config) (op string, err error)
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
	MemoryReport() []bptree.MemoryUsageLine
}

// rngFromConfig returns the shared *rand.Rand a bench/verify run draws
// query-time randomness from, seeded one past the build seed so query
// traffic doesn't replay the same stream the initial bulk build drew
// from (harness.RandSeq/RandBits/etc. each take the build seed directly).
func rngFromConfig(cfg *config.Config) *rand.Rand {
	return harness.NewRNG(cfg.Harness.Seed + 1)
}

// newWorkload constructs the façade adapter named by --index_name.
func newWorkload(name string, cfg *config.Config) (workload, error) {
	switch name {
	case "dps":
		return &dpsWorkload{}, nil
	case "dbs":
		return &dbsWorkload{}, nil
	case "ds64":
		return &ds64Workload{}, nil
	case "dwt":
		return &dwtWorkload{}, nil
	case "permutation", "dp":
		return &permWorkload{}, nil
	case "rangetree", "drr":
		return &rangetreeWorkload{}, nil
	default:
		return nil, fmt.Errorf("dynseqbench: unknown index_name %q", name)
	}
}

// --- DPS -------------------------------------------------------------

type dpsWorkload struct{ d *dps.DPS }

func (w *dpsWorkload) Build(cfg *config.Config) error {
	d, err := dps.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	seq := harness.RandSeq(cfg.Harness.Seed, cfg.Harness.ItemNum, uint64(cfg.Harness.MaxValue))
	if err := d.Build(seq); err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *dpsWorkload) Reset(cfg *config.Config) error {
	d, err := dps.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *dpsWorkload) Size() int                { return w.d.Size() }
func (w *dpsWorkload) SizeInBytes() uint64      { return w.d.SizeInBytes() }
func (w *dpsWorkload) Verify() error            { return w.d.Verify() }
func (w *dpsWorkload) Clear()                   { w.d.Clear() }
func (w *dpsWorkload) Serialize(wr io.Writer) error   { return w.d.Serialize(wr) }
func (w *dpsWorkload) Deserialize(r io.Reader) error  { return w.d.Deserialize(r) }
func (w *dpsWorkload) MemoryReport() []bptree.MemoryUsageLine { return w.d.GetMemoryUsageInfo(0) }

func (w *dpsWorkload) RandomOp(rng *rand.Rand, cfg *config.Config) (string, error) {
	switch rng.Intn(4) {
	case 0:
		pos := harness.RandPosition(rng, w.d.Size())
		return "insert", w.d.Insert(pos, uint64(rng.Int63n(int64(cfg.Harness.MaxValue)+1)))
	case 1:
		if w.d.Size() == 0 {
			return "at", nil
		}
		_, err := w.d.At(rng.Intn(w.d.Size()))
		return "at", err
	case 2:
		if w.d.Size() == 0 {
			return "remove", nil
		}
		_, err := w.d.Remove(rng.Intn(w.d.Size()))
		return "remove", err
	default:
		if w.d.PsumTotal() == 0 {
			return "search", nil
		}
		w.d.Search(uint64(rng.Int63n(int64(w.d.PsumTotal()) + 1)))
		return "search", nil
	}
}

// --- DBS ---------------------------------------------------------------

type dbsWorkload struct{ d *dbs.DBS }

func (w *dbsWorkload) Build(cfg *config.Config) error {
	d, err := dbs.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	bits := harness.RandBits(cfg.Harness.Seed, cfg.Harness.ItemNum)
	if err := d.Build(bits); err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *dbsWorkload) Reset(cfg *config.Config) error {
	d, err := dbs.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *dbsWorkload) Size() int               { return w.d.Size() }
func (w *dbsWorkload) SizeInBytes() uint64     { return w.d.SizeInBytes() }
func (w *dbsWorkload) Verify() error           { return w.d.Verify() }
func (w *dbsWorkload) Clear()                  { w.d.Clear() }
func (w *dbsWorkload) Serialize(wr io.Writer) error  { return w.d.Serialize(wr) }
func (w *dbsWorkload) Deserialize(r io.Reader) error { return w.d.Deserialize(r) }
func (w *dbsWorkload) MemoryReport() []bptree.MemoryUsageLine { return w.d.GetMemoryUsageInfo(0) }

func (w *dbsWorkload) RandomOp(rng *rand.Rand, _ *config.Config) (string, error) {
	switch rng.Intn(4) {
	case 0:
		pos := harness.RandPosition(rng, w.d.Size())
		return "insert", w.d.Insert(pos, rng.Intn(2) == 1)
	case 1:
		if w.d.Size() == 0 {
			return "rank1", nil
		}
		_, err := w.d.Rank1(rng.Intn(w.d.Size()))
		return "rank1", err
	case 2:
		w.d.Select1(rng.Intn(int(w.d.Count1()) + 1))
		return "select1", nil
	default:
		if w.d.Size() == 0 {
			return "remove", nil
		}
		_, err := w.d.Remove(rng.Intn(w.d.Size()))
		return "remove", err
	}
}

// --- DS64 ----------------------------------------------------------------

type ds64Workload struct{ d *ds64.DS64 }

func (w *ds64Workload) Build(cfg *config.Config) error {
	d, err := ds64.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	seq := harness.RandSeq(cfg.Harness.Seed, cfg.Harness.ItemNum, uint64(cfg.Harness.MaxValue))
	if err := d.Build(seq); err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *ds64Workload) Reset(cfg *config.Config) error {
	d, err := ds64.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.d = d
	return nil
}

func (w *ds64Workload) Size() int           { return w.d.Size() }
func (w *ds64Workload) SizeInBytes() uint64 { return w.d.SizeInBytes() }
func (w *ds64Workload) Verify() error       { return w.d.Verify() }
func (w *ds64Workload) Clear()              { w.d.Clear() }
func (w *ds64Workload) Serialize(wr io.Writer) error  { return w.d.Serialize(wr) }
func (w *ds64Workload) Deserialize(r io.Reader) error { return w.d.Deserialize(r) }
func (w *ds64Workload) MemoryReport() []bptree.MemoryUsageLine { return w.d.GetMemoryUsageInfo(0) }

func (w *ds64Workload) RandomOp(rng *rand.Rand, cfg *config.Config) (string, error) {
	switch rng.Intn(3) {
	case 0:
		pos := harness.RandPosition(rng, w.d.Size())
		return "insert", w.d.Insert(pos, uint64(rng.Int63n(int64(cfg.Harness.MaxValue)+1)))
	case 1:
		if w.d.Size() == 0 {
			return "at", nil
		}
		_, err := w.d.At(rng.Intn(w.d.Size()))
		return "at", err
	default:
		if w.d.Size() == 0 {
			return "remove", nil
		}
		_, err := w.d.Remove(rng.Intn(w.d.Size()))
		return "remove", err
	}
}

// --- DWT -----------------------------------------------------------------

type dwtWorkload struct {
	d        *dwt.DWT
	alphabet []byte
}

func defaultAlphabet(n int) []byte {
	if n <= 0 || n > 256 {
		n = 26
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + (i % 26))
	}
	return out
}

func (w *dwtWorkload) Build(cfg *config.Config) error {
	alphabet := defaultAlphabet(cfg.Tree.AlphabetSize)
	d, err := dwt.New(alphabet, cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	text := harness.RandString(cfg.Harness.Seed, cfg.Harness.ItemNum, alphabet)
	if err := d.Build(text, alphabet); err != nil {
		return err
	}
	w.d = d
	w.alphabet = alphabet
	return nil
}

func (w *dwtWorkload) Reset(cfg *config.Config) error {
	alphabet := defaultAlphabet(cfg.Tree.AlphabetSize)
	d, err := dwt.New(alphabet, cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.d = d
	w.alphabet = alphabet
	return nil
}

func (w *dwtWorkload) Size() int           { return w.d.Size() }
func (w *dwtWorkload) SizeInBytes() uint64 { return w.d.SizeInBytes() }
func (w *dwtWorkload) Verify() error       { return w.d.Verify() }
func (w *dwtWorkload) Clear()              { w.d.Clear() }
func (w *dwtWorkload) Serialize(wr io.Writer) error  { return w.d.Serialize(wr) }
func (w *dwtWorkload) Deserialize(r io.Reader) error { return w.d.Deserialize(r) }
func (w *dwtWorkload) MemoryReport() []bptree.MemoryUsageLine { return w.d.GetMemoryUsageInfo(0) }

func (w *dwtWorkload) RandomOp(rng *rand.Rand, _ *config.Config) (string, error) {
	c := w.alphabet[rng.Intn(len(w.alphabet))]
	switch rng.Intn(4) {
	case 0:
		pos := harness.RandPosition(rng, w.d.Size())
		return "insert", w.d.Insert(pos, c)
	case 1:
		if w.d.Size() == 0 {
			return "at", nil
		}
		_, err := w.d.At(rng.Intn(w.d.Size()))
		return "at", err
	case 2:
		w.d.Rank(w.d.Size(), c)
		return "rank", nil
	default:
		if w.d.Size() == 0 {
			return "remove", nil
		}
		_, err := w.d.Remove(rng.Intn(w.d.Size()))
		return "remove", err
	}
}

// --- permutation -----------------------------------------------------

type permWorkload struct{ p *permutation.Permutation }

func (w *permWorkload) Build(cfg *config.Config) error {
	p, err := permutation.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	perm := harness.RandPermutation(cfg.Harness.Seed, cfg.Harness.ItemNum)
	if err := p.Build(perm); err != nil {
		return err
	}
	w.p = p
	return nil
}

func (w *permWorkload) Reset(cfg *config.Config) error {
	p, err := permutation.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.p = p
	return nil
}

func (w *permWorkload) Size() int           { return w.p.Size() }
func (w *permWorkload) SizeInBytes() uint64 { return w.p.SizeInBytes() }
func (w *permWorkload) Verify() error       { return w.p.Verify() }
func (w *permWorkload) Clear()              { w.p.Clear() }
func (w *permWorkload) Serialize(wr io.Writer) error  { return w.p.Serialize(wr) }
func (w *permWorkload) Deserialize(r io.Reader) error { return w.p.Deserialize(r) }
func (w *permWorkload) MemoryReport() []bptree.MemoryUsageLine { return w.p.GetMemoryUsageInfo(0) }

func (w *permWorkload) RandomOp(rng *rand.Rand, _ *config.Config) (string, error) {
	switch rng.Intn(3) {
	case 0:
		n := w.p.Size()
		p := harness.RandPosition(rng, n)
		q := harness.RandPosition(rng, n)
		return "insert", w.p.Insert(p, q)
	case 1:
		if w.p.Size() == 0 {
			return "pi", nil
		}
		_, err := w.p.Pi(rng.Intn(w.p.Size()))
		return "pi", err
	default:
		if w.p.Size() == 0 {
			return "erase", nil
		}
		return "erase", w.p.Erase(rng.Intn(w.p.Size()))
	}
}

// --- rangetree --------------------------------------------------------

type rangetreeWorkload struct{ r *rangetree.DRR }

func (w *rangetreeWorkload) Build(cfg *config.Config) error {
	r, err := rangetree.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	rank := harness.RandIntPermutation(cfg.Harness.Seed, cfg.Harness.ItemNum)
	if err := r.Build(rank); err != nil {
		return err
	}
	w.r = r
	return nil
}

func (w *rangetreeWorkload) Reset(cfg *config.Config) error {
	r, err := rangetree.New(cfg.Tree.DMax, cfg.Tree.LMax)
	if err != nil {
		return err
	}
	w.r = r
	return nil
}

func (w *rangetreeWorkload) Size() int           { return w.r.Size() }
func (w *rangetreeWorkload) SizeInBytes() uint64 { return w.r.SizeInBytes() }
func (w *rangetreeWorkload) Verify() error       { return w.r.Verify() }
func (w *rangetreeWorkload) Clear()              { w.r.Clear() }
func (w *rangetreeWorkload) Serialize(wr io.Writer) error  { return w.r.Serialize(wr) }
func (w *rangetreeWorkload) Deserialize(r io.Reader) error { return w.r.Deserialize(r) }
func (w *rangetreeWorkload) MemoryReport() []bptree.MemoryUsageLine { return w.r.GetMemoryUsageInfo(0) }

func (w *rangetreeWorkload) RandomOp(rng *rand.Rand, _ *config.Config) (string, error) {
	n := w.r.Size()
	switch rng.Intn(3) {
	case 0:
		x := harness.RandPosition(rng, n)
		y := harness.RandPosition(rng, n)
		return "add", w.r.Add(x, y)
	case 1:
		xMin := rng.Intn(n + 1)
		xMax := xMin + rng.Intn(n-xMin+1)
		yMin := rng.Intn(n + 1)
		yMax := yMin + rng.Intn(n-yMin+1)
		w.r.RangeReport(xMin, xMax, yMin, yMax)
		return "range_report", nil
	default:
		if n == 0 {
			return "remove", nil
		}
		_, err := w.r.Remove(rng.Intn(n))
		return "remove", err
	}
}
