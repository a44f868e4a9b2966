package cmd

import (
	"bytes"
	"testing"

	"github.com/succinct-go/dynseq/pkg/config"
	"github.com/succinct-go/dynseq/pkg/harness"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Tree.DMax = 8
	cfg.Tree.LMax = 8
	cfg.Tree.AlphabetSize = 4
	cfg.Harness.ItemNum = 200
	cfg.Harness.MaxValue = 1000
	cfg.Harness.QueryNum = 150
	cfg.Harness.Seed = 7
	return cfg
}

func TestWorkloadsBuildMutateVerifyRoundTrip(t *testing.T) {
	for _, name := range []string{"dps", "dbs", "ds64", "dwt", "permutation", "rangetree"} {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			w, err := newWorkload(name, cfg)
			if err != nil {
				t.Fatalf("newWorkload(%s): %v", name, err)
			}
			if err := w.Build(cfg); err != nil {
				t.Fatalf("Build: %v", err)
			}
			if w.Size() != cfg.Harness.ItemNum {
				t.Fatalf("Size() = %d, want %d", w.Size(), cfg.Harness.ItemNum)
			}

			rng := harness.NewRNG(cfg.Harness.Seed + 1)
			for i := 0; i < cfg.Harness.QueryNum; i++ {
				if _, err := w.RandomOp(rng, cfg); err != nil {
					t.Fatalf("RandomOp[%d]: %v", i, err)
				}
			}

			if err := w.Verify(); err != nil {
				t.Fatalf("Verify: %v", err)
			}

			var buf bytes.Buffer
			if err := w.Serialize(&buf); err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			sizeBefore := w.Size()

			w2, err := newWorkload(name, cfg)
			if err != nil {
				t.Fatalf("newWorkload(%s) (2nd): %v", name, err)
			}
			if err := w2.Reset(cfg); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if err := w2.Deserialize(&buf); err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if w2.Size() != sizeBefore {
				t.Fatalf("round trip size = %d, want %d", w2.Size(), sizeBefore)
			}
			if err := w2.Verify(); err != nil {
				t.Fatalf("Verify after round trip: %v", err)
			}

			if report := w.MemoryReport(); len(report) == 0 {
				t.Fatalf("MemoryReport() empty")
			}
		})
	}
}

func TestNewWorkloadUnknownIndex(t *testing.T) {
	cfg := smallConfig()
	if _, err := newWorkload("bogus", cfg); err == nil {
		t.Fatalf("newWorkload(bogus): want error, got nil")
	}
}
