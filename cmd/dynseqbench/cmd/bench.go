package cmd

import (
	"fmt"
	"math/rand"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/succinct-go/dynseq/pkg/config"
	"github.com/succinct-go/dynseq/pkg/harness"
	"github.com/succinct-go/dynseq/pkg/refstore"
)

// benchCmd builds the façade named by --index_name, then issues
// --query-num random operations, timing each through pkg/benchmetrics.
// With --mode=baseline it additionally seeds a pkg/refstore instance with
// as many values as the façade holds and runs its own random
// insert/access/remove stream (same count, same mix of shapes) against
// it, so relative timings against a real disk-backed naive sequence can
// be reported. The baseline's operations are drawn independently; they
// do not replay the façade's.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a random query/update workload against a façade",
	RunE: func(cmd *cobra.Command, _ []string) error {
		indexName, _ := cmd.Flags().GetString("index_name")
		cfg := container.Config

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
		}

		w, err := newWorkload(indexName, cfg)
		if err != nil {
			return err
		}
		run := harness.RunID()
		buildStart := time.Now()
		if err := w.Build(cfg); err != nil {
			return fmt.Errorf("build %s: %w", indexName, err)
		}
		container.Metrics.RecordBuild(indexName, time.Since(buildStart))

		var baseline *refstore.RefStore
		if cfg.Harness.Mode == "baseline" {
			dir := filepath.Join(cfg.Harness.OutDir, "refstore-"+run)
			baseline, err = refstore.Open(dir)
			if err != nil {
				return fmt.Errorf("open baseline refstore: %w", err)
			}
			defer baseline.Close()
			seedSeq := harness.RandSeq(cfg.Harness.Seed, w.Size(), uint64(cfg.Harness.MaxValue))
			for _, v := range seedSeq {
				if err := baseline.PushBack(v); err != nil {
					return fmt.Errorf("seed baseline: %w", err)
				}
			}
		}

		rng := rngFromConfig(cfg)
		baselineRng := rngFromConfig(cfg)
		var facadeTotal, baselineTotal time.Duration
		for i := 0; i < cfg.Harness.QueryNum; i++ {
			opStart := time.Now()
			op, opErr := w.RandomOp(rng, cfg)
			elapsed := time.Since(opStart)
			facadeTotal += elapsed
			container.Metrics.RecordOp(indexName, op, opErr == nil, elapsed)

			if baseline != nil {
				baseStart := time.Now()
				_ = runBaselineOp(baseline, baselineRng, cfg)
				baselineTotal += time.Since(baseStart)
			}
		}
		container.Metrics.UpdateStructureStats(indexName, w.Size(), w.SizeInBytes())

		fmt.Printf("run=%s index=%s ops=%d facade_total=%s facade_avg=%s\n",
			run, indexName, cfg.Harness.QueryNum, facadeTotal, facadeTotal/time.Duration(max1(cfg.Harness.QueryNum)))
		if baseline != nil {
			fmt.Printf("run=%s index=%s baseline_total=%s baseline_avg=%s\n",
				run, indexName, baselineTotal, baselineTotal/time.Duration(max1(cfg.Harness.QueryNum)))
		}
		return nil
	},
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// runBaselineOp issues one of the naive baseline's O(n) operations,
// mirroring the mutation shape RandomOp exercises on the façade under
// test, so relative timings are comparable.
func runBaselineOp(b *refstore.RefStore, rng *rand.Rand, cfg *config.Config) error {
	switch rng.Intn(3) {
	case 0:
		pos := harness.RandPosition(rng, b.Size())
		return b.Insert(pos, uint64(rng.Int63n(int64(cfg.Harness.MaxValue)+1)))
	case 1:
		if b.Size() == 0 {
			return nil
		}
		_, err := b.At(rng.Intn(b.Size()))
		return err
	default:
		if b.Size() == 0 {
			return nil
		}
		_, err := b.Remove(rng.Intn(b.Size()))
		return err
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	_ = http.ListenAndServe(addr, mux)
}

func init() {
	benchCmd.Flags().String("metrics-addr", "", "if set, serve Prometheus metrics at this address during the run")
	rootCmd.AddCommand(benchCmd)
}
