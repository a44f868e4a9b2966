package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
)

// verifyCmd builds a façade, issues a random mutation workload, runs the
// façade's own Verify, then round-trips it through Serialize/Deserialize
// and checks the element count survives unchanged.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Build, mutate, and round-trip a façade, checking its invariants",
	RunE: func(cmd *cobra.Command, _ []string) error {
		indexName, _ := cmd.Flags().GetString("index_name")
		cfg := container.Config
		w, err := newWorkload(indexName, cfg)
		if err != nil {
			return err
		}
		if err := w.Build(cfg); err != nil {
			return fmt.Errorf("build %s: %w", indexName, err)
		}

		rng := rngFromConfig(cfg)
		for i := 0; i < cfg.Harness.QueryNum; i++ {
			if _, err := w.RandomOp(rng, cfg); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
		}

		if err := w.Verify(); err != nil {
			return fmt.Errorf("verify: %w", err)
		}

		var buf bytes.Buffer
		if err := w.Serialize(&buf); err != nil {
			return fmt.Errorf("serialize: %w", err)
		}
		sizeBefore := w.Size()

		w2, err := newWorkload(indexName, cfg)
		if err != nil {
			return err
		}
		if err := w2.Reset(cfg); err != nil {
			return err
		}
		if err := w2.Deserialize(&buf); err != nil {
			return fmt.Errorf("deserialize: %w", err)
		}
		if w2.Size() != sizeBefore {
			return fmt.Errorf("round trip: size %d, want %d", w2.Size(), sizeBefore)
		}
		if err := w2.Verify(); err != nil {
			return fmt.Errorf("verify after round trip: %w", err)
		}

		fmt.Printf("index=%s size=%d ops=%d verify=ok round_trip=ok\n",
			indexName, w.Size(), cfg.Harness.QueryNum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
