package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/succinct-go/dynseq/pkg/harness"
)

// buildCmd bulk-builds the façade named by --index_name from a random
// workload and prints its size, byte footprint, and build duration.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bulk-build a façade from a random workload and report its footprint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		indexName, _ := cmd.Flags().GetString("index_name")
		cfg := container.Config
		w, err := newWorkload(indexName, cfg)
		if err != nil {
			return err
		}

		run := harness.RunID()
		start := time.Now()
		if err := w.Build(cfg); err != nil {
			return fmt.Errorf("build %s: %w", indexName, err)
		}
		elapsed := time.Since(start)
		container.Metrics.RecordBuild(indexName, elapsed)

		fmt.Printf("run=%s index=%s items=%d size=%d bytes=%d build_time=%s\n",
			run, indexName, cfg.Harness.ItemNum, w.Size(), w.SizeInBytes(), elapsed)
		for _, line := range w.MemoryReport() {
			fmt.Printf("%*s%s: %d bytes\n", line.Paragraph*2, "", line.Label, line.Bytes)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
