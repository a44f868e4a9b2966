package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// dumpCmd builds a façade and prints a debug view: for DWT the
// ToText()/Alphabet() reconstruction, for every other façade the
// paragraph-indented memory-usage report.
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print a debug view of a built façade",
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

		if dw, ok := w.(*dwtWorkload); ok {
			fmt.Printf("alphabet=%q\n", dw.d.Alphabet())
			fmt.Printf("text=%q\n", dw.d.ToText())
			return nil
		}

		for _, line := range w.MemoryReport() {
			fmt.Printf("%*s%s: %d bytes\n", line.Paragraph*2, "", line.Label, line.Bytes)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
