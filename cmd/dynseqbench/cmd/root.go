package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/succinct-go/dynseq/pkg/config"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dynseqbench",
	Short: "Benchmark harness for the dynseq succinct data structures",
	Long: `dynseqbench drives build/query/verify workloads against the
dynseq façades (DPS, DBS, DS64, DWT, DP, DRR). It is a standalone
consumer of the library's public surface, never a dependency of it.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if container == nil {
			SetContainer(NewContainer())
		}
		cfgPath, _ := cmd.Flags().GetString("config")
		if cfgPath != "" && config.ConfigExists(cfgPath) {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			container.Config = cfg
		}
		applyFlagOverrides(cmd)
		return nil
	},
}

// applyFlagOverrides copies any persistent flag the caller actually set
// on top of the loaded (or default) config, so flags win over the config
// file.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	cfg := container.Config
	if flags.Changed("d-max") {
		cfg.Tree.DMax, _ = flags.GetInt("d-max")
	}
	if flags.Changed("l-max") {
		cfg.Tree.LMax, _ = flags.GetInt("l-max")
	}
	if flags.Changed("alphabet-size") {
		cfg.Tree.AlphabetSize, _ = flags.GetInt("alphabet-size")
	}
	if flags.Changed("item-num") {
		cfg.Harness.ItemNum, _ = flags.GetInt("item-num")
	}
	if flags.Changed("max-value") {
		mv, _ := flags.GetInt64("max-value")
		cfg.Harness.MaxValue = int(mv)
	}
	if flags.Changed("query-num") {
		cfg.Harness.QueryNum, _ = flags.GetInt("query-num")
	}
	if flags.Changed("seed") {
		cfg.Harness.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("mode") {
		cfg.Harness.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("out-dir") {
		cfg.Harness.OutDir, _ = flags.GetString("out-dir")
	}
}

// Execute adds all child commands to rootCmd and runs it. Called once
// from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML harness config file (pkg/config)")
	rootCmd.PersistentFlags().String("index_name", "dps", "façade under test: dps|dbs|ds64|dwt|permutation|rangetree")
	rootCmd.PersistentFlags().Int("d-max", 0, "override Tree.DMax (0 = use config)")
	rootCmd.PersistentFlags().Int("l-max", 0, "override Tree.LMax (0 = use config)")
	rootCmd.PersistentFlags().Int("alphabet-size", 0, "override Tree.AlphabetSize for DWT (0 = use config)")
	rootCmd.PersistentFlags().Int("item-num", 0, "override Harness.ItemNum (0 = use config)")
	rootCmd.PersistentFlags().Int64("max-value", 0, "override Harness.MaxValue (0 = use config)")
	rootCmd.PersistentFlags().Int("query-num", 0, "override Harness.QueryNum (0 = use config)")
	rootCmd.PersistentFlags().Int64("seed", 0, "override Harness.Seed (0 = use config)")
	rootCmd.PersistentFlags().String("mode", "", "override Harness.Mode, e.g. baseline (empty = use config)")
	rootCmd.PersistentFlags().String("out-dir", "", "override Harness.OutDir (empty = use config)")
}
