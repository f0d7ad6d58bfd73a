package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moviedata/lakehouse/internal/config"
)

var cfg *config.Config

var (
	flagForce  bool
	flagStrict bool
)

var rootCmd = &cobra.Command{
	Use:   "lakehouse",
	Short: "Dataset lifecycle manager for IMDb-style tabular dumps",
	Long: `Downloads public dataset dumps, extracts their archives, and loads them
into typed bronze tables. State is derived from the filesystem on every
invocation, so interrupted or manually altered runs resume where they left
off.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagForce, "force", false, "redo every stage even when artifacts are up to date")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "exit non-zero when any dataset fails, not only when all do")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
