package main

import (
	"github.com/spf13/cobra"

	"github.com/moviedata/lakehouse/internal/state"
)

var downloadCmd = &cobra.Command{
	Use:     "download [datasets...]",
	Aliases: []string{"fetch", "update", "up"},
	Short:   "Download dataset archives that are missing or stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), state.Fetch, args)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [datasets...]",
	Short: "Extract downloaded archives into raw files",
	Long: `Extract downloaded archives into raw files, downloading first where no
valid archive exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), state.Extract, args)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [datasets...]",
	Short: "Load raw files into typed bronze tables",
	Long: `Load raw files into typed bronze tables, running any earlier stage a
dataset still needs. Null markers become SQL NULL and every row carries
dataset, source file, and ingest time provenance columns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), state.Transform, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [datasets...]",
	Short: "Bring every requested dataset fully up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), state.Transform, args)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd, extractCmd, ingestCmd, runCmd)
}
