package main

import (
	"github.com/spf13/cobra"

	"github.com/moviedata/lakehouse/internal/state"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [datasets...]",
	Short: "Remove extracted raw files, keeping archives and bronze tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, cleanup, err := buildRunner(cmd.Context(), state.Transform)
		if err != nil {
			return err
		}
		defer cleanup()
		return r.Clean(args)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [datasets...]",
	Short: "Remove every artifact, returning datasets to unfetched",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, cleanup, err := buildRunner(cmd.Context(), state.Transform)
		if err != nil {
			return err
		}
		defer cleanup()
		return r.Reset(args)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd, resetCmd)
}
