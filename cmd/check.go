package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/moviedata/lakehouse/internal/state"
)

var checkCmd = &cobra.Command{
	Use:   "check [datasets...]",
	Short: "Report each dataset's on-disk state without acting",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, cleanup, err := buildRunner(cmd.Context(), state.Transform)
		if err != nil {
			return err
		}
		defer cleanup()

		inspections, err := r.Inspect(args)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATASET\tSTATE\tNEXT\tARCHIVE\tRAW\tBRONZE")
		for _, in := range inspections {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				in.Dataset, in.State, in.Next,
				fileSize(in.Files.Archive), fileSize(in.Files.Raw), fileSize(in.Files.Bronze))
		}
		return w.Flush()
	},
}

// fileSize renders a file's size for the check table, or "-" when absent.
func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	const unit = 1024
	size := info.Size()
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
