package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	archiveMaxAgeDays      int
	archiveWeightThreshold float64
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old low-weight memories into the archive",
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().IntVar(&archiveMaxAgeDays, "max-age-days", 30, "archive memories older than this many days")
	archiveCmd.Flags().Float64Var(&archiveWeightThreshold, "weight-threshold", 0.3, "archive memories at or below this weight")
}

func runArchive(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	moved, err := eng.Archive(context.Background(), archiveMaxAgeDays, archiveWeightThreshold)
	if err != nil {
		return err
	}

	fmt.Printf("archived %d memories\n", moved)
	return nil
}
