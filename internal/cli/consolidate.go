package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

var (
	consolidateThreshold float64
	consolidateMaxMerges int
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation pass over the memory store",
	RunE:  runConsolidate,
}

func init() {
	consolidateCmd.Flags().Float64Var(&consolidateThreshold, "threshold", 0, "similarity threshold for merging (0 = configured default)")
	consolidateCmd.Flags().IntVar(&consolidateMaxMerges, "max-merges", 0, "merge cap for this run (0 = configured default)")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	res, err := eng.Consolidate(context.Background(), engine.ConsolidateOptions{
		SimilarityThreshold: consolidateThreshold,
		MaxMerges:           consolidateMaxMerges,
	})
	if err != nil {
		return err
	}

	fmt.Printf("consolidated: %d merges, %d pruned, %d synthesized, %d memories remain\n",
		res.Merges, res.Pruned, res.Synthesized, res.FinalCount)
	return nil
}
