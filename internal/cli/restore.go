package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/store"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot.json>",
	Short: "Replace the memory store with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	if err := eng.Restore(&snap); err != nil {
		return err
	}

	fmt.Printf("restored %d memories, %d archived\n", len(snap.Memories), len(snap.Archive))
	return nil
}
