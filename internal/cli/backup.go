package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a full snapshot of the memory store as JSON",
	RunE:  runBackup,
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "write snapshot to file instead of stdout")
}

func runBackup(cmd *cobra.Command, args []string) error {
	eng, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()
	defer eng.Stop()

	snap, err := eng.Backup()
	if err != nil {
		return err
	}

	out := os.Stdout
	if backupOutput != "" {
		f, err := os.Create(backupOutput)
		if err != nil {
			return fmt.Errorf("create backup file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if backupOutput != "" {
		fmt.Fprintf(os.Stderr, "wrote %d memories to %s\n", len(snap.Memories), backupOutput)
	}
	return nil
}

// openEngine loads the config and opens the store for an offline command.
func openEngine() (*engine.Engine, *store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	return engine.New(db, cfg.Engine, nil), db, nil
}
