package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/notify"
	"github.com/lazypower/mnemo/internal/server"
	"github.com/lazypower/mnemo/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Optional record-created notifications over Redis pub/sub.
	var notifier notify.Notifier
	if cfg.Redis.Addr != "" {
		notifier = notify.NewRedis(cfg.Redis.Addr, cfg.Redis.Channel)
		defer notifier.Close()
		fmt.Fprintf(os.Stderr, "  notify: redis %s (channel %s)\n", cfg.Redis.Addr, cfg.Redis.Channel)
	}

	eng := engine.New(db, cfg.Engine, notifier)
	defer eng.Stop()

	if cfg.Engine.ConsolidateEvery > 0 {
		eng.StartScheduler(cfg.Engine.ConsolidateEvery)
		fmt.Fprintf(os.Stderr, "  consolidation: every %s\n", cfg.Engine.ConsolidateEvery)
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "mnemo serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
