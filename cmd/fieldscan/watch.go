package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/fieldscan/internal/state"
	"github.com/platinummonkey/fieldscan/internal/watch"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze every document dropped into an inbox directory",
	Long: `Run fieldscan as a long-running process that analyzes each new document
in the inbox once. Documents are tracked by content hash in a ledger file, so
copies and renames are not reprocessed.

Features:
- File system notifications plus a periodic rescan
- Graceful shutdown on SIGTERM/SIGINT
- Optional /health, /ready and /status HTTP endpoints
- Optional PID file for process management

Examples:
  fieldscan watch --inbox-dir /srv/scans/inbox
  fieldscan watch --inbox-dir inbox --health-addr :8080 --pid-file /run/fieldscan.pid`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("inbox-dir", "", "directory to watch for documents")
	watchCmd.Flags().String("state-file", "", "ledger file of processed documents")
	watchCmd.Flags().Duration("scan-interval", 5*time.Minute, "periodic rescan interval")
	watchCmd.Flags().String("health-addr", "", "health check HTTP address (e.g., :8080)")
	watchCmd.Flags().String("pid-file", "", "PID file path")
	for _, name := range []string{"inbox-dir", "state-file", "scan-interval", "health-addr", "pid-file"} {
		bindFlag(watchCmd, name)
	}
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, _, err := newAnalyzer(cfg, log.WithOperation("watch"))
	if err != nil {
		return err
	}

	ledger, err := state.LoadOrCreate(cfg.Watch.StateFile)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	w, err := watch.New(&watch.Config{
		Analyzer:     a,
		Ledger:       ledger,
		Logger:       log,
		InboxDir:     cfg.Watch.InboxDir,
		ScanInterval: cfg.Watch.ScanInterval,
		HealthAddr:   cfg.Watch.HealthAddr,
		PIDFile:      cfg.Watch.PIDFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watcher error: %w", err)
	}
	log.Info("Watcher stopped")
	return nil
}
