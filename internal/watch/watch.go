// Package watch runs the analyzer over every document dropped into an inbox
// directory, once per distinct content.
package watch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/fieldscan/internal/analyzer"
	"github.com/platinummonkey/fieldscan/internal/converter"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/state"
)

// DocumentAnalyzer processes one document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, docPath, vendor string) (*analyzer.RunResult, error)
}

// Watcher watches an inbox and feeds new documents to the analyzer.
type Watcher struct {
	analyzer   DocumentAnalyzer
	ledger     *state.Manager
	logger     *logger.Logger
	inbox      string
	interval   time.Duration
	debounce   time.Duration
	healthAddr string
	pidFile    string
	status     *StatusTracker
	httpServer *http.Server
}

// Config holds configuration for the watcher
type Config struct {
	Analyzer     DocumentAnalyzer
	Ledger       *state.Manager
	Logger       *logger.Logger
	InboxDir     string
	ScanInterval time.Duration // periodic rescan (default: 5 minutes)
	Debounce     time.Duration // settle time after a file event (default: 2 seconds)
	HealthAddr   string        // optional, e.g. ":8080"
	PIDFile      string        // optional
}

// New creates a Watcher.
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	interval := cfg.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &Watcher{
		analyzer:   cfg.Analyzer,
		ledger:     cfg.Ledger,
		logger:     log.WithFields("inbox", cfg.InboxDir),
		inbox:      cfg.InboxDir,
		interval:   interval,
		debounce:   debounce,
		healthAddr: cfg.HealthAddr,
		pidFile:    cfg.PIDFile,
		status:     NewStatusTracker(cfg.InboxDir),
	}, nil
}

// Status returns the watcher's status tracker.
func (w *Watcher) Status() *StatusTracker {
	return w.status
}

// Run blocks until ctx ends or SIGINT/SIGTERM arrives.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.WithFields("interval", w.interval).Info("Starting watcher")

	if err := os.MkdirAll(w.inbox, 0755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	if w.pidFile != "" {
		if err := w.writePIDFile(); err != nil {
			return err
		}
		defer w.removePIDFile()
	}

	if w.healthAddr != "" {
		w.startHealthServer()
		defer w.stopHealthServer()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.inbox); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.inbox, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Running initial scan")
	w.Scan(ctx)
	w.status.SetNextScanTime(time.Now().Add(w.interval))

	pending := make(map[string]struct{})
	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Context canceled, shutting down")
			return ctx.Err()

		case sig := <-sigChan:
			w.logger.WithFields("signal", sig.String()).Info("Received shutdown signal")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && eligible(ev.Name) {
				pending[ev.Name] = struct{}{}
				settle.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("File watcher error")

		case <-settle.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
				delete(pending, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				if ctx.Err() != nil {
					break
				}
				w.processFile(ctx, p)
			}

		case <-ticker.C:
			w.logger.Info("Scan interval elapsed, rescanning inbox")
			w.Scan(ctx)
			w.status.SetNextScanTime(time.Now().Add(w.interval))
		}
	}
}

// Scan processes every eligible file in the inbox that the ledger has not
// completed.
func (w *Watcher) Scan(ctx context.Context) ScanSummary {
	summary := ScanSummary{StartTime: time.Now()}

	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		w.logger.WithError(err).Error("Failed to read inbox")
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(w.inbox, e.Name())
		if e.IsDir() || !eligible(path) {
			continue
		}
		summary.Seen++
		switch w.processFile(ctx, path) {
		case outcomeProcessed:
			summary.Processed++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	w.ledger.TouchScan()
	if err := w.ledger.Save(); err != nil {
		w.logger.WithError(err).Warn("Failed to save ledger")
	}

	summary.Duration = time.Since(summary.StartTime)
	w.status.ScanCompleted(summary)
	w.logger.WithFields(
		"seen", summary.Seen,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration,
	).Info("Inbox scan completed")
	return summary
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeProcessed
	outcomeFailed
)

func (w *Watcher) processFile(ctx context.Context, path string) outcome {
	log := w.logger.WithDocument(path)

	hash, err := state.HashFile(path)
	if err != nil {
		log.WithError(err).Warn("Failed to hash document, skipping")
		return outcomeSkipped
	}
	if !w.ledger.NeedsProcessing(hash) {
		log.Debug("Document already processed")
		return outcomeSkipped
	}

	record := w.ledger.Get(hash)
	if record == nil {
		record = state.NewRecord(hash, path)
	}
	record.Path = path

	w.status.DocumentStarted(path)
	res, err := w.analyzer.Analyze(ctx, path, "")
	w.status.DocumentFinished(err)

	result := outcomeProcessed
	if err != nil {
		log.WithError(err).Error("Document analysis failed")
		record.MarkFailed(err)
		result = outcomeFailed
	} else {
		record.MarkProcessed(res.Vendor, res.RunID, res.OutputDir, res.Pages, len(res.Failures))
	}

	w.ledger.Put(record)
	if err := w.ledger.Save(); err != nil {
		log.WithError(err).Warn("Failed to save ledger")
	}
	return result
}

func eligible(path string) bool {
	return converter.IsPDF(path) || converter.IsImage(path)
}

func (w *Watcher) writePIDFile() error {
	pid := os.Getpid()
	if err := os.WriteFile(w.pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	w.logger.WithFields("pid", pid, "file", w.pidFile).Info("Wrote PID file")
	return nil
}

func (w *Watcher) removePIDFile() {
	if err := os.Remove(w.pidFile); err != nil {
		w.logger.WithFields("file", w.pidFile, "error", err).Warn("Failed to remove PID file")
	}
}

func (w *Watcher) startHealthServer() {
	w.httpServer = &http.Server{
		Addr:              w.healthAddr,
		Handler:           w.status.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		w.logger.WithFields("addr", w.healthAddr).Info("Starting health check server")
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.WithError(err).Error("Health check server failed")
		}
	}()
}

func (w *Watcher) stopHealthServer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.httpServer.Shutdown(ctx); err != nil {
		w.logger.WithError(err).Warn("Failed to shutdown health check server gracefully")
	}
}
