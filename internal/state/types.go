package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Ledger records every document the watcher has handled, keyed by the
// SHA-256 of its content so renamed or re-dropped files are not reprocessed.
type Ledger struct {
	// LastScan is when the inbox was last scanned
	LastScan time.Time `json:"last_scan"`

	// Documents maps content hash to record
	Documents map[string]*Record `json:"documents"`

	// Version is the ledger file format version
	Version int `json:"version"`
}

// Record describes one processed document.
type Record struct {
	Hash        string    `json:"hash"`
	Path        string    `json:"path"`
	Vendor      string    `json:"vendor,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	OutputDir   string    `json:"output_dir,omitempty"`
	Pages       int       `json:"pages"`
	Failures    int       `json:"failures"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

// Status is the processing state of a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// LedgerFileVersion is the current ledger file format version.
const LedgerFileVersion = 1

// MaxAttempts bounds how often a failing document is retried.
const MaxAttempts = 3

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Documents: make(map[string]*Record),
		Version:   LedgerFileVersion,
	}
}

// NewRecord creates a pending record for a document.
func NewRecord(hash, path string) *Record {
	return &Record{Hash: hash, Path: path, Status: StatusPending}
}

// NeedsProcessing reports whether a document should be (re)processed.
func (r *Record) NeedsProcessing() bool {
	switch r.Status {
	case StatusCompleted:
		return false
	case StatusFailed:
		return r.Attempts < MaxAttempts
	default:
		return true
	}
}

// MarkProcessed records a finished run.
func (r *Record) MarkProcessed(vendor, runID, outputDir string, pages, failures int) {
	r.Vendor = vendor
	r.RunID = runID
	r.OutputDir = outputDir
	r.Pages = pages
	r.Failures = failures
	r.Status = StatusCompleted
	r.Error = ""
	r.Attempts++
	r.ProcessedAt = time.Now()
}

// MarkFailed records a run that could not complete.
func (r *Record) MarkFailed(err error) {
	r.Status = StatusFailed
	r.Error = err.Error()
	r.Attempts++
	r.ProcessedAt = time.Now()
}

// Get returns the record for hash, or nil.
func (l *Ledger) Get(hash string) *Record {
	return l.Documents[hash]
}

// Put adds or replaces a record.
func (l *Ledger) Put(r *Record) {
	l.Documents[r.Hash] = r
}

// Remove deletes a record.
func (l *Ledger) Remove(hash string) {
	delete(l.Documents, hash)
}

// ByStatus returns all records with the given status.
func (l *Ledger) ByStatus(status Status) []*Record {
	var out []*Record
	for _, r := range l.Documents {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
