// Package state persists the ledger of documents handled by watch mode.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Manager guards a Ledger and its JSON file.
type Manager struct {
	ledger   *Ledger
	filePath string
	mu       sync.RWMutex
}

// NewManager creates a manager for the ledger at filePath.
func NewManager(filePath string) *Manager {
	return &Manager{
		ledger:   NewLedger(),
		filePath: filePath,
	}
}

// Load reads the ledger file. A missing file yields an empty ledger.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		m.ledger = NewLedger()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return fmt.Errorf("failed to parse ledger file: %w", err)
	}
	if ledger.Version != LedgerFileVersion {
		return fmt.Errorf("unsupported ledger file version %d (expected %d)", ledger.Version, LedgerFileVersion)
	}
	if ledger.Documents == nil {
		ledger.Documents = make(map[string]*Record)
	}

	m.ledger = &ledger
	return nil
}

// Save writes the ledger atomically: a temp file in the same directory is
// synced and then renamed over the ledger path.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.ledger, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.filePath); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// Get returns a copy of the record for hash, or nil.
func (m *Manager) Get(hash string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.ledger.Get(hash)
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Put adds or replaces a record.
func (m *Manager) Put(r *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.ledger.Put(&cp)
}

// Remove deletes a record.
func (m *Manager) Remove(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger.Remove(hash)
}

// NeedsProcessing reports whether the document with hash should be run.
func (m *Manager) NeedsProcessing(hash string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.ledger.Get(hash)
	return r == nil || r.NeedsProcessing()
}

// TouchScan updates the last scan timestamp.
func (m *Manager) TouchScan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger.LastScan = time.Now()
}

// LastScan returns the last scan timestamp.
func (m *Manager) LastScan() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledger.LastScan
}

// ByStatus returns copies of the records with status.
func (m *Manager) ByStatus(status Status) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.ledger.ByStatus(status) {
		out = append(out, *r)
	}
	return out
}

// Count returns the number of records.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ledger.Documents)
}

// Reset clears the ledger.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = NewLedger()
}

// LoadOrCreate loads the ledger at filePath, writing an empty one if none exists.
func LoadOrCreate(filePath string) (*Manager, error) {
	m := NewManager(filePath)
	if err := m.Load(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to save initial ledger: %w", err)
		}
	}
	return m, nil
}
