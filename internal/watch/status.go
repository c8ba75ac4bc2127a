package watch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// State is what the watcher is doing right now.
type State string

const (
	StateStarting   State = "starting"
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Status is the JSON body served on /status.
type Status struct {
	State           State        `json:"state"`
	Inbox           string       `json:"inbox"`
	CurrentDocument string       `json:"current_document,omitempty"`
	LastScanTime    *time.Time   `json:"last_scan_time,omitempty"`
	NextScanTime    *time.Time   `json:"next_scan_time,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	LastScan        *ScanSummary `json:"last_scan,omitempty"`
	Processed       int          `json:"processed"`
	Failed          int          `json:"failed"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
}

// ScanSummary counts what one pass over the inbox did.
type ScanSummary struct {
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Seen      int           `json:"seen"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

// StatusTracker holds the watcher status behind a lock.
type StatusTracker struct {
	mu        sync.RWMutex
	inbox     string
	state     State
	startTime time.Time
	lastScan  *time.Time
	nextScan  *time.Time
	current   string
	errMsg    string
	summary   *ScanSummary
	processed int
	failed    int
	ready     bool
}

// NewStatusTracker creates a tracker in the starting state.
func NewStatusTracker(inbox string) *StatusTracker {
	return &StatusTracker{inbox: inbox, state: StateStarting, startTime: time.Now()}
}

// Status returns a snapshot.
func (st *StatusTracker) Status() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Status{
		State:           st.state,
		Inbox:           st.inbox,
		CurrentDocument: st.current,
		LastScanTime:    st.lastScan,
		NextScanTime:    st.nextScan,
		ErrorMessage:    st.errMsg,
		LastScan:        st.summary,
		Processed:       st.processed,
		Failed:          st.failed,
		UptimeSeconds:   int64(time.Since(st.startTime).Seconds()),
	}
}

// Ready reports whether the first scan has finished.
func (st *StatusTracker) Ready() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ready
}

// DocumentStarted marks path as in progress.
func (st *StatusTracker) DocumentStarted(path string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = StateProcessing
	st.current = path
}

// DocumentFinished records the outcome of the current document.
func (st *StatusTracker) DocumentFinished(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = ""
	if err != nil {
		st.failed++
		st.state = StateError
		st.errMsg = err.Error()
		return
	}
	st.processed++
	st.state = StateIdle
	st.errMsg = ""
}

// ScanCompleted records a finished pass and marks the watcher ready.
func (st *StatusTracker) ScanCompleted(s ScanSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()
	t := s.StartTime
	st.lastScan = &t
	st.summary = &s
	st.ready = true
	if st.state != StateError {
		st.state = StateIdle
	}
}

// SetNextScanTime records when the periodic rescan fires next.
func (st *StatusTracker) SetNextScanTime(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextScan = &t
}

// Handler serves /health, /ready and /status.
func (st *StatusTracker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !st.Ready() {
			http.Error(w, "initial scan in progress", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st.Status()); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	})
	return mux
}
