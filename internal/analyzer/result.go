package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/fieldscan/internal/report"
	"github.com/platinummonkey/fieldscan/internal/scheduler"
)

// RunResult describes one analyzed document.
type RunResult struct {
	RunID     string
	Document  string
	Vendor    string
	OutputDir string
	Pages     int
	Failures  []scheduler.PageFailure
	Summary   report.Summary
	Files     []string
	StartTime time.Time
	Duration  time.Duration
}

// HasFailures reports whether any page produced no result.
func (r *RunResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// Report returns a human-readable summary of the run.
func (r *RunResult) Report() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Analysis %s:\n", r.RunID)
	fmt.Fprintf(&sb, "  Document: %s\n", r.Document)
	fmt.Fprintf(&sb, "  Vendor: %s\n", r.Vendor)
	fmt.Fprintf(&sb, "  Output: %s\n", r.OutputDir)
	fmt.Fprintf(&sb, "  Pages: %d\n", r.Summary.TotalPages)
	fmt.Fprintf(&sb, "  Valid: %d\n", r.Summary.Valid)
	fmt.Fprintf(&sb, "  Missing: %d\n", r.Summary.Missing)
	fmt.Fprintf(&sb, "  Template matched: %d\n", r.Summary.TemplateMatched)
	fmt.Fprintf(&sb, "  Duration: %v\n", r.Duration.Round(time.Millisecond))

	if r.HasFailures() {
		sb.WriteString("\nFailed pages:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&sb, "  - page %d: %v\n", f.Page, f.Err)
		}
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (r *RunResult) String() string {
	return r.Report()
}
