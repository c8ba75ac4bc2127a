// Package report merges page results into document tables and writes them
// as CSV files and an XLSX workbook.
package report

import (
	"sort"
	"strings"

	"github.com/platinummonkey/fieldscan/internal/pipeline"
	"github.com/platinummonkey/fieldscan/internal/scheduler"
)

// Entry is one row of the entries table.
type Entry struct {
	Page   int
	Values map[string]string
}

// TicketIssue is one row of the ticket issues table.
type TicketIssue struct {
	Page  int
	Issue string
}

// Summary counts pages by outcome.
type Summary struct {
	TotalPages      int
	Valid           int
	Missing         int
	TemplateMatched int
	Failed          int
}

// Document holds every table produced for one source document.
type Document struct {
	Columns      []string // field columns after Page, in layout order
	Entries      []Entry
	TicketIssues []TicketIssue
	Issues       []pipeline.Issue
	Thumbnails   []pipeline.Thumbnail
	Timings      []pipeline.Timing
	Summary      Summary
}

// Aggregator turns a scheduler batch into a Document.
type Aggregator interface {
	Aggregate(results []*pipeline.PageResult, failures []scheduler.PageFailure) *Document
}

// Builder is the default Aggregator. Fields is the layout's field order.
type Builder struct {
	Fields []string
}

// Aggregate implements Aggregator. Failed pages get a row whose cells all
// read PAGE_FAILED and one PAGE_FAILED issue.
func (b Builder) Aggregate(results []*pipeline.PageResult, failures []scheduler.PageFailure) *Document {
	doc := &Document{Columns: b.columns(results, failures)}

	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Page] = true
	}

	for _, r := range results {
		values := make(map[string]string, len(r.Outcomes))
		for name, o := range r.Outcomes {
			values[name] = o.String()
		}
		doc.Entries = append(doc.Entries, Entry{Page: r.Page, Values: values})
		if r.TicketIssue != "" {
			doc.TicketIssues = append(doc.TicketIssues, TicketIssue{Page: r.Page, Issue: r.TicketIssue})
		}
		doc.Issues = append(doc.Issues, r.Issues...)
		doc.Thumbnails = append(doc.Thumbnails, r.Thumbnails...)
		doc.Timings = append(doc.Timings, r.Timing)
	}

	for _, f := range failures {
		values := make(map[string]string, len(doc.Columns))
		for _, c := range doc.Columns {
			values[c] = string(pipeline.PageFailed)
		}
		doc.Entries = append(doc.Entries, Entry{Page: f.Page, Values: values})
		doc.Issues = append(doc.Issues, pipeline.Issue{Page: f.Page, Kind: pipeline.PageFailed})
	}

	sort.SliceStable(doc.Entries, func(i, j int) bool { return doc.Entries[i].Page < doc.Entries[j].Page })
	sort.SliceStable(doc.Issues, func(i, j int) bool { return doc.Issues[i].Page < doc.Issues[j].Page })

	doc.Summary = summarize(doc.Entries, failed)
	return doc
}

// columns keeps layout order and drops fields no page produced a value for.
func (b Builder) columns(results []*pipeline.PageResult, failures []scheduler.PageFailure) []string {
	seen := make(map[string]bool)
	for _, r := range results {
		for name := range r.Outcomes {
			seen[name] = true
		}
	}

	var cols []string
	for _, name := range b.Fields {
		if seen[name] {
			cols = append(cols, name)
			delete(seen, name)
		}
	}
	// Fields missing from the layout list still get a column.
	var extra []string
	for name := range seen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	if len(cols) == 0 && len(failures) > 0 {
		cols = append(cols, b.Fields...)
	}
	return cols
}

func summarize(entries []Entry, failed map[int]bool) Summary {
	s := Summary{TotalPages: len(entries)}
	for _, e := range entries {
		if failed[e.Page] {
			s.Failed++
			continue
		}
		missing, template := false, false
		for _, v := range e.Values {
			if strings.Contains(v, string(pipeline.Missing)) {
				missing = true
			}
			if strings.Contains(v, string(pipeline.TemplateMatch)) {
				template = true
			}
		}
		if missing {
			s.Missing++
		} else {
			s.Valid++
		}
		if template {
			s.TemplateMatched++
		}
	}
	return s
}
