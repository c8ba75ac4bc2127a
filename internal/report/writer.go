package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

// Output file names inside a document output directory.
const (
	TicketIssuesFile   = "ticket_issues.csv"
	IssuesLogFile      = "issues_log.csv"
	ThumbnailIndexFile = "thumbnail_index.csv"
	TimingsFile        = "process_analysis.csv"
	SummaryFile        = "summary_report.csv"
	entriesSuffix      = "_ticket_numbers"
	entriesSheet       = "Entries"
)

// Highlight colors for entry cells.
const (
	MissingFill  = "FFFF99"
	TemplateFill = "FF9999"
)

// Writer persists a Document.
type Writer struct {
	logger *logger.Logger
}

// NewWriter creates a Writer.
func NewWriter(log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Get()
	}
	return &Writer{logger: log}
}

// EntriesPath returns the entries CSV path for a document stem.
func EntriesPath(dir, stem string) string {
	return filepath.Join(dir, stem+entriesSuffix+".csv")
}

// WorkbookPath returns the entries workbook path for a document stem.
func WorkbookPath(dir, stem string) string {
	return filepath.Join(dir, stem+entriesSuffix+".xlsx")
}

// WriteAll writes every table of doc into dir and returns the files written.
// Empty tables are skipped with a warning.
func (w *Writer) WriteAll(dir, stem string, doc *Document) ([]string, error) {
	var written []string
	save := func(path string, header []string, rows [][]string) error {
		ok, err := w.writeCSV(path, header, rows)
		if ok {
			written = append(written, path)
		}
		return err
	}

	header, rows := entryRows(doc)
	if err := save(EntriesPath(dir, stem), header, rows); err != nil {
		return written, err
	}
	if len(rows) > 0 {
		if err := WriteWorkbook(WorkbookPath(dir, stem), header, rows); err != nil {
			return written, err
		}
		written = append(written, WorkbookPath(dir, stem))
		w.logger.WithFields("path", WorkbookPath(dir, stem)).Info("Excel file saved with highlights")
	}

	var ticket [][]string
	for _, t := range doc.TicketIssues {
		ticket = append(ticket, []string{strconv.Itoa(t.Page), t.Issue})
	}
	if err := save(filepath.Join(dir, TicketIssuesFile), []string{"Page", "Issue"}, ticket); err != nil {
		return written, err
	}

	var issues [][]string
	for _, is := range doc.Issues {
		issues = append(issues, []string{strconv.Itoa(is.Page), string(is.Kind), is.Field})
	}
	if err := save(filepath.Join(dir, IssuesLogFile), []string{"Page", "Issue", "Field"}, issues); err != nil {
		return written, err
	}

	var thumbs [][]string
	for _, t := range doc.Thumbnails {
		thumbs = append(thumbs, []string{strconv.Itoa(t.Page), t.Field, t.Path})
	}
	if err := save(filepath.Join(dir, ThumbnailIndexFile), []string{"Page", "Field", "ThumbnailPath"}, thumbs); err != nil {
		return written, err
	}

	var timings [][]string
	for _, t := range doc.Timings {
		timings = append(timings, []string{strconv.Itoa(t.Page), strconv.FormatFloat(t.DurationSeconds, 'f', 2, 64)})
	}
	if err := save(filepath.Join(dir, TimingsFile), []string{"Page", "DurationSeconds"}, timings); err != nil {
		return written, err
	}

	s := doc.Summary
	summary := [][]string{{
		strconv.Itoa(s.TotalPages), strconv.Itoa(s.Valid), strconv.Itoa(s.Missing),
		strconv.Itoa(s.TemplateMatched), strconv.Itoa(s.Failed),
	}}
	if err := save(filepath.Join(dir, SummaryFile), []string{"TotalPages", "Valid", "Missing", "TemplateMatched", "Failed"}, summary); err != nil {
		return written, err
	}
	return written, nil
}

func entryRows(doc *Document) ([]string, [][]string) {
	header := append([]string{"Page"}, doc.Columns...)
	rows := make([][]string, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(e.Page))
		for _, c := range doc.Columns {
			row = append(row, e.Values[c])
		}
		rows = append(rows, row)
	}
	return header, rows
}

func (w *Writer) writeCSV(path string, header []string, rows [][]string) (bool, error) {
	if len(rows) == 0 {
		w.logger.WithFields("path", path).Warn("No data to write")
		return false, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to close %s: %w", path, err)
	}
	w.logger.WithFields("path", path, "rows", len(rows)).Info("Saved table")
	return true, nil
}

// WriteWorkbook writes header and rows to a single-sheet XLSX. Cells
// mentioning "missing" are filled yellow, cells mentioning "template" red.
func WriteWorkbook(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	missing, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{MissingFill}}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	template, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{TemplateFill}}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for i, h := range header {
		if err := setCell(f, i+1, 1, h, -1); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			var value interface{} = v
			style := -1
			if n, err := strconv.Atoi(v); c == 0 && err == nil {
				value = n
			} else if st, ok := highlight(v, missing, template); ok {
				style = st
			}
			if err := setCell(f, c+1, r+2, value, style); err != nil {
				return err
			}
		}
	}
	if len(header) > 1 {
		last, err := excelize.ColumnNumberToName(len(header))
		if err != nil {
			return fmt.Errorf("xlsx column: %w", err)
		}
		if err := f.SetColWidth(entriesSheet, "B", last, 22); err != nil {
			return fmt.Errorf("xlsx column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// setCell writes value at (col, row), 1-based. A negative style leaves the
// cell unstyled.
func setCell(f *excelize.File, col, row int, value interface{}, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetCellValue(entriesSheet, cell, value); err != nil {
		return fmt.Errorf("xlsx cell %s: %w", cell, err)
	}
	if style >= 0 {
		if err := f.SetCellStyle(entriesSheet, cell, cell, style); err != nil {
			return fmt.Errorf("xlsx style %s: %w", cell, err)
		}
	}
	return nil
}

func highlight(v string, missing, template int) (int, bool) {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "missing"):
		return missing, true
	case strings.Contains(lower, "template"):
		return template, true
	}
	return 0, false
}
