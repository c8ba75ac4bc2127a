package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Run log files inside {outputDir}/logs.
const (
	RunLogFile    = "run.log"
	LogReportCSV  = "log_report.csv"
	LogReportHTML = "log_report.html"

	unmatchedLevel = "UNMATCHED"
)

// LogEntry is one line of a JSON run log.
type LogEntry struct {
	Time    string
	Level   string
	File    string
	Line    int
	Message string
}

// reserved keys written by the zap JSON encoder; everything else is a field.
var reservedLogKeys = map[string]bool{
	"ts": true, "level": true, "caller": true, "msg": true, "stacktrace": true, "logger": true,
}

// ReadLog parses a JSON-lines run log. Lines that are not JSON objects come
// back as UNMATCHED entries carrying the raw text.
func ReadLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	var entries, unmatched []LogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if e, ok := parseLogLine(line); ok {
			entries = append(entries, e)
		} else {
			unmatched = append(unmatched, LogEntry{Level: unmatchedLevel, Message: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}
	return append(entries, unmatched...), nil
}

func parseLogLine(line string) (LogEntry, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, false
	}
	msg, ok := raw["msg"].(string)
	if !ok {
		return LogEntry{}, false
	}

	e := LogEntry{Message: msg}
	e.Time, _ = raw["ts"].(string)
	if lvl, ok := raw["level"].(string); ok {
		e.Level = strings.ToUpper(lvl)
	}
	if caller, ok := raw["caller"].(string); ok {
		if i := strings.LastIndex(caller, ":"); i > 0 {
			e.File = caller[:i]
			e.Line, _ = strconv.Atoi(caller[i+1:])
		} else {
			e.File = caller
		}
	}

	var keys []string
	for k := range raw {
		if !reservedLogKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Message += fmt.Sprintf(" %s=%v", k, raw[k])
	}
	return e, true
}

// ExportLogs turns the run log at logPath into dir/log_report.csv (every
// entry) and dir/log_report.html (WARN and ERROR entries grouped by level).
func (w *Writer) ExportLogs(logPath, dir string) ([]string, error) {
	entries, err := ReadLog(logPath)
	if err != nil {
		return nil, err
	}

	var written []string
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		line := ""
		if e.Line > 0 {
			line = strconv.Itoa(e.Line)
		}
		rows = append(rows, []string{e.Time, e.Level, e.File, line, e.Message})
	}
	csvPath := filepath.Join(dir, LogReportCSV)
	ok, err := w.writeCSV(csvPath, []string{"datetime", "level", "file", "line", "message"}, rows)
	if err != nil {
		return nil, err
	}
	if ok {
		written = append(written, csvPath)
	}

	htmlPath := filepath.Join(dir, LogReportHTML)
	if err := writeLogHTML(htmlPath, entries); err != nil {
		return written, err
	}
	w.logger.WithFields("path", htmlPath).Info("Saved log report")
	return append(written, htmlPath), nil
}

type logGroup struct {
	Level   string
	Entries []LogEntry
}

var logReportTemplate = template.Must(template.New("log_report").Parse(`<html><head><style>details{margin-bottom:1em;}summary{font-weight:bold;}</style></head><body>
<h1>Error Log Report</h1>
{{range .Groups}}<details><summary>{{.Level}} ({{len .Entries}} entries)</summary><ul>
{{range .Entries}}<li>datetime: {{.Time}} | level: {{.Level}} | file: {{.File}} | line: {{.Line}} | message: {{.Message}}</li>
{{end}}</ul></details>
{{end}}{{if .Unmatched}}<details><summary>Unmatched Log Lines</summary><ul>
{{range .Unmatched}}<li>{{.Message}}</li>
{{end}}</ul></details>
{{end}}</body></html>
`))

func writeLogHTML(path string, entries []LogEntry) error {
	view := struct {
		Groups    []logGroup
		Unmatched []LogEntry
	}{}
	byLevel := map[string][]LogEntry{}
	for _, e := range entries {
		switch e.Level {
		case "ERROR", "WARN":
			byLevel[e.Level] = append(byLevel[e.Level], e)
		case unmatchedLevel:
			view.Unmatched = append(view.Unmatched, e)
		}
	}
	for _, lvl := range []string{"ERROR", "WARN"} {
		if len(byLevel[lvl]) > 0 {
			view.Groups = append(view.Groups, logGroup{Level: lvl, Entries: byLevel[lvl]})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := logReportTemplate.Execute(f, view); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
