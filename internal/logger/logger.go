// Package logger is the zap-backed structured logger shared by every
// fieldscan package. Per-run context (document, vendor, page, field) is
// attached with the With helpers so worker logs can be filtered per page.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap.SugaredLogger that remembers the Config it was built from.
type Logger struct {
	*zap.SugaredLogger
	config *Config
}

// Config selects level, encoding and an optional log file. Stdout is always
// written.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console or json
	OutputPath string
}

var defaultConfig = Config{Level: "info", Format: "console"}

var (
	mu     sync.Mutex
	global *Logger
)

// New builds a Logger. A nil cfg means info-level console output.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		c := defaultConfig
		cfg = &c
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	sink, err := openSink(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)
	z := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{SugaredLogger: z.Sugar(), config: cfg}, nil
}

func newEncoder(format string) zapcore.Encoder {
	if strings.EqualFold(format, "json") {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func openSink(path string) (zapcore.WriteSyncer, error) {
	stdout := zapcore.Lock(os.Stdout)
	if path == "" {
		return stdout, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(f)), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", level)
}

// Tee returns a logger that writes everything l writes and also appends
// entries at cfg.Level or above to cfg.OutputPath, encoded per cfg.Format.
// Entries carry their caller. The returned close func flushes and closes
// the file; l itself is untouched.
func (l *Logger) Tee(cfg *Config) (*Logger, func() error, error) {
	if cfg == nil || cfg.OutputPath == "" {
		return nil, nil, fmt.Errorf("tee requires an output path")
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputPath, err)
	}

	file := zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(f), level)
	z := zap.New(zapcore.NewTee(l.Desugar().Core(), file), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	closer := func() error {
		_ = z.Sync()
		return f.Close()
	}
	return &Logger{SugaredLogger: z.Sugar(), config: l.config}, closer, nil
}

// Init replaces the process-wide logger returned by Get.
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

// Get returns the process-wide logger, building the default one on first use.
func Get() *Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global, _ = New(nil)
	}
	return global
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), config: &Config{}}
}

// WithFields attaches alternating key/value pairs.
func (l *Logger) WithFields(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.With(kv...), config: l.config}
}

func (l *Logger) WithDocument(path string) *Logger { return l.WithFields("document", path) }
func (l *Logger) WithVendor(vendor string) *Logger { return l.WithFields("vendor", vendor) }
func (l *Logger) WithPage(page int) *Logger { return l.WithFields("page", page) }
func (l *Logger) WithField(name string) *Logger { return l.WithFields("field", name) }
func (l *Logger) WithOperation(op string) *Logger { return l.WithFields("operation", op) }
func (l *Logger) WithError(err error) *Logger { return l.WithFields("error", err) }

// WithError is Get().WithError.
func WithError(err error) *Logger { return Get().WithError(err) }

// Sync flushes the process-wide logger.
func Sync() error { return Get().Sync() }
