// Package logging builds the slog loggers textbridge writes with.
//
// A Logger shares one slog.LevelVar with every logger derived from it, so
// SetLevel takes effect across components while the daemon runs. Values of
// attributes that can carry typed text are redacted before they reach a
// handler, and file output rotates by size and day.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format is the record encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// Config selects where log records go and how they look.
type Config struct {
	Level  Level
	Format Format

	// Output is stdout, stderr, file or both (stderr and file).
	Output string

	// FilePath, MaxSize (MB), MaxAge (days), MaxBackups and Compress
	// apply to file output.
	FilePath   string
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	AddSource bool

	// Component is attached to every record as the "component" attribute.
	Component string

	// Writer replaces Output when set.
	Writer io.Writer
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   DefaultLogPath(),
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 5,
		Compress:   true,
		Component:  "textbridge",
	}
}

// DefaultLogPath is the log file used when file output has no path.
func DefaultLogPath() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Logs", "textbridge", "textbridge.log")
	default:
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			homeDir, _ := os.UserHomeDir()
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "textbridge", "textbridge.log")
	}
}

// Logger is a slog.Logger with an adjustable level.
type Logger struct {
	*slog.Logger
	config  *Config
	level   *slog.LevelVar
	rotator *FileRotator
	mu      sync.Mutex
}

// New builds a Logger. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		config: cfg,
		level:  new(slog.LevelVar),
	}
	l.level.Set(cfg.Level)

	w, err := l.setupWriter()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     l.level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", cfg.Component),
		})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

func (l *Logger) setupWriter() (io.Writer, error) {
	if l.config.Writer != nil {
		return l.config.Writer, nil
	}
	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
		fileCfg := *l.config
		if fileCfg.FilePath == "" {
			fileCfg.FilePath = DefaultLogPath()
		}
		rotator, err := NewFileRotator(&fileCfg)
		if err != nil {
			return nil, err
		}
		l.rotator = rotator
		if strings.EqualFold(l.config.Output, "both") {
			return io.MultiWriter(os.Stderr, rotator), nil
		}
		return rotator, nil
	default:
		return os.Stderr, nil
	}
}

// redactedKeys are attribute keys whose values are never written. Field
// contents typed by the user fall under this.
var redactedKeys = map[string]bool{
	"text":           true,
	"composing_text": true,
}

// shouldRedact matches redactedKeys exactly and credential-like keys by
// substring.
func shouldRedact(key string) bool {
	keyLower := strings.ToLower(key)
	if redactedKeys[keyLower] {
		return true
	}
	for _, sensitive := range []string{"password", "secret", "token", "credential"} {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// SetLevel changes the level of this logger and every logger derived
// from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// WithComponent returns a child logger tagged with name. It shares the
// parent's level and file.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String("component", name)),
		config:  l.config,
		level:   l.level,
		rotator: l.rotator,
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Sync flushes the log file to disk.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Sync()
	}
	return nil
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// LevelString is the inverse of ParseLevel. Unknown levels read as info.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
