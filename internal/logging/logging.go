package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skobkin/advchat/internal/config"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Manager owns the process logger and the optional log file. Console output
// goes to stderr so that stdout stays free for command output.
type Manager struct {
	console io.Writer

	mu       sync.RWMutex
	logger   *slog.Logger
	level    slog.Level
	format   string
	file     *os.File
	filePath string
}

func NewManager() *Manager {
	return NewManagerWithConsole(os.Stderr)
}

func NewManagerWithConsole(console io.Writer) *Manager {
	if console == nil {
		console = io.Discard
	}
	m := &Manager{console: console, level: slog.LevelInfo, format: FormatText}
	m.logger = slog.New(newHandler(console, m.format, m.level))

	return m
}

func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
		m.filePath = ""
	}

	writer := m.console
	if cfg.LogToFile {
		cleanPath := filepath.Clean(filePath)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		// #nosec G304 -- path is resolved by app runtime and points to user config dir.
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		m.filePath = cleanPath
		writer = newFanoutWriter(m.console, file)
	}

	m.level = level
	m.format = format
	m.logger = slog.New(newHandler(writer, format, level))
	slog.SetDefault(m.logger)

	return nil
}

// Logger returns the process logger tagged with component.
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logger.With("component", component)
}

func (m *Manager) Level() slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.level
}

// FilePath is the log file in use, or "" when logging to the console only.
func (m *Manager) FilePath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filePath
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return err
		}
		m.file = nil
		m.filePath = ""
	}

	return nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

// ParseFormat accepts "text" and "json"; empty means text.
func ParseFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unsupported log format: %q", raw)
	}
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// fanoutWriter succeeds when at least one destination took the whole write.
type fanoutWriter struct {
	writers []io.Writer
}

func newFanoutWriter(writers ...io.Writer) io.Writer {
	filtered := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			filtered = append(filtered, w)
		}
	}

	return &fanoutWriter{writers: filtered}
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	var (
		wroteAny bool
		firstErr error
	)

	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}
		wroteAny = true
	}

	if wroteAny || firstErr == nil {
		return len(p), nil
	}

	return 0, firstErr
}
