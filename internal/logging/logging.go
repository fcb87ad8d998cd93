// Package logging wraps log/slog the way the teacher's setupLogging
// does: a text handler over an io.MultiWriter(stdout, rotating file),
// exposed through the three-severity structured Logger interface the
// supervisor core depends on (spec.md §1).
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
)

// Logger is the three-severity structured logging interface the
// supervisor core talks to (spec.md §1). Field pairs follow slog's
// key-value convention.
type Logger interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// SlogLogger adapts *slog.Logger to the Logger interface.
type SlogLogger struct {
	l *slog.Logger
}

func (s *SlogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

// New builds a Logger writing to stdout and a rotating file at logPath,
// mirroring the teacher's setupLogging (lumberjack.Logger + MultiWriter +
// slog.NewTextHandler).
func New(logPath string) (*SlogLogger, error) {
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	rotating := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotating)
	handler := slog.NewTextHandler(mw, &slog.HandlerOptions{AddSource: false})
	return &SlogLogger{l: slog.New(handler)}, nil
}

// Discard is a Logger that drops everything, for tests.
type Discard struct{}

func (Discard) Info(string, ...any)  {}
func (Discard) Warn(string, ...any)  {}
func (Discard) Error(string, ...any) {}

var _ Logger = (*SlogLogger)(nil)
var _ Logger = Discard{}
