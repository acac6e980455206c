package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted by LOG_LEVEL.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger

	file *os.File
}

// New builds a logger writing to stdout and, when filePath is set, appending
// to that file as well.
func New(level, filePath string) (*Logger, error) {
	lvl := toZapLevel(strings.ToLower(strings.TrimSpace(level)))
	cores := []zapcore.Core{newConsoleCore(os.Stdout, lvl)}

	var file *os.File
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, newFileCore(f, lvl))
	}

	return &Logger{
		SugaredLogger: zap.New(tee(cores)).Sugar(),
		file:          file,
	}, nil
}

// NewWriter builds a logger writing only to w.
func NewWriter(w io.Writer, level string) *Logger {
	lvl := toZapLevel(strings.ToLower(strings.TrimSpace(level)))
	return &Logger{SugaredLogger: zap.New(newConsoleCore(w, lvl)).Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
