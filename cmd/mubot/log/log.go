// Package log builds the application logger, writing to stdout and to a
// timestamped file under the log directory.
package log

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	logFile *os.File
	buffer  *bufio.Writer
)

type lockedWriter struct {
	w io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return l.w.Write(p)
}

// NewLogger opens a new log file named after name, or "mubot" when empty.
// Debug level is only enabled when debug is set.
func NewLogger(debug bool, logDir, name string) (*slog.Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}
	if name == "" {
		name = "mubot"
	}

	fileName := fmt.Sprintf("%s-%s.txt", name, time.Now().Format("2006-01-02-15-04-05"))
	f, err := os.OpenFile(filepath.Join(logDir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	mu.Lock()
	logFile = f
	buffer = bufio.NewWriterSize(f, 32*1024)
	out := io.MultiWriter(os.Stdout, buffer)
	mu.Unlock()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(lockedWriter{w: out}, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})

	return slog.New(handler), nil
}

// FlushLog writes buffered lines to the log file.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	if buffer != nil {
		buffer.Flush()
	}
}

func FlushAndClose() error {
	mu.Lock()
	defer mu.Unlock()
	if buffer != nil {
		buffer.Flush()
		buffer = nil
	}
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
