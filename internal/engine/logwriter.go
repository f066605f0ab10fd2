package engine

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLineWriter forwards each complete line written to it as one log entry.
type LogLineWriter struct {
	logger  zerolog.Logger
	level   zerolog.Level
	message string

	mu  sync.Mutex
	buf []byte
}

func NewLogLineWriter(logger zerolog.Logger, level zerolog.Level, message string) *LogLineWriter {
	return &LogLineWriter{logger: logger, level: level, message: message, buf: make([]byte, 0, 256)}
}

func (w *LogLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		switch b {
		case '\n', '\r':
			w.flushLineLocked()
		default:
			w.buf = append(w.buf, b)
		}
	}
	return len(p), nil
}

func (w *LogLineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLineLocked()
	return nil
}

func (w *LogLineWriter) flushLineLocked() {
	if len(w.buf) == 0 {
		return
	}
	line := strings.TrimSpace(string(w.buf))
	w.buf = w.buf[:0]
	if line == "" {
		return
	}
	w.logger.WithLevel(w.level).Str("line", line).Msg(w.message)
}
