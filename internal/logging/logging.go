package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "oct.log"

type Options struct {
	Level       string
	Dir         string
	FileEnabled bool
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int

	// Console receives human readable lines in addition to the file.
	Console io.Writer
	NoColor bool
}

// Logger wraps the configured zerolog logger together with the rotating file
// it writes to, so callers can close it on exit.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

func New(opts Options) (*Logger, error) {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(opts.Level); raw != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", raw, err)
		}
		level = parsed
	}

	writers := []io.Writer{}
	var file *lumberjack.Logger
	if opts.FileEnabled && strings.TrimSpace(opts.Dir) != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", opts.Dir, err)
		}
		file = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, file)
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		})
	}

	if len(writers) == 0 {
		return &Logger{Logger: zerolog.Nop()}, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{Logger: logger, file: file}, nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
