package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jaa/oct/internal/config"
	"github.com/jaa/oct/internal/logging"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger writes to the rotating log file under logRoot. Console lines go
// to stderr only with --verbose and when nothing is redrawing the terminal.
func newLogger(app *AppContext, cfg config.Config, logRoot string, redrawing bool) (*logging.Logger, error) {
	var console io.Writer
	if app.Opts.Verbose && !redrawing {
		console = app.IO.ErrOut
	}
	level := cfg.Logging.Level
	if app.Opts.Verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:       level,
		Dir:         logRoot,
		FileEnabled: cfg.Logging.FileEnabled,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Console:     console,
		NoColor:     app.Opts.NoColor,
	})
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
