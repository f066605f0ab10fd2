package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jaa/oct/internal/ansible"
	"github.com/jaa/oct/internal/config"
	"github.com/jaa/oct/internal/engine"
	"github.com/jaa/oct/internal/exitcode"
	"github.com/jaa/oct/internal/output"
	"github.com/jaa/oct/internal/progress"
	"github.com/jaa/oct/internal/resultlog"
)

func newRunCommand(app *AppContext) *cobra.Command {
	var inventory string
	var extraVars []string
	var check bool
	var forks int
	var progressMode string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run PLAYBOOK",
		Short: "Run a playbook with the live progress display",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("run expects exactly one playbook path, got %d", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseExtraVars(extraVars)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			if forks < 0 {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("--forks must be >= 0"))
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			mode := cfg.Progress.Mode
			if cmd.Flags().Changed("progress") {
				mode, err = parseProgressMode(progressMode)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
			}

			playbook := args[0]
			if _, err := os.Stat(playbook); err != nil {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("playbook %s: %w", playbook, err))
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			return runPlaybook(ctx, app, cfg, mode, engine.PlaybookOptions{
				Playbook:  playbook,
				Inventory: inventory,
				ExtraVars: vars,
				Check:     check,
				Forks:     forks,
				Timeout:   timeout,
				DryRun:    app.Opts.DryRun,
			})
		},
	}

	cmd.Flags().StringVarP(&inventory, "inventory", "i", "", "Inventory path (overrides ansible.inventory)")
	cmd.Flags().StringArrayVarP(&extraVars, "extra-var", "e", nil, "Extra variable as key=value, value parsed as YAML (repeatable)")
	cmd.Flags().BoolVar(&check, "check", false, "Run ansible-playbook in check mode")
	cmd.Flags().IntVar(&forks, "forks", 0, "Override ansible.forks")
	cmd.Flags().StringVar(&progressMode, "progress", "auto", "Progress rendering mode: auto, always, or never")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the playbook after this long (e.g. 30m)")
	return cmd
}

func runPlaybook(ctx context.Context, app *AppContext, cfg config.Config, mode config.ProgressMode, opts engine.PlaybookOptions) error {
	logRoot, err := config.ExpandPath(cfg.Logging.LogRoot)
	if err != nil {
		return withExitCode(exitcode.InvalidConfig, fmt.Errorf("resolve log root: %w", err))
	}

	showProgress := !app.Opts.JSON && !app.Opts.Quiet && !opts.DryRun
	interactive := showProgress && progressInteractive(app.IO.Out, mode)

	logger, err := newLogger(app, cfg, logRoot, interactive)
	if err != nil {
		return withExitCode(exitcode.InvalidConfig, err)
	}
	defer logger.Close()

	runner := engine.NewPlaybookRunner(cfg, logger.Logger, app.IO.Out)
	if opts.DryRun {
		events := ansible.NewEventWriter(ansible.NewMultiHandler(), logger.Logger)
		if _, err := runner.Run(ctx, opts, events); err != nil {
			return withExitCode(exitcode.RuntimeFailure, err)
		}
		return nil
	}

	store := resultlog.NewStore(logRoot, logger.Logger)
	if err := store.Open(opts.Playbook); err != nil {
		if errors.Is(err, resultlog.ErrLocked) {
			return withExitCode(exitcode.RunLocked, fmt.Errorf("%w: %s", err, logRoot))
		}
		return withExitCode(exitcode.RuntimeFailure, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close result log")
		}
	}()

	runLogger := logger.With().Str("run_id", store.RunID()).Logger()
	runner.Logger = runLogger

	handlers := []ansible.Handler{store}
	var session *progress.Session
	if showProgress {
		renderer := progress.NewRenderer(progress.RendererOptions{
			Out:         app.IO.Out,
			Err:         app.IO.ErrOut,
			Interactive: interactive,
			Palette:     progress.NewPalette(!app.Opts.NoColor && progress.SupportsInPlaceUpdates(app.IO.Out)),
			Tick:        time.Duration(cfg.Progress.RefreshIntervalMS) * time.Millisecond,
			Width: func() int {
				return progress.OutputWidth(app.IO.Out, cfg.Progress.MaxWidth)
			},
		})
		session = progress.NewSession(renderer, progress.DefaultQueueSize)
		tracker := progress.NewTracker(progress.TrackerOptions{
			Publish:     session.Publish,
			LogLocation: store.HostDir,
		})
		handlers = append(handlers, engine.NewProgressHandler(tracker))
		session.Start(context.Background())
	}
	emitters := []output.EventEmitter{output.NewLogEmitter(runLogger)}
	if app.Opts.JSON {
		emitters = append(emitters, output.NewJSONEmitter(app.IO.Out))
	}
	handlers = append(handlers, engine.NewEventHandler(output.NewMultiEmitter(emitters...), runLogger, store.RunID()))

	events := ansible.NewEventWriter(ansible.NewMultiHandler(handlers...), runLogger)
	result, runErr := runner.Run(ctx, opts, events)
	if session != nil {
		if err := session.Close(); err != nil {
			runLogger.Warn().Err(err).Msg("progress display stopped early")
		}
	}

	if !app.Opts.JSON {
		reportSummary(app, opts.Playbook, result, store.RunDir(), runErr)
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		return withExitCode(exitcode.Interrupted, runErr)
	case errors.Is(runErr, engine.ErrPlaybookFailed):
		return withExitCode(exitcode.PlaybookFailed, runErr)
	case result.ExitCode == 127:
		return withExitCode(exitcode.MissingDependency, runErr)
	default:
		return withExitCode(exitcode.RuntimeFailure, runErr)
	}
}

func reportSummary(app *AppContext, playbook string, result engine.PlaybookResult, runDir string, runErr error) {
	emitter := output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
	emitter.SetColor(!app.Opts.NoColor && progress.SupportsInPlaceUpdates(app.IO.ErrOut))
	event := output.Event{
		Timestamp: time.Now().UTC(),
		Level:     output.LevelInfo,
		Event:     output.EventRunFinished,
		Message:   summarizeRun(playbook, result, runDir),
	}
	if runErr != nil {
		event.Level = output.LevelWarn
		event.Event = output.EventRunFailed
	}
	_ = emitter.Emit(event)
}

func summarizeRun(playbook string, result engine.PlaybookResult, runDir string) string {
	var totals ansible.HostStats
	for _, host := range result.Stats.Hosts {
		totals.OK += host.OK
		totals.Changed += host.Changed
		totals.Failures += host.Failures
		totals.Unreachable += host.Unreachable
		totals.Skipped += host.Skipped
	}

	failedHosts := []string{}
	for name, host := range result.Stats.Hosts {
		if host.Failures > 0 || host.Unreachable > 0 {
			failedHosts = append(failedHosts, name)
		}
	}
	sort.Strings(failedHosts)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d host(s) ok=%d changed=%d failed=%d unreachable=%d skipped=%d in %s",
		playbook,
		len(result.Stats.Hosts),
		totals.OK,
		totals.Changed,
		totals.Failures,
		totals.Unreachable,
		totals.Skipped,
		result.Duration.Round(time.Second),
	)
	if len(failedHosts) > 0 {
		fmt.Fprintf(&b, "; failed hosts: %s", strings.Join(failedHosts, ", "))
	}
	if result.Stats.Aborted {
		b.WriteString("; aborted before the recap")
	}
	if runDir != "" {
		fmt.Fprintf(&b, "; results in %s", runDir)
	}
	return b.String()
}

func progressInteractive(out io.Writer, mode config.ProgressMode) bool {
	switch mode {
	case config.ProgressAlways:
		return true
	case config.ProgressNever:
		return false
	default:
		return progress.SupportsInPlaceUpdates(out)
	}
}

func parseProgressMode(raw string) (config.ProgressMode, error) {
	mode := config.ProgressMode(strings.TrimSpace(strings.ToLower(raw)))
	switch mode {
	case "":
		return config.ProgressAuto, nil
	case config.ProgressAuto, config.ProgressAlways, config.ProgressNever:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid --progress mode %q (expected: auto, always, never)", raw)
	}
}

// parseExtraVars decodes each key=value pair, reading the value as a YAML
// scalar so that -e count=3 reaches ansible as a number.
func parseExtraVars(pairs []string) (map[string]any, error) {
	vars := map[string]any{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid extra var %q (expected key=value)", pair)
		}
		if strings.TrimSpace(raw) == "" {
			vars[key] = raw
			continue
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			vars[key] = raw
			continue
		}
		vars[key] = value
	}
	return vars, nil
}
