package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaa/oct/internal/ansible"
	"github.com/jaa/oct/internal/config"
)

const extraVarPrefix = "origin_ci_"

var ErrPlaybookFailed = errors.New("playbook execution failed")

// PlaybookRunner runs ansible-playbook with the jsonl stdout callback and
// feeds its output to an ansible.EventWriter.
type PlaybookRunner struct {
	Config config.Config
	Logger zerolog.Logger
	// DryRunOut receives the command line instead of running it.
	DryRunOut io.Writer
	// NewExec is swapped in tests.
	NewExec func(stdout io.Writer, stderr io.Writer) ExecRunner
}

func NewPlaybookRunner(cfg config.Config, logger zerolog.Logger, dryRunOut io.Writer) *PlaybookRunner {
	return &PlaybookRunner{
		Config:    cfg,
		Logger:    logger,
		DryRunOut: dryRunOut,
		NewExec: func(stdout io.Writer, stderr io.Writer) ExecRunner {
			return NewSubprocessRunner(nil, stdout, stderr)
		},
	}
}

func (r *PlaybookRunner) Run(ctx context.Context, opts PlaybookOptions, events *ansible.EventWriter) (PlaybookResult, error) {
	spec, err := r.BuildExecSpec(opts)
	if err != nil {
		return PlaybookResult{ExitCode: 1}, err
	}

	if opts.DryRun {
		if r.DryRunOut != nil {
			fmt.Fprintln(r.DryRunOut, spec.DisplayCommand)
		}
		return PlaybookResult{}, nil
	}

	stderr := NewLogLineWriter(r.Logger, zerolog.WarnLevel, "ansible-playbook stderr")
	runner := r.NewExec(events, stderr)
	r.Logger.Info().Str("command", spec.DisplayCommand).Msg("starting ansible-playbook")

	execResult := runner.Run(ctx, spec)
	_ = stderr.Flush()
	events.Finish(execResult.ExitCode)

	result := PlaybookResult{
		ExitCode:    execResult.ExitCode,
		Stats:       events.Stats(),
		Duration:    execResult.Duration,
		Interrupted: execResult.Interrupted,
		TimedOut:    execResult.TimedOut,
		StderrTail:  execResult.StderrTail,
	}
	r.Logger.Info().
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Bool("interrupted", result.Interrupted).
		Msg("ansible-playbook finished")

	switch {
	case result.Interrupted:
		return result, context.Canceled
	case result.TimedOut:
		return result, fmt.Errorf("%w: timed out after %s", ErrPlaybookFailed, spec.Timeout)
	case result.ExitCode == 127:
		return result, fmt.Errorf("%s not found: %w", spec.Bin, execResult.Err)
	case result.Failed():
		return result, fmt.Errorf("%w with code %d", ErrPlaybookFailed, result.ExitCode)
	}
	return result, nil
}

func (r *PlaybookRunner) BuildExecSpec(opts PlaybookOptions) (ExecSpec, error) {
	if strings.TrimSpace(opts.Playbook) == "" {
		return ExecSpec{}, errors.New("playbook path is required")
	}
	cfg := r.Config.Ansible

	inventory := opts.Inventory
	if strings.TrimSpace(inventory) == "" {
		inventory = cfg.Inventory
	}
	inventory, err := config.ExpandPath(inventory)
	if err != nil {
		return ExecSpec{}, err
	}
	forks := cfg.Forks
	if opts.Forks > 0 {
		forks = opts.Forks
	}

	args := []string{}
	if inventory != "" {
		args = append(args, "-i", inventory)
	}
	args = append(args, "--forks", strconv.Itoa(forks))
	if cfg.Connection != "" {
		args = append(args, "--connection", cfg.Connection)
	}
	if cfg.Become {
		args = append(args, "--become")
		if cfg.BecomeMethod != "" {
			args = append(args, "--become-method", cfg.BecomeMethod)
		}
		if cfg.BecomeUser != "" {
			args = append(args, "--become-user", cfg.BecomeUser)
		}
	}
	if cfg.Check || opts.Check {
		args = append(args, "--check")
	}
	if cfg.ModulePath != "" {
		modulePath, err := config.ExpandPath(cfg.ModulePath)
		if err != nil {
			return ExecSpec{}, err
		}
		args = append(args, "--module-path", modulePath)
	}
	if cfg.Verbosity > 0 {
		args = append(args, "-"+strings.Repeat("v", cfg.Verbosity))
	}

	extraVars, err := json.Marshal(DefaultExtraVars(r.Config, opts.ExtraVars))
	if err != nil {
		return ExecSpec{}, fmt.Errorf("encode extra vars: %w", err)
	}
	args = append(args, "--extra-vars", string(extraVars), opts.Playbook)

	timeout := opts.Timeout
	if timeout <= 0 && cfg.CommandTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.CommandTimeoutSeconds) * time.Second
	}

	env := []string{
		"ANSIBLE_STDOUT_CALLBACK=" + ansible.StdoutCallback,
		"ANSIBLE_NOCOLOR=1",
		"ANSIBLE_RETRY_FILES_ENABLED=0",
	}
	if logRoot, err := config.ExpandPath(r.Config.Logging.LogRoot); err == nil && logRoot != "" {
		env = append(env, "ANSIBLE_LOG_ROOT_PATH="+logRoot)
	}

	spec := ExecSpec{
		Bin:     cfg.PlaybookBinary,
		Args:    args,
		Env:     env,
		Timeout: timeout,
	}
	spec.DisplayCommand = displayCommand(spec)
	return spec, nil
}

// DefaultExtraVars fills the origin_ci_* variables the bundled playbooks
// expect, leaving any value the caller already set alone.
func DefaultExtraVars(cfg config.Config, vars map[string]any) map[string]any {
	merged := make(map[string]any, len(vars)+7)
	for key, value := range vars {
		merged[key] = value
	}
	defaults := map[string]any{
		"hosts":               cfg.Variables.TargetHosts,
		"connection":          cfg.Ansible.Connection,
		"become":              cfg.Ansible.Become,
		"become_method":       cfg.Ansible.BecomeMethod,
		"become_user":         cfg.Ansible.BecomeUser,
		"user":                cfg.Ansible.BecomeUser,
		"docker_volume_group": cfg.Variables.DockerVolumeGroup,
	}
	for field, value := range defaults {
		if _, ok := merged[extraVarPrefix+field]; !ok {
			merged[extraVarPrefix+field] = value
		}
	}
	return merged
}

func displayCommand(spec ExecSpec) string {
	parts := make([]string, 0, len(spec.Args)+1)
	parts = append(parts, shellQuote(spec.Bin))
	for _, arg := range spec.Args {
		parts = append(parts, shellQuote(arg))
	}
	command := strings.Join(parts, " ")
	if spec.Dir != "" && spec.Dir != "." {
		command = fmt.Sprintf("(cd %s && %s)", shellQuote(spec.Dir), command)
	}
	return command
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	if strings.IndexFunc(value, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ':' || r == ',' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
