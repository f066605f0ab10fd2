package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var hostPatternChars = regexp.MustCompile(`^[a-zA-Z0-9._:*!&,\[\]-]+$`)

var logLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {}, "disabled": {},
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Ansible.PlaybookBinary) == "" {
		problems = append(problems, "ansible.playbook_binary must be set")
	}
	if strings.TrimSpace(cfg.Ansible.Inventory) == "" {
		problems = append(problems, "ansible.inventory must be set")
	} else if _, err := ExpandPath(cfg.Ansible.Inventory); err != nil {
		problems = append(problems, "ansible.inventory must be a valid path")
	}
	if strings.TrimSpace(cfg.Ansible.Connection) == "" {
		problems = append(problems, "ansible.connection must be set")
	}
	if cfg.Ansible.Verbosity < 0 || cfg.Ansible.Verbosity > 6 {
		problems = append(problems, "ansible.verbosity must be between 0 and 6")
	}
	if cfg.Ansible.Forks <= 0 {
		problems = append(problems, "ansible.forks must be > 0")
	}
	if cfg.Ansible.CommandTimeoutSeconds < 0 {
		problems = append(problems, "ansible.command_timeout_seconds must be >= 0")
	}
	if cfg.Ansible.Become && strings.TrimSpace(cfg.Ansible.BecomeUser) == "" {
		problems = append(problems, "ansible.become_user must be set when become is enabled")
	}

	if strings.TrimSpace(cfg.Variables.TargetHosts) == "" {
		problems = append(problems, "variables.target_hosts must be set")
	} else if !hostPatternChars.MatchString(cfg.Variables.TargetHosts) {
		problems = append(problems, fmt.Sprintf("variables.target_hosts %q is not a valid host pattern", cfg.Variables.TargetHosts))
	}

	switch cfg.Progress.Mode {
	case ProgressAuto, ProgressAlways, ProgressNever:
	default:
		problems = append(problems, fmt.Sprintf("progress.mode %q must be auto, always, or never", cfg.Progress.Mode))
	}
	if cfg.Progress.MaxWidth < 28 {
		problems = append(problems, "progress.max_width must be >= 28")
	}
	if cfg.Progress.RefreshIntervalMS <= 0 {
		problems = append(problems, "progress.refresh_interval_ms must be > 0")
	}

	logRoot, err := ExpandPath(cfg.Logging.LogRoot)
	if err != nil || strings.TrimSpace(logRoot) == "" {
		problems = append(problems, "logging.log_root must be a valid path")
	} else if !filepath.IsAbs(logRoot) {
		problems = append(problems, "logging.log_root must resolve to an absolute path")
	}
	if _, ok := logLevels[cfg.Logging.Level]; !ok {
		problems = append(problems, fmt.Sprintf("logging.level %q is not supported", cfg.Logging.Level))
	}
	if cfg.Logging.FileEnabled {
		if cfg.Logging.MaxSizeMB <= 0 {
			problems = append(problems, "logging.max_size_mb must be > 0")
		}
		if cfg.Logging.MaxBackups < 0 {
			problems = append(problems, "logging.max_backups must be >= 0")
		}
		if cfg.Logging.MaxAgeDays < 0 {
			problems = append(problems, "logging.max_age_days must be >= 0")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
