package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version   *int          `yaml:"version"`
	Ansible   fileAnsible   `yaml:"ansible"`
	Variables fileVariables `yaml:"variables"`
	Progress  fileProgress  `yaml:"progress"`
	Logging   fileLogging   `yaml:"logging"`
}

type fileAnsible struct {
	PlaybookBinary        *string `yaml:"playbook_binary"`
	Inventory             *string `yaml:"inventory"`
	Connection            *string `yaml:"connection"`
	Verbosity             *int    `yaml:"verbosity"`
	Forks                 *int    `yaml:"forks"`
	ModulePath            *string `yaml:"module_path"`
	Become                *bool   `yaml:"become"`
	BecomeMethod          *string `yaml:"become_method"`
	BecomeUser            *string `yaml:"become_user"`
	Check                 *bool   `yaml:"check"`
	CommandTimeoutSeconds *int    `yaml:"command_timeout_seconds"`
}

type fileVariables struct {
	TargetHosts       *string `yaml:"target_hosts"`
	DockerVolumeGroup *string `yaml:"docker_volume_group"`
}

type fileProgress struct {
	Mode              *string `yaml:"mode"`
	MaxWidth          *int    `yaml:"max_width"`
	RefreshIntervalMS *int    `yaml:"refresh_interval_ms"`
}

type fileLogging struct {
	LogRoot     *string `yaml:"log_root"`
	Level       *string `yaml:"level"`
	FileEnabled *bool   `yaml:"file_enabled"`
	MaxSizeMB   *int    `yaml:"max_size_mb"`
	MaxBackups  *int    `yaml:"max_backups"`
	MaxAgeDays  *int    `yaml:"max_age_days"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	normalize(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}

	a := fc.Ansible
	setString(&cfg.Ansible.PlaybookBinary, a.PlaybookBinary)
	setString(&cfg.Ansible.Inventory, a.Inventory)
	setString(&cfg.Ansible.Connection, a.Connection)
	setInt(&cfg.Ansible.Verbosity, a.Verbosity)
	setInt(&cfg.Ansible.Forks, a.Forks)
	setString(&cfg.Ansible.ModulePath, a.ModulePath)
	setBool(&cfg.Ansible.Become, a.Become)
	setString(&cfg.Ansible.BecomeMethod, a.BecomeMethod)
	setString(&cfg.Ansible.BecomeUser, a.BecomeUser)
	setBool(&cfg.Ansible.Check, a.Check)
	setInt(&cfg.Ansible.CommandTimeoutSeconds, a.CommandTimeoutSeconds)

	setString(&cfg.Variables.TargetHosts, fc.Variables.TargetHosts)
	setString(&cfg.Variables.DockerVolumeGroup, fc.Variables.DockerVolumeGroup)

	if fc.Progress.Mode != nil {
		cfg.Progress.Mode = ProgressMode(strings.ToLower(strings.TrimSpace(*fc.Progress.Mode)))
	}
	setInt(&cfg.Progress.MaxWidth, fc.Progress.MaxWidth)
	setInt(&cfg.Progress.RefreshIntervalMS, fc.Progress.RefreshIntervalMS)

	l := fc.Logging
	setString(&cfg.Logging.LogRoot, l.LogRoot)
	setString(&cfg.Logging.Level, l.Level)
	setBool(&cfg.Logging.FileEnabled, l.FileEnabled)
	setInt(&cfg.Logging.MaxSizeMB, l.MaxSizeMB)
	setInt(&cfg.Logging.MaxBackups, l.MaxBackups)
	setInt(&cfg.Logging.MaxAgeDays, l.MaxAgeDays)
	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["OCT_INVENTORY"]); value != "" {
		cfg.Ansible.Inventory = value
	}
	if value := strings.TrimSpace(env["OCT_PLAYBOOK_BIN"]); value != "" {
		cfg.Ansible.PlaybookBinary = value
	}
	if value := strings.TrimSpace(env["OCT_VERBOSITY"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid OCT_VERBOSITY value %q: %w", value, err)
		}
		cfg.Ansible.Verbosity = parsed
	}
	if value := strings.TrimSpace(env["OCT_FORKS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid OCT_FORKS value %q: %w", value, err)
		}
		cfg.Ansible.Forks = parsed
	}
	if value := strings.TrimSpace(env["OCT_PROGRESS"]); value != "" {
		cfg.Progress.Mode = ProgressMode(strings.ToLower(value))
	}
	if value := strings.TrimSpace(env["OCT_LOG_LEVEL"]); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(env["ANSIBLE_LOG_ROOT_PATH"]); value != "" {
		cfg.Logging.LogRoot = value
	}
	return nil
}

func normalize(cfg *Config) {
	if cfg.Progress.Mode == "" {
		cfg.Progress.Mode = ProgressAuto
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !cfg.Ansible.Become {
		cfg.Ansible.BecomeMethod = ""
		cfg.Ansible.BecomeUser = ""
	}
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func setInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
