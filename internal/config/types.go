package config

type ProgressMode string

const (
	ProgressAuto   ProgressMode = "auto"
	ProgressAlways ProgressMode = "always"
	ProgressNever  ProgressMode = "never"
)

type Config struct {
	Version   int       `yaml:"version"`
	Ansible   Ansible   `yaml:"ansible"`
	Variables Variables `yaml:"variables"`
	Progress  Progress  `yaml:"progress"`
	Logging   Logging   `yaml:"logging"`
}

type Ansible struct {
	PlaybookBinary        string `yaml:"playbook_binary"`
	Inventory             string `yaml:"inventory"`
	Connection            string `yaml:"connection"`
	Verbosity             int    `yaml:"verbosity"`
	Forks                 int    `yaml:"forks"`
	ModulePath            string `yaml:"module_path"`
	Become                bool   `yaml:"become"`
	BecomeMethod          string `yaml:"become_method"`
	BecomeUser            string `yaml:"become_user"`
	Check                 bool   `yaml:"check"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
}

type Variables struct {
	TargetHosts       string `yaml:"target_hosts"`
	DockerVolumeGroup string `yaml:"docker_volume_group"`
}

type Progress struct {
	Mode              ProgressMode `yaml:"mode"`
	MaxWidth          int          `yaml:"max_width"`
	RefreshIntervalMS int          `yaml:"refresh_interval_ms"`
}

type Logging struct {
	LogRoot     string `yaml:"log_root"`
	Level       string `yaml:"level"`
	FileEnabled bool   `yaml:"file_enabled"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Ansible: Ansible{
			PlaybookBinary: "ansible-playbook",
			Inventory:      defaultInventoryPath(),
			Connection:     "ssh",
			Verbosity:      1,
			Forks:          5,
			Become:         true,
			BecomeMethod:   "sudo",
			BecomeUser:     "origin",
		},
		Variables: Variables{
			TargetHosts:       "vms",
			DockerVolumeGroup: "docker",
		},
		Progress: Progress{
			Mode:              ProgressAuto,
			MaxWidth:          150,
			RefreshIntervalMS: 50,
		},
		Logging: Logging{
			LogRoot:     defaultLogRoot(),
			Level:       "info",
			FileEnabled: true,
			MaxSizeMB:   50,
			MaxBackups:  3,
			MaxAgeDays:  7,
		},
	}
}
