package config

import "fmt"

func DefaultTemplate() string {
	cfg := DefaultConfig()
	return fmt.Sprintf(`version: 1
ansible:
  playbook_binary: %q
  inventory: %q
  connection: %q
  verbosity: %d
  forks: %d
  module_path: ""
  become: true
  become_method: %q
  become_user: %q
  check: false
  command_timeout_seconds: 0
variables:
  target_hosts: %q
  docker_volume_group: %q
progress:
  mode: "auto"
  max_width: %d
  refresh_interval_ms: %d
logging:
  log_root: %q
  level: "info"
  file_enabled: true
  max_size_mb: %d
  max_backups: %d
  max_age_days: %d
`,
		cfg.Ansible.PlaybookBinary,
		cfg.Ansible.Inventory,
		cfg.Ansible.Connection,
		cfg.Ansible.Verbosity,
		cfg.Ansible.Forks,
		cfg.Ansible.BecomeMethod,
		cfg.Ansible.BecomeUser,
		cfg.Variables.TargetHosts,
		cfg.Variables.DockerVolumeGroup,
		cfg.Progress.MaxWidth,
		cfg.Progress.RefreshIntervalMS,
		cfg.Logging.LogRoot,
		cfg.Logging.MaxSizeMB,
		cfg.Logging.MaxBackups,
		cfg.Logging.MaxAgeDays,
	)
}

// DefaultInventory targets a single local VM, matching the default
// target_hosts group.
func DefaultInventory() string {
	return `[vms]
localhost ansible_connection=local

[vms:vars]
ansible_python_interpreter=auto_silent
`
}
