package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaa/oct/internal/config"
	"github.com/jaa/oct/internal/exitcode"
	"github.com/jaa/oct/internal/fileops"
)

func newInitCommand(app *AppContext) *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create starter config, inventory and log directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(app.Opts.ConfigPath)
			if path == "" {
				userPath, err := config.UserConfigPath()
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				path = userPath
			}

			if err := config.EnsureConfigDir(path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if _, err := os.Stat(path); err == nil && !force {
				if app.Opts.NoInput || !isTTY(os.Stdin) {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("config already exists at %s (rerun with --force)", path))
				}
				confirmed, confirmErr := promptYesNo(app, fmt.Sprintf("Config already exists at %s. Overwrite?", path))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintln(app.IO.Out, "Initialization canceled.")
					return nil
				}
			}

			if err := fileops.WriteFileSafely(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("write config file: %w", err))
			}
			fmt.Fprintf(app.IO.Out, "Wrote config: %s\n", path)

			defaults := config.DefaultConfig()
			inventory, err := config.ExpandPath(defaults.Ansible.Inventory)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("resolve inventory path: %w", err))
			}
			written, err := writeInventory(inventory, force)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if written {
				fmt.Fprintf(app.IO.Out, "Wrote inventory: %s\n", inventory)
			} else {
				fmt.Fprintf(app.IO.Out, "Kept existing inventory: %s\n", inventory)
			}

			logRoot, err := config.ExpandPath(defaults.Logging.LogRoot)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("resolve log root: %w", err))
			}
			if err := os.MkdirAll(logRoot, 0o755); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create log root %s: %w", logRoot, err))
			}
			fmt.Fprintf(app.IO.Out, "Ensured log root: %s\n", logRoot)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config and inventory files")
	return cmd
}

func writeInventory(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat inventory %s: %w", path, err)
	}
	if err := fileops.WriteFileSafely(path, []byte(config.DefaultInventory()), 0o644); err != nil {
		return false, fmt.Errorf("write inventory: %w", err)
	}
	return true, nil
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
