package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaa/oct/internal/config"
	"github.com/jaa/oct/internal/exitcode"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			inventory, _ := config.ExpandPath(cfg.Ansible.Inventory)
			logRoot, _ := config.ExpandPath(cfg.Logging.LogRoot)

			if app.Opts.JSON {
				payload := map[string]any{
					"valid":     true,
					"inventory": inventory,
					"log_root":  logRoot,
				}
				encoded, err := json.Marshal(payload)
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}

			fmt.Fprintln(app.IO.Out, "Config is valid.")
			if app.Opts.Verbose {
				fmt.Fprintf(app.IO.Out, "inventory: %s\nlog root: %s\n", inventory, logRoot)
			}
			return nil
		},
	}
}
