package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vnengine/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the settings every other command runs with, after defaults, the
--config file, and ` + config.EnvPrefix + `* environment variables are applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, cmd)
		},
	}
	return cmd
}

func runConfig(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.Settings()

	if opts.Format == "json" {
		return formatter.Success(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render config", err)
	}
	if opts.ConfigPath != "" {
		fmt.Fprintf(formatter.Writer, "# loaded from %s\n", opts.ConfigPath)
	}
	_, err = formatter.Writer.Write(data)
	return err
}
