package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/seedbed/seedbed/internal/app"
)

// flagBindings maps flag names onto dotted config keys. Only flags the user
// actually changed enter the config layering, so flag defaults never shadow
// file or environment values.
var flagBindings = map[string]string{
	"api-url":     "api.url",
	"api-token":   "api.token",
	"api-timeout": "api.timeout",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"teardown":    "run.teardown",
	"seed":        "run.seed",
}

// NewRootCommand assembles the seedbed command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seedbed",
		Short:         "Materialize declarative test-data fixtures against an entity API.",
		Long: `Seedbed composes YAML fixture documents, plans their processing order,
and materializes the described entities against a REST API, resolving
references between them as it goes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default \"seedbed.yaml\").")
	cmd.PersistentFlags().String("api-url", "", "Base URL of the entity API.")
	cmd.PersistentFlags().String("api-token", "", "Bearer token for the entity API.")
	cmd.PersistentFlags().String("api-timeout", "30s", "Entity API request timeout.")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error.")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json.")

	cmd.AddCommand(newApplyCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newPingCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// loadConfig resolves configuration for cmd from the config file, SEEDBED_*
// environment variables, and whichever bound flags the user changed, plus
// any extra pre-parsed flag values.
func loadConfig(cmd *cobra.Command, extra map[string]any) (*app.Config, error) {
	flags := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagBindings[f.Name]; ok {
			flags[key] = f.Value.String()
		}
	})
	for key, value := range extra {
		flags[key] = value
	}

	file, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(app.LoadOptions{
		File:         file,
		FileExplicit: file != "",
		Flags:        flags,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}
