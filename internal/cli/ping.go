package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seedbed/seedbed/internal/app"
)

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the entity API answers at its base URL.",
		Args:  cobra.NoArgs,
		RunE:  runPing,
	}
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	a := app.NewApp(cmd.ErrOrStderr(), cfg, nil)
	defer a.Close()

	status, latency, err := a.Ping(cmd.Context())
	if err != nil {
		if errors.Is(err, app.ErrNoAPI) {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s answered %d in %s\n",
		cfg.API.URL, status, latency.Round(time.Millisecond))
	return nil
}
