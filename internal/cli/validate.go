package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedbed/seedbed/internal/app"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compose and plan every document, collecting all problems.",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	cmd.Flags().StringP("file", "f", "", "Fixture document or directory to validate.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	a := app.NewApp(cmd.ErrOrStderr(), cfg, nil)
	defer a.Close()

	path, _ := cmd.Flags().GetString("file")
	if err := a.Validate(cmd.Context(), path); err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ All documents valid.")
	return nil
}
