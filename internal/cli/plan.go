package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedbed/seedbed/internal/app"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the processing plan without materializing anything.",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
	cmd.Flags().StringP("file", "f", "", "Fixture document or directory to plan.")
	cmd.Flags().StringP("output", "o", "text", "Output format: text or json.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	if format != "text" && format != "json" {
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown output format %q (want text or json)", format)}
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	a := app.NewApp(cmd.ErrOrStderr(), cfg, nil)
	defer a.Close()

	path, _ := cmd.Flags().GetString("file")
	docs, err := a.Plans(cmd.Context(), path)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	if format == "json" {
		return renderPlansJSON(cmd.OutOrStdout(), docs)
	}
	renderPlansText(cmd.OutOrStdout(), docs)
	return nil
}
