package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedbed/seedbed/internal/app"
)

func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Compose, plan, and materialize fixture documents.",
		Args:  cobra.NoArgs,
		RunE:  runApply,
	}
	cmd.Flags().StringP("file", "f", "", "Fixture document or directory to apply.")
	cmd.Flags().Bool("teardown", false, "Delete materialized entities after a successful run.")
	cmd.Flags().Uint64("seed", 0, "Seed for deterministic fake data; 0 picks a random seed.")
	cmd.Flags().StringArray("set", nil, "System data pair key=value; repeatable.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runApply(cmd *cobra.Command, _ []string) error {
	pairs, _ := cmd.Flags().GetStringArray("set")
	set, err := parseSetPairs(pairs)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	extra := map[string]any{}
	if len(set) > 0 {
		extra["set"] = set
	}

	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}

	a := app.NewApp(cmd.ErrOrStderr(), cfg, nil)
	defer a.Close()

	path, _ := cmd.Flags().GetString("file")
	summary, err := a.Apply(cmd.Context(), path)
	if err != nil {
		if errors.Is(err, app.ErrNoAPI) {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d files, %d entries (%d created, %d found, %d updated, %d patched)\n",
		summary.RunID, summary.Files, summary.Entries,
		summary.Created, summary.Found, summary.Updated, summary.Patched)
	return nil
}

// parseSetPairs splits repeated key=value flags into system data pairs.
func parseSetPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	set := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value %q (want key=value)", pair)
		}
		set[key] = value
	}
	return set, nil
}
