package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <ref> [ref...]",
		Short: "One-shot membership check for channel references",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	res := a.engine.BulkCheck(cmd.Context(), args)
	return printJSON(res)
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ref>",
		Short: "Show the full resolution pipeline for one reference",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report := a.engine.DebugResolve(cmd.Context(), args[0])
	return printJSON(report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
