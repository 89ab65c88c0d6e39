package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var usagesCmd = &cobra.Command{
	Use:   "usages <file:line:column>",
	Short: "List the usages and conflicts of an inversion without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return runUsages(ctx, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	usagesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report in JSON format")
}

func runUsages(ctx context.Context, out io.Writer, target string) error {
	engine, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	rep, err := engine.Usages(ctx, target)
	if err != nil {
		return err
	}
	if err := printReport(out, rep, jsonOutput, true); err != nil {
		logger.Error("Error printing report", zap.Error(err))
	}
	return nil
}
