package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tinvert/formatter"
	"github.com/gnolang/tinvert/invert"
)

var errNotInverted = errors.New("element was not inverted")

var (
	newName    string
	dryRun     bool
	assumeYes  bool
	jsonOutput bool
)

var invertCmd = &cobra.Command{
	Use:   "invert <file:line:column>",
	Short: "Invert the boolean element at the given position",
	Long: `Invert replaces the value of a boolean variable, parameter or function
by its negation and negates every usage, so the program keeps its behavior.
Struct fields cannot be inverted. Usages written in other configured
languages are rewritten as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var confirm func(string) bool
		if !assumeYes {
			confirm = confirmFrom(cmd.InOrStdin(), cmd.ErrOrStderr())
		}
		return runInvert(ctx, cmd.OutOrStdout(), args[0], invert.Options{NewName: newName, DryRun: dryRun}, confirm)
	},
}

func init() {
	invertCmd.Flags().StringVar(&newName, "name", "", "Rename the element while inverting it")
	invertCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the changes without applying them")
	invertCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Accept every confirmation")
	invertCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report in JSON format")
}

func openEngine(ctx context.Context, confirm func(string) bool) (*invert.Engine, error) {
	cfg, err := invert.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return invert.Open(ctx, rootDir, cfg, invert.WithLogger(logger), invert.WithPrompter(confirm))
}

func runInvert(ctx context.Context, out io.Writer, target string, opts invert.Options, confirm func(string) bool) error {
	engine, err := openEngine(ctx, confirm)
	if err != nil {
		return err
	}
	rep, err := engine.Invert(ctx, target, opts)
	if rep != nil {
		if perr := printReport(out, rep, jsonOutput, opts.DryRun); perr != nil {
			logger.Error("Error printing report", zap.Error(perr))
		}
	}
	if err != nil {
		return err
	}
	logger.Debug("inversion finished",
		zap.String("operation", rep.Operation),
		zap.String("status", rep.Status),
		zap.Int("usages", len(rep.Usages)),
		zap.Int("conflicts", len(rep.Conflicts)))
	if !rep.Succeeded() {
		return errNotInverted
	}
	return nil
}

func printReport(out io.Writer, rep *invert.Report, isJSON, withDiff bool) error {
	if isJSON {
		d, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(d))
		return err
	}
	text := formatter.FormatReport(rep, readSourceLines)
	if withDiff && rep.Succeeded() {
		text += "\n" + formatter.FormatChanges(rep.Changes)
	}
	_, err := io.WriteString(out, text)
	return err
}

// readSourceLines reads the files a report did not change. Changed files are
// rendered from their content before the inversion.
func readSourceLines(path string) []string {
	d, err := os.ReadFile(filepath.Join(rootDir, filepath.FromSlash(path)))
	if err != nil {
		return nil
	}
	return strings.Split(string(d), "\n")
}

// confirmFrom asks questions on w and reads the answers from r. Anything
// but yes declines.
func confirmFrom(r io.Reader, w io.Writer) func(string) bool {
	scanner := bufio.NewScanner(r)
	return func(question string) bool {
		fmt.Fprintf(w, "%s [y/N] ", question)
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}
