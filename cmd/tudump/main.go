package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tudump"
	"github.com/jward/tudump/internal/stdflag"
)

// Exit codes. Argument errors use 2 so they can be told apart from run
// failures.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks argument problems detected before any I/O.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the CLI with args and returns the process exit code.
func execute(args []string, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var ue *usageError
	var ae *tudump.AlreadyExistsError
	switch {
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "Error: %s\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
		return exitUsage
	case errors.As(err, &ae):
		fmt.Fprintln(stderr, "Output directory already exists")
		return exitError
	default:
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitError
	}
}

type options struct {
	std        stdflag.Standard
	output     string
	configFile string
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tudump <compile_commands.json> --std <standard> -o <dir>",
		Short: "Force a C++ standard onto a compilation database and dump every translation unit's AST",
		Long: "tudump rewrites every command of a compilation database to carry a single -std= flag, " +
			"saves the database in place, and runs an AST-dump tool once per build action. " +
			"Each tool's standard output is stored as <dir>/<basename of the source file>.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &usageError{err}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0], opts, stderr)
		},
	}

	flags := cmd.Flags()
	flags.Var(&opts.std, "std", "C++ standard version: "+standardChoices()+" (required)")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory for the AST dump files; must not exist (required)")
	flags.StringVarP(&opts.configFile, "config", "c", "", "configuration file (YAML or JSON)")
	flags.String("tool", "", `AST-dump executable, or "builtin" for the tree-sitter dumper (default "ast-dump-tool")`)
	flags.String("filter", "", "Risor expression selecting which actions to dump (globals: file, directory, command, index)")
	flags.String("manifest", "", "record the run in a SQLite manifest at this path")
	flags.BoolP("verbose", "v", false, "log debug details, including swallowed dump failures")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	return cmd
}

func standardChoices() string {
	var names []string
	for _, std := range stdflag.Standards() {
		names = append(names, string(std))
	}
	return strings.Join(names, "|")
}

// checkReadable reports a compilation database argument that cannot be
// opened for reading.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("can't open %q: %w", path, err)
	}
	return f.Close()
}

func runDump(cmd *cobra.Command, dbPath string, opts *options, stderr io.Writer) error {
	var missing []string
	if !cmd.Flags().Changed("std") {
		missing = append(missing, "--std")
	}
	if !cmd.Flags().Changed("output") || opts.output == "" {
		missing = append(missing, "--output")
	}
	if len(missing) > 0 {
		return &usageError{fmt.Errorf("required flag(s) %v not set", missing)}
	}
	if err := checkReadable(dbPath); err != nil {
		return &usageError{err}
	}

	cfg, err := loadConfig(cmd, opts.configFile)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	engineOpts := []tudump.Option{
		tudump.WithTool(cfg.Tool),
		tudump.WithLogger(logger),
	}
	if cfg.Filter != "" {
		engineOpts = append(engineOpts, tudump.WithFilter(cfg.Filter))
	}
	if cfg.Manifest != "" {
		engineOpts = append(engineOpts, tudump.WithManifest(cfg.Manifest))
	}

	report, err := tudump.New(engineOpts...).Run(context.Background(), tudump.Request{
		Database:  dbPath,
		Standard:  opts.std,
		OutputDir: opts.output,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Dumped %d translation units to %s in %s\n",
		report.Selected, opts.output, report.Duration.Round(time.Millisecond))
	if report.Selected < report.Actions {
		fmt.Fprintf(stderr, "Skipped %d of %d actions by filter\n", report.Actions-report.Selected, report.Actions)
	}
	return nil
}
