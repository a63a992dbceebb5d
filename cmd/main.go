package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/interp"

	"github.com/multiagent-debugger/pkgbuild/pkg"
	"github.com/multiagent-debugger/pkgbuild/pkg/builder"
	"github.com/multiagent-debugger/pkgbuild/pkg/config"
)

// ErrUsage is returned when no command or an unknown command was passed
var ErrUsage = eris.New("invalid usage")

type operation struct {
	name  string
	short string
	run   func(ctx context.Context, orch *builder.Orchestrator, out io.Writer) error
}

var operations = []operation{
	{"venv", "Create the virtual environment", func(ctx context.Context, orch *builder.Orchestrator, out io.Writer) error {
		err := orch.EnsureEnvironment(ctx)
		if err != nil {
			return err
		}
		orch.ActivateHelp(out)
		return nil
	}},
	{"clean", "Remove build artifacts", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.Clean(ctx)
	}},
	{"build", "Build source and wheel distributions", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.Build(ctx)
	}},
	{"install", "Install the package in development mode", func(ctx context.Context, orch *builder.Orchestrator, out io.Writer) error {
		err := orch.Install(ctx)
		if err != nil {
			return err
		}
		orch.ActivateHelp(out)
		return nil
	}},
	{"test", "Run the test suite with pytest", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.Test(ctx)
	}},
	{"dist", "Clean and build the distributions", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.Dist(ctx)
	}},
	{"upload_test", "Build and upload the distributions to TestPyPI", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.UploadTest(ctx)
	}},
	{"upload", "Build and upload the distributions to PyPI", func(ctx context.Context, orch *builder.Orchestrator, _ io.Writer) error {
		return orch.Upload(ctx)
	}},
}

func usageLine() string {
	names := make([]string, len(operations))
	for idx, op := range operations {
		names[idx] = op.name
	}

	return fmt.Sprintf("Usage: pkgbuild [%s]", strings.Join(names, "|"))
}

type app struct {
	ctx    context.Context
	orch   *builder.Orchestrator
	logger zerolog.Logger
	// helpShown is set once -h/--help printed the usage line
	helpShown bool
}

func printUsage(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if len(args) > 0 {
		fmt.Fprintf(out, "Unknown command: %s\n", args[0])
	}
	fmt.Fprintln(out, usageLine())
}

// newRootCmd builds the command tree. If orch is nil, the orchestrator is created
// from the configuration once a command runs.
func newRootCmd(orch *builder.Orchestrator) (*cobra.Command, *app) {
	a := &app{
		ctx:    context.Background(),
		orch:   orch,
		logger: zerolog.Nop(),
	}

	rootCmd := &cobra.Command{
		Use:   "pkgbuild",
		Short: "Build helper for the multiagent-debugger package",
		Long: `pkgbuild manages the project's virtual environment and wraps pip, build,
pytest and twine to build, test and publish the package.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printUsage(cmd, args)
			return ErrUsage
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// help is not a command of its own: both the help command and -h/--help
	// print the usage line and fail like an unknown command
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "help",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printUsage(cmd, nil)
			return ErrUsage
		},
	})
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		printUsage(cmd, nil)
		a.helpShown = true
	})
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, err.Error())
		fmt.Fprintln(out, usageLine())
		return ErrUsage
	})

	flags := rootCmd.PersistentFlags()
	flags.StringP("dir", "C", "", "change to this directory before doing anything")
	flags.Bool("find-root", false, "search the parent directories for the project root (pyproject.toml, setup.py or setup.cfg)")
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.String("config", "", "additional TOML config file")
	flags.Bool("log-json", false, "output JSON log lines instead of pretty console messages")

	for _, op := range operations {
		op := op
		rootCmd.AddCommand(&cobra.Command{
			Use:   op.name,
			Short: op.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				err := a.setup(cmd)
				if err != nil {
					pkg.PrintError(cmd.ErrOrStderr(), err.Error())
					return err
				}

				err = op.run(a.ctx, a.orch, cmd.OutOrStdout())
				if err != nil {
					a.logger.Error().Err(err).Msgf("Failed command %s", op.name)
				}
				return err
			},
		})
	}

	return rootCmd, a
}

func (a *app) execute(rootCmd *cobra.Command) error {
	err := rootCmd.Execute()
	if err == nil && a.helpShown {
		return ErrUsage
	}
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.orch != nil {
		return nil
	}

	flags := cmd.Flags()
	dir, err := flags.GetString("dir")
	if err != nil {
		return err
	}

	findRoot, err := flags.GetBool("find-root")
	if err != nil {
		return err
	}

	dryRun, err := flags.GetBool("dry")
	if err != nil {
		return err
	}

	extraConfig, err := flags.GetString("config")
	if err != nil {
		return err
	}

	logJSON, err := flags.GetBool("log-json")
	if err != nil {
		return err
	}

	if dir != "" {
		err = os.Chdir(dir)
		if err != nil {
			return eris.Wrapf(err, "Failed to change to %s", dir)
		}
	}

	if findRoot {
		root, err := pkg.FindProjectRoot(".", "pyproject.toml", "setup.py", "setup.cfg")
		if err != nil {
			return err
		}

		err = os.Chdir(root)
		if err != nil {
			return eris.Wrapf(err, "Failed to change to %s", root)
		}
	}

	var extraFiles []string
	if extraConfig != "" {
		extraFiles = append(extraFiles, extraConfig)
	}

	cfg, err := config.Load(extraFiles...)
	if err != nil {
		return err
	}

	a.logger = newLogger(cfg, logJSON || cfg.Log.JSON)
	a.ctx = builder.WithLogger(context.Background(), &a.logger)

	runner := builder.NewShellRunner()
	runner.DryRun = dryRun
	opts := cfg.BuilderOptions()
	opts.DryRun = dryRun
	a.orch = builder.New(afero.NewOsFs(), runner, cmd.OutOrStdout(), opts)
	return nil
}

func newLogger(cfg *config.Config, jsonOutput bool) zerolog.Logger {
	withTrace := cfg.LogLevel() <= zerolog.DebugLevel

	if jsonOutput {
		zerolog.ErrorMarshalFunc = func(err error) interface{} {
			return eris.ToJSON(err, withTrace)
		}
		return zerolog.New(os.Stderr).Level(cfg.LogLevel()).With().Timestamp().Logger()
	}

	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, withTrace)
	}
	writer := NewConsoleWriter(os.Stderr)
	writer.Verbose = withTrace
	return zerolog.New(writer).Level(cfg.LogLevel())
}

// ExitCode maps the error returned by the root command to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if eris.Is(err, ErrUsage) {
		return 1
	}

	if status, ok := interp.IsExitStatus(err); ok && status != 0 {
		return int(status)
	}
	return 1
}

// Execute runs the command line and terminates the process with the resulting status
func Execute() {
	rootCmd, a := newRootCmd(nil)
	os.Exit(ExitCode(a.execute(rootCmd)))
}
