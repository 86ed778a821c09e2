package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// LogLevelEnv selects the diagnostic log level (debug, info, warn, error).
const LogLevelEnv = "NODEBUILDER_LOG_LEVEL"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	dir     string
	verbose bool
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		printError(console.New(stderr, !noColor), err)
		return 1
	}
	return 0
}

// printError reports err on c. Errors without a code are shown as E400, or
// E401 when the build was interrupted.
func printError(c *console.Console, err error) {
	code := "E400"
	if stderrors.Is(err, context.Canceled) {
		code = "E401"
	}
	be := errors.FromError(err, code)
	c.Error("%s", be.Headline())
	c.Raw(be.Details())
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	flags := &buildFlags{}

	rootCmd := &cobra.Command{
		Use:   "nodebuilder",
		Short: "Build deployable artifacts for Node.js applications",
		Long: `nodebuilder packages a Node.js application described by the builder
section of its package.json.

It bundles the entry point into a single file, compiles standalone
executables and writes deployment artifacts:

  • node/         plain Node.js package
  • docker/       Dockerfile and docker-compose.yml
  • linux-x64/    executable, systemd unit and install script
  • windows-x64/  executable and WinSW service wrapper

Run without a command, nodebuilder builds the project like
'nodebuilder build'.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBuildCommand(opts, flags),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel(opts.verbose, os.Getenv(LogLevelEnv)),
			})))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "Project directory containing package.json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.register(rootCmd)

	rootCmd.AddCommand(
		buildCmd(opts),
		validateCmd(opts),
		watchCmd(opts),
		cleanCmd(opts),
		explainCmd(),
		versionCmd(),
	)

	return rootCmd
}

// logLevel resolves the slog level; --verbose wins over the environment.
func logLevel(verbose bool, env string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if env != "" && level.UnmarshalText([]byte(strings.TrimSpace(env))) == nil {
		return level
	}
	return slog.LevelWarn
}

// newConsole returns the build log for cmd's output.
func (o *rootOptions) newConsole(w io.Writer) *console.Console {
	return console.New(w, !o.noColor)
}

// projectDir returns the absolute project directory: the nearest directory
// at or above --dir holding package.json, or --dir itself when there is none.
func (o *rootOptions) projectDir() (string, error) {
	dir, err := filepath.Abs(o.dir)
	if err != nil {
		return "", errors.New("E100").WithPath(o.dir).Wrap(err)
	}
	if root, err := config.FindProjectRoot(dir); err == nil {
		return root, nil
	}
	return dir, nil
}

// loadProject loads .env and package.json from the project directory and
// prints manifest warnings.
func (o *rootOptions) loadProject(out *console.Console) (*config.Config, error) {
	dir, err := o.projectDir()
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(dir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		out.Warn("%s", w)
	}
	return cfg, nil
}

// versionString is the version shown in banners.
func versionString() string {
	return fmt.Sprintf("%s (%s)", version, commit)
}
