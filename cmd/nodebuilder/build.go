package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/build"
	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
	"github.com/nodebuilder-go/nodebuilder/internal/metrics"
	"github.com/nodebuilder-go/nodebuilder/internal/publish"
	"github.com/nodebuilder-go/nodebuilder/internal/winsw"
)

// buildFlags are the options of the build and watch commands.
type buildFlags struct {
	keepTemp    bool
	report      string
	metricsFile string
	publish     bool
	winsw       string
	offline     bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.keepTemp, "keep-temp", false, "Keep the temp directory after a successful build")
	cmd.Flags().StringVar(&f.report, "report", "", "Write a JSON build report to this file")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this file")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Upload the build directory to the configured S3 bucket")
	cmd.Flags().StringVar(&f.winsw, "winsw", "", "Path to a local WinSW executable")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "Never download WinSW; skip the Windows service if it is not cached")
}

func buildCmd(opts *rootOptions) *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build all configured targets",
		Long: `Build the application described by package.json.

This command:
  • Empties the build directory
  • Bundles the entry point with esbuild
  • Compiles executables with nexe for linux-x64 and windows-x64
  • Writes the Node.js package, Docker context and service files
  • Removes the temp directory

Examples:
  nodebuilder build
  nodebuilder build --dir=services/gateway --report=build/report.json
  nodebuilder build --offline --winsw=tools/WinSW.NET4.exe`,
		RunE: runBuildCommand(opts, flags),
	}

	flags.register(cmd)
	return cmd
}

// runBuildCommand returns the handler shared by the root and build commands.
func runBuildCommand(opts *rootOptions, flags *buildFlags) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		out := opts.newConsole(cmd.OutOrStdout())
		printStart(out, opts)

		cfg, err := opts.loadProject(out)
		if err != nil {
			return err
		}
		_, err = runBuild(ctx, cfg, out, flags)
		return err
	}
}

func printStart(out *console.Console, opts *rootOptions) {
	dir, err := opts.projectDir()
	if err != nil {
		dir = opts.dir
	}
	out.Divider()
	out.Info("Starting nodebuilder %s, %s (%s).", versionString(), runtime.GOOS, runtime.GOARCH)
	out.Info("Running in `%s`", dir)
	out.Divider()
}

// runBuild runs one build of cfg and writes the requested report and
// metrics, even when the build fails.
func runBuild(ctx context.Context, cfg *config.Config, out *console.Console, flags *buildFlags) (*build.Report, error) {
	options := build.Options{
		Console:  out,
		KeepTemp: flags.keepTemp,
		Offline:  flags.offline,
		Minify:   true,
	}

	if flags.winsw != "" {
		path, err := filepath.Abs(flags.winsw)
		if err != nil {
			return nil, errors.New("E304").WithPath(flags.winsw).Wrap(err)
		}
		options.WinSW = winsw.NewBinary(cfg.WinSW.Version)
		options.WinSW.LocalPath = path
	}

	var recorder *metrics.PrometheusRecorder
	if flags.metricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		options.Recorder = recorder
	}

	if flags.publish {
		s3cfg := cfg.Publish.S3
		if s3cfg == nil || s3cfg.Bucket == "" {
			return nil, errors.New("E204").
				WithDetail("`builder.publish.s3.bucket` is not set in `package.json`.")
		}
		options.Publisher = publish.New(publish.NewClient(*s3cfg), s3cfg.Bucket, s3cfg.Prefix).
			WithConcurrency(s3cfg.Concurrency)
	}

	report, err := build.New(cfg, options).Build(ctx)

	if flags.report != "" {
		if werr := report.WriteJSON(flags.report); werr != nil && err == nil {
			err = werr
		}
	}
	if recorder != nil {
		if werr := recorder.WriteTextfile(flags.metricsFile); werr != nil && err == nil {
			err = errors.New("E205").WithPath(flags.metricsFile).Wrap(werr)
		}
	}
	if err != nil {
		return report, err
	}

	out.Divider()
	out.Finished(report.Duration)
	return report, nil
}
