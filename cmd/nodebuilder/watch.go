package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/console"
	"github.com/nodebuilder-go/nodebuilder/internal/watch"
)

func watchCmd(opts *rootOptions) *cobra.Command {
	flags := &buildFlags{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever sources or package.json change",
		Long: `Build once, then watch the source directory and package.json and
rebuild after every change. Failed builds are reported and watching
continues. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := opts.newConsole(cmd.OutOrStdout())
			printStart(out, opts)

			cfg, err := opts.loadProject(out)
			if err != nil {
				return err
			}
			rebuild(ctx, opts, cfg, out, flags, cmd)

			for {
				wctx, cancel := context.WithCancel(ctx)
				restart := false

				w := watch.New(watchConfig(cfg, debounce))
				w.OnChange(func(paths []string) {
					out.Divider()
					out.Info("Changed: `%s`%s", paths[0], more(len(paths)-1))

					// The manifest may have changed; a broken one keeps the
					// previous configuration.
					next, err := opts.loadProject(out)
					if err != nil {
						printError(opts.newConsole(cmd.ErrOrStderr()), err)
					} else {
						if dirsChanged(cfg, next) {
							out.Info("Project directories changed, restarting the watcher.")
							restart = true
							cancel()
						}
						cfg = next
					}
					rebuild(ctx, opts, cfg, out, flags, cmd)
				})

				out.Info("Watching `%s`...", cfg.Dirs.Src)
				err := w.Run(wctx)
				cancel()
				if !restart || ctx.Err() != nil {
					return err
				}
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before rebuilding")
	return cmd
}

// watchConfig watches the source directory and the manifest of cfg.
func watchConfig(cfg *config.Config, debounce time.Duration) watch.Config {
	return watch.Config{
		Dirs:     []string{cfg.Dirs.Src},
		Files:    []string{cfg.Path()},
		Exclude:  []string{cfg.Dirs.Build, cfg.Dirs.Temp},
		Debounce: debounce,
	}
}

// dirsChanged reports whether b watches different paths than a.
func dirsChanged(a, b *config.Config) bool {
	return a.Dirs.Src != b.Dirs.Src ||
		a.Dirs.Build != b.Dirs.Build ||
		a.Dirs.Temp != b.Dirs.Temp ||
		a.Path() != b.Path()
}

func rebuild(ctx context.Context, opts *rootOptions, cfg *config.Config, out *console.Console, flags *buildFlags, cmd *cobra.Command) {
	if _, err := runBuild(ctx, cfg, out, flags); err != nil {
		printError(opts.newConsole(cmd.ErrOrStderr()), err)
	}
}

func more(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return " and 1 more file"
	default:
		return fmt.Sprintf(" and %d more files", n)
	}
}
