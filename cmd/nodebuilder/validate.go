package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/winsw"
)

func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check package.json and print the build configuration",
		Long: `Load and validate the builder section of package.json without
writing anything, then print the resolved configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.newConsole(cmd.OutOrStdout())
			cfg, err := opts.loadProject(out)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg)
			out.Ok("Configuration is valid.")
			return nil
		},
	}
}

func printSummary(w io.Writer, cfg *config.Config) {
	envs := make([]string, 0, len(cfg.Environments))
	for _, e := range cfg.Environments {
		envs = append(envs, string(e))
	}
	if len(envs) == 0 {
		envs = append(envs, "(node package only)")
	}

	fmt.Fprintf(w, "  Project:      %s (%s)\n", cfg.Name, cfg.Shortcut)
	fmt.Fprintf(w, "  Version:      %s\n", cfg.Version)
	fmt.Fprintf(w, "  Node.js:      %s\n", cfg.Node)
	fmt.Fprintf(w, "  Entry:        %s\n", cfg.EntryPath())
	fmt.Fprintf(w, "  Build:        %s\n", cfg.Dirs.Build)
	fmt.Fprintf(w, "  Temp:         %s\n", cfg.Dirs.Temp)
	fmt.Fprintf(w, "  Environments: %s\n", strings.Join(envs, ", "))
	for _, rule := range cfg.Copy {
		fmt.Fprintf(w, "  Copy:         %s -> %s\n", rule.From, rule.To)
	}
	if cfg.HasEnvironment(config.EnvDocker) {
		d := cfg.DockerSettings()
		fmt.Fprintf(w, "  Docker:       %s, restart %s\n", d.Image, d.Restart)
	}
	if cfg.HasEnvironment(config.EnvLinuxX64) {
		fmt.Fprintf(w, "  Service dir:  %s\n", cfg.ServiceDir())
	}
	if cfg.HasEnvironment(config.EnvWindowsX64) {
		fmt.Fprintf(w, "  WinSW:        %s\n", winswSource(cfg))
	}
	if cfg.Publish.S3 != nil {
		fmt.Fprintf(w, "  Publish:      s3://%s/%s\n", cfg.Publish.S3.Bucket, strings.Trim(cfg.Publish.S3.Prefix, "/"))
	}
}

// winswSource describes where the Windows build gets its WinSW executable.
func winswSource(cfg *config.Config) string {
	if cfg.WinSW.Path != "" {
		return cfg.WinSW.Path
	}
	bin := winsw.NewBinary(cfg.WinSW.Version)
	if bin.IsCached() {
		return bin.Version + " (cached)"
	}
	return bin.Version + " (downloaded on first build)"
}
