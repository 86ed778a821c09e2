package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

func cleanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the build directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.newConsole(cmd.OutOrStdout())
			cfg, err := opts.loadProject(out)
			if err != nil {
				return err
			}
			if err := os.RemoveAll(cfg.Dirs.Build); err != nil {
				return errors.New("E203").WithPath(cfg.Dirs.Build).Wrap(err)
			}
			out.Ok("Removed `%s`.", cfg.Dirs.Build)
			return nil
		},
	}
}
