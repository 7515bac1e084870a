package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickwatch/tickwatch/internal/builder"
	"github.com/tickwatch/tickwatch/internal/watcher"
)

func newBuildCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the helper build step without starting supervision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			b, err := builder.New(cfg.BuilderConfig())
			if err != nil {
				return err
			}
			if err := b.Build(cmd.Context(), cfg.Watcher.BuildPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "built %s in %s\n", watcher.ChildBinaryName, cfg.Watcher.BuildPath)
			return nil
		},
	}
	return cmd
}
