package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tickwatch/tickwatch/internal/config"
)

// NewRootCmd constructs the tickwatch command tree.
func NewRootCmd() *cobra.Command {
	var manifestFile string
	var buildPath string

	root := &cobra.Command{
		Use:   "tickwatch",
		Short: "Supervise the timechanged helper and surface clock change events",
	}

	root.PersistentFlags().
		StringVarP(&manifestFile, "file", "f", "tickwatch.yaml", "Path to the tickwatch manifest")
	root.PersistentFlags().
		StringVar(&buildPath, "build-path", "", "Helper build directory; bypasses the manifest when set")

	ctx := &appContext{manifestFile: &manifestFile, buildPath: &buildPath}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newBuildCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type appContext struct {
	manifestFile *string
	buildPath    *string
}

// loadManifest resolves the effective configuration. A --build-path override
// synthesizes a manifest so tickwatch can run without a config file.
func (c *appContext) loadManifest() (*config.Manifest, error) {
	if c.buildPath != nil && *c.buildPath != "" {
		doc := &config.Manifest{}
		doc.Watcher.BuildPath = *c.buildPath
		doc.ApplyDefaults()
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return config.Load(*c.manifestFile)
}
