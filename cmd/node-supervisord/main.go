package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected via ldflags at build time).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "node-supervisord",
		Short:         "Supervises a long-running Cardano node daemon",
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the supervisor settings file")

	cmd.AddCommand(newRunCommand(&configPath))
	cmd.AddCommand(newStatusCommand(&configPath))
	cmd.AddCommand(newRestartCommand(&configPath))
	cmd.AddCommand(newKillCommand(&configPath))
	return cmd
}
