// Package main provides the entry point for the probe CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/probe-search/probe/cmd/probe/commands"
	"github.com/probe-search/probe/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewSearchCommand()
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "probe %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
