// Package main provides the hxhydrate command: run the activation
// scheduler over an HTML page in a headless browser and inspect the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hxhydrate",
		Short: "hxhydrate - progressive component activation",
		Long: `hxhydrate schedules the activation of server-rendered components.

Commands:
  run       Activate the components of a page and print the result
  watch     Re-run discovery whenever a page file changes
  decode    Print an encoded snapshot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default .hxhydrate.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hxhydrate version %s\n", version)
		},
	}
}
