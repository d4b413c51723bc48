// Package main provides the entry point for the commprobe CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for commprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commprobe",
		Short: "Community discussion crawler for product and competitor mentions",
		Long: `Commprobe crawls discussion communities for conversations about a configured
set of products and companies. It walks comment trees recursively within a
strict request budget, filters for relevance, detects changed content across
runs, and emits a normalized batch of posts with nested comments.

Credentials are read from COMMPROBE_CLIENT_ID and COMMPROBE_CLIENT_SECRET
(a .env file in the working directory is honored).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewDiffCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
