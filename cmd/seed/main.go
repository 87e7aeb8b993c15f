// Package main is the warden-seed CLI. It applies world files to the
// database and mints API tokens for world-building tools and game servers.
//
// Applying a world is idempotent: authorities, laws, and routes that
// already exist are skipped.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "warden-seed",
		Short:         "Seed Warden with world data and API tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}
