// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	// Built-in plug-ins and the sqlite backend register themselves.
	_ "github.com/spiderexpress-dev/spiderexpress/internal/connector"
	_ "github.com/spiderexpress-dev/spiderexpress/internal/store/sqlite"
	_ "github.com/spiderexpress-dev/spiderexpress/internal/strategy"
)

// NewRootCmd creates the root spiderexpress command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spiderexpress",
		Short:         "spiderexpress — pluggable network sampling",
		Long:          "spiderexpress traverses the deserts of social media networks:\na crawler whose frontier is driven by pluggable sampling strategies.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newCreateCmd(),
		newListCmd(),
		newVersionCmd(),
	)

	return root
}
