// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print spiderexpress version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "spiderexpress %s (commit: %s, built: %s)\n", version, commit, date)
			return err
		},
	}
}
