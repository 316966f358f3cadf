// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered connectors and strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "--- connectors ---")
			for _, name := range plugin.Connectors() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "--- strategies ---")
			for _, name := range plugin.Strategies() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
