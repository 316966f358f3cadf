// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spiderexpress-dev/spiderexpress/internal/config"
	"github.com/spiderexpress-dev/spiderexpress/internal/spider"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <config>",
		Short: "Start a crawl",
		Long:  "Load the project configuration, resume or begin the crawl, and run it to its terminal state.",
		Args:  cobra.ExactArgs(1),
		RunE:  runStart,
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	s, err := spider.New(cfg, st)
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM are latched; the spider checks between batches and
	// phases and rolls back the in-flight transaction.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}
