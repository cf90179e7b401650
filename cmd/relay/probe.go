// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeRelay/services/analyzer"
)

// probeCommandName is the hidden subcommand each probe process runs.
const probeCommandName = "probe"

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    probeCommandName,
		Short:  "Execute one snippet from stdin in the sandbox",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return analyzer.ServeProbe(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), os.Getenv)
		},
	}
}

// newSandboxProber runs each probe in a child copy of this binary and
// bounds how many run at once.
func newSandboxProber(timeout time.Duration, memoryLimit uint64, concurrency int, logger *slog.Logger) (analyzer.Prober, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable for probe: %w", err)
	}

	p, err := analyzer.NewProcessProber([]string{exe, probeCommandName},
		analyzer.WithProcessTimeout(timeout),
		analyzer.WithProcessMemoryLimit(memoryLimit),
		analyzer.WithProcessLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return analyzer.NewLimitedProber(p, concurrency, p.Timeout()), nil
}
