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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CodeRelay/pkg/ux"
	"github.com/AleutianAI/CodeRelay/services/analyzer"
)

// maxCheckFileSize bounds files read by check.
const maxCheckFileSize = 1 << 20

// errBelowThreshold is returned when a file scores under --min-score.
var errBelowThreshold = errors.New("score below threshold")

type checkOptions struct {
	language     string
	jsonOutput   bool
	probe        bool
	probeTimeout time.Duration
	minScore     int
	strictHTML   bool
	tagTolerance int
	disabled     []string
}

// fileResult is one file's outcome. Exactly one of Report and Error is set.
type fileResult struct {
	File   string           `json:"file"`
	Report *analyzer.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Analyze source files locally",
		Long: `Analyze source files with the same rules the service uses.

The language is taken from --language or, per file, from its extension.
Exit status is 1 when any file scores below --min-score and 2 when a file
cannot be read.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.language, "language", "l", "", "language for every file (default: from extension)")
	f.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	f.BoolVar(&opts.probe, "probe", false, "execute JavaScript in the sandbox")
	f.DurationVar(&opts.probeTimeout, "probe-timeout", analyzer.DefaultProbeTimeout, "wall-clock budget per probed file")
	f.IntVar(&opts.minScore, "min-score", 0, "fail when any file scores below this")
	f.BoolVar(&opts.strictHTML, "strict-html", false, "treat missing doctype and <html> as errors")
	f.IntVar(&opts.tagTolerance, "html-tag-tolerance", 0, "allowed open/close count difference per HTML tag")
	f.StringSliceVar(&opts.disabled, "disable", nil, "rule IDs to skip")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, files []string, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.minScore < 0 || opts.minScore > analyzer.MaxScore {
		return fmt.Errorf("--min-score must be between 0 and %d", analyzer.MaxScore)
	}
	if opts.tagTolerance < 0 {
		return errors.New("--html-tag-tolerance must not be negative")
	}
	if opts.probe && opts.probeTimeout <= 0 {
		return errors.New("--probe-timeout must be positive")
	}

	aopts := []analyzer.Option{
		analyzer.WithRegistry(analyzer.NewRegistry(
			analyzer.WithStrictHTML(opts.strictHTML),
			analyzer.WithHTMLTagTolerance(opts.tagTolerance),
			analyzer.WithDisabledRules(opts.disabled...),
		)),
	}
	if opts.probe {
		prober, err := newSandboxProber(opts.probeTimeout, analyzer.DefaultProbeMemoryLimit, runtime.NumCPU(),
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			return err
		}
		aopts = append(aopts, analyzer.WithProber(prober))
	}
	a := analyzer.New(aopts...)

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		g.Go(func() error {
			results[i] = checkFile(gctx, a, file, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		printResults(ux.NewPrinter(out), results)
	}

	var failed, below int
	for _, r := range results {
		switch {
		case r.Report == nil:
			failed++
		case r.Report.Score < opts.minScore:
			below++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be analyzed", failed)
	}
	if below > 0 {
		return fmt.Errorf("%w: %d file(s) under %d", errBelowThreshold, below, opts.minScore)
	}
	return nil
}

func checkFile(ctx context.Context, a *analyzer.Analyzer, file string, opts checkOptions) fileResult {
	res := fileResult{File: file}

	code, err := readSource(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	req := analyzer.Request{Code: code, Language: languageFor(file, opts.language)}
	if opts.probe {
		res.Report, err = a.Analyze(ctx, req)
	} else {
		res.Report, err = a.AnalyzeStatic(ctx, req)
	}
	if err != nil {
		res.Report = nil
		res.Error = err.Error()
	}
	return res
}

func readSource(file string) (string, error) {
	info, err := os.Stat(file)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", file)
	}
	if info.Size() > maxCheckFileSize {
		return "", fmt.Errorf("%s is larger than %d bytes", file, maxCheckFileSize)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// languageFor returns the explicit language, else the file extension.
// Files without an extension are analysed with no rules.
func languageFor(file, explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if ext := strings.TrimPrefix(filepath.Ext(file), "."); ext != "" {
		return ext
	}
	return string(analyzer.LanguageOther)
}

func printResults(p *ux.Printer, results []fileResult) {
	for _, r := range results {
		if r.Report == nil {
			p.Title(r.File)
			p.Error(r.Error)
			continue
		}

		rep := r.Report
		p.Title(fmt.Sprintf("%s (%s)", r.File, rep.Language))
		for _, msg := range rep.Messages(analyzer.SeverityError) {
			p.Error(msg)
		}
		for _, msg := range rep.Messages(analyzer.SeverityWarning) {
			p.Warning(msg)
		}
		for _, msg := range rep.Messages(analyzer.SeveritySuggestion) {
			p.Info(msg)
		}
		if len(rep.Findings) == 0 {
			p.Success("No problems found")
		}
		p.Badge(fmt.Sprintf("%d %s", rep.Score, rep.Grade), gradeColor(rep.Grade))
	}
}

func gradeColor(g analyzer.Grade) lipgloss.Color {
	switch g {
	case analyzer.GradeA, analyzer.GradeB:
		return ux.ColorSuccess
	case analyzer.GradeC, analyzer.GradeD:
		return ux.ColorWarning
	default:
		return ux.ColorError
	}
}
