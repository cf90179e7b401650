// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// Environment variables ServeProbe reads in the child process.
const (
	ProbeTimeoutEnv = "CODERELAY_PROBE_TIMEOUT"
	ProbeMemoryEnv  = "CODERELAY_PROBE_MEMORY_BYTES"
)

const (
	// DefaultProbeMemoryLimit caps the data segment of a probe process.
	DefaultProbeMemoryLimit uint64 = 256 << 20

	// DefaultProbeStartGrace is added to the probe timeout before the
	// host kills the child. It covers process start-up only.
	DefaultProbeStartGrace = 250 * time.Millisecond

	maxProbeSource = 1 << 20
)

// ErrProbeSkipped is returned by a LimitedProber when no probe slot
// became free within its wait budget.
var ErrProbeSkipped = errors.New("probe skipped: too many concurrent probes")

// =============================================================================
// PROCESS PROBER
// =============================================================================

// ProcessProber runs every snippet in a fresh child process.
//
// The child is expected to call ServeProbe. It applies the memory limit
// to itself and runs the snippet with a GojaProber. The host kills the
// child once the timeout plus the start grace has passed, so a snippet
// stuck inside a native built-in cannot outlive its budget.
//
// Thread Safety: Safe for concurrent use. Bound the number of
// concurrent children with NewLimitedProber.
type ProcessProber struct {
	command     []string
	env         []string
	timeout     time.Duration
	grace       time.Duration
	memoryLimit uint64
	logger      *slog.Logger
}

// ProcessOption configures a ProcessProber.
type ProcessOption func(*ProcessProber)

// WithProcessTimeout sets the snippet's wall-clock budget. Non-positive
// values keep the default.
func WithProcessTimeout(d time.Duration) ProcessOption {
	return func(p *ProcessProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithStartGrace sets the extra time allowed for the child to start.
// Negative values keep the default.
func WithStartGrace(d time.Duration) ProcessOption {
	return func(p *ProcessProber) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// WithProcessMemoryLimit sets the child's memory limit in bytes. Zero
// keeps the default.
func WithProcessMemoryLimit(n uint64) ProcessOption {
	return func(p *ProcessProber) {
		if n > 0 {
			p.memoryLimit = n
		}
	}
}

// WithProcessEnv adds KEY=VALUE pairs to the child's environment.
func WithProcessEnv(kv ...string) ProcessOption {
	return func(p *ProcessProber) {
		p.env = append(p.env, kv...)
	}
}

// WithProcessLogger sets the logger for child failures.
func WithProcessLogger(l *slog.Logger) ProcessOption {
	return func(p *ProcessProber) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessProber creates a prober that starts command for each probe,
// for example []string{"/usr/local/bin/relay", "probe"}.
func NewProcessProber(command []string, opts ...ProcessOption) (*ProcessProber, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("probe command is required")
	}
	p := &ProcessProber{
		command:     append([]string(nil), command...),
		timeout:     DefaultProbeTimeout,
		grace:       DefaultProbeStartGrace,
		memoryLimit: DefaultProbeMemoryLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Timeout returns the snippet's wall-clock budget.
func (p *ProcessProber) Timeout() time.Duration {
	return p.timeout
}

// Probe runs source in a child process.
//
// Description:
//
//	The source is written to the child's stdin and the outcome is read
//	from its stdout. The child is killed when the timeout plus the start
//	grace passes or ctx ends. A child that dies without reporting, such
//	as one that hit its memory limit, yields a *RuntimeError.
//
// Outputs:
//
//	error - nil, *RuntimeError, ErrProbeTimeout, ctx.Err(), or a start
//	        failure for the child itself.
func (p *ProcessProber) Probe(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout+p.grace)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, p.command[0], p.command[1:]...)
	cmd.Stdin = strings.NewReader(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = p.grace
	cmd.Env = append(os.Environ(), p.env...)
	cmd.Env = append(cmd.Env,
		ProbeTimeoutEnv+"="+p.timeout.String(),
		ProbeMemoryEnv+"="+strconv.FormatUint(p.memoryLimit, 10),
	)

	runErr := cmd.Run()
	if err := ctx.Err(); err != nil {
		return err
	}
	if runCtx.Err() != nil {
		return ErrProbeTimeout
	}

	var res probeResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			p.logger.Debug("probe process died",
				"exit_code", exitErr.ExitCode(),
				"stderr", firstLine(stderr.String()),
			)
			return &RuntimeError{Message: "execution exceeded the sandbox resource limits"}
		}
		if runErr != nil {
			return fmt.Errorf("run probe process: %w", runErr)
		}
		return fmt.Errorf("decode probe result: %w", err)
	}
	return res.err()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// =============================================================================
// CHILD SIDE
// =============================================================================

// Probe outcomes exchanged between host and child.
const (
	probeOutcomeOK      = "ok"
	probeOutcomeError   = "error"
	probeOutcomeTimeout = "timeout"
)

type probeResult struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

func (r probeResult) err() error {
	switch r.Outcome {
	case probeOutcomeOK:
		return nil
	case probeOutcomeTimeout:
		return ErrProbeTimeout
	case probeOutcomeError:
		return &RuntimeError{Message: r.Message}
	default:
		return fmt.Errorf("unknown probe outcome %q", r.Outcome)
	}
}

// ServeProbe is the child half of ProcessProber. It reads one snippet
// from r, applies the limits found through getenv, runs the snippet and
// writes the outcome to w.
func ServeProbe(ctx context.Context, r io.Reader, w io.Writer, getenv func(string) string) error {
	return serveProbe(ctx, r, w, getenv, limitProcessMemory)
}

func serveProbe(ctx context.Context, r io.Reader, w io.Writer, getenv func(string) string, limitMemory func(uint64) error) error {
	timeout := DefaultProbeTimeout
	if v := getenv(ProbeTimeoutEnv); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q", ProbeTimeoutEnv, v)
		}
		timeout = d
	}

	limit := DefaultProbeMemoryLimit
	if v := getenv(ProbeMemoryEnv); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid %s %q", ProbeMemoryEnv, v)
		}
		limit = n
	}
	if err := limitMemory(limit); err != nil {
		return fmt.Errorf("apply memory limit: %w", err)
	}

	src, err := io.ReadAll(io.LimitReader(r, maxProbeSource+1))
	if err != nil {
		return fmt.Errorf("read snippet: %w", err)
	}
	if len(src) > maxProbeSource {
		return fmt.Errorf("snippet exceeds %d bytes", maxProbeSource)
	}

	perr := NewGojaProber(WithProbeTimeout(timeout)).Probe(ctx, string(src))

	var res probeResult
	var rtErr *RuntimeError
	switch {
	case perr == nil:
		res.Outcome = probeOutcomeOK
	case errors.Is(perr, ErrProbeTimeout):
		res.Outcome = probeOutcomeTimeout
	case errors.As(perr, &rtErr):
		res = probeResult{Outcome: probeOutcomeError, Message: rtErr.Message}
	default:
		return perr
	}
	return json.NewEncoder(w).Encode(res)
}

// =============================================================================
// CONCURRENCY LIMIT
// =============================================================================

// LimitedProber bounds how many probes run at once.
//
// A caller waits at most the configured budget for a slot. When none
// frees up, Probe returns ErrProbeSkipped without starting the snippet.
type LimitedProber struct {
	next Prober
	sem  *semaphore.Weighted
	wait time.Duration
}

// NewLimitedProber wraps next so that at most n probes run at once and
// callers wait at most wait for a slot. n below 1 is treated as 1.
func NewLimitedProber(next Prober, n int, wait time.Duration) *LimitedProber {
	if n < 1 {
		n = 1
	}
	return &LimitedProber{next: next, sem: semaphore.NewWeighted(int64(n)), wait: wait}
}

// Probe acquires a slot and delegates to the wrapped prober.
func (l *LimitedProber) Probe(ctx context.Context, source string) error {
	acquireCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := l.sem.Acquire(acquireCtx, 1); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return ErrProbeSkipped
	}
	defer l.sem.Release(1)
	return l.next.Probe(ctx, source)
}
