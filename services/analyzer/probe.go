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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

const (
	// DefaultProbeTimeout is the wall-clock budget for one probe run.
	DefaultProbeTimeout = time.Second

	// DefaultMaxCallStackSize bounds recursion depth inside the probe.
	DefaultMaxCallStackSize = 512
)

// Prober executes a snippet to detect runtime failures.
//
// Probe returns nil on clean completion, a *RuntimeError when the
// snippet threw or failed to compile, ErrProbeTimeout when the deadline
// passed, or the context error when ctx ended first. Implementations
// must enforce the deadline themselves; the probed code must not be able
// to extend it.
type Prober interface {
	Probe(ctx context.Context, source string) error
}

// GojaProber runs snippets in an embedded ECMAScript interpreter.
//
// Each call gets a fresh runtime exposing only the ECMAScript built-ins,
// a console whose methods discard their arguments, and timer functions
// that never fire. There is no require, filesystem, network or host
// object access.
//
// The interrupt is only observed between instructions, so a native
// built-in such as String.prototype.repeat runs to completion past the
// deadline, and memory is not bounded. Untrusted snippets go through a
// ProcessProber, whose child runs a GojaProber.
//
// Thread Safety: Safe for concurrent use. Runtimes are never shared.
type GojaProber struct {
	timeout      time.Duration
	maxCallStack int
}

// ProbeOption configures a GojaProber.
type ProbeOption func(*GojaProber)

// WithProbeTimeout sets the wall-clock budget. Non-positive values keep
// the default.
func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(p *GojaProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxCallStackSize bounds the interpreter call stack. Non-positive
// values keep the default.
func WithMaxCallStackSize(n int) ProbeOption {
	return func(p *GojaProber) {
		if n > 0 {
			p.maxCallStack = n
		}
	}
}

// NewGojaProber creates a prober with the given options.
func NewGojaProber(opts ...ProbeOption) *GojaProber {
	p := &GojaProber{
		timeout:      DefaultProbeTimeout,
		maxCallStack: DefaultMaxCallStackSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the configured wall-clock budget.
func (p *GojaProber) Timeout() time.Duration {
	return p.timeout
}

// Probe executes source on the calling goroutine.
//
// Description:
//
//	The deadline is enforced from the host side: a timer interrupts the
//	runtime when it fires, and so does cancellation of ctx. An
//	interrupted runtime is discarded along with any partial state.
//
// Inputs:
//
//	ctx - Cancelling ctx interrupts execution.
//	source - The snippet to execute as a script.
//
// Outputs:
//
//	error - nil, *RuntimeError, ErrProbeTimeout or ctx.Err().
func (p *GojaProber) Probe(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(p.maxCallStack)
	if err := installSandboxGlobals(vm); err != nil {
		return fmt.Errorf("prepare sandbox: %w", err)
	}

	timer := time.AfterFunc(p.timeout, func() {
		vm.Interrupt(ErrProbeTimeout)
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	_, err := vm.RunString(source)
	return classifyProbeError(err)
}

func classifyProbeError(err error) error {
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return ErrProbeTimeout
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			return &RuntimeError{Message: v.String()}
		}
	}
	return &RuntimeError{Message: err.Error()}
}

// installSandboxGlobals adds the only non-standard globals a snippet can
// see.
func installSandboxGlobals(vm *goja.Runtime) error {
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	timerID := func(goja.FunctionCall) goja.Value { return vm.ToValue(0) }

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug", "trace"} {
		if err := console.Set(name, noop); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	globals := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    timerID,
		"setInterval":   timerID,
		"clearTimeout":  noop,
		"clearInterval": noop,
	}
	for name, fn := range globals {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}
