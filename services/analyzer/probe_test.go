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
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGojaProber_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		wantRuntime bool
		wantMessage string
	}{
		{"clean", "let x = 1 + 1; console.log(x); console.error('e');", false, ""},
		{"eval is allowed", "eval('1+1')", false, ""},
		{"function declaration", "function f() { return 1; }", false, ""},
		{"thrown error", "throw new Error('boom')", true, "boom"},
		{"reference error", "window.alert(1)", true, "window"},
		{"type error", "null.x", true, "TypeError"},
		{"syntax error", "function (", true, ""},
		{"no require", "require('fs')", true, "require"},
		{"no process", "process.exit(1)", true, "process"},
		{"stack overflow", "function r() { return r(); } r();", true, ""},
		{"timers never fire", "setTimeout(function () { throw new Error('late'); }, 0); clearTimeout(1);", false, ""},
		{"thrown primitive", "throw 42", true, "42"},
	}

	p := NewGojaProber()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Probe(context.Background(), tt.source)
			var rt *RuntimeError
			isRuntime := errors.As(err, &rt)
			if isRuntime != tt.wantRuntime {
				t.Fatalf("Probe(%q) = %v, wantRuntime %v", tt.source, err, tt.wantRuntime)
			}
			if !tt.wantRuntime && err != nil {
				t.Fatalf("Probe(%q) = %v, want nil", tt.source, err)
			}
			if tt.wantMessage != "" && !strings.Contains(rt.Message, tt.wantMessage) {
				t.Errorf("Probe(%q) message = %q, want substring %q", tt.source, rt.Message, tt.wantMessage)
			}
		})
	}
}

func TestGojaProber_Timeout(t *testing.T) {
	p := NewGojaProber(WithProbeTimeout(50 * time.Millisecond))

	start := time.Now()
	err := p.Probe(context.Background(), "while (true) {}")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrProbeTimeout) {
		t.Fatalf("Probe(infinite loop) = %v, want ErrProbeTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %v, want close to 50ms", elapsed)
	}
}

func TestGojaProber_TimeoutCannotBeDisabled(t *testing.T) {
	p := NewGojaProber(WithProbeTimeout(50 * time.Millisecond))

	src := `
		for (;;) {
			try { while (true) {} } catch (e) {}
		}`
	if err := p.Probe(context.Background(), src); !errors.Is(err, ErrProbeTimeout) {
		t.Fatalf("Probe(catching loop) = %v, want ErrProbeTimeout", err)
	}
}

func TestGojaProber_ContextCancel(t *testing.T) {
	p := NewGojaProber(WithProbeTimeout(10 * time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Probe(ctx, "while (true) {}")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Probe() = %v, want context.DeadlineExceeded", err)
	}
}

func TestGojaProber_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewGojaProber().Probe(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Probe() = %v, want context.Canceled", err)
	}
}

func TestGojaProber_FreshRuntimePerCall(t *testing.T) {
	p := NewGojaProber()
	if err := p.Probe(context.Background(), "var leaked = 1;"); err != nil {
		t.Fatalf("first Probe() = %v", err)
	}
	err := p.Probe(context.Background(), "if (typeof leaked !== 'undefined') { throw new Error('state leaked'); }")
	if err != nil {
		t.Fatalf("second Probe() = %v, want nil", err)
	}
}

func TestGojaProber_Concurrent(t *testing.T) {
	p := NewGojaProber(WithProbeTimeout(time.Second))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Probe(context.Background(), "let s = 0; for (let i = 0; i < 1000; i++) { s += i; }"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewGojaProber_Options(t *testing.T) {
	p := NewGojaProber(WithProbeTimeout(0), WithMaxCallStackSize(-1))
	if p.Timeout() != DefaultProbeTimeout {
		t.Errorf("Timeout() = %v, want default", p.Timeout())
	}
	if p.maxCallStack != DefaultMaxCallStackSize {
		t.Errorf("maxCallStack = %d, want default", p.maxCallStack)
	}

	p = NewGojaProber(WithProbeTimeout(250*time.Millisecond), WithMaxCallStackSize(64))
	if p.Timeout() != 250*time.Millisecond || p.maxCallStack != 64 {
		t.Errorf("options not applied: %v %d", p.Timeout(), p.maxCallStack)
	}
}
