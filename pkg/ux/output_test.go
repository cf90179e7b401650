// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	if p.Styled() {
		t.Fatal("printer over a buffer should not be styled")
	}

	p.Title("app.js")
	p.Success("no problems")
	p.Warning("Use === instead of ==")
	p.Error("Unmatched braces")
	p.Info("score 70")
	p.Badge("C", ColorWarning)

	want := strings.Join([]string{
		"== app.js",
		"OK: no problems",
		"WARN: Use === instead of ==",
		"ERROR: Unmatched braces",
		"INFO: score 70",
		"[C]",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestPrinter_StyledKeepsText(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf, styled: true}

	p.Error("Unmatched braces")
	p.Badge("A", ColorSuccess)

	out := buf.String()
	if !strings.Contains(out, "Unmatched braces") || !strings.Contains(out, "A") {
		t.Errorf("styled output lost text: %q", out)
	}
	if strings.Contains(out, "ERROR:") {
		t.Errorf("styled output used plain tag: %q", out)
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("IsTerminal(buffer) = true")
	}
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconBullet} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render() dropped glyph %q", icon)
		}
	}
}

func TestNewPlainPrinter(t *testing.T) {
	if NewPlainPrinter(&bytes.Buffer{}).Styled() {
		t.Error("plain printer is styled")
	}
}
