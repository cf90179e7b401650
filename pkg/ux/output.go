// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output.
//
// A Printer writes styled lines when its destination is a terminal and
// plain, prefix-tagged lines otherwise, so output piped into files or CI
// logs stays grep-friendly:
//
//	p := ux.NewPrinter(os.Stdout)
//	p.Title("app.js")
//	p.Error("Unmatched braces: 2 open, 1 close")
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// Palette
// =============================================================================

var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Badge   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Badge:   lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0F1923")),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon in its status colour.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes status lines to w.
//
// Thread Safety: Not safe for concurrent use; serialise writes.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter styles output only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewPlainPrinter never styles output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Styled reports whether the printer emits styles.
func (p *Printer) Styled() bool { return p.styled }

// IsTerminal reports whether w is a terminal, including Cygwin ptys.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Title prints a heading.
func (p *Printer) Title(text string) {
	if p.styled {
		fmt.Fprintln(p.w, Styles.Title.Render(text))
		return
	}
	fmt.Fprintf(p.w, "== %s\n", text)
}

// Success prints a line with a check mark.
func (p *Printer) Success(text string) { p.status(IconSuccess, Styles.Success, "OK", text) }

// Warning prints a warning line.
func (p *Printer) Warning(text string) { p.status(IconWarning, Styles.Warning, "WARN", text) }

// Error prints an error line.
func (p *Printer) Error(text string) { p.status(IconError, Styles.Error, "ERROR", text) }

// Info prints a secondary line.
func (p *Printer) Info(text string) {
	if p.styled {
		fmt.Fprintf(p.w, "%s %s\n", IconBullet.Render(), Styles.Muted.Render(text))
		return
	}
	fmt.Fprintf(p.w, "INFO: %s\n", text)
}

// Badge prints label on a background coloured by tone.
func (p *Printer) Badge(label string, tone lipgloss.Color) {
	if p.styled {
		fmt.Fprintln(p.w, Styles.Badge.Background(tone).Render(label))
		return
	}
	fmt.Fprintf(p.w, "[%s]\n", label)
}

func (p *Printer) status(icon Icon, style lipgloss.Style, tag, text string) {
	if p.styled {
		fmt.Fprintf(p.w, "  %s %s\n", icon.Render(), style.Render(text))
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", tag, text)
}
