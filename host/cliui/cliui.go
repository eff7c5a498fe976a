// Copyright 2024 The Vanadium Authors
// This file is part of Vanadium.
//
// Vanadium is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vanadium is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vanadium. If not, see <http://www.gnu.org/licenses/>.

// Package cliui renders the host CLI's approval prompts, registry listing,
// and metrics table, degrading to plain text automatically when stdout
// isn't a terminal (piped into a log file, redirected in CI).
package cliui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/vanadium-vm/vanadium/internal/metrics"
)

// UI renders operator-facing output and collects operator decisions.
type UI struct {
	out   io.Writer
	in    *bufio.Reader
	color bool
}

// New builds a UI writing to os.Stdout and reading approvals from
// os.Stdin, auto-detecting color support the way a terminal program
// conventionally does: colorable wraps stdout so ANSI sequences render
// correctly on every platform the device host runs on, and isatty decides
// whether to emit them at all (a redirected-to-file run should stay plain).
func New() *UI {
	out := colorable.NewColorable(os.Stdout)
	return &UI{
		out:   out,
		in:    bufio.NewReader(os.Stdin),
		color: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// NewFor builds a UI around an explicit writer/reader pair with color
// forced on or off, for tests and for non-interactive callers.
func NewFor(out io.Writer, in io.Reader, useColor bool) *UI {
	return &UI{out: out, in: bufio.NewReader(in), color: useColor}
}

func (u *UI) paint(c *color.Color, format string, args ...interface{}) string {
	s := fmt.Sprintf(format, args...)
	if !u.color {
		return s
	}
	return c.Sprint(s)
}

// ApprovalPrompt is the host-side mirror of device.ApprovalPrompt: a title
// and a set of lines describing what the device is about to do, shown to
// the operator before RegisterVApp (or any other operation that needs
// informed physical confirmation) is sent.
type ApprovalPrompt struct {
	Title string
	Lines []string
}

// Confirm renders prompt and blocks for a yes/no answer on the UI's input
// stream. Only an explicit "y" or "yes" (case-insensitive) counts as
// approval; anything else, including a read error or EOF, denies.
func (u *UI) Confirm(prompt ApprovalPrompt) (bool, error) {
	fmt.Fprintln(u.out, u.paint(color.New(color.FgYellow, color.Bold), "▶ %s", prompt.Title))
	for _, line := range prompt.Lines {
		fmt.Fprintf(u.out, "    %s\n", line)
	}
	fmt.Fprint(u.out, u.paint(color.New(color.FgYellow), "approve on device? [y/N] "))

	line, err := u.in.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Info prints a plain informational line.
func (u *UI) Info(format string, args ...interface{}) {
	fmt.Fprintln(u.out, fmt.Sprintf(format, args...))
}

// Success prints a green-highlighted result line.
func (u *UI) Success(format string, args ...interface{}) {
	fmt.Fprintln(u.out, u.paint(color.New(color.FgGreen, color.Bold), format, args...))
}

// Failure prints a red-highlighted error line.
func (u *UI) Failure(format string, args ...interface{}) {
	fmt.Fprintln(u.out, u.paint(color.New(color.FgRed, color.Bold), format, args...))
}

// RegistryEntry is one row of the registered-V-App listing.
type RegistryEntry struct {
	Hash    string
	Name    string
	Version string
}

// PrintRegistry renders the registered V-App table.
func (u *UI) PrintRegistry(entries []RegistryEntry) {
	table := tablewriter.NewWriter(u.out)
	table.SetHeader([]string{"Hash", "Name", "Version"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, e := range entries {
		table.Append([]string{e.Hash, e.Name, e.Version})
	}
	table.Render()
}

// PrintMetrics renders a single-run counter snapshot.
func (u *UI) PrintMetrics(snap metrics.Snapshot) {
	table := tablewriter.NewWriter(u.out)
	table.SetHeader([]string{"Counter", "Value"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.Append([]string{"instructions retired", fmt.Sprintf("%d", snap.InstructionsRetired)})
	table.Append([]string{"page-fault round trips", fmt.Sprintf("%d", snap.PageFaultRoundTrips)})
	table.Render()
}
