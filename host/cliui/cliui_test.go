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

package cliui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/internal/metrics"
)

func TestConfirmAcceptsYes(t *testing.T) {
	var out bytes.Buffer
	ui := NewFor(&out, strings.NewReader("y\n"), false)

	ok, err := ui.Confirm(ApprovalPrompt{Title: "Register V-App", Lines: []string{"name: demo"}})
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "Register V-App")
	require.Contains(t, out.String(), "name: demo")
}

func TestConfirmDeniesAnythingElse(t *testing.T) {
	var out bytes.Buffer
	ui := NewFor(&out, strings.NewReader("n\n"), false)

	ok, err := ui.Confirm(ApprovalPrompt{Title: "Register V-App"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConfirmDeniesOnEmptyInput(t *testing.T) {
	var out bytes.Buffer
	ui := NewFor(&out, strings.NewReader(""), false)

	ok, err := ui.Confirm(ApprovalPrompt{Title: "Register V-App"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrintRegistryRendersRows(t *testing.T) {
	var out bytes.Buffer
	ui := NewFor(&out, strings.NewReader(""), false)

	ui.PrintRegistry([]RegistryEntry{
		{Hash: "deadbeef", Name: "demo", Version: "1.0.0"},
	})
	require.Contains(t, out.String(), "deadbeef")
	require.Contains(t, out.String(), "demo")
}

func TestPrintMetricsRendersCounters(t *testing.T) {
	var out bytes.Buffer
	ui := NewFor(&out, strings.NewReader(""), false)

	ui.PrintMetrics(metrics.Snapshot{InstructionsRetired: 10, PageFaultRoundTrips: 2})
	require.Contains(t, out.String(), "10")
	require.Contains(t, out.String(), "2")
}
