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

package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/wire"
)

type stubApprover struct {
	approve bool
	prompts []ApprovalPrompt
}

func (a *stubApprover) Approve(p ApprovalPrompt) (bool, error) {
	a.prompts = append(a.prompts, p)
	return a.approve, nil
}

func sampleManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ManifestVersion: 1,
		VAppName:        "echo",
		VAppVersion:     "1.0.0",
		Entrypoint:      0x1000,
		CodeStart:       0x1000,
		CodeEnd:         0x1100,
		DataStart:       0x2000,
		DataEnd:         0x2100,
		StackStart:      0x8000,
		StackEnd:        0x8100,
		NStorageSlots:   4,
	}
}

func TestRegisterApprovedStoresEntry(t *testing.T) {
	reg := NewRegistry()
	m := sampleManifest()
	approver := &stubApprover{approve: true}

	status, err := Register(reg, approver, m)
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, status.Status)

	_, _, found := reg.Lookup(m.Hash())
	require.True(t, found)
	require.Len(t, approver.prompts, 1)
}

func TestRegisterDeniedDoesNotStore(t *testing.T) {
	reg := NewRegistry()
	m := sampleManifest()
	approver := &stubApprover{approve: false}

	status, err := Register(reg, approver, m)
	require.NoError(t, err)
	require.Equal(t, wire.StatusDeny, status.Status)

	_, _, found := reg.Lookup(m.Hash())
	require.False(t, found)
}

func TestRegisterInvalidManifestIsIncorrectData(t *testing.T) {
	reg := NewRegistry()
	m := sampleManifest()
	m.VAppName = " leadingspace"
	approver := &stubApprover{approve: true}

	status, err := Register(reg, approver, m)
	require.NoError(t, err)
	require.Equal(t, wire.StatusIncorrectData, status.Status)
}

func TestRegisterStoreFull(t *testing.T) {
	reg := NewRegistry()
	approver := &stubApprover{approve: true}
	for i := 0; i < wire.MaxRegisteredVApps; i++ {
		require.NoError(t, reg.Register(hashOf(byte(i)), "app", "1.0.0"))
	}
	m := sampleManifest()
	status, err := Register(reg, approver, m)
	require.NoError(t, err)
	require.Equal(t, wire.StatusStoreFull, status.Status)
}
