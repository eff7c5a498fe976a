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

	"github.com/vanadium-vm/vanadium/wire"
)

func hashOf(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := hashOf(1)
	require.NoError(t, r.Register(h, "echo", "1.0.0"))

	name, version, found := r.Lookup(h)
	require.True(t, found)
	require.Equal(t, "echo", name)
	require.Equal(t, "1.0.0", version)
	require.Equal(t, 1, r.Count())
}

func TestRegistryRegisterOverwritesSameHash(t *testing.T) {
	r := NewRegistry()
	h := hashOf(2)
	require.NoError(t, r.Register(h, "echo", "1.0.0"))
	require.NoError(t, r.Register(h, "echo", "1.1.0"))

	_, version, _ := r.Lookup(h)
	require.Equal(t, "1.1.0", version)
	require.Equal(t, 1, r.Count())
}

func TestRegistryStoreFull(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < wire.MaxRegisteredVApps; i++ {
		require.NoError(t, r.Register(hashOf(byte(i)), "app", "1.0.0"))
	}
	err := r.Register(hashOf(200), "overflow", "1.0.0")
	require.ErrorIs(t, err, ErrStoreFull)
}

func TestRegistryWipeAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(hashOf(3), "echo", "1.0.0"))
	r.WipeAll()
	require.Equal(t, 0, r.Count())
	_, _, found := r.Lookup(hashOf(3))
	require.False(t, found)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	h := hashOf(4)
	require.NoError(t, r.Register(h, "echo", "1.0.0"))
	require.True(t, r.Remove(h))
	require.False(t, r.Remove(h))
	_, _, found := r.Lookup(h)
	require.False(t, found)
}
