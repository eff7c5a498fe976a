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

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

func leafOf(b byte) []byte {
	leaf := make([]byte, wire.SerializedPageSize)
	leaf[0] = b
	return leaf
}

func TestSectionStoreFetchMatchesAccumulator(t *testing.T) {
	db, err := OpenMem(1 << 16)
	require.NoError(t, err)
	defer db.Close()

	leaves := [][]byte{leafOf(1), leafOf(2), leafOf(3)}
	want, err := merkle.New(leaves)
	require.NoError(t, err)

	s, err := NewSectionStore(db, [32]byte{0x01}, wire.SectionCode, false, leaves)
	require.NoError(t, err)
	require.Equal(t, want.Root(), s.Root())
	require.Equal(t, want.Len(), s.Len())

	leaf, proof, err := s.Fetch(1)
	require.NoError(t, err)
	require.Equal(t, leaves[1], leaf)
	require.True(t, merkle.VerifyInclusion(s.Root(), proof, leaf, 1, s.Len()))
}

func TestSectionStoreCommitUpdatesRootAndPersists(t *testing.T) {
	db, err := OpenMem(1 << 16)
	require.NoError(t, err)
	defer db.Close()

	leaves := [][]byte{leafOf(1), leafOf(2)}
	s, err := NewSectionStore(db, [32]byte{0x02}, wire.SectionData, true, leaves)
	require.NoError(t, err)

	oldLeaf, _, err := s.Fetch(0)
	require.NoError(t, err)
	oldRoot := s.Root()

	newLeaf := leafOf(9)
	up, newRoot, err := s.Commit(0, newLeaf)
	require.NoError(t, err)
	require.NotEqual(t, oldRoot, newRoot)
	require.True(t, merkle.VerifyUpdate(newRoot, up, oldLeaf, newLeaf, 0, s.Len()))

	fetched, _, err := s.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, newLeaf, fetched)

	val, ok, err := db.getLeaf([32]byte{0x02}, wire.SectionData, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, newLeaf, val)
}

func TestSectionStoreCommitRejectsReadOnlySection(t *testing.T) {
	db, err := OpenMem(1 << 16)
	require.NoError(t, err)
	defer db.Close()

	s, err := NewSectionStore(db, [32]byte{0x03}, wire.SectionCode, false, [][]byte{leafOf(1)})
	require.NoError(t, err)

	_, _, err = s.Commit(0, leafOf(2))
	require.Error(t, err)
}
