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

package sdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveExtendedPublicKeyRootHasNoParent(t *testing.T) {
	withFakeTrap(t, 1)
	xpub, ok := DeriveExtendedPublicKey(CurveSECP256K1, nil)
	require.True(t, ok)
	require.Equal(t, uint8(0), xpub.Depth)
	require.Equal(t, uint32(0), xpub.ParentFPR)
	require.Equal(t, uint32(0), xpub.ChildNumber)
}

func TestDeriveExtendedPublicKeyRecordsDepthAndChildNumber(t *testing.T) {
	withFakeTrap(t, 1)
	xpub, ok := DeriveExtendedPublicKey(CurveSECP256K1, []uint32{0x80000000 + 44, 0x80000000 + 1, 7})
	require.True(t, ok)
	require.Equal(t, uint8(3), xpub.Depth)
	require.Equal(t, uint32(7), xpub.ChildNumber)
}

func TestDeriveExtendedPublicKeyPropagatesDerivationFailure(t *testing.T) {
	withFakeTrap(t, 0)
	_, ok := DeriveExtendedPublicKey(CurveSECP256K1, []uint32{0})
	require.False(t, ok)
}

func TestExtendedPublicKeyBytesIsStandardSeventyEightBytes(t *testing.T) {
	var k ExtendedPublicKey
	k.Depth = 3
	k.ParentFPR = 0x11223344
	k.ChildNumber = 0x80000007
	for i := range k.ChainCode {
		k.ChainCode[i] = byte(i)
	}
	k.PublicKey.Y[31] = 1 // odd Y -> 0x03 prefix

	out := k.Bytes()
	require.Len(t, out, 78)
	require.Equal(t, []byte{0x04, 0x35, 0x87, 0xcf}, out[0:4]) // version
	require.Equal(t, byte(3), out[4])                          // depth
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, out[5:9]) // parent fingerprint
	require.Equal(t, []byte{0x80, 0x00, 0x00, 0x07}, out[9:13])
	require.Equal(t, k.ChainCode[:], out[13:45])
	require.Equal(t, byte(0x03), out[45])
}
