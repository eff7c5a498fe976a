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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	c := Command{CLA: CLA, INS: InsStartVApp, P1: 1, P2: 2, Data: []byte("manifest-bytes")}
	enc := c.Encode()
	dec, err := DecodeCommand(enc)
	require.NoError(t, err)
	require.Equal(t, c, dec)
}

func TestCommandRoundTripEmptyData(t *testing.T) {
	c := Command{CLA: CLA, INS: InsGetAppInfo}
	dec, err := DecodeCommand(c.Encode())
	require.NoError(t, err)
	require.Equal(t, c.CLA, dec.CLA)
	require.Equal(t, c.INS, dec.INS)
	require.Empty(t, dec.Data)
}

func TestDecodeCommandRejectsShort(t *testing.T) {
	_, err := DecodeCommand([]byte{0xE0, 0x00})
	require.Error(t, err)
}

func TestDecodeCommandRejectsLengthMismatch(t *testing.T) {
	b := Command{CLA: CLA, INS: InsGetAppInfo, Data: []byte("abc")}.Encode()
	b[4] = 10 // claim more data than present
	_, err := DecodeCommand(b)
	require.Error(t, err)
}

func TestResponseRoundTrip(t *testing.T) {
	r := Response{Body: []byte{1, 2, 3, 4}, Status: StatusOK}
	dec, err := DecodeResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
}

func TestResponseRoundTripEmptyBody(t *testing.T) {
	r := Response{Status: StatusVMRuntimeError}
	dec, err := DecodeResponse(r.Encode())
	require.NoError(t, err)
	require.Empty(t, dec.Body)
	require.Equal(t, StatusVMRuntimeError, dec.Status)
}

func TestStatusWordString(t *testing.T) {
	require.Equal(t, "OK", StatusOK.String())
	require.Contains(t, StatusWord(0x1234).String(), "Unknown")
}
