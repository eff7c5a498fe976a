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

func TestGetPageMessageRoundTrip(t *testing.T) {
	m := GetPageMessage{Section: SectionData, PageIndex: 7}
	dec, err := DecodeGetPageMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, dec)
}

func TestGetPageMessageRejectsWrongTag(t *testing.T) {
	b := GetPageMessage{}.Encode()
	b[0] = byte(CmdCommitPage)
	_, err := DecodeGetPageMessage(b)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestGetPageResponseRoundTripNoProof(t *testing.T) {
	r := GetPageResponse{IsEncrypted: true, Ciphertext: make([]byte, PageSize+GCMTagSize)}
	r.Ciphertext[0] = 0xAB
	r.Nonce[0] = 0x01
	dec, err := DecodeGetPageResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
}

func TestGetPageResponseRoundTripWithPartialProof(t *testing.T) {
	r := GetPageResponse{NProof: 20, Ciphertext: make([]byte, PageSize)}
	r.Proof = make([][HashSize]byte, MaxProofHashesPerFrame)
	for i := range r.Proof {
		r.Proof[i][0] = byte(i)
	}
	dec, err := DecodeGetPageResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
	require.Less(t, len(dec.Proof), int(dec.NProof))
}

func TestGetPageResponseRejectsInconsistentFrame(t *testing.T) {
	r := GetPageResponse{NProof: 1, Ciphertext: make([]byte, PageSize)}
	enc := r.Encode()
	// Append two hashes, one more than NProof declares.
	enc = append(enc, make([]byte, HashSize*2)...)
	_, err := DecodeGetPageResponse(enc)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestProofContinuedResponseRoundTrip(t *testing.T) {
	r := ProofContinuedResponse{Hashes: make([][HashSize]byte, 3)}
	r.Hashes[1][5] = 0x42
	enc := r.Encode(CmdGetPageProofContinued)
	dec, err := DecodeProofContinuedResponse(enc, CmdGetPageProofContinued)
	require.NoError(t, err)
	require.Equal(t, r, dec)

	_, err = DecodeProofContinuedResponse(enc, CmdCommitPageProofContinued)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestCommitPageMessageRoundTrip(t *testing.T) {
	m := CommitPageMessage{Section: SectionStack, PageIndex: 3, IsEncrypted: true, Data: make([]byte, PageSize+GCMTagSize)}
	m.Nonce[0] = 9
	m.Data[255] = 0xFF
	dec, err := DecodeCommitPageMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, dec)
}

func TestCommitPageProofResponseRoundTrip(t *testing.T) {
	r := CommitPageProofResponse{NProof: 2, Proof: make([][HashSize]byte, 2)}
	r.NewRoot[0] = 0x77
	dec, err := DecodeCommitPageProofResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
}

func TestIsContinuationOnly(t *testing.T) {
	require.False(t, CmdGetPage.IsContinuationOnly())
	require.False(t, CmdCommitPage.IsContinuationOnly())
	require.False(t, CmdSendBuffer.IsContinuationOnly())
	require.False(t, CmdReceiveBuffer.IsContinuationOnly())
	require.True(t, CmdSendBufferContinued.IsContinuationOnly())
	require.True(t, CmdGetPageProofContinued.IsContinuationOnly())
	require.True(t, CmdCommitPageProofContinued.IsContinuationOnly())
}

func TestClientCommandCodeString(t *testing.T) {
	require.Equal(t, "GetPage", CmdGetPage.String())
	require.Contains(t, ClientCommandCode(200).String(), "ClientCommand")
}
