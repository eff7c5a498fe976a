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

	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

// scriptedExchanger plays back a fixed request/response script, asserting
// each outgoing request matches what the script expects before handing
// back the scripted response.
type scriptedExchanger struct {
	t         *testing.T
	responses [][]byte
	requests  [][]byte
}

func (s *scriptedExchanger) Exchange(req []byte) ([]byte, error) {
	s.requests = append(s.requests, req)
	require.NotEmpty(s.t, s.responses, "scriptedExchanger: exhausted canned responses")
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func pageHashes(n int, seed byte) [][32]byte {
	out := make([][32]byte, n)
	for i := range out {
		out[i][0] = seed
		out[i][1] = byte(i)
	}
	return out
}

func TestPreloadSucceedsAndMatchesRoot(t *testing.T) {
	hashes := pageHashes(4, 0x11)
	leaves := make([][]byte, len(hashes))
	for i, h := range hashes {
		h := h
		leaves[i] = h[:]
	}
	acc, err := merkle.New(leaves)
	require.NoError(t, err)

	m := sampleManifest()
	m.CodeStart = 0
	m.CodeEnd = uint32(len(hashes)) * wire.PageSize
	m.CodeMerkleRoot = acc.Root()

	exch := &scriptedExchanger{t: t, responses: [][]byte{
		wire.GetCodePageHashesResponse{PageHashes: hashes}.Encode(),
		wire.GetCodePageHashesResponse{}.Encode(),
		wire.PreloadCompleteResponse{}.Encode(),
	}}

	result, err := Preload(exch, m, [32]byte{0x42})
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, result.EphemeralSK)
	require.Len(t, exch.requests, 3)

	complete, err := wire.DecodePreloadCompleteMessage(exch.requests[2])
	require.NoError(t, err)
	require.Equal(t, result.EphemeralSK, complete.EphemeralSK)
}

func TestPreloadRootMismatchFails(t *testing.T) {
	hashes := pageHashes(2, 0x22)

	m := sampleManifest()
	m.CodeStart = 0
	m.CodeEnd = uint32(len(hashes)) * wire.PageSize
	m.CodeMerkleRoot = [32]byte{0xff} // deliberately wrong

	exch := &scriptedExchanger{t: t, responses: [][]byte{
		wire.GetCodePageHashesResponse{PageHashes: hashes}.Encode(),
		wire.GetCodePageHashesResponse{}.Encode(),
	}}

	_, err := Preload(exch, m, [32]byte{0x42})
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, wire.StatusIncorrectData, statusErr.Status)
}

func TestPreloadShortStreamFails(t *testing.T) {
	hashes := pageHashes(4, 0x33)

	m := sampleManifest()
	m.CodeStart = 0
	m.CodeEnd = uint32(len(hashes)) * wire.PageSize

	exch := &scriptedExchanger{t: t, responses: [][]byte{
		wire.GetCodePageHashesResponse{PageHashes: hashes[:2]}.Encode(),
		wire.GetCodePageHashesResponse{}.Encode(),
	}}

	_, err := Preload(exch, m, [32]byte{0x42})
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, wire.StatusIncorrectData, statusErr.Status)
}
