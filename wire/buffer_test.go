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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendBufferMessageRoundTrip(t *testing.T) {
	m := SendBufferMessage{Type: BufferPrint, TotalLength: 500, Chunk: []byte("hello")}
	dec, err := DecodeSendBufferMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, dec)
}

func TestSendBufferContinuedRoundTrip(t *testing.T) {
	m := SendBufferContinuedMessage{Chunk: []byte("world")}
	dec, err := DecodeSendBufferContinuedMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, dec)
}

func TestReceiveBufferResponseRoundTrip(t *testing.T) {
	r := ReceiveBufferResponse{RemainingLength: 12, Chunk: []byte("abc")}
	dec, err := DecodeReceiveBufferResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
}

func TestChunkBufferRespectsMaxSize(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, MaxChunkBytes*3+10)
	chunks := ChunkBuffer(data)
	require.Len(t, chunks, 4)
	var reassembled []byte
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), MaxChunkBytes)
		reassembled = append(reassembled, c...)
	}
	require.Equal(t, data, reassembled)
}

func TestChunkBufferEmptyYieldsOneEmptyChunk(t *testing.T) {
	chunks := ChunkBuffer(nil)
	require.Len(t, chunks, 1)
	require.Empty(t, chunks[0])
}

func TestReceiveBufferLoopReachesZero(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, MaxChunkBytes*2+1)
	chunks := ChunkBuffer(data)
	sent := 0
	for i, c := range chunks {
		sent += len(c)
		remaining := len(data) - sent
		resp := ReceiveBufferResponse{RemainingLength: uint32(remaining), Chunk: c}
		if i == len(chunks)-1 {
			require.Zero(t, resp.RemainingLength)
		} else {
			require.NotZero(t, resp.RemainingLength)
		}
	}
}

func TestGetCodePageHashesRoundTrip(t *testing.T) {
	m := GetCodePageHashesMessage{PagesDeliveredSoFar: 4, PrevBatchHMACs: make([][32]byte, 2)}
	m.PrevBatchHMACs[0][0] = 0x11
	dec, err := DecodeGetCodePageHashesMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, dec)
}

func TestGetCodePageHashesResponseRoundTrip(t *testing.T) {
	r := GetCodePageHashesResponse{PageHashes: make([][32]byte, 3)}
	r.PageHashes[2][31] = 0xFF
	dec, err := DecodeGetCodePageHashesResponse(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, dec)
}

func TestGetCodePageHashesResponseEmptySignalsEnd(t *testing.T) {
	r := GetCodePageHashesResponse{}
	dec, err := DecodeGetCodePageHashesResponse(r.Encode())
	require.NoError(t, err)
	require.Empty(t, dec.PageHashes)
}
