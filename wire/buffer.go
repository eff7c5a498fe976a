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
	"encoding/binary"
	"fmt"
)

// BufferType tags a VM->host buffer transfer.
type BufferType uint8

const (
	BufferVAppMessage BufferType = iota
	BufferPanic
	BufferPrint
	// BufferShowPage and BufferShowStep carry a wrapped UX description
	// for show_page/show_step: the device forwards the bytes
	// unparsed through the same chunked one-way transport used for
	// print/fatal, since only the host's UI layer needs to understand the
	// wrapped-page encoding.
	BufferShowPage
	BufferShowStep
)

func (t BufferType) String() string {
	switch t {
	case BufferVAppMessage:
		return "VAppMessage"
	case BufferPanic:
		return "Panic"
	case BufferPrint:
		return "Print"
	case BufferShowPage:
		return "ShowPage"
	case BufferShowStep:
		return "ShowStep"
	default:
		return fmt.Sprintf("BufferType(%d)", uint8(t))
	}
}

// SendBufferMessage is the first frame of a VM->host buffer transfer: a
// BufferType tag, the big-endian total length, and the first chunk (spec
// §4.4). Subsequent chunks are carried by SendBufferContinuedMessage.
type SendBufferMessage struct {
	Type        BufferType
	TotalLength uint32
	Chunk       []byte
}

func (m SendBufferMessage) Encode() []byte {
	buf := make([]byte, 0, 1+1+4+len(m.Chunk))
	buf = append(buf, byte(CmdSendBuffer), byte(m.Type))
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], m.TotalLength)
	buf = append(buf, tmp[:]...)
	return append(buf, m.Chunk...)
}

func DecodeSendBufferMessage(b []byte) (SendBufferMessage, error) {
	if len(b) < 6 || ClientCommandCode(b[0]) != CmdSendBuffer {
		return SendBufferMessage{}, fmt.Errorf("%w: malformed SendBufferMessage", ErrProtocol)
	}
	return SendBufferMessage{
		Type:        BufferType(b[1]),
		TotalLength: binary.BigEndian.Uint32(b[2:6]),
		Chunk:       append([]byte(nil), b[6:]...),
	}, nil
}

// SendBufferContinuedMessage carries a later chunk of a VM->host transfer.
type SendBufferContinuedMessage struct {
	Chunk []byte
}

func (m SendBufferContinuedMessage) Encode() []byte {
	buf := make([]byte, 1, 1+len(m.Chunk))
	buf[0] = byte(CmdSendBufferContinued)
	return append(buf, m.Chunk...)
}

func DecodeSendBufferContinuedMessage(b []byte) (SendBufferContinuedMessage, error) {
	if len(b) < 1 || ClientCommandCode(b[0]) != CmdSendBufferContinued {
		return SendBufferContinuedMessage{}, fmt.Errorf("%w: malformed SendBufferContinuedMessage", ErrProtocol)
	}
	return SendBufferContinuedMessage{Chunk: append([]byte(nil), b[1:]...)}, nil
}

// ReceiveBufferMessage is the device's request for the next chunk of a
// host->VM transfer. It carries no extra fields; the host
// replies with a ReceiveBufferResponse.
type ReceiveBufferMessage struct{}

func (ReceiveBufferMessage) Encode() []byte { return []byte{byte(CmdReceiveBuffer)} }

// ReceiveBufferResponse carries remaining_length (bytes still to send after
// this frame) and a chunk; the VM loops until remaining_length reaches
// zero.
type ReceiveBufferResponse struct {
	RemainingLength uint32
	Chunk           []byte
}

// MaxChunkSize is the canonical chunk bound for this response, resolved in
// SPEC_FULL.md §6.
func (ReceiveBufferResponse) MaxChunkSize() int { return MaxChunkBytes }

func (r ReceiveBufferResponse) Encode() []byte {
	buf := make([]byte, 4, 4+len(r.Chunk))
	binary.BigEndian.PutUint32(buf, r.RemainingLength)
	return append(buf, r.Chunk...)
}

func DecodeReceiveBufferResponse(b []byte) (ReceiveBufferResponse, error) {
	if len(b) < 4 {
		return ReceiveBufferResponse{}, fmt.Errorf("%w: truncated ReceiveBufferResponse", ErrProtocol)
	}
	return ReceiveBufferResponse{
		RemainingLength: binary.BigEndian.Uint32(b[:4]),
		Chunk:           append([]byte(nil), b[4:]...),
	}, nil
}

// ChunkBuffer splits data into frames no larger than MaxChunkBytes, for the
// host side of ReceiveBuffer and the device side of SendBuffer.
func ChunkBuffer(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += MaxChunkBytes {
		end := off + MaxChunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// --- Preload page-hash batch --------------------------------

// GetCodePageHashesMessage requests the next batch of code-page hashes
// during preload, reporting the encrypted HMACs the device computed for
// the previous batch.
type GetCodePageHashesMessage struct {
	PagesDeliveredSoFar uint32
	PrevBatchHMACs      [][32]byte // encrypted_hmac_i for the previous batch; empty on the first call
}

func (m GetCodePageHashesMessage) Encode() []byte {
	buf := make([]byte, 4, 4+len(m.PrevBatchHMACs)*32)
	binary.BigEndian.PutUint32(buf, m.PagesDeliveredSoFar)
	for _, h := range m.PrevBatchHMACs {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeGetCodePageHashesMessage(b []byte) (GetCodePageHashesMessage, error) {
	if len(b) < 4 || (len(b)-4)%32 != 0 {
		return GetCodePageHashesMessage{}, fmt.Errorf("%w: malformed GetCodePageHashesMessage", ErrProtocol)
	}
	m := GetCodePageHashesMessage{PagesDeliveredSoFar: binary.BigEndian.Uint32(b[:4])}
	n := (len(b) - 4) / 32
	m.PrevBatchHMACs = make([][32]byte, n)
	for i := 0; i < n; i++ {
		copy(m.PrevBatchHMACs[i][:], b[4+i*32:4+(i+1)*32])
	}
	return m, nil
}

// GetCodePageHashesResponse carries the next batch of code page hashes. A
// batch of zero pages signals end-of-stream.
type GetCodePageHashesResponse struct {
	PageHashes [][32]byte
}

func (r GetCodePageHashesResponse) Encode() []byte {
	buf := make([]byte, 4, 4+len(r.PageHashes)*32)
	binary.BigEndian.PutUint32(buf, uint32(len(r.PageHashes)))
	for _, h := range r.PageHashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeGetCodePageHashesResponse(b []byte) (GetCodePageHashesResponse, error) {
	if len(b) < 4 {
		return GetCodePageHashesResponse{}, fmt.Errorf("%w: truncated GetCodePageHashesResponse", ErrProtocol)
	}
	n := binary.BigEndian.Uint32(b[:4])
	rest := b[4:]
	if uint32(len(rest)) != n*32 {
		return GetCodePageHashesResponse{}, fmt.Errorf("%w: GetCodePageHashesResponse length mismatch", ErrProtocol)
	}
	r := GetCodePageHashesResponse{PageHashes: make([][32]byte, n)}
	for i := uint32(0); i < n; i++ {
		copy(r.PageHashes[i][:], rest[i*32:(i+1)*32])
	}
	return r, nil
}

// PreloadCompleteMessage is the device's final preload exchange, sent once
// the accumulated code-page hashes root-check against manifest.code_merkle_
// root: it discloses ephemeral_sk so the host can unmask the per-page HMACs
// it received over the course of the GetCodePageHashes batches. It is never
// sent if the root check fails, per the "ephemeral_sk is never disclosed" on
// a preload failure.
type PreloadCompleteMessage struct {
	EphemeralSK [32]byte
}

func (m PreloadCompleteMessage) Encode() []byte {
	return append([]byte(nil), m.EphemeralSK[:]...)
}

func DecodePreloadCompleteMessage(b []byte) (PreloadCompleteMessage, error) {
	if len(b) != 32 {
		return PreloadCompleteMessage{}, fmt.Errorf("%w: malformed PreloadCompleteMessage", ErrProtocol)
	}
	var m PreloadCompleteMessage
	copy(m.EphemeralSK[:], b)
	return m, nil
}

// PreloadCompleteResponse acknowledges a PreloadCompleteMessage. It carries
// no payload; its only role is to give the device's final preload exchange
// a well-formed response to decode before it moves on to the first
// instruction fetch.
type PreloadCompleteResponse struct{}

func (PreloadCompleteResponse) Encode() []byte { return nil }

func DecodePreloadCompleteResponse(b []byte) (PreloadCompleteResponse, error) {
	if len(b) != 0 {
		return PreloadCompleteResponse{}, fmt.Errorf("%w: unexpected PreloadCompleteResponse payload", ErrProtocol)
	}
	return PreloadCompleteResponse{}, nil
}
