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
	"errors"
	"fmt"
)

// ClientCommandCode is the first byte of an InterruptedExecution response
// body.
type ClientCommandCode byte

const (
	CmdGetPage                   ClientCommandCode = iota // top-level
	CmdCommitPage                                         // top-level
	CmdSendBuffer                                         // top-level
	CmdReceiveBuffer                                      // top-level
	CmdGetEvent                                           // top-level
	CmdSendBufferContinued                                // continuation only
	CmdGetPageProofContinued                              // continuation only
	CmdCommitPageProofContinued                           // continuation only
)

// ErrProtocol is returned for any malformed or out-of-sequence wire
// exchange; it is always terminal (VMRuntimeError).
var ErrProtocol = errors.New("wire: protocol error")

// IsContinuationOnly reports whether a code is legal only as the second (or
// later) frame of a multi-frame exchange; encountering it as a top-level
// interrupt is a protocol error.
func (c ClientCommandCode) IsContinuationOnly() bool {
	switch c {
	case CmdSendBufferContinued, CmdGetPageProofContinued, CmdCommitPageProofContinued:
		return true
	default:
		return false
	}
}

func (c ClientCommandCode) String() string {
	switch c {
	case CmdGetPage:
		return "GetPage"
	case CmdCommitPage:
		return "CommitPage"
	case CmdSendBuffer:
		return "SendBuffer"
	case CmdReceiveBuffer:
		return "ReceiveBuffer"
	case CmdGetEvent:
		return "GetEvent"
	case CmdSendBufferContinued:
		return "SendBufferContinued"
	case CmdGetPageProofContinued:
		return "GetPageProofContinued"
	case CmdCommitPageProofContinued:
		return "CommitPageProofContinued"
	default:
		return fmt.Sprintf("ClientCommand(%d)", byte(c))
	}
}

// SectionKind mirrors manifest.Section's wire encoding (Code=0, Data=1,
// Stack=2).
type SectionKind uint8

const (
	SectionCode SectionKind = iota
	SectionData
	SectionStack
)

// GetPageMessage is sent by the device when a section access misses the
// cache.
type GetPageMessage struct {
	Section   SectionKind
	PageIndex uint32
}

func (m GetPageMessage) Encode() []byte {
	buf := make([]byte, 6)
	buf[0] = byte(CmdGetPage)
	buf[1] = byte(m.Section)
	binary.BigEndian.PutUint32(buf[2:], m.PageIndex)
	return buf
}

func DecodeGetPageMessage(b []byte) (GetPageMessage, error) {
	if len(b) != 6 || ClientCommandCode(b[0]) != CmdGetPage {
		return GetPageMessage{}, fmt.Errorf("%w: malformed GetPageMessage", ErrProtocol)
	}
	return GetPageMessage{Section: SectionKind(b[1]), PageIndex: binary.BigEndian.Uint32(b[2:])}, nil
}

// pageContentSize returns the wire length of a page's content field:
// PageSize for a plaintext (Code) page, PageSize+GCMTagSize for an
// encrypted (Data/Stack) page carrying an appended GCM tag.
func pageContentSize(isEncrypted bool) int {
	if isEncrypted {
		return PageSize + GCMTagSize
	}
	return PageSize
}

// GetPageResponse is the host's reply to a GetPageMessage.
// Proof holds the first t sibling hashes that fit in this frame; if
// t < NProof the device must continue with GetPageProofContinued. Ciphertext
// holds PageSize bytes for a plaintext Code page or PageSize+GCMTagSize
// bytes (content plus GCM tag) for an encrypted Data/Stack page.
type GetPageResponse struct {
	Ciphertext  []byte
	IsEncrypted bool
	Nonce       [NonceSize]byte
	NProof      uint32
	Proof       [][HashSize]byte // length == min(NProof, MaxProofHashesPerFrame)
}

func (r GetPageResponse) Encode() []byte {
	buf := make([]byte, 0, 1+NonceSize+len(r.Ciphertext)+4+len(r.Proof)*HashSize)
	if r.IsEncrypted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, r.Nonce[:]...)
	buf = append(buf, r.Ciphertext...)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], r.NProof)
	buf = append(buf, tmp[:]...)
	for _, h := range r.Proof {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeGetPageResponse(b []byte) (GetPageResponse, error) {
	if len(b) < 1+NonceSize {
		return GetPageResponse{}, fmt.Errorf("%w: truncated GetPageResponse", ErrProtocol)
	}
	var r GetPageResponse
	r.IsEncrypted = b[0] != 0
	copy(r.Nonce[:], b[1:1+NonceSize])
	contentSize := pageContentSize(r.IsEncrypted)
	head := 1 + NonceSize + contentSize + 4
	if len(b) < head {
		return GetPageResponse{}, fmt.Errorf("%w: truncated GetPageResponse", ErrProtocol)
	}
	r.Ciphertext = append([]byte(nil), b[1+NonceSize:1+NonceSize+contentSize]...)
	r.NProof = binary.BigEndian.Uint32(b[1+NonceSize+contentSize : head])
	rest := b[head:]
	if len(rest)%HashSize != 0 {
		return GetPageResponse{}, fmt.Errorf("%w: malformed proof hashes", ErrProtocol)
	}
	t := len(rest) / HashSize
	if uint32(t) > r.NProof {
		return GetPageResponse{}, fmt.Errorf("%w: frame carries more hashes than declared", ErrProtocol)
	}
	r.Proof = make([][HashSize]byte, t)
	for i := 0; i < t; i++ {
		copy(r.Proof[i][:], rest[i*HashSize:(i+1)*HashSize])
	}
	return r, nil
}

// ProofContinuedRequest is the device's request for the next batch of
// proof hashes, used for both GetPageProofContinued and
// CommitPageProofContinued. It carries no body beyond
// the tag; the host replies with a ProofContinuedResponse.
type ProofContinuedRequest struct {
	Tag ClientCommandCode // CmdGetPageProofContinued or CmdCommitPageProofContinued
}

func (m ProofContinuedRequest) Encode() []byte { return []byte{byte(m.Tag)} }

// ProofContinuedResponse is a raw batch of sibling hashes streamed in a
// continuation frame (used by both GetPageProofContinued and
// CommitPageProofContinued, per SPEC_FULL.md §6's canonical formula).
type ProofContinuedResponse struct {
	Hashes [][HashSize]byte
}

func (r ProofContinuedResponse) Encode(tag ClientCommandCode) []byte {
	buf := make([]byte, 1, 1+len(r.Hashes)*HashSize)
	buf[0] = byte(tag)
	for _, h := range r.Hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeProofContinuedResponse(b []byte, want ClientCommandCode) (ProofContinuedResponse, error) {
	if len(b) < 1 || ClientCommandCode(b[0]) != want {
		return ProofContinuedResponse{}, fmt.Errorf("%w: expected %s frame", ErrProtocol, want)
	}
	rest := b[1:]
	if len(rest)%HashSize != 0 {
		return ProofContinuedResponse{}, fmt.Errorf("%w: malformed proof continuation", ErrProtocol)
	}
	n := len(rest) / HashSize
	out := make([][HashSize]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], rest[i*HashSize:(i+1)*HashSize])
	}
	return ProofContinuedResponse{Hashes: out}, nil
}

// CommitPageMessage is sent by the device to write back a Data/Stack page.
// Committing a Code page is a protocol error and is rejected by the
// handler, not representable here. Data is always PageSize+GCMTagSize
// bytes since IsEncrypted is always true for a commit.
type CommitPageMessage struct {
	Section     SectionKind
	PageIndex   uint32
	IsEncrypted bool // always true for Data/Stack
	Nonce       [NonceSize]byte
	Data        []byte
}

func (m CommitPageMessage) Encode() []byte {
	buf := make([]byte, 0, 1+1+4+1+NonceSize+len(m.Data))
	buf = append(buf, byte(CmdCommitPage), byte(m.Section))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], m.PageIndex)
	buf = append(buf, idx[:]...)
	if m.IsEncrypted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, m.Nonce[:]...)
	buf = append(buf, m.Data...)
	return buf
}

func DecodeCommitPageMessage(b []byte) (CommitPageMessage, error) {
	const head = 1 + 1 + 4 + 1 + NonceSize
	if len(b) < head || ClientCommandCode(b[0]) != CmdCommitPage {
		return CommitPageMessage{}, fmt.Errorf("%w: malformed CommitPageMessage", ErrProtocol)
	}
	var m CommitPageMessage
	m.Section = SectionKind(b[1])
	m.PageIndex = binary.BigEndian.Uint32(b[2:6])
	m.IsEncrypted = b[6] != 0
	copy(m.Nonce[:], b[7:7+NonceSize])
	want := head + pageContentSize(m.IsEncrypted)
	if len(b) != want {
		return CommitPageMessage{}, fmt.Errorf("%w: malformed CommitPageMessage length", ErrProtocol)
	}
	m.Data = append([]byte(nil), b[head:]...)
	return m, nil
}

// CommitPageProofResponse is the host's reply to a CommitPageMessage (spec
// §4.2 "Page commit"): the new root plus however many proof hashes fit in
// this frame.
type CommitPageProofResponse struct {
	NewRoot [HashSize]byte
	NProof  uint32
	Proof   [][HashSize]byte
}

func (r CommitPageProofResponse) Encode() []byte {
	buf := make([]byte, 0, HashSize+4+len(r.Proof)*HashSize)
	buf = append(buf, r.NewRoot[:]...)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], r.NProof)
	buf = append(buf, tmp[:]...)
	for _, h := range r.Proof {
		buf = append(buf, h[:]...)
	}
	return buf
}

func DecodeCommitPageProofResponse(b []byte) (CommitPageProofResponse, error) {
	const head = HashSize + 4
	if len(b) < head {
		return CommitPageProofResponse{}, fmt.Errorf("%w: truncated CommitPageProofResponse", ErrProtocol)
	}
	var r CommitPageProofResponse
	copy(r.NewRoot[:], b[:HashSize])
	r.NProof = binary.BigEndian.Uint32(b[HashSize:head])
	rest := b[head:]
	if len(rest)%HashSize != 0 {
		return CommitPageProofResponse{}, fmt.Errorf("%w: malformed proof hashes", ErrProtocol)
	}
	t := len(rest) / HashSize
	r.Proof = make([][HashSize]byte, t)
	for i := 0; i < t; i++ {
		copy(r.Proof[i][:], rest[i*HashSize:(i+1)*HashSize])
	}
	return r, nil
}
