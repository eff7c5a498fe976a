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

// Package host implements the untrusted host client side of the protocol:
// it stores every page of a running V-App in a Merkle accumulator, serves
// page-fetch requests with proofs, receives page-commit updates, marshals
// the guest<->user-application message stream, and streams code page
// hashes during preload.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vanadium-vm/vanadium/host/store"
	"github.com/vanadium-vm/vanadium/internal/vnlog"
	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

// MessageSource supplies the next VAppMessage to feed an xrecv ECALL. It
// blocks until a message is available or ctx is done.
type MessageSource interface {
	NextMessage(ctx context.Context) ([]byte, error)
}

// MessageSink receives the bytes of one completed buffer transfer out of
// the guest: a VAppMessage (xsend), a panic message (fatal), a print line,
// or a wrapped UX page/step description.
type MessageSink interface {
	HandleBuffer(kind wire.BufferType, data []byte) error
}

// UXSource supplies the next UX event (button press, approval, rejection)
// for a get_event ECALL. It blocks until an event occurs or ctx is done.
type UXSource interface {
	NextEvent(ctx context.Context) (code uint32, payload [wire.EventPayloadSize]byte, err error)
}

// Engine is the host's single per-run worker: it owns the mutable state of
// one V-App run (section accumulators, the pending receive-buffer cursor,
// any in-flight proof-continuation stream) behind a single worker task;
// all external callers communicate with it by message passing, realized
// as a mutex-guarded struct invoked synchronously from one exchange loop
// rather than an actual message-passing goroutine, since the device itself
// never issues two outstanding requests at once.
type Engine struct {
	log       vnlog.Logger
	sessionID string
	session   *RunSession
	source    MessageSource
	sink      MessageSink
	ux        UXSource

	mu              sync.Mutex
	pendingProof    []merkle.Proof // remaining GetPage/CommitPage proof batches not yet streamed
	pendingProofTag wire.ClientCommandCode

	recvBuf    []byte // chunks still to deliver for the in-flight ReceiveBuffer
	sendType   wire.BufferType
	sendBuf    []byte // chunks accumulated so far for the in-flight SendBuffer
	sendTotal  uint32
	sendActive bool
}

// NewEngine binds an Engine to one run's sections and its I/O surfaces. It
// mints a random session ID to tag every log line the run produces, so a
// host serving V-Apps back-to-back can still tell one run's log lines from
// the next in a shared log stream.
func NewEngine(log vnlog.Logger, session *RunSession, source MessageSource, sink MessageSink, ux UXSource) *Engine {
	if log == nil {
		log = vnlog.Nop
	}
	id := uuid.NewString()
	return &Engine{log: log.With("session", id), sessionID: id, session: session, source: source, sink: sink, ux: ux}
}

// SessionID returns the run-scoped identifier this Engine mints at
// construction, for callers that need to correlate it with metrics or UI
// state outside the log stream.
func (e *Engine) SessionID() string { return e.sessionID }

// HandlePreloadRequest answers one GetCodePageHashesMessage with the next
// batch of code page hashes, storing the previous batch's encrypted HMAC
// attestations for bookkeeping. preloadBatchSize
// bounds how many hashes are offered per frame.
const preloadBatchSize = 32

func (e *Engine) HandlePreloadRequest(db *store.Store, body []byte) ([]byte, error) {
	msg, err := wire.DecodeGetCodePageHashesMessage(body)
	if err != nil {
		return nil, err
	}
	vappHash := e.session.Manifest.Hash()
	for i, hmac := range msg.PrevBatchHMACs {
		index := msg.PagesDeliveredSoFar - uint32(len(msg.PrevBatchHMACs)) + uint32(i)
		if err := db.PutHMAC(vappHash, index, hmac); err != nil {
			return nil, fmt.Errorf("host: persisting preload HMAC: %w", err)
		}
	}

	start := int(msg.PagesDeliveredSoFar)
	end := start + preloadBatchSize
	if end > len(e.session.CodeHashes) {
		end = len(e.session.CodeHashes)
	}
	var batch [][32]byte
	if start < end {
		batch = e.session.CodeHashes[start:end]
	}
	resp := wire.GetCodePageHashesResponse{PageHashes: batch}
	return resp.Encode(), nil
}

// HandlePreloadComplete answers the device's final preload exchange: once
// the device's accumulated code-page hashes root-check against the
// manifest, it discloses ephemeral_sk so every encrypted_hmac_i persisted by
// HandlePreloadRequest can later be unmasked. Persisting it here, rather
// than discarding it, is what lets the host use its stock of per-page HMACs
// for anything after preload finishes.
func (e *Engine) HandlePreloadComplete(db *store.Store, body []byte) ([]byte, error) {
	msg, err := wire.DecodePreloadCompleteMessage(body)
	if err != nil {
		return nil, err
	}
	vappHash := e.session.Manifest.Hash()
	if err := db.PutEphemeralSK(vappHash, msg.EphemeralSK); err != nil {
		return nil, fmt.Errorf("host: persisting preload ephemeral_sk: %w", err)
	}
	resp := wire.PreloadCompleteResponse{}
	return resp.Encode(), nil
}

// HandleClientCommand dispatches one InterruptedExecution response body by
// its leading ClientCommandCode. ctx governs blocking calls to
// MessageSource/UXSource only; page and buffer bookkeeping is synchronous.
func (e *Engine) HandleClientCommand(ctx context.Context, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty client command", wire.ErrProtocol)
	}
	code := wire.ClientCommandCode(body[0])
	switch code {
	case wire.CmdGetPage:
		return e.handleGetPage(body)
	case wire.CmdGetPageProofContinued:
		return e.handleProofContinued(wire.CmdGetPageProofContinued)
	case wire.CmdCommitPage:
		return e.handleCommitPage(body)
	case wire.CmdCommitPageProofContinued:
		return e.handleProofContinued(wire.CmdCommitPageProofContinued)
	case wire.CmdSendBuffer:
		return e.handleSendBuffer(body)
	case wire.CmdSendBufferContinued:
		return e.handleSendBufferContinued(body)
	case wire.CmdReceiveBuffer:
		return e.handleReceiveBuffer(ctx)
	case wire.CmdGetEvent:
		return e.handleGetEvent(ctx)
	default:
		return nil, fmt.Errorf("%w: unexpected top-level command %v", wire.ErrProtocol, code)
	}
}

func splitProofBatches(proof merkle.Proof) (first [][merkle.HashSize]byte, rest []merkle.Proof) {
	n := len(proof.Siblings)
	if n <= wire.MaxProofHashesPerFrame {
		return proof.Siblings, nil
	}
	first = proof.Siblings[:wire.MaxProofHashesPerFrame]
	remaining := proof.Siblings[wire.MaxProofHashesPerFrame:]
	for len(remaining) > 0 {
		end := wire.MaxProofHashesPerFrame
		if end > len(remaining) {
			end = len(remaining)
		}
		rest = append(rest, merkle.Proof{Siblings: append([][merkle.HashSize]byte(nil), remaining[:end]...)})
		remaining = remaining[end:]
	}
	return first, rest
}

func (e *Engine) handleGetPage(body []byte) ([]byte, error) {
	msg, err := wire.DecodeGetPageMessage(body)
	if err != nil {
		return nil, err
	}
	section := e.session.Section(msg.Section)
	if section == nil {
		return nil, fmt.Errorf("%w: unknown section %v", wire.ErrProtocol, msg.Section)
	}
	leaf, proof, err := section.Fetch(msg.PageIndex)
	if err != nil {
		return nil, err
	}
	isEncrypted, nonce, content := splitLeaf(leaf)
	first, rest := splitProofBatches(proof)

	e.mu.Lock()
	e.pendingProof = rest
	e.pendingProofTag = wire.CmdGetPageProofContinued
	e.mu.Unlock()

	resp := wire.GetPageResponse{
		Ciphertext:  content,
		IsEncrypted: isEncrypted,
		Nonce:       nonce,
		NProof:      uint32(len(proof.Siblings)),
		Proof:       first,
	}
	return resp.Encode(), nil
}

func (e *Engine) handleCommitPage(body []byte) ([]byte, error) {
	msg, err := wire.DecodeCommitPageMessage(body)
	if err != nil {
		return nil, err
	}
	section := e.session.Section(msg.Section)
	if section == nil {
		return nil, fmt.Errorf("%w: unknown section %v", wire.ErrProtocol, msg.Section)
	}
	var nonce [wire.NonceSize]byte
	copy(nonce[:], msg.Nonce[:])
	newLeaf := serializeLeaf(msg.IsEncrypted, nonce, msg.Data)
	up, newRoot, err := section.Commit(msg.PageIndex, newLeaf)
	if err != nil {
		return nil, err
	}
	first, rest := splitProofBatches(up.Proof)

	e.mu.Lock()
	e.pendingProof = rest
	e.pendingProofTag = wire.CmdCommitPageProofContinued
	e.mu.Unlock()

	resp := wire.CommitPageProofResponse{
		NewRoot: newRoot,
		NProof:  uint32(len(up.Proof.Siblings)),
		Proof:   first,
	}
	return resp.Encode(), nil
}

func (e *Engine) handleProofContinued(want wire.ClientCommandCode) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingProofTag != want || len(e.pendingProof) == 0 {
		return nil, fmt.Errorf("%w: no pending %v stream", wire.ErrProtocol, want)
	}
	next := e.pendingProof[0]
	e.pendingProof = e.pendingProof[1:]
	resp := wire.ProofContinuedResponse{Hashes: next.Siblings}
	return resp.Encode(want), nil
}

func (e *Engine) handleSendBuffer(body []byte) ([]byte, error) {
	msg, err := wire.DecodeSendBufferMessage(body)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.sendActive = true
	e.sendType = msg.Type
	e.sendTotal = msg.TotalLength
	e.sendBuf = append([]byte(nil), msg.Chunk...)
	e.mu.Unlock()
	return e.drainSendBufferIfComplete()
}

func (e *Engine) handleSendBufferContinued(body []byte) ([]byte, error) {
	msg, err := wire.DecodeSendBufferContinuedMessage(body)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if !e.sendActive {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: SendBufferContinued with no SendBuffer in flight", wire.ErrProtocol)
	}
	e.sendBuf = append(e.sendBuf, msg.Chunk...)
	e.mu.Unlock()
	return e.drainSendBufferIfComplete()
}

func (e *Engine) drainSendBufferIfComplete() ([]byte, error) {
	e.mu.Lock()
	done := uint32(len(e.sendBuf)) >= e.sendTotal
	var kind wire.BufferType
	var data []byte
	if done {
		kind, data = e.sendType, e.sendBuf
		e.sendActive, e.sendBuf, e.sendTotal = false, nil, 0
	}
	e.mu.Unlock()
	if done && e.sink != nil {
		if err := e.sink.HandleBuffer(kind, data); err != nil {
			return nil, err
		}
	}
	return wire.SendBufferAck{}.Encode(), nil
}

func (e *Engine) handleReceiveBuffer(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	pending := e.recvBuf
	e.mu.Unlock()

	if pending == nil {
		if e.source == nil {
			return nil, fmt.Errorf("host: no MessageSource configured for ReceiveBuffer")
		}
		msg, err := e.source.NextMessage(ctx)
		if err != nil {
			return nil, err
		}
		chunks := wire.ChunkBuffer(msg)
		e.mu.Lock()
		e.recvBuf = flattenChunks(chunks)
		pending = e.recvBuf
		e.mu.Unlock()
	}

	chunkLen := len(pending)
	if chunkLen > wire.MaxChunkBytes {
		chunkLen = wire.MaxChunkBytes
	}
	chunk := pending[:chunkLen]
	remaining := pending[chunkLen:]

	e.mu.Lock()
	if len(remaining) == 0 {
		e.recvBuf = nil
	} else {
		e.recvBuf = remaining
	}
	e.mu.Unlock()

	resp := wire.ReceiveBufferResponse{RemainingLength: uint32(len(remaining)), Chunk: chunk}
	return resp.Encode(), nil
}

func flattenChunks(chunks [][]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func (e *Engine) handleGetEvent(ctx context.Context) ([]byte, error) {
	if e.ux == nil {
		return nil, fmt.Errorf("host: no UXSource configured for GetEvent")
	}
	code, payload, err := e.ux.NextEvent(ctx)
	if err != nil {
		return nil, err
	}
	resp := wire.GetEventResponse{Code: code, Payload: payload}
	return resp.Encode(), nil
}

// splitLeaf decomposes a serialized leaf (is_encrypted‖nonce‖content) into
// its wire fields, mirroring vm/pagedmem's leafBytes in reverse.
func splitLeaf(leaf []byte) (isEncrypted bool, nonce [wire.NonceSize]byte, content []byte) {
	isEncrypted = leaf[0] != 0
	copy(nonce[:], leaf[1:1+wire.NonceSize])
	content = append([]byte(nil), leaf[1+wire.NonceSize:]...)
	return isEncrypted, nonce, content
}

// serializeLeaf is the inverse of splitLeaf, used to record a commit's new
// leaf content in the same wire-serialized form the accumulator stores.
func serializeLeaf(isEncrypted bool, nonce [wire.NonceSize]byte, content []byte) []byte {
	buf := make([]byte, 0, 1+wire.NonceSize+len(content))
	if isEncrypted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, nonce[:]...)
	buf = append(buf, content...)
	return buf
}
