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

// Package pagedmem materializes a vm.Segment on top of a host-backed
// Merkle-authenticated page store: a small resident cache in
// front of the GetPage/CommitPage round trips, authenticating every fetched
// page against the section root before exposing a single byte of it, and
// encrypting/committing every writeback under the per-run page cipher.
package pagedmem

import (
	"errors"
	"fmt"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/internal/metrics"
	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

// ErrReadOnlyCommit is returned if CommitPage is called against a Code
// section: commits to Code are always a protocol error.
var ErrReadOnlyCommit = errors.New("pagedmem: cannot commit a read-only section")

// ErrAuthenticationFailed covers every verification failure in the fetch or
// commit path: bad inclusion proof, bad update proof, or ciphertext
// authentication failure.
var ErrAuthenticationFailed = errors.New("pagedmem: page authentication failed")

// Exchanger carries one request/response round trip of the wire protocol:
// the caller hands it an encoded ClientCommand request frame and blocks
// until the corresponding response frame arrives. The device package
// implements this over a channel rendezvous with the host-facing goroutine,
// giving the single-threaded cooperative suspension model without manual
// continuation-passing.
type Exchanger interface {
	Exchange(request []byte) (response []byte, err error)
}

// PageStore performs the GetPage/CommitPage wire exchanges for one memory
// section and authenticates every response against the section's current
// Merkle root. It holds no page content itself; Cache is the
// layer that keeps pages resident.
type PageStore struct {
	section           wire.SectionKind
	encrypted         bool // false for Code (plaintext on the wire), true for Data/Stack
	adjustedLeafCount int  // n, the power-of-two-padded leaf count used by merkle.VerifyInclusion
	exch              Exchanger
	runKey            [32]byte
	nonceGen          *crypto.NonceGenerator
	metrics           *metrics.Counters

	root [merkle.HashSize]byte
}

// NewPageStore constructs a PageStore bound to a section's initial root.
// encrypted must be false for Code and true for Data/Stack.
func NewPageStore(section wire.SectionKind, encrypted bool, adjustedLeafCount int, root [merkle.HashSize]byte, runKey [32]byte, nonceMask [12]byte, exch Exchanger, m *metrics.Counters) *PageStore {
	return &PageStore{
		section:           section,
		encrypted:         encrypted,
		adjustedLeafCount: adjustedLeafCount,
		exch:              exch,
		runKey:            runKey,
		nonceGen:          crypto.NewNonceGenerator(nonceMask),
		metrics:           m,
		root:              root,
	}
}

// Root returns the PageStore's current view of the section's Merkle root.
func (ps *PageStore) Root() [merkle.HashSize]byte { return ps.root }

// leafBytes reconstructs the accumulator leaf content for a page from its
// wire fields: is_encrypted ‖ nonce ‖ content.
func leafBytes(isEncrypted bool, nonce [wire.NonceSize]byte, content []byte) []byte {
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

// FetchedPage is the result of a successful FetchPage call: the decrypted
// plaintext plus the exact serialized leaf bytes that were authenticated
// against the root, which the caller must hold onto and hand back to
// CommitPage as oldLeaf so a later writeback's update proof can be checked
// against the correct pre-image.
type FetchedPage struct {
	Plaintext [wire.PageSize]byte
	Leaf      []byte
}

// FetchPage performs the full GetPage protocol:
// request the page, stream any proof continuation frames, authenticate the
// serialized leaf against the current root, and decrypt if the section is
// encrypted. It counts one page-fault round trip on success.
func (ps *PageStore) FetchPage(index uint32) (FetchedPage, error) {
	req := wire.GetPageMessage{Section: ps.section, PageIndex: index}
	respBytes, err := ps.exch.Exchange(req.Encode())
	if err != nil {
		return FetchedPage{}, fmt.Errorf("pagedmem: GetPage exchange: %w", err)
	}
	resp, err := wire.DecodeGetPageResponse(respBytes)
	if err != nil {
		return FetchedPage{}, err
	}

	proof := merkle.Proof{Siblings: append([][merkle.HashSize]byte(nil), resp.Proof...)}
	for uint32(len(proof.Siblings)) < resp.NProof {
		contReq := wire.ProofContinuedRequest{Tag: wire.CmdGetPageProofContinued}
		contBytes, err := ps.exch.Exchange(contReq.Encode())
		if err != nil {
			return FetchedPage{}, fmt.Errorf("pagedmem: GetPageProofContinued exchange: %w", err)
		}
		cont, err := wire.DecodeProofContinuedResponse(contBytes, wire.CmdGetPageProofContinued)
		if err != nil {
			return FetchedPage{}, err
		}
		if len(cont.Hashes) == 0 {
			return FetchedPage{}, fmt.Errorf("%w: empty GetPageProofContinued frame before proof complete", wire.ErrProtocol)
		}
		proof.Siblings = append(proof.Siblings, cont.Hashes...)
	}
	if uint32(len(proof.Siblings)) != resp.NProof {
		return FetchedPage{}, fmt.Errorf("%w: streamed proof length mismatch", wire.ErrProtocol)
	}

	leaf := leafBytes(resp.IsEncrypted, resp.Nonce, resp.Ciphertext)
	if !merkle.VerifyInclusion(ps.root, proof, leaf, int(index), ps.adjustedLeafCount) {
		return FetchedPage{}, fmt.Errorf("%w: inclusion proof rejected for page %d", ErrAuthenticationFailed, index)
	}

	var plaintext []byte
	if resp.IsEncrypted {
		key := crypto.PageKey(ps.runKey, uint8(ps.section), index)
		pt, err := crypto.DecryptPage(key, resp.Nonce, resp.Ciphertext)
		if err != nil {
			return FetchedPage{}, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		plaintext = pt
	} else {
		plaintext = resp.Ciphertext
	}
	if len(plaintext) != wire.PageSize {
		return FetchedPage{}, fmt.Errorf("%w: decrypted page has wrong length", ErrAuthenticationFailed)
	}
	if ps.metrics != nil {
		ps.metrics.PageFaultRoundTrip()
	}
	var out FetchedPage
	copy(out.Plaintext[:], plaintext)
	out.Leaf = leaf
	return out, nil
}

// CommitPage performs the full CommitPage protocol: pick a fresh nonce, encrypt, send the commit, stream any proof
// continuation frames, verify the update proof against (old root, new
// root) using oldLeaf (the leaf last authenticated for this index, from
// FetchPage or a prior CommitPage), and atomically swap the root on
// success. It returns the new serialized leaf so the caller can track it
// for a subsequent commit of the same page.
func (ps *PageStore) CommitPage(index uint32, plaintext [wire.PageSize]byte, oldLeaf []byte) ([]byte, error) {
	if !ps.encrypted {
		return nil, fmt.Errorf("%w: section %v", ErrReadOnlyCommit, ps.section)
	}

	nonce := ps.nonceGen.Next()
	key := crypto.PageKey(ps.runKey, uint8(ps.section), index)
	ciphertext, err := crypto.EncryptPage(key, nonce, plaintext[:])
	if err != nil {
		return nil, fmt.Errorf("pagedmem: encrypt page %d: %w", index, err)
	}

	msg := wire.CommitPageMessage{
		Section:     ps.section,
		PageIndex:   index,
		IsEncrypted: true,
		Nonce:       nonce,
		Data:        ciphertext,
	}
	respBytes, err := ps.exch.Exchange(msg.Encode())
	if err != nil {
		return nil, fmt.Errorf("pagedmem: CommitPage exchange: %w", err)
	}
	resp, err := wire.DecodeCommitPageProofResponse(respBytes)
	if err != nil {
		return nil, err
	}

	proof := merkle.Proof{Siblings: append([][merkle.HashSize]byte(nil), resp.Proof...)}
	for uint32(len(proof.Siblings)) < resp.NProof {
		contReq := wire.ProofContinuedRequest{Tag: wire.CmdCommitPageProofContinued}
		contBytes, err := ps.exch.Exchange(contReq.Encode())
		if err != nil {
			return nil, fmt.Errorf("pagedmem: CommitPageProofContinued exchange: %w", err)
		}
		cont, err := wire.DecodeProofContinuedResponse(contBytes, wire.CmdCommitPageProofContinued)
		if err != nil {
			return nil, err
		}
		if len(cont.Hashes) == 0 {
			return nil, fmt.Errorf("%w: empty CommitPageProofContinued frame before proof complete", wire.ErrProtocol)
		}
		proof.Siblings = append(proof.Siblings, cont.Hashes...)
	}
	if uint32(len(proof.Siblings)) != resp.NProof {
		return nil, fmt.Errorf("%w: streamed update proof length mismatch", wire.ErrProtocol)
	}

	newLeaf := leafBytes(true, nonce, ciphertext)
	up := merkle.UpdateProof{Proof: proof, OldRoot: ps.root}
	if !merkle.VerifyUpdate(resp.NewRoot, up, oldLeaf, newLeaf, int(index), ps.adjustedLeafCount) {
		return nil, fmt.Errorf("%w: update proof rejected for page %d", ErrAuthenticationFailed, index)
	}

	ps.root = resp.NewRoot
	if ps.metrics != nil {
		ps.metrics.PageFaultRoundTrip()
	}
	return newLeaf, nil
}
