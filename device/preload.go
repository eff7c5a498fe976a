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
	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

// Exchanger is the device's round-trip to the host, used by Preload before
// the general InterruptedExecution/ClientCommand loop exists (a run has not
// started yet, so there is no vm.CPU to suspend). It has the same shape as
// vm/pagedmem.Exchanger and ecall.Exchanger so callers can share a single
// transport implementation across every phase of a run.
type Exchanger interface {
	Exchange(request []byte) (response []byte, err error)
}

// PreloadResult is what a successful preload hands back to the caller
// that is about to start the run.
type PreloadResult struct {
	EphemeralSK [32]byte
}

// Preload runs the six-step code-page binding handshake: it
// draws a fresh ephemeral_sk, derives app_auth_key from the device's
// permanent auth_key and the V-App's manifest hash, streams the code page
// hashes from the host in batches — returning the masked per-page HMAC for
// the previous batch on each request — and accumulates the hashes into a
// Merkle root that must match manifest.CodeMerkleRoot exactly.
//
// The host never learns ephemeral_sk until step 6, and never learns a raw
// page HMAC: each is XORed with a mask only the device can regenerate from
// ephemeral_sk, so the host can later present a page and have the device
// recompute (and check) the same masked HMAC without the device having
// retained anything beyond ephemeral_sk for the run.
func Preload(exch Exchanger, m *manifest.Manifest, authKey [32]byte) (PreloadResult, error) {
	vappHash := m.Hash()
	appAuthKey := crypto.AppAuthKey(authKey, vappHash)

	skBytes, err := crypto.RandomBytes(32)
	if err != nil {
		return PreloadResult{}, err
	}
	var ephemeralSK [32]byte
	copy(ephemeralSK[:], skBytes)

	wantPages := uint32(manifest.PageCount(m.CodeStart, m.CodeEnd, wire.PageSize))

	var leaves [][]byte
	var prevHMACs [][32]byte
	delivered := uint32(0)
	for {
		req := wire.GetCodePageHashesMessage{
			PagesDeliveredSoFar: delivered,
			PrevBatchHMACs:      prevHMACs,
		}
		respBytes, err := exch.Exchange(req.Encode())
		if err != nil {
			return PreloadResult{}, err
		}
		resp, err := wire.DecodeGetCodePageHashesResponse(respBytes)
		if err != nil {
			return PreloadResult{}, &StatusError{Status: wire.StatusVMRuntimeError, Message: err.Error()}
		}
		if len(resp.PageHashes) == 0 {
			break
		}

		prevHMACs = make([][32]byte, len(resp.PageHashes))
		for i, pageHash := range resp.PageHashes {
			idx := delivered + uint32(i)
			h := crypto.PageHMAC(appAuthKey, vappHash, idx, pageHash)
			mask := crypto.HMACMask(ephemeralSK, idx)
			prevHMACs[i] = crypto.XOR32(h, mask)
			leaves = append(leaves, append([]byte(nil), pageHash[:]...))
		}
		delivered += uint32(len(resp.PageHashes))

		if delivered > wantPages {
			return PreloadResult{}, &StatusError{
				Status:  wire.StatusIncorrectData,
				Message: "host streamed more code pages than the manifest declares",
			}
		}
	}

	if delivered != wantPages {
		return PreloadResult{}, &StatusError{
			Status:  wire.StatusIncorrectData,
			Message: "host streamed fewer code pages than the manifest declares",
		}
	}

	acc, err := merkle.New(leaves)
	if err != nil {
		return PreloadResult{}, &StatusError{Status: wire.StatusIncorrectData, Message: err.Error()}
	}
	if acc.Root() != m.CodeMerkleRoot {
		return PreloadResult{}, &StatusError{
			Status:  wire.StatusIncorrectData,
			Message: "preload Merkle root does not match manifest.code_merkle_root",
		}
	}

	// Step 6: the root checked out, so disclose ephemeral_sk to the host.
	// Never reached on a failed root check above, so a host that never sees
	// this exchange can never unmask the HMACs it was given.
	complete := wire.PreloadCompleteMessage{EphemeralSK: ephemeralSK}
	completeResp, err := exch.Exchange(complete.Encode())
	if err != nil {
		return PreloadResult{}, err
	}
	if _, err := wire.DecodePreloadCompleteResponse(completeResp); err != nil {
		return PreloadResult{}, &StatusError{Status: wire.StatusVMRuntimeError, Message: err.Error()}
	}

	return PreloadResult{EphemeralSK: ephemeralSK}, nil
}
