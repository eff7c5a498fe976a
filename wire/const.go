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

// Package wire implements the APDU-shaped host<->device protocol: command
// framing, status words, the ClientCommand tagged union used for
// InterruptedExecution responses, and the chunked buffer transport that
// carries xsend/xrecv/print/fatal payloads.
package wire

// PageSize is the fixed size of a page, the atomic unit of host-backed
// storage.
const PageSize = 256

// NonceSize is the AES-256-GCM nonce length used for mutable pages.
const NonceSize = 12

// HashSize is a SHA-256 digest size, used for Merkle roots/proof hashes.
const HashSize = 32

// GCMTagSize is the AES-256-GCM authentication tag length appended to every
// encrypted page's ciphertext. Plaintext (Code) leaves carry PageSize bytes
// of content; encrypted (Data/Stack) leaves carry PageSize+GCMTagSize, since
// the fixed page unit describes the plaintext, not the GCM-sealed wire form.
const GCMTagSize = 16

// SerializedPageSize is the accumulator leaf size for a read-only,
// unencrypted page: 1 (is_encrypted) + NonceSize + PageSize.
// Encrypted leaves (Data/Stack) are SerializedPageSize+GCMTagSize bytes.
const SerializedPageSize = 1 + NonceSize + PageSize

// MaxChunkBytes is the canonical chunk-size bound for buffer-transport
// frames (ReceiveBuffer/SendBuffer and their *Continued frames). Fixed here
// per SPEC_FULL.md §6 (Open Question resolution): an APDU response field
// caps at 255 bytes, and a ReceiveBufferResponse frame spends 4 of them on
// its big-endian remaining_length field, leaving 251 usable payload bytes.
const MaxChunkBytes = 251

// MaxProofHashesPerFrame is the canonical number of 32-byte sibling hashes
// that fit in one GetPageProofContinued / CommitPageProofContinued frame:
// MaxChunkBytes / HashSize, truncated. Both proof-continuation paths use
// this single formula (SPEC_FULL.md §6).
const MaxProofHashesPerFrame = MaxChunkBytes / HashSize

// MaxRegisteredVApps is the fixed NVRAM registry capacity.
const MaxRegisteredVApps = 32

// MaxBigNumberSize bounds a single bignum ECALL operand, in bytes.
const MaxBigNumberSize = 64
