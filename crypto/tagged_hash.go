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

// Package crypto implements the cryptographic primitives the device and
// host share an opaque trust boundary over: tagged hashing, secp256k1
// ECDSA/Schnorr signatures and point arithmetic, BIP32 HD derivation,
// SLIP-21 subkey derivation, bignum modular arithmetic, and the AES-256-GCM
// page cipher used by the paged-memory protocol.
package crypto

import "crypto/sha256"

// TaggedHash domain-separates SHA-256 by a fixed ASCII tag, following the
// BIP340 convention: SHA256(SHA256(tag) || SHA256(tag) || msg). Used for
// app_auth_key derivation, vanadium_app_id, per-page key derivation, and
// the BIP340 Schnorr tags (spec §4.6).
func TaggedHash(tag string, msg ...[]byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, m := range msg {
		h.Write(m)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
