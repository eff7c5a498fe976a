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

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// AppAuthKey derives the per-V-App authentication key from the device's
// permanent auth_key and the V-App's manifest hash.
func AppAuthKey(authKey [32]byte, vappHash [32]byte) [32]byte {
	return TaggedHash("VND_APP_AUTH_KEY", authKey[:], vappHash[:])
}

// PageHMAC computes hmac_i = HMAC-SHA256(app_auth_key; "VND_PAGE_TAG" ||
// vapp_hash || be32(i) || page_hash_i), the per-page authentication tag
// streamed during preload.
func PageHMAC(appAuthKey [32]byte, vappHash [32]byte, index uint32, pageHash [32]byte) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	mac := hmac.New(sha256.New, appAuthKey[:])
	mac.Write([]byte("VND_PAGE_TAG"))
	mac.Write(vappHash[:])
	mac.Write(idx[:])
	mac.Write(pageHash[:])
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// HMACMask computes mask_i = SHA256("VND_HMAC_MASK" || ephemeral_sk ||
// be32(i)), the per-run secret that hides hmac_i from the host.
func HMACMask(ephemeralSK [32]byte, index uint32) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	h := sha256.New()
	h.Write([]byte("VND_HMAC_MASK"))
	h.Write(ephemeralSK[:])
	h.Write(idx[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// XOR32 XORs two 32-byte values, used to mask/unmask a page HMAC with its
// per-run mask.
func XOR32(a, b [32]byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// VanadiumAppID is the derived public identifier exposed via GetAppInfo
//: TaggedHash("VND_APP_ID", ε).
func VanadiumAppID() [32]byte {
	return TaggedHash("VND_APP_ID")
}
