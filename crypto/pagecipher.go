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
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// PAGE_SIZE is kept in sync with wire.PageSize; duplicated here to avoid a
// dependency cycle (crypto is imported by wire-adjacent packages).
const pageSize = 256

// ErrAuthFailed is returned when GCM tag verification fails on page
// decryption; this is always terminal (VMRuntimeError).
var ErrAuthFailed = errors.New("crypto: page ciphertext authentication failed")

// ErrNonceReused names a nonce repeat under one page key. No function in
// this package returns it: NonceGenerator.Next has no error result and
// never repeats a value, since its counter only moves forward.
var ErrNonceReused = errors.New("crypto: nonce reuse would violate per-key uniqueness")

// PageKey derives the per-run, per-page AES-256-GCM key bound to
// (run_key, section, page_index). The nonce itself
// is carried separately in the GCM call, not folded into the key; binding
// section and page_index into the key prevents a page ciphertext from being
// replayed at a different address even if a nonce were ever reused.
func PageKey(runKey [32]byte, section uint8, pageIndex uint32) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], pageIndex)
	return TaggedHash("VND_PAGE_KEY", runKey[:], []byte{section}, idx[:])
}

// EncryptPage seals plaintext (exactly PAGE_SIZE bytes) under the page key
// and a 12-byte nonce, returning the ciphertext with the GCM tag appended
// (PAGE_SIZE+16 bytes).
func EncryptPage(key [32]byte, nonce [12]byte, plaintext []byte) ([]byte, error) {
	if len(plaintext) != pageSize {
		return nil, errors.New("crypto: page plaintext has wrong length")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce[:], plaintext, nil), nil
}

// DecryptPage opens a page ciphertext produced by EncryptPage. Any GCM tag
// mismatch is reported as ErrAuthFailed.
func DecryptPage(key [32]byte, nonce [12]byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// NonceGenerator produces 12-byte commit nonces as a monotone counter XORed
// with a per-run random mask, guaranteeing uniqueness for the lifetime of
// one generator without needing to remember every nonce issued. The
// counter alone is enough to make every nonce a generator issues distinct,
// so a single generator shared across every page of a section (as
// vm/pagedmem.NewPageStore does, one per section rather than one per page)
// still gives each (section, page_index, commit) triple its own nonce.
type NonceGenerator struct {
	mask    [12]byte
	counter uint64
}

// NewNonceGenerator seeds a generator with an ephemeral random mask.
func NewNonceGenerator(mask [12]byte) *NonceGenerator {
	return &NonceGenerator{mask: mask}
}

// Next returns the next nonce in sequence: be64(counter) XOR mask (counter
// occupies the low 8 bytes, mask covers the full 12).
func (g *NonceGenerator) Next() [12]byte {
	c := atomic.AddUint64(&g.counter, 1) - 1
	var out [12]byte
	copy(out[:], g.mask[:])
	var cb [8]byte
	binary.BigEndian.PutUint64(cb[:], c)
	for i := 0; i < 8; i++ {
		out[4+i] ^= cb[i]
	}
	return out
}

// HashPage computes the SHA-256 digest of a page's plaintext content, used
// for the preload code-page hash stream.
func HashPage(plaintext []byte) [32]byte {
	return sha256.Sum256(plaintext)
}
