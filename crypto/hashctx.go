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
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"

	"golang.org/x/crypto/ripemd160"
)

// HashAlgorithm identifies a streaming hash algorithm selectable through
// the hash_init/update/final ECALL triplet.
type HashAlgorithm uint8

const (
	HashSHA256 HashAlgorithm = iota
	HashSHA512
	HashRIPEMD160
)

// ErrUnsupportedHash is returned for a hash_init request naming an
// algorithm identifier the device does not implement: a handler-specific
// failure, not an escalation.
var ErrUnsupportedHash = errors.New("crypto: unsupported hash algorithm")

// NewHash constructs a streaming hash.Hash for the given algorithm,
// backing the device's hash_init ECALL.
func NewHash(alg HashAlgorithm) (hash.Hash, error) {
	switch alg {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashRIPEMD160:
		return ripemd160.New(), nil
	default:
		return nil, ErrUnsupportedHash
	}
}

func ripemd160Sum(b []byte) [20]byte {
	h := ripemd160.New()
	h.Write(b)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
