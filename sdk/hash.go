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

package sdk

import "unsafe"

// HashAlgorithm selects a streaming hash implementation.
type HashAlgorithm uint32

const (
	HashSHA256 HashAlgorithm = iota
	HashSHA512
	HashRIPEMD160
)

// digestSize returns the output width for alg, or 0 for an unrecognized
// algorithm (the device itself is the source of truth for which
// algorithms exist; this only sizes Final's output buffer).
func (alg HashAlgorithm) digestSize() int {
	switch alg {
	case HashSHA256:
		return 32
	case HashSHA512:
		return 64
	case HashRIPEMD160:
		return 20
	default:
		return 0
	}
}

// Hash is a streaming hash context. The device keys its hash state by this
// struct's own address, so a Hash must not be moved or copied between
// Init and Final, and its zero value must not be used without Init.
type Hash struct {
	alg HashAlgorithm
}

func (h *Hash) handle() uint32 {
	return uint32(uintptr(unsafe.Pointer(h)))
}

// Init starts a new streaming hash of the given algorithm.
func (h *Hash) Init(alg HashAlgorithm) bool {
	h.alg = alg
	return trap(codeHashInit, h.handle(), uint32(alg), 0, 0, 0, 0, 0) != 0
}

// Update feeds more data into the hash. May be called any number of times
// between Init and Final.
func (h *Hash) Update(data []byte) {
	trap(codeHashUpdate, h.handle(), ptrOf(data), uint32(len(data)), 0, 0, 0, 0)
}

// Final retires the hash context and returns its digest. The context may
// not be reused afterward; call Init again to start a new one.
func (h *Hash) Final() []byte {
	out := make([]byte, h.alg.digestSize())
	trap(codeHashFinal, h.handle(), ptrOf(out), 0, 0, 0, 0, 0)
	return out
}
