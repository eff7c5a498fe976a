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
	"crypto/sha512"
)

// SLIP21Node is a symmetric-key derivation node: a 64-byte HMAC-SHA512
// output split into a 32-byte chain code (left half) and a 32-byte key
// (right half), per SLIP-21.
type SLIP21Node struct {
	ChainCode [32]byte
	Key       [32]byte
}

// MasterSLIP21Node derives m = HMAC-SHA512("Symmetric key seed", seed).
func MasterSLIP21Node(seed []byte) *SLIP21Node {
	mac := hmac.New(sha512.New, []byte("Symmetric key seed"))
	mac.Write(seed)
	return splitSLIP21(mac.Sum(nil))
}

// DeriveChild derives a child node for a label: c = HMAC-SHA512(chain_code,
// 0x00 || label).
func (n *SLIP21Node) DeriveChild(label []byte) *SLIP21Node {
	mac := hmac.New(sha512.New, n.ChainCode[:])
	mac.Write([]byte{0x00})
	mac.Write(label)
	return splitSLIP21(mac.Sum(nil))
}

// DerivePath walks a sequence of labels from this node.
func (n *SLIP21Node) DerivePath(labels [][]byte) *SLIP21Node {
	cur := n
	for _, label := range labels {
		cur = cur.DeriveChild(label)
	}
	return cur
}

func splitSLIP21(m []byte) *SLIP21Node {
	n := &SLIP21Node{}
	copy(n.ChainCode[:], m[:32])
	copy(n.Key[:], m[32:64])
	return n
}
