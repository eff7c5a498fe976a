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
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// HDNode is a BIP32 extended key: a secp256k1 scalar plus chain code. The
// pinned btcd release (v0.20.1-beta) does not vendor hdkeychain's
// derivation helpers, so HD derivation is implemented directly against
// hmac/sha512 here, the same way this module's teacher derives keys
// manually from curve primitives rather than a higher-level wrapper.
type HDNode struct {
	Key       *btcec.PrivateKey
	ChainCode [32]byte
}

// ErrHardenedFromPublic reports that a hardened child index was requested
// from a node without a private key (not reachable from this module, which
// never derives from a public-only node, but kept for completeness of the
// BIP32 contract).
var ErrHardenedFromPublic = errors.New("crypto: cannot derive hardened child without private key")

const hardenedOffset = uint32(1) << 31

// MasterHDNode derives the BIP32 master node from a seed: I =
// HMAC-SHA512("Bitcoin seed", seed); IL is the master key, IR the chain
// code.
func MasterHDNode(seed []byte) (*HDNode, error) {
	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	mac.Write(seed)
	i := mac.Sum(nil)
	priv, err := PrivateKeyFromBytes(i[:32])
	if err != nil {
		return nil, err
	}
	var cc [32]byte
	copy(cc[:], i[32:])
	return &HDNode{Key: priv, ChainCode: cc}, nil
}

// DeriveChild derives one BIP32 child. index >= 0x80000000 selects a
// hardened child.
func (n *HDNode) DeriveChild(index uint32) (*HDNode, error) {
	var data []byte
	if index >= hardenedOffset {
		data = append(data, 0x00)
		data = append(data, bePad32(n.Key.D)...)
	} else {
		data = n.Key.PubKey().SerializeCompressed()
	}
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	data = append(data, idx[:]...)

	mac := hmac.New(sha512.New, n.ChainCode[:])
	mac.Write(data)
	i := mac.Sum(nil)

	il := new(big.Int).SetBytes(i[:32])
	curveOrder := S256().N
	if il.Cmp(curveOrder) >= 0 {
		return nil, errors.New("crypto: derived IL out of range, caller must try next index")
	}
	childD := new(big.Int).Add(il, n.Key.D)
	childD.Mod(childD, curveOrder)
	if childD.Sign() == 0 {
		return nil, errors.New("crypto: derived child key is zero, caller must try next index")
	}

	childPriv, _ := btcec.PrivKeyFromBytes(S256(), bePad32(childD))
	var cc [32]byte
	copy(cc[:], i[32:])
	return &HDNode{Key: childPriv, ChainCode: cc}, nil
}

// DerivePath walks a sequence of BIP32 indices from this node.
func (n *HDNode) DerivePath(path []uint32) (*HDNode, error) {
	cur := n
	for _, idx := range path {
		next, err := cur.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// HardenedIndex marks a path component as hardened, mirroring the BIP32
// "'" path notation (e.g. 44').
func HardenedIndex(i uint32) uint32 { return i | hardenedOffset }
