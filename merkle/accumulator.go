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

// Package merkle implements the vector accumulator that backs every
// outsourced memory section: a binary Merkle tree over a fixed
// vector of fixed-size leaves, supporting inclusion proofs and update
// proofs that let a verifier holding only the root recompute both the old
// and new root from a single co-path.
//
// Unlike a Patricia trie, there is no notion of a key: the tree shape is
// fully determined by the number of leaves, padded up to the next power of
// two so every leaf lives at the same depth.
package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// HashSize is the digest size of the hash function used throughout the
// accumulator (SHA-256).
const HashSize = 32

// ErrIndexOutOfRange is returned by Get/Prove/Update when the index is not
// a valid leaf position.
var ErrIndexOutOfRange = errors.New("merkle: index out of range")

// ErrEmptyVector is returned by New when called with zero leaves.
var ErrEmptyVector = errors.New("merkle: accumulator must have at least one leaf")

const (
	leafTag     byte = 0x00
	internalTag byte = 0x01
)

// leafHash computes SHA256(0x00 || leaf).
func leafHash(leaf []byte) [HashSize]byte {
	h := sha256.New()
	h.Write([]byte{leafTag})
	h.Write(leaf)
	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}

// internalHash computes SHA256(0x01 || left || right).
func internalHash(left, right [HashSize]byte) [HashSize]byte {
	h := sha256.New()
	h.Write([]byte{internalTag})
	h.Write(left[:])
	h.Write(right[:])
	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}

// nextPowerOfTwo returns the smallest power of two >= n (n >= 1).
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Accumulator is a complete binary Merkle tree over n padded leaves. The
// tree has 2n-1 nodes stored in a flat array: leaves occupy indices
// [n-1, 2n-2], the root is at index 0, and node i's children are at
// 2i+1 and 2i+2 (standard binary-heap layout).
type Accumulator struct {
	n        int // adjusted (power-of-two) leaf count
	rawCount int // number of "real" leaves before padding, for bookkeeping
	nodes    [][HashSize]byte
	leaves   [][]byte // the padded leaf contents, index-aligned with tree leaf layer
}

// New builds the full tree over leaves, padding with zero-content leaves up
// to the next power of two.
func New(leaves [][]byte) (*Accumulator, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyVector
	}
	leafLen := len(leaves[0])
	n := nextPowerOfTwo(len(leaves))

	padded := make([][]byte, n)
	for i := range padded {
		if i < len(leaves) {
			if len(leaves[i]) != leafLen {
				return nil, fmt.Errorf("merkle: leaf %d has length %d, want %d", i, len(leaves[i]), leafLen)
			}
			padded[i] = append([]byte(nil), leaves[i]...)
		} else {
			padded[i] = make([]byte, leafLen)
		}
	}

	acc := &Accumulator{
		n:        n,
		rawCount: len(leaves),
		nodes:    make([][HashSize]byte, 2*n-1),
		leaves:   padded,
	}
	acc.rebuild()
	return acc, nil
}

// rebuild recomputes every node hash from the current leaf contents.
func (a *Accumulator) rebuild() {
	n := a.n
	for i := 0; i < n; i++ {
		a.nodes[n-1+i] = leafHash(a.leaves[i])
	}
	for i := n - 2; i >= 0; i-- {
		a.nodes[i] = internalHash(a.nodes[2*i+1], a.nodes[2*i+2])
	}
}

// Len returns the adjusted (power-of-two) leaf count.
func (a *Accumulator) Len() int { return a.n }

// Root returns the current 32-byte root digest.
func (a *Accumulator) Root() [HashSize]byte { return a.nodes[0] }

// Get returns the content of leaf i.
func (a *Accumulator) Get(i int) ([]byte, error) {
	if i < 0 || i >= a.n {
		return nil, ErrIndexOutOfRange
	}
	return append([]byte(nil), a.leaves[i]...), nil
}

// Proof is an ordered co-path from a leaf to the root: Siblings[0] is the
// leaf's immediate sibling, Siblings[len-1] is adjacent to the root.
type Proof struct {
	Siblings [][HashSize]byte
}

// leafNodeIndex returns the position of leaf i within the flat node array.
func (a *Accumulator) leafNodeIndex(i int) int { return a.n - 1 + i }

// Prove returns the co-path for leaf i.
func (a *Accumulator) Prove(i int) (Proof, error) {
	if i < 0 || i >= a.n {
		return Proof{}, ErrIndexOutOfRange
	}
	pos := a.leafNodeIndex(i)
	var proof Proof
	for pos > 0 {
		var sibling int
		if pos%2 == 1 {
			sibling = pos + 1 // pos is a left child (odd index in 1-based view below)
		} else {
			sibling = pos - 1
		}
		proof.Siblings = append(proof.Siblings, a.nodes[sibling])
		pos = (pos - 1) / 2
	}
	return proof, nil
}

// VerifyInclusion recomputes the root from leaf using proof and checks it
// against root. pos = n-1+i determines, at each level, whether the current
// node is the left or right child: even pos means the current node is a
// right child (its sibling, at pos-1, is the left operand); odd pos means
// the current node is a left child (its sibling, at pos+1, is the right
// operand). This matches Prove's sibling selection above.
func VerifyInclusion(root [HashSize]byte, proof Proof, leaf []byte, i, n int) bool {
	if i < 0 || i >= n || n <= 0 {
		return false
	}
	cur := leafHash(leaf)
	pos := n - 1 + i
	for _, sib := range proof.Siblings {
		if pos%2 == 1 {
			cur = internalHash(cur, sib)
		} else {
			cur = internalHash(sib, cur)
		}
		pos = (pos - 1) / 2
	}
	return cur == root
}

// UpdateProof is the co-path together with the pre-update root, which
// together let a verifier check both the old and new leaf values against
// their respective roots using the same sibling path.
type UpdateProof struct {
	Proof   Proof
	OldRoot [HashSize]byte
}

// Update replaces leaf i with newLeaf, rehashes the co-path, and returns
// the proof/old-root pair a verifier needs.
func (a *Accumulator) Update(i int, newLeaf []byte) (UpdateProof, error) {
	if i < 0 || i >= a.n {
		return UpdateProof{}, ErrIndexOutOfRange
	}
	if len(newLeaf) != len(a.leaves[i]) {
		return UpdateProof{}, fmt.Errorf("merkle: new leaf length %d, want %d", len(newLeaf), len(a.leaves[i]))
	}
	proof, _ := a.Prove(i)
	oldRoot := a.Root()

	a.leaves[i] = append([]byte(nil), newLeaf...)
	pos := a.leafNodeIndex(i)
	a.nodes[pos] = leafHash(a.leaves[i])
	for pos > 0 {
		parent := (pos - 1) / 2
		left, right := 2*parent+1, 2*parent+2
		a.nodes[parent] = internalHash(a.nodes[left], a.nodes[right])
		pos = parent
	}

	return UpdateProof{Proof: proof, OldRoot: oldRoot}, nil
}

// VerifyUpdate checks that the same co-path verifies oldLeaf against
// proof.OldRoot and newLeaf against newRoot.
func VerifyUpdate(newRoot [HashSize]byte, up UpdateProof, oldLeaf, newLeaf []byte, i, n int) bool {
	return VerifyInclusion(up.OldRoot, up.Proof, oldLeaf, i, n) &&
		VerifyInclusion(newRoot, up.Proof, newLeaf, i, n)
}

// EncodeProof serializes a Proof as a length-prefixed varint count followed
// by HashSize-byte hashes, so it deserializes deterministically from its
// wire form.
func EncodeProof(p Proof) []byte {
	buf := make([]byte, 0, 10+len(p.Siblings)*HashSize)
	buf = appendUvarint(buf, uint64(len(p.Siblings)))
	for _, s := range p.Siblings {
		buf = append(buf, s[:]...)
	}
	return buf
}

// DecodeProof deserializes a Proof produced by EncodeProof.
func DecodeProof(b []byte) (Proof, int, error) {
	count, n, err := readUvarint(b)
	if err != nil {
		return Proof{}, 0, err
	}
	need := n + int(count)*HashSize
	if len(b) < need {
		return Proof{}, 0, fmt.Errorf("merkle: truncated proof: need %d bytes, have %d", need, len(b))
	}
	p := Proof{Siblings: make([][HashSize]byte, count)}
	off := n
	for i := range p.Siblings {
		copy(p.Siblings[i][:], b[off:off+HashSize])
		off += HashSize
	}
	return p, off, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readUvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, errors.New("merkle: varint too long")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("merkle: truncated varint")
}
