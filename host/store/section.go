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

package store

import (
	"fmt"
	"sync"

	"github.com/vanadium-vm/vanadium/merkle"
	"github.com/vanadium-vm/vanadium/wire"
)

// SectionStore is the host-side counterpart of one vm/pagedmem.PageStore:
// it holds the full Merkle accumulator for one V-App's section and serves
// the GetPage/CommitPage protocol's proof-producing half.
// All leaf content is also written through to a Store for durability.
type SectionStore struct {
	mu       sync.Mutex
	db       *Store
	vappHash [32]byte
	section  wire.SectionKind
	writable bool
	acc      *merkle.Accumulator
}

// NewSectionStore builds the accumulator over leaves (already in their
// wire-serialized form: is_encrypted‖nonce‖content) and persists every leaf
// to db. writable must be false for Code, true for
// Data/Stack. Every leaf, Code or not, starts out with is_encrypted=0 (the
// plaintext zero-fill or loaded-binary state the manifest's root commits
// to); Data/Stack leaves only become is_encrypted=1 ciphertext once the
// guest writes to them and the page is evicted, at which point Commit
// replaces the leaf wholesale — the section's writability, not a fixed
// per-leaf encryption flag, is what NewSectionStore records here.
func NewSectionStore(db *Store, vappHash [32]byte, section wire.SectionKind, writable bool, leaves [][]byte) (*SectionStore, error) {
	acc, err := merkle.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("store: building %v accumulator: %w", section, err)
	}
	s := &SectionStore{db: db, vappHash: vappHash, section: section, writable: writable, acc: acc}
	for i, leaf := range leaves {
		if err := db.putLeaf(vappHash, section, uint32(i), leaf); err != nil {
			return nil, fmt.Errorf("store: persisting leaf %d: %w", i, err)
		}
	}
	return s, nil
}

// Root returns the section's current Merkle root.
func (s *SectionStore) Root() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Root()
}

// Len returns the adjusted (power-of-two padded) leaf count.
func (s *SectionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Len()
}

// Writable reports whether CommitPage is legal against this section
// (Code is always false).
func (s *SectionStore) Writable() bool { return s.writable }

// Fetch returns leaf i's content and its inclusion proof against the
// current root.
func (s *SectionStore) Fetch(index uint32) (leaf []byte, proof merkle.Proof, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leaf, err = s.acc.Get(int(index))
	if err != nil {
		return nil, merkle.Proof{}, err
	}
	proof, err = s.acc.Prove(int(index))
	if err != nil {
		return nil, merkle.Proof{}, err
	}
	return leaf, proof, nil
}

// Commit replaces leaf i with newLeaf and returns the update proof the
// device needs to verify both the old and new root. Committing against a read-only (Code) section is refused — the
// caller (Engine) is expected to have already rejected it against the
// manifest's section kind, but this guards the invariant at the storage
// layer too.
func (s *SectionStore) Commit(index uint32, newLeaf []byte) (proof merkle.UpdateProof, newRoot [32]byte, err error) {
	if !s.writable {
		return merkle.UpdateProof{}, [32]byte{}, fmt.Errorf("store: cannot commit read-only section %v", s.section)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	proof, err = s.acc.Update(int(index), newLeaf)
	if err != nil {
		return merkle.UpdateProof{}, [32]byte{}, err
	}
	if err := s.db.putLeaf(s.vappHash, s.section, index, newLeaf); err != nil {
		return merkle.UpdateProof{}, [32]byte{}, fmt.Errorf("store: persisting committed leaf %d: %w", index, err)
	}
	return proof, s.acc.Root(), nil
}
