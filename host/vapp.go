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

package host

import (
	"fmt"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/host/store"
	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/wire"
)

// CodeImage is the V-App's linked binary: the flat bytes occupying
// [manifest.CodeStart, manifest.CodeEnd), supplied by whatever built and
// signed the V-App. The host never modifies it; it only serves pages from
// it and proves their inclusion; Code is always immutable.
type CodeImage []byte

// zeroLeaf returns the wire-serialized leaf for an untouched page: plaintext
// (is_encrypted=0), a zero nonce, and zero-filled (or loaded, for Code)
// content. Every section's manifest root is computed over exactly this form
// before any Data/Stack page has ever been committed: a Data/Stack page only becomes real ciphertext once
// the guest writes to it and the page is evicted.
func zeroLeaf(content []byte) []byte {
	buf := make([]byte, 0, wire.SerializedPageSize)
	buf = append(buf, 0) // is_encrypted = false
	buf = append(buf, make([]byte, wire.NonceSize)...)
	buf = append(buf, content...)
	return buf
}

// codeLeaves splits a CodeImage into PageSize-aligned pages and returns
// both the wire-serialized leaves (for the accumulator) and the bare
// per-page content hashes (for the preload code-page-hash stream, spec
// §4.6 step 3). The image is padded with zero bytes to a whole number of
// pages if its length isn't already page-aligned.
func codeLeaves(image CodeImage, pageCount int) (leaves [][]byte, hashes [][32]byte) {
	leaves = make([][]byte, pageCount)
	hashes = make([][32]byte, pageCount)
	for i := 0; i < pageCount; i++ {
		start := i * wire.PageSize
		end := start + wire.PageSize
		content := make([]byte, wire.PageSize)
		if start < len(image) {
			n := copy(content, image[start:minInt(end, len(image))])
			_ = n
		}
		leaves[i] = zeroLeaf(content)
		hashes[i] = crypto.HashPage(content)
	}
	return leaves, hashes
}

// dataLeaves returns pageCount zero-initialized leaves for a writable
// (Data or Stack) section.
func dataLeaves(pageCount int) [][]byte {
	leaves := make([][]byte, pageCount)
	for i := range leaves {
		leaves[i] = zeroLeaf(make([]byte, wire.PageSize))
	}
	return leaves
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RunSession bundles everything the Engine needs to serve one V-App run:
// the three section stores and the ordered code-page-hash stream consumed
// during preload.
type RunSession struct {
	Manifest   *manifest.Manifest
	Code       *store.SectionStore
	Data       *store.SectionStore
	Stack      *store.SectionStore
	CodeHashes [][32]byte
}

// NewRunSession builds the accumulators for a fresh V-App run from its
// code image and manifest, failing if the resulting Code root doesn't match
// manifest.CodeMerkleRoot — the host should refuse to offer a run it
// already knows the device will reject during preload.
func NewRunSession(db *store.Store, m *manifest.Manifest, image CodeImage) (*RunSession, error) {
	codePages := manifest.PageCount(m.CodeStart, m.CodeEnd, wire.PageSize)
	dataPages := manifest.PageCount(m.DataStart, m.DataEnd, wire.PageSize)
	stackPages := manifest.PageCount(m.StackStart, m.StackEnd, wire.PageSize)

	leaves, hashes := codeLeaves(image, codePages)
	vappHash := m.Hash()

	code, err := store.NewSectionStore(db, vappHash, wire.SectionCode, false, leaves)
	if err != nil {
		return nil, fmt.Errorf("host: building code section: %w", err)
	}
	if code.Root() != m.CodeMerkleRoot {
		return nil, fmt.Errorf("host: code image does not match manifest.CodeMerkleRoot")
	}

	data, err := store.NewSectionStore(db, vappHash, wire.SectionData, true, dataLeaves(dataPages))
	if err != nil {
		return nil, fmt.Errorf("host: building data section: %w", err)
	}
	if data.Root() != m.DataMerkleRoot {
		return nil, fmt.Errorf("host: zero-initialized data section does not match manifest.DataMerkleRoot")
	}
	stack, err := store.NewSectionStore(db, vappHash, wire.SectionStack, true, dataLeaves(stackPages))
	if err != nil {
		return nil, fmt.Errorf("host: building stack section: %w", err)
	}
	if stack.Root() != m.StackMerkleRoot {
		return nil, fmt.Errorf("host: zero-initialized stack section does not match manifest.StackMerkleRoot")
	}

	return &RunSession{Manifest: m, Code: code, Data: data, Stack: stack, CodeHashes: hashes}, nil
}

// Section returns the SectionStore for kind.
func (rs *RunSession) Section(kind wire.SectionKind) *store.SectionStore {
	switch kind {
	case wire.SectionCode:
		return rs.Code
	case wire.SectionData:
		return rs.Data
	case wire.SectionStack:
		return rs.Stack
	default:
		return nil
	}
}
