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

// Package manifest implements the V-App manifest: the authenticated
// descriptor that uniquely identifies a V-App and its canonical,
// bit-exact serialization.
package manifest

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxNameLen bounds vapp_name and vapp_version.
const MaxNameLen = 32

// MaxStorageSlots bounds n_storage_slots.
const MaxStorageSlots = 1 << 16

// RootSize is the size of a section Merkle root.
const RootSize = 32

var (
	ErrNameTooLong       = errors.New("manifest: name or version exceeds 32 bytes")
	ErrNameNotPrintable  = errors.New("manifest: name must be printable ASCII")
	ErrNameSurroundingWS = errors.New("manifest: name has leading or trailing space")
	ErrEntrypointRange   = errors.New("manifest: entrypoint not in code range")
	ErrEntrypointAlign   = errors.New("manifest: entrypoint not 2-byte aligned")
	ErrSectionRange      = errors.New("manifest: section end must be >= start")
	ErrSectionOverlap    = errors.New("manifest: sections must not overlap")
	ErrTooManySlots      = errors.New("manifest: n_storage_slots exceeds maximum")
	ErrTruncated         = errors.New("manifest: truncated encoding")
)

// Section identifies one of the three memory sections a V-App is built
// from. The numeric values match the wire encoding used by
// wire.SectionKind (Code=0, Data=1, Stack=2).
type Section uint8

const (
	SectionCode Section = iota
	SectionData
	SectionStack
)

// Manifest is the authenticated descriptor of a V-App.
type Manifest struct {
	ManifestVersion uint32
	VAppName        string
	VAppVersion     string
	Entrypoint      uint32

	CodeStart, CodeEnd   uint32
	CodeMerkleRoot       [RootSize]byte
	DataStart, DataEnd   uint32
	DataMerkleRoot       [RootSize]byte
	StackStart, StackEnd uint32
	StackMerkleRoot      [RootSize]byte

	// NStorageSlots defaults to 0 for backward-compatible manifests that
	// omit it on the wire.
	NStorageSlots uint32
}

// Validate checks printable-ASCII names with no leading/trailing space and
// a length cap, an entrypoint inside the code range and 2-byte aligned,
// well-formed section ranges, and a storage-slot count within bounds.
func (m *Manifest) Validate() error {
	if err := validateName(m.VAppName); err != nil {
		return err
	}
	if err := validateName(m.VAppVersion); err != nil {
		return err
	}
	if err := validateSection(m.CodeStart, m.CodeEnd); err != nil {
		return err
	}
	if err := validateSection(m.DataStart, m.DataEnd); err != nil {
		return err
	}
	if err := validateSection(m.StackStart, m.StackEnd); err != nil {
		return err
	}
	if rangesOverlap(m.CodeStart, m.CodeEnd, m.DataStart, m.DataEnd) ||
		rangesOverlap(m.CodeStart, m.CodeEnd, m.StackStart, m.StackEnd) ||
		rangesOverlap(m.DataStart, m.DataEnd, m.StackStart, m.StackEnd) {
		return ErrSectionOverlap
	}
	if m.Entrypoint < m.CodeStart || m.Entrypoint >= m.CodeEnd {
		return ErrEntrypointRange
	}
	if m.Entrypoint%2 != 0 {
		return ErrEntrypointAlign
	}
	if m.NStorageSlots > MaxStorageSlots {
		return ErrTooManySlots
	}
	return nil
}

func validateSection(start, end uint32) error {
	if end < start {
		return ErrSectionRange
	}
	return nil
}

// rangesOverlap reports whether [aStart, aEnd) and [bStart, bEnd) share any
// address. Empty ranges (end == start) never overlap with anything.
func rangesOverlap(aStart, aEnd, bStart, bEnd uint32) bool {
	if aStart == aEnd || bStart == bEnd {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

func validateName(s string) error {
	if len(s) > MaxNameLen {
		return ErrNameTooLong
	}
	if len(s) == 0 {
		return nil
	}
	if s[0] == ' ' || s[len(s)-1] == ' ' {
		return ErrNameSurroundingWS
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return ErrNameNotPrintable
		}
	}
	return nil
}

// PageCount returns the number of PAGE_SIZE pages a section spans.
func PageCount(start, end, pageSize uint32) int {
	if end <= start {
		return 0
	}
	span := end - start
	return int((span + pageSize - 1) / pageSize)
}

// Encode serializes the manifest in the canonical, length-prefixed form
// used both for the wire (StartVApp command payload) and as the preimage
// of Hash: manifest_version, length-prefixed vapp_name and
// vapp_version, entrypoint, the three (start, end, root) section triples in
// Code/Data/Stack order, and n_storage_slots.
func (m *Manifest) Encode() []byte {
	buf := make([]byte, 0, 256)
	buf = appendU32(buf, m.ManifestVersion)
	buf = appendString(buf, m.VAppName)
	buf = appendString(buf, m.VAppVersion)
	buf = appendU32(buf, m.Entrypoint)
	buf = appendU32(buf, m.CodeStart)
	buf = appendU32(buf, m.CodeEnd)
	buf = append(buf, m.CodeMerkleRoot[:]...)
	buf = appendU32(buf, m.DataStart)
	buf = appendU32(buf, m.DataEnd)
	buf = append(buf, m.DataMerkleRoot[:]...)
	buf = appendU32(buf, m.StackStart)
	buf = appendU32(buf, m.StackEnd)
	buf = append(buf, m.StackMerkleRoot[:]...)
	buf = appendU32(buf, m.NStorageSlots)
	return buf
}

// Decode parses the encoding produced by Encode. A payload that ends
// immediately after the stack section triple is accepted with
// NStorageSlots defaulting to 0, for backward compatibility.
func Decode(b []byte) (*Manifest, error) {
	m := &Manifest{}
	var off int
	var err error

	if m.ManifestVersion, off, err = readU32(b, 0); err != nil {
		return nil, err
	}
	if m.VAppName, off, err = readString(b, off); err != nil {
		return nil, err
	}
	if m.VAppVersion, off, err = readString(b, off); err != nil {
		return nil, err
	}
	if m.Entrypoint, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if m.CodeStart, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if m.CodeEnd, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if off, err = readRoot(b, off, &m.CodeMerkleRoot); err != nil {
		return nil, err
	}
	if m.DataStart, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if m.DataEnd, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if off, err = readRoot(b, off, &m.DataMerkleRoot); err != nil {
		return nil, err
	}
	if m.StackStart, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if m.StackEnd, off, err = readU32(b, off); err != nil {
		return nil, err
	}
	if off, err = readRoot(b, off, &m.StackMerkleRoot); err != nil {
		return nil, err
	}
	if off < len(b) {
		if m.NStorageSlots, off, err = readU32(b, off); err != nil {
			return nil, err
		}
	}
	_ = off
	return m, nil
}

// Hash returns the manifest's identity: SHA-256 over the canonical
// serialization.
func (m *Manifest) Hash() [32]byte {
	return sha256.Sum256(m.Encode())
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readU32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(b[off : off+4]), off + 4, nil
}

func readString(b []byte, off int) (string, int, error) {
	l, off, err := readU32(b, off)
	if err != nil {
		return "", 0, err
	}
	if int(l) > MaxNameLen {
		return "", 0, ErrNameTooLong
	}
	if off+int(l) > len(b) {
		return "", 0, ErrTruncated
	}
	return string(b[off : off+int(l)]), off + int(l), nil
}

func readRoot(b []byte, off int, out *[RootSize]byte) (int, error) {
	if off+RootSize > len(b) {
		return 0, ErrTruncated
	}
	copy(out[:], b[off:off+RootSize])
	return off + RootSize, nil
}

// String renders a short human-readable identification line, used by the
// device registration UX to display name/version/hash.
func (m *Manifest) String() string {
	h := m.Hash()
	return fmt.Sprintf("%s %s (%x)", m.VAppName, m.VAppVersion, h[:8])
}
