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

package vm

import "encoding/binary"

// flatSegment is a minimal in-memory Segment for unit tests; it has none of
// vm/pagedmem's caching or Merkle authentication.
type flatSegment struct {
	base     uint32
	data     []byte
	writable bool
}

func newFlatSegment(base uint32, size uint32, writable bool) *flatSegment {
	return &flatSegment{base: base, data: make([]byte, size), writable: writable}
}

func (s *flatSegment) Base() uint32    { return s.base }
func (s *flatSegment) End() uint32     { return s.base + uint32(len(s.data)) }
func (s *flatSegment) Writable() bool  { return s.writable }

func (s *flatSegment) ReadByte(addr uint32) (byte, error) {
	if !inRange(s.Base(), s.End(), addr, 1) {
		return 0, ErrOutOfRange
	}
	return s.data[addr-s.base], nil
}

func (s *flatSegment) Read16(addr uint32) (uint16, error) {
	if !inRange(s.Base(), s.End(), addr, 2) {
		return 0, ErrOutOfRange
	}
	off := addr - s.base
	return binary.LittleEndian.Uint16(s.data[off : off+2]), nil
}

func (s *flatSegment) Read32(addr uint32) (uint32, error) {
	if !inRange(s.Base(), s.End(), addr, 4) {
		return 0, ErrOutOfRange
	}
	off := addr - s.base
	return binary.LittleEndian.Uint32(s.data[off : off+4]), nil
}

func (s *flatSegment) WriteByte(addr uint32, v byte) error {
	if !s.writable {
		return ErrWriteToReadOnly
	}
	if !inRange(s.Base(), s.End(), addr, 1) {
		return ErrOutOfRange
	}
	s.data[addr-s.base] = v
	return nil
}

func (s *flatSegment) Write16(addr uint32, v uint16) error {
	if !s.writable {
		return ErrWriteToReadOnly
	}
	if !inRange(s.Base(), s.End(), addr, 2) {
		return ErrOutOfRange
	}
	off := addr - s.base
	binary.LittleEndian.PutUint16(s.data[off:off+2], v)
	return nil
}

func (s *flatSegment) Write32(addr uint32, v uint32) error {
	if !s.writable {
		return ErrWriteToReadOnly
	}
	if !inRange(s.Base(), s.End(), addr, 4) {
		return ErrOutOfRange
	}
	off := addr - s.base
	binary.LittleEndian.PutUint32(s.data[off:off+4], v)
	return nil
}

func (s *flatSegment) storeWord(addr uint32, w uint32) {
	off := addr - s.base
	binary.LittleEndian.PutUint32(s.data[off:off+4], w)
}

// --- RV32 instruction encoders, used only by tests to build instruction
// streams by hand (no assembler/compiler toolchain in this module).

func encodeR(opcode, f3, f7, rd, rs1, rs2 uint32) uint32 {
	return (f7 << 25) | (rs2 << 20) | (rs1 << 15) | (f3 << 12) | (rd << 7) | opcode
}

func encodeI(opcode, f3, rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | (rs1 << 15) | (f3 << 12) | (rd << 7) | opcode
}

func encodeS(opcode, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	hi := (u >> 5) & 0x7f
	lo := u & 0x1f
	return (hi << 25) | (rs2 << 20) | (rs1 << 15) | (f3 << 12) | (lo << 7) | opcode
}

func encodeB(opcode, f3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 0x1
	b11 := (u >> 11) & 0x1
	b10_5 := (u >> 5) & 0x3f
	b4_1 := (u >> 1) & 0xf
	return (b12 << 31) | (b10_5 << 25) | (rs2 << 20) | (rs1 << 15) | (f3 << 12) | (b4_1 << 8) | (b11 << 7) | opcode
}

func encodeU(opcode, rd uint32, imm int32) uint32 {
	return (uint32(imm) & 0xfffff000) | (rd << 7) | opcode
}

func encodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	b20 := (u >> 20) & 0x1
	b19_12 := (u >> 12) & 0xff
	b11 := (u >> 11) & 0x1
	b10_1 := (u >> 1) & 0x3ff
	return (b20 << 31) | (b10_1 << 21) | (b11 << 20) | (b19_12 << 12) | (rd << 7) | opcode
}
