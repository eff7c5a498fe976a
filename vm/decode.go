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

// RV32 opcode field values (bits [6:0] of the instruction word).
const (
	opLoad    = 0x03
	opMiscMem = 0x0F
	opOpImm   = 0x13
	opAuipc   = 0x17
	opStore   = 0x23
	opOp      = 0x33
	opLui     = 0x37
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6F
	opSystem  = 0x73
)

func opcode(w uint32) uint32 { return w & 0x7f }
func rd(w uint32) uint8      { return uint8((w >> 7) & 0x1f) }
func funct3(w uint32) uint32 { return (w >> 12) & 0x7 }
func rs1(w uint32) uint8     { return uint8((w >> 15) & 0x1f) }
func rs2(w uint32) uint8     { return uint8((w >> 20) & 0x1f) }
func funct7(w uint32) uint32 { return (w >> 25) & 0x7f }

// immI decodes a 12-bit I-type immediate, sign-extended.
func immI(w uint32) int32 {
	return int32(w) >> 20
}

// immS decodes a 12-bit S-type immediate, sign-extended.
func immS(w uint32) int32 {
	hi := (w >> 25) & 0x7f
	lo := (w >> 7) & 0x1f
	v := (hi << 5) | lo
	return signExtend(v, 12)
}

// immB decodes a 13-bit B-type immediate (bit 0 always zero), sign-extended.
func immB(w uint32) int32 {
	b12 := (w >> 31) & 0x1
	b11 := (w >> 7) & 0x1
	b10_5 := (w >> 25) & 0x3f
	b4_1 := (w >> 8) & 0xf
	v := (b12 << 12) | (b11 << 11) | (b10_5 << 5) | (b4_1 << 1)
	return signExtend(v, 13)
}

// immU decodes a U-type immediate: the upper 20 bits, lower 12 zero.
func immU(w uint32) int32 {
	return int32(w & 0xfffff000)
}

// immJ decodes a 21-bit J-type immediate (bit 0 always zero), sign-extended.
func immJ(w uint32) int32 {
	b20 := (w >> 31) & 0x1
	b19_12 := (w >> 12) & 0xff
	b11 := (w >> 20) & 0x1
	b10_1 := (w >> 21) & 0x3ff
	v := (b20 << 20) | (b19_12 << 12) | (b11 << 11) | (b10_1 << 1)
	return signExtend(v, 21)
}

// signExtend sign-extends the low `bits` bits of v (given as a zero-extended
// uint32) to a full int32.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
