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

// Package vm implements the RV32IM fetch/decode/execute loop that drives a
// V-App: three backing MemorySegments (code, data, stack), the integer and
// M-extension instruction set, and the ECALL/EBREAK dispatch points.
package vm

import "errors"

// ErrOutOfRange is returned by a Segment when an address falls outside its
// backing range.
var ErrOutOfRange = errors.New("vm: address out of segment range")

// ErrWriteToReadOnly is returned when a write targets the code segment.
var ErrWriteToReadOnly = errors.New("vm: write to read-only segment")

// ErrMisaligned is returned for a 16- or 32-bit access whose address is not
// naturally aligned.
var ErrMisaligned = errors.New("vm: misaligned memory access")

// Segment is one of the three address spaces a V-App is built from. Code is
// read-only; Data and Stack are read-write. Implementations back reads and
// writes with a paged, Merkle-authenticated cache (vm/pagedmem) and may
// block the calling goroutine while they fetch a missing page from the
// host.
type Segment interface {
	// Base returns the first address in range, End the first address past
	// the end of range (an exclusive bound), used for bounds checks and
	// PageCount computations.
	Base() uint32
	End() uint32

	// Writable reports whether Write* is ever legal on this segment.
	Writable() bool

	ReadByte(addr uint32) (byte, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)

	WriteByte(addr uint32, v byte) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error
}

// inRange reports whether [addr, addr+size) lies within [base, end).
func inRange(base, end, addr uint32, size uint32) bool {
	if addr < base || addr > end {
		return false
	}
	// Guard against addr+size overflowing uint32.
	if end-addr < size {
		return false
	}
	return true
}
