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

// ReadBuffer copies length bytes starting at addr out of whichever segment
// owns that range, byte by byte through the Segment interface so a paged
// segment can fault in pages as needed. ECALL handlers use
// this instead of reaching into cpu.Data/cpu.Code/cpu.Stack directly.
func (cpu *CPU) ReadBuffer(addr uint32, length uint32) ([]byte, error) {
	out := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		seg, err := cpu.segmentFor(addr+i, 1)
		if err != nil {
			return nil, err
		}
		b, err := seg.ReadByte(addr + i)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// WriteBuffer writes data starting at addr, through whichever segment owns
// that range. Writing to Code fails with ErrWriteToReadOnly.
func (cpu *CPU) WriteBuffer(addr uint32, data []byte) error {
	for i, b := range data {
		a := addr + uint32(i)
		seg, err := cpu.segmentFor(a, 1)
		if err != nil {
			return err
		}
		if !seg.Writable() {
			return ErrWriteToReadOnly
		}
		if err := seg.WriteByte(a, b); err != nil {
			return err
		}
	}
	return nil
}
