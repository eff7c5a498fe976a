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

// Registers holds the 32 RV32 general-purpose registers. x0 is hard-wired
// to zero: Set silently discards writes to it and Get always returns 0.
type Registers struct {
	x [32]uint32
}

// Get returns the value of register r (0-31).
func (regs *Registers) Get(r uint8) uint32 {
	if r == 0 {
		return 0
	}
	return regs.x[r]
}

// Set writes v to register r (0-31); writes to x0 are discarded.
func (regs *Registers) Set(r uint8, v uint32) {
	if r == 0 {
		return
	}
	regs.x[r] = v
}

// GetSigned returns register r reinterpreted as a signed 32-bit value.
func (regs *Registers) GetSigned(r uint8) int32 {
	return int32(regs.Get(r))
}
