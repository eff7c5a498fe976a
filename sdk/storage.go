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

package sdk

// StorageRead reads the given manifest-declared storage slot (each a fixed
// 32 bytes). ok is false for an out-of-range slot.
func StorageRead(slot uint32) (data [32]byte, ok bool) {
	r := trap(codeStorageRead, slot, ptrOf(data[:]), 0, 0, 0, 0, 0)
	return data, r != 0
}

// StorageWrite writes data to the given storage slot. ok is false for an
// out-of-range slot.
func StorageWrite(slot uint32, data [32]byte) (ok bool) {
	return trap(codeStorageWrite, slot, ptrOf(data[:]), 0, 0, 0, 0, 0) != 0
}
