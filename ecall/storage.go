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

package ecall

import "github.com/vanadium-vm/vanadium/vm"

// doStorageRead implements `storage_read(slot, out)`: out receives the
// slot's 32 bytes. An out-of-range slot is a guest error (fail); a
// backend I/O error is escalated, since it signals the device's own
// persistent store is broken rather than something the guest did wrong.
func (h *Handler) doStorageRead(cpu *vm.CPU) error {
	slot := cpu.Regs.Get(vm.RegA0)
	outPtr := cpu.Regs.Get(vm.RegA1)
	if slot >= h.numSlots {
		return fail(cpu)
	}
	data, err := h.storage.ReadSlot(slot)
	if err != nil {
		return err
	}
	if err := cpu.WriteBuffer(outPtr, data[:]); err != nil {
		return err
	}
	return ok(cpu)
}

// doStorageWrite implements `storage_write(slot, buf)`: buf is exactly 32
// bytes.
func (h *Handler) doStorageWrite(cpu *vm.CPU) error {
	slot := cpu.Regs.Get(vm.RegA0)
	bufPtr := cpu.Regs.Get(vm.RegA1)
	if slot >= h.numSlots {
		return fail(cpu)
	}
	raw, err := cpu.ReadBuffer(bufPtr, 32)
	if err != nil {
		return err
	}
	var data [32]byte
	copy(data[:], raw)
	if err := h.storage.WriteSlot(slot, data); err != nil {
		return err
	}
	return ok(cpu)
}
