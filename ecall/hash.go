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

import (
	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/vm"
)

// doHashInit implements `hash_init(ctx_ptr, hash_id)`: the guest's ctx
// buffer address doubles as the key into h.hashCtxs for the lifetime of
// the streaming hash (there is no separate handle allocator; the guest
// owns the address and is trusted not to alias two live contexts there).
func (h *Handler) doHashInit(cpu *vm.CPU) error {
	ctxPtr := cpu.Regs.Get(vm.RegA0)
	hashID := cpu.Regs.Get(vm.RegA1)
	hasher, err := crypto.NewHash(crypto.HashAlgorithm(hashID))
	if err != nil {
		return fail(cpu)
	}
	h.hashCtxs[ctxPtr] = hasher
	return ok(cpu)
}

// doHashUpdate implements `hash_update(ctx_ptr, buf, len)`.
func (h *Handler) doHashUpdate(cpu *vm.CPU) error {
	ctxPtr := cpu.Regs.Get(vm.RegA0)
	ptr := cpu.Regs.Get(vm.RegA1)
	length := cpu.Regs.Get(vm.RegA2)
	hasher, found := h.hashCtxs[ctxPtr]
	if !found {
		return fail(cpu)
	}
	buf, err := cpu.ReadBuffer(ptr, length)
	if err != nil {
		return err
	}
	hasher.Write(buf)
	return ok(cpu)
}

// doHashFinal implements `hash_final(ctx_ptr, out)`: writes Size() bytes
// to out and retires the context — it may not be reused after this call.
func (h *Handler) doHashFinal(cpu *vm.CPU) error {
	ctxPtr := cpu.Regs.Get(vm.RegA0)
	outPtr := cpu.Regs.Get(vm.RegA1)
	hasher, found := h.hashCtxs[ctxPtr]
	if !found {
		return fail(cpu)
	}
	digest := hasher.Sum(nil)
	delete(h.hashCtxs, ctxPtr)
	if err := cpu.WriteBuffer(outPtr, digest); err != nil {
		return err
	}
	return ok(cpu)
}
