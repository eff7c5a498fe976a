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

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// doBn2 backs the two-operand bignum ECALLs (bn_modm, bn_modinv_prime):
// a0=aPtr, a1=aLen, a2=mPtr, a3=mLen, a4=outPtr. The result is written
// left-padded to mLen bytes, the modulus width.
func (h *Handler) doBn2(cpu *vm.CPU, fn func(a, m []byte) ([]byte, error)) error {
	aPtr, aLen := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1)
	mPtr, mLen := cpu.Regs.Get(vm.RegA2), cpu.Regs.Get(vm.RegA3)
	outPtr := cpu.Regs.Get(vm.RegA4)
	if aLen > crypto.MaxBigNumberSize || mLen > crypto.MaxBigNumberSize {
		return fail(cpu)
	}
	a, err := cpu.ReadBuffer(aPtr, aLen)
	if err != nil {
		return err
	}
	m, err := cpu.ReadBuffer(mPtr, mLen)
	if err != nil {
		return err
	}
	out, err := fn(a, m)
	if err != nil {
		return fail(cpu)
	}
	if err := cpu.WriteBuffer(outPtr, leftPad(out, int(mLen))); err != nil {
		return err
	}
	return ok(cpu)
}

// doBn3 backs the three-operand bignum ECALLs (bn_addm, bn_subm, bn_multm,
// bn_powm): a0=aPtr, a1=aLen, a2=bPtr, a3=bLen, a4=mPtr, a5=mLen, a6=outPtr.
func (h *Handler) doBn3(cpu *vm.CPU, fn func(a, b, m []byte) ([]byte, error)) error {
	aPtr, aLen := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1)
	bPtr, bLen := cpu.Regs.Get(vm.RegA2), cpu.Regs.Get(vm.RegA3)
	mPtr, mLen := cpu.Regs.Get(vm.RegA4), cpu.Regs.Get(vm.RegA5)
	outPtr := cpu.Regs.Get(vm.RegA6)
	if aLen > crypto.MaxBigNumberSize || bLen > crypto.MaxBigNumberSize || mLen > crypto.MaxBigNumberSize {
		return fail(cpu)
	}
	a, err := cpu.ReadBuffer(aPtr, aLen)
	if err != nil {
		return err
	}
	b, err := cpu.ReadBuffer(bPtr, bLen)
	if err != nil {
		return err
	}
	m, err := cpu.ReadBuffer(mPtr, mLen)
	if err != nil {
		return err
	}
	out, err := fn(a, b, m)
	if err != nil {
		return fail(cpu)
	}
	if err := cpu.WriteBuffer(outPtr, leftPad(out, int(mLen))); err != nil {
		return err
	}
	return ok(cpu)
}
