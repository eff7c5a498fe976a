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
	"math/big"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/vm"
)

// uncompressedPointSize is the wire size of an uncompressed secp256k1
// point: 0x04 prefix ‖ 32-byte X ‖ 32-byte Y.
const uncompressedPointSize = 1 + 32 + 32

func decodePoint(b []byte) (x, y *big.Int, okPoint bool) {
	if len(b) != uncompressedPointSize || b[0] != 0x04 {
		return nil, nil, false
	}
	return new(big.Int).SetBytes(b[1:33]), new(big.Int).SetBytes(b[33:65]), true
}

func encodePoint(x, y *big.Int) []byte {
	out := make([]byte, uncompressedPointSize)
	out[0] = 0x04
	copy(out[1:33], leftPad(x.Bytes(), 32))
	copy(out[33:65], leftPad(y.Bytes(), 32))
	return out
}

// doECFPAddPoint implements `ecfp_add_point(p1, p2, out)`, all uncompressed
// 65-byte points.
func (h *Handler) doECFPAddPoint(cpu *vm.CPU) error {
	p1Ptr, p2Ptr, outPtr := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2)
	p1, err := cpu.ReadBuffer(p1Ptr, uncompressedPointSize)
	if err != nil {
		return err
	}
	p2, err := cpu.ReadBuffer(p2Ptr, uncompressedPointSize)
	if err != nil {
		return err
	}
	x1, y1, ok1 := decodePoint(p1)
	x2, y2, ok2 := decodePoint(p2)
	if !ok1 || !ok2 {
		return fail(cpu)
	}
	x3, y3 := crypto.ECFPAddPoint(x1, y1, x2, y2)
	if err := cpu.WriteBuffer(outPtr, encodePoint(x3, y3)); err != nil {
		return err
	}
	return ok(cpu)
}

// doECFPScalarMult implements `ecfp_scalar_mult(p, k, k_len, out)`.
func (h *Handler) doECFPScalarMult(cpu *vm.CPU) error {
	pPtr, kPtr, kLen, outPtr := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2), cpu.Regs.Get(vm.RegA3)
	if kLen > 32 {
		return fail(cpu)
	}
	p, err := cpu.ReadBuffer(pPtr, uncompressedPointSize)
	if err != nil {
		return err
	}
	k, err := cpu.ReadBuffer(kPtr, kLen)
	if err != nil {
		return err
	}
	x, y, okPoint := decodePoint(p)
	if !okPoint {
		return fail(cpu)
	}
	rx, ry := crypto.ECFPScalarMult(x, y, k)
	if err := cpu.WriteBuffer(outPtr, encodePoint(rx, ry)); err != nil {
		return err
	}
	return ok(cpu)
}

// doGetRandomBytes implements `get_random_bytes(buf, size)`. A CSPRNG
// failure is a genuinely unrecoverable situation, so it
// escalates rather than returning a0=0.
func (h *Handler) doGetRandomBytes(cpu *vm.CPU) error {
	ptr, size := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1)
	b, err := crypto.RandomBytes(int(size))
	if err != nil {
		return err
	}
	return cpu.WriteBuffer(ptr, b)
}

// doECDSASign implements `ecdsa_sign(privkey, digest, sig_out)`: privkey
// and digest are each 32 bytes; sig_out receives a DER signature (at most
// 72 bytes for secp256k1) whose length is returned in a0 (0 on failure).
func (h *Handler) doECDSASign(cpu *vm.CPU) error {
	privPtr, digestPtr, sigOut := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2)
	privBytes, err := cpu.ReadBuffer(privPtr, 32)
	if err != nil {
		return err
	}
	digestBytes, err := cpu.ReadBuffer(digestPtr, 32)
	if err != nil {
		return err
	}
	priv, err := crypto.PrivateKeyFromBytes(privBytes)
	if err != nil {
		return fail(cpu)
	}
	var digest [32]byte
	copy(digest[:], digestBytes)
	der, err := crypto.ECDSASign(priv, digest)
	if err != nil {
		return fail(cpu)
	}
	if err := cpu.WriteBuffer(sigOut, der); err != nil {
		return err
	}
	cpu.Regs.Set(vm.RegA0, uint32(len(der)))
	return nil
}

// doECDSAVerify implements `ecdsa_verify(pubkey, digest, sig, sig_len)`:
// pubkey is an uncompressed 65-byte point, digest 32 bytes.
func (h *Handler) doECDSAVerify(cpu *vm.CPU) error {
	pubPtr, digestPtr, sigPtr, sigLen := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2), cpu.Regs.Get(vm.RegA3)
	pubBytes, err := cpu.ReadBuffer(pubPtr, uncompressedPointSize)
	if err != nil {
		return err
	}
	digestBytes, err := cpu.ReadBuffer(digestPtr, 32)
	if err != nil {
		return err
	}
	der, err := cpu.ReadBuffer(sigPtr, sigLen)
	if err != nil {
		return err
	}
	pub, err := crypto.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return fail(cpu)
	}
	var digest [32]byte
	copy(digest[:], digestBytes)
	if !crypto.ECDSAVerify(pub, digest, der) {
		return fail(cpu)
	}
	return ok(cpu)
}

// doSchnorrSign implements `schnorr_sign(privkey, msg, sig_out)`: BIP340,
// msg is a 32-byte SHA-256 digest, sig_out receives a fixed 64 bytes.
func (h *Handler) doSchnorrSign(cpu *vm.CPU) error {
	privPtr, msgPtr, sigOut := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2)
	privBytes, err := cpu.ReadBuffer(privPtr, 32)
	if err != nil {
		return err
	}
	msgBytes, err := cpu.ReadBuffer(msgPtr, 32)
	if err != nil {
		return err
	}
	priv, err := crypto.PrivateKeyFromBytes(privBytes)
	if err != nil {
		return fail(cpu)
	}
	var msg [32]byte
	copy(msg[:], msgBytes)
	sig, err := crypto.SchnorrSign(priv, msg)
	if err != nil {
		return fail(cpu)
	}
	if err := cpu.WriteBuffer(sigOut, sig[:]); err != nil {
		return err
	}
	return ok(cpu)
}

// doSchnorrVerify implements `schnorr_verify(pubkey_x, msg, sig)`: pubkey_x
// is the 32-byte x-only BIP340 public key.
func (h *Handler) doSchnorrVerify(cpu *vm.CPU) error {
	pubXPtr, msgPtr, sigPtr := cpu.Regs.Get(vm.RegA0), cpu.Regs.Get(vm.RegA1), cpu.Regs.Get(vm.RegA2)
	pubXBytes, err := cpu.ReadBuffer(pubXPtr, 32)
	if err != nil {
		return err
	}
	msgBytes, err := cpu.ReadBuffer(msgPtr, 32)
	if err != nil {
		return err
	}
	sigBytes, err := cpu.ReadBuffer(sigPtr, 64)
	if err != nil {
		return err
	}
	pubX := new(big.Int).SetBytes(pubXBytes)
	var msg [32]byte
	copy(msg[:], msgBytes)
	var sig [64]byte
	copy(sig[:], sigBytes)
	if !crypto.SchnorrVerify(pubX, msg, sig) {
		return fail(cpu)
	}
	return ok(cpu)
}
