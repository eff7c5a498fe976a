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
	"encoding/binary"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/vm"
)

// doGetMasterFingerprint implements `get_master_fingerprint(curve)`: only
// secp256k1 is supported; the result is the first 4 bytes of
// RIPEMD160(SHA256(compressed master pubkey)) as a big-endian u32.
func (h *Handler) doGetMasterFingerprint(cpu *vm.CPU) error {
	curve := cpu.Regs.Get(vm.RegA0)
	if curve != CurveSECP256K1 {
		return fail(cpu)
	}
	fp := crypto.MasterFingerprint(h.hdRoot.Key.PubKey())
	cpu.Regs.Set(vm.RegA0, binary.BigEndian.Uint32(fp[:]))
	return nil
}

// readU32Path reads a little-endian u32 array out of guest memory (RV32 is
// little-endian, matching every other multi-byte field the CPU's segments
// expose).
func readU32Path(cpu *vm.CPU, ptr, count uint32) ([]uint32, error) {
	raw, err := cpu.ReadBuffer(ptr, count*4)
	if err != nil {
		return nil, err
	}
	path := make([]uint32, count)
	for i := range path {
		path[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return path, nil
}

// doDeriveHDNode implements `derive_hd_node(curve, path, path_len,
// privkey_out, chaincode_out)`. a0=curve, a1=path_ptr, a2=path_len (number
// of u32 indices), a3=privkey_out (32 bytes), a4=chaincode_out (32 bytes).
func (h *Handler) doDeriveHDNode(cpu *vm.CPU) error {
	curve := cpu.Regs.Get(vm.RegA0)
	pathPtr := cpu.Regs.Get(vm.RegA1)
	pathLen := cpu.Regs.Get(vm.RegA2)
	privOut := cpu.Regs.Get(vm.RegA3)
	ccOut := cpu.Regs.Get(vm.RegA4)
	if curve != CurveSECP256K1 {
		return fail(cpu)
	}
	path, err := readU32Path(cpu, pathPtr, pathLen)
	if err != nil {
		return err
	}
	node, err := h.hdRoot.DerivePath(path)
	if err != nil {
		// A derived index landed out of curve-order range; the guest has
		// no retry contract beyond a failure return.
		return fail(cpu)
	}
	privBytes := leftPad(node.Key.D.Bytes(), 32)
	if err := cpu.WriteBuffer(privOut, privBytes); err != nil {
		return err
	}
	if err := cpu.WriteBuffer(ccOut, node.ChainCode[:]); err != nil {
		return err
	}
	return ok(cpu)
}

// maxSLIP21LabelLen and maxSLIP21TotalLen bound derive_slip21_node's label
// arguments.
const (
	maxSLIP21LabelLen = 252
	maxSLIP21TotalLen = 256
)

// parseSLIP21Labels splits a length-prefixed label concatenation: each
// label is a 1-byte length followed by that many bytes, non-empty, at most
// maxSLIP21LabelLen bytes, and must not contain '/'.
func parseSLIP21Labels(buf []byte) ([][]byte, bool) {
	if len(buf) == 0 || len(buf) > maxSLIP21TotalLen {
		return nil, false
	}
	var labels [][]byte
	for off := 0; off < len(buf); {
		n := int(buf[off])
		off++
		if n == 0 || n > maxSLIP21LabelLen || off+n > len(buf) {
			return nil, false
		}
		label := buf[off : off+n]
		for _, c := range label {
			if c == '/' {
				return nil, false
			}
		}
		labels = append(labels, label)
		off += n
	}
	return labels, true
}

// doDeriveSLIP21Node implements `derive_slip21_node(labels, labels_len,
// out64)`. a0=labels_ptr, a1=labels_len, a2=out_ptr (64 bytes: chain code
// then key).
func (h *Handler) doDeriveSLIP21Node(cpu *vm.CPU) error {
	labelsPtr := cpu.Regs.Get(vm.RegA0)
	labelsLen := cpu.Regs.Get(vm.RegA1)
	outPtr := cpu.Regs.Get(vm.RegA2)
	if labelsLen > maxSLIP21TotalLen {
		return fail(cpu)
	}
	raw, err := cpu.ReadBuffer(labelsPtr, labelsLen)
	if err != nil {
		return err
	}
	labels, okParse := parseSLIP21Labels(raw)
	if !okParse {
		return fail(cpu)
	}
	node := h.slip21Root.DerivePath(labels)
	out := make([]byte, 0, 64)
	out = append(out, node.ChainCode[:]...)
	out = append(out, node.Key[:]...)
	if err := cpu.WriteBuffer(outPtr, out); err != nil {
		return err
	}
	return ok(cpu)
}
