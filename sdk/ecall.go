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

// Package sdk is the guest-side library a V-App links against: thin,
// allocation-conscious wrappers around the ECALL surface the device
// exposes to RV32IM code (t0 selects the call, a0..a6 carry arguments,
// a0 carries the result). Every call in this package that can block on
// host I/O is a suspension point from the device's perspective; nothing
// here retries or times out, that policy lives entirely on the host.
package sdk

import "unsafe"

// code mirrors ecall.Code; duplicated here rather than imported so a V-App
// binary links against nothing but this package and the subset of the
// standard library the guest toolchain supports.
type code uint32

const (
	codeExit code = iota
	codeFatal
	codeXSend
	codeXRecv
	codePrint
	codeGetEvent
	codeShowPage
	codeShowStep
	codeGetDeviceProperty
	codeGetMasterFingerprint
	codeDeriveHDNode
	codeDeriveSLIP21Node
	codeBnModM
	codeBnAddM
	codeBnSubM
	codeBnMultM
	codeBnPowM
	codeBnModInvPrime
	codeECFPAddPoint
	codeECFPScalarMult
	codeGetRandomBytes
	codeECDSASign
	codeECDSAVerify
	codeSchnorrSign
	codeSchnorrVerify
	codeHashInit
	codeHashUpdate
	codeHashFinal
	codeStorageRead
	codeStorageWrite
)

// CurveSECP256K1 is the only curve identifier accepted by the key
// derivation and signing ECALLs.
const CurveSECP256K1 = 0

// trap is the single point of contact with the VM: it loads t0=c and
// a0..a6 from args and executes the ecall instruction, returning whatever
// the handler left in a0. On the real guest target this is a single
// instruction, implemented in assembly built only for that target; this
// package's Go-level logic never needs to know that. trap is a package
// variable rather than a direct asm stub so host-side tests can substitute
// a fake VM and exercise every wrapper's argument marshaling without a
// RISC-V toolchain.
var trap = defaultTrap

func defaultTrap(c code, a0, a1, a2, a3, a4, a5, a6 uint32) uint32 {
	panic("sdk: ecall trap not installed for this build target")
}

// ptrOf returns the guest address of b's backing array, or 0 for an empty
// slice (the zero pointer the device's buffer reader treats as "no data").
func ptrOf(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(&b[0])))
}
