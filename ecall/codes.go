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

// Package ecall implements the guest-facing ECALL dispatch table: register
// t0 names the call, a0..a7 carry arguments, results land in a0 or in
// guest-memory out-parameters. Every handler resolves guest
// pointers through cpu.ReadBuffer/WriteBuffer so a paged segment can fault
// in the page it needs without the handler knowing it happened.
package ecall

// Code enumerates the ECALL identifiers a guest places in t0.
type Code uint32

const (
	Exit Code = iota
	Fatal
	XSend
	XRecv
	Print
	GetEvent
	ShowPage
	ShowStep
	GetDeviceProperty
	GetMasterFingerprint
	DeriveHDNode
	DeriveSLIP21Node
	BnModM
	BnAddM
	BnSubM
	BnMultM
	BnPowM
	BnModInvPrime
	ECFPAddPoint
	ECFPScalarMult
	GetRandomBytes
	ECDSASign
	ECDSAVerify
	SchnorrSign
	SchnorrVerify
	HashInit
	HashUpdate
	HashFinal
	StorageRead
	StorageWrite
)

func (c Code) String() string {
	switch c {
	case Exit:
		return "exit"
	case Fatal:
		return "fatal"
	case XSend:
		return "xsend"
	case XRecv:
		return "xrecv"
	case Print:
		return "print"
	case GetEvent:
		return "get_event"
	case ShowPage:
		return "show_page"
	case ShowStep:
		return "show_step"
	case GetDeviceProperty:
		return "get_device_property"
	case GetMasterFingerprint:
		return "get_master_fingerprint"
	case DeriveHDNode:
		return "derive_hd_node"
	case DeriveSLIP21Node:
		return "derive_slip21_node"
	case BnModM:
		return "bn_modm"
	case BnAddM:
		return "bn_addm"
	case BnSubM:
		return "bn_subm"
	case BnMultM:
		return "bn_multm"
	case BnPowM:
		return "bn_powm"
	case BnModInvPrime:
		return "bn_modinv_prime"
	case ECFPAddPoint:
		return "ecfp_add_point"
	case ECFPScalarMult:
		return "ecfp_scalar_mult"
	case GetRandomBytes:
		return "get_random_bytes"
	case ECDSASign:
		return "ecdsa_sign"
	case ECDSAVerify:
		return "ecdsa_verify"
	case SchnorrSign:
		return "schnorr_sign"
	case SchnorrVerify:
		return "schnorr_verify"
	case HashInit:
		return "hash_init"
	case HashUpdate:
		return "hash_update"
	case HashFinal:
		return "hash_final"
	case StorageRead:
		return "storage_read"
	case StorageWrite:
		return "storage_write"
	default:
		return "unknown_ecall"
	}
}

// CurveSECP256K1 is the only curve identifier derive_hd_node,
// get_master_fingerprint, ecdsa_*, and schnorr_* accept.
const CurveSECP256K1 = 0
