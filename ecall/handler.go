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
	"fmt"
	"hash"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/vm"
)

// Exchanger carries one request/response round trip of the wire protocol,
// the same shape as pagedmem.Exchanger; ECALLs that suspend for host I/O
// (xsend, xrecv, print, fatal, get_event, show_page, show_step) go through
// it exactly like a page fault does.
type Exchanger interface {
	Exchange(request []byte) (response []byte, err error)
}

// Storage backs storage_read/storage_write: n_storage_slots 32-byte slots,
// declared in the manifest and part of its hash.
type Storage interface {
	ReadSlot(slot uint32) ([32]byte, error)
	WriteSlot(slot uint32, data [32]byte) error
}

// ErrUnknownECALL is returned for a t0 value outside the enumerated set,
// escalated by the caller to VMRuntimeError since there's no numeric
// return convention for "you called something that doesn't exist".
var ErrUnknownECALL = fmt.Errorf("ecall: unknown ECALL code")

// Handler implements vm.ECALLHandler, dispatching t0 to one of the
// enumerated ECALLs. It is constructed fresh for each V-App
// run: the master HD/SLIP-21 roots are derived once from the device seed
// at construction, and hash contexts are scoped to the handler's lifetime.
type Handler struct {
	exch     Exchanger
	storage  Storage
	numSlots uint32

	deviceProperty uint32

	hdRoot     *crypto.HDNode
	slip21Root *crypto.SLIP21Node

	hashCtxs map[uint32]hash.Hash
}

// New constructs a Handler for one V-App run. masterSeed is the device's
// permanent key material (never exposed to the guest directly, only
// through derived keys); numSlots is manifest.NStorageSlots.
func New(exch Exchanger, storage Storage, numSlots uint32, deviceProperty uint32, masterSeed []byte) (*Handler, error) {
	hdRoot, err := crypto.MasterHDNode(masterSeed)
	if err != nil {
		return nil, fmt.Errorf("ecall: deriving master HD node: %w", err)
	}
	return &Handler{
		exch:           exch,
		storage:        storage,
		numSlots:       numSlots,
		deviceProperty: deviceProperty,
		hdRoot:         hdRoot,
		slip21Root:     crypto.MasterSLIP21Node(masterSeed),
		hashCtxs:       make(map[uint32]hash.Hash),
	}, nil
}

// HandleECALL implements vm.ECALLHandler.
func (h *Handler) HandleECALL(cpu *vm.CPU) error {
	code := Code(cpu.Regs.Get(vm.RegT0))
	switch code {
	case Exit:
		return h.doExit(cpu)
	case Fatal:
		return h.doFatal(cpu)
	case XSend:
		return h.doXSend(cpu)
	case XRecv:
		return h.doXRecv(cpu)
	case Print:
		return h.doPrint(cpu)
	case GetEvent:
		return h.doGetEvent(cpu)
	case ShowPage:
		return h.doShowPage(cpu)
	case ShowStep:
		return h.doShowStep(cpu)
	case GetDeviceProperty:
		cpu.Regs.Set(vm.RegA0, h.deviceProperty)
		return nil
	case GetMasterFingerprint:
		return h.doGetMasterFingerprint(cpu)
	case DeriveHDNode:
		return h.doDeriveHDNode(cpu)
	case DeriveSLIP21Node:
		return h.doDeriveSLIP21Node(cpu)
	case BnModM:
		return h.doBn2(cpu, crypto.BnModM)
	case BnAddM:
		return h.doBn3(cpu, crypto.BnAddM)
	case BnSubM:
		return h.doBn3(cpu, crypto.BnSubM)
	case BnMultM:
		return h.doBn3(cpu, crypto.BnMultM)
	case BnPowM:
		return h.doBn3(cpu, crypto.BnPowM)
	case BnModInvPrime:
		return h.doBn2(cpu, crypto.BnModInvPrime)
	case ECFPAddPoint:
		return h.doECFPAddPoint(cpu)
	case ECFPScalarMult:
		return h.doECFPScalarMult(cpu)
	case GetRandomBytes:
		return h.doGetRandomBytes(cpu)
	case ECDSASign:
		return h.doECDSASign(cpu)
	case ECDSAVerify:
		return h.doECDSAVerify(cpu)
	case SchnorrSign:
		return h.doSchnorrSign(cpu)
	case SchnorrVerify:
		return h.doSchnorrVerify(cpu)
	case HashInit:
		return h.doHashInit(cpu)
	case HashUpdate:
		return h.doHashUpdate(cpu)
	case HashFinal:
		return h.doHashFinal(cpu)
	case StorageRead:
		return h.doStorageRead(cpu)
	case StorageWrite:
		return h.doStorageWrite(cpu)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownECALL, code)
	}
}

// fail sets a0 to the handler-specific failure code (always 0) and
// returns nil: invalid pointers, bad identifiers, and out-of-range
// arguments are guest-visible failures, not VM faults.
func fail(cpu *vm.CPU) error {
	cpu.Regs.Set(vm.RegA0, 0)
	return nil
}

func ok(cpu *vm.CPU) error {
	cpu.Regs.Set(vm.RegA0, 1)
	return nil
}
