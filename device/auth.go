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

package device

import (
	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/wire"
)

// authKeyStore holds the device's permanent, per-install auth_key (spec
// §6 "Device NVRAM"): 32 bytes, lazily initialized to random bytes on
// first use rather than at device construction, matching the "all-zero
// means uninitialized" NVRAM convention used elsewhere on the device (spec
// §9).
type authKeyStore struct {
	valid bool
	key   [32]byte
}

// Key returns the permanent auth_key, generating it from the CSPRNG the
// first time it is needed.
func (a *authKeyStore) Key() ([32]byte, error) {
	if !a.valid {
		k, err := crypto.RandomBytes(32)
		if err != nil {
			return [32]byte{}, err
		}
		copy(a.key[:], k)
		a.valid = true
	}
	return a.key, nil
}

// StorageSlots is an in-memory implementation of ecall.Storage: 32-byte
// slots addressed by index, backing a running V-App's storage_read/
// storage_write ECALLs. A real device would persist these in NVRAM keyed
// by vapp_hash; this device package's caller is responsible for loading
// and saving a V-App's slots around a run (see Device.StartVApp).
type StorageSlots struct {
	slots [][32]byte
}

// NewStorageSlots returns n zero-initialized slots.
func NewStorageSlots(n uint32) *StorageSlots {
	return &StorageSlots{slots: make([][32]byte, n)}
}

func (s *StorageSlots) ReadSlot(slot uint32) ([32]byte, error) {
	if slot >= uint32(len(s.slots)) {
		return [32]byte{}, errSlotOutOfRange
	}
	return s.slots[slot], nil
}

func (s *StorageSlots) WriteSlot(slot uint32, data [32]byte) error {
	if slot >= uint32(len(s.slots)) {
		return errSlotOutOfRange
	}
	s.slots[slot] = data
	return nil
}

var errSlotOutOfRange = &StatusError{Status: wire.StatusIncorrectData, Message: "storage slot index out of range"}
