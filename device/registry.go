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
	"errors"

	"github.com/vanadium-vm/vanadium/wire"
)

// entry is one NVRAM registry slot. The zero value is the "uninitialized"
// image; Valid flips to true on first
// write so the registry never has to rely on emulated NVRAM actually
// starting out zeroed.
type entry struct {
	Valid   bool
	Hash    [32]byte
	Name    string
	Version string
}

// ErrStoreFull is returned by Register when every slot is occupied by a
// distinct V-App.
var ErrStoreFull = errors.New("device: V-App registry is full")

// Registry is the fixed-size NVRAM table of registered V-Apps. It is not safe for concurrent use; the device's main
// loop is the only caller.
type Registry struct {
	slots [wire.MaxRegisteredVApps]entry
}

// NewRegistry returns an empty registry (every slot uninitialized).
func NewRegistry() *Registry {
	return &Registry{}
}

// Lookup reports whether hash is registered, and if so its recorded name
// and version.
func (r *Registry) Lookup(hash [32]byte) (name, version string, found bool) {
	for i := range r.slots {
		if r.slots[i].Valid && r.slots[i].Hash == hash {
			return r.slots[i].Name, r.slots[i].Version, true
		}
	}
	return "", "", false
}

// Register stores (hash, name, version), overwriting any existing entry for
// the same hash. If hash is not already
// present, it is written into the first uninitialized slot; if every slot
// is occupied by a different V-App, ErrStoreFull is returned.
func (r *Registry) Register(hash [32]byte, name, version string) error {
	firstFree := -1
	for i := range r.slots {
		if r.slots[i].Valid && r.slots[i].Hash == hash {
			r.slots[i].Name = name
			r.slots[i].Version = version
			return nil
		}
		if !r.slots[i].Valid && firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return ErrStoreFull
	}
	r.slots[firstFree] = entry{Valid: true, Hash: hash, Name: name, Version: version}
	return nil
}

// WipeAll clears every slot, exposed for the device's "wipe all" settings
// action.
func (r *Registry) WipeAll() {
	for i := range r.slots {
		r.slots[i] = entry{}
	}
}

// Remove clears the single slot holding hash, if any, exposed for the
// per-entry "remove" settings action. Reports
// whether an entry was found and removed.
func (r *Registry) Remove(hash [32]byte) bool {
	for i := range r.slots {
		if r.slots[i].Valid && r.slots[i].Hash == hash {
			r.slots[i] = entry{}
			return true
		}
	}
	return false
}

// Count returns the number of occupied slots.
func (r *Registry) Count() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].Valid {
			n++
		}
	}
	return n
}
