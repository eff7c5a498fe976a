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

	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/wire"
)

// ApprovalPrompt is what the device asks its operator to approve, rendered
// however the host-side UI sees fit (a terminal confirmation, a companion
// app dialog, ...).
type ApprovalPrompt struct {
	Title string
	Lines []string
}

// Approver gates any action that needs an explicit operator decision:
// registering a new V-App, or (via the wrapped UX ECALLs, once a run is
// underway) an in-run ConfirmReject page.
type Approver interface {
	Approve(prompt ApprovalPrompt) (bool, error)
}

// Register runs the one-time registration flow: validate the
// manifest, show the operator its name/version/hash, and on approval store
// (vapp_hash, vapp_name, vapp_version) in reg. A rejected prompt yields
// StatusDeny; a full registry (with a distinct hash) yields StatusStoreFull;
// a manifest that fails its own invariants yields StatusIncorrectData.
func Register(reg *Registry, approver Approver, m *manifest.Manifest) (RunStatus, error) {
	if err := m.Validate(); err != nil {
		return RunStatus{Status: wire.StatusIncorrectData}, nil
	}

	hash := m.Hash()
	prompt := ApprovalPrompt{
		Title: "Register V-App",
		Lines: []string{m.VAppName, m.VAppVersion, m.String()},
	}
	approved, err := approver.Approve(prompt)
	if err != nil {
		return RunStatus{}, err
	}
	if !approved {
		return RunStatus{Status: wire.StatusDeny}, nil
	}

	if err := reg.Register(hash, m.VAppName, m.VAppVersion); err != nil {
		if errors.Is(err, ErrStoreFull) {
			return RunStatus{Status: wire.StatusStoreFull}, nil
		}
		return RunStatus{}, err
	}
	return RunStatus{Status: wire.StatusOK}, nil
}
