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

// Package device implements the device-resident half of Vanadium: the
// NVRAM V-App registry, the registration and preload handshakes, and the
// main run loop that drives a vm.CPU through InterruptedExecution
// suspension points until the guest terminates.
package device

import (
	"fmt"

	"github.com/vanadium-vm/vanadium/wire"
)

// StatusError wraps one of the terminal status words a device operation
// can end in; the host layer (and cmd/vanadium-host) turns
// this into a typed client-facing error.
type StatusError struct {
	Status  wire.StatusWord
	Message string // set for VAppPanic (the guest's fatal() message)
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("device: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("device: %s", e.Status)
}

// RunStatus is the outcome of a completed run, returned by the device's
// internal run loop to whatever dispatches incoming APDUs.
type RunStatus struct {
	Status   wire.StatusWord
	ExitCode uint32 // valid only when Status == wire.StatusOK
	Message  string // valid only when Status == wire.StatusVAppPanic
}

// AsResponse renders a RunStatus as the final APDU response body+status
//: exit(status) carries a 4-byte big-endian
// body, fatal/VMRuntimeError carry no body.
func (r RunStatus) AsResponse() wire.Response {
	if r.Status == wire.StatusOK {
		body := make([]byte, 4)
		body[0] = byte(r.ExitCode >> 24)
		body[1] = byte(r.ExitCode >> 16)
		body[2] = byte(r.ExitCode >> 8)
		body[3] = byte(r.ExitCode)
		return wire.Response{Body: body, Status: r.Status}
	}
	return wire.Response{Status: r.Status}
}
