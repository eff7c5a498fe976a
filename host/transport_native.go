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

package host

import (
	"github.com/vanadium-vm/vanadium/device"
	"github.com/vanadium-vm/vanadium/wire"
)

// NativeTransport drives a device.Session in-process, with no real
// transport underneath: the command dispatch happens on the calling
// goroutine. This is the transport this package's own tests use in place
// of real hardware.
type NativeTransport struct {
	session *device.Session
}

// NewNativeTransport wraps an already-constructed Session.
func NewNativeTransport(session *device.Session) *NativeTransport {
	return &NativeTransport{session: session}
}

func (t *NativeTransport) Exchange(cmd wire.Command) (wire.Response, error) {
	return t.session.Dispatch(cmd), nil
}

func (t *NativeTransport) Close() error { return nil }
