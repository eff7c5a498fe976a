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
	"github.com/vanadium-vm/vanadium/ecall"
	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/wire"
)

// Session is the single-threaded APDU dispatcher for one transport
// connection.
// It owns the one Run that can be in flight at a time: while a run is
// suspended waiting on a host round trip, only InsContinue is accepted;
// any other INS is a protocol error.
type Session struct {
	device   *Device
	approver Approver
	storage  ecall.Storage

	current *Run
}

// NewSession binds a dispatcher to a Device, the operator-approval surface,
// and the per-V-App storage backend.
func NewSession(d *Device, approver Approver, storage ecall.Storage) *Session {
	return &Session{device: d, approver: approver, storage: storage}
}

// Dispatch handles one incoming APDU, returning the response to send back.
// When the response status is StatusInterruptedExecution, the caller must
// route the next incoming APDU back through Dispatch with INS=InsContinue
// and its Data as the Continue payload; any other INS in that state is
// rejected as a protocol error.
func (s *Session) Dispatch(cmd wire.Command) wire.Response {
	if cmd.CLA != wire.CLA {
		return wire.Response{Status: wire.StatusClaNotSupported}
	}

	if s.current != nil {
		if cmd.INS != wire.InsContinue {
			return wire.Response{Status: wire.StatusVMRuntimeError}
		}
		return s.resume(cmd.Data)
	}

	switch cmd.INS {
	case wire.InsGetAppInfo:
		return s.getAppInfo()
	case wire.InsRegisterApp:
		return s.registerApp(cmd.Data)
	case wire.InsStartVApp:
		return s.startVApp(cmd.Data)
	case wire.InsGetMetrics:
		return s.device.MetricsResponse()
	case wire.InsContinue:
		// No run is in flight; a Continue with nothing to continue is a
		// protocol error.
		return wire.Response{Status: wire.StatusVMRuntimeError}
	default:
		return wire.Response{Status: wire.StatusInsNotSupported}
	}
}

func (s *Session) getAppInfo() wire.Response {
	id := s.device.AppID()
	return wire.Response{Body: append([]byte(nil), id[:]...), Status: wire.StatusOK}
}

func (s *Session) registerApp(data []byte) wire.Response {
	m, err := manifest.Decode(data)
	if err != nil {
		return wire.Response{Status: wire.StatusIncorrectData}
	}
	status, err := Register(s.device.Registry, s.approver, m)
	if err != nil {
		return wire.Response{Status: wire.StatusVMRuntimeError}
	}
	return status.AsResponse()
}

func (s *Session) startVApp(data []byte) wire.Response {
	m, err := manifest.Decode(data)
	if err != nil {
		return wire.Response{Status: wire.StatusIncorrectData}
	}
	run, err := s.device.StartVApp(m, s.storage)
	if err != nil {
		if se, ok := err.(*StatusError); ok {
			return wire.Response{Status: se.Status}
		}
		return wire.Response{Status: wire.StatusVMRuntimeError}
	}
	s.current = run
	return s.advance()
}

func (s *Session) resume(data []byte) wire.Response {
	s.current.Continue(data)
	return s.advance()
}

// advance drains the current run until it either needs another host round
// trip (returned as InterruptedExecution) or finishes (returned as the
// final status, clearing current so the session accepts new top-level
// commands again).
func (s *Session) advance() wire.Response {
	req, ok, status := s.current.Next()
	if !ok {
		s.current = nil
		return status.AsResponse()
	}
	return wire.Response{Body: req, Status: wire.StatusInterruptedExecution}
}
