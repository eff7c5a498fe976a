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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/wire"
)

func newTestSession(approve bool) *Session {
	d := NewDevice([]byte("0123456789abcdef0123456789abcdef"), 0)
	return NewSession(d, &stubApprover{approve: approve}, NewStorageSlots(4))
}

func TestDispatchRejectsWrongCLA(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: 0x00, INS: wire.InsGetAppInfo})
	require.Equal(t, wire.StatusClaNotSupported, resp.Status)
}

func TestDispatchGetAppInfo(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsGetAppInfo})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.Len(t, resp.Body, 32)
}

func TestDispatchRegisterAppApprovedAndDenied(t *testing.T) {
	m := sampleManifest()
	encoded := m.Encode()

	approved := newTestSession(true)
	resp := approved.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsRegisterApp, Data: encoded})
	require.Equal(t, wire.StatusOK, resp.Status)

	denied := newTestSession(false)
	resp = denied.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsRegisterApp, Data: encoded})
	require.Equal(t, wire.StatusDeny, resp.Status)
}

func TestDispatchRegisterAppBadData(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsRegisterApp, Data: []byte{0x01, 0x02}})
	require.Equal(t, wire.StatusIncorrectData, resp.Status)
}

func TestDispatchContinueWithoutRunIsProtocolError(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsContinue})
	require.Equal(t, wire.StatusVMRuntimeError, resp.Status)
}

func TestDispatchUnsupportedIns(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.Ins(0x7f)})
	require.Equal(t, wire.StatusInsNotSupported, resp.Status)
}

func TestDispatchStartVAppUnregisteredIsSignatureFail(t *testing.T) {
	s := newTestSession(true)
	m := sampleManifest()
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsStartVApp, Data: m.Encode()})
	require.Equal(t, wire.StatusSignatureFail, resp.Status)
}

func TestDispatchGetMetrics(t *testing.T) {
	s := newTestSession(true)
	resp := s.Dispatch(wire.Command{CLA: wire.CLA, INS: wire.InsGetMetrics})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.Len(t, resp.Body, 16)
}
