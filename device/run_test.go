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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/vm"
	"github.com/vanadium-vm/vanadium/wire"
)

func TestChannelExchangerRoundTrip(t *testing.T) {
	exch := newChannelExchanger()
	go func() {
		req := <-exch.reqCh
		exch.respCh <- append([]byte{0xff}, req...)
	}()

	resp, err := exch.Exchange([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0x01, 0x02}, resp)
}

func TestChannelExchangerAbortUnblocksExchange(t *testing.T) {
	exch := newChannelExchanger()
	run := &Run{exch: exch}
	errCh := make(chan error, 1)
	go func() {
		_, err := exch.Exchange([]byte{0x01})
		errCh <- err
	}()
	<-exch.reqCh
	run.Abort()
	require.ErrorIs(t, <-errCh, errRunAborted)
}

func TestAdjustedLeafCount(t *testing.T) {
	require.Equal(t, 1, adjustedLeafCount(0))
	require.Equal(t, 1, adjustedLeafCount(1))
	require.Equal(t, 4, adjustedLeafCount(3))
	require.Equal(t, 8, adjustedLeafCount(8))
}

func TestStatusFromErrorPreservesStatusError(t *testing.T) {
	se := &StatusError{Status: wire.StatusSignatureFail, Message: "no match"}
	status := statusFromError(se)
	require.Equal(t, wire.StatusSignatureFail, status.Status)
	require.Equal(t, "no match", status.Message)
}

func TestStatusFromErrorDefaultsToVMRuntimeError(t *testing.T) {
	status := statusFromError(errors.New("boom"))
	require.Equal(t, wire.StatusVMRuntimeError, status.Status)
}

func TestStatusFromHalt(t *testing.T) {
	cpu := &vm.CPU{Halt: vm.HaltExit, ExitCode: 7}
	require.Equal(t, RunStatus{Status: wire.StatusOK, ExitCode: 7}, statusFromHalt(cpu))

	cpu = &vm.CPU{Halt: vm.HaltPanic, PanicMsg: "assertion failed"}
	require.Equal(t, RunStatus{Status: wire.StatusVAppPanic, Message: "assertion failed"}, statusFromHalt(cpu))

	cpu = &vm.CPU{Halt: vm.HaltFault, Err: errors.New("bad instruction")}
	got := statusFromHalt(cpu)
	require.Equal(t, wire.StatusVMRuntimeError, got.Status)
}
