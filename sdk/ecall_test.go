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

package sdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedCall captures one trap invocation's code and register arguments,
// used to assert each wrapper loads the exact registers the device-side
// ecall handler (package ecall) expects, without needing a real VM to
// dereference guest pointers against.
type recordedCall struct {
	code           code
	a0, a1, a2, a3 uint32
	a4, a5, a6     uint32
}

func withFakeTrap(t *testing.T, result uint32) *recordedCall {
	t.Helper()
	var call recordedCall
	orig := trap
	trap = func(c code, a0, a1, a2, a3, a4, a5, a6 uint32) uint32 {
		call = recordedCall{c, a0, a1, a2, a3, a4, a5, a6}
		return result
	}
	t.Cleanup(func() { trap = orig })
	return &call
}

func TestPrintLoadsPointerAndLength(t *testing.T) {
	call := withFakeTrap(t, 0)
	Print("hello")
	require.Equal(t, codePrint, call.code)
	require.Equal(t, uint32(5), call.a1)
}

func TestSendLoadsPointerAndLength(t *testing.T) {
	call := withFakeTrap(t, 0)
	Send([]byte{1, 2, 3})
	require.Equal(t, codeXSend, call.code)
	require.Equal(t, uint32(3), call.a1)
}

func TestRecvReturnsTrapResult(t *testing.T) {
	withFakeTrap(t, 7)
	n := Recv(make([]byte, 16))
	require.Equal(t, 7, n)
}

func TestGetDevicePropertyUsesNoArguments(t *testing.T) {
	call := withFakeTrap(t, 0xABCD)
	got := GetDeviceProperty()
	require.Equal(t, codeGetDeviceProperty, call.code)
	require.Equal(t, uint32(0xABCD), got)
}

func TestGetMasterFingerprintRejectsUnknownCurve(t *testing.T) {
	withFakeTrap(t, 1)
	_, ok := GetMasterFingerprint(CurveSECP256K1 + 1)
	require.False(t, ok)
}

func TestGetMasterFingerprintLoadsCurve(t *testing.T) {
	call := withFakeTrap(t, 0x11223344)
	fp, ok := GetMasterFingerprint(CurveSECP256K1)
	require.True(t, ok)
	require.Equal(t, uint32(0x11223344), fp)
	require.Equal(t, codeGetMasterFingerprint, call.code)
	require.Equal(t, uint32(CurveSECP256K1), call.a0)
}

func TestDeriveHDNodeLoadsCurvePathLenAndOutputPointers(t *testing.T) {
	call := withFakeTrap(t, 1)
	_, ok := DeriveHDNode(CurveSECP256K1, []uint32{0x80000000, 1, 2})
	require.True(t, ok)
	require.Equal(t, codeDeriveHDNode, call.code)
	require.Equal(t, uint32(CurveSECP256K1), call.a0)
	require.Equal(t, uint32(3), call.a2)
}

func TestDeriveSLIP21NodeRejectsOverlongLabel(t *testing.T) {
	withFakeTrap(t, 1)
	longLabel := make([]byte, maxSLIP21LabelLen+1)
	_, ok := DeriveSLIP21Node(string(longLabel))
	require.False(t, ok)
}

func TestDeriveSLIP21NodeAcceptsValidLabels(t *testing.T) {
	call := withFakeTrap(t, 1)
	_, ok := DeriveSLIP21Node("seed", "application")
	require.True(t, ok)
	require.Equal(t, codeDeriveSLIP21Node, call.code)
	// 1-byte length prefix + "seed" + 1-byte length prefix + "application"
	require.Equal(t, uint32(1+4+1+11), call.a1)
}

func TestBnAddMLoadsAllSixOperandRegistersPlusOutput(t *testing.T) {
	call := withFakeTrap(t, 1)
	a := []byte{1, 2}
	b := []byte{3, 4, 5}
	m := []byte{6, 7, 8, 9}
	_, ok := BnAddM(a, b, m)
	require.True(t, ok)
	require.Equal(t, codeBnAddM, call.code)
	require.Equal(t, uint32(len(a)), call.a1)
	require.Equal(t, uint32(len(b)), call.a3)
	require.Equal(t, uint32(len(m)), call.a5)
}

func TestBnModMLoadsTwoOperandRegisters(t *testing.T) {
	call := withFakeTrap(t, 1)
	a := []byte{1, 2, 3}
	m := []byte{4, 5}
	_, ok := BnModM(a, m)
	require.True(t, ok)
	require.Equal(t, codeBnModM, call.code)
	require.Equal(t, uint32(len(a)), call.a1)
	require.Equal(t, uint32(len(m)), call.a3)
}

func TestStorageReadLoadsSlotNumber(t *testing.T) {
	call := withFakeTrap(t, 1)
	_, ok := StorageRead(5)
	require.True(t, ok)
	require.Equal(t, codeStorageRead, call.code)
	require.Equal(t, uint32(5), call.a0)
}

func TestStorageWriteLoadsSlotAndRejectsFailure(t *testing.T) {
	call := withFakeTrap(t, 0)
	ok := StorageWrite(2, [32]byte{1})
	require.False(t, ok)
	require.Equal(t, codeStorageWrite, call.code)
	require.Equal(t, uint32(2), call.a0)
}

func TestHashRoundTripsAlgorithmThroughInitUpdateFinal(t *testing.T) {
	call := withFakeTrap(t, 1)
	var h Hash
	require.True(t, h.Init(HashSHA256))
	require.Equal(t, codeHashInit, call.code)
	require.Equal(t, uint32(HashSHA256), call.a1)

	h.Update([]byte("payload"))
	require.Equal(t, codeHashUpdate, call.code)
	require.Equal(t, uint32(7), call.a2)

	digest := h.Final()
	require.Equal(t, codeHashFinal, call.code)
	require.Len(t, digest, 32)
}

func TestGetEventReturnsCodeAndPayload(t *testing.T) {
	withFakeTrap(t, uint32(EventRejected))
	evt := GetEvent()
	require.Equal(t, EventRejected, evt.Code)
}

func TestShowPageAndShowStepReportHostAck(t *testing.T) {
	withFakeTrap(t, 1)
	require.True(t, ShowPage(SpinnerPage()))
	require.True(t, ShowStep(SpinnerPage()))

	withFakeTrap(t, 0)
	require.False(t, ShowPage(SpinnerPage()))
}

func TestExitPanicsAfterTrapReturns(t *testing.T) {
	withFakeTrap(t, 0)
	require.Panics(t, func() { Exit(0) })
}

func TestFatalPanicsAfterTrapReturns(t *testing.T) {
	withFakeTrap(t, 0)
	require.Panics(t, func() { Fatal("boom") })
}
