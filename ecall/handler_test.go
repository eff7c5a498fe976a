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
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/internal/metrics"
	"github.com/vanadium-vm/vanadium/vm"
)

// flatSegment is a minimal in-memory vm.Segment test double, independent
// of vm's own unexported flatSegment (vm/testsegment_test.go), since
// ecall cannot reach across the package boundary.
type flatSegment struct {
	base     uint32
	mem      []byte
	writable bool
}

func newFlatSegment(base uint32, size int, writable bool) *flatSegment {
	return &flatSegment{base: base, mem: make([]byte, size), writable: writable}
}

func (s *flatSegment) Base() uint32     { return s.base }
func (s *flatSegment) End() uint32      { return s.base + uint32(len(s.mem)) }
func (s *flatSegment) Writable() bool   { return s.writable }

func (s *flatSegment) ReadByte(addr uint32) (byte, error) {
	return s.mem[addr-s.base], nil
}
func (s *flatSegment) Read16(addr uint32) (uint16, error) {
	off := addr - s.base
	return binary.LittleEndian.Uint16(s.mem[off : off+2]), nil
}
func (s *flatSegment) Read32(addr uint32) (uint32, error) {
	off := addr - s.base
	return binary.LittleEndian.Uint32(s.mem[off : off+4]), nil
}
func (s *flatSegment) WriteByte(addr uint32, v byte) error {
	s.mem[addr-s.base] = v
	return nil
}
func (s *flatSegment) Write16(addr uint32, v uint16) error {
	off := addr - s.base
	binary.LittleEndian.PutUint16(s.mem[off:off+2], v)
	return nil
}
func (s *flatSegment) Write32(addr uint32, v uint32) error {
	off := addr - s.base
	binary.LittleEndian.PutUint32(s.mem[off:off+4], v)
	return nil
}

const (
	testCodeBase  = 0x1000
	testDataBase  = 0x2000
	testStackBase = 0x8000
)

// fakeExchanger echoes back canned responses in FIFO order, recording the
// requests it was sent for assertions.
type fakeExchanger struct {
	responses [][]byte
	requests  [][]byte
}

func (f *fakeExchanger) Exchange(req []byte) ([]byte, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fakeExchanger: no canned response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// fakeStorage is an in-memory Storage backend.
type fakeStorage struct {
	slots map[uint32][32]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{slots: make(map[uint32][32]byte)} }

func (f *fakeStorage) ReadSlot(slot uint32) ([32]byte, error) {
	return f.slots[slot], nil
}
func (f *fakeStorage) WriteSlot(slot uint32, data [32]byte) error {
	f.slots[slot] = data
	return nil
}

func newTestCPU(t *testing.T, h *Handler) (*vm.CPU, *flatSegment, *flatSegment) {
	t.Helper()
	code := newFlatSegment(testCodeBase, 64, false)
	data := newFlatSegment(testDataBase, 4096, true)
	stack := newFlatSegment(testStackBase, 4096, true)
	cpu := vm.NewCPU(testCodeBase, code, data, stack, h, &metrics.Counters{})
	return cpu, data, stack
}

func newTestHandler(t *testing.T, exch Exchanger) (*Handler, *fakeStorage) {
	t.Helper()
	storage := newFakeStorage()
	h, err := New(exch, storage, 4, 0xCAFEBABE, bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return h, storage
}

func TestGetDeviceProperty(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, _, _ := newTestCPU(t, h)
	cpu.Regs.Set(vm.RegT0, uint32(GetDeviceProperty))
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(0xCAFEBABE), cpu.Regs.Get(vm.RegA0))
}

func TestUnknownECALLEscalates(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, _, _ := newTestCPU(t, h)
	cpu.Regs.Set(vm.RegT0, 999)
	err := h.HandleECALL(cpu)
	require.ErrorIs(t, err, ErrUnknownECALL)
}

func TestStorageReadWriteRoundTrip(t *testing.T) {
	h, storage := newTestHandler(t, nil)
	cpu, data, _ := newTestCPU(t, h)

	var payload [32]byte
	copy(payload[:], bytes.Repeat([]byte{0x7}, 32))
	storage.slots[2] = payload

	const bufAddr = testDataBase
	cpu.Regs.Set(vm.RegT0, uint32(StorageRead))
	cpu.Regs.Set(vm.RegA0, 2)
	cpu.Regs.Set(vm.RegA1, bufAddr)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))
	require.Equal(t, payload[:], data.mem[:32])

	var newPayload [32]byte
	copy(newPayload[:], bytes.Repeat([]byte{0x9}, 32))
	copy(data.mem[32:64], newPayload[:])
	cpu.Regs.Set(vm.RegT0, uint32(StorageWrite))
	cpu.Regs.Set(vm.RegA0, 3)
	cpu.Regs.Set(vm.RegA1, bufAddr+32)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))
	require.Equal(t, newPayload, storage.slots[3])
}

func TestStorageReadOutOfRangeSlotFails(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, _, _ := newTestCPU(t, h)
	cpu.Regs.Set(vm.RegT0, uint32(StorageRead))
	cpu.Regs.Set(vm.RegA0, 99)
	cpu.Regs.Set(vm.RegA1, testDataBase)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(0), cpu.Regs.Get(vm.RegA0))
}

func TestHashRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, data, _ := newTestCPU(t, h)

	msg := []byte("vanadium")
	copy(data.mem[0:], msg)

	const ctxAddr = 0xABCD
	cpu.Regs.Set(vm.RegT0, uint32(HashInit))
	cpu.Regs.Set(vm.RegA0, ctxAddr)
	cpu.Regs.Set(vm.RegA1, 0) // HashSHA256
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))

	cpu.Regs.Set(vm.RegT0, uint32(HashUpdate))
	cpu.Regs.Set(vm.RegA0, ctxAddr)
	cpu.Regs.Set(vm.RegA1, testDataBase)
	cpu.Regs.Set(vm.RegA2, uint32(len(msg)))
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))

	const outAddr = testDataBase + 64
	cpu.Regs.Set(vm.RegT0, uint32(HashFinal))
	cpu.Regs.Set(vm.RegA0, ctxAddr)
	cpu.Regs.Set(vm.RegA1, outAddr)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))
	require.Len(t, h.hashCtxs, 0)

	digest := data.mem[64:96]
	require.NotEqual(t, make([]byte, 32), digest)
}

func TestHashFinalWithoutInitFails(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, _, _ := newTestCPU(t, h)
	cpu.Regs.Set(vm.RegT0, uint32(HashFinal))
	cpu.Regs.Set(vm.RegA0, 0x1234)
	cpu.Regs.Set(vm.RegA1, testDataBase)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(0), cpu.Regs.Get(vm.RegA0))
}

func TestXSendStreamsSendBuffer(t *testing.T) {
	exch := &fakeExchanger{responses: [][]byte{{}}}
	h, _ := newTestHandler(t, exch)
	cpu, data, _ := newTestCPU(t, h)

	msg := []byte("hello host")
	copy(data.mem[0:], msg)
	cpu.Regs.Set(vm.RegT0, uint32(XSend))
	cpu.Regs.Set(vm.RegA0, testDataBase)
	cpu.Regs.Set(vm.RegA1, uint32(len(msg)))
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))
	require.Len(t, exch.requests, 1)
}

func TestExitSetsHaltAndCode(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, _, _ := newTestCPU(t, h)
	cpu.Regs.Set(vm.RegT0, uint32(Exit))
	cpu.Regs.Set(vm.RegA0, 7)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, vm.HaltExit, cpu.Halt)
	require.Equal(t, uint32(7), cpu.ExitCode)
}

func TestDeriveSLIP21NodeRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, data, _ := newTestCPU(t, h)

	label := []byte("SLIP-0021")
	buf := append([]byte{byte(len(label))}, label...)
	copy(data.mem[0:], buf)

	const outAddr = testDataBase + 256
	cpu.Regs.Set(vm.RegT0, uint32(DeriveSLIP21Node))
	cpu.Regs.Set(vm.RegA0, testDataBase)
	cpu.Regs.Set(vm.RegA1, uint32(len(buf)))
	cpu.Regs.Set(vm.RegA2, outAddr)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(1), cpu.Regs.Get(vm.RegA0))
	require.NotEqual(t, make([]byte, 64), data.mem[256:320])
}

func TestDeriveSLIP21NodeRejectsSlashInLabel(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	cpu, data, _ := newTestCPU(t, h)

	label := []byte("bad/label")
	buf := append([]byte{byte(len(label))}, label...)
	copy(data.mem[0:], buf)

	cpu.Regs.Set(vm.RegT0, uint32(DeriveSLIP21Node))
	cpu.Regs.Set(vm.RegA0, testDataBase)
	cpu.Regs.Set(vm.RegA1, uint32(len(buf)))
	cpu.Regs.Set(vm.RegA2, testDataBase+256)
	require.NoError(t, h.HandleECALL(cpu))
	require.Equal(t, uint32(0), cpu.Regs.Get(vm.RegA0))
}
