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

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/internal/metrics"
)

const (
	testCodeBase  = 0x1000
	testDataBase  = 0x2000
	testStackBase = 0x8000
)

func newTestCPU(program []uint32) (*CPU, *flatSegment, *flatSegment) {
	code := newFlatSegment(testCodeBase, 4096, false)
	for i, w := range program {
		code.storeWord(testCodeBase+uint32(i*4), w)
	}
	data := newFlatSegment(testDataBase, 4096, true)
	stack := newFlatSegment(testStackBase, 4096, true)
	cpu := NewCPU(testCodeBase, code, data, stack, nil, &metrics.Counters{})
	return cpu, data, stack
}

func runN(t *testing.T, cpu *CPU, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, cpu.Step())
	}
}

func TestAddiAndAdd(t *testing.T) {
	// addi x1, x0, 5
	// addi x2, x0, 7
	// add  x3, x1, x2
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 5),
		encodeI(opOpImm, 0, 2, 0, 7),
		encodeR(opOp, 0, 0, 3, 1, 2),
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 3)
	require.Equal(t, uint32(12), cpu.Regs.Get(3))
	require.Equal(t, uint64(3), cpu.Metrics.InstructionsRetired())
}

func TestX0IsHardwiredZero(t *testing.T) {
	// addi x0, x0, 42 ; x0 must remain 0
	prog := []uint32{encodeI(opOpImm, 0, 0, 0, 42)}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 1)
	require.Equal(t, uint32(0), cpu.Regs.Get(0))
}

func TestSubAndComparisons(t *testing.T) {
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 3),   // addi x1, x0, 3
		encodeI(opOpImm, 0, 2, 0, 9),   // addi x2, x0, 9
		encodeR(opOp, 0, 0x20, 3, 2, 1), // sub x3, x2, x1 = 6
		encodeR(opOp, 2, 0, 4, 1, 2),   // slt x4, x1, x2 = 1
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 4)
	require.Equal(t, uint32(6), cpu.Regs.Get(3))
	require.Equal(t, uint32(1), cpu.Regs.Get(4))
}

func TestLuiAndAuipc(t *testing.T) {
	prog := []uint32{
		encodeU(opLui, 1, 0x12345000),
		encodeU(opAuipc, 2, 0x1000),
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 2)
	require.Equal(t, uint32(0x12345000), cpu.Regs.Get(1))
	require.Equal(t, testCodeBase+4+0x1000, cpu.Regs.Get(2))
}

func TestBranchTaken(t *testing.T) {
	// addi x1, x0, 1
	// beq x1, x1, +8   (skip the next instruction)
	// addi x2, x0, 99  (skipped)
	// addi x3, x0, 1   (landed here)
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 1),
		encodeB(opBranch, 0, 1, 1, 8),
		encodeI(opOpImm, 0, 2, 0, 99),
		encodeI(opOpImm, 0, 3, 0, 1),
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 3)
	require.Equal(t, uint32(0), cpu.Regs.Get(2))
	require.Equal(t, uint32(1), cpu.Regs.Get(3))
}

func TestJalAndJalr(t *testing.T) {
	// jal x1, +8      ; x1 = PC+4, jump to PC+8
	// addi x5, x0, 99 ; skipped
	// addi x6, x0, 7  ; landed here
	// jalr x7, 0(x1)  ; x7 = PC+4, jump back to x1
	prog := []uint32{
		encodeJ(opJal, 1, 8),
		encodeI(opOpImm, 0, 5, 0, 99), // skipped
		encodeI(opOpImm, 0, 6, 0, 7),  // landed here: x6 = 7
		encodeI(opJalr, 0, 7, 1, 0),
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 2)
	require.Equal(t, uint32(testCodeBase+4), cpu.Regs.Get(1))
	require.Equal(t, uint32(0), cpu.Regs.Get(5))
	require.Equal(t, uint32(7), cpu.Regs.Get(6))
	runN(t, cpu, 1)
	require.Equal(t, uint32(testCodeBase+16), cpu.Regs.Get(7))
	require.Equal(t, uint32(testCodeBase+4), cpu.PC)
}

func TestLoadStoreWordRoundTrip(t *testing.T) {
	// x2 holds the data-segment base; store 0x55 through it, then load it back.
	prog := []uint32{
		encodeU(opLui, 2, int32(testDataBase)), // lui x2, testDataBase
		encodeI(opOpImm, 0, 1, 0, 0x55),        // addi x1, x0, 0x55
		encodeS(opStore, 2, 2, 1, 0),           // sw x1, 0(x2)
		encodeI(opLoad, 2, 3, 2, 0),             // lw x3, 0(x2)
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 4)
	require.Equal(t, uint32(0x55), cpu.Regs.Get(3))
}

func TestStoreToCodeSegmentIsRejected(t *testing.T) {
	prog := []uint32{
		encodeU(opLui, 2, testCodeBase),
		encodeI(opOpImm, 0, 1, 0, 1),
		encodeS(opStore, 2, 2, 1, 0), // sw x1, 0(x2) where x2 points into Code
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 2)
	err := cpu.Step()
	require.ErrorIs(t, err, ErrWriteToReadOnly)
}

func TestMulAndDiv(t *testing.T) {
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 6),
		encodeI(opOpImm, 0, 2, 0, 7),
		encodeR(opOp, 0, 0x01, 3, 1, 2), // mul x3, x1, x2 = 42
		encodeR(opOp, 4, 0x01, 4, 2, 1), // div x4, x2, x1 = 1
		encodeR(opOp, 6, 0x01, 5, 2, 1), // rem x5, x2, x1 = 1
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 5)
	require.Equal(t, uint32(42), cpu.Regs.Get(3))
	require.Equal(t, uint32(1), cpu.Regs.Get(4))
	require.Equal(t, uint32(1), cpu.Regs.Get(5))
}

func TestDivByZeroReturnsAllOnes(t *testing.T) {
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 5),
		encodeI(opOpImm, 0, 2, 0, 0),
		encodeR(opOp, 4, 0x01, 3, 1, 2), // div x3, x1, x2(=0)
		encodeR(opOp, 5, 0x01, 4, 1, 2), // divu x4, x1, x2(=0)
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 4)
	require.Equal(t, uint32(0xFFFFFFFF), cpu.Regs.Get(3))
	require.Equal(t, uint32(0xFFFFFFFF), cpu.Regs.Get(4))
}

func TestRemByZeroReturnsDividend(t *testing.T) {
	prog := []uint32{
		encodeI(opOpImm, 0, 1, 0, 9),
		encodeI(opOpImm, 0, 2, 0, 0),
		encodeR(opOp, 6, 0x01, 3, 1, 2), // rem x3, x1, x2(=0)
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 3)
	require.Equal(t, uint32(9), cpu.Regs.Get(3))
}

func TestDivOverflowReturnsDividend(t *testing.T) {
	prog := []uint32{
		encodeU(opLui, 1, -0x80000000), // x1 = 0x80000000 (INT32_MIN)
		encodeI(opOpImm, 0, 2, 0, -1),  // x2 = -1
		encodeR(opOp, 4, 0x01, 3, 1, 2), // div x3, x1, x2
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 3)
	require.Equal(t, uint32(0x80000000), cpu.Regs.Get(3))
}

func TestUnalignedAccessIsFatal(t *testing.T) {
	prog := []uint32{
		encodeU(opLui, 2, int32(testDataBase)),
		encodeI(opOpImm, 0, 1, 2, 1), // addi x1, x2, 1 -> misaligned address
		encodeI(opLoad, 2, 3, 1, 0),  // lw x3, 0(x1) where x1 is odd
	}
	cpu, _, _ := newTestCPU(prog)
	runN(t, cpu, 2)
	err := cpu.Step()
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestEbreakIsFatal(t *testing.T) {
	prog := []uint32{encodeI(opSystem, 0, 0, 0, 0x001)}
	cpu, _, _ := newTestCPU(prog)
	err := cpu.Step()
	require.ErrorIs(t, err, ErrBreakpoint)
}

func TestIllegalOpcodeIsFatal(t *testing.T) {
	cpu, _, _ := newTestCPU([]uint32{0x00000000})
	err := cpu.Step()
	require.Error(t, err)
}

func TestUnalignedPCIsFatal(t *testing.T) {
	cpu, _, _ := newTestCPU([]uint32{encodeI(opOpImm, 0, 1, 0, 1)})
	cpu.PC += 1
	err := cpu.Step()
	require.ErrorIs(t, err, ErrUnalignedPC)
}
