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
	"errors"

	"github.com/vanadium-vm/vanadium/internal/metrics"
)

// Register indices used by the RV32 calling convention for ECALL arguments.
const (
	RegT0 uint8 = 5
	RegA0 uint8 = 10
	RegA1 uint8 = 11
	RegA2 uint8 = 12
	RegA3 uint8 = 13
	RegA4 uint8 = 14
	RegA5 uint8 = 15
	RegA6 uint8 = 16
	RegA7 uint8 = 17
)

// ErrUnalignedPC is returned when the program counter is not 4-byte
// aligned at fetch time.
var ErrUnalignedPC = errors.New("vm: unaligned program counter")

// ErrIllegalInstruction is returned for an unrecognized opcode/funct
// combination.
var ErrIllegalInstruction = errors.New("vm: illegal instruction")

// ErrBreakpoint is returned when EBREAK executes.
var ErrBreakpoint = errors.New("vm: EBREAK executed")

// ErrHalted is returned by Step when called on a CPU that has already
// exited or faulted.
var ErrHalted = errors.New("vm: CPU already halted")

// ECALLHandler dispatches an ECALL: t0 carries the ECALL code, a0..a7 carry
// arguments per the standard RV32 calling convention. A
// handler that needs to suspend for host I/O does so through the
// Exchanger it was constructed with; HandleECALL blocks until that
// exchange completes and then returns normally, writing its result to a0
// or to guest memory as appropriate.
type ECALLHandler interface {
	HandleECALL(cpu *CPU) error
}

// HaltReason records why Run stopped looping.
type HaltReason uint8

const (
	// HaltNone means the CPU has not halted; Run is still making progress.
	HaltNone HaltReason = iota
	// HaltExit means the guest issued the `exit` ECALL.
	HaltExit
	// HaltFault means an unrecoverable VM-level error occurred (spec
	// §7 VMRuntimeError).
	HaltFault
	// HaltPanic means the guest issued the `fatal` ECALL.
	HaltPanic
)

// CPU is the RV32IM interpreter: 32 registers, a program counter, and three
// backing memory segments.
type CPU struct {
	Regs  Registers
	PC    uint32
	Code  Segment
	Data  Segment
	Stack Segment

	ECALL   ECALLHandler
	Metrics *metrics.Counters

	Halt     HaltReason
	ExitCode uint32
	PanicMsg string
	Err      error
}

// NewCPU constructs a CPU at the given entrypoint over the three segments.
func NewCPU(entrypoint uint32, code, data, stack Segment, ecall ECALLHandler, m *metrics.Counters) *CPU {
	return &CPU{
		PC:      entrypoint,
		Code:    code,
		Data:    data,
		Stack:   stack,
		ECALL:   ecall,
		Metrics: m,
	}
}

// Run steps the CPU until it halts (exit, fault, or panic) or an ECALL
// handler returns an error that is not itself a halt (propagated to the
// caller as a fault). Run returns once Halt != HaltNone.
func (cpu *CPU) Run() error {
	for cpu.Halt == HaltNone {
		if err := cpu.Step(); err != nil {
			cpu.fault(err)
			return err
		}
	}
	return cpu.Err
}

// Step fetches, decodes, and executes exactly one instruction.
func (cpu *CPU) Step() error {
	if cpu.Halt != HaltNone {
		return ErrHalted
	}
	if cpu.PC%4 != 0 {
		return ErrUnalignedPC
	}
	word, err := cpu.Code.Read32(cpu.PC)
	if err != nil {
		return err
	}
	if err := cpu.execute(word); err != nil {
		return err
	}
	if cpu.Metrics != nil {
		cpu.Metrics.InstructionRetired()
	}
	return nil
}

func (cpu *CPU) fault(err error) {
	if cpu.Halt == HaltNone {
		cpu.Halt = HaltFault
		cpu.Err = err
	}
}

// segmentFor resolves which segment owns addr for a size-byte access,
// trying Data and Stack before Code since the overwhelming majority of
// runtime accesses target mutable memory.
func (cpu *CPU) segmentFor(addr uint32, size uint32) (Segment, error) {
	for _, seg := range [...]Segment{cpu.Data, cpu.Stack, cpu.Code} {
		if seg == nil {
			continue
		}
		if inRange(seg.Base(), seg.End(), addr, size) {
			return seg, nil
		}
	}
	return nil, ErrOutOfRange
}

func (cpu *CPU) execute(w uint32) error {
	advancePC := true
	op := opcode(w)

	switch op {
	case opLui:
		cpu.Regs.Set(rd(w), uint32(immU(w)))

	case opAuipc:
		cpu.Regs.Set(rd(w), cpu.PC+uint32(immU(w)))

	case opJal:
		target := cpu.PC + uint32(immJ(w))
		cpu.Regs.Set(rd(w), cpu.PC+4)
		cpu.PC = target
		advancePC = false

	case opJalr:
		base := cpu.Regs.Get(rs1(w))
		target := (base + uint32(immI(w))) &^ 1
		link := cpu.PC + 4
		cpu.Regs.Set(rd(w), link)
		cpu.PC = target
		advancePC = false

	case opBranch:
		if cpu.execBranch(w) {
			cpu.PC = cpu.PC + uint32(immB(w))
			advancePC = false
		}

	case opLoad:
		if err := cpu.execLoad(w); err != nil {
			return err
		}

	case opStore:
		if err := cpu.execStore(w); err != nil {
			return err
		}

	case opOpImm:
		cpu.execOpImm(w)

	case opOp:
		if err := cpu.execOp(w); err != nil {
			return err
		}

	case opMiscMem:
		// FENCE and FENCE.I: single-hart, in-order execution makes these
		// no-ops.

	case opSystem:
		imm := immI(w)
		switch imm {
		case 0x000: // ECALL
			if cpu.ECALL == nil {
				return errors.New("vm: ECALL with no handler installed")
			}
			if err := cpu.ECALL.HandleECALL(cpu); err != nil {
				return err
			}
		case 0x001: // EBREAK
			return ErrBreakpoint
		default:
			return ErrIllegalInstruction
		}

	default:
		return ErrIllegalInstruction
	}

	if advancePC {
		cpu.PC += 4
	}
	return nil
}

func (cpu *CPU) execBranch(w uint32) bool {
	a := cpu.Regs.Get(rs1(w))
	b := cpu.Regs.Get(rs2(w))
	switch funct3(w) {
	case 0x0: // BEQ
		return a == b
	case 0x1: // BNE
		return a != b
	case 0x4: // BLT
		return int32(a) < int32(b)
	case 0x5: // BGE
		return int32(a) >= int32(b)
	case 0x6: // BLTU
		return a < b
	case 0x7: // BGEU
		return a >= b
	default:
		return false
	}
}

func (cpu *CPU) execLoad(w uint32) error {
	addr := cpu.Regs.Get(rs1(w)) + uint32(immI(w))
	f3 := funct3(w)
	var size uint32
	switch f3 {
	case 0x0, 0x4: // LB, LBU
		size = 1
	case 0x1, 0x5: // LH, LHU
		size = 2
	case 0x2: // LW
		size = 4
	default:
		return ErrIllegalInstruction
	}
	if size == 2 && addr%2 != 0 {
		return ErrMisaligned
	}
	if size == 4 && addr%4 != 0 {
		return ErrMisaligned
	}
	seg, err := cpu.segmentFor(addr, size)
	if err != nil {
		return err
	}
	switch f3 {
	case 0x0: // LB
		v, err := seg.ReadByte(addr)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), uint32(int32(int8(v))))
	case 0x4: // LBU
		v, err := seg.ReadByte(addr)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), uint32(v))
	case 0x1: // LH
		v, err := seg.Read16(addr)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), uint32(int32(int16(v))))
	case 0x5: // LHU
		v, err := seg.Read16(addr)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), uint32(v))
	case 0x2: // LW
		v, err := seg.Read32(addr)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), v)
	}
	return nil
}

func (cpu *CPU) execStore(w uint32) error {
	addr := cpu.Regs.Get(rs1(w)) + uint32(immS(w))
	val := cpu.Regs.Get(rs2(w))
	f3 := funct3(w)
	var size uint32
	switch f3 {
	case 0x0: // SB
		size = 1
	case 0x1: // SH
		size = 2
	case 0x2: // SW
		size = 4
	default:
		return ErrIllegalInstruction
	}
	if size == 2 && addr%2 != 0 {
		return ErrMisaligned
	}
	if size == 4 && addr%4 != 0 {
		return ErrMisaligned
	}
	seg, err := cpu.segmentFor(addr, size)
	if err != nil {
		return err
	}
	if !seg.Writable() {
		return ErrWriteToReadOnly
	}
	switch f3 {
	case 0x0:
		return seg.WriteByte(addr, byte(val))
	case 0x1:
		return seg.Write16(addr, uint16(val))
	case 0x2:
		return seg.Write32(addr, val)
	}
	return nil
}

func (cpu *CPU) execOpImm(w uint32) {
	a := cpu.Regs.Get(rs1(w))
	imm := immI(w)
	f3 := funct3(w)
	var result uint32
	switch f3 {
	case 0x0: // ADDI
		result = a + uint32(imm)
	case 0x2: // SLTI
		if int32(a) < imm {
			result = 1
		}
	case 0x3: // SLTIU
		if a < uint32(imm) {
			result = 1
		}
	case 0x4: // XORI
		result = a ^ uint32(imm)
	case 0x6: // ORI
		result = a | uint32(imm)
	case 0x7: // ANDI
		result = a & uint32(imm)
	case 0x1: // SLLI
		result = a << (uint32(imm) & 0x1f)
	case 0x5: // SRLI / SRAI, distinguished by bit 30 of the immediate word
		shamt := uint32(imm) & 0x1f
		if funct7(w)&0x20 != 0 {
			result = uint32(int32(a) >> shamt)
		} else {
			result = a >> shamt
		}
	}
	cpu.Regs.Set(rd(w), result)
}

func (cpu *CPU) execOp(w uint32) error {
	a := cpu.Regs.Get(rs1(w))
	b := cpu.Regs.Get(rs2(w))
	f3 := funct3(w)
	f7 := funct7(w)

	if f7 == 0x01 {
		// M extension.
		result, err := mulDivOp(f3, a, b)
		if err != nil {
			return err
		}
		cpu.Regs.Set(rd(w), result)
		return nil
	}

	var result uint32
	switch f3 {
	case 0x0: // ADD / SUB
		if f7&0x20 != 0 {
			result = a - b
		} else {
			result = a + b
		}
	case 0x1: // SLL
		result = a << (b & 0x1f)
	case 0x2: // SLT
		if int32(a) < int32(b) {
			result = 1
		}
	case 0x3: // SLTU
		if a < b {
			result = 1
		}
	case 0x4: // XOR
		result = a ^ b
	case 0x5: // SRL / SRA
		shamt := b & 0x1f
		if f7&0x20 != 0 {
			result = uint32(int32(a) >> shamt)
		} else {
			result = a >> shamt
		}
	case 0x6: // OR
		result = a | b
	case 0x7: // AND
		result = a & b
	default:
		return ErrIllegalInstruction
	}
	cpu.Regs.Set(rd(w), result)
	return nil
}

// mulDivOp implements the M extension with RISC-V's overflow conventions
//: DIV by zero returns all-ones, overflow on signed DIV
// returns the dividend, REM by zero returns the dividend.
func mulDivOp(f3 uint32, a, b uint32) (uint32, error) {
	switch f3 {
	case 0x0: // MUL
		return a * b, nil
	case 0x1: // MULH (signed x signed)
		p := int64(int32(a)) * int64(int32(b))
		return uint32(p >> 32), nil
	case 0x2: // MULHSU (signed x unsigned)
		p := int64(int32(a)) * int64(int64(b))
		return uint32(p >> 32), nil
	case 0x3: // MULHU (unsigned x unsigned)
		p := uint64(a) * uint64(b)
		return uint32(p >> 32), nil
	case 0x4: // DIV
		sa, sb := int32(a), int32(b)
		if sb == 0 {
			return 0xFFFFFFFF, nil
		}
		if sa == -2147483648 && sb == -1 {
			return uint32(sa), nil
		}
		return uint32(sa / sb), nil
	case 0x5: // DIVU
		if b == 0 {
			return 0xFFFFFFFF, nil
		}
		return a / b, nil
	case 0x6: // REM
		sa, sb := int32(a), int32(b)
		if sb == 0 {
			return uint32(sa), nil
		}
		if sa == -2147483648 && sb == -1 {
			return 0, nil
		}
		return uint32(sa % sb), nil
	case 0x7: // REMU
		if b == 0 {
			return a, nil
		}
		return a % b, nil
	default:
		return 0, ErrIllegalInstruction
	}
}
