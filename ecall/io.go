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
	"fmt"

	"github.com/vanadium-vm/vanadium/vm"
	"github.com/vanadium-vm/vanadium/wire"
)

// sendBuffer streams data to the host as one or more frames of the given
// type, suspending at each frame boundary exactly like a page fault (spec
// §5 suspension point (c)). The host acks every frame before the device
// sends the next one or returns from the ECALL.
func (h *Handler) sendBuffer(bufType wire.BufferType, data []byte) error {
	chunks := wire.ChunkBuffer(data)
	first := wire.SendBufferMessage{Type: bufType, TotalLength: uint32(len(data)), Chunk: chunks[0]}
	respBytes, err := h.exch.Exchange(first.Encode())
	if err != nil {
		return fmt.Errorf("ecall: SendBuffer exchange: %w", err)
	}
	if _, err := wire.DecodeSendBufferAck(respBytes); err != nil {
		return err
	}
	for _, c := range chunks[1:] {
		cont := wire.SendBufferContinuedMessage{Chunk: c}
		respBytes, err := h.exch.Exchange(cont.Encode())
		if err != nil {
			return fmt.Errorf("ecall: SendBufferContinued exchange: %w", err)
		}
		if _, err := wire.DecodeSendBufferAck(respBytes); err != nil {
			return err
		}
	}
	return nil
}

// receiveBuffer reads one full host->device message, looping
// ReceiveBuffer requests until the host reports no bytes remaining (spec
// §4.4, §5: "each xrecv returns exactly one full message").
func (h *Handler) receiveBuffer() ([]byte, error) {
	var out []byte
	for {
		req := wire.ReceiveBufferMessage{}
		respBytes, err := h.exch.Exchange(req.Encode())
		if err != nil {
			return nil, fmt.Errorf("ecall: ReceiveBuffer exchange: %w", err)
		}
		resp, err := wire.DecodeReceiveBufferResponse(respBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Chunk...)
		if resp.RemainingLength == 0 {
			return out, nil
		}
	}
}

// doExit implements `exit(status:i32)`: the caller (device run loop)
// observes cpu.Halt == HaltExit and cpu.ExitCode after this returns.
func (h *Handler) doExit(cpu *vm.CPU) error {
	cpu.Halt = vm.HaltExit
	cpu.ExitCode = cpu.Regs.Get(vm.RegA0)
	return nil
}

// doFatal implements `fatal(msg_ptr, len)`: streams the message as a Panic
// buffer, then halts with HaltPanic.
func (h *Handler) doFatal(cpu *vm.CPU) error {
	ptr := cpu.Regs.Get(vm.RegA0)
	length := cpu.Regs.Get(vm.RegA1)
	msg, err := cpu.ReadBuffer(ptr, length)
	if err != nil {
		return err
	}
	if err := h.sendBuffer(wire.BufferPanic, msg); err != nil {
		return err
	}
	cpu.Halt = vm.HaltPanic
	cpu.PanicMsg = string(msg)
	return nil
}

// doXSend implements `xsend(buf, len)`.
func (h *Handler) doXSend(cpu *vm.CPU) error {
	ptr := cpu.Regs.Get(vm.RegA0)
	length := cpu.Regs.Get(vm.RegA1)
	msg, err := cpu.ReadBuffer(ptr, length)
	if err != nil {
		return err
	}
	if err := h.sendBuffer(wire.BufferVAppMessage, msg); err != nil {
		return err
	}
	return ok(cpu)
}

// doXRecv implements `xrecv(buf, max)`: on success a0 carries the number of
// bytes written (0 on failure, e.g. the message exceeds max).
func (h *Handler) doXRecv(cpu *vm.CPU) error {
	ptr := cpu.Regs.Get(vm.RegA0)
	max := cpu.Regs.Get(vm.RegA1)
	msg, err := h.receiveBuffer()
	if err != nil {
		return err
	}
	if uint32(len(msg)) > max {
		return fail(cpu)
	}
	if err := cpu.WriteBuffer(ptr, msg); err != nil {
		return err
	}
	cpu.Regs.Set(vm.RegA0, uint32(len(msg)))
	return nil
}

// doPrint implements `print(buf, len)`.
func (h *Handler) doPrint(cpu *vm.CPU) error {
	ptr := cpu.Regs.Get(vm.RegA0)
	length := cpu.Regs.Get(vm.RegA1)
	msg, err := cpu.ReadBuffer(ptr, length)
	if err != nil {
		return err
	}
	return h.sendBuffer(wire.BufferPrint, msg)
}

// doGetEvent implements `get_event(evt_ptr)`: blocks until the next UX
// event, writes the fixed 16-byte payload to evt_ptr, and returns the
// event code in a0.
func (h *Handler) doGetEvent(cpu *vm.CPU) error {
	evtPtr := cpu.Regs.Get(vm.RegA0)
	req := wire.GetEventMessage{}
	respBytes, err := h.exch.Exchange(req.Encode())
	if err != nil {
		return fmt.Errorf("ecall: GetEvent exchange: %w", err)
	}
	resp, err := wire.DecodeGetEventResponse(respBytes)
	if err != nil {
		return err
	}
	if err := cpu.WriteBuffer(evtPtr, resp.Payload[:]); err != nil {
		return err
	}
	cpu.Regs.Set(vm.RegA0, resp.Code)
	return nil
}

// doShowPage implements `show_page(desc, len)`.
func (h *Handler) doShowPage(cpu *vm.CPU) error {
	return h.showWrappedUX(cpu, wire.BufferShowPage)
}

// doShowStep implements `show_step(desc, len)`.
func (h *Handler) doShowStep(cpu *vm.CPU) error {
	return h.showWrappedUX(cpu, wire.BufferShowStep)
}

func (h *Handler) showWrappedUX(cpu *vm.CPU, bufType wire.BufferType) error {
	ptr := cpu.Regs.Get(vm.RegA0)
	length := cpu.Regs.Get(vm.RegA1)
	desc, err := cpu.ReadBuffer(ptr, length)
	if err != nil {
		return err
	}
	if err := h.sendBuffer(bufType, desc); err != nil {
		return err
	}
	return ok(cpu)
}
