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

package wire

import (
	"encoding/binary"
	"fmt"
)

// EventPayloadSize is the fixed width of a UX event's payload.
const EventPayloadSize = 16

// GetEventMessage is the device's request for the next UX event (button
// press, confirmation, rejection); it blocks until the user acts (spec
// §4.5, §5 "cancellation is exclusively user-driven").
type GetEventMessage struct{}

func (GetEventMessage) Encode() []byte { return []byte{byte(CmdGetEvent)} }

func DecodeGetEventMessage(b []byte) (GetEventMessage, error) {
	if len(b) != 1 || ClientCommandCode(b[0]) != CmdGetEvent {
		return GetEventMessage{}, fmt.Errorf("%w: malformed GetEventMessage", ErrProtocol)
	}
	return GetEventMessage{}, nil
}

// GetEventResponse carries the event code and its fixed-size payload.
type GetEventResponse struct {
	Code    uint32
	Payload [EventPayloadSize]byte
}

func (r GetEventResponse) Encode() []byte {
	buf := make([]byte, 4+EventPayloadSize)
	binary.BigEndian.PutUint32(buf, r.Code)
	copy(buf[4:], r.Payload[:])
	return buf
}

func DecodeGetEventResponse(b []byte) (GetEventResponse, error) {
	if len(b) != 4+EventPayloadSize {
		return GetEventResponse{}, fmt.Errorf("%w: malformed GetEventResponse", ErrProtocol)
	}
	r := GetEventResponse{Code: binary.BigEndian.Uint32(b[:4])}
	copy(r.Payload[:], b[4:])
	return r, nil
}

// SendBufferAck is the host's reply to a SendBufferMessage or
// SendBufferContinuedMessage frame. The device only needs to know the host
// received the frame before sending the next chunk or returning from the
// ECALL; it carries no fields.
type SendBufferAck struct{}

func (SendBufferAck) Encode() []byte { return nil }

func DecodeSendBufferAck(b []byte) (SendBufferAck, error) {
	if len(b) != 0 {
		return SendBufferAck{}, fmt.Errorf("%w: unexpected SendBufferAck payload", ErrProtocol)
	}
	return SendBufferAck{}, nil
}
