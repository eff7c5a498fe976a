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

import "fmt"

// StatusWord is the 2-byte trailer on every device response.
type StatusWord uint16

const (
	StatusOK                   StatusWord = 0x9000
	StatusDeny                 StatusWord = 0x6985
	StatusStoreFull            StatusWord = 0x6A84
	StatusIncorrectData        StatusWord = 0x6A80
	StatusWrongP1P2            StatusWord = 0x6A86
	StatusInsNotSupported      StatusWord = 0x6D00
	StatusClaNotSupported      StatusWord = 0x6E00
	StatusVMRuntimeError       StatusWord = 0xB020
	StatusVAppPanic            StatusWord = 0xB021
	StatusSignatureFail        StatusWord = 0xB008
	StatusInterruptedExecution StatusWord = 0xEEEE
)

func (s StatusWord) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDeny:
		return "Deny"
	case StatusStoreFull:
		return "StoreFull"
	case StatusIncorrectData:
		return "IncorrectData"
	case StatusWrongP1P2:
		return "WrongP1P2"
	case StatusInsNotSupported:
		return "InsNotSupported"
	case StatusClaNotSupported:
		return "ClaNotSupported"
	case StatusVMRuntimeError:
		return "VMRuntimeError"
	case StatusVAppPanic:
		return "VAppPanic"
	case StatusSignatureFail:
		return "SignatureFail"
	case StatusInterruptedExecution:
		return "InterruptedExecution"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", uint16(s))
	}
}

// CLA is the fixed class byte for every Vanadium APDU.
const CLA byte = 0xE0

// Ins enumerates the recognized instruction bytes.
type Ins byte

const (
	InsGetAppInfo  Ins = 0x00
	InsRegisterApp Ins = 0x02
	InsStartVApp   Ins = 0x03
	InsContinue    Ins = 0xff
	InsGetMetrics  Ins = 0xf0
)

// Command is a decoded APDU command header plus its data payload.
type Command struct {
	CLA  byte
	INS  Ins
	P1   byte
	P2   byte
	Data []byte
}

// Encode serializes a Command as CLA|INS|P1|P2|Lc|Data. Lc is a single byte
// (payloads here never exceed 255 bytes; larger payloads are chunked at a
// higher layer per MaxChunkBytes).
func (c Command) Encode() []byte {
	buf := make([]byte, 5+len(c.Data))
	buf[0] = c.CLA
	buf[1] = byte(c.INS)
	buf[2] = c.P1
	buf[3] = c.P2
	buf[4] = byte(len(c.Data))
	copy(buf[5:], c.Data)
	return buf
}

// DecodeCommand parses the encoding produced by Encode.
func DecodeCommand(b []byte) (Command, error) {
	if len(b) < 5 {
		return Command{}, fmt.Errorf("wire: command too short (%d bytes)", len(b))
	}
	lc := int(b[4])
	if len(b) != 5+lc {
		return Command{}, fmt.Errorf("wire: command length mismatch: header says %d, have %d", lc, len(b)-5)
	}
	return Command{CLA: b[0], INS: Ins(b[1]), P1: b[2], P2: b[3], Data: append([]byte(nil), b[5:]...)}, nil
}

// Response is a decoded device response: a body plus the trailing status
// word.
type Response struct {
	Body   []byte
	Status StatusWord
}

// Encode serializes a Response as Body || StatusWord (big-endian).
func (r Response) Encode() []byte {
	buf := make([]byte, len(r.Body)+2)
	copy(buf, r.Body)
	buf[len(buf)-2] = byte(r.Status >> 8)
	buf[len(buf)-1] = byte(r.Status)
	return buf
}

// DecodeResponse parses the encoding produced by Encode.
func DecodeResponse(b []byte) (Response, error) {
	if len(b) < 2 {
		return Response{}, fmt.Errorf("wire: response too short (%d bytes)", len(b))
	}
	sw := StatusWord(uint16(b[len(b)-2])<<8 | uint16(b[len(b)-1]))
	return Response{Body: append([]byte(nil), b[:len(b)-2]...), Status: sw}, nil
}
