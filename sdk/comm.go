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

// Exit terminates the V-App with the given status; it never returns.
func Exit(status uint32) {
	trap(codeExit, status, 0, 0, 0, 0, 0, 0)
	panic("sdk: exit ecall returned")
}

// Fatal aborts the V-App, surfacing msg to the host as a panic message.
// Like Exit, it never returns.
func Fatal(msg string) {
	b := []byte(msg)
	trap(codeFatal, ptrOf(b), uint32(len(b)), 0, 0, 0, 0, 0)
	panic("sdk: fatal ecall returned")
}

// Send delivers one full message to the host side of the V-App's own
// application protocol. Send may suspend the V-App multiple times (once
// per wire frame) before returning.
func Send(msg []byte) {
	trap(codeXSend, ptrOf(msg), uint32(len(msg)), 0, 0, 0, 0, 0)
}

// Recv blocks for the host's next application message, writing it into
// buf. The ECALL ABI can't distinguish "empty message delivered" from
// "message didn't fit buf" (both leave a0=0), so a V-App that needs that
// distinction should size buf generously or prefix its own messages with a
// length.
func Recv(buf []byte) (n int) {
	return int(trap(codeXRecv, ptrOf(buf), uint32(len(buf)), 0, 0, 0, 0, 0))
}

// Print streams msg to the host as a diagnostic line. Intended for
// development builds; a production V-App should prefer Send for anything
// the counterparty needs to act on.
func Print(msg string) {
	b := []byte(msg)
	trap(codePrint, ptrOf(b), uint32(len(b)), 0, 0, 0, 0, 0)
}
