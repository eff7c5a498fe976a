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

package host

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vanadium-vm/vanadium/wire"
)

// TCPTransport carries APDUs to an emulator listening on a TCP socket (the
// VAPP_ADDRESS override), length-prefix framing each Command/Response since
// neither self-delimits its length the way an APDU's single-byte Lc would
// on a physical link capped at 255 bytes of data.
type TCPTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// DialTCP connects to addr (host:port) with the given per-exchange
// deadline. A zero timeout disables deadlines.
func DialTCP(addr string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("host: dialing %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn, timeout: timeout}, nil
}

func (t *TCPTransport) Exchange(cmd wire.Command) (wire.Response, error) {
	if t.timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
			return wire.Response{}, err
		}
	}
	if err := writeFrame(t.conn, cmd.Encode()); err != nil {
		return wire.Response{}, fmt.Errorf("host: writing command: %w", err)
	}
	respBytes, err := readFrame(t.conn)
	if err != nil {
		return wire.Response{}, fmt.Errorf("host: reading response: %w", err)
	}
	return wire.DecodeResponse(respBytes)
}

func (t *TCPTransport) Close() error { return t.conn.Close() }

func writeFrame(w io.Writer, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(length[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
