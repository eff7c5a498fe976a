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

package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/vanadium-vm/vanadium/host/cliui"
	"github.com/vanadium-vm/vanadium/wire"
)

// cliSource feeds the V-App's xrecv ECALL from stdin: each line, hex
// decoded, becomes one application message. This is intentionally the
// simplest possible MessageSource; a real integration would swap it for
// whatever transport carries the V-App's own protocol.
type cliSource struct {
	scanner *bufio.Scanner
}

func (s *cliSource) NextMessage(ctx context.Context) ([]byte, error) {
	if s.scanner == nil {
		s.scanner = bufio.NewScanner(os.Stdin)
	}
	type result struct {
		data []byte
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		if !s.scanner.Scan() {
			resultCh <- result{nil, s.scanner.Err()}
			return
		}
		data, err := hex.DecodeString(s.scanner.Text())
		resultCh <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.data, r.err
	}
}

// cliSink prints every buffer the V-App sends to the UI: application
// messages in hex, panic/print lines as text, and wrapped UX pages as a
// raw hex blob (a real dashboard would decode and render them).
type cliSink struct {
	ui *cliui.UI
}

func (s *cliSink) HandleBuffer(kind wire.BufferType, data []byte) error {
	switch kind {
	case wire.BufferVAppMessage:
		s.ui.Info("<< %s", hex.EncodeToString(data))
	case wire.BufferPanic:
		s.ui.Failure("panic: %s", string(data))
	case wire.BufferPrint:
		s.ui.Info("%s", string(data))
	case wire.BufferShowPage, wire.BufferShowStep:
		s.ui.Info("ux: %s", hex.EncodeToString(data))
	default:
		return fmt.Errorf("cliSink: unexpected buffer kind %v", kind)
	}
	return nil
}

// cliUX prompts the operator on stdin/stdout for every UX event a running
// V-App blocks on (get_event): type "y" to confirm, anything else to
// reject. It's a stand-in for the device's own button/touchscreen UX
// shell, which this CLI host doesn't otherwise emulate.
type cliUX struct {
	ui *cliui.UI
}

const (
	eventConfirmed uint32 = iota
	eventRejected
)

func (u *cliUX) NextEvent(ctx context.Context) (uint32, [wire.EventPayloadSize]byte, error) {
	ok, err := u.ui.Confirm(cliui.ApprovalPrompt{Title: "V-App is waiting for input"})
	var payload [wire.EventPayloadSize]byte
	if err != nil {
		return 0, payload, err
	}
	if ok {
		return eventConfirmed, payload, nil
	}
	return eventRejected, payload, nil
}
