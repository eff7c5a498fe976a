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

// Command vanadium-simdevice emulates a Vanadium device over a TCP socket,
// for exercising vanadium-host and V-Apps without real hardware.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/vanadium-vm/vanadium/device"
	"github.com/vanadium-vm/vanadium/host/cliui"
	"github.com/vanadium-vm/vanadium/wire"
)

var (
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "TCP address to emulate the device on",
		Value: "127.0.0.1:9999",
	}
	autoApproveFlag = cli.BoolFlag{
		Name:  "auto-approve",
		Usage: "approve every registration and in-run prompt without asking",
	}
	storageSlotsFlag = cli.UintFlag{
		Name:  "storage-slots",
		Usage: "number of 32-byte storage slots available to a running V-App",
		Value: 16,
	}
	devicePropertyFlag = cli.UintFlag{
		Name:  "device-property",
		Usage: "opaque value returned by get_device_property",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "vanadium-simdevice"
	app.Usage = "in-process Vanadium device emulator, reachable over TCP"
	app.Flags = []cli.Flag{listenFlag, autoApproveFlag, storageSlotsFlag, devicePropertyFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliApprover prompts the operator for every approval unless -auto-approve
// is set, in which case it rubber-stamps everything (useful for scripted
// test runs where no human is watching the terminal).
type cliApprover struct {
	ui   *cliui.UI
	auto bool
}

func (a *cliApprover) Approve(p device.ApprovalPrompt) (bool, error) {
	if a.auto {
		return true, nil
	}
	return a.ui.Confirm(cliui.ApprovalPrompt{Title: p.Title, Lines: p.Lines})
}

func run(ctx *cli.Context) error {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("simdevice: generating master seed: %w", err)
	}

	d := device.NewDevice(seed, uint32(ctx.Uint(devicePropertyFlag.Name)))
	storage := device.NewStorageSlots(uint32(ctx.Uint(storageSlotsFlag.Name)))
	approver := &cliApprover{ui: cliui.New(), auto: ctx.Bool(autoApproveFlag.Name)}

	ln, err := net.Listen("tcp", ctx.String(listenFlag.Name))
	if err != nil {
		return fmt.Errorf("simdevice: listening: %w", err)
	}
	defer ln.Close()

	ui := cliui.New()
	ui.Info("vanadium-simdevice listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("simdevice: accept: %w", err)
		}
		session := device.NewSession(d, approver, storage)
		go serveConn(conn, session, ui)
	}
}

// serveConn runs one TCP connection's request/response loop against a
// fresh Session: each connection gets its own single-threaded dispatcher,
// exactly as a real device serializes one transport's APDUs at a time.
func serveConn(conn net.Conn, session *device.Session, ui *cliui.UI) {
	defer conn.Close()
	for {
		reqBytes, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				ui.Failure("connection error: %v", err)
			}
			return
		}
		cmd, err := wire.DecodeCommand(reqBytes)
		if err != nil {
			ui.Failure("malformed command: %v", err)
			return
		}
		resp := session.Dispatch(cmd)
		if err := writeFrame(conn, resp.Encode()); err != nil {
			ui.Failure("connection write error: %v", err)
			return
		}
	}
}

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
