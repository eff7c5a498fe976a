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

// Command vanadium-host drives a Vanadium device over HID or TCP: it
// registers V-Apps, starts runs, and optionally serves a metrics
// dashboard over WebSocket while a run is in flight.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"gopkg.in/urfave/cli.v1"

	"github.com/vanadium-vm/vanadium/host"
	"github.com/vanadium-vm/vanadium/host/cliui"
	"github.com/vanadium-vm/vanadium/host/store"
	"github.com/vanadium-vm/vanadium/internal/vnlog"
	"github.com/vanadium-vm/vanadium/manifest"
)

var (
	tcpAddressFlag = cli.StringFlag{
		Name:  "tcp",
		Usage: "dial the device emulator at this TCP address",
	}
	hidVendorFlag = cli.UintFlag{
		Name:  "hid-vendor",
		Usage: "USB vendor ID of the device, for HID transport",
	}
	hidProductFlag = cli.UintFlag{
		Name:  "hid-product",
		Usage: "USB product ID of the device, for HID transport",
	}
	storeDirFlag = cli.StringFlag{
		Name:  "store",
		Usage: "directory for the persistent page store (default: in-memory)",
	}
	dashboardAddrFlag = cli.StringFlag{
		Name:  "dashboard",
		Usage: "serve the metrics dashboard at this address",
	}
	manifestFlag = cli.StringFlag{
		Name:  "manifest",
		Usage: "path to the V-App manifest",
	}
	codeImageFlag = cli.StringFlag{
		Name:  "code",
		Usage: "path to the V-App code image",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "vanadium-host"
	app.Usage = "host-side driver for a Vanadium device"
	app.Flags = []cli.Flag{configFileFlag, tcpAddressFlag, hidVendorFlag, hidProductFlag, storeDirFlag, dashboardAddrFlag}
	app.Commands = []cli.Command{
		registerCommand,
		startCommand,
		appInfoCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var registerCommand = cli.Command{
	Name:      "register",
	Usage:     "register a V-App on the device",
	ArgsUsage: "",
	Flags:     []cli.Flag{manifestFlag},
	Action:    registerVApp,
}

var startCommand = cli.Command{
	Name:      "start",
	Usage:     "start a V-App run and drive it to completion",
	ArgsUsage: "",
	Flags:     []cli.Flag{manifestFlag, codeImageFlag},
	Action:    startVApp,
}

var appInfoCommand = cli.Command{
	Name:   "app-info",
	Usage:  "print the device's application identifier",
	Action: appInfo,
}

func openStore(cfg Config) (*store.Store, error) {
	if cfg.Store.Dir != "" {
		return store.Open(cfg.Store.Dir, cfg.Store.CacheBytes)
	}
	return store.OpenMem(cfg.Store.CacheBytes)
}

// openClient opens the page store and transport a command needs and
// returns both: db is exposed so commands that build a RunSession (which
// needs the same store the Client reads pages through) don't open a
// second, independent store handle.
func openClient(ctx *cli.Context) (*host.Client, *store.Store, func(), error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	transport, err := openTransport(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	client := host.NewClient(transport, db)
	cleanup := func() {
		transport.Close()
		db.Close()
	}
	return client, db, cleanup, nil
}

func openTransport(ctx *cli.Context, cfg Config) (host.Transport, error) {
	if ctx.GlobalIsSet(hidVendorFlag.Name) {
		vendor := uint16(ctx.GlobalUint(hidVendorFlag.Name))
		product := uint16(ctx.GlobalUint(hidProductFlag.Name))
		return host.OpenHID(vendor, product)
	}
	if cfg.Transport.HIDVendorID != 0 && !ctx.GlobalIsSet(tcpAddressFlag.Name) {
		return host.OpenHID(cfg.Transport.HIDVendorID, cfg.Transport.HIDProductID)
	}
	addr := cfg.Transport.TCPAddress
	if ctx.GlobalIsSet(tcpAddressFlag.Name) {
		addr = ctx.GlobalString(tcpAddressFlag.Name)
	}
	return host.DialTCP(addr, cfg.Transport.TCPTimeout)
}

func appInfo(ctx *cli.Context) error {
	client, _, cleanup, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ui := cliui.New()
	id, err := client.GetAppInfo(context.Background())
	if err != nil {
		ui.Failure("app-info failed: %v", err)
		return err
	}
	ui.Success("app id: %x", id)
	return nil
}

func registerVApp(ctx *cli.Context) error {
	path := ctx.String(manifestFlag.Name)
	if path == "" {
		return fmt.Errorf("register: --manifest is required")
	}
	m, err := readManifest(path)
	if err != nil {
		return err
	}

	client, _, cleanup, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ui := cliui.New()
	status, err := client.RegisterVApp(context.Background(), m)
	if err != nil {
		ui.Failure("register failed: %v", err)
		return err
	}
	ui.Success("register: %s", status)
	return nil
}

func startVApp(ctx *cli.Context) error {
	manifestPath := ctx.String(manifestFlag.Name)
	codePath := ctx.String(codeImageFlag.Name)
	if manifestPath == "" || codePath == "" {
		return fmt.Errorf("start: --manifest and --code are both required")
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}
	image, err := os.ReadFile(codePath)
	if err != nil {
		return fmt.Errorf("reading code image: %w", err)
	}

	client, db, cleanup, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	session, err := host.NewRunSession(db, m, host.CodeImage(image))
	if err != nil {
		return fmt.Errorf("building run session: %w", err)
	}

	ui := cliui.New()
	source := &cliSource{}
	sink := &cliSink{ui: ui}
	uxSource := &cliUX{ui: ui}
	engine := host.NewEngine(vnlog.Default(), session, source, sink, uxSource)

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		startDashboard(appCtx, client, cfg.Dashboard)
	}

	result, err := client.StartVApp(appCtx, m, engine)
	if err != nil {
		ui.Failure("run failed: %v", err)
		return err
	}
	ui.Success("run finished: %s", result.Status)
	return nil
}

func readManifest(path string) (*manifest.Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := manifest.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}
