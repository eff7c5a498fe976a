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
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"
)

// tomlSettings ensures TOML keys match Go struct field names verbatim,
// the same convention the rest of the retrieved corpus uses for its own
// node configuration files.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// StoreConfig configures the durable page-content store.
type StoreConfig struct {
	Dir        string `toml:",omitempty"` // empty means in-memory, for throwaway runs
	CacheBytes int
}

// TransportConfig selects and configures how vanadium-host reaches the
// device: at most one of HID or TCP should be set, native devices being
// wired up by the caller rather than named in a config file.
type TransportConfig struct {
	HIDVendorID  uint16 `toml:",omitempty"`
	HIDProductID uint16 `toml:",omitempty"`
	TCPAddress   string `toml:",omitempty"`
	TCPTimeout   time.Duration
}

// DashboardConfig configures the optional metrics WebSocket endpoint.
type DashboardConfig struct {
	Enabled        bool
	ListenAddr     string
	PollInterval   time.Duration
	AllowedOrigins []string `toml:",omitempty"`
}

// Config is vanadium-host's full configuration, loadable from a TOML file
// and overridable by CLI flags.
type Config struct {
	Store     StoreConfig
	Transport TransportConfig
	Dashboard DashboardConfig
}

// DefaultConfig mirrors a throwaway local run: in-memory store, TCP
// transport to a locally running emulator, dashboard off.
var DefaultConfig = Config{
	Store: StoreConfig{CacheBytes: 32 << 20},
	Transport: TransportConfig{
		TCPAddress: "127.0.0.1:9999",
		TCPTimeout: 30 * time.Second,
	},
	Dashboard: DashboardConfig{
		ListenAddr:   "127.0.0.1:8787",
		PollInterval: time.Second,
	},
}

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

func loadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads DefaultConfig, overlays an optional --config file, then
// the VAPP_ADDRESS environment variable, and overlays CLI flags on top of
// that.
func makeConfig(ctx *cli.Context) (Config, error) {
	cfg := DefaultConfig
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return Config{}, err
		}
	}
	if addr := os.Getenv("VAPP_ADDRESS"); addr != "" {
		cfg.Transport.TCPAddress = addr
	}
	if ctx.GlobalIsSet(tcpAddressFlag.Name) {
		cfg.Transport.TCPAddress = ctx.GlobalString(tcpAddressFlag.Name)
	}
	if ctx.GlobalIsSet(storeDirFlag.Name) {
		cfg.Store.Dir = ctx.GlobalString(storeDirFlag.Name)
	}
	if ctx.GlobalIsSet(dashboardAddrFlag.Name) {
		cfg.Dashboard.Enabled = true
		cfg.Dashboard.ListenAddr = ctx.GlobalString(dashboardAddrFlag.Name)
	}
	return cfg, nil
}
