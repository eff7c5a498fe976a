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

package device

import (
	"errors"
	"fmt"

	"github.com/vanadium-vm/vanadium/crypto"
	"github.com/vanadium-vm/vanadium/ecall"
	"github.com/vanadium-vm/vanadium/internal/metrics"
	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/vm"
	"github.com/vanadium-vm/vanadium/vm/pagedmem"
	"github.com/vanadium-vm/vanadium/wire"
)

// ErrUnknownApp is the SignatureFail condition: StartVApp named
// a hash with no matching registry entry.
var ErrUnknownApp = errors.New("device: no registered V-App matches this hash")

// ExtraCachePages is the number of pages beyond the one currently in use
// that each section's Cache keeps resident.
const ExtraCachePages = 3

// channelExchanger bridges a run's goroutine to the device's single
// dispatch loop: Exchange blocks the run goroutine until the dispatch loop
// hands back the next incoming Continue APDU's payload. This is the
// concrete Exchanger shared by device.Preload, ecall.Handler, and
// vm/pagedmem.PageStore, giving every phase of a run the same suspend-on-
// host-round-trip behavior.
type channelExchanger struct {
	reqCh  chan []byte
	respCh chan []byte
}

func newChannelExchanger() *channelExchanger {
	return &channelExchanger{reqCh: make(chan []byte), respCh: make(chan []byte)}
}

// errRunAborted is returned to a goroutine blocked in Exchange when the
// dispatch loop abandons the run (e.g. on transport teardown).
var errRunAborted = errors.New("device: run aborted by host")

func (c *channelExchanger) Exchange(req []byte) ([]byte, error) {
	c.reqCh <- req
	resp, ok := <-c.respCh
	if !ok {
		return nil, errRunAborted
	}
	return resp, nil
}

// Run is one in-flight V-App execution, driven by a goroutine that the
// device's single-threaded dispatch loop feeds Continue APDU payloads and
// drains suspension requests from.
type Run struct {
	exch   *channelExchanger
	doneCh chan RunStatus
}

// Next blocks until the run either needs another host round trip (ok=true,
// req is the InterruptedExecution response body to send) or has finished
// (ok=false, status is the final response).
func (r *Run) Next() (req []byte, ok bool, status RunStatus) {
	select {
	case req := <-r.exch.reqCh:
		return req, true, RunStatus{}
	case status := <-r.doneCh:
		return nil, false, status
	}
}

// Continue hands the next Continue APDU's payload back to whichever host
// round trip the run is blocked on.
func (r *Run) Continue(data []byte) {
	r.exch.respCh <- data
}

// Abort unblocks a run goroutine stuck waiting for a host response,
// signalling errRunAborted to whatever ECALL or page fault it was
// mid-exchange on.
func (r *Run) Abort() {
	close(r.exch.respCh)
}

// Device owns the process-wide singletons: the NVRAM registry,
// the permanent auth_key, and the instruction/page-fault metrics counters.
// It is not safe for concurrent use; callers serialize access to it through
// their own single dispatch loop.
type Device struct {
	Registry *Registry
	Metrics  *metrics.Counters

	authKey        authKeyStore
	deviceProperty uint32
	masterSeed     []byte
}

// NewDevice constructs a Device. masterSeed is the device's root key
// material for HD/SLIP-21 derivation (ecall.New); deviceProperty is the
// opaque word returned by get_device_property.
func NewDevice(masterSeed []byte, deviceProperty uint32) *Device {
	return &Device{
		Registry:       NewRegistry(),
		Metrics:        &metrics.Counters{},
		deviceProperty: deviceProperty,
		masterSeed:     masterSeed,
	}
}

// AppID returns the device-wide vanadium_app_id exposed by GetAppInfo.
func (d *Device) AppID() [32]byte { return crypto.VanadiumAppID() }

// sectionConfig describes one memory section's static layout, derived from
// the manifest, needed to build its PageStore and Cache.
type sectionConfig struct {
	kind      wire.SectionKind
	encrypted bool
	base      uint32
	pageCount int
	root      [32]byte
	writable  bool
}

func sectionConfigs(m *manifest.Manifest) []sectionConfig {
	return []sectionConfig{
		{
			kind:      wire.SectionCode,
			encrypted: false,
			base:      m.CodeStart,
			pageCount: manifest.PageCount(m.CodeStart, m.CodeEnd, wire.PageSize),
			root:      m.CodeMerkleRoot,
			writable:  false,
		},
		{
			kind:      wire.SectionData,
			encrypted: true,
			base:      m.DataStart,
			pageCount: manifest.PageCount(m.DataStart, m.DataEnd, wire.PageSize),
			root:      m.DataMerkleRoot,
			writable:  true,
		},
		{
			kind:      wire.SectionStack,
			encrypted: true,
			base:      m.StackStart,
			pageCount: manifest.PageCount(m.StackStart, m.StackEnd, wire.PageSize),
			root:      m.StackMerkleRoot,
			writable:  true,
		},
	}
}

// adjustedLeafCount returns the power-of-two leaf count merkle.New would
// have padded pageCount up to, matching what merkle.VerifyInclusion and
// merkle.VerifyUpdate expect as n.
func adjustedLeafCount(pageCount int) int {
	if pageCount <= 1 {
		return 1
	}
	n := 1
	for n < pageCount {
		n <<= 1
	}
	return n
}

func buildSegment(cfg sectionConfig, exch pagedmem.Exchanger, runKey [32]byte, nonceMask [12]byte, m *metrics.Counters) (*pagedmem.Cache, error) {
	store := pagedmem.NewPageStore(cfg.kind, cfg.encrypted, adjustedLeafCount(cfg.pageCount), cfg.root, runKey, nonceMask, exch, m)
	return pagedmem.New(store, cfg.base, cfg.pageCount, cfg.writable, 1+ExtraCachePages)
}

// StartVApp begins a new run.
// It validates the manifest and looks its hash up in the registry
// synchronously, then hands everything else — the preload handshake, the
// three memory segments, and the guest's execution — to a goroutine driven
// entirely through the returned Run's channel exchanger. This is what lets
// Preload's own host round trips suspend exactly like a page fault or an
// I/O ECALL: there is no separate synchronous exchange path for preload,
// it is simply the first phase the run goroutine drives through Run.Next/
// Continue before the vm.CPU exists.
func (d *Device) StartVApp(m *manifest.Manifest, storage ecall.Storage) (*Run, error) {
	if err := m.Validate(); err != nil {
		return nil, &StatusError{Status: wire.StatusIncorrectData, Message: err.Error()}
	}
	vappHash := m.Hash()
	if _, _, found := d.Registry.Lookup(vappHash); !found {
		return nil, &StatusError{Status: wire.StatusSignatureFail, Message: ErrUnknownApp.Error()}
	}

	authKey, err := d.authKey.Key()
	if err != nil {
		return nil, err
	}

	run := &Run{exch: newChannelExchanger(), doneCh: make(chan RunStatus, 1)}

	go func() {
		status, err := d.runVApp(run, m, authKey, storage)
		if err != nil {
			run.doneCh <- statusFromError(err)
			return
		}
		run.doneCh <- status
	}()

	return run, nil
}

// runVApp is the body of a run's goroutine: preload, then build the memory
// segments and ECALL handler, then execute the guest to completion.
func (d *Device) runVApp(run *Run, m *manifest.Manifest, authKey [32]byte, storage ecall.Storage) (RunStatus, error) {
	// Preload discloses its PreloadResult.EphemeralSK to the host itself, as
	// the handshake's own last exchange, once the code Merkle root checks
	// out; nothing later in a run needs that value again (the data/stack
	// pages below are encrypted under a separate, freshly drawn runKey).
	if _, err := Preload(run.exch, m, authKey); err != nil {
		return RunStatus{}, err
	}

	runKeyBytes, err := crypto.RandomBytes(32)
	if err != nil {
		return RunStatus{}, err
	}
	var runKey [32]byte
	copy(runKey[:], runKeyBytes)

	maskBytes, err := crypto.RandomBytes(12)
	if err != nil {
		return RunStatus{}, err
	}
	var nonceMask [12]byte
	copy(nonceMask[:], maskBytes)

	cfgs := sectionConfigs(m)
	code, err := buildSegment(cfgs[0], run.exch, runKey, nonceMask, d.Metrics)
	if err != nil {
		return RunStatus{}, err
	}
	data, err := buildSegment(cfgs[1], run.exch, runKey, nonceMask, d.Metrics)
	if err != nil {
		return RunStatus{}, err
	}
	stack, err := buildSegment(cfgs[2], run.exch, runKey, nonceMask, d.Metrics)
	if err != nil {
		return RunStatus{}, err
	}

	handler, err := ecall.New(run.exch, storage, m.NStorageSlots, d.deviceProperty, d.masterSeed)
	if err != nil {
		return RunStatus{}, err
	}

	cpu := vm.NewCPU(m.Entrypoint, code, data, stack, handler, d.Metrics)
	cpu.Run()

	status := statusFromHalt(cpu)
	if cpu.Halt == vm.HaltExit {
		if err := flushSections(code, data, stack); err != nil {
			return RunStatus{Status: wire.StatusVMRuntimeError, Message: err.Error()}, nil
		}
	}
	return status, nil
}

// statusFromError maps an error from the preload/setup phase of runVApp to
// a terminal RunStatus: a *StatusError carries its own status word,
// anything else is a VMRuntimeError.
func statusFromError(err error) RunStatus {
	if se, ok := err.(*StatusError); ok {
		return RunStatus{Status: se.Status, Message: se.Message}
	}
	return RunStatus{Status: wire.StatusVMRuntimeError, Message: err.Error()}
}

func flushSections(segs ...*pagedmem.Cache) error {
	for _, s := range segs {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// statusFromHalt maps a terminated vm.CPU's halt reason to the final
// device-visible status.
func statusFromHalt(cpu *vm.CPU) RunStatus {
	switch cpu.Halt {
	case vm.HaltExit:
		return RunStatus{Status: wire.StatusOK, ExitCode: cpu.ExitCode}
	case vm.HaltPanic:
		return RunStatus{Status: wire.StatusVAppPanic, Message: cpu.PanicMsg}
	default:
		return RunStatus{Status: wire.StatusVMRuntimeError, Message: fmt.Sprint(cpu.Err)}
	}
}
