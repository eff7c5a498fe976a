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
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanadium-vm/vanadium/host/store"
	"github.com/vanadium-vm/vanadium/internal/metrics"
	"github.com/vanadium-vm/vanadium/manifest"
	"github.com/vanadium-vm/vanadium/wire"
)

// Client drives the full APDU exchange loop against a Transport: register,
// start, and the interleaved preload/execution Continue loop, dispatching
// every InterruptedExecution body through an Engine. It is the host-side
// mirror of device.Session: where Session owns the one Run a device
// dispatch loop can have in flight, Client drives the Engine passed to each
// StartVApp call against its Transport; it holds no Engine of its own.
type Client struct {
	transport Transport
	db        *store.Store
}

// NewClient binds a Client to a Transport and the durable store backing
// every run's sections.
func NewClient(transport Transport, db *store.Store) *Client {
	return &Client{transport: transport, db: db}
}

// GetAppInfo issues InsGetAppInfo and returns the raw 32-byte app ID body.
func (c *Client) GetAppInfo(ctx context.Context) ([]byte, error) {
	resp, err := c.exchange(ctx, wire.Command{CLA: wire.CLA, INS: wire.InsGetAppInfo})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusOK {
		return nil, fmt.Errorf("host: GetAppInfo: %s", resp.Status)
	}
	return resp.Body, nil
}

// RegisterVApp issues InsRegisterApp with the manifest's canonical encoding
// and returns the resulting status word.
func (c *Client) RegisterVApp(ctx context.Context, m *manifest.Manifest) (wire.StatusWord, error) {
	resp, err := c.exchange(ctx, wire.Command{CLA: wire.CLA, INS: wire.InsRegisterApp, Data: m.Encode()})
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// RunResult is what StartVApp hands back once a run finishes.
type RunResult struct {
	Status wire.StatusWord
	Body   []byte
}

// preloadPhase tracks which untagged exchange StartVApp's Continue loop is
// in before the device has started executing the guest: the two preload
// phases carry no ClientCommandCode tag of their own, so the host must track
// where it is in the handshake rather than dispatch on the body's leading
// byte the way HandleClientCommand does for the rest of a run.
type preloadPhase int

const (
	preloadStreamingHashes preloadPhase = iota
	preloadAwaitingComplete
	preloadDone
)

// StartVApp issues InsStartVApp for m, then drives the Continue loop to
// completion: every InterruptedExecution response is routed to engine,
// first through the untagged GetCodePageHashes batches, then through the
// device's final preload exchange (disclosing ephemeral_sk once its code
// Merkle root checks out), and only then through the ClientCommandCode
// dispatch for the remainder of the run.
// engine must already be bound to the RunSession built for m (the host
// must have committed to a code image and verified its Merkle root before
// ever presenting this V-App to the device for preload).
func (c *Client) StartVApp(ctx context.Context, m *manifest.Manifest, engine *Engine) (RunResult, error) {
	resp, err := c.exchange(ctx, wire.Command{CLA: wire.CLA, INS: wire.InsStartVApp, Data: m.Encode()})
	if err != nil {
		return RunResult{}, err
	}

	phase := preloadStreamingHashes
	for resp.Status == wire.StatusInterruptedExecution {
		var nextBody []byte
		switch phase {
		case preloadStreamingHashes:
			nextBody, err = engine.HandlePreloadRequest(c.db, resp.Body)
			if err != nil {
				return RunResult{}, fmt.Errorf("host: preload: %w", err)
			}
			decoded, decErr := wire.DecodeGetCodePageHashesResponse(nextBody)
			if decErr == nil && len(decoded.PageHashes) == 0 {
				phase = preloadAwaitingComplete
			}
		case preloadAwaitingComplete:
			nextBody, err = engine.HandlePreloadComplete(c.db, resp.Body)
			if err != nil {
				return RunResult{}, fmt.Errorf("host: preload complete: %w", err)
			}
			phase = preloadDone
		default:
			nextBody, err = engine.HandleClientCommand(ctx, resp.Body)
			if err != nil {
				return RunResult{}, fmt.Errorf("host: client command: %w", err)
			}
		}

		resp, err = c.exchange(ctx, wire.Command{CLA: wire.CLA, INS: wire.InsContinue, Data: nextBody})
		if err != nil {
			return RunResult{}, err
		}
	}

	return RunResult{Status: resp.Status, Body: resp.Body}, nil
}

// GetMetrics issues InsGetMetrics and decodes the 16-byte counter pair a
// running or idle device always answers with.
func (c *Client) GetMetrics(ctx context.Context) (metrics.Snapshot, error) {
	resp, err := c.exchange(ctx, wire.Command{CLA: wire.CLA, INS: wire.InsGetMetrics})
	if err != nil {
		return metrics.Snapshot{}, err
	}
	if resp.Status != wire.StatusOK {
		return metrics.Snapshot{}, fmt.Errorf("host: GetMetrics: %s", resp.Status)
	}
	if len(resp.Body) != 16 {
		return metrics.Snapshot{}, fmt.Errorf("host: GetMetrics: malformed body length %d", len(resp.Body))
	}
	return metrics.Snapshot{
		InstructionsRetired: binary.BigEndian.Uint64(resp.Body[:8]),
		PageFaultRoundTrips: binary.BigEndian.Uint64(resp.Body[8:]),
	}, nil
}

// exchange races a single transport round trip against ctx: a background
// worker performs the exchange while the caller watches for cancellation,
// closing the transport to unblock it if ctx is done first. Unlike
// errgroup.WithContext, cancellation here is driven solely by the caller's
// ctx, never by the worker's own completion, so a successful exchange never
// races the transport closed out from under the next round trip.
func (c *Client) exchange(ctx context.Context, cmd wire.Command) (wire.Response, error) {
	type result struct {
		resp wire.Response
		err  error
	}
	resultCh := make(chan result, 1)

	var g errgroup.Group
	g.Go(func() error {
		resp, err := c.transport.Exchange(cmd)
		resultCh <- result{resp, err}
		return err
	})

	select {
	case <-ctx.Done():
		c.transport.Close()
		g.Wait()
		return wire.Response{}, ctx.Err()
	case r := <-resultCh:
		g.Wait()
		return r.resp, r.err
	}
}
