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
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vanadium-vm/vanadium/internal/metrics"
	"github.com/vanadium-vm/vanadium/internal/vnlog"
)

// MetricsPoller periodically pulls a counter snapshot through a Client and
// fans it out to every subscriber registered with a MetricsHub. It exists
// so a companion dashboard can watch a run's progress without itself
// holding the Client (and therefore the Transport) it polls.
type MetricsPoller struct {
	client   *Client
	hub      *MetricsHub
	interval time.Duration
	log      vnlog.Logger
}

// NewMetricsPoller builds a poller that samples client every interval and
// publishes each snapshot to hub.
func NewMetricsPoller(client *Client, hub *MetricsHub, interval time.Duration, log vnlog.Logger) *MetricsPoller {
	if log == nil {
		log = vnlog.Nop
	}
	return &MetricsPoller{client: client, hub: hub, interval: interval, log: log}
}

// Run polls until ctx is done. A failed GetMetrics (the device has no run in
// flight, or the transport is momentarily unavailable) is logged and
// skipped rather than treated as fatal, since the dashboard should keep
// showing the last good snapshot across transient gaps.
func (p *MetricsPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := p.client.GetMetrics(ctx)
			if err != nil {
				p.log.Debug("metrics poll failed", "err", err)
				continue
			}
			p.hub.Publish(snap)
		}
	}
}

// metricsSubscriber is one connected dashboard client's outbound queue. id
// is a per-connection correlation tag for log lines, since two dashboard
// tabs from the same origin are otherwise indistinguishable in the log.
type metricsSubscriber struct {
	id     string
	sendCh chan metrics.Snapshot
}

// MetricsHub fans out metrics snapshots to any number of WebSocket
// subscribers. Each subscriber has its own bounded queue so one slow reader
// can never back-pressure the poller or the other subscribers; a full
// queue simply drops the stale snapshot in favor of the next one.
type MetricsHub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*metricsSubscriber]struct{}

	log vnlog.Logger
}

// NewMetricsHub builds an empty hub. allowedOrigins, when non-empty,
// restricts the WebSocket handshake's Origin header; an empty list allows
// any origin, matching a purely local dashboard's needs.
func NewMetricsHub(allowedOrigins []string, log vnlog.Logger) *MetricsHub {
	if log == nil {
		log = vnlog.Nop
	}
	h := &MetricsHub{
		subs: make(map[*metricsSubscriber]struct{}),
		log:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Publish sends snap to every currently connected subscriber, dropping it
// for any subscriber whose queue is already full.
func (h *MetricsHub) Publish(snap metrics.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.sendCh <- snap:
		default:
			h.log.Debug("dropping metrics snapshot for slow subscriber")
		}
	}
}

const metricsSubscriberQueueDepth = 8

// ServeHTTP upgrades the request to a WebSocket and streams every published
// snapshot to it as JSON until the connection closes.
func (h *MetricsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("metrics websocket upgrade failed", "err", err)
		return
	}

	sub := &metricsSubscriber{id: uuid.NewString(), sendCh: make(chan metrics.Snapshot, metricsSubscriberQueueDepth)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("metrics subscriber connected", "id", sub.id)

	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		h.log.Debug("metrics subscriber disconnected", "id", sub.id)
		conn.Close()
	}()

	// A dashboard connection never sends anything meaningful; this read
	// loop exists only to notice disconnects (gorilla/websocket surfaces
	// a closed connection as a read error) and unblock the write loop.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap := <-sub.sendCh:
			payload, err := json.Marshal(snap)
			if err != nil {
				h.log.Error("encoding metrics snapshot", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
