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
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vanadium-vm/vanadium/internal/metrics"
)

func TestMetricsHubPublishReachesSubscriber(t *testing.T) {
	hub := NewMetricsHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler's registration a moment to land before publishing;
	// Publish only reaches subscribers registered by the time it runs.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs) == 1
	}, time.Second, 5*time.Millisecond)

	want := metrics.Snapshot{InstructionsRetired: 42, PageFaultRoundTrips: 3}
	hub.Publish(want)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got metrics.Snapshot
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Equal(t, want, got)
}

func TestMetricsHubDropsSnapshotForFullQueue(t *testing.T) {
	hub := NewMetricsHub(nil, nil)
	sub := &metricsSubscriber{sendCh: make(chan metrics.Snapshot, 1)}
	hub.subs[sub] = struct{}{}

	hub.Publish(metrics.Snapshot{InstructionsRetired: 1})
	hub.Publish(metrics.Snapshot{InstructionsRetired: 2})

	require.Len(t, sub.sendCh, 1)
	got := <-sub.sendCh
	require.Equal(t, uint64(1), got.InstructionsRetired)
}
