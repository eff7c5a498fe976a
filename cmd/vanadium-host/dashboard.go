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
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/vanadium-vm/vanadium/host"
	"github.com/vanadium-vm/vanadium/internal/vnlog"
)

const dashboardShutdownGrace = 2 * time.Second

// startDashboard polls the device's metrics counters and serves them over
// WebSocket for the lifetime of ctx. Both the poller and the HTTP server
// run in background goroutines; startDashboard returns immediately.
func startDashboard(ctx context.Context, client *host.Client, cfg DashboardConfig) {
	log := vnlog.Default().With("component", "dashboard")
	hub := host.NewMetricsHub(cfg.AllowedOrigins, log)
	poller := host.NewMetricsPoller(client, hub, cfg.PollInterval, log)

	go poller.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", hub)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(os.Stderr, "dashboard: server error:", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), dashboardShutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("dashboard listening", "addr", cfg.ListenAddr)
}
