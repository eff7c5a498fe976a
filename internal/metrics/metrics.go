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

// Package metrics holds the two counters the CPU records purely for
// observability: instructions retired and page-fault round trips. They
// are exposed to the host through the optional GetMetrics APDU.
package metrics

import "sync/atomic"

// Counters is a concurrency-safe pair of monotone counters for a single
// V-App run. The zero value is ready to use.
type Counters struct {
	instructionsRetired uint64
	pageFaultRoundTrips uint64
}

// InstructionRetired increments the instructions-retired counter. Called by
// the CPU loop once per successfully executed instruction.
func (c *Counters) InstructionRetired() { atomic.AddUint64(&c.instructionsRetired, 1) }

// PageFaultRoundTrip increments the page-fault counter. Called once per
// GetPage/CommitPage exchange observed by the paged-memory layer.
func (c *Counters) PageFaultRoundTrip() { atomic.AddUint64(&c.pageFaultRoundTrips, 1) }

// InstructionsRetired returns the current instruction count.
func (c *Counters) InstructionsRetired() uint64 { return atomic.LoadUint64(&c.instructionsRetired) }

// PageFaultRoundTrips returns the current page-fault round-trip count.
func (c *Counters) PageFaultRoundTrips() uint64 { return atomic.LoadUint64(&c.pageFaultRoundTrips) }

// Snapshot is the wire-friendly form of Counters returned by GetMetrics.
type Snapshot struct {
	InstructionsRetired uint64
	PageFaultRoundTrips uint64
}

// Snapshot captures the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		InstructionsRetired: c.InstructionsRetired(),
		PageFaultRoundTrips: c.PageFaultRoundTrips(),
	}
}
