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
	"encoding/binary"

	"github.com/vanadium-vm/vanadium/wire"
)

// MetricsResponse encodes the optional GetMetrics APDU body: two big-endian u64 counters.
func (d *Device) MetricsResponse() wire.Response {
	snap := d.Metrics.Snapshot()
	body := make([]byte, 16)
	binary.BigEndian.PutUint64(body[0:8], snap.InstructionsRetired)
	binary.BigEndian.PutUint64(body[8:16], snap.PageFaultRoundTrips)
	return wire.Response{Body: body, Status: wire.StatusOK}
}
