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
	"github.com/vanadium-vm/vanadium/wire"
)

// Transport carries one APDU command to a device and returns its response.
// Implementations need not be safe for concurrent use: Client serializes
// every Exchange behind the single run it is driving.
type Transport interface {
	Exchange(cmd wire.Command) (wire.Response, error)
	Close() error
}
