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
	"encoding/binary"
	"fmt"

	"github.com/karalabe/usb"

	"github.com/vanadium-vm/vanadium/wire"
)

// hidReportSize is the fixed USB HID report length used to carry framed
// command/response chunks to and from the device.
const hidReportSize = 64

// hidChunkPayload is the usable payload per report: a 2-byte big-endian
// chunk-sequence header leaves hidReportSize-2 bytes of data.
const hidChunkPayload = hidReportSize - 2

// HIDTransport carries APDUs to a real device enumerated over USB HID.
type HIDTransport struct {
	dev usb.Device
}

// OpenHID enumerates devices matching vendorID/productID and opens the
// first match.
func OpenHID(vendorID, productID uint16) (*HIDTransport, error) {
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("host: enumerating HID devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("host: no HID device matches vendor=%#04x product=%#04x", vendorID, productID)
	}
	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("host: opening HID device: %w", err)
	}
	return &HIDTransport{dev: dev}, nil
}

func (t *HIDTransport) Exchange(cmd wire.Command) (wire.Response, error) {
	if err := t.writeFramed(cmd.Encode()); err != nil {
		return wire.Response{}, fmt.Errorf("host: writing HID command: %w", err)
	}
	data, err := t.readFramed()
	if err != nil {
		return wire.Response{}, fmt.Errorf("host: reading HID response: %w", err)
	}
	return wire.DecodeResponse(data)
}

func (t *HIDTransport) Close() error { return t.dev.Close() }

// writeFramed splits data into hidChunkPayload-sized pieces, each prefixed
// with a 2-byte big-endian sequence number, the final report zero-padded to
// hidReportSize. A leading 4-byte total-length header (sequence 0) lets the
// reader know how many following report bodies to expect.
func (t *HIDTransport) writeFramed(data []byte) error {
	header := make([]byte, 2+4)
	binary.BigEndian.PutUint16(header[:2], 0)
	binary.BigEndian.PutUint32(header[2:], uint32(len(data)))
	if err := t.writeReport(header); err != nil {
		return err
	}
	seq := uint16(1)
	for off := 0; off < len(data); off += hidChunkPayload {
		end := off + hidChunkPayload
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, 2, 2+hidChunkPayload)
		binary.BigEndian.PutUint16(chunk, seq)
		chunk = append(chunk, data[off:end]...)
		if err := t.writeReport(chunk); err != nil {
			return err
		}
		seq++
	}
	return nil
}

func (t *HIDTransport) writeReport(body []byte) error {
	report := make([]byte, hidReportSize)
	copy(report, body)
	_, err := t.dev.Write(report)
	return err
}

func (t *HIDTransport) readFramed() ([]byte, error) {
	header := make([]byte, hidReportSize)
	if _, err := t.dev.Read(header); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(header[2:6])
	out := make([]byte, 0, total)
	for uint32(len(out)) < total {
		report := make([]byte, hidReportSize)
		if _, err := t.dev.Read(report); err != nil {
			return nil, err
		}
		remaining := total - uint32(len(out))
		n := uint32(hidChunkPayload)
		if remaining < n {
			n = remaining
		}
		out = append(out, report[2:2+n]...)
	}
	return out, nil
}
