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

package sdk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinnerPageHasOnlyTag(t *testing.T) {
	p := SpinnerPage()
	require.Equal(t, []byte{byte(pageSpinner)}, p.bytes)
}

func TestInfoPageEncodesLengthPrefixedStrings(t *testing.T) {
	p := InfoPage("lock", "Locked")
	require.Equal(t, byte(pageInfo), p.bytes[0])

	off := 1
	iconLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, "lock", string(p.bytes[off:off+int(iconLen)]))
	off += int(iconLen)

	textLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, "Locked", string(p.bytes[off:off+int(textLen)]))
	off += int(textLen)
	require.Equal(t, len(p.bytes), off)
}

func TestConfirmRejectPageOrdersAllFourFields(t *testing.T) {
	p := ConfirmRejectPage("Register", "Allow this V-App?", "Confirm", "Reject")
	require.Equal(t, byte(pageConfirmReject), p.bytes[0])

	var fields []string
	off := 1
	for i := 0; i < 4; i++ {
		n := binary.BigEndian.Uint16(p.bytes[off:])
		off += 2
		fields = append(fields, string(p.bytes[off:off+int(n)]))
		off += int(n)
	}
	require.Equal(t, []string{"Register", "Allow this V-App?", "Confirm", "Reject"}, fields)
	require.Equal(t, len(p.bytes), off)
}

func TestTagValueListStepEncodesRowCountAndRows(t *testing.T) {
	p := TagValueListStep("1/2", []TagValue{
		{Tag: "Amount", Value: "0.001 BTC"},
		{Tag: "Fee", Value: "0.00001 BTC"},
	})
	require.Equal(t, byte(pageGeneric), p.bytes[0])

	off := 1
	navLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, "1/2", string(p.bytes[off:off+int(navLen)]))
	off += int(navLen)

	require.Equal(t, byte(contentTagValueList), p.bytes[off])
	off++

	count := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, uint16(2), count)

	for _, want := range []TagValue{{Tag: "Amount", Value: "0.001 BTC"}, {Tag: "Fee", Value: "0.00001 BTC"}} {
		tagLen := binary.BigEndian.Uint16(p.bytes[off:])
		off += 2
		require.Equal(t, want.Tag, string(p.bytes[off:off+int(tagLen)]))
		off += int(tagLen)

		valLen := binary.BigEndian.Uint16(p.bytes[off:])
		off += 2
		require.Equal(t, want.Value, string(p.bytes[off:off+int(valLen)]))
		off += int(valLen)
	}
	require.Equal(t, len(p.bytes), off)
}

func TestConfirmationButtonStepEncodesTextAndLabel(t *testing.T) {
	p := ConfirmationButtonStep("2/2", "Send it?", "Hold to send")
	require.Equal(t, byte(pageGeneric), p.bytes[0])
	off := 1
	navLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2 + int(navLen)
	require.Equal(t, byte(contentConfirmationButton), p.bytes[off])
	off++
	textLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, "Send it?", string(p.bytes[off:off+int(textLen)]))
	off += int(textLen)
	labelLen := binary.BigEndian.Uint16(p.bytes[off:])
	off += 2
	require.Equal(t, "Hold to send", string(p.bytes[off:off+int(labelLen)]))
}
