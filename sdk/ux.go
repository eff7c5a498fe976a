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

import "encoding/binary"

// EventCode is the value show_page/get_event pairs exchange: what the user
// did with the page most recently shown.
type EventCode uint32

const (
	EventConfirmed EventCode = iota
	EventRejected
	EventButtonPress
)

// Event is what GetEvent hands back: a code plus the fixed 16-byte payload
// the device attaches (e.g. which button, for EventButtonPress).
type Event struct {
	Code    EventCode
	Payload [16]byte
}

// GetEvent blocks until the device's UX shell produces the next event.
func GetEvent() Event {
	var payload [16]byte
	code := trap(codeGetEvent, ptrOf(payload[:]), 0, 0, 0, 0, 0, 0)
	return Event{Code: EventCode(code), Payload: payload}
}

// pageKind tags the wrapped UX page union's first byte.
type pageKind byte

const (
	pageSpinner pageKind = iota
	pageInfo
	pageConfirmReject
	pageGeneric
)

// contentKind tags a GenericPage's content union.
type contentKind byte

const (
	contentTextSubtext contentKind = iota
	contentTagValueList
	contentConfirmationLongPress
	contentConfirmationButton
)

// Page is a fully serialized wrapped UX page, ready for ShowPage/ShowStep.
// Build one with the page and step constructors below rather than by hand: the
// wire layout (tag byte, then length-prefixed fields) is an implementation
// detail callers shouldn't need to track.
type Page struct {
	bytes []byte
}

func newPage(kind pageKind) *pageBuilder {
	b := &pageBuilder{}
	b.buf = append(b.buf, byte(kind))
	return b
}

type pageBuilder struct {
	buf []byte
}

func (b *pageBuilder) string(s string) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	b.buf = append(b.buf, lenBuf[:]...)
	b.buf = append(b.buf, s...)
}

func (b *pageBuilder) byte(v byte) { b.buf = append(b.buf, v) }

func (b *pageBuilder) page() Page { return Page{bytes: b.buf} }

// SpinnerPage renders a loading indicator with no user-actionable content.
func SpinnerPage() Page {
	return newPage(pageSpinner).page()
}

// InfoPage renders an icon-and-text informational page with no
// confirm/reject action.
func InfoPage(icon string, text string) Page {
	b := newPage(pageInfo)
	b.string(icon)
	b.string(text)
	return b.page()
}

// ConfirmRejectPage renders a two-button decision page: title, body text,
// and the confirm/reject button labels. The user's choice is reported by
// the next GetEvent as EventConfirmed or EventRejected.
func ConfirmRejectPage(title, text, confirmLabel, rejectLabel string) Page {
	b := newPage(pageConfirmReject)
	b.string(title)
	b.string(text)
	b.string(confirmLabel)
	b.string(rejectLabel)
	return b.page()
}

// TextSubtextStep renders a navigable step whose content is a text/subtext
// pair (e.g. "Amount" / "0.001 BTC").
func TextSubtextStep(navInfo, text, subtext string) Page {
	b := newPage(pageGeneric)
	b.string(navInfo)
	b.byte(byte(contentTextSubtext))
	b.string(text)
	b.string(subtext)
	return b.page()
}

// TagValue is one row of a TagValueListStep.
type TagValue struct {
	Tag, Value string
}

// TagValueListStep renders a navigable step whose content is a list of
// tag/value rows (e.g. transaction details).
func TagValueListStep(navInfo string, rows []TagValue) Page {
	b := newPage(pageGeneric)
	b.string(navInfo)
	b.byte(byte(contentTagValueList))
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(rows)))
	b.buf = append(b.buf, countBuf[:]...)
	for _, r := range rows {
		b.string(r.Tag)
		b.string(r.Value)
	}
	return b.page()
}

// ConfirmationLongPressStep renders a navigable step asking for a
// long-press confirmation.
func ConfirmationLongPressStep(navInfo, text string) Page {
	b := newPage(pageGeneric)
	b.string(navInfo)
	b.byte(byte(contentConfirmationLongPress))
	b.string(text)
	return b.page()
}

// ConfirmationButtonStep renders a navigable step asking for a single
// button-press confirmation.
func ConfirmationButtonStep(navInfo, text, buttonLabel string) Page {
	b := newPage(pageGeneric)
	b.string(navInfo)
	b.byte(byte(contentConfirmationButton))
	b.string(text)
	b.string(buttonLabel)
	return b.page()
}

// ShowPage renders p as a top-level page. Suspends until the host
// acknowledges the frame(s) carrying it.
func ShowPage(p Page) bool {
	return trap(codeShowPage, ptrOf(p.bytes), uint32(len(p.bytes)), 0, 0, 0, 0, 0) != 0
}

// ShowStep renders p as one step of a multi-step navigable flow.
func ShowStep(p Page) bool {
	return trap(codeShowStep, ptrOf(p.bytes), uint32(len(p.bytes)), 0, 0, 0, 0, 0) != 0
}
