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

// Package vnlog provides the leveled, key/value structured logger used
// throughout the device and host packages. It intentionally has no global
// logger: the device and the host each own exactly one run at a time, so a
// logger is constructed once and threaded through explicitly.
package vnlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Level is the severity of a log record, lowest first.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "EROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "????"
	}
}

// Logger is satisfied by *Handler and by any stand-in used in tests.
type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs at the highest severity and attaches the caller's stack
	// frame. It does not terminate the process: on the device side a Crit
	// means the current run is being abandoned with a fatal status word,
	// not that the secure element should halt.
	Crit(msg string, ctx ...interface{})
	// With returns a Logger that prepends the given context to every record.
	With(ctx ...interface{}) Logger
}

// Handler writes leveled records to an io.Writer, one line per record.
type Handler struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	prefix []interface{}
}

// New returns a Handler writing to w at the given minimum level.
func New(w io.Writer, level Level) *Handler {
	return &Handler{out: w, level: level}
}

// Default returns a Handler writing to stderr at LevelInfo, suitable as a
// starting point for cmd/vanadium-host.
func Default() *Handler {
	return New(os.Stderr, LevelInfo)
}

func (h *Handler) log(lvl Level, msg string, ctx []interface{}) {
	if lvl < h.level {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, "%s[%s] %s", time.Now().Format("15:04:05.000"), lvl, msg)
	all := append(append([]interface{}{}, h.prefix...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(h.out, " %v=%v", all[i], all[i+1])
	}
	if lvl == LevelCrit {
		frame := stack.Caller(2)
		fmt.Fprintf(h.out, " at=%n:%d", frame, frame)
	}
	fmt.Fprintln(h.out)
}

func (h *Handler) Debug(msg string, ctx ...interface{}) { h.log(LevelDebug, msg, ctx) }
func (h *Handler) Info(msg string, ctx ...interface{})  { h.log(LevelInfo, msg, ctx) }
func (h *Handler) Warn(msg string, ctx ...interface{})  { h.log(LevelWarn, msg, ctx) }
func (h *Handler) Error(msg string, ctx ...interface{}) { h.log(LevelError, msg, ctx) }
func (h *Handler) Crit(msg string, ctx ...interface{})  { h.log(LevelCrit, msg, ctx) }

func (h *Handler) With(ctx ...interface{}) Logger {
	return &Handler{out: h.out, level: h.level, prefix: append(append([]interface{}{}, h.prefix...), ctx...)}
}

// Nop is a Logger that discards everything; useful in tests that don't
// want to assert on log output.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Crit(string, ...interface{})  {}
func (n nopLogger) With(...interface{}) Logger { return n }
