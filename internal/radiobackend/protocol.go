// SPDX-License-Identifier: AGPL-3.0-or-later
// shackctl - local control plane for decoder-app instances
// Copyright (C) 2026 shackctl contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package radiobackend is the Radio Backend Client (RBC): a persistent,
// sequence-numbered, line-oriented TCP session to the SDR radio backend
// (spec.md §4.3).
package radiobackend

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/n5dr/shackctl/internal/wire"
)

// PushMessage is one parsed "slice <index> key=value..." status line.
type PushMessage struct {
	Index  int
	Fields map[string]string
}

// ParsePushLine parses a single backend response line of the shape
// "S<handle>|slice <index> key=value ...". Lines not matching this shape
// (e.g. bare acknowledgements) return ok=false without an error, since RBC
// must tolerate and ignore unrecognized server chatter.
func ParsePushLine(line string) (PushMessage, bool) {
	line = strings.TrimRight(line, "\r\n")
	_, rest, found := strings.Cut(line, "|")
	if !found {
		return PushMessage{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 2 || fields[0] != "slice" {
		return PushMessage{}, false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return PushMessage{}, false
	}
	msg := PushMessage{Index: index, Fields: make(map[string]string, len(fields)-2)}
	for _, kv := range fields[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		msg.Fields[k] = v
	}
	return msg, true
}

// FrequencyHz converts a "RF_frequency" field (MHz, decimal ASCII) to
// integer Hz, rounding to the nearest Hz so no floating-point drift is
// visible downstream (spec.md §8 boundary behavior).
func FrequencyHz(mhz string) (int64, error) {
	f, err := strconv.ParseFloat(mhz, 64)
	if err != nil {
		return 0, fmt.Errorf("radiobackend: bad RF_frequency %q: %w", mhz, err)
	}
	return int64(math.Round(f * 1e6)), nil
}

// Mode maps the backend's mode string to a wire.Mode, passing through
// unrecognized values per spec.md §3's unknown-passthrough invariant.
func Mode(s string) wire.Mode {
	return wire.Mode(strings.ToUpper(s))
}

// BuildCommand frames an outbound command with its sequence number:
// "C<seq>|<command>\n".
func BuildCommand(seq uint64, command string) string {
	return fmt.Sprintf("C%d|%s\n", seq, command)
}

// TuneCommand formats a slice-tune command with six fractional digits.
func TuneCommand(index int, hz int64) string {
	mhz := float64(hz) / 1e6
	return fmt.Sprintf("slice tune %d %.6f", index, mhz)
}

// ModeCommand formats a slice mode-set command.
func ModeCommand(index int, mode wire.Mode) string {
	return fmt.Sprintf("slice set %d mode=%s", index, mode)
}

// XmitCommand formats the global transmit toggle.
func XmitCommand(on bool) string {
	if on {
		return "xmit 1"
	}
	return "xmit 0"
}

// SubscribeCommand and SliceListCommand are sent once on connect (spec.md §4.3).
const (
	SubscribeCommand = "sub slice all"
	SliceListCommand = "slice list"
)
