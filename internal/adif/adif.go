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

// Package adif formats one completed QSO as a single ADIF log record and
// appends it to the configured log file (spec.md §6: "ADIF parsing" is
// OUT OF SCOPE of the core except at its contract; this package is the
// write-side contract the QSO State Machine's terminal events satisfy).
// The append-to-one-file pattern follows
// madpsy-ka9q_ubersdr's decoder_spots_log.go; ADIF's tag:length field
// format is fixed by the external standard, not learned from the pack.
package adif

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record is one completed contact, as the QSO State Machine's terminal
// "complete" event reports it.
type Record struct {
	Call            string
	GridSquare      string
	Mode            string
	Band            string
	FreqMHz         float64
	RSTSent         string
	RSTRcvd         string
	QSODate         time.Time
	StationCallsign string
	MyGridSquare    string
}

func field(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("<%s:%d>%s", name, len(value), value)
}

// Format renders one ADIF record terminated by <EOR>.
func Format(r Record) string {
	var b strings.Builder
	b.WriteString(field("CALL", strings.ToUpper(r.Call)))
	b.WriteString(field("GRIDSQUARE", r.GridSquare))
	b.WriteString(field("MODE", strings.ToUpper(r.Mode)))
	b.WriteString(field("BAND", r.Band))
	if r.FreqMHz > 0 {
		b.WriteString(field("FREQ", strconv.FormatFloat(r.FreqMHz, 'f', 6, 64)))
	}
	b.WriteString(field("RST_SENT", r.RSTSent))
	b.WriteString(field("RST_RCVD", r.RSTRcvd))
	if !r.QSODate.IsZero() {
		b.WriteString(field("QSO_DATE", r.QSODate.UTC().Format("20060102")))
		b.WriteString(field("TIME_ON", r.QSODate.UTC().Format("150405")))
	}
	b.WriteString(field("STATION_CALLSIGN", strings.ToUpper(r.StationCallsign)))
	b.WriteString(field("MY_GRIDSQUARE", r.MyGridSquare))
	b.WriteString("<EOR>\n")
	return b.String()
}

// Logger appends ADIF records to a single file, creating it if absent. No
// ADIF header is written; the file holds only records.
type Logger struct {
	path string
}

// NewLogger targets path. An empty path means logging is disabled and
// Append becomes a no-op, matching dashboard.adif_log_path's optionality
// (spec.md §6).
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Append writes one record to the end of the log file. It is safe to call
// from a single writer per process; concurrent QSOs on different instances
// should serialize through one Logger instance.
func (l *Logger) Append(r Record) error {
	if l.path == "" {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("adif: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(Format(r)); err != nil {
		return fmt.Errorf("adif: write %s: %w", l.path, err)
	}
	return nil
}
