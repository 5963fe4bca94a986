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

package wire

import (
	"strconv"
	"strings"
)

// HRDRequest is one parsed HRD-text request line (spec.md §4.1.4). It
// underlies both dialect B (raw `\r`-terminated lines) and dialect C (the
// same grammar under binary framing).
type HRDRequest struct {
	Verb string   // "get" or "set"
	Noun string   // "frequency", "mode", "dropdown", "button-select", ...
	Args []string // remaining whitespace-separated tokens
}

// ParseHRDLine parses one request line, stripping an optional leading
// "[context] " prefix.
func ParseHRDLine(line string) HRDRequest {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "[") {
		if idx := strings.Index(line, "]"); idx >= 0 {
			line = strings.TrimSpace(line[idx+1:])
		}
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return HRDRequest{}
	}
	req := HRDRequest{Verb: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		req.Noun = strings.ToLower(fields[1])
	}
	if len(fields) > 2 {
		req.Args = fields[2:]
	}
	return req
}

// radioName is the fixed single-radio identity this control plane presents
// to HRD-dialect clients (there is exactly one CAT endpoint per slice).
const radioName = "Slice Radio"

// HRDHandle answers one parsed HRD request against the current slice state,
// returning the raw ASCII response body (without framing or trailing `\r`)
// and any mutation to apply. A malformed or unsupported request is answered
// with "ERROR" and MutationNone, the dialect's negative acknowledgement; an
// accepted set returns an empty string with its mutation.
func HRDHandle(req HRDRequest, st SliceState) (resp string, mut Mutation) {
	switch req.Verb {
	case "get":
		return hrdGet(req, st)
	case "set":
		return hrdSet(req, st)
	default:
		return "ERROR", Mutation{}
	}
}

func hrdGet(req HRDRequest, st SliceState) (string, Mutation) {
	switch req.Noun {
	case "frequency":
		return strconv.FormatInt(st.FrequencyHz, 10), Mutation{}
	case "mode":
		return string(st.Mode), Mutation{}
	case "button-select":
		if len(req.Args) > 0 && req.Args[0] == "tx" {
			if st.Transmit {
				return "1", Mutation{}
			}
			return "0", Mutation{}
		}
		return "ERROR", Mutation{}
	case "radios":
		return radioName, Mutation{}
	case "id":
		return "HRD-COMPAT", Mutation{}
	case "version":
		return "5.0", Mutation{}
	case "context":
		return radioName, Mutation{}
	default:
		return "ERROR", Mutation{}
	}
}

func hrdSet(req HRDRequest, st SliceState) (string, Mutation) {
	switch req.Noun {
	case "frequency-hz":
		if len(req.Args) != 1 {
			return "ERROR", Mutation{}
		}
		hz, err := strconv.ParseInt(req.Args[0], 10, 64)
		if err != nil {
			return "ERROR", Mutation{}
		}
		return "", Mutation{Kind: MutationFrequency, FrequencyHz: hz}
	case "frequencies-hz":
		// set frequencies-hz <rx> <tx>: this control plane has no separate
		// split-TX frequency, so only the RX value is applied.
		if len(req.Args) != 2 {
			return "ERROR", Mutation{}
		}
		hz, err := strconv.ParseInt(req.Args[0], 10, 64)
		if err != nil {
			return "ERROR", Mutation{}
		}
		return "", Mutation{Kind: MutationFrequency, FrequencyHz: hz}
	case "dropdown":
		if len(req.Args) != 2 || req.Args[0] != "mode" {
			return "ERROR", Mutation{}
		}
		return "", Mutation{Kind: MutationMode, Mode: Mode(strings.ToUpper(req.Args[1]))}
	case "button-select":
		if len(req.Args) != 2 || req.Args[0] != "tx" {
			return "ERROR", Mutation{}
		}
		return "", Mutation{Kind: MutationPTT, PTT: req.Args[1] == "1"}
	default:
		_ = st
		return "ERROR", Mutation{}
	}
}
