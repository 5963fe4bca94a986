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
	"fmt"
	"strconv"
	"strings"
)

// KenwoodRequest is one semicolon-terminated command parsed from a dialect-A
// connection. Param is empty for a query form.
type KenwoodRequest struct {
	Verb  string
	Param string
}

// SplitKenwoodFrames splits buf on ';' and returns completed requests plus
// the unconsumed remainder, which the caller should prepend to the next
// read. Every frame of at least two bytes is split into verb and param on
// its first two bytes, the Kenwood convention, without checking the verb;
// unknown verbs are left for the handler to reject.
func SplitKenwoodFrames(buf []byte) (reqs []KenwoodRequest, rest []byte) {
	s := string(buf)
	parts := strings.Split(s, ";")
	// The last element is either "" (buf ended with ';') or a partial frame.
	rest = []byte(parts[len(parts)-1])
	for _, p := range parts[:len(parts)-1] {
		if len(p) < 2 {
			continue
		}
		reqs = append(reqs, KenwoodRequest{Verb: p[:2], Param: p[2:]})
	}
	return reqs, rest
}

const kenwoodFreqWidth = 11

// formatKenwoodFreq zero-pads a frequency in Hz to the fixed 11-digit width
// the TS-2000 dialect uses in FA/FB/IF.
func formatKenwoodFreq(hz int64) string {
	return fmt.Sprintf("%0*d", kenwoodFreqWidth, hz)
}

// KenwoodIF builds the fixed-width IF status line. The exact trailing bytes
// ("0000  ;") are frozen by spec.md §9's Open Questions resolution; this
// MUST match byte-for-byte for the decoder app to parse it.
func KenwoodIF(freqHz int64, tx bool, mode Mode) string {
	var txFlag byte = '0'
	if tx {
		txFlag = '1'
	}
	return "IF" + formatKenwoodFreq(freqHz) + "     " + "+00000000" +
		string(txFlag) + strconv.Itoa(KenwoodNumberFromMode(mode)) + "0000  ;"
}

// KenwoodHandle answers one parsed request against the current slice state.
// It returns the ASCII reply (including trailing ';', empty for a set form
// or an unrecognized verb) and any mutation the caller should apply to SSS.
func KenwoodHandle(req KenwoodRequest, st SliceState) (reply string, mut Mutation) {
	switch req.Verb {
	case "ID":
		// The decoder app uses this to confirm the radio type (spec.md §6).
		return "ID019;", Mutation{}
	case "PS":
		if req.Param == "" {
			return "PS1;", Mutation{}
		}
		return "", Mutation{}
	case "AI":
		if req.Param == "" {
			return "AI0;", Mutation{}
		}
		return "", Mutation{}
	case "IF":
		return KenwoodIF(st.FrequencyHz, st.Transmit, st.Mode), Mutation{}
	case "FA", "FB":
		if req.Param == "" {
			return req.Verb + formatKenwoodFreq(st.FrequencyHz) + ";", Mutation{}
		}
		hz, err := strconv.ParseInt(strings.TrimSpace(req.Param), 10, 64)
		if err != nil {
			return "", Mutation{}
		}
		return "", Mutation{Kind: MutationFrequency, FrequencyHz: hz}
	case "MD":
		if req.Param == "" {
			return fmt.Sprintf("MD%d;", KenwoodNumberFromMode(st.Mode)), Mutation{}
		}
		n, err := strconv.Atoi(strings.TrimSpace(req.Param))
		if err != nil {
			return "", Mutation{}
		}
		return "", Mutation{Kind: MutationMode, Mode: ModeFromKenwoodNumber(n, st.Mode)}
	case "TX":
		return "", Mutation{Kind: MutationPTT, PTT: true}
	case "RX":
		return "", Mutation{Kind: MutationPTT, PTT: false}
	case "TQ":
		if req.Param == "" {
			if st.Transmit {
				return "TQ1;", Mutation{}
			}
			return "TQ0;", Mutation{}
		}
		return "", Mutation{Kind: MutationPTT, PTT: req.Param == "1"}
	default:
		// Unrecognized or unsupported verbs (SP, FT, FR, SM, RS, AG, NB, NR,
		// RA, PA, RT, XT, AN, FL, FW, SH, SL, VX) are accepted but answered
		// with the dialect's negative acknowledgement: an empty reply, per
		// spec.md §4.4 failure semantics.
		return "", Mutation{}
	}
}
