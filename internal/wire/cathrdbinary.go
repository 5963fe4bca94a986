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
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// HRD v5 binary framing magics (spec.md §4.1.5), little-endian.
const (
	HRDBinaryMagic1 uint32 = 0x1234ABCD
	HRDBinaryMagic2 uint32 = 0xABCD1234
)

// minHRDBinaryFrame is total_len + magic1 + magic2 + checksum, the shortest
// a framed HRD-binary message can be even with an empty command string.
const minHRDBinaryFrame = 16

var (
	// ErrHRDBinaryShort is returned for a buffer too short to hold the fixed header.
	ErrHRDBinaryShort = errors.New("wire: hrd binary frame shorter than header")
	// ErrHRDBinaryMagic is returned when either magic word doesn't match.
	ErrHRDBinaryMagic = errors.New("wire: hrd binary frame bad magic")
	// ErrHRDBinaryLength is returned when total_len disagrees with the buffer.
	ErrHRDBinaryLength = errors.New("wire: hrd binary frame length mismatch")
)

// DecodeHRDBinaryFrame decodes one little-endian HRD v5 frame: total_len
// (inclusive of itself), magic1, magic2, checksum, then a null-terminated
// UTF-16LE command string. It returns the command text with its terminator
// stripped.
func DecodeHRDBinaryFrame(buf []byte) (string, error) {
	if len(buf) < minHRDBinaryFrame {
		return "", ErrHRDBinaryShort
	}
	totalLen := binary.LittleEndian.Uint32(buf[0:])
	if int(totalLen) != len(buf) {
		return "", ErrHRDBinaryLength
	}
	magic1 := binary.LittleEndian.Uint32(buf[4:])
	magic2 := binary.LittleEndian.Uint32(buf[8:])
	if magic1 != HRDBinaryMagic1 || magic2 != HRDBinaryMagic2 {
		return "", ErrHRDBinaryMagic
	}
	// checksum at buf[12:16] is not verified; the reference clients send 0.
	payload := buf[16:]
	codeUnits := len(payload) / 2
	units := make([]uint16, 0, codeUnits)
	for i := 0; i < codeUnits; i++ {
		u := binary.LittleEndian.Uint16(payload[i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// EncodeHRDBinaryFrame frames cmd the same way the decoder-app's peer
// expects it echoed back: identical magics, a recomputed total_len, and a
// null-terminated UTF-16LE payload.
func EncodeHRDBinaryFrame(cmd string) []byte {
	units := utf16.Encode([]rune(cmd))
	units = append(units, 0)
	totalLen := uint32(minHRDBinaryFrame + len(units)*2) //nolint:gosec

	buf := make([]byte, 16, int(totalLen))
	binary.LittleEndian.PutUint32(buf[0:], totalLen)
	binary.LittleEndian.PutUint32(buf[4:], HRDBinaryMagic1)
	binary.LittleEndian.PutUint32(buf[8:], HRDBinaryMagic2)
	binary.LittleEndian.PutUint32(buf[12:], 0)

	for _, u := range units {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], u)
		buf = append(buf, b[:]...)
	}
	return buf
}

// PeekHRDBinaryLength reads the little-endian total_len prefix without
// validating magics, for a reader that needs to know how many more bytes to
// buffer before calling DecodeHRDBinaryFrame.
func PeekHRDBinaryLength(header [4]byte) uint32 {
	return binary.LittleEndian.Uint32(header[:])
}
