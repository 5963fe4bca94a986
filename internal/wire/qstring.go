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

// Package wire implements the decoder-app's length-framed QDataStream-style
// binary protocol and the three CAT dialects. Every function here is a pure
// transform over byte slices; none of it performs I/O.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf16"
)

// ErrShortBuffer is returned when a buffer ends before a field can be read.
var ErrShortBuffer = errors.New("wire: buffer too short")

// nullStringLength is the Qt sentinel for a null QString.
const nullStringLength = 0xFFFFFFFF

// readQString decodes a Qt-style string: a u32 byte length followed by that
// many bytes of UTF-16BE. A length of 0xFFFFFFFF denotes a null string,
// decoded as empty with the offset still advanced by the 4-byte length
// field only. An odd length tolerates its trailing byte: it is skipped
// without being decoded, so the final half-codepoint is dropped.
func readQString(buf []byte, offset int) (string, int, error) {
	if offset+4 > len(buf) {
		return "", offset, ErrShortBuffer
	}
	length := binary.BigEndian.Uint32(buf[offset:])
	offset += 4
	if length == nullStringLength || length == 0 {
		return "", offset, nil
	}
	if offset+int(length) > len(buf) {
		return "", offset, ErrShortBuffer
	}
	codeUnits := int(length) / 2
	units := make([]uint16, codeUnits)
	for i := 0; i < codeUnits; i++ {
		units[i] = binary.BigEndian.Uint16(buf[offset+i*2:])
	}
	offset += int(length)
	return string(utf16.Decode(units)), offset, nil
}

// writeQString appends a Qt-style string to buf and returns the result.
func writeQString(buf []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(units)*2)) //nolint:gosec
	buf = append(buf, length...)
	for _, u := range units {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], u)
		buf = append(buf, b[:]...)
	}
	return buf
}

func readU8(buf []byte, offset int) (byte, int, error) {
	if offset+1 > len(buf) {
		return 0, offset, ErrShortBuffer
	}
	return buf[offset], offset + 1, nil
}

func readU32(buf []byte, offset int) (uint32, int, error) {
	if offset+4 > len(buf) {
		return 0, offset, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(buf[offset:]), offset + 4, nil
}

func readU64(buf []byte, offset int) (uint64, int, error) {
	if offset+8 > len(buf) {
		return 0, offset, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(buf[offset:]), offset + 8, nil
}

func readI32(buf []byte, offset int) (int32, int, error) {
	v, n, err := readU32(buf, offset)
	return int32(v), n, err //nolint:gosec
}

func readF64(buf []byte, offset int) (float64, int, error) {
	v, n, err := readU64(buf, offset)
	if err != nil {
		return 0, n, err
	}
	return math.Float64frombits(v), n, nil
}

func writeU8(buf []byte, v byte) []byte {
	return append(buf, v)
}

func writeU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func writeI32(buf []byte, v int32) []byte {
	return writeU32(buf, uint32(v)) //nolint:gosec
}

func writeU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func writeF64(buf []byte, v float64) []byte {
	return writeU64(buf, math.Float64bits(v))
}
