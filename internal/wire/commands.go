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

// Outbound command types (spec §4.1.2).
const (
	TypeClear             uint32 = 3
	TypeReply             uint32 = 4
	TypeHaltTx            uint32 = 8
	TypeFreeText          uint32 = 9
	TypeLocation          uint32 = 11
	TypeRigControl        uint32 = 12
	TypeHighlightCallsign uint32 = 13
	TypeConfigure         uint32 = 15
)

// NoChangeU32 is the Configure command's "leave this field unchanged" sentinel.
const NoChangeU32 uint32 = 0xFFFFFFFF

// ReplyModifierArmed is the modifier byte implementations MUST set on a
// Reply command to arm the decoder app's own transmit sequencer (spec.md
// §4.1.2, and the "Open Questions" note that tests must exercise both
// values).
const ReplyModifierArmed byte = 0x02

// ReplyModifierUnset leaves the decoder app's auto-TX arming untouched.
const ReplyModifierUnset byte = 0x00

func encodeHeader(buf []byte, typ uint32, id string) []byte {
	buf = writeU32(buf, TelemetryMagic)
	buf = writeU32(buf, TelemetrySchema)
	buf = writeU32(buf, typ)
	buf = writeQString(buf, id)
	return buf
}

// Reply is the outbound "answer a decode" command. modifiers should be
// ReplyModifierArmed to arm the decoder app's auto-TX sequencer.
type Reply struct {
	InstanceID    string
	TimeMs        uint32
	SNRDb         int32
	DtSec         float64
	DfHz          uint32
	Mode          string
	Message       string
	LowConfidence bool
	Modifiers     byte
}

// EncodeReply encodes an outbound Reply command.
func EncodeReply(r Reply) []byte {
	buf := encodeHeader(nil, TypeReply, r.InstanceID)
	buf = writeU32(buf, r.TimeMs)
	buf = writeI32(buf, r.SNRDb)
	buf = writeF64(buf, r.DtSec)
	buf = writeU32(buf, r.DfHz)
	buf = writeQString(buf, r.Mode)
	buf = writeQString(buf, r.Message)
	buf = writeU8(buf, boolToU8(r.LowConfidence))
	buf = writeU8(buf, r.Modifiers)
	return buf
}

// EncodeHaltTx encodes an outbound HaltTx command.
func EncodeHaltTx(instanceID string, autoOnly bool) []byte {
	buf := encodeHeader(nil, TypeHaltTx, instanceID)
	return writeU8(buf, boolToU8(autoOnly))
}

// EncodeFreeText encodes an outbound FreeText command.
func EncodeFreeText(instanceID, text string, send bool) []byte {
	buf := encodeHeader(nil, TypeFreeText, instanceID)
	buf = writeQString(buf, text)
	return writeU8(buf, boolToU8(send))
}

// Configure carries the decoder app's mode/submode configuration. Numeric
// fields set to NoChangeU32 and string fields left empty mean "no change"
// and MUST be preserved as such rather than coerced to zero values.
type Configure struct {
	Mode          string
	FreqTolerance uint32
	Submode       string
	Fast          bool
	TRPeriod      uint32
	RxDf          uint32
	DXCall        string
	DXGrid        string
	Generate      bool
}

// EncodeConfigure encodes an outbound Configure command.
func EncodeConfigure(instanceID string, c Configure) []byte {
	buf := encodeHeader(nil, TypeConfigure, instanceID)
	buf = writeQString(buf, c.Mode)
	buf = writeU32(buf, c.FreqTolerance)
	buf = writeQString(buf, c.Submode)
	buf = writeU8(buf, boolToU8(c.Fast))
	buf = writeU32(buf, c.TRPeriod)
	buf = writeU32(buf, c.RxDf)
	buf = writeQString(buf, c.DXCall)
	buf = writeQString(buf, c.DXGrid)
	buf = writeU8(buf, boolToU8(c.Generate))
	return buf
}

// ClearWindow selects which decode window to clear.
type ClearWindow uint8

const (
	ClearWindowBand ClearWindow = 0
	ClearWindowRX   ClearWindow = 1
	ClearWindowTX   ClearWindow = 2
)

// EncodeClear encodes an outbound Clear command.
func EncodeClear(instanceID string, window ClearWindow) []byte {
	buf := encodeHeader(nil, TypeClear, instanceID)
	return writeU8(buf, byte(window))
}

// EncodeLocation encodes an outbound Location command.
func EncodeLocation(instanceID, grid string) []byte {
	buf := encodeHeader(nil, TypeLocation, instanceID)
	return writeQString(buf, grid)
}

// Color is the decoder-app's highlight color triple, encoded with a fixed
// spec byte and a trailing padding field per spec.md §4.1.2.
type Color struct {
	A, R, G, B uint16
}

func encodeColor(buf []byte, c Color) []byte {
	const colorSpec = 1
	buf = writeU8(buf, colorSpec)
	buf = writeU16(buf, c.A)
	buf = writeU16(buf, c.R)
	buf = writeU16(buf, c.G)
	buf = writeU16(buf, c.B)
	buf = writeU16(buf, 0) // pad
	return buf
}

// EncodeHighlightCallsign encodes an outbound HighlightCallsign command.
func EncodeHighlightCallsign(instanceID, call string, background, foreground Color, highlightLast bool) []byte {
	buf := encodeHeader(nil, TypeHighlightCallsign, instanceID)
	buf = writeQString(buf, call)
	buf = encodeColor(buf, background)
	buf = encodeColor(buf, foreground)
	return writeU8(buf, boolToU8(highlightLast))
}

// EncodeRigControl encodes an outbound RigControl command. This message
// uses a shorter header with no id string (spec.md §4.1.2).
func EncodeRigControl(freqHz int64, mode string) []byte {
	buf := writeU32(nil, TelemetryMagic)
	buf = writeU32(buf, TelemetrySchema)
	buf = writeU32(buf, TypeRigControl)
	buf = writeU64(buf, uint64(freqHz)) //nolint:gosec
	buf = writeQString(buf, mode)
	return buf
}

func boolToU8(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v)) //nolint:gosec
}
