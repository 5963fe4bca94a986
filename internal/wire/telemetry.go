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
	"errors"
	"fmt"
)

// Magic and schema values the decoder-app stamps on every telemetry frame.
const (
	TelemetryMagic  uint32 = 0xADBCCBDA
	TelemetrySchema uint32 = 2
)

// Inbound telemetry message types (spec §4.1.1).
const (
	TypeHeartbeat uint32 = 0
	TypeStatus    uint32 = 1
	TypeDecode    uint32 = 2
	TypeClose     uint32 = 6
)

// minTelemetryFrame is magic + schema + type, the shortest header any
// telemetry datagram can carry.
const minTelemetryFrame = 12

var (
	// ErrBadMagic is returned when a telemetry datagram's magic number doesn't match.
	ErrBadMagic = errors.New("wire: bad telemetry magic")
	// ErrShortDatagram is returned for datagrams shorter than the minimum frame header.
	ErrShortDatagram = errors.New("wire: datagram shorter than header")
)

// Kind tags the variant carried by a TelemetryEvent, replacing the
// decoder-app's per-message-type callback classes with a small closed enum.
type Kind int

const (
	KindHeartbeat Kind = iota
	KindStatus
	KindDecode
	KindClose
	// KindIgnored marks a recognized-but-uninteresting or unknown message type.
	KindIgnored
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindClose:
		return "close"
	default:
		return "ignored"
	}
}

// Status is the decoded payload of an inbound Status message.
type Status struct {
	DialFrequencyHz uint64
	Mode            string
	TXEnabled       bool
	Transmitting    bool
}

// Decode is the decoded payload of an inbound Decode message.
type Decode struct {
	IsNew  bool
	TimeMs uint32
	SNRDb  int32
	DtSec  float64
	DfHz   uint32
	Mode   string
	Text   string
}

// TelemetryEvent is the tagged result of decoding one inbound UDP datagram.
type TelemetryEvent struct {
	Kind       Kind
	InstanceID string
	Status     *Status
	Decode     *Decode
}

// DecodeTelemetry parses one inbound UDP datagram from a decoder-app
// instance. It returns (nil, ErrShortDatagram) or (nil, ErrBadMagic) for the
// boundary cases spec.md §8 requires to be dropped with no observable event;
// callers should count those errors and otherwise ignore them. Recognized
// but uninteresting types (anything other than 0/1/2/6) yield
// KindIgnored with a nil error.
func DecodeTelemetry(buf []byte) (*TelemetryEvent, error) {
	if len(buf) < minTelemetryFrame {
		return nil, ErrShortDatagram
	}

	magic, offset, err := readU32(buf, 0)
	if err != nil {
		return nil, err
	}
	if magic != TelemetryMagic {
		return nil, ErrBadMagic
	}

	// schema is not currently branched on; future schema revisions would
	// select a different field layout here.
	_, offset, err = readU32(buf, offset)
	if err != nil {
		return nil, err
	}

	typ, offset, err := readU32(buf, offset)
	if err != nil {
		return nil, err
	}

	id, offset, err := readQString(buf, offset)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeHeartbeat:
		return &TelemetryEvent{Kind: KindHeartbeat, InstanceID: id}, nil
	case TypeStatus:
		status, err := decodeStatusPayload(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("wire: decode status payload: %w", err)
		}
		return &TelemetryEvent{Kind: KindStatus, InstanceID: id, Status: status}, nil
	case TypeDecode:
		decode, err := decodeDecodePayload(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("wire: decode decode payload: %w", err)
		}
		return &TelemetryEvent{Kind: KindDecode, InstanceID: id, Decode: decode}, nil
	case TypeClose:
		return &TelemetryEvent{Kind: KindClose, InstanceID: id}, nil
	default:
		return &TelemetryEvent{Kind: KindIgnored, InstanceID: id}, nil
	}
}

// decodeStatusPayload reads dial_frequency:u64 then a tolerant trailing
// layout of mode:string, tx_enabled:u8, transmitting:u8. Any further trailing
// bytes, or the absence of fields past what's present, are ignored per
// spec.md §4.1.1 ("additional fields are tolerated; unknown tail is ignored").
func decodeStatusPayload(buf []byte, offset int) (*Status, error) {
	dial, offset, err := readU64(buf, offset)
	if err != nil {
		return nil, err
	}
	status := &Status{DialFrequencyHz: dial}

	mode, offset, err := readQString(buf, offset)
	if err != nil {
		return status, nil //nolint:nilerr // tolerate missing trailing fields
	}
	status.Mode = mode

	tx, offset, err := readU8(buf, offset)
	if err != nil {
		return status, nil //nolint:nilerr
	}
	status.TXEnabled = tx != 0

	transmitting, _, err := readU8(buf, offset)
	if err != nil {
		return status, nil //nolint:nilerr
	}
	status.Transmitting = transmitting != 0

	return status, nil
}

func decodeDecodePayload(buf []byte, offset int) (*Decode, error) {
	isNew, offset, err := readU8(buf, offset)
	if err != nil {
		return nil, err
	}
	timeMs, offset, err := readU32(buf, offset)
	if err != nil {
		return nil, err
	}
	snr, offset, err := readI32(buf, offset)
	if err != nil {
		return nil, err
	}
	dt, offset, err := readF64(buf, offset)
	if err != nil {
		return nil, err
	}
	df, offset, err := readU32(buf, offset)
	if err != nil {
		return nil, err
	}
	mode, offset, err := readQString(buf, offset)
	if err != nil {
		return nil, err
	}
	text, _, err := readQString(buf, offset)
	if err != nil {
		return nil, err
	}
	// Trailing optional flags (if present) are intentionally not parsed.
	return &Decode{
		IsNew:  isNew != 0,
		TimeMs: timeMs,
		SNRDb:  snr,
		DtSec:  dt,
		DfHz:   df,
		Mode:   mode,
		Text:   text,
	}, nil
}
