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

package coordinator

import (
	"context"
	"fmt"
	"net"

	"github.com/n5dr/shackctl/internal/qsm"
	"github.com/n5dr/shackctl/internal/wire"
)

// replyModifier is the Reply command's modifier byte the QSM uses. Per
// spec.md's Open Question decision, the QSM always arms the decoder app's
// own transmit sequencer.
const replyModifier = wire.ReplyModifierArmed

// udpTransmitter realizes QSM transmit intents as outbound UDP writes to
// one decoder-app instance's telemetry socket (spec.md §4.8, §5: "single
// writer per instance").
type udpTransmitter struct {
	instanceID string
	conn       net.Conn
}

func newUDPTransmitter(instanceID, addr string) (*udpTransmitter, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("coordinator: dial decoder-app udp %s: %w", addr, err)
	}
	return &udpTransmitter{instanceID: instanceID, conn: conn}, nil
}

func (t *udpTransmitter) Close() error { return t.conn.Close() }

func (t *udpTransmitter) SendFreeText(_ context.Context, text string) error {
	_, err := t.conn.Write(wire.EncodeFreeText(t.instanceID, text, true))
	return err
}

func (t *udpTransmitter) SendReply(_ context.Context, d qsm.Decode, message string) error {
	r := wire.Reply{
		InstanceID: t.instanceID,
		TimeMs:     d.TimeMs,
		SNRDb:      d.SNRDb,
		DtSec:      d.DtSec,
		DfHz:       d.DfHz,
		Mode:       d.Mode,
		Message:    message,
		Modifiers:  replyModifier,
	}
	_, err := t.conn.Write(wire.EncodeReply(r))
	return err
}
