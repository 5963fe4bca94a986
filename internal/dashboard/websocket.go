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

package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsBufferSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	// The dashboard only ever faces the loopback operator on the box
	// running shackctl (spec.md §1), so there is no cross-origin browser
	// client to reject.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvents upgrades to a WebSocket and relays every message published
// on the dashboard event topic until the client disconnects or the request
// context is canceled.
func (h *handlers) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("dashboard: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	h.logger.Info("dashboard: websocket client connected", "client_id", clientID)
	defer h.logger.Info("dashboard: websocket client disconnected", "client_id", clientID)

	sub := h.bus.Subscribe(eventsTopic)
	defer sub.Close()

	// Drain client reads so a closed/broken connection is detected even
	// though this endpoint never expects an inbound message.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-closed:
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("dashboard: websocket write failed", "error", err)
				return
			}
		}
	}
}
