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

// Package dashboard is the operator-facing HTTP/WebSocket surface named but
// left out-of-core by spec.md §1: a read-mostly gin API over the Slice
// State Store and decode cache, plus a WebSocket feed of the event bus so a
// browser dashboard never has to poll. It follows DMRHub's
// internal/http/websocket split, with the gorm/session/CORS machinery
// stripped since this server only ever faces loopback operators.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/n5dr/shackctl/internal/config"
	"github.com/n5dr/shackctl/internal/decodecache"
	"github.com/n5dr/shackctl/internal/eventbus"
	"github.com/n5dr/shackctl/internal/slicestore"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	eventsTopic  = "dashboard.events"
)

// Server is the dashboard's HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the dashboard router: slice state and recent-decode reads
// backed directly by the SSS and decode cache, and a WebSocket endpoint
// that mirrors the event bus to every connected browser.
func New(cfg *config.Config, store *slicestore.Store, cache decodecache.Cache, bus eventbus.Bus, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Web.Port),
			Handler:      NewRouter(store, cache, bus, logger),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger: logger,
	}
}

// NewRouter builds the gin engine on its own, without binding a listener,
// so tests can drive it with httptest instead of a real socket.
func NewRouter(store *slicestore.Store, cache decodecache.Cache, bus eventbus.Bus, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handlers{store: store, cache: cache, bus: bus, logger: logger}
	r.GET("/api/slices", h.listSlices)
	r.GET("/api/slices/:index/decodes", h.recentDecodes)
	r.GET("/ws/events", h.streamEvents)
	return r
}

// Run serves the dashboard until ctx is canceled, in the same
// listen-then-select-on-shutdown shape as the metrics exporter.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: listen %s: %w", s.httpServer.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), readTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard: shutdown: %w", err)
		}
		return nil
	}
}

// PublishEvent is the Coordinator/QSM-facing side of the event bus: callers
// marshal a dashboard event payload and publish it under the topic the
// WebSocket handler relays to browsers.
func PublishEvent(bus eventbus.Bus, payload []byte) error {
	return bus.Publish(eventsTopic, payload)
}

// SliceEventPayload is the JSON shape a Slice State Store event is
// rendered to before being relayed to every connected WebSocket client.
type SliceEventPayload struct {
	Kind  string           `json:"kind"`
	Index int              `json:"index"`
	State slicestore.Slice `json:"state"`
}

var sliceEventKindNames = map[slicestore.EventKind]string{
	slicestore.EventSliceAdded:   "slice-added",
	slicestore.EventSliceUpdated: "slice-updated",
	slicestore.EventSliceRemoved: "slice-removed",
}

// PublishSliceEvent renders an SSS event as the dashboard's slice-* payload
// and publishes it. Marshal errors are logged rather than returned since a
// relay goroutine has no caller to report them to.
func PublishSliceEvent(bus eventbus.Bus, logger *slog.Logger, ev slicestore.Event) {
	payload := SliceEventPayload{Kind: sliceEventKindNames[ev.Kind], Index: ev.Index, State: ev.State}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("dashboard: failed to marshal slice event", "error", err)
		return
	}
	if err := PublishEvent(bus, raw); err != nil {
		logger.Warn("dashboard: failed to publish slice event", "error", err)
	}
}

// QSOEventPayload is the JSON shape a QSO state machine's terminal event is
// rendered to before being relayed to every connected WebSocket client.
type QSOEventPayload struct {
	Kind     string `json:"kind"`
	Instance string `json:"instance"`
	QSOID    string `json:"qso_id"`
	Reason   string `json:"reason,omitempty"`
}

// PublishQSOEvent renders a QSO terminal event and publishes it.
func PublishQSOEvent(bus eventbus.Bus, logger *slog.Logger, payload QSOEventPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("dashboard: failed to marshal qso event", "error", err)
		return
	}
	if err := PublishEvent(bus, raw); err != nil {
		logger.Warn("dashboard: failed to publish qso event", "error", err)
	}
}
