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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/n5dr/shackctl/internal/decodecache"
	"github.com/n5dr/shackctl/internal/eventbus"
	"github.com/n5dr/shackctl/internal/slicestore"
)

type handlers struct {
	store  *slicestore.Store
	cache  decodecache.Cache
	bus    eventbus.Bus
	logger *slog.Logger
}

func (h *handlers) listSlices(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.All())
}

func (h *handlers) recentDecodes(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slice index must be an integer"})
		return
	}

	slice, ok := h.store.Snapshot(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such slice"})
		return
	}
	if slice.InstanceID == "" {
		c.JSON(http.StatusOK, []decodecache.Entry{})
		return
	}

	entries, err := h.cache.Recent(c.Request.Context(), slice.InstanceID)
	if err != nil {
		h.logger.Error("dashboard: failed to read decode cache", "instance", slice.InstanceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read decode cache"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
