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

package dashboard_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/n5dr/shackctl/internal/config"
	"github.com/n5dr/shackctl/internal/dashboard"
	"github.com/n5dr/shackctl/internal/decodecache"
	"github.com/n5dr/shackctl/internal/eventbus"
	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListSlicesReturnsStoreSnapshot(t *testing.T) {
	t.Parallel()

	freq := int64(14074000)
	store := slicestore.New()
	store.ApplyPush(0, slicestore.Delta{FrequencyHz: &freq})

	cache, err := decodecache.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	bus, err := eventbus.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	router := dashboard.NewRouter(store, cache, bus, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/slices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var slices []slicestore.Slice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slices))
	require.Len(t, slices, 1)
	require.Equal(t, int64(14074000), slices[0].FrequencyHz)
}

func TestRecentDecodesUnknownSliceReturns404(t *testing.T) {
	t.Parallel()

	store := slicestore.New()
	cache, err := decodecache.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	bus, err := eventbus.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	router := dashboard.NewRouter(store, cache, bus, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/slices/3/decodes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentDecodesUnboundSliceReturnsEmptyList(t *testing.T) {
	t.Parallel()

	store := slicestore.New()
	store.ApplyPush(0, slicestore.Delta{})
	cache, err := decodecache.New(context.Background(), &config.Config{})
	require.NoError(t, err)
	bus, err := eventbus.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	router := dashboard.NewRouter(store, cache, bus, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/slices/0/decodes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}
