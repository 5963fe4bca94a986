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

// Package cmd wires the cobra root command: it loads configuration, builds
// the Slice State Store and its surrounding components (radio backend
// client, CAT Server, Process Supervisor, Telemetry Listener,
// Slice→Instance Coordinator, dashboard, MCP tool dispatcher, metrics
// exporter), and runs them together under one errgroup until an interrupt
// signal asks for a graceful shutdown (spec.md §5).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/n5dr/shackctl/internal/adif"
	"github.com/n5dr/shackctl/internal/catserver"
	"github.com/n5dr/shackctl/internal/config"
	"github.com/n5dr/shackctl/internal/coordinator"
	"github.com/n5dr/shackctl/internal/dashboard"
	"github.com/n5dr/shackctl/internal/decodecache"
	"github.com/n5dr/shackctl/internal/eventbus"
	"github.com/n5dr/shackctl/internal/inigen"
	"github.com/n5dr/shackctl/internal/mcptools"
	"github.com/n5dr/shackctl/internal/metrics"
	"github.com/n5dr/shackctl/internal/qsm"
	"github.com/n5dr/shackctl/internal/radiobackend"
	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/n5dr/shackctl/internal/supervisor"
	"github.com/n5dr/shackctl/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// NewCommand builds the root cobra command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "shackctl",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().String("config", "", "path to the JSON configuration document (defaults apply to anything omitted)")
	return cmd
}

func newLogger(level config.LogLevel) *slog.Logger {
	switch level {
	case config.LogLevelDebug:
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelWarn:
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	case config.LogLevelInfo:
		fallthrough
	default:
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read --config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("shackctl starting", "version", cmd.Annotations["version"], "commit", cmd.Annotations["commit"], "mode", cfg.Mode)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := slicestore.New()
	promMetrics := metrics.NewMetrics()

	bus, err := eventbus.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("failed to close event bus", "error", err)
		}
	}()

	cache, err := decodecache.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build decode cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close decode cache", "error", err)
		}
	}()

	backendAddr, err := resolveBackendAddr(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to resolve radio backend address: %w", err)
	}
	backend := radiobackend.New(backendAddr, store, logger.With("component", "radiobackend"))

	cat := catserver.New(cfg.Flex.CATBasePort, store, logger.With("component", "catserver"))
	cat.SetMetrics(promMetrics)
	sup := supervisor.New(logger.With("component", "supervisor"))
	tl := telemetry.New(cfg.Telemetry.Port, logger.With("component", "telemetry"))
	tl.SetMetrics(promMetrics)

	launch := newLaunchSpec(cfg, logger)
	coord := coordinator.New(store, cat, sup, backend, tl, launch, logger.With("component", "coordinator"))
	coord.SetADIFLogger(adif.NewLogger(cfg.Dashboard.ADIFLogPath))
	coord.SetMetrics(promMetrics)
	coord.OnQSOEvent(func(instanceID string, ev qsm.Event) {
		kind := "qso-complete"
		reason := ""
		if ev.Kind == qsm.EventFailed {
			kind = "qso-failed"
			reason = string(ev.Reason)
		}
		dashboard.PublishQSOEvent(bus, logger, dashboard.QSOEventPayload{Kind: kind, Instance: instanceID, QSOID: ev.QSOID, Reason: reason})
	})

	dash := dashboard.New(cfg, store, cache, bus, logger.With("component", "dashboard"))
	mcp := mcptools.New(mcptools.Deps{Store: store, Coordinator: coord, Logger: logger.With("component", "mcptools")})

	scheduler, err := newReaperScheduler(cfg, tl, sup, logger.With("component", "reaper"))
	if err != nil {
		return fmt.Errorf("failed to start stale-instance reaper: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tl.Run(gctx) })
	g.Go(func() error { return backend.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return metrics.CreateMetricsServer(gctx, cfg) })
	g.Go(func() error { return dash.Run(gctx) })
	g.Go(func() error {
		if err := mcp.Serve(); err != nil {
			logger.Warn("mcp tool dispatcher exited", "error", err)
		}
		return nil
	})
	g.Go(func() error { return sampleTelemetryCounters(gctx, tl, sup, backend, promMetrics) })
	g.Go(func() error { return relaySliceEvents(gctx, store, bus, logger) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("control plane exited early", "error", err)
	}

	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("failed to stop stale-instance reaper cleanly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.StopAll(shutdownCtx); err != nil {
		logger.Warn("failed to stop every instance cleanly", "error", err)
	}

	logger.Info("shackctl stopped")
	return nil
}

// resolveBackendAddr returns host:port for the radio backend session. In
// Flex mode with discovery enabled it runs the SmartSDR UDP discovery
// broadcast first and falls back to the configured host/port if nothing
// answers (spec.md §4.3).
func resolveBackendAddr(ctx context.Context, cfg *config.Config) (string, error) {
	const discoveryPort = 4992
	const discoveryTimeout = 3 * time.Second

	if cfg.Mode != config.ModeFlex || !cfg.Flex.DiscoveryOnly {
		return fmt.Sprintf("%s:%d", cfg.Flex.Host, cfg.Flex.BackendPort), nil
	}
	return radiobackend.Discover(ctx, discoveryPort, discoveryTimeout, cfg.Flex.Host, cfg.Flex.BackendPort)
}

// newLaunchSpec builds the Coordinator's LaunchSpec: it generates the
// decoder-app instance's per-instance INI file and points the Process
// Supervisor at the configured binary (spec.md §4.6, §4.7, §6). Each
// instance gets its own command-reception UDP port
// (telemetry port + 1 + slice index) distinct from the shared Telemetry
// Listener socket every instance reports status to.
func newLaunchSpec(cfg *config.Config, logger *slog.Logger) coordinator.LaunchSpec {
	return func(instanceID string, slice slicestore.Slice) coordinator.Binding {
		instancePort := cfg.Telemetry.Port + 1 + slice.Index
		workDir := filepath.Join(os.TempDir(), "shackctl", instanceID)
		if err := os.MkdirAll(workDir, 0o755); err != nil { //nolint:gosec
			logger.Error("failed to create instance working directory", "instance", instanceID, "error", err)
		}

		iniPath := filepath.Join(workDir, instanceID+".ini")
		doc := inigen.Generate(inigen.InstanceConfig{
			RigName:           cfg.Standard.RigName,
			CATNetworkPort:    cfg.Flex.CATBasePort + slice.Index,
			UDPServerPort:     instancePort,
			UDPServer:         "127.0.0.1",
			AcceptUDPRequests: true,
			SoundInName:       "default",
			SoundOutName:      "default",
		})
		if err := doc.WriteFile(iniPath); err != nil {
			logger.Error("failed to write instance config", "instance", instanceID, "error", err)
		}

		return coordinator.Binding{
			Spec: supervisor.Spec{
				InstanceID: instanceID,
				BinaryPath: cfg.WSJTX.Path,
				Args:       []string{"--rig-name=" + instanceID, "--config=" + iniPath},
				Dir:        workDir,
			},
			TelemetryAddr: fmt.Sprintf("127.0.0.1:%d", instancePort),
		}
	}
}

// newReaperScheduler starts a gocron scheduler running one recurring job:
// every ReapIntervalS, any instance whose Telemetry Listener has gone quiet
// for longer than StaleAfterS is stopped, so a decoder-app instance that was
// killed out-of-band (or wedged without exiting) doesn't linger as a phantom
// child process (spec.md §4.6). The scheduler itself is started immediately;
// the caller shuts it down alongside the other components.
func newReaperScheduler(cfg *config.Config, tl *telemetry.Listener, sup *supervisor.Supervisor, logger *slog.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper scheduler: %w", err)
	}

	staleAfter := time.Duration(cfg.Telemetry.StaleAfterS) * time.Second
	interval := time.Duration(cfg.Telemetry.ReapIntervalS) * time.Second

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			stale := tl.Stale(staleAfter)
			if len(stale) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			reaped := sup.ReapStale(ctx, stale)
			if len(reaped) > 0 {
				logger.Info("reaped stale decoder-app instances", "count", len(reaped), "instances", reaped)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reaper job: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}

// sampleTelemetryCounters periodically republishes the Telemetry Listener's
// drop counters and the Process Supervisor's live instance count as
// prometheus series, since neither pushes its own events for them.
func sampleTelemetryCounters(ctx context.Context, tl *telemetry.Listener, sup *supervisor.Supervisor, backend *radiobackend.Client, m *metrics.Metrics) error {
	const interval = 5 * time.Second
	var last telemetry.Counters
	var lastReconnects uint64

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur := tl.Counters.Snapshot()
			recordDelta(m, "short_frame", cur.ShortFrames, &last.ShortFrames)
			recordDelta(m, "bad_magic", cur.BadMagic, &last.BadMagic)
			recordDelta(m, "decode_error", cur.DecodeErrors, &last.DecodeErrors)
			m.SetInstancesRunning(sup.Count())
			m.SetRBCConnected(backend.Connected())
			for reconnects := backend.Reconnects(); lastReconnects < reconnects; lastReconnects++ {
				m.RecordRBCReconnect()
			}
		}
	}
}

func recordDelta(m *metrics.Metrics, reason string, current uint64, last *uint64) {
	for ; *last < current; *last++ {
		m.RecordTelemetryDrop(reason)
	}
}

// relaySliceEvents forwards every Slice State Store event to the dashboard
// event bus until ctx is canceled.
func relaySliceEvents(ctx context.Context, store *slicestore.Store, bus eventbus.Bus, logger *slog.Logger) error {
	events, unsubscribe := store.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			dashboard.PublishSliceEvent(bus, logger, ev)
		}
	}
}
