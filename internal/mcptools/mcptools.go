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

// Package mcptools is the MCP stdio tool dispatcher named (but left
// out-of-core) by spec.md §1/§6: start_instance, stop_instance,
// execute_qso, halt_tx, set_frequency, set_mode, and reply_to_station, each
// mapped 1:1 onto a Slice State Store or Coordinator method and returning a
// success/error message. Grounded on madpsy-ka9q_ubersdr's mcp_server.go,
// which registers the same mark3labs/mcp-go tool shape for an unrelated
// domain (space weather, noise floor, decoder spots).
package mcptools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/n5dr/shackctl/internal/coordinator"
	"github.com/n5dr/shackctl/internal/qsm"
	"github.com/n5dr/shackctl/internal/slicestore"
	"github.com/n5dr/shackctl/internal/wire"
)

// Deps is everything a tool handler needs to drive the control plane.
type Deps struct {
	Store       *slicestore.Store
	Coordinator *coordinator.Coordinator
	Logger      *slog.Logger
}

// Dispatcher owns the registered tool set and the stdio transport.
type Dispatcher struct {
	deps   Deps
	server *server.MCPServer
}

// New builds the dispatcher and registers every tool spec.md §6 names.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		deps:   deps,
		server: server.NewMCPServer("shackctl", "1.0.0", server.WithToolCapabilities(false)),
	}
	d.registerTools()
	return d
}

// Serve runs the stdio transport until stdin is closed or the process is
// killed; mcp-go's stdio loop has no context-driven shutdown, so callers
// run this in its own goroutine alongside the rest of the control plane.
func (d *Dispatcher) Serve() error {
	if err := server.ServeStdio(d.server); err != nil {
		return fmt.Errorf("mcptools: serve stdio: %w", err)
	}
	return nil
}

func sliceIndexArg(request mcp.CallToolRequest) (int, error) {
	f := request.GetFloat("slice_index", -1)
	if f < 0 {
		return 0, fmt.Errorf("slice_index is required")
	}
	return int(f), nil
}

func (d *Dispatcher) registerTools() {
	d.server.AddTool(
		mcp.NewTool("start_instance",
			mcp.WithDescription("Bind a slice index to a running decoder-app instance, spawning the child process and its CAT listener."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index (0=A, 1=B, ...)"), mcp.Required()),
		),
		d.handleStartInstance,
	)

	d.server.AddTool(
		mcp.NewTool("stop_instance",
			mcp.WithDescription("Unbind a slice index, tearing down its decoder-app instance and CAT listener."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index"), mcp.Required()),
		),
		d.handleStopInstance,
	)

	d.server.AddTool(
		mcp.NewTool("execute_qso",
			mcp.WithDescription("Start the QSO state machine on a bound slice against a target callsign."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index"), mcp.Required()),
			mcp.WithString("my_call", mcp.Description("Operator's own callsign"), mcp.Required()),
			mcp.WithString("target_call", mcp.Description("Callsign to call"), mcp.Required()),
			mcp.WithString("my_grid", mcp.Description("Operator's own grid square")),
		),
		d.handleExecuteQSO,
	)

	d.server.AddTool(
		mcp.NewTool("halt_tx",
			mcp.WithDescription("Immediately stop any transmitting slice, regardless of which instance started it."),
		),
		d.handleHaltTx,
	)

	d.server.AddTool(
		mcp.NewTool("set_frequency",
			mcp.WithDescription("Set a slice's frequency in Hz."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index"), mcp.Required()),
			mcp.WithNumber("frequency_hz", mcp.Description("Frequency in Hz"), mcp.Required()),
		),
		d.handleSetFrequency,
	)

	d.server.AddTool(
		mcp.NewTool("set_mode",
			mcp.WithDescription("Set a slice's mode (e.g. USB, LSB, DIGU, DIGL)."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("Mode name"), mcp.Required()),
		),
		d.handleSetMode,
	)

	d.server.AddTool(
		mcp.NewTool("reply_to_station",
			mcp.WithDescription("Send free-form text through a bound instance's transmitter, outside of a running QSO sequence."),
			mcp.WithNumber("slice_index", mcp.Description("Zero-based slice index"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Text to transmit"), mcp.Required()),
		),
		d.handleReplyToStation,
	)
}

func (d *Dispatcher) handleStartInstance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inUse := true
	d.deps.Store.ApplyPush(index, slicestore.Delta{InUse: &inUse})
	return mcp.NewToolResultText(fmt.Sprintf("slice %d marked in-use; instance will bind shortly", index)), nil
}

func (d *Dispatcher) handleStopInstance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inUse := false
	d.deps.Store.ApplyPush(index, slicestore.Delta{InUse: &inUse})
	return mcp.NewToolResultText(fmt.Sprintf("slice %d marked not-in-use; instance will be torn down", index)), nil
}

func (d *Dispatcher) handleExecuteQSO(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	myCall := request.GetString("my_call", "")
	targetCall := request.GetString("target_call", "")
	myGrid := request.GetString("my_grid", "")
	if myCall == "" || targetCall == "" {
		return mcp.NewToolResultError("my_call and target_call are required"), nil
	}

	cfg := qsm.Config{MyCall: myCall, TargetCall: targetCall, MyGrid: myGrid}
	if err := d.deps.Coordinator.StartQSO(ctx, index, cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("QSO started on slice %d targeting %s", index, targetCall)), nil
}

func (d *Dispatcher) handleHaltTx(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := d.deps.Coordinator.HaltTx(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("transmit halted"), nil
}

func (d *Dispatcher) handleSetFrequency(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hz := int64(request.GetFloat("frequency_hz", 0))
	if hz <= 0 {
		return mcp.NewToolResultError("frequency_hz must be positive"), nil
	}
	if err := d.deps.Coordinator.SetFrequency(index, hz); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("slice %d tuned to %d Hz", index, hz)), nil
}

func (d *Dispatcher) handleSetMode(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := request.GetString("mode", "")
	if mode == "" {
		return mcp.NewToolResultError("mode is required"), nil
	}
	if err := d.deps.Coordinator.SetMode(index, wire.Mode(mode)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("slice %d set to mode %s", index, mode)), nil
}

func (d *Dispatcher) handleReplyToStation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := sliceIndexArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message := request.GetString("message", "")
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}
	if err := d.deps.Coordinator.SendFreeText(ctx, index, message); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("sent free text to slice %d", index)), nil
}
