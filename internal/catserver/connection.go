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

package catserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"

	"github.com/n5dr/shackctl/internal/wire"
)

const detectBufCap = 8

func (s *Server) handleConn(ctx context.Context, index int, conn net.Conn) {
	defer conn.Close()

	head, err := peekDialectHead(conn)
	if err != nil {
		return
	}
	dialect := wire.DetectDialect(head, bytes.ContainsRune(head, ';'))
	s.logger.Debug("catserver: dialect detected", "slice", index, "dialect", dialect.String())

	if s.metrics != nil {
		s.metrics.RecordCATConnection(dialect.String(), index)
		defer s.metrics.RecordCATDisconnect(index)
	}

	switch dialect {
	case wire.DialectKenwood:
		s.runKenwood(ctx, index, conn, head)
	case wire.DialectHRDBinary:
		s.runHRDBinary(ctx, index, conn, head)
	default:
		s.runHRDText(ctx, index, conn, head)
	}
}

// peekDialectHead reads up to detectBufCap bytes, stopping early if a
// dialect-A/B terminator appears, so a short real command isn't blocked on
// waiting for bytes that will never arrive (spec.md §4.1.6).
func peekDialectHead(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, detectBufCap)
	tmp := make([]byte, detectBufCap)
	for len(buf) < detectBufCap {
		n, err := conn.Read(tmp[:detectBufCap-len(buf)])
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if bytes.ContainsAny(buf, ";\r") {
			return buf, nil
		}
		if err != nil {
			if len(buf) == 0 {
				return nil, err
			}
			return buf, nil
		}
	}
	return buf, nil
}

func (s *Server) runKenwood(ctx context.Context, index int, conn net.Conn, head []byte) {
	pending := append([]byte{}, head...)
	tmp := make([]byte, 512)
	for {
		reqs, rest := wire.SplitKenwoodFrames(pending)
		pending = rest
		for _, req := range reqs {
			st := s.sliceState(index)
			reply, mut := wire.KenwoodHandle(req, st)
			s.applyMutation(index, mut)
			if reply != "" {
				if _, err := conn.Write([]byte(reply)); err != nil {
					return
				}
			}
		}
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(tmp)
		if n > 0 {
			pending = append(pending, tmp[:n]...)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) runHRDText(ctx context.Context, index int, conn net.Conn, head []byte) {
	reader := bufio.NewReader(bufferedPrefixReader(head, conn))
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadString('\r')
		if line == "" && err != nil {
			return
		}
		req := wire.ParseHRDLine(line)
		st := s.sliceState(index)
		resp, mut := wire.HRDHandle(req, st)
		s.applyMutation(index, mut)
		if _, werr := conn.Write([]byte(resp + "\r")); werr != nil {
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) runHRDBinary(ctx context.Context, index int, conn net.Conn, head []byte) {
	reader := bufio.NewReader(bufferedPrefixReader(head, conn))
	for {
		if ctx.Err() != nil {
			return
		}
		var lenBuf [4]byte
		if _, err := fillExact(reader, lenBuf[:]); err != nil {
			return
		}
		total := binary.LittleEndian.Uint32(lenBuf[:])
		if total < 4 || total > 1<<20 {
			return
		}
		frame := make([]byte, total)
		copy(frame, lenBuf[:])
		if _, err := fillExact(reader, frame[4:]); err != nil {
			return
		}
		cmd, err := wire.DecodeHRDBinaryFrame(frame)
		if err != nil {
			continue
		}
		req := wire.ParseHRDLine(cmd)
		st := s.sliceState(index)
		resp, mut := wire.HRDHandle(req, st)
		s.applyMutation(index, mut)
		out := wire.EncodeHRDBinaryFrame(resp)
		if _, werr := conn.Write(out); werr != nil {
			return
		}
	}
}

func fillExact(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// bufferedPrefixReader re-presents already-consumed detection bytes ahead
// of the live connection, so the per-dialect loop sees a contiguous stream.
func bufferedPrefixReader(prefix []byte, conn net.Conn) *prefixedConn {
	return &prefixedConn{prefix: prefix, Conn: conn}
}

type prefixedConn struct {
	prefix []byte
	net.Conn
}

func (p *prefixedConn) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.Conn.Read(b)
}

func (s *Server) sliceState(index int) wire.SliceState {
	sl, _ := s.store.Snapshot(index)
	return wire.SliceState{FrequencyHz: sl.FrequencyHz, Mode: sl.Mode, Transmit: sl.Transmit}
}

func (s *Server) applyMutation(index int, mut wire.Mutation) {
	switch mut.Kind {
	case wire.MutationFrequency:
		s.store.SetFrequency(index, mut.FrequencyHz)
		s.emit(Event{Kind: EventFrequencyChange, Index: index, FrequencyHz: mut.FrequencyHz})
	case wire.MutationMode:
		s.store.SetMode(index, mut.Mode)
		s.emit(Event{Kind: EventModeChange, Index: index, Mode: mut.Mode})
	case wire.MutationPTT:
		s.emit(Event{Kind: EventPTTChange, Index: index, PTT: mut.PTT})
	}
}
