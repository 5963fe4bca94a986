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

// SliceState is the read-only view of a slice's CAT-relevant fields that a
// dialect handler needs to answer a query. The CAT server owns the
// authoritative copy (borrowed from the Slice State Store); these handlers
// never hold state themselves, matching spec.md's "one CAT server with a
// dialect strategy ... each dialect is a small stateless encoder/decoder
// pair" redesign note.
type SliceState struct {
	FrequencyHz int64
	Mode        Mode
	Transmit    bool
}

// MutationKind tags the effect a CAT command asks the caller to apply.
type MutationKind int

const (
	MutationNone MutationKind = iota
	MutationFrequency
	MutationMode
	MutationPTT
)

// Mutation is the side effect of a dialect command, applied by the CAT
// server to SSS and mirrored to the radio backend by the Coordinator.
type Mutation struct {
	Kind        MutationKind
	FrequencyHz int64
	Mode        Mode
	PTT         bool
}
