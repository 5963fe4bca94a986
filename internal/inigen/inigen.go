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

// Package inigen generates the decoder-app's per-instance configuration
// file (spec.md §6: "OUT OF CORE"): a sectioned key=value text document the
// Slice→Instance Coordinator writes before spawning an instance. The core
// treats this as opaque text, not a wire protocol, so this package is a
// plain key-value writer rather than a parser/round-trip codec.
package inigen

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Section is one [Name] block of ordered key=value pairs. Key order is
// preserved as inserted so the generated file is stable across runs, which
// matters for diffing and for the decoder app's own file-watch reload.
type Section struct {
	Name string
	keys []string
	vals map[string]string
}

// NewSection creates an empty, named section.
func NewSection(name string) *Section {
	return &Section{Name: name, vals: make(map[string]string)}
}

// Set assigns key=value, appending key to the write order the first time
// it's seen and overwriting the value on subsequent calls.
func (s *Section) Set(key, value string) *Section {
	if _, ok := s.vals[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.vals[key] = value
	return s
}

// SetInt is a convenience wrapper around Set for integer fields.
func (s *Section) SetInt(key string, value int) *Section {
	return s.Set(key, strconv.Itoa(value))
}

// SetBool writes "true"/"false", the decoder app's own boolean spelling.
func (s *Section) SetBool(key string, value bool) *Section {
	return s.Set(key, strconv.FormatBool(value))
}

// Document is an ordered set of Sections.
type Document struct {
	sections []*Section
}

// NewDocument creates an empty Document.
func NewDocument() *Document {
	return &Document{}
}

// Section returns the named section, creating it (appended at the end) if
// this is the first reference.
func (d *Document) Section(name string) *Section {
	for _, s := range d.sections {
		if s.Name == name {
			return s
		}
	}
	s := NewSection(name)
	d.sections = append(d.sections, s)
	return s
}

// Render writes the document in the decoder app's "[Section]\nkey=value"
// shape.
func (d *Document) Render() string {
	var b strings.Builder
	for i, s := range d.sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s]\n", s.Name)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "%s=%s\n", k, s.vals[k])
		}
	}
	return b.String()
}

// WriteFile renders the document and writes it to path with mode 0o644,
// truncating any prior generation for this instance.
func (d *Document) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(d.Render()), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("inigen: write %s: %w", path, err)
	}
	return nil
}

// InstanceConfig is the subset of per-instance values the Coordinator knows
// when it generates a decoder-app config (spec.md §4.7, §6).
type InstanceConfig struct {
	RigName           string
	CATNetworkPort    int
	UDPServerPort     int
	UDPServer         string
	AcceptUDPRequests bool
	SoundInName       string
	SoundOutName      string
	PTTMethod         string
	SplitMode         string
	WideGraphParams   map[string]string
}

// Generate builds the per-instance document described in spec.md §6: a
// "[Configuration]" section with the named keys, plus a "[WideGraph]"
// section for whatever additional display parameters the caller supplies.
func Generate(c InstanceConfig) *Document {
	doc := NewDocument()
	cfg := doc.Section("Configuration")
	cfg.Set("Rig", c.RigName)
	cfg.SetInt("CATNetworkPort", c.CATNetworkPort)
	cfg.Set("PTTMethod", orDefault(c.PTTMethod, "CAT"))
	cfg.Set("SplitMode", orDefault(c.SplitMode, "Rig"))
	cfg.SetInt("UDPServerPort", c.UDPServerPort)
	cfg.Set("UDPServer", orDefault(c.UDPServer, "127.0.0.1"))
	cfg.SetBool("AcceptUDPRequests", c.AcceptUDPRequests)
	cfg.Set("SoundInName", c.SoundInName)
	cfg.Set("SoundOutName", c.SoundOutName)

	if len(c.WideGraphParams) > 0 {
		wg := doc.Section("WideGraph")
		keys := make([]string, 0, len(c.WideGraphParams))
		for k := range c.WideGraphParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			wg.Set(k, c.WideGraphParams[k])
		}
	}
	return doc
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
