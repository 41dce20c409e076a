// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package identity

import (
	"strings"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
)

// This package maps the opaque identifiers found in metric samples (usually a
// truncated pod uid) to pod names

//////////////////// PUBLIC STRUCT TYPES ////////////////////

// Entry is a row of the mapping
type Entry struct {
	// Full unique identifier, as known by the inventory
	UID string
	// Display name, e.g. the pod name
	Name string
}

// Mapping is an ordered, immutable list of entries. A Mapping is never
// modified after construction: a refresh builds a new one, so holding a
// *Mapping always gives a consistent view.
type Mapping struct {
	entries []Entry
}

//////////////////// PUBLIC FUNCTIONS ////////////////////

// NewMapping builds a mapping from entries, keeping their order. Entries with
// an empty uid or name are dropped, and so are repeated uids (the first one
// wins).
func NewMapping(entries []Entry) *Mapping {
	seen := make(map[string]struct{}, len(entries))
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.UID == "" || e.Name == "" {
			continue
		}
		if _, dup := seen[e.UID]; dup {
			continue
		}
		seen[e.UID] = struct{}{}
		kept = append(kept, e)
	}
	return &Mapping{entries: kept}
}

// FromPods builds a mapping from an inventory listing
func FromPods(pods []inventory.Pod) *Mapping {
	entries := make([]Entry, 0, len(pods))
	for _, pod := range pods {
		entries = append(entries, Entry{UID: pod.UID, Name: pod.Name})
	}
	return NewMapping(entries)
}

// EmptyMapping returns a mapping that resolves everything to "unknown"
func EmptyMapping() *Mapping {
	return &Mapping{}
}

// Truncate returns the last dash-separated segment of a uid, which is how the
// power exporter reports container ids
func Truncate(uid string) string {
	return uid[strings.LastIndex(uid, "-")+1:]
}

//////////////////// PUBLIC METHODS ////////////////////

// Resolve returns the name of the first entry whose uid ends with short, or
// "unknown". When several uids share the same suffix, the first one in
// mapping order wins.
func (m *Mapping) Resolve(short string) string {
	if m == nil || short == "" {
		return constants.UnknownName
	}
	for _, e := range m.entries {
		if strings.HasSuffix(e.UID, short) {
			return e.Name
		}
	}
	return constants.UnknownName
}

// FindByName returns the first entry whose name contains term
func (m *Mapping) FindByName(term string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, e := range m.entries {
		if strings.Contains(e.Name, term) {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the entries, in order
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	return append([]Entry(nil), m.entries...)
}

// Len returns the number of entries
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
