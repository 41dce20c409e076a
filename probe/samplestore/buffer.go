// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package samplestore holds the samples gathered by a collection run and
// persists them, either as a JSON file or in a SQLite archive.
package samplestore

import (
	"encoding/json"
	"sort"
)

// Sample is one observation of an entity. Timestamp is in seconds since the
// UNIX epoch.
type Sample struct {
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
	Cmdline   string  `json:"cmdline,omitempty"`
}

// Buffer maps entity identifiers to their samples, in append order. It is
// append-only and not safe for concurrent use: during a run only the poller
// writes it, and readers wait for the poller to finish.
type Buffer struct {
	series map[string][]Sample
	order  []string
}

// NewBuffer returns an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{series: map[string][]Sample{}}
}

// Append adds s at the end of the entity's series
func (b *Buffer) Append(entity string, s Sample) {
	if _, present := b.series[entity]; !present {
		b.order = append(b.order, entity)
	}
	b.series[entity] = append(b.series[entity], s)
}

// Entities returns the entity identifiers in the order they first appeared
func (b *Buffer) Entities() []string {
	return append([]string(nil), b.order...)
}

// SortedEntities returns the entity identifiers in lexical order
func (b *Buffer) SortedEntities() []string {
	entities := b.Entities()
	sort.Strings(entities)
	return entities
}

// Series returns a copy of the entity's samples
func (b *Buffer) Series(entity string) []Sample {
	return append([]Sample(nil), b.series[entity]...)
}

// Len returns the number of samples of the entity
func (b *Buffer) Len(entity string) int {
	return len(b.series[entity])
}

// Total returns the number of samples across all entities
func (b *Buffer) Total() int {
	total := 0
	for _, s := range b.series {
		total += len(s)
	}
	return total
}

// MarshalJSON encodes the buffer as {entity: [sample, ...]}
func (b *Buffer) MarshalJSON() ([]byte, error) {
	if b.series == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.series)
}

// UnmarshalJSON decodes {entity: [sample, ...]}. JSON objects carry no order,
// so entities are kept in lexical order.
func (b *Buffer) UnmarshalJSON(data []byte) error {
	series := map[string][]Sample{}
	if err := json.Unmarshal(data, &series); err != nil {
		return err
	}

	b.series = map[string][]Sample{}
	b.order = nil

	entities := make([]string, 0, len(series))
	for entity := range series {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		b.order = append(b.order, entity)
		b.series[entity] = append([]Sample{}, series[entity]...)
	}
	return nil
}
