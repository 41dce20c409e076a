// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package exporter

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
)

// Point is a scraped value with its UNIX timestamp (seconds)
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// State is what the service knows about the entities it scrapes: the latest
// value of each one, replaced as a whole at every scrape, and a bounded
// history per entity.
type State struct {
	latest atomic.Pointer[map[string]float64]

	// The deques are not threadsafe: guarded by mu
	mu        sync.Mutex
	history   map[string]*deque.Deque[Point]
	retention time.Duration
}

// NewState returns an empty state keeping retention worth of history
func NewState(retention time.Duration) *State {
	s := &State{
		history:   map[string]*deque.Deque[Point]{},
		retention: retention,
	}
	empty := map[string]float64{}
	s.latest.Store(&empty)
	return s
}

// Replace publishes the values of a scrape taken at time at. Entities missing
// from values are no longer part of the latest values, but keep their
// history until it expires.
func (s *State) Replace(values map[string]float64, at time.Time) {
	snapshot := make(map[string]float64, len(values))
	for name, value := range values {
		snapshot[name] = value
	}
	s.latest.Store(&snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := at.Unix()
	for name, value := range snapshot {
		d, ok := s.history[name]
		if !ok {
			d = new(deque.Deque[Point])
			s.history[name] = d
		}
		// One point per second at most
		if d.Len() > 0 && d.Back().Timestamp == ts {
			d.Set(d.Len()-1, Point{Timestamp: ts, Value: value})
			continue
		}
		d.PushBack(Point{Timestamp: ts, Value: value})
	}

	oldest := at.Add(-s.retention).Unix()
	for name, d := range s.history {
		for d.Len() > 0 && d.Front().Timestamp < oldest {
			d.PopFront()
		}
		if d.Len() == 0 {
			delete(s.history, name)
		}
	}
}

// Latest returns the values of the last scrape. The map must not be
// modified.
func (s *State) Latest() map[string]float64 {
	return *s.latest.Load()
}

// Names returns the entities that have some history, sorted
func (s *State) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.history))
	for name := range s.history {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// History returns the points of name within [start, end]. A nil bound is
// open.
func (s *State) History(name string, start, end *int64) []Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := []Point{}
	d, ok := s.history[name]
	if !ok {
		return points
	}
	for i := 0; i < d.Len(); i++ {
		p := d.At(i)
		if (start == nil || p.Timestamp >= *start) && (end == nil || p.Timestamp <= *end) {
			points = append(points, p)
		}
	}
	return points
}
