// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package bgtask runs recurring background functions, each on its own
// goroutine and its own interval, and records how long every execution takes.
package bgtask

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type task struct {
	function func(ctx context.Context)
	interval time.Duration
	name     string
}

// Manager is not threadsafe, it should only be accessed from a single
// goroutine.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	tasks  []*task

	latency *prometheus.HistogramVec
}

// NewManager returns a Manager whose tasks live until StopAll is called or
// parent is cancelled. Task latencies are registered on reg (nil skips
// registration).
func NewManager(parent context.Context, metricsPrefix string, reg prometheus.Registerer) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
		latency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "_task_latency_seconds",
				Help:    "Background task latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
			}, []string{"task"}),
	}
}

// Register starts fn right away and then every interval after the previous
// execution ended.
func (m *Manager) Register(fn func(ctx context.Context), interval time.Duration, name string) {
	t := &task{
		function: fn,
		interval: interval,
		name:     name,
	}
	m.startBackgroundTask(t)
	m.tasks = append(m.tasks, t)
}

// StopAll cancels every task and waits for them to return. It reports true if
// the timeout expired first.
func (m *Manager) StopAll(timeout time.Duration) bool {
	m.cancel()
	return m.waitForShutdownCompletion(timeout)
}

func (m *Manager) startBackgroundTask(t *task) {
	observer := m.latency.WithLabelValues(t.name)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		for {
			start := time.Now()
			t.function(m.ctx)
			observer.Observe(time.Since(start).Seconds())

			select {
			case <-time.After(t.interval):
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false // completed normally
	case <-time.After(timeout):
		return true // timed out
	}
}
