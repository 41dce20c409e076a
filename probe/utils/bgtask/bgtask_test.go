// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package bgtask

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestManagerRunsTasksIndependently(t *testing.T) {
	ass := require.New(t)

	reg := prometheus.NewRegistry()
	m := NewManager(context.Background(), "test", reg)

	var fast, slow atomic.Int32
	m.Register(func(ctx context.Context) { fast.Add(1) }, 5*time.Millisecond, "fast")
	m.Register(func(ctx context.Context) { slow.Add(1) }, time.Hour, "slow")

	ass.Eventually(func() bool { return fast.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	ass.Equal(int32(1), slow.Load())

	ass.False(m.StopAll(2 * time.Second))

	families, err := reg.Gather()
	ass.NoError(err)
	ass.Len(families, 1)
	ass.Equal("test_task_latency_seconds", families[0].GetName())
	ass.Len(families[0].GetMetric(), 2)
}

func TestManagerStopAllCancelsRunningTask(t *testing.T) {
	ass := require.New(t)

	m := NewManager(context.Background(), "test", nil)

	started := make(chan struct{})
	m.Register(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, time.Hour, "blocking")

	<-started
	ass.False(m.StopAll(2 * time.Second))
}
