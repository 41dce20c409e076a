// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package poller

import (
	"context"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq/promqtest"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
)

var t0 = time.Unix(1700000000, 0)

// sourceFunc adapts a function to Source
type sourceFunc func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error)

func (f sourceFunc) Fetch(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
	return f(ctx, mode, now)
}

// constantSource returns one observation of entity "abc" per poll, stamped
// with the poll time
func constantSource(calls *atomic.Int64) Source {
	return sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls.Add(1)
		return []Observation{{
			Entity: "abc",
			Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: 5},
		}}, nil
	})
}

// countingWriter counts the writes it receives
func countingWriter(writes *atomic.Int64) samplestore.Writer {
	return samplestore.WriterFunc(func(ctx context.Context, buf *samplestore.Buffer) error {
		writes.Add(1)
		return nil
	})
}

func TestPollerRunsForDuration(t *testing.T) {
	ass := require.New(t)

	var calls, writes atomic.Int64
	clock := NewVirtualClock(t0)
	p := New(Config{
		Source:   constantSource(&calls),
		Mode:     EnergyMode(),
		Interval: time.Second,
		Duration: 10 * time.Second,
		Writer:   countingWriter(&writes),
		Clock:    clock,
	})

	buf, err := p.Run(context.Background())
	ass.NoError(err)
	ass.Equal(Expired, p.State())
	ass.Equal(int64(1), writes.Load())
	ass.Equal(int64(10), calls.Load())
	ass.Equal(Stats{Polls: 10, Failures: 0}, p.Stats())

	series := buf.Series("abc")
	ass.Len(series, 10)
	for i, s := range series {
		ass.Equal(float64(1700000000+i), s.Timestamp)
		ass.Equal(5.0, s.Value)
	}
}

// sleepRecorder remembers the context of the last Sleep
type sleepRecorder struct {
	*VirtualClock
	last context.Context
}

func (c *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	c.last = ctx
	return c.VirtualClock.Sleep(ctx, d)
}

func TestPollerExpiryReleasesContext(t *testing.T) {
	ass := require.New(t)

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	clock := &sleepRecorder{VirtualClock: NewVirtualClock(t0)}
	p := New(Config{
		Source:   constantSource(&calls),
		Mode:     EnergyMode(),
		Duration: 3 * time.Second,
		Clock:    clock,
	})

	_, err := p.Run(parent)
	ass.NoError(err)
	ass.Equal(Expired, p.State())
	ass.NoError(parent.Err())
	ass.NotNil(clock.last)
	ass.Error(clock.last.Err())
}

func TestPollerStop(t *testing.T) {
	ass := require.New(t)

	var writes atomic.Int64
	var p *Poller
	var calls int
	source := sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls++
		if calls == 3 {
			// The poll in flight still completes
			p.Stop()
		}
		return []Observation{{Entity: "abc", Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: 1}}}, nil
	})

	p = New(Config{
		Source: source,
		Mode:   EnergyMode(),
		Writer: countingWriter(&writes),
		Clock:  NewVirtualClock(t0),
	})

	buf, err := p.Run(context.Background())
	ass.NoError(err)
	ass.Equal(Stopped, p.State())
	ass.Equal(3, buf.Len("abc"))
	ass.Equal(int64(1), writes.Load())

	// Stopping again is harmless
	p.Stop()
	ass.Equal(Stopped, p.State())
}

func TestPollerContextCancellation(t *testing.T) {
	ass := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	source := sourceFunc(func(_ context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return []Observation{{Entity: "abc", Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: 1}}}, nil
	})

	p := New(Config{Source: source, Mode: EnergyMode(), Clock: NewVirtualClock(t0)})
	buf, err := p.Run(ctx)
	ass.NoError(err)
	ass.Equal(Stopped, p.State())
	ass.Equal(2, buf.Len("abc"))
}

func TestPollerBacksOffAfterFailure(t *testing.T) {
	ass := require.New(t)

	clock := NewVirtualClock(t0)
	source := sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		return nil, errors.New("connection refused")
	})

	p := New(Config{
		Source:   source,
		Mode:     EnergyMode(),
		Interval: time.Second,
		Duration: 12 * time.Second,
		Clock:    clock,
	})

	buf, err := p.Run(context.Background())
	ass.NoError(err)
	ass.Equal(Expired, p.State())
	ass.Equal(0, buf.Total())
	ass.Equal(Stats{Polls: 0, Failures: 3}, p.Stats())
	ass.Equal([]time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, clock.Sleeps())
}

func TestPollerFailedPollContributesNothing(t *testing.T) {
	ass := require.New(t)

	var calls int
	source := sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("bad gateway")
		}
		return []Observation{{Entity: "abc", Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: 1}}}, nil
	})

	p := New(Config{
		Source:   source,
		Mode:     EnergyMode(),
		Interval: time.Second,
		Duration: 10 * time.Second,
		Clock:    NewVirtualClock(t0),
	})

	buf, err := p.Run(context.Background())
	ass.NoError(err)

	var timestamps []float64
	for _, s := range buf.Series("abc") {
		timestamps = append(timestamps, s.Timestamp-1700000000)
	}
	// t0 ok, t0+1 fails and backs off 5s, then polls resume at t0+6
	ass.Equal([]float64{0, 6, 7, 8, 9}, timestamps)
	ass.Equal(Stats{Polls: 5, Failures: 1}, p.Stats())
}

func TestPollerPanicStillFlushes(t *testing.T) {
	ass := require.New(t)

	var writes atomic.Int64
	var calls int
	source := sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls++
		if calls == 3 {
			panic("boom")
		}
		return []Observation{{Entity: "abc", Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: 1}}}, nil
	})

	p := New(Config{
		Source: source,
		Mode:   EnergyMode(),
		Writer: countingWriter(&writes),
		Clock:  NewVirtualClock(t0),
	})

	buf, err := p.Run(context.Background())
	ass.Error(err)
	ass.Contains(err.Error(), "boom")
	ass.Equal(Failed, p.State())
	ass.Equal(int64(1), writes.Load())
	ass.Equal(2, buf.Len("abc"))
}

func TestPollerWriterError(t *testing.T) {
	ass := require.New(t)

	var calls atomic.Int64
	p := New(Config{
		Source:   constantSource(&calls),
		Mode:     EnergyMode(),
		Duration: 3 * time.Second,
		Writer: samplestore.WriterFunc(func(ctx context.Context, buf *samplestore.Buffer) error {
			return errors.New("disk full")
		}),
		Clock: NewVirtualClock(t0),
	})

	buf, err := p.Run(context.Background())
	ass.Error(err)
	ass.Contains(err.Error(), "disk full")
	ass.Equal(Expired, p.State())
	ass.Equal(3, buf.Len("abc"))
}

func TestPollerSkipsNonFiniteValues(t *testing.T) {
	ass := require.New(t)

	var calls int
	source := sourceFunc(func(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
		calls++
		value := 12.5
		switch calls {
		case 3:
			value = math.NaN()
		case 7:
			value = math.Inf(1)
		}
		return []Observation{{Entity: "abc", Sample: samplestore.Sample{Timestamp: unixSeconds(now), Value: value}}}, nil
	})

	path := filepath.Join(t.TempDir(), "metrics_cpu.json")
	p := New(Config{
		Source:   source,
		Mode:     CPUMode("oai-gnb"),
		Interval: time.Second,
		Duration: 10 * time.Second,
		Writer:   samplestore.FileWriter{Path: path},
		Clock:    NewVirtualClock(t0),
	})

	buf, err := p.Run(context.Background())
	ass.NoError(err)
	ass.Equal(Expired, p.State())
	ass.Equal(Stats{Polls: 10, Failures: 0}, p.Stats())
	ass.Equal(8, buf.Len("abc"))

	loaded := samplestore.Load(path)
	ass.NoError(loaded.Err)
	ass.NotNil(loaded.Value)
	series := loaded.Value.Series("abc")
	ass.Len(series, 8)
	for _, s := range series {
		ass.Equal(12.5, s.Value)
	}
}

func TestPollerLifecycleErrors(t *testing.T) {
	ass := require.New(t)

	p := New(Config{Mode: EnergyMode()})
	ass.Error(p.Start(context.Background()))

	var calls atomic.Int64
	p = New(Config{Source: constantSource(&calls), Mode: EnergyMode(), Duration: time.Second, Clock: NewVirtualClock(t0)})
	_, err := p.Wait()
	ass.Error(err)
	ass.Equal(Idle, p.State())

	ass.NoError(p.Start(context.Background()))
	ass.Error(p.Start(context.Background()))
	_, err = p.Wait()
	ass.NoError(err)
}

func TestPromSourceInstant(t *testing.T) {
	ass := require.New(t)

	now := time.Unix(1700000000, 500000000)
	fake := &promqtest.Fake{
		QueryFunc: func(query string, ts time.Time) (model.Vector, error) {
			return model.Vector{
				promqtest.Sample(3.5, ts, "container_id", "abc", "cmdline", "nr-softmodem"),
				promqtest.Sample(1.25, ts, "container_id", "def"),
				promqtest.Sample(9, ts, "pod", "no-id-label"),
			}, nil
		},
	}

	observations, err := PromSource{Querier: fake}.Fetch(context.Background(), EnergyMode(), now)
	ass.NoError(err)
	ass.Equal([]Observation{
		{Entity: "abc", Sample: samplestore.Sample{Timestamp: 1700000000.5, Value: 3.5, Cmdline: "nr-softmodem"}},
		{Entity: "def", Sample: samplestore.Sample{Timestamp: 1700000000.5, Value: 1.25, Cmdline: "unknown"}},
	}, observations)
	ass.Equal([]string{EnergyMode().Query}, fake.Queries())
}

func TestPromSourceRange(t *testing.T) {
	ass := require.New(t)

	now := time.Unix(1700000010, 0)
	var gotStart, gotEnd time.Time
	var gotStep time.Duration
	fake := &promqtest.Fake{
		QueryRangeFunc: func(query string, start, end time.Time, step time.Duration) (model.Matrix, error) {
			gotStart, gotEnd, gotStep = start, end, step
			return model.Matrix{
				&model.SampleStream{
					Metric: promqtest.Metric("node", "worker-1"),
					Values: []model.SamplePair{
						{Timestamp: model.Time(1700000008000), Value: 40},
						{Timestamp: model.Time(1700000009500), Value: 41},
					},
				},
				&model.SampleStream{
					Metric: promqtest.Metric("instance", "10.0.0.1"),
					Values: []model.SamplePair{{Timestamp: model.Time(1700000009000), Value: 1}},
				},
			}, nil
		},
	}

	observations, err := PromSource{Querier: fake}.Fetch(context.Background(), HostEnergyMode("worker-1"), now)
	ass.NoError(err)
	ass.Equal(now.Add(-5*time.Second), gotStart)
	ass.Equal(now, gotEnd)
	ass.Equal(time.Second, gotStep)
	ass.Equal([]Observation{
		{Entity: "worker-1", Sample: samplestore.Sample{Timestamp: 1700000008, Value: 40}},
		{Entity: "worker-1", Sample: samplestore.Sample{Timestamp: 1700000009.5, Value: 41}},
	}, observations)
}

func TestPromSourceSkipsNonFinite(t *testing.T) {
	ass := require.New(t)

	fake := &promqtest.Fake{
		QueryFunc: func(query string, ts time.Time) (model.Vector, error) {
			return model.Vector{
				promqtest.Sample(math.NaN(), ts, "pod", "oai-gnb-0"),
				promqtest.Sample(37, ts, "pod", "oai-gnb-1"),
			}, nil
		},
		QueryRangeFunc: func(query string, start, end time.Time, step time.Duration) (model.Matrix, error) {
			return model.Matrix{
				&model.SampleStream{
					Metric: promqtest.Metric("node", "worker-1"),
					Values: []model.SamplePair{
						{Timestamp: model.Time(1700000008000), Value: model.SampleValue(math.Inf(-1))},
						{Timestamp: model.Time(1700000009000), Value: 41},
					},
				},
			}, nil
		},
	}

	observations, err := PromSource{Querier: fake}.Fetch(context.Background(), CPUMode("oai-gnb"), t0)
	ass.NoError(err)
	ass.Len(observations, 1)
	ass.Equal("oai-gnb-1", observations[0].Entity)

	observations, err = PromSource{Querier: fake}.Fetch(context.Background(), HostEnergyMode("worker-1"), t0)
	ass.NoError(err)
	ass.Equal([]Observation{
		{Entity: "worker-1", Sample: samplestore.Sample{Timestamp: 1700000009, Value: 41}},
	}, observations)
}

func TestPromSourceError(t *testing.T) {
	ass := require.New(t)

	fake := &promqtest.Fake{
		QueryFunc: func(query string, ts time.Time) (model.Vector, error) {
			return nil, errors.New("timeout")
		},
	}
	observations, err := PromSource{Querier: fake}.Fetch(context.Background(), CPUMode("oai-gnb"), t0)
	ass.Error(err)
	ass.Nil(observations)
}

func TestModeByName(t *testing.T) {
	ass := require.New(t)

	mode, err := ModeByName("energy", "", nil)
	ass.NoError(err)
	ass.Equal("container_id", mode.IDLabel)

	_, err = ModeByName("cpu", "", nil)
	ass.Error(err)

	mode, err = ModeByName("cpu", "oai-gnb", nil)
	ass.NoError(err)
	ass.Equal("pod", mode.IDLabel)
	ass.Contains(mode.Query, "oai-gnb")

	mode, err = ModeByName("host_energy", "", []string{"worker-1"})
	ass.NoError(err)
	ass.True(mode.Range)

	_, err = ModeByName("gpu", "", nil)
	ass.Error(err)
}
