// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package poller implements a collection run: it polls the metrics backend on
// a fixed interval, for a given duration or until stopped, and accumulates the
// samples per entity. When the run ends, however it ends, the buffer is handed
// to the configured writer exactly once.
package poller

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
)

//////////////////// PUBLIC TYPES ////////////////////

// State of a Poller. The only transitions are Idle -> Running and Running ->
// one of the terminal states.
type State int32

const (
	Idle State = iota
	Running
	// Stopped: ended by Stop or by cancellation of the context given to Start
	Stopped
	// Expired: ended because the configured duration elapsed
	Expired
	// Failed: the loop panicked. The buffer was still written
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Config holds the parameters of a collection run.
type Config struct {
	Source Source
	Mode   Mode

	// Interval between polls. Defaults to 1s.
	Interval time.Duration

	// After a failed poll the poller waits Interval * BackoffFactor. Defaults
	// to 5.
	BackoffFactor int

	// If > 0 the run ends once Duration has elapsed. Otherwise it runs until
	// Stop is called or the context is cancelled.
	Duration time.Duration

	// Receives the buffer when the run ends. May be nil.
	Writer samplestore.Writer

	// Defaults to the wall clock.
	Clock Clock
}

// Stats counts the polls of a run.
type Stats struct {
	Polls    int64
	Failures int64
}

// Poller runs one collection run. A Poller cannot be restarted: each run
// starts from an empty buffer.
type Poller struct {
	cfg Config

	state  atomic.Int32
	buf    *samplestore.Buffer
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	polls    atomic.Int64
	failures atomic.Int64
}

//////////////////// PUBLIC FUNCTIONS ////////////////////

// New returns an idle Poller
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultPollInterval
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = constants.DefaultBackoffFactor
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}

	return &Poller{
		cfg:  cfg,
		buf:  samplestore.NewBuffer(),
		done: make(chan struct{}),
	}
}

//////////////////// PUBLIC METHODS ////////////////////

// Start launches the run on its own goroutine. Cancelling ctx has the same
// effect as Stop, except that it also aborts a poll in flight.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Source == nil {
		return errors.New("Poller has no source")
	}
	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return errors.Errorf("Poller cannot start from state %s", p.State())
	}

	stopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.loop(ctx, stopCtx)
	return nil
}

// Stop asks the run to end. The loop notices at its next iteration or during
// its sleep; a poll in flight is allowed to complete. Use Wait to join.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the run has ended and the buffer has been written, then
// returns the buffer. The error reports a panic of the loop or a failure of
// the writer.
func (p *Poller) Wait() (*samplestore.Buffer, error) {
	if p.State() == Idle {
		return nil, errors.New("Poller was never started")
	}
	<-p.done
	return p.buf, p.err
}

// Run is Start followed by Wait
func (p *Poller) Run(ctx context.Context) (*samplestore.Buffer, error) {
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p.Wait()
}

// State returns the current state
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Stats returns the poll counters so far
func (p *Poller) Stats() Stats {
	return Stats{Polls: p.polls.Load(), Failures: p.failures.Load()}
}

// Mode returns the collection mode
func (p *Poller) Mode() Mode {
	return p.cfg.Mode
}

//////////////////// PRIVATE METHODS ////////////////////

// loop polls until stopCtx is done or the duration elapses. fetchCtx is only
// used for the queries, so that Stop lets a poll in flight finish.
func (p *Poller) loop(fetchCtx, stopCtx context.Context) {
	logger := logging.Logger()

	final := Stopped
	defer close(p.done)
	defer p.cancel()
	defer func() {
		if r := recover(); r != nil {
			p.err = errors.Errorf("Collection loop panicked: %v", r)
			logger.Error(p.err)
			final = Failed
		}
		p.flush(final)
	}()

	mode := p.cfg.Mode
	start := p.cfg.Clock.Now()
	logger.Infof("Starting %s collection (interval %v, duration %v)", mode.Name, p.cfg.Interval, p.cfg.Duration)

	for {
		if stopCtx.Err() != nil {
			final = Stopped
			return
		}
		if p.cfg.Duration > 0 && p.cfg.Clock.Now().Sub(start) >= p.cfg.Duration {
			final = Expired
			return
		}

		wait := p.cfg.Interval

		observations, err := p.cfg.Source.Fetch(fetchCtx, mode, p.cfg.Clock.Now())
		if err != nil {
			p.failures.Add(1)
			wait = p.cfg.Interval * time.Duration(p.cfg.BackoffFactor)
			logger.Error("Error while polling ", mode.Name, " metrics: ", err)
			logger.Warnf("Waiting %v before retrying ...", wait)
		} else {
			p.polls.Add(1)
			for _, obs := range observations {
				// A single NaN would make the whole buffer unwritable
				if !Finite(obs.Sample.Value) {
					logger.Warnf("Dropping the non-finite %s value of %s", mode.Name, obs.Entity)
					continue
				}
				p.buf.Append(obs.Entity, obs.Sample)
			}
		}

		if err := p.cfg.Clock.Sleep(stopCtx, wait); err != nil {
			final = Stopped
			return
		}
	}
}

// flush hands the buffer to the writer and publishes the final state. Called
// exactly once, when the loop exits.
func (p *Poller) flush(final State) {
	logger := logging.Logger()

	if p.cfg.Writer != nil {
		// The run's own context may be cancelled already: the write must not
		// depend on it.
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := p.cfg.Writer.Write(ctx, p.buf); err != nil {
			logger.Error("Error while writing the collected samples: ", err)
			p.err = stderrors.Join(p.err, errors.Wrap(err, "Error while writing the collected samples"))
		}
	}

	stats := p.Stats()
	logger.Infof("%s collection %s: %d samples from %d entities (%d polls, %d failed)",
		p.cfg.Mode.Name, final, p.buf.Total(), len(p.buf.Entities()), stats.Polls, stats.Failures)

	p.state.Store(int32(final))
}
