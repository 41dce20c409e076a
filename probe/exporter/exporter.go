// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package exporter is the always-on side of powerprobe: it keeps the identity
// mapping fresh, scrapes the power of every known pod and republishes it as a
// gauge. Two independent timers drive the refresh and the scrape.
package exporter

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/model"
	"golang.org/x/sync/errgroup"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/identity"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/bgtask"
)

// Number of power queries a scrape runs in parallel
const scrapeParallelism = 8

// Exporter scrapes the power of the pods of the identity mapping
type Exporter struct {
	resolver *identity.Resolver
	querier  promq.Querier
	state    *State
	now      func() time.Time

	power     *prometheus.GaugeVec
	scrapes   prometheus.Counter
	failures  prometheus.Counter
	refreshes *prometheus.CounterVec
	entries   prometheus.Gauge
}

// New returns an Exporter whose metrics are registered on reg
func New(resolver *identity.Resolver, querier promq.Querier, state *State, reg prometheus.Registerer) *Exporter {
	factory := promauto.With(reg)
	return &Exporter{
		resolver: resolver,
		querier:  querier,
		state:    state,
		now:      time.Now,

		power: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: constants.PowerGaugeName,
			Help: "Pod Power Consumption in mW",
		}, []string{"pod"}),
		scrapes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "scrapes_total",
			Help:      "Number of power scrapes",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "scrape_query_failures_total",
			Help:      "Number of power queries that failed during scrapes",
		}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "mapping_refreshes_total",
			Help:      "Number of identity mapping refreshes, by result",
		}, []string{"result"}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "mapping_entries",
			Help:      "Number of entries of the current identity mapping",
		}),
	}
}

// State returns the state fed by the scrapes
func (e *Exporter) State() *State {
	return e.state
}

// Resolver returns the identity resolver
func (e *Exporter) Resolver() *identity.Resolver {
	return e.resolver
}

// Refresh refreshes the identity mapping
func (e *Exporter) Refresh(ctx context.Context) {
	if e.resolver.Refresh(ctx) {
		e.refreshes.WithLabelValues("success").Inc()
	} else {
		e.refreshes.WithLabelValues("failure").Inc()
	}
	e.entries.Set(float64(e.resolver.Snapshot().Len()))
}

// Scrape queries the power of every entry of the current mapping and
// publishes the values. Pods the backend has nothing for are left out; the
// gauge keeps the last value it has seen for them.
func (e *Exporter) Scrape(ctx context.Context) {
	logger := logging.Logger()

	mapping := e.resolver.Snapshot()
	values := make(map[string]float64, mapping.Len())
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scrapeParallelism)
	for _, entry := range mapping.Entries() {
		g.Go(func() error {
			vector, err := e.Lookup(gctx, entry)
			if err != nil {
				e.failures.Inc()
				logger.Debug("Error while fetching the power of pod ", entry.Name, ": ", err)
				return nil
			}
			if len(vector) == 0 {
				return nil
			}

			mu.Lock()
			values[entry.Name] = float64(vector[0].Value)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, value := range values {
		e.power.WithLabelValues(name).Set(value)
	}
	e.state.Replace(values, e.now())
	e.scrapes.Inc()

	logger.Debugf("Scraped the power of %d pods out of %d", len(values), mapping.Len())
}

// Lookup runs the power query of one mapping entry
func (e *Exporter) Lookup(ctx context.Context, entry identity.Entry) (model.Vector, error) {
	return e.querier.Query(ctx, promq.ContainerPowerQuery(identity.Truncate(entry.UID)), e.now())
}

// Start runs Refresh and Scrape on their own timers until ctx is cancelled
// or the returned manager is stopped.
func (e *Exporter) Start(ctx context.Context, refreshPeriod, scrapePeriod time.Duration, reg prometheus.Registerer) *bgtask.Manager {
	manager := bgtask.NewManager(ctx, constants.MetricsNamespace, reg)
	manager.Register(e.Refresh, refreshPeriod, "refresh_mapping")
	manager.Register(e.Scrape, scrapePeriod, "scrape_power")
	return manager
}
