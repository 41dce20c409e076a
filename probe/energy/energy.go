// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package energy integrates power samples (watts) into energy (joules).
package energy

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/model"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
)

// Result is the energy drawn by one entity over a window
type Result struct {
	Entity string
	Joules float64
	Points int

	// True if there were not enough points for the trapezoidal rule and the
	// energy was estimated as max power * duration
	Estimated bool
}

// Trapezoid integrates the series with the trapezoidal rule. Timestamps are
// in seconds, values in watts.
func Trapezoid(series []samplestore.Sample) float64 {
	var joules float64
	for i := 1; i < len(series); i++ {
		dt := series[i].Timestamp - series[i-1].Timestamp
		joules += dt * (series[i].Value + series[i-1].Value) / 2
	}
	return joules
}

// Integrate returns the energy of the series. With less than two points it
// falls back to the highest power times duration (seconds).
func Integrate(entity string, series []samplestore.Sample, duration float64) Result {
	res := Result{Entity: entity, Points: len(series)}
	if len(series) >= 2 {
		res.Joules = Trapezoid(series)
		return res
	}

	res.Estimated = true
	for _, s := range series {
		if s.Value*duration > res.Joules {
			res.Joules = s.Value * duration
		}
	}
	return res
}

// OfBuffer integrates every entity of buf over its own time span. Results
// are sorted by entity.
func OfBuffer(buf *samplestore.Buffer) []Result {
	results := make([]Result, 0, len(buf.Entities()))
	for _, entity := range buf.SortedEntities() {
		series := buf.Series(entity)
		var duration float64
		if len(series) > 0 {
			duration = series[len(series)-1].Timestamp - series[0].Timestamp
		}
		results = append(results, Integrate(entity, series, duration))
	}
	return results
}

// Host returns the energy drawn by the given nodes (every node if empty)
// between start and end, from the host power gauge sampled every second.
func Host(ctx context.Context, q promq.Querier, start, end time.Time, nodes ...string) ([]Result, error) {
	if !end.After(start) {
		return nil, errors.Errorf("Invalid window: %s is not after %s", end, start)
	}

	matrix, err := q.QueryRange(ctx, promq.HostPowerQuery(nodes...), start, end, time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "Error while querying the host power")
	}

	duration := end.Sub(start).Seconds()
	results := make([]Result, 0, len(matrix))
	for _, stream := range matrix {
		entity := string(stream.Metric["node"])
		if entity == "" {
			entity = string(stream.Metric[model.InstanceLabel])
		}

		series := make([]samplestore.Sample, 0, len(stream.Values))
		for _, pair := range stream.Values {
			series = append(series, samplestore.Sample{
				Timestamp: float64(pair.Timestamp) / 1000,
				Value:     float64(pair.Value),
			})
		}
		results = append(results, Integrate(entity, series, duration))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Entity < results[j].Entity })
	return results, nil
}

// Total sums the energy of results
func Total(results []Result) float64 {
	var total float64
	for _, r := range results {
		total += r.Joules
	}
	return total
}
