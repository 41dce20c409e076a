// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package poller

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/common/model"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
)

// Observation is one sample of one entity, produced by a single poll.
type Observation struct {
	Entity string
	Sample samplestore.Sample
}

// Source performs one poll. It returns either every observation of the poll
// or an error, never a partial result.
type Source interface {
	Fetch(ctx context.Context, mode Mode, now time.Time) ([]Observation, error)
}

// PromSource polls the metrics backend.
type PromSource struct {
	Querier promq.Querier
}

// Fetch implements Source
func (s PromSource) Fetch(ctx context.Context, mode Mode, now time.Time) ([]Observation, error) {
	if mode.Range {
		matrix, err := s.Querier.QueryRange(ctx, mode.Query, now.Add(-mode.Lookback), now, mode.Step)
		if err != nil {
			return nil, err
		}
		return fromMatrix(mode, matrix), nil
	}

	vector, err := s.Querier.Query(ctx, mode.Query, now)
	if err != nil {
		return nil, err
	}
	return fromVector(mode, vector, unixSeconds(now)), nil
}

func fromVector(mode Mode, vector model.Vector, ts float64) []Observation {
	logger := logging.Logger()

	observations := make([]Observation, 0, len(vector))
	for _, sample := range vector {
		entity := string(sample.Metric[model.LabelName(mode.IDLabel)])
		if entity == "" {
			logger.Warnf("Skipping a %s result without the %q label: %s", mode.Name, mode.IDLabel, sample.Metric)
			continue
		}
		if !Finite(float64(sample.Value)) {
			logger.Warnf("Skipping the non-finite %s value %v of %s", mode.Name, sample.Value, entity)
			continue
		}

		obs := Observation{
			Entity: entity,
			Sample: samplestore.Sample{Timestamp: ts, Value: float64(sample.Value)},
		}
		if mode.AuxLabel != "" {
			obs.Sample.Cmdline = auxValue(string(sample.Metric[model.LabelName(mode.AuxLabel)]))
		}
		observations = append(observations, obs)
	}
	return observations
}

func fromMatrix(mode Mode, matrix model.Matrix) []Observation {
	logger := logging.Logger()

	var observations []Observation
	for _, stream := range matrix {
		entity := string(stream.Metric[model.LabelName(mode.IDLabel)])
		if entity == "" {
			logger.Warnf("Skipping a %s series without the %q label: %s", mode.Name, mode.IDLabel, stream.Metric)
			continue
		}

		var cmdline string
		if mode.AuxLabel != "" {
			cmdline = auxValue(string(stream.Metric[model.LabelName(mode.AuxLabel)]))
		}

		for _, pair := range stream.Values {
			if !Finite(float64(pair.Value)) {
				logger.Warnf("Skipping the non-finite %s value %v of %s at %v", mode.Name, pair.Value, entity, pair.Timestamp)
				continue
			}
			observations = append(observations, Observation{
				Entity: entity,
				Sample: samplestore.Sample{
					Timestamp: float64(pair.Timestamp) / 1000,
					Value:     float64(pair.Value),
					Cmdline:   cmdline,
				},
			})
		}
	}
	return observations
}

// Finite reports whether v can be stored and plotted: NaN and the infinities
// cannot
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// unixSeconds converts t to fractional seconds since the epoch
func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
