// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package render turns a persisted sample buffer into a chart with one line
// per entity, labeled through the identity mapping.
package render

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/identity"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/poller"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/samplestore"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

//////////////////// PUBLIC TYPES ////////////////////

// Point of a prepared series. Elapsed is in seconds from the first kept
// sample of the series.
type Point struct {
	Elapsed float64
	Value   float64
}

// Series is the prepared, plottable form of one entity
type Series struct {
	Entity string
	Label  string
	Points []Point
}

// Options of a chart
type Options struct {
	// Minimum spacing between two kept samples of a series
	MinInterval time.Duration

	Title  string
	XLabel string
	YLabel string

	Width  vg.Length
	Height vg.Length
}

//////////////////// PUBLIC FUNCTIONS ////////////////////

// DefaultOptions returns the options used for the given collection mode
func DefaultOptions(mode string) Options {
	return Options{
		MinInterval: constants.DefaultMinInterval,
		Title:       YLabel(mode) + " over time",
		XLabel:      "Elapsed Time (s)",
		YLabel:      YLabel(mode),
		Width:       12 * vg.Inch,
		Height:      6 * vg.Inch,
	}
}

// YLabel returns the value axis label of a collection mode
func YLabel(mode string) string {
	switch mode {
	case poller.ModeCPU:
		return "CPU Utilization (%)"
	default:
		return "Power Consumption (Watts)"
	}
}

// Downsample keeps the first sample and then every sample whose timestamp is
// at least minInterval seconds after the last kept one. The input is assumed
// sorted by timestamp and is not modified.
func Downsample(series []samplestore.Sample, minInterval float64) []samplestore.Sample {
	kept := make([]samplestore.Sample, 0, len(series))
	for _, s := range series {
		if len(kept) == 0 || s.Timestamp-kept[len(kept)-1].Timestamp >= minInterval {
			kept = append(kept, s)
		}
	}
	return kept
}

// Normalize shifts the timestamps so that the first sample is at 0
func Normalize(series []samplestore.Sample) []Point {
	points := make([]Point, 0, len(series))
	if len(series) == 0 {
		return points
	}
	origin := series[0].Timestamp
	for _, s := range series {
		points = append(points, Point{Elapsed: s.Timestamp - origin, Value: s.Value})
	}
	return points
}

// Prepare resolves, downsamples and normalizes every entity of buf. Entities
// come in sorted order; entities resolving to the same name (typically
// "unknown") stay separate series.
func Prepare(buf *samplestore.Buffer, mapping *identity.Mapping, minInterval time.Duration) []Series {
	entities := buf.SortedEntities()
	series := make([]Series, 0, len(entities))
	for _, entity := range entities {
		series = append(series, Series{
			Entity: entity,
			Label:  mapping.Resolve(entity),
			Points: Normalize(Downsample(plottable(buf.Series(entity)), minInterval.Seconds())),
		})
	}
	return series
}

// plottable drops the samples the plotter rejects
func plottable(series []samplestore.Sample) []samplestore.Sample {
	kept := series[:0]
	for _, s := range series {
		if poller.Finite(s.Value) && poller.Finite(s.Timestamp) {
			kept = append(kept, s)
		}
	}
	return kept
}

// Render draws buf at outputPath. The image format follows the file
// extension (png, svg, pdf, ...).
func Render(buf *samplestore.Buffer, mapping *identity.Mapping, outputPath string, opts Options) error {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range Prepare(buf, mapping, opts.MinInterval) {
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = pt.Elapsed
			xys[j].Y = pt.Value
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return errors.Wrapf(err, "Error while plotting the series of %s", s.Entity)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)

		p.Add(line, points)
		p.Legend.Add(s.Label, line, points)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "Error while creating the output directory")
		}
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 12 * vg.Inch
	}
	if height <= 0 {
		height = 6 * vg.Inch
	}
	if err := p.Save(width, height, outputPath); err != nil {
		return errors.Wrap(err, "Error while saving the chart")
	}
	return nil
}

// RenderFile renders the buffer persisted at bufferPath. It returns false,
// without error, if that file does not exist. A missing mapping file labels
// every series "unknown".
func RenderFile(bufferPath, mappingPath, outputPath string, opts Options) (bool, error) {
	logger := logging.Logger()

	loaded := samplestore.Load(bufferPath)
	switch loaded.Kind {
	case outcome.Missing:
		logger.Warnf("No sample buffer at %s, nothing to render", bufferPath)
		return false, nil
	case outcome.Failed:
		return false, loaded.Err
	}

	mapping := identity.EmptyMapping()
	switch m := identity.LoadMapping(mappingPath); m.Kind {
	case outcome.Found:
		mapping = m.Value
	case outcome.Missing:
		logger.Warnf("No identity mapping at %s, every series will be labeled %q", mappingPath, constants.UnknownName)
	case outcome.Failed:
		return false, m.Err
	}

	if err := Render(loaded.Value, mapping, outputPath, opts); err != nil {
		return false, err
	}
	logger.Infof("Chart saved at %s", outputPath)
	return true, nil
}
