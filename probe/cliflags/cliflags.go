// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package cliflags

import (
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/poller"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/listparse"
)

// This package is for parsing the flags of powerprobe's subcommands. Each
// subcommand registers its raw values on its own flag set, then converts them
// to parsed values once the command line has been parsed.

// We use the "github.com/spf13/pflag" library instead of the default Go "flag"
// library, because we want POSIX/GNU-style --flags

const descrNodes = "Nodes of the host power gauge. Can be an inline comma-separated list " +
	"(\"list:worker-1,worker-2\" or just \"worker-1,worker-2\"), a newline-separated list " +
	"file (\"file:./nodes.txt\") or \"none\" for every node"

//////////////////// COLLECT ////////////////////

type rawCollect struct {
	Mode     string
	Target   string
	Nodes    string
	Duration string
	Output   string
	Label    string
}

// CollectValues holds the post-processed flags of "collect"
type CollectValues struct {
	Mode     poller.Mode
	Duration time.Duration
	Output   string
	Label    string
}

// CollectFlags are the flags of "collect"
type CollectFlags struct {
	raw rawCollect
}

// Register adds the flags to fs
func (f *CollectFlags) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.raw.Mode, "mode", "m", poller.ModeEnergy, "Collection mode: \"energy\", \"cpu\" or \"host_energy\"")
	fs.StringVar(&f.raw.Target, "target", "", "Pod name prefix of the cpu mode")
	fs.StringVar(&f.raw.Nodes, "nodes", "none", descrNodes)
	fs.StringVarP(&f.raw.Duration, "duration", "d", "0s", "How long to collect. If <= 0, collect until interrupted")
	fs.StringVarP(&f.raw.Output, "output", "o", "", "Where to save the samples. Defaults to metrics_<mode>.json")
	fs.StringVar(&f.raw.Label, "label", "", "Label of the run in the archive (if PROBE_ARCHIVE_PATH is set)")
}

// Parse converts the raw values
func (f *CollectFlags) Parse() (*CollectValues, error) {
	var err error
	vals := &CollectValues{}

	nodes, err := listparse.ParseSource(f.raw.Nodes)
	if err != nil {
		return nil, errors.Wrap(err, "Error while parsing the nodes list")
	}

	vals.Mode, err = poller.ModeByName(f.raw.Mode, f.raw.Target, nodes)
	if err != nil {
		return nil, err
	}

	vals.Duration, err = time.ParseDuration(f.raw.Duration)
	if err != nil {
		return nil, errors.Wrap(err, "Error while parsing Duration")
	}
	if vals.Duration < 0 {
		vals.Duration = 0
	}

	vals.Output = f.raw.Output
	if vals.Output == "" {
		vals.Output = "metrics_" + vals.Mode.Name + ".json"
	}

	vals.Label = f.raw.Label
	if vals.Label == "" {
		vals.Label = filepath.Base(vals.Output)
	}

	return vals, nil
}

//////////////////// MAPPING ////////////////////

// MappingValues holds the flags of "mapping"
type MappingValues struct {
	Output   string
	SavePods string
}

// MappingFlags are the flags of "mapping"
type MappingFlags struct {
	raw MappingValues
}

// Register adds the flags to fs
func (f *MappingFlags) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.raw.Output, "output", "o", constants.MappingFile, "Where to save the identity mapping (CSV)")
	fs.StringVar(&f.raw.SavePods, "save-pods", "", "If not empty, where to save the raw pod list (kubectl inventory only)")
}

// Parse converts the raw values
func (f *MappingFlags) Parse() (*MappingValues, error) {
	if f.raw.Output == "" {
		return nil, errors.New("Invalid output path. Should not be empty")
	}
	vals := f.raw
	return &vals, nil
}

//////////////////// RENDER ////////////////////

type rawRender struct {
	Buffer      string
	Mapping     string
	Output      string
	Mode        string
	MinInterval string
	Run         string
}

// RenderValues holds the post-processed flags of "render"
type RenderValues struct {
	Buffer      string
	Mapping     string
	Output      string
	Mode        string
	MinInterval time.Duration

	// Id of an archived run to render instead of Buffer
	Run string
}

// RenderFlags are the flags of "render"
type RenderFlags struct {
	raw rawRender
}

// Register adds the flags to fs
func (f *RenderFlags) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.raw.Buffer, "buffer", "b", constants.EnergyBufferFile, "Sample buffer file to render")
	fs.StringVar(&f.raw.Mapping, "mapping", constants.MappingFile, "Identity mapping file (CSV)")
	fs.StringVarP(&f.raw.Output, "output", "o", "", "Image path. The format follows the extension. Defaults to the buffer path with .png")
	fs.StringVarP(&f.raw.Mode, "mode", "m", "", "Collection mode of the buffer, for the axis labels. Defaults to the archived mode or \"energy\"")
	fs.StringVar(&f.raw.MinInterval, "min-interval", constants.DefaultMinInterval.String(), "Minimum spacing between rendered samples. Should be >= 0")
	fs.StringVar(&f.raw.Run, "run", "", "Render the archived run with this id instead of --buffer")
}

// Parse converts the raw values
func (f *RenderFlags) Parse() (*RenderValues, error) {
	var err error
	vals := &RenderValues{
		Buffer:  f.raw.Buffer,
		Mapping: f.raw.Mapping,
		Output:  f.raw.Output,
		Mode:    f.raw.Mode,
		Run:     f.raw.Run,
	}

	vals.MinInterval, err = time.ParseDuration(f.raw.MinInterval)
	if err != nil {
		return nil, errors.Wrap(err, "Error while parsing MinInterval")
	}
	if vals.MinInterval < 0 {
		return nil, errors.New("Invalid MinInterval value. Should be >= 0")
	}

	if vals.Output == "" {
		base := vals.Buffer
		if vals.Run != "" {
			base = vals.Run
		}
		vals.Output = base[:len(base)-len(filepath.Ext(base))] + ".png"
	}

	return vals, nil
}

//////////////////// ENERGY ////////////////////

type rawEnergy struct {
	Start       string
	End         string
	Nodes       string
	DeployTimes string
	Output      string
}

// EnergyValues holds the post-processed flags of "energy"
type EnergyValues struct {
	Start time.Time
	End   time.Time
	Nodes []string

	// If set, every window of this deploy timing log is integrated instead
	// of Start..End
	DeployTimes string
	Output      string
}

// EnergyFlags are the flags of "energy"
type EnergyFlags struct {
	raw rawEnergy
}

// Register adds the flags to fs
func (f *EnergyFlags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.raw.Start, "start", "", "Start of the window: \"2006-01-02 15:04:05\" (local time), RFC 3339 or unix seconds")
	fs.StringVar(&f.raw.End, "end", "", "End of the window, same formats as --start. Defaults to now")
	fs.StringVar(&f.raw.Nodes, "nodes", "none", descrNodes)
	fs.StringVar(&f.raw.DeployTimes, "deploy-times", "", "Deploy timing log to annotate with the energy of each window")
	fs.StringVarP(&f.raw.Output, "output", "o", "", "Where to write the annotated timing log. Defaults to stdout")
}

// Parse converts the raw values. now is the default end of the window.
func (f *EnergyFlags) Parse(now time.Time) (*EnergyValues, error) {
	var err error
	vals := &EnergyValues{DeployTimes: f.raw.DeployTimes, Output: f.raw.Output}

	vals.Nodes, err = listparse.ParseSource(f.raw.Nodes)
	if err != nil {
		return nil, errors.Wrap(err, "Error while parsing the nodes list")
	}

	if vals.DeployTimes != "" {
		return vals, nil
	}

	if f.raw.Start == "" {
		return nil, errors.New("Either --start or --deploy-times is required")
	}
	vals.Start, err = ParseTime(f.raw.Start)
	if err != nil {
		return nil, errors.Wrap(err, "Error while parsing Start")
	}

	vals.End = now
	if f.raw.End != "" {
		vals.End, err = ParseTime(f.raw.End)
		if err != nil {
			return nil, errors.Wrap(err, "Error while parsing End")
		}
	}
	if !vals.End.After(vals.Start) {
		return nil, errors.New("Invalid window. End should be after Start")
	}

	return vals, nil
}

// ParseTime accepts the deploy timing log layout (local time), RFC 3339 and
// unix seconds
func ParseTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(deploy.TimestampLayout, value, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, errors.Errorf("Invalid time %q", value)
	}
	whole := math.Floor(seconds)
	return time.Unix(int64(whole), int64(math.Round((seconds-whole)*1e9))), nil
}
