// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package deploy

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TimestampLayout is the format of the timestamps in the deploy timing log
const TimestampLayout = "2006-01-02 15:04:05"

var timingHeader = []string{"Start Timestamp", "End Timestamp", "Duration"}

// Timing is one row of the deploy timing log
type Timing struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the deployment
func (t Timing) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// AppendTiming appends a row to the CSV log at path, writing the header if
// the file is new or empty.
func AppendTiming(path string, timing Timing) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "Error while opening the deploy timing log")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrap(err, "Error while opening the deploy timing log")
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(timingHeader); err != nil {
			return errors.Wrap(err, "Error while writing the deploy timing log")
		}
	}
	row := []string{
		timing.Start.Local().Format(TimestampLayout),
		timing.End.Local().Format(TimestampLayout),
		strconv.FormatFloat(timing.Duration().Seconds(), 'f', -1, 64),
	}
	if err := w.Write(row); err != nil {
		return errors.Wrap(err, "Error while writing the deploy timing log")
	}
	w.Flush()
	return errors.Wrap(w.Error(), "Error while writing the deploy timing log")
}

// ReadTimings parses a deploy timing log. Timestamps are read in local time,
// like they are written.
func ReadTimings(r io.Reader) ([]Timing, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "Error while reading the deploy timing log")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var timings []Timing
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, errors.Errorf("Row %d of the deploy timing log has %d fields", i+2, len(row))
		}
		start, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid start timestamp at row %d", i+2)
		}
		end, err := time.ParseInLocation(TimestampLayout, row[1], time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid end timestamp at row %d", i+2)
		}
		timings = append(timings, Timing{Start: start, End: end})
	}
	return timings, nil
}

// ReadTimingsFile is ReadTimings on the file at path
func ReadTimingsFile(path string) ([]Timing, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Error while opening the deploy timing log")
	}
	defer file.Close()
	return ReadTimings(file)
}
