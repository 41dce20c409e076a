// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package energy

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// TimedEnergy is a deployment with the host energy drawn while it ran
type TimedEnergy struct {
	deploy.Timing

	// Joules is nil if the backend had no data for the window
	Joules *float64
}

// ForTimings computes the host energy of each deployment window. A window
// the backend cannot answer for is logged and left without energy.
func ForTimings(ctx context.Context, q promq.Querier, timings []deploy.Timing, nodes ...string) []TimedEnergy {
	logger := logging.Logger()

	annotated := make([]TimedEnergy, 0, len(timings))
	for _, timing := range timings {
		entry := TimedEnergy{Timing: timing}

		results, err := Host(ctx, q, timing.Start, timing.End, nodes...)
		switch {
		case err != nil:
			logger.Error("Error while computing the energy of the deployment started at ",
				timing.Start.Format(deploy.TimestampLayout), ": ", err)
		case len(results) == 0:
			logger.Warnf("No host power data between %s and %s",
				timing.Start.Format(deploy.TimestampLayout), timing.End.Format(deploy.TimestampLayout))
		default:
			joules := Total(results)
			entry.Joules = &joules
		}

		annotated = append(annotated, entry)
	}
	return annotated
}

// WriteTimings writes the deploy timing log with an extra Energy column
func WriteTimings(w io.Writer, annotated []TimedEnergy) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Start Timestamp", "End Timestamp", "Duration", "Energy"}); err != nil {
		return err
	}
	for _, a := range annotated {
		var joules string
		if a.Joules != nil {
			joules = strconv.FormatFloat(*a.Joules, 'f', -1, 64)
		}
		row := []string{
			a.Start.Local().Format(deploy.TimestampLayout),
			a.End.Local().Format(deploy.TimestampLayout),
			strconv.FormatFloat(a.Duration().Seconds(), 'f', -1, 64),
			joules,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
