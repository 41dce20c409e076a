// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package poller

import (
	"time"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
)

// Names of the supported modes
const (
	ModeEnergy     = "energy"
	ModeCPU        = "cpu"
	ModeHostEnergy = "host_energy"
)

// Mode selects what a collection run queries and how each result is turned
// into a sample.
type Mode struct {
	Name  string
	Query string

	// Label holding the entity identifier. Results without it are skipped.
	IDLabel string

	// Optional label copied into Sample.Cmdline ("unknown" when absent).
	AuxLabel string

	// Range modes run a range query over the last Lookback with the given
	// Step, and keep the backend timestamps. Instant modes stamp samples with
	// the poller clock.
	Range    bool
	Lookback time.Duration
	Step     time.Duration
}

// EnergyMode collects the power drawn by every container, in watts
func EnergyMode() Mode {
	return Mode{
		Name:     ModeEnergy,
		Query:    promq.ProcessPowerQuery(),
		IDLabel:  "container_id",
		AuxLabel: "cmdline",
	}
}

// CPUMode collects the CPU usage of the pods named after podPrefix, as a
// percentage of their CPU limit
func CPUMode(podPrefix string) Mode {
	return Mode{
		Name:    ModeCPU,
		Query:   promq.CPUUtilizationQuery(podPrefix),
		IDLabel: "pod",
	}
}

// HostEnergyMode collects the power drawn by the given nodes (all nodes if
// none), in watts
func HostEnergyMode(nodes ...string) Mode {
	return Mode{
		Name:     ModeHostEnergy,
		Query:    promq.HostPowerQuery(nodes...),
		IDLabel:  "node",
		Range:    true,
		Lookback: 5 * time.Second,
		Step:     time.Second,
	}
}

// ModeByName builds a mode from its name. target is the pod prefix of the cpu
// mode, nodes restrict the host_energy mode.
func ModeByName(name, target string, nodes []string) (Mode, error) {
	switch name {
	case ModeEnergy:
		return EnergyMode(), nil
	case ModeCPU:
		if target == "" {
			return Mode{}, errors.New("The cpu mode needs a target pod name")
		}
		return CPUMode(target), nil
	case ModeHostEnergy:
		return HostEnergyMode(nodes...), nil
	default:
		return Mode{}, errors.Errorf("Unknown collection mode %q", name)
	}
}

// auxValue returns the auxiliary label value, or "unknown"
func auxValue(value string) string {
	if value == "" {
		return constants.UnknownName
	}
	return value
}
