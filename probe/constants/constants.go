// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package constants

// This package contains only some constants shared by the other packages

import "time"

const (
	// UnknownName is the display name of an entity identifier that does not
	// resolve against the identity mapping
	UnknownName = "unknown"

	// DefaultPrometheusURL is where the metrics backend is expected inside the
	// cluster
	DefaultPrometheusURL = "http://prometheus-server.default.svc.cluster.local:80"

	// DefaultPollInterval is the fixed cadence of a collection run
	DefaultPollInterval = 1 * time.Second

	// DefaultBackoffFactor multiplies the poll interval after a failed poll
	DefaultBackoffFactor = 5

	// DefaultMinInterval is the minimum spacing between rendered samples
	DefaultMinInterval = 2 * time.Second

	// DefaultSettleTime is how long the orchestrator keeps collecting after the
	// load sessions end, to catch samples the backend reports late
	DefaultSettleTime = 15 * time.Second

	// DefaultReadyTimeout bounds "kubectl wait" on freshly installed pods
	DefaultReadyTimeout = 180 * time.Second

	// DefaultPingAttempts and DefaultPingDelay drive the connectivity check
	DefaultPingAttempts = 4
	DefaultPingDelay    = 1 * time.Second

	// PowerGaugeName is the gauge exposed by the always-on service
	PowerGaugeName = "pod_power_consumption_mw"

	// MetricsNamespace prefixes the service's own metrics
	MetricsNamespace = "powerprobe"
)

// Names of the files written in an experiment directory
const (
	EnergyBufferFile     = "metrics_energy.json"
	CPUBufferFile        = "metrics_cpu.json"
	HostEnergyBufferFile = "metrics_host_energy.json"
	MappingFile          = "uid_pod_mapping.csv"
	PodListFile          = "all_pods.json"
	DeployTimesFile      = "deploy_times.csv"
	ReportFile           = "report.txt"
)
