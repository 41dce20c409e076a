// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package promq

import (
	"fmt"
	"regexp"
	"strings"
)

// Queries against the power exporter (Scaphandre) and cAdvisor/kube-state
// metrics. Power metrics are reported in microwatts and converted to watts.

// ProcessPowerQuery returns the power drawn by every docker-scheduled
// container, skipping near-idle ones. Grouped by the "container_id" label.
func ProcessPowerQuery() string {
	return `scaph_process_power_consumption_microwatts{container_scheduler="docker"} / 1000000 > 0.001`
}

// ContainerPowerQuery returns the total power of the container whose
// (truncated) id is containerID.
func ContainerPowerQuery(containerID string) string {
	return fmt.Sprintf(`sum(scaph_process_power_consumption_microwatts{container_id="%s"}) / 1000000`,
		escapeLabelValue(containerID))
}

// CPUUtilizationQuery returns the CPU usage of the pods whose name starts
// with podPrefix, as a percentage of their declared CPU limit. Grouped by the
// "pod" label.
func CPUUtilizationQuery(podPrefix string) string {
	selector := regexp.QuoteMeta(podPrefix) + ".*"
	return fmt.Sprintf(`
		100 * (
			sum(rate(container_cpu_usage_seconds_total{pod=~"%[1]s"}[15s])) by (pod)
			/
			sum(kube_pod_container_resource_limits{pod=~"%[1]s", resource="cpu"}) by (pod)
		)`, escapeLabelValue(selector))
}

// HostPowerQuery returns the power drawn by the given nodes, or by every node
// if none is given. Grouped by the "node" label.
func HostPowerQuery(nodes ...string) string {
	if len(nodes) == 0 {
		return `scaph_host_power_microwatts / 1000000`
	}

	quoted := make([]string, 0, len(nodes))
	for _, node := range nodes {
		quoted = append(quoted, regexp.QuoteMeta(node))
	}
	return fmt.Sprintf(`scaph_host_power_microwatts{node=~"%s"} / 1000000`,
		escapeLabelValue(strings.Join(quoted, "|")))
}

// escapeLabelValue escapes a string for use inside a double-quoted PromQL
// label matcher
func escapeLabelValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}
