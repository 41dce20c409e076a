// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package promq_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/promq/promqtest"
)

func TestClientQuery(t *testing.T) {
	ass := require.New(t)

	ts := time.Unix(1700000000, 0)
	var gotQuery string
	srv := promqtest.NewServer(func(path string, r *http.Request) (int, string) {
		ass.Equal("/api/v1/query", path)
		gotQuery = r.Form.Get("query")
		return http.StatusOK, promqtest.VectorBody(model.Vector{
			promqtest.Sample(5, ts, "container_id", "abc", "cmdline", "iperf"),
		})
	})
	defer srv.Close()

	client, err := promq.NewClient(srv.URL, time.Second)
	ass.NoError(err)

	vector, err := client.Query(context.Background(), "  up\n  >  0 ", ts)
	ass.NoError(err)
	ass.Equal("up > 0", gotQuery)
	ass.Len(vector, 1)
	ass.Equal(model.LabelValue("abc"), vector[0].Metric["container_id"])
	ass.Equal(5.0, float64(vector[0].Value))
}

func TestClientQueryRange(t *testing.T) {
	ass := require.New(t)

	srv := promqtest.NewServer(func(path string, r *http.Request) (int, string) {
		ass.Equal("/api/v1/query_range", path)
		ass.Equal("1", r.Form.Get("step"))
		return http.StatusOK, promqtest.MatrixBody(model.Matrix{
			&model.SampleStream{
				Metric: promqtest.Metric("node", "worker-1"),
				Values: []model.SamplePair{
					{Timestamp: model.TimeFromUnix(1700000000), Value: 10},
					{Timestamp: model.TimeFromUnix(1700000001), Value: 12},
				},
			},
		})
	})
	defer srv.Close()

	client, err := promq.NewClient(srv.URL, 0)
	ass.NoError(err)

	end := time.Unix(1700000001, 0)
	matrix, err := client.QueryRange(context.Background(), promq.HostPowerQuery(), end.Add(-time.Second), end, time.Second)
	ass.NoError(err)
	ass.Len(matrix, 1)
	ass.Len(matrix[0].Values, 2)
	ass.Equal(12.0, float64(matrix[0].Values[1].Value))
}

func TestClientQueryBackendError(t *testing.T) {
	ass := require.New(t)

	srv := promqtest.NewServer(func(path string, r *http.Request) (int, string) {
		return http.StatusServiceUnavailable, promqtest.ErrorBody("unavailable", "shutting down")
	})
	defer srv.Close()

	client, err := promq.NewClient(srv.URL, time.Second)
	ass.NoError(err)

	_, err = client.Query(context.Background(), "up", time.Now())
	ass.Error(err)
}

func TestClientQueryWrongResultType(t *testing.T) {
	ass := require.New(t)

	srv := promqtest.NewServer(func(path string, r *http.Request) (int, string) {
		return http.StatusOK, promqtest.MatrixBody(model.Matrix{})
	})
	defer srv.Close()

	client, err := promq.NewClient(srv.URL, time.Second)
	ass.NoError(err)

	_, err = client.Query(context.Background(), "up", time.Now())
	ass.ErrorContains(err, "unexpected result type")
}

func TestQueries(t *testing.T) {
	ass := require.New(t)

	ass.Equal(`sum(scaph_process_power_consumption_microwatts{container_id="4f2a"}) / 1000000`,
		promq.ContainerPowerQuery("4f2a"))
	ass.Equal(`scaph_host_power_microwatts / 1000000`, promq.HostPowerQuery())
	ass.Equal(`scaph_host_power_microwatts{node=~"worker-1|worker-2"} / 1000000`,
		promq.HostPowerQuery("worker-1", "worker-2"))
	ass.Contains(promq.CPUUtilizationQuery("oai-cu"), `container_cpu_usage_seconds_total{pod=~"oai-cu.*"}[15s]`)
	ass.Contains(promq.CPUUtilizationQuery("oai-cu"), `kube_pod_container_resource_limits{pod=~"oai-cu.*", resource="cpu"}`)
	ass.Contains(promq.ProcessPowerQuery(), `container_scheduler="docker"`)
}
