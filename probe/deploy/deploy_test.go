// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package deploy

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec/cmdexectest"
)

const podsTable = `core   oai-amf-5f7b9c   1/1   Running   0   3m
ran    oai-cu-7d9f      1/1   Running   0   2m
ran    oai-nr-ue-6c5d   1/1   Running   0   1m
`

func newController(handler cmdexectest.Handler) (*Controller, *cmdexectest.Runner) {
	runner := &cmdexectest.Runner{Handler: func(name string, args []string) ([]byte, error) {
		line := strings.Join(args, " ")
		if name == "kubectl" && strings.HasPrefix(line, "get pods -A") {
			return []byte(podsTable), nil
		}
		if handler != nil {
			return handler(name, args)
		}
		return nil, nil
	}}

	return &Controller{
		Runner:    runner,
		Finder:    &inventory.KubectlLister{Runner: runner},
		PingDelay: time.Millisecond,
	}, runner
}

func TestUninstallAll(t *testing.T) {
	ass := require.New(t)

	ctrl, runner := newController(func(name string, args []string) ([]byte, error) {
		if args[0] == "list" {
			return []byte("oai-cu\noai-du\n\n"), nil
		}
		if args[0] == "uninstall" && args[1] == "oai-cu" {
			return nil, errors.New("release: not found")
		}
		return nil, nil
	})

	ass.NoError(ctrl.UninstallAll(context.Background(), "ran"))
	ass.Equal([]string{
		"helm list -n ran -q",
		"helm uninstall oai-cu -n ran",
		"helm uninstall oai-du -n ran",
	}, runner.Calls())
}

func TestDeploy(t *testing.T) {
	ass := require.New(t)

	ctrl, runner := newController(nil)
	ctrl.ReadyTimeout = 90 * time.Second

	releases := []Release{
		{Name: "oai-5g-core", Chart: "charts/oai-5g-basic", Namespace: "core"},
		{Name: "oai-cu", Chart: "charts/oai-cu", Namespace: "ran", Set: []string{"resources.define=true", "resources.limits.nf.cpu=500m"}},
	}
	timing, err := ctrl.Deploy(context.Background(), []string{"core"}, releases)
	ass.NoError(err)
	ass.False(timing.End.Before(timing.Start))

	ass.Equal([]string{
		"helm list -n core -q",
		"helm install oai-5g-core charts/oai-5g-basic -n core",
		"kubectl wait --for=condition=Ready --all pods -n core --timeout=90s",
		"helm install oai-cu charts/oai-cu -n ran --set resources.define=true,resources.limits.nf.cpu=500m",
		"kubectl wait --for=condition=Ready --all pods -n ran --timeout=90s",
	}, runner.Calls())
}

func TestDeployStopsAtFirstFailure(t *testing.T) {
	ass := require.New(t)

	ctrl, runner := newController(func(name string, args []string) ([]byte, error) {
		if name == "kubectl" && args[0] == "wait" {
			return nil, errors.New("timed out waiting for the condition")
		}
		return nil, nil
	})

	_, err := ctrl.Deploy(context.Background(), nil, []Release{
		{Name: "a", Chart: "c/a", Namespace: "ran"},
		{Name: "b", Chart: "c/b", Namespace: "ran"},
	})
	ass.Error(err)
	ass.Empty(runner.CallsContaining("install b"))
}

func TestExec(t *testing.T) {
	ass := require.New(t)

	ctrl, runner := newController(nil)
	err := ctrl.Exec(context.Background(), Exec{Pod: "oai-nr-ue", Command: []string{"ip", "route", "add", "12.1.1.0/24", "dev", "oaitun_ue1"}})
	ass.NoError(err)
	ass.Equal([]string{"kubectl exec oai-nr-ue-6c5d -n ran -- ip route add 12.1.1.0/24 dev oaitun_ue1"},
		runner.CallsContaining("exec"))

	ass.Error(ctrl.Exec(context.Background(), Exec{Pod: "oai-smf", Command: []string{"true"}}))
}

func TestPingRetries(t *testing.T) {
	ass := require.New(t)

	var pings atomic.Int32
	ctrl, _ := newController(func(name string, args []string) ([]byte, error) {
		if args[0] == "exec" {
			if pings.Add(1) < 3 {
				return nil, errors.New("100% packet loss")
			}
		}
		return nil, nil
	})

	ass.NoError(ctrl.Ping(context.Background(), PingCheck{Pod: "oai-nr-ue", Target: "12.1.1.1"}))
	ass.Equal(int32(3), pings.Load())
}

func TestPingGivesUp(t *testing.T) {
	ass := require.New(t)

	var pings atomic.Int32
	ctrl, runner := newController(func(name string, args []string) ([]byte, error) {
		if args[0] == "exec" {
			pings.Add(1)
			return nil, errors.New("100% packet loss")
		}
		return nil, nil
	})

	err := ctrl.Ping(context.Background(), PingCheck{Pod: "oai-nr-ue", Target: "12.1.1.1"})
	ass.Error(err)
	ass.Equal(int32(4), pings.Load())
	ass.Contains(runner.Calls(), "kubectl exec oai-nr-ue-6c5d -n ran -- ping -c 3 12.1.1.1")
}

func TestTimingLog(t *testing.T) {
	ass := require.New(t)

	path := filepath.Join(t.TempDir(), "deploy_times.csv")
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)

	ass.NoError(AppendTiming(path, Timing{Start: start, End: start.Add(95 * time.Second)}))
	ass.NoError(AppendTiming(path, Timing{Start: start.Add(time.Hour), End: start.Add(time.Hour + 1500*time.Millisecond)}))

	data, err := os.ReadFile(path)
	ass.NoError(err)
	ass.Equal("Start Timestamp,End Timestamp,Duration\n"+
		"2025-03-01 10:00:00,2025-03-01 10:01:35,95\n"+
		"2025-03-01 11:00:00,2025-03-01 11:00:01,1.5\n", string(data))

	timings, err := ReadTimings(bytes.NewReader(data))
	ass.NoError(err)
	ass.Len(timings, 2)
	ass.True(timings[0].Start.Equal(start))
	ass.Equal(95*time.Second, timings[0].Duration())

	_, err = ReadTimings(strings.NewReader("Start Timestamp,End Timestamp,Duration\nyesterday,today,1\n"))
	ass.Error(err)
}
