// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package loadgen drives the synthetic traffic of an experiment: iperf
// sessions run inside the pods with "kubectl exec", each one logging its CSV
// report to its own file.
package loadgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/deploy"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

// Session roles
const (
	RoleClient = "client"
	RoleServer = "server"
)

// LogHeader is the first line of every session log, naming the fields of the
// iperf CSV report
const LogHeader = "Timestamp,Source_IP,Source_Port,Destination_IP,Destination_Port,Protocol,Interval,Transfer,Bitrate,Jitter,Lost_Packets,Lost_Packets_Percent,Unknown1,Unknown2"

// Session is one iperf run (UDP, 1s reports)
type Session struct {
	Role string `mapstructure:"role"`

	// Search term on the name of the pod running iperf
	Pod string `mapstructure:"pod"`

	// Client only: server address, bitrate in Mbit/s, datagram size
	Target       string `mapstructure:"target"`
	Mbps         int    `mapstructure:"mbps"`
	PacketLength int    `mapstructure:"packet_length"`

	Duration time.Duration `mapstructure:"duration"`
}

// Result of a session
type Result struct {
	Session Session
	PodName string
	LogFile string
	Err     error
}

// Generator runs sessions
type Generator struct {
	Runner  cmdexec.Runner
	Kubectl string
	Finder  deploy.PodFinder

	// Where the session logs go
	LogDir string

	// How long the servers get to start before the clients
	ServerLead time.Duration
}

//////////////////// SESSION METHODS ////////////////////

// Validate checks that the session has what its role needs
func (s Session) Validate() error {
	if s.Pod == "" {
		return errors.New("A load session needs a pod")
	}
	if s.Duration < time.Second {
		return errors.Errorf("Invalid duration %v for the load session on %s", s.Duration, s.Pod)
	}

	switch s.Role {
	case RoleServer:
		return nil
	case RoleClient:
		if s.Target == "" || s.Mbps <= 0 || s.PacketLength <= 0 {
			return errors.Errorf("The client session on %s needs a target, a bitrate and a packet length", s.Pod)
		}
		return nil
	default:
		return errors.Errorf("Invalid role %q for the load session on %s. Should be %q or %q",
			s.Role, s.Pod, RoleClient, RoleServer)
	}
}

// Args returns the kubectl arguments running the session in pod
func (s Session) Args(podName, namespace string) []string {
	seconds := strconv.Itoa(int(s.Duration.Seconds()))
	args := []string{"exec", podName, "-n", namespace, "--", "iperf"}
	if s.Role == RoleClient {
		return append(args, "-c", s.Target, "-u", "-i", "1",
			"-b", fmt.Sprintf("%dM", s.Mbps), "-t", seconds,
			"-l", strconv.Itoa(s.PacketLength), "--reportstyle", "C")
	}
	return append(args, "-s", "-u", "-i", "1", "-t", seconds, "--reportstyle", "C")
}

// LogName returns the name of the session log
func (s Session) LogName(podName string) string {
	name := "log_iperf_" + s.Role + "_" + podName
	if s.Role == RoleClient {
		name += fmt.Sprintf("_%s_%d_%d_%d", s.Target, s.Mbps, int(s.Duration.Seconds()), s.PacketLength)
	}
	return name + ".csv"
}

//////////////////// GENERATOR METHODS ////////////////////

// Run runs one session to completion
func (g *Generator) Run(ctx context.Context, s Session) Result {
	res := Result{Session: s}
	if res.Err = s.Validate(); res.Err != nil {
		return res
	}

	pod, found, err := g.Finder.FindPod(ctx, s.Pod)
	if err != nil {
		res.Err = err
		return res
	}
	if !found {
		res.Err = errors.Errorf("No pod matches %q", s.Pod)
		return res
	}
	res.PodName = pod.Name
	res.LogFile = filepath.Join(g.LogDir, s.LogName(pod.Name))

	res.Err = g.runLogged(ctx, res.LogFile, s.Args(pod.Name, pod.Namespace))
	return res
}

// RunAll runs every session at once, the servers ServerLead before the
// clients, and waits for all of them. A failed session does not stop the
// others. Results are in the order of sessions.
func (g *Generator) RunAll(ctx context.Context, sessions []Session) []Result {
	logger := logging.Logger()

	results := make([]Result, len(sessions))
	var eg errgroup.Group

	start := func(role string) {
		for i, s := range sessions {
			if s.Role != role {
				continue
			}
			eg.Go(func() error {
				results[i] = g.Run(ctx, s)
				if results[i].Err != nil {
					logger.Error("Load session on ", s.Pod, " failed: ", results[i].Err)
				}
				return nil
			})
		}
	}

	start(RoleServer)
	if g.ServerLead > 0 {
		select {
		case <-time.After(g.ServerLead):
		case <-ctx.Done():
		}
	}
	start(RoleClient)

	// Sessions with an invalid role are reported without running
	for i, s := range sessions {
		if s.Role != RoleServer && s.Role != RoleClient {
			results[i] = Result{Session: s, Err: s.Validate()}
		}
	}

	_ = eg.Wait()
	return results
}

//////////////////// PRIVATE METHODS ////////////////////

func (g *Generator) runLogged(ctx context.Context, logFile string, args []string) error {
	logger := logging.Logger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return errors.Wrap(err, "Error while creating the log directory")
	}

	f, err := os.Create(logFile)
	if err != nil {
		return errors.Wrap(err, "Error while creating the session log")
	}
	defer f.Close()

	if _, err := f.WriteString(LogHeader + "\n"); err != nil {
		return errors.Wrap(err, "Error while writing the session log")
	}

	kubectl := g.Kubectl
	if kubectl == "" {
		kubectl = "kubectl"
	}

	logger.Infof("Running: %s", cmdexec.Format(kubectl, args...))
	if err := g.Runner.Run(ctx, f, kubectl, args...); err != nil {
		return errors.Wrap(err, "Error while running iperf")
	}
	logger.Infof("Log file saved to %s", logFile)
	return nil
}
