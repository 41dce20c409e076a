// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package deploy (re)deploys the network functions measured by an experiment,
// with helm and kubectl, and checks that they can reach each other.
package deploy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/constants"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/infogath/inventory"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

//////////////////// PUBLIC TYPES ////////////////////

// Release is a helm chart installed as part of a deployment
type Release struct {
	Name      string   `mapstructure:"name"`
	Chart     string   `mapstructure:"chart"`
	Namespace string   `mapstructure:"namespace"`
	Set       []string `mapstructure:"set"`

	// Pause after the pods of the namespace are ready
	Pause time.Duration `mapstructure:"pause"`
}

// Exec is a command run inside a pod once everything is deployed, e.g. to add
// a route. The pod is looked up by a search term on its name.
type Exec struct {
	Pod     string   `mapstructure:"pod"`
	Command []string `mapstructure:"command"`
}

// PingCheck asks the pod found by Pod to ping Target
type PingCheck struct {
	Pod    string `mapstructure:"pod"`
	Target string `mapstructure:"target"`
}

// PodFinder looks a pod up by a search term on its name
type PodFinder interface {
	FindPod(ctx context.Context, searchTerm string) (inventory.Pod, bool, error)
}

// Controller runs helm and kubectl
type Controller struct {
	Runner  cmdexec.Runner
	Helm    string
	Kubectl string
	Finder  PodFinder

	// Bound of "kubectl wait". Defaults to 180s.
	ReadyTimeout time.Duration

	PingAttempts uint
	PingDelay    time.Duration
}

//////////////////// PUBLIC METHODS ////////////////////

// UninstallAll uninstalls every helm release of namespace. A failure to
// uninstall one release is logged and does not stop the others.
func (c *Controller) UninstallAll(ctx context.Context, namespace string) error {
	logger := logging.Logger()

	out, err := c.Runner.Output(ctx, c.helm(), "list", "-n", namespace, "-q")
	if err != nil {
		return errors.Wrapf(err, "Error while listing the releases of namespace %s", namespace)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		release := strings.TrimSpace(scanner.Text())
		if release == "" {
			continue
		}
		logger.Infof("Uninstalling release %s from namespace %s", release, namespace)
		if _, err := c.Runner.Output(ctx, c.helm(), "uninstall", release, "-n", namespace); err != nil {
			logger.Error("Error while uninstalling release ", release, ": ", err)
		}
	}
	return scanner.Err()
}

// Install installs a release and waits for the pods of its namespace
func (c *Controller) Install(ctx context.Context, release Release) error {
	logger := logging.Logger()

	args := []string{"install", release.Name, release.Chart, "-n", release.Namespace}
	if len(release.Set) > 0 {
		args = append(args, "--set", strings.Join(release.Set, ","))
	}

	logger.Infof("Installing release %s in namespace %s", release.Name, release.Namespace)
	if _, err := c.Runner.Output(ctx, c.helm(), args...); err != nil {
		return errors.Wrapf(err, "Error while installing release %s", release.Name)
	}

	if err := c.WaitReady(ctx, release.Namespace); err != nil {
		return err
	}

	if release.Pause > 0 {
		select {
		case <-time.After(release.Pause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// WaitReady waits for every pod of namespace to be ready
func (c *Controller) WaitReady(ctx context.Context, namespace string) error {
	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = constants.DefaultReadyTimeout
	}

	_, err := c.Runner.Output(ctx, c.kubectl(), "wait", "--for=condition=Ready", "--all", "pods",
		"-n", namespace, fmt.Sprintf("--timeout=%ds", int(timeout.Seconds())))
	return errors.Wrapf(err, "Error while waiting for the pods of namespace %s", namespace)
}

// Deploy cleans the given namespaces, then installs the releases in order.
// It returns the time the deployment took.
func (c *Controller) Deploy(ctx context.Context, clean []string, releases []Release) (Timing, error) {
	for _, namespace := range clean {
		if err := c.UninstallAll(ctx, namespace); err != nil {
			return Timing{}, err
		}
	}

	timing := Timing{Start: time.Now()}
	for _, release := range releases {
		if err := c.Install(ctx, release); err != nil {
			return Timing{}, err
		}
	}
	timing.End = time.Now()
	return timing, nil
}

// Exec runs a command inside the pod found by exec.Pod
func (c *Controller) Exec(ctx context.Context, exec Exec) error {
	namespace, name, err := c.find(ctx, exec.Pod)
	if err != nil {
		return err
	}

	args := append([]string{"exec", name, "-n", namespace, "--"}, exec.Command...)
	if _, err := c.Runner.Output(ctx, c.kubectl(), args...); err != nil {
		return errors.Wrapf(err, "Error while running %q in pod %s", strings.Join(exec.Command, " "), name)
	}
	return nil
}

// Ping runs "ping -c 3" from the pod found by check.Pod to check.Target,
// trying a few times before giving up.
func (c *Controller) Ping(ctx context.Context, check PingCheck) error {
	logger := logging.Logger()

	namespace, name, err := c.find(ctx, check.Pod)
	if err != nil {
		return err
	}

	attempts := c.PingAttempts
	if attempts == 0 {
		attempts = constants.DefaultPingAttempts
	}
	delay := c.PingDelay
	if delay <= 0 {
		delay = constants.DefaultPingDelay
	}

	err = retry.Do(
		func() error {
			_, err := c.Runner.Output(ctx, c.kubectl(), "exec", name, "-n", namespace, "--", "ping", "-c", "3", check.Target)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("Ping from %s to %s failed (attempt %d): %v", name, check.Target, n+1, err)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "Pod %s cannot reach %s", name, check.Target)
	}
	logger.Infof("Pod %s reaches %s", name, check.Target)
	return nil
}

//////////////////// PRIVATE METHODS ////////////////////

func (c *Controller) find(ctx context.Context, searchTerm string) (namespace, name string, err error) {
	if c.Finder == nil {
		return "", "", errors.New("No pod finder configured")
	}
	pod, found, err := c.Finder.FindPod(ctx, searchTerm)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", errors.Errorf("No pod matches %q", searchTerm)
	}
	return pod.Namespace, pod.Name, nil
}

func (c *Controller) helm() string {
	if c.Helm == "" {
		return "helm"
	}
	return c.Helm
}

func (c *Controller) kubectl() string {
	if c.Kubectl == "" {
		return "kubectl"
	}
	return c.Kubectl
}
