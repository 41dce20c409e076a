// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package cmdexec runs the external commands (kubectl, helm) that powerprobe
// drives. Everything goes through the Runner interface so callers can be
// tested without a cluster.
package cmdexec

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// Runner executes external commands.
type Runner interface {
	// Output runs the command and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Run runs the command writing its standard output to stdout. Standard
	// error is discarded unless the command fails.
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) error
}

// ExecRunner is the Runner backed by os/exec.
type ExecRunner struct{}

// Output implements Runner
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	if err := (ExecRunner{}).Run(ctx, &stdout, name, args...); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	logger := logging.Logger()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	logger.Debugf("Running command: %s", Format(name, args...))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return errors.Wrapf(err, "Error while running %q: %s", name, msg)
		}
		return errors.Wrapf(err, "Error while running %q", name)
	}
	return nil
}

// Format renders a command line for logs
func Format(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
