// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package cmdexectest provides a scripted cmdexec.Runner for tests.
package cmdexectest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

// Handler answers one command. It returns what the command prints on stdout
// and the error it exits with.
type Handler func(name string, args []string) ([]byte, error)

// Runner records every command and answers through Handler. A nil Handler
// makes every command succeed with empty output.
type Runner struct {
	Handler Handler

	mu    sync.Mutex
	calls []string
}

var _ cmdexec.Runner = (*Runner)(nil)

// Output implements cmdexec.Runner
func (r *Runner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmdexec.Format(name, args...))
	handler := r.Handler
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, nil
	}
	return handler(name, args)
}

// Run implements cmdexec.Runner
func (r *Runner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	out, err := r.Output(ctx, name, args...)
	if len(out) > 0 && stdout != nil {
		if _, werr := stdout.Write(out); werr != nil {
			return werr
		}
	}
	return err
}

// Calls returns the command lines run so far, in order
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallsContaining returns the recorded command lines containing substr
func (r *Runner) CallsContaining(substr string) []string {
	var found []string
	for _, call := range r.Calls() {
		if strings.Contains(call, substr) {
			found = append(found, call)
		}
	}
	return found
}
