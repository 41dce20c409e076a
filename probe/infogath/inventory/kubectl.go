// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package inventory

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec"
)

// KubectlLister lists pods with "kubectl get pods --all-namespaces -o json".
type KubectlLister struct {
	Runner  cmdexec.Runner
	Kubectl string

	// If not empty, every successful listing also writes the raw document
	// there.
	SavePath string
}

// ListPods implements Lister
func (l *KubectlLister) ListPods(ctx context.Context) ([]Pod, error) {
	out, err := l.Runner.Output(ctx, l.kubectl(), "get", "pods", "--all-namespaces", "-o", "json")
	if err != nil {
		return nil, errors.Wrap(err, "Error while listing pods with kubectl")
	}

	pods, err := ParsePodList(out)
	if err != nil {
		return nil, err
	}

	if l.SavePath != "" {
		if err := os.WriteFile(l.SavePath, out, 0644); err != nil {
			return nil, errors.Wrap(err, "Error while saving the pod list")
		}
	}

	return pods, nil
}

// FindPod returns the first pod whose "kubectl get pods -A" row contains
// searchTerm. The boolean is false if nothing matches.
func (l *KubectlLister) FindPod(ctx context.Context, searchTerm string) (Pod, bool, error) {
	out, err := l.Runner.Output(ctx, l.kubectl(), "get", "pods", "-A", "--no-headers")
	if err != nil {
		return Pod{}, false, errors.Wrap(err, "Error while listing pods with kubectl")
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, searchTerm) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		return Pod{Namespace: fields[0], Name: fields[1]}, true, nil
	}
	return Pod{}, false, scanner.Err()
}

func (l *KubectlLister) kubectl() string {
	if l.Kubectl == "" {
		return "kubectl"
	}
	return l.Kubectl
}
