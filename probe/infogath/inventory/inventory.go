// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// This package lists the pods running in the cluster, either through kubectl
// or through the API server, so that metric samples can be attributed to pod
// names.
package inventory

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

//////////////////// PUBLIC STRUCT TYPES ////////////////////

// Pod is one entry of the inventory.
type Pod struct {
	UID       string
	Name      string
	Namespace string
}

// Lister lists the pods of the cluster, in a stable order.
type Lister interface {
	ListPods(ctx context.Context) ([]Pod, error)
}

// podList is the shape of "kubectl get pods -o json"
type podList struct {
	Items []struct {
		Metadata struct {
			UID       string `json:"uid"`
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		} `json:"metadata"`
	} `json:"items"`
}

//////////////////// PUBLIC FUNCTIONS ////////////////////

// ParsePodList extracts the pods from a pod list document. Items without uid
// or name are skipped.
func ParsePodList(data []byte) ([]Pod, error) {
	var list podList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.Wrap(err, "Error while decoding the pod list")
	}

	pods := make([]Pod, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Metadata.UID == "" || item.Metadata.Name == "" {
			continue
		}
		pods = append(pods, Pod{
			UID:       item.Metadata.UID,
			Name:      item.Metadata.Name,
			Namespace: item.Metadata.Namespace,
		})
	}
	return pods, nil
}

// ReadPodListFile reads a pod list document saved earlier (see
// KubectlLister.SavePath).
func ReadPodListFile(path string) outcome.Outcome[[]Pod] {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return outcome.Absent[[]Pod]()
	}
	if err != nil {
		return outcome.Fail[[]Pod](errors.Wrap(err, "Error while reading the pod list file"))
	}

	pods, err := ParsePodList(data)
	if err != nil {
		return outcome.Fail[[]Pod](err)
	}
	return outcome.Ok(pods)
}

// FileLister serves the pods of a pod list document on disk. A missing file is
// an error, since a refresh should keep the previous mapping in that case.
type FileLister struct {
	Path string
}

// ListPods implements Lister
func (l FileLister) ListPods(ctx context.Context) ([]Pod, error) {
	result := ReadPodListFile(l.Path)
	switch result.Kind {
	case outcome.Found:
		return result.Value, nil
	case outcome.Missing:
		return nil, errors.Errorf("Pod list file %q not found", l.Path)
	default:
		return nil, result.Err
	}
}
