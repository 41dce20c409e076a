// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package inventory

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientsetLister lists pods through the API server.
type ClientsetLister struct {
	Clientset kubernetes.Interface

	// Empty means every namespace.
	Namespace string
}

// NewClientsetLister builds a lister from a kubeconfig file, or from the
// in-cluster configuration if kubeconfig is empty.
func NewClientsetLister(kubeconfig, namespace string) (*ClientsetLister, error) {
	var (
		restConfig *rest.Config
		err        error
	)
	if kubeconfig == "" {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Error while building the Kubernetes client configuration")
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "Error while creating the Kubernetes clientset")
	}

	return &ClientsetLister{Clientset: clientset, Namespace: namespace}, nil
}

// ListPods implements Lister. Pods are sorted by namespace and name, the
// order kubectl prints them in.
func (l *ClientsetLister) ListPods(ctx context.Context) ([]Pod, error) {
	list, err := l.Clientset.CoreV1().Pods(l.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "Error while listing pods from the API server")
	}

	pods := make([]Pod, 0, len(list.Items))
	for _, item := range list.Items {
		if item.UID == "" || item.Name == "" {
			continue
		}
		pods = append(pods, Pod{
			UID:       string(item.UID),
			Name:      item.Name,
			Namespace: item.Namespace,
		})
	}

	sort.SliceStable(pods, func(i, j int) bool {
		if pods[i].Namespace != pods[j].Namespace {
			return pods[i].Namespace < pods[j].Namespace
		}
		return pods[i].Name < pods[j].Name
	})
	return pods, nil
}
