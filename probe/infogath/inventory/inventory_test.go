// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/cmdexec/cmdexectest"
	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

const podListJSON = `{
  "apiVersion": "v1",
  "items": [
    {"metadata": {"name": "oai-cu-7d9f", "namespace": "oai", "uid": "1b4e28ba-2fa1-11d2-883f-0016d3cca427"}},
    {"metadata": {"name": "no-uid", "namespace": "oai"}},
    {"metadata": {"namespace": "oai", "uid": "no-name"}},
    {"metadata": {"name": "oai-du-5c4b", "namespace": "oai", "uid": "6fa459ea-ee8a-3ca4-894e-db77e160355e"}}
  ],
  "kind": "List"
}`

func TestParsePodList(t *testing.T) {
	ass := require.New(t)

	pods, err := ParsePodList([]byte(podListJSON))
	ass.NoError(err)
	ass.Equal([]Pod{
		{UID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Name: "oai-cu-7d9f", Namespace: "oai"},
		{UID: "6fa459ea-ee8a-3ca4-894e-db77e160355e", Name: "oai-du-5c4b", Namespace: "oai"},
	}, pods)

	_, err = ParsePodList([]byte("not json"))
	ass.Error(err)
}

func TestReadPodListFile(t *testing.T) {
	ass := require.New(t)
	dir := t.TempDir()

	missing := ReadPodListFile(filepath.Join(dir, "missing.json"))
	ass.Equal(outcome.Missing, missing.Kind)

	broken := filepath.Join(dir, "broken.json")
	ass.NoError(os.WriteFile(broken, []byte("{"), 0644))
	ass.Equal(outcome.Failed, ReadPodListFile(broken).Kind)

	good := filepath.Join(dir, "pods.json")
	ass.NoError(os.WriteFile(good, []byte(podListJSON), 0644))
	result := ReadPodListFile(good)
	ass.True(result.IsFound())
	ass.Len(result.Value, 2)

	_, err := FileLister{Path: filepath.Join(dir, "missing.json")}.ListPods(context.Background())
	ass.Error(err)
}

func TestKubectlLister(t *testing.T) {
	ass := require.New(t)

	savePath := filepath.Join(t.TempDir(), "all_pods.json")
	runner := &cmdexectest.Runner{Handler: func(name string, args []string) ([]byte, error) {
		return []byte(podListJSON), nil
	}}
	lister := &KubectlLister{Runner: runner, SavePath: savePath}

	pods, err := lister.ListPods(context.Background())
	ass.NoError(err)
	ass.Len(pods, 2)
	ass.Equal([]string{"kubectl get pods --all-namespaces -o json"}, runner.Calls())

	saved, err := os.ReadFile(savePath)
	ass.NoError(err)
	ass.JSONEq(podListJSON, string(saved))
}

func TestKubectlListerFailure(t *testing.T) {
	runner := &cmdexectest.Runner{Handler: func(name string, args []string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}}
	lister := &KubectlLister{Runner: runner, Kubectl: "/usr/local/bin/kubectl"}

	_, err := lister.ListPods(context.Background())
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, []string{"/usr/local/bin/kubectl get pods --all-namespaces -o json"}, runner.Calls())
}

func TestKubectlListerFindPod(t *testing.T) {
	ass := require.New(t)

	runner := &cmdexectest.Runner{Handler: func(name string, args []string) ([]byte, error) {
		return []byte("oai   oai-nr-ue-6b9f   1/1   Running   0   3m\n" +
			"oai   oai-upf-84cd     1/1   Running   0   3m\n"), nil
	}}
	lister := &KubectlLister{Runner: runner}

	pod, ok, err := lister.FindPod(context.Background(), "oai-upf")
	ass.NoError(err)
	ass.True(ok)
	ass.Equal(Pod{Namespace: "oai", Name: "oai-upf-84cd"}, pod)

	_, ok, err = lister.FindPod(context.Background(), "amf")
	ass.NoError(err)
	ass.False(ok)
}

func TestClientsetLister(t *testing.T) {
	ass := require.New(t)

	clientset := fake.NewSimpleClientset(
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "oai-upf", Namespace: "oai", UID: types.UID("c-2")}},
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "coredns", Namespace: "kube-system", UID: types.UID("c-3")}},
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "oai-cu", Namespace: "oai", UID: types.UID("c-1")}},
	)

	lister := &ClientsetLister{Clientset: clientset}
	pods, err := lister.ListPods(context.Background())
	ass.NoError(err)
	ass.Equal([]Pod{
		{UID: "c-1", Name: "oai-cu", Namespace: "oai"},
		{UID: "c-2", Name: "oai-upf", Namespace: "oai"},
		{UID: "c-3", Name: "coredns", Namespace: "kube-system"},
	}, pods)

	lister.Namespace = "kube-system"
	pods, err = lister.ListPods(context.Background())
	ass.NoError(err)
	ass.Len(pods, 1)
}
