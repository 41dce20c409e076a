// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleContent() Content {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)
	return Content{
		Name:        "packet-energy",
		Description: "2 UEs, UDP",
		ID:          "5b1e7c4e-0c39-4a4f-9d1b-3f8f3f3c2a10",
		Dir:         "out/20_40_1200_udp",
		Start:       start,
		End:         start.Add(2 * time.Minute),
		Deploy: &Deploy{
			Start:    start,
			End:      start.Add(95 * time.Second),
			Seconds:  95,
			Attempts: 2,
		},
		Collections: []Collection{
			{Mode: "energy", State: "stopped", Samples: 120, Entities: 3, Polls: 60, Chart: "energy.png"},
			{Mode: "cpu", State: "failed", Error: "Collection loop panicked: boom"},
		},
		Energy: []Energy{
			{Entity: "0016d3cca427", Name: "oai-cu-7d9f", Joules: 123.456},
			{Entity: "ffffffffffffffff", Name: "unknown", Joules: 1, Estimated: true},
		},
		Sessions: []Session{
			{Role: "server", Pod: "oai-upf-5f7b9c", LogFile: "log_iperf_server_oai-upf-5f7b9c.csv"},
			{Role: "client", Error: "No pod matches \"oai-nr-ue\""},
		},
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	ass := require.New(t)

	text, err := NewWriter().Render(sampleContent())
	ass.NoError(err)

	ass.Contains(text, "PACKET-ENERGY\n=============\n2 UEs, UDP\n")
	ass.Contains(text, "Started:   2025-03-01 10:00:00")
	ass.Contains(text, "2025-03-01 10:00:00 -> 2025-03-01 10:01:35 (95.0s, 2 attempts)")
	ass.Contains(text, "energy       stopped  120 samples, 3 entities, 60 polls (0 failed) -> energy.png")
	ass.Contains(text, "error: Collection loop panicked: boom")
	ass.Contains(text, "123.46 J  [0016d3cca427]")
	ass.Contains(text, "1.00 J (estimated)  [ffffffffffff]")
	ass.Contains(text, "server oai-upf-5f7b9c -> log_iperf_server_oai-upf-5f7b9c.csv")
	ass.Contains(text, "client ? FAILED: No pod matches \"oai-nr-ue\"")
	ass.NotContains(text, "Host energy")
}

func TestRenderEmptyContent(t *testing.T) {
	ass := require.New(t)

	text, err := NewWriter().Render(Content{Name: "x"})
	ass.NoError(err)
	ass.Contains(text, "Collections\n  none")
	ass.NotContains(text, "Deployment")
}

func TestWriteWithTemplateFile(t *testing.T) {
	ass := require.New(t)
	dir := t.TempDir()

	tmplPath := filepath.Join(dir, "report.tmpl")
	ass.NoError(os.WriteFile(tmplPath, []byte(`{{ .Name | title }}: {{ len .Collections }} collections`), 0644))

	w := NewWriter()
	ass.NoError(w.LoadTemplate(tmplPath))

	out := filepath.Join(dir, "report.txt")
	ass.NoError(w.Write(out, sampleContent()))

	data, err := os.ReadFile(out)
	ass.NoError(err)
	ass.Equal("Packet-Energy: 2 collections", string(data))

	ass.Error(w.LoadTemplate(filepath.Join(dir, "missing.tmpl")))
}

func TestDirName(t *testing.T) {
	ass := require.New(t)

	params := map[string]interface{}{
		"Mbps":         20,
		"Duration":     40,
		"PacketLength": 1200,
		"Description":  "udp",
	}

	name, err := DirName("", params)
	ass.NoError(err)
	ass.Equal("20_40_1200_udp", name)

	name, err = DirName(`{{ .Description | upper }}-{{ .Mbps }}M`, params)
	ass.NoError(err)
	ass.Equal("UDP-20M", name)

	_, err = DirName(`{{ .Missing }}`, params)
	ass.Error(err)

	_, err = DirName(`a/{{ .Mbps }}`, params)
	ass.Error(err)

	_, err = DirName(`{{ .Mbps `, params)
	ass.Error(err)
}
