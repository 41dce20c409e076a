// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package samplestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

func TestBufferAppendKeepsOrder(t *testing.T) {
	ass := require.New(t)

	buf := NewBuffer()
	for i := 0; i < 5; i++ {
		buf.Append("abc", Sample{Timestamp: float64(100 + i), Value: 5})
	}
	buf.Append("0a1", Sample{Timestamp: 102, Value: 1, Cmdline: "iperf -s"})

	ass.Equal([]string{"abc", "0a1"}, buf.Entities())
	ass.Equal([]string{"0a1", "abc"}, buf.SortedEntities())
	ass.Equal(5, buf.Len("abc"))
	ass.Equal(6, buf.Total())
	ass.Equal(0, buf.Len("missing"))

	series := buf.Series("abc")
	for i, s := range series {
		ass.Equal(float64(100+i), s.Timestamp)
	}

	// Series returns a copy.
	series[0].Value = 42
	ass.Equal(5.0, buf.Series("abc")[0].Value)
}

func TestBufferJSONShape(t *testing.T) {
	ass := require.New(t)

	buf := NewBuffer()
	buf.Append("abc", Sample{Timestamp: 1700000000.5, Value: 5, Cmdline: "nr-softmodem"})
	buf.Append("node-1", Sample{Timestamp: 1700000001, Value: 12.25})

	data, err := json.Marshal(buf)
	ass.NoError(err)
	ass.JSONEq(`{
		"abc": [{"timestamp": 1700000000.5, "value": 5, "cmdline": "nr-softmodem"}],
		"node-1": [{"timestamp": 1700000001, "value": 12.25}]
	}`, string(data))

	empty, err := json.Marshal(NewBuffer())
	ass.NoError(err)
	ass.Equal("{}", string(empty))
}

func TestPersistOverwritesAndLoads(t *testing.T) {
	ass := require.New(t)

	path := filepath.Join(t.TempDir(), "metrics_energy.json")
	ass.NoError(os.WriteFile(path, []byte(`{"stale": [{"timestamp": 1, "value": 1}]}`), 0644))

	buf := NewBuffer()
	buf.Append("abc", Sample{Timestamp: 10, Value: 5})
	buf.Append("abc", Sample{Timestamp: 11, Value: 6})
	ass.NoError(Persist(buf, path))

	loaded := Load(path)
	ass.True(loaded.IsFound())
	ass.Equal([]string{"abc"}, loaded.Value.Entities())
	ass.Equal(buf.Series("abc"), loaded.Value.Series("abc"))

	entries, err := os.ReadDir(filepath.Dir(path))
	ass.NoError(err)
	ass.Len(entries, 1)
}

func TestLoadOutcomes(t *testing.T) {
	ass := require.New(t)
	dir := t.TempDir()

	ass.Equal(outcome.Missing, Load(filepath.Join(dir, "missing.json")).Kind)

	bad := filepath.Join(dir, "bad.json")
	ass.NoError(os.WriteFile(bad, []byte(`{"abc": 3}`), 0644))
	ass.Equal(outcome.Failed, Load(bad).Kind)
}

func TestMultiWriterAttemptsEveryWriter(t *testing.T) {
	ass := require.New(t)

	var calls []string
	multi := MultiWriter{
		WriterFunc(func(ctx context.Context, buf *Buffer) error {
			calls = append(calls, "first")
			return errors.New("disk full")
		}),
		WriterFunc(func(ctx context.Context, buf *Buffer) error {
			calls = append(calls, "second")
			return nil
		}),
	}

	err := multi.Write(context.Background(), NewBuffer())
	ass.ErrorContains(err, "disk full")
	ass.Equal([]string{"first", "second"}, calls)

	ass.NoError(MultiWriter{}.Write(context.Background(), NewBuffer()))
}

func TestArchive(t *testing.T) {
	ass := require.New(t)
	ctx := context.Background()

	archive, err := OpenArchive(filepath.Join(t.TempDir(), "runs.db"))
	ass.NoError(err)
	defer archive.Close()

	buf := NewBuffer()
	buf.Append("abc", Sample{Timestamp: 10, Value: 5, Cmdline: "iperf"})
	buf.Append("abc", Sample{Timestamp: 11, Value: 6})
	buf.Append("0a1", Sample{Timestamp: 10, Value: 1})

	first := NewRun("10_100_1200_baseline", "energy")
	first.StoredAt = time.Unix(1700000000, 0)
	ass.NoError(ArchiveWriter{Archive: archive, Run: first}.Write(ctx, buf))

	second := NewRun("20_100_1200_baseline", "cpu")
	second.StoredAt = time.Unix(1700000100, 0)
	ass.NoError(archive.SaveRun(ctx, second, NewBuffer()))

	runs, err := archive.Runs(ctx)
	ass.NoError(err)
	ass.Len(runs, 2)
	ass.Equal(second.ID, runs[0].ID)
	ass.Equal(0, runs[0].Samples)
	ass.Equal(first.ID, runs[1].ID)
	ass.Equal(3, runs[1].Samples)
	ass.Equal("energy", runs[1].Mode)
	ass.True(first.StoredAt.Equal(runs[1].StoredAt))

	loaded, err := archive.LoadRun(ctx, first.ID)
	ass.NoError(err)
	ass.Equal([]string{"0a1", "abc"}, loaded.Entities())
	ass.Equal(buf.Series("abc"), loaded.Series("abc"))

	// Saving the same id again replaces the run.
	replacement := NewBuffer()
	replacement.Append("xyz", Sample{Timestamp: 1, Value: 2})
	ass.NoError(archive.SaveRun(ctx, first, replacement))
	loaded, err = archive.LoadRun(ctx, first.ID)
	ass.NoError(err)
	ass.Equal([]string{"xyz"}, loaded.Entities())

	_, err = archive.LoadRun(ctx, "does-not-exist")
	ass.Error(err)

	ass.Error(archive.SaveRun(ctx, Run{}, buf))
}
