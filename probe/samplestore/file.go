// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package samplestore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

// Persist writes the whole buffer to path as JSON. Any existing file is
// replaced, never merged. The file is written next to path and renamed, so a
// crash never leaves a half-written buffer behind.
func Persist(buf *Buffer, path string) error {
	data, err := json.Marshal(buf)
	if err != nil {
		return errors.Wrap(err, "Error while encoding the sample buffer")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".samples-*.json")
	if err != nil {
		return errors.Wrap(err, "Error while creating the sample buffer file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Error while writing the sample buffer file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "Error while closing the sample buffer file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "Error while moving the sample buffer file in place")
	}
	return nil
}

// Load reads a buffer written by Persist. A missing file is reported as
// outcome.Missing.
func Load(path string) outcome.Outcome[*Buffer] {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return outcome.Absent[*Buffer]()
	}
	if err != nil {
		return outcome.Fail[*Buffer](errors.Wrap(err, "Error while reading the sample buffer file"))
	}

	buf := NewBuffer()
	if err := json.Unmarshal(data, buf); err != nil {
		return outcome.Fail[*Buffer](errors.Wrap(err, "Error while decoding the sample buffer file"))
	}
	return outcome.Ok(buf)
}
