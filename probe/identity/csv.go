// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package identity

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/utils/outcome"
)

var csvHeader = []string{"UID", "Pod Name"}

// Save writes the mapping to path as a two-column CSV file, replacing any
// previous content
func (m *Mapping) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mapping-*.csv")
	if err != nil {
		return errors.Wrap(err, "Error while creating the mapping file")
	}
	defer os.Remove(tmp.Name())

	if err := m.WriteCSV(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "Error while closing the mapping file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "Error while moving the mapping file in place")
	}
	return nil
}

// WriteCSV writes the header and one row per entry
func (m *Mapping) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.Wrap(err, "Error while writing the mapping header")
	}
	for _, e := range m.Entries() {
		if err := writer.Write([]string{e.UID, e.Name}); err != nil {
			return errors.Wrap(err, "Error while writing a mapping row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Error while flushing the mapping")
}

// ReadCSV parses a mapping written by WriteCSV. The header row is required.
func ReadCSV(r io.Reader) (*Mapping, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("Mapping file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Error while reading the mapping header")
	}
	if header[0] != csvHeader[0] || header[1] != csvHeader[1] {
		return nil, errors.Errorf("Unexpected mapping header %q", header)
	}

	var entries []Entry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "Error while reading a mapping row")
		}
		entries = append(entries, Entry{UID: row[0], Name: row[1]})
	}
	return NewMapping(entries), nil
}

// LoadMapping reads a mapping saved with Save
func LoadMapping(path string) outcome.Outcome[*Mapping] {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return outcome.Absent[*Mapping]()
	}
	if err != nil {
		return outcome.Fail[*Mapping](errors.Wrap(err, "Error while opening the mapping file"))
	}
	defer f.Close()

	mapping, err := ReadCSV(f)
	if err != nil {
		return outcome.Fail[*Mapping](err)
	}
	return outcome.Ok(mapping)
}
