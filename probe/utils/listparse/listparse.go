// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package listparse

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ParseList parses a sep-separated list of names. Blank pieces are dropped
func ParseList(list, sep string) []string {
	names := []string{}
	pieces := strings.Split(list, sep)

	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)

		if piece == "" {
			continue
		}

		names = append(names, piece)
	}

	return names
}

// ParseComma parses a comma-separated list of names
func ParseComma(list string) []string {
	return ParseList(list, ",")
}

// ParseFile parses a newline-separated list of names from a file
func ParseFile(filepath string) ([]string, error) {
	bytes, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	// We don't need to remove '\r' characters because in ParseList we use
	// the strings.TrimSpace function

	return ParseList(string(bytes), "\n"), nil
}

// ParseSource parses a list given either inline ("list:a,b" or just "a,b") or
// as a file ("file:./names.txt"). "none" and the empty string give an empty
// list
func ParseSource(source string) ([]string, error) {
	switch {
	case source == "" || source == "none":
		return []string{}, nil
	case strings.HasPrefix(source, "file:"):
		names, err := ParseFile(strings.TrimPrefix(source, "file:"))
		if err != nil {
			return nil, errors.Wrap(err, "Error while reading list from file")
		}
		return names, nil
	default:
		return ParseComma(strings.TrimPrefix(source, "list:")), nil
	}
}
