// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package outcome provides a tagged result for reads that may legitimately
// find nothing, such as a persisted file that was never written.
package outcome

// Kind tells which of the three possible results an Outcome carries.
type Kind int

const (
	// Found means Value holds the loaded data.
	Found Kind = iota
	// Missing means there was nothing to load. Not an error.
	Missing
	// Failed means the load was attempted and Err explains why it failed.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case Missing:
		return "missing"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Outcome is the result of loading a value of type T.
type Outcome[T any] struct {
	Value T
	Kind  Kind
	Err   error
}

// Ok wraps a successfully loaded value.
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value, Kind: Found}
}

// Absent reports that there was nothing to load.
func Absent[T any]() Outcome[T] {
	return Outcome[T]{Kind: Missing}
}

// Fail reports a failed load.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Failed, Err: err}
}

// IsFound returns true if the outcome carries a value
func (o Outcome[T]) IsFound() bool {
	return o.Kind == Found
}

// OrElse returns the loaded value, or fallback if nothing was loaded
func (o Outcome[T]) OrElse(fallback T) T {
	if o.Kind == Found {
		return o.Value
	}
	return fallback
}
