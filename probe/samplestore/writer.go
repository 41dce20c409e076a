// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package samplestore

import (
	"context"
	stderrors "errors"
)

// Writer persists the buffer of a finished collection run.
type Writer interface {
	Write(ctx context.Context, buf *Buffer) error
}

// WriterFunc adapts a function to Writer
type WriterFunc func(ctx context.Context, buf *Buffer) error

// Write implements Writer
func (f WriterFunc) Write(ctx context.Context, buf *Buffer) error {
	return f(ctx, buf)
}

// FileWriter writes the buffer as a JSON file at Path.
type FileWriter struct {
	Path string
}

// Write implements Writer
func (w FileWriter) Write(ctx context.Context, buf *Buffer) error {
	return Persist(buf, w.Path)
}

// ArchiveWriter stores the buffer as one run of a SQLite archive.
type ArchiveWriter struct {
	Archive *Archive
	Run     Run
}

// Write implements Writer
func (w ArchiveWriter) Write(ctx context.Context, buf *Buffer) error {
	return w.Archive.SaveRun(ctx, w.Run, buf)
}

// MultiWriter writes to every writer, even if some fail, and joins the errors.
type MultiWriter []Writer

// Write implements Writer
func (m MultiWriter) Write(ctx context.Context, buf *Buffer) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, buf); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
