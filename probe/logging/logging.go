// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package logging holds the process-wide logger of powerprobe
package logging

import (
	"time"

	"github.com/pkg/errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the console format of the log
type Options struct {
	// Prefix each entry with an ISO 8601 timestamp
	DateTime bool
	// Log at DEBUG instead of INFO, with stack traces on errors
	Debug bool
	// Color the level names
	Colors bool
}

var _zapLogger *zap.SugaredLogger

// Used until Initialize succeeds, so that packages and tests can log without
// any setup
var _nopLogger = zap.NewNop().Sugar()

// Initialize replaces the process logger with a console logger configured by
// opts, and returns it
func Initialize(opts Options) (*zap.SugaredLogger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Encoding = "console"
	zapConfig.DisableStacktrace = !opts.Debug

	if opts.DateTime {
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {}
	}

	zapConfig.Level.SetLevel(zapcore.InfoLevel)
	if opts.Debug {
		zapConfig.Level.SetLevel(zapcore.DebugLevel)
	}

	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if opts.Colors {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	unsugared, err := zapConfig.Build()
	if err != nil {
		return nil, errors.Wrap(err, "Error while constructing a logger")
	}

	_zapLogger = unsugared.Sugar()
	return _zapLogger, nil
}

// Logger returns the process logger, or a logger that discards everything
// before Initialize
func Logger() *zap.SugaredLogger {
	if _zapLogger == nil {
		return _nopLogger
	}
	return _zapLogger
}

// Sync flushes buffered entries. Errors are ignored: syncing a terminal
// fails on some platforms.
func Sync() {
	_ = Logger().Sync()
}
