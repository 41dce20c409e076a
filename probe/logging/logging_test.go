// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerBeforeInitialize(t *testing.T) {
	ass := require.New(t)
	t.Cleanup(func() { _zapLogger = nil })

	ass.Same(_nopLogger, Logger())
	ass.False(Logger().Desugar().Core().Enabled(zapcore.ErrorLevel))
	Sync()
}

func TestInitializeLevels(t *testing.T) {
	ass := require.New(t)
	t.Cleanup(func() { _zapLogger = nil })

	logger, err := Initialize(Options{})
	ass.NoError(err)
	ass.Same(logger, Logger())
	ass.True(logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	ass.False(logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	logger, err = Initialize(Options{DateTime: true, Debug: true, Colors: true})
	ass.NoError(err)
	ass.True(logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}
