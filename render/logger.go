// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"log/slog"

	"github.com/gogpu/voxel"
)

// slogger returns the logger configured with voxel.SetLogger.
func slogger() *slog.Logger { return voxel.Logger() }
