// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"log/slog"

	"github.com/gogpu/voxel"
)

func slogger() *slog.Logger { return voxel.Logger() }
