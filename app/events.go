// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package app

import "github.com/gogpu/gpucontext"

// Event is input delivered by a host.
type Event interface {
	isEvent()
}

// ResizeEvent reports a new drawable size in physical pixels. Events with
// a zero dimension (minimized windows, hidden canvases) are ignored.
type ResizeEvent struct {
	Width, Height uint32
}

// CloseEvent asks the loop to shut down.
type CloseEvent struct{}

// KeyEvent reports a key press or release.
type KeyEvent struct {
	Key     gpucontext.Key
	Mods    gpucontext.Modifiers
	Pressed bool
}

// ScrollEvent reports a wheel or page scroll. Positive DY scrolls up.
type ScrollEvent struct {
	DX, DY float64
}

// ClickEvent reports a primary button click at a position in physical
// pixels from the top-left corner of the drawable.
type ClickEvent struct {
	X, Y float64
}

func (ResizeEvent) isEvent() {}
func (CloseEvent) isEvent()  {}
func (KeyEvent) isEvent()    {}
func (ScrollEvent) isEvent() {}
func (ClickEvent) isEvent()  {}
