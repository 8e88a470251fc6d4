//go:build !js

package main

import (
	"golang.org/x/text/message"

	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/world"
)

// describe formats the world counters, plus the frame counters while a
// renderer is running.
func describe(p *message.Printer, s world.Stats, r *app.Renderer) string {
	line := p.Sprintf("%d cubes in %d chunks, %d removed", s.Visible, s.Chunks, s.Removed)
	if r == nil {
		return line
	}
	fs := r.Frames.Stats()
	return line + p.Sprintf(" | %d frames, %d skipped, %d draws", fs.Presented, fs.Skipped, fs.Draws)
}
