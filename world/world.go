// Package world holds the voxel field: cube meshes, per-chunk instance
// sets, the bobbing animation, click removal by ray marching, and the
// Game that drives it all from an app.Loop.
package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/voxel/camera"
	"github.com/gogpu/voxel/render"
)

// ErrNoChunk is returned for operations on a chunk the world lacks.
var ErrNoChunk = errors.New("world: no such chunk")

// World is a square grid of chunks on the ground plane.
type World struct {
	chunkSize int
	order     []Chunk
	sets      map[Chunk]*InstanceSet

	// Amplitude scales the bobbing height; zero disables bobbing.
	Amplitude float32
	tick      int
}

// New creates chunks x chunks chunks of size x size cells each.
func New(chunks, size int, layout Layout, color mgl32.Vec3) *World {
	w := &World{chunkSize: size, sets: make(map[Chunk]*InstanceSet, chunks*chunks)}
	for x := range chunks {
		for z := range chunks {
			c := Chunk{X: x, Z: z}
			w.order = append(w.order, c)
			w.sets[c] = NewInstanceSet(ChunkInstances(c, size, layout, color))
		}
	}
	return w
}

// ChunkSize returns the number of cells along a chunk side.
func (w *World) ChunkSize() int { return w.chunkSize }

// Chunks returns the chunks in creation order.
func (w *World) Chunks() []Chunk { return w.order }

// Set returns the instances of chunk c, nil if c does not exist.
func (w *World) Set(c Chunk) *InstanceSet { return w.sets[c] }

// Visible returns the number of visible instances in all chunks.
func (w *World) Visible() int {
	n := 0
	for _, s := range w.sets {
		n += int(s.Visible())
	}
	return n
}

// Bounds returns the box enclosing every cell, including the bobbing
// range.
func (w *World) Bounds() (lo, hi mgl32.Vec3) {
	if len(w.order) == 0 {
		return lo, hi
	}
	lo = mgl32.Vec3{float32(w.order[0].X * w.chunkSize), 0, float32(w.order[0].Z * w.chunkSize)}
	hi = lo
	for _, c := range w.order {
		lo[0] = min(lo[0], float32(c.X*w.chunkSize))
		lo[2] = min(lo[2], float32(c.Z*w.chunkSize))
		hi[0] = max(hi[0], float32((c.X+1)*w.chunkSize))
		hi[2] = max(hi[2], float32((c.Z+1)*w.chunkSize))
	}
	hi[1] = 1 + max(w.Amplitude, 0)
	return lo, hi
}

// Center returns the middle of the ground plane.
func (w *World) Center() mgl32.Vec3 {
	lo, hi := w.Bounds()
	return mgl32.Vec3{(lo[0] + hi[0]) / 2, 0, (lo[2] + hi[2]) / 2}
}

// RemoveAt hides the instance occupying ground cell c. Only cells at
// height 0 hold instances. It reports whether a visible instance was
// hidden.
func (w *World) RemoveAt(c Cell) bool {
	if c[1] != 0 {
		return false
	}
	chunk := Chunk{X: floorDiv(c[0], w.chunkSize), Z: floorDiv(c[2], w.chunkSize)}
	set := w.sets[chunk]
	if set == nil {
		return false
	}
	x, z := c[0]-chunk.X*w.chunkSize, c[2]-chunk.Z*w.chunkSize
	return set.Hide(z*w.chunkSize + x)
}

// TraceRemove marches along r in steps of 0.1 from where it enters the
// world, for at most 50 units, and hides the first visible instance whose
// cell it crosses.
func (w *World) TraceRemove(r camera.Ray) (Cell, bool) {
	lo, hi := w.Bounds()
	entry, ok := IntersectAABB(r, lo, hi)
	if !ok {
		return Cell{}, false
	}
	for n := range traceSteps {
		c := cellOf(r.At(entry + float32(n)*traceStep))
		if w.RemoveAt(c) {
			return c, true
		}
	}
	return Cell{}, false
}

// RemoveRecent hides the instance back positions from the end of chunk
// c's set.
func (w *World) RemoveRecent(c Chunk, back int) (bool, error) {
	set := w.sets[c]
	if set == nil {
		return false, fmt.Errorf("%w: %v", ErrNoChunk, c)
	}
	return set.Hide(set.Len() - back), nil
}

// Insert adds a half-size cube at cell offset (x, z) of chunk c, rotated
// 45 degrees about the axis through its position.
func (w *World) Insert(c Chunk, x, z int, color mgl32.Vec3) (int, error) {
	set := w.sets[c]
	if set == nil {
		return 0, fmt.Errorf("%w: %v", ErrNoChunk, c)
	}
	pos := mgl32.Vec3{float32(c.X*w.chunkSize + x), 0, float32(c.Z*w.chunkSize + z)}
	in := NewInstance(pos, color)
	in.Scale = 0.5
	if pos.Len() > 0 {
		in.Rotation = mgl32.QuatRotate(mgl32.DegToRad(45), pos.Normalize())
	}
	return set.Add(in), nil
}

// Step advances the bobbing animation by one tick. Instances along the
// same grid diagonal move together; each further diagonal starts later.
func (w *World) Step() {
	if w.Amplitude == 0 {
		return
	}
	w.tick++
	for _, c := range w.order {
		set := w.sets[c]
		for i := range min(set.Len(), w.chunkSize*w.chunkSize) {
			x, z := i%w.chunkSize, i/w.chunkSize
			set.SetHeight(i, Bob(w.tick, (x+z)*bobStagger)*w.Amplitude)
		}
	}
}

// Upload creates the instance buffers of every chunk in store.
func (w *World) Upload(store *render.ResourceStore) error {
	for _, c := range w.order {
		if _, err := w.sets[c].Upload(store); err != nil {
			return fmt.Errorf("world: chunk %v: %w", c, err)
		}
	}
	return nil
}

// Flush writes every changed chunk to its buffer.
func (w *World) Flush() error {
	for _, c := range w.order {
		if _, err := w.sets[c].Flush(); err != nil {
			return fmt.Errorf("world: chunk %v: %w", c, err)
		}
	}
	return nil
}
