package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Chunk addresses a square block of ChunkSize x ChunkSize cells on the
// ground plane.
type Chunk struct {
	X, Z int
}

// Layout selects which cells of a chunk start visible.
type Layout uint8

// Layouts.
const (
	// LayoutSquare fills every cell.
	LayoutSquare Layout = iota
	// LayoutCircle fills the disc inscribed in the chunk, cut by the
	// chunk's border rows and its two center lines.
	LayoutCircle
)

// ParseLayout converts a config string to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "square":
		return LayoutSquare, nil
	case "circle":
		return LayoutCircle, nil
	}
	return 0, fmt.Errorf("world: unknown layout %q", s)
}

// ChunkInstances generates one instance per cell of chunk c. Instance n
// sits at cell (n % size, n / size) relative to the chunk origin.
func ChunkInstances(c Chunk, size int, layout Layout, color mgl32.Vec3) []Instance {
	out := make([]Instance, size*size)
	center := size / 2
	for n := range out {
		x, z := n%size, n/size
		pos := mgl32.Vec3{float32(x + c.X*size), 0, float32(z + c.Z*size)}
		out[n] = NewInstance(pos, color)
		if layout == LayoutCircle {
			dx, dz := x-center, z-center
			if dx*dx+dz*dz > center*center || x == 0 || x == center || z == 0 || z == center {
				out[n].Visible = false
			}
		}
	}
	return out
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
