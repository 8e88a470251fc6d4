package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/voxel/camera"
)

const (
	traceStep  = 0.1
	traceSteps = 500
)

// IntersectAABB returns the distance along r to the box [lo, hi] using the
// slab method. A ray starting inside the box hits at 0.
func IntersectAABB(r camera.Ray, lo, hi mgl32.Vec3) (float32, bool) {
	tmin, tmax := float32(0), float32(math.MaxFloat32)
	for i := range 3 {
		o, d := r.Origin[i], r.Dir[i]
		if d == 0 {
			if o < lo[i] || o > hi[i] {
				return 0, false
			}
			continue
		}
		t1, t2 := (lo[i]-o)/d, (hi[i]-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// Cell is an integer grid coordinate.
type Cell [3]int

func cellOf(p mgl32.Vec3) Cell {
	return Cell{
		int(math.Floor(float64(p[0]))),
		int(math.Floor(float64(p[1]))),
		int(math.Floor(float64(p[2]))),
	}
}
