// Package camera holds the perspective camera that looks at the voxel
// field, the keyboard controller that orbits it, and the animator that
// tweens it between viewpoints.
//
// Matrices are right-handed (mgl32 convention) and converted to the
// WebGPU clip space, whose depth range is [0, 1] instead of [-1, 1].
package camera

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/voxel"
)

// openGLToWGPU remaps clip-space depth from [-1, 1] to [0, 1].
var openGLToWGPU = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a perspective camera looking from Eye at Target.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	Aspect float32
	// FovY is the vertical field of view in degrees.
	FovY  float32
	ZNear float32
	ZFar  float32
}

// New creates a camera from cfg for a viewport of width x height pixels.
// A zero height gives an aspect ratio of 1.
func New(cfg voxel.CameraConfig, width, height uint32) *Camera {
	c := &Camera{
		Eye:    vec3(cfg.Eye),
		Target: vec3(cfg.Target),
		Up:     mgl32.Vec3{0, 1, 0},
		Aspect: 1,
		FovY:   float32(cfg.FovY),
		ZNear:  float32(cfg.ZNear),
		ZFar:   float32(cfg.ZFar),
	}
	c.SetViewport(width, height)
	return c
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// SetViewport updates the aspect ratio. Zero sizes are ignored.
func (c *Camera) SetViewport(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

// View returns the world-to-view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

// Projection returns the perspective projection in WebGPU clip space.
func (c *Camera) Projection() mgl32.Mat4 {
	return openGLToWGPU.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect, c.ZNear, c.ZFar))
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// Ray is a half line starting at Origin. Dir is unit length.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

// At returns the point t units along the ray.
func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// ScreenToWorldRay unprojects the pixel (x, y) of a width x height
// viewport into a world-space ray starting on the near plane and pointing
// away from the camera. It reports false when the viewport is empty or
// the view-projection matrix is singular.
func (c *Camera) ScreenToWorldRay(x, y float32, width, height uint32) (Ray, bool) {
	if width == 0 || height == 0 {
		return Ray{}, false
	}
	vp := c.ViewProjection()
	if vp.Det() == 0 {
		return Ray{}, false
	}
	inv := vp.Inv()

	ndcX := x/float32(width)*2 - 1
	ndcY := (1-y/float32(height))*2 - 1
	unproject := func(z float32) mgl32.Vec3 {
		p := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, z, 1})
		return p.Vec3().Mul(1 / p.W())
	}
	near, far := unproject(0), unproject(1)
	dir := far.Sub(near)
	if dir.Len() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: near, Dir: dir.Normalize()}, true
}

// UniformSize is the byte size of Uniform as laid out in the shaders.
const UniformSize = 80

// Uniform is the camera block read by the shaders: the eye position as a
// homogeneous point followed by the view-projection matrix.
type Uniform struct {
	ViewPosition mgl32.Vec4
	ViewProj     mgl32.Mat4
}

// NewUniform returns the identity uniform.
func NewUniform() Uniform {
	return Uniform{ViewProj: mgl32.Ident4()}
}

// Update copies the camera state into u.
func (u *Uniform) Update(c *Camera) {
	u.ViewPosition = c.Eye.Vec4(1)
	u.ViewProj = c.ViewProjection()
}

// Bytes encodes u in little-endian std140 order.
func (u *Uniform) Bytes() []byte {
	out := make([]byte, 0, UniformSize)
	for _, f := range u.ViewPosition {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	for _, f := range u.ViewProj {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}
