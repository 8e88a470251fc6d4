package camera

import "github.com/gogpu/gpucontext"

// Controller moves a Camera from keyboard and scroll input.
//
// Forward and backward move the eye along the view direction; forward
// stops short of the target. Left and right orbit the eye around the
// target at constant distance. Up and down raise and lower the eye.
//
// With AutoOrbit set the camera keeps orbiting right until a movement key
// is pressed.
type Controller struct {
	Speed    float32
	ZoomStep float32

	AutoOrbit bool

	forward, backward bool
	left, right       bool
	up, down          bool
	scroll            float32
}

// NewController returns a controller with auto orbit enabled.
func NewController(speed, zoomStep float32) *Controller {
	return &Controller{Speed: speed, ZoomStep: zoomStep, AutoOrbit: true}
}

// ProcessKey records a key press or release. It reports whether the key
// is one the controller handles.
func (c *Controller) ProcessKey(key gpucontext.Key, pressed bool) bool {
	switch key {
	case gpucontext.KeySpace:
		c.up = pressed
	case gpucontext.KeyLeftShift:
		c.down = pressed
	case gpucontext.KeyW, gpucontext.KeyUp:
		c.forward = pressed
	case gpucontext.KeyA, gpucontext.KeyLeft:
		c.left = pressed
	case gpucontext.KeyS, gpucontext.KeyDown:
		c.backward = pressed
	case gpucontext.KeyD, gpucontext.KeyRight:
		c.right = pressed
	default:
		return false
	}
	if pressed {
		c.AutoOrbit = false
	}
	return true
}

// ProcessScroll accumulates a wheel delta; positive values zoom in.
func (c *Controller) ProcessScroll(dy float32) {
	c.scroll += dy
}

// Update applies the pending input to cam.
func (c *Controller) Update(cam *Camera) {
	forward := cam.Target.Sub(cam.Eye)
	dir := forward.Normalize()
	mag := forward.Len()

	if c.scroll != 0 {
		step := c.scroll * c.ZoomStep
		// never zoom through the target
		if step < mag-c.Speed {
			cam.Eye = cam.Eye.Add(dir.Mul(step))
		}
		c.scroll = 0
	}
	if c.forward && mag > c.Speed {
		cam.Eye = cam.Eye.Add(dir.Mul(c.Speed))
	}
	if c.backward {
		cam.Eye = cam.Eye.Sub(dir.Mul(c.Speed))
	}

	right := dir.Cross(cam.Up)
	forward = cam.Target.Sub(cam.Eye)
	mag = forward.Len()
	if c.right || c.AutoOrbit {
		cam.Eye = cam.Target.Sub(forward.Add(right.Mul(c.Speed)).Normalize().Mul(mag))
	}
	if c.left {
		cam.Eye = cam.Target.Sub(forward.Sub(right.Mul(c.Speed)).Normalize().Mul(mag))
	}

	if c.up {
		cam.Eye = cam.Eye.Add(cam.Up.Mul(c.Speed))
	}
	if c.down {
		cam.Eye = cam.Eye.Sub(cam.Up.Mul(c.Speed))
	}
}
