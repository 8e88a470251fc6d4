package camera

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Animator tweens the camera eye and target to a new viewpoint with an
// ease-out-cubic curve.
//
// Animation is suspended while the camera aspect ratio is below
// AspectLimit, so narrow portrait viewports keep the current view.
type Animator struct {
	Duration    float32
	AspectLimit float32

	tweens    [6]*gween.Tween
	animating bool
}

// NewAnimator returns an idle animator.
func NewAnimator(duration, aspectLimit float32) *Animator {
	return &Animator{Duration: duration, AspectLimit: aspectLimit}
}

// Animating reports whether a tween is in progress.
func (a *Animator) Animating() bool { return a.animating }

// Start begins a tween from the camera's current eye and target.
// A tween already running is replaced.
func (a *Animator) Start(cam *Camera, eye, target mgl32.Vec3) {
	for i := range 3 {
		a.tweens[i] = gween.New(cam.Eye[i], eye[i], a.Duration, ease.OutCubic)
		a.tweens[3+i] = gween.New(cam.Target[i], target[i], a.Duration, ease.OutCubic)
	}
	a.animating = true
}

// Update advances the tween by dt seconds and writes the result into cam.
// It reports whether cam changed.
func (a *Animator) Update(cam *Camera, dt float32) bool {
	if !a.animating || cam.Aspect < a.AspectLimit {
		return false
	}
	done := true
	for i, tw := range a.tweens {
		v, finished := tw.Update(dt)
		if i < 3 {
			cam.Eye[i] = v
		} else {
			cam.Target[i-3] = v
		}
		done = done && finished
	}
	if done {
		a.animating = false
	}
	return true
}
