package webhost

import "github.com/gogpu/gpucontext"

// keys maps KeyboardEvent.code values.
var keys = map[string]gpucontext.Key{
	"KeyW":       gpucontext.KeyW,
	"KeyA":       gpucontext.KeyA,
	"KeyS":       gpucontext.KeyS,
	"KeyD":       gpucontext.KeyD,
	"ArrowUp":    gpucontext.KeyUp,
	"ArrowDown":  gpucontext.KeyDown,
	"ArrowLeft":  gpucontext.KeyLeft,
	"ArrowRight": gpucontext.KeyRight,
	"Space":      gpucontext.KeySpace,
	"ShiftLeft":  gpucontext.KeyLeftShift,
	"Delete":     gpucontext.KeyDelete,
	"Insert":     gpucontext.KeyInsert,
	"Escape":     gpucontext.KeyEscape,
}

func translateKey(code string) (gpucontext.Key, bool) {
	k, ok := keys[code]
	return k, ok
}

// Wheel delta modes of WheelEvent.deltaMode.
const (
	deltaPixel = 0
	deltaLine  = 1
	deltaPage  = 2
)

// pixelsPerLine converts pixel wheel deltas to notches.
const pixelsPerLine = 100

// wheelLines converts a wheel delta to notches, positive DY meaning away
// from the user, the same as GLFW scroll offsets.
func wheelLines(dx, dy float64, mode int) (float64, float64) {
	switch mode {
	case deltaPixel:
		dx, dy = dx/pixelsPerLine, dy/pixelsPerLine
	case deltaPage:
		dx, dy = dx*3, dy*3
	}
	return -dx, -dy
}
