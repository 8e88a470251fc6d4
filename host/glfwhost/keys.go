//go:build !js

package glfwhost

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gpucontext"
)

var keys = map[glfw.Key]gpucontext.Key{
	glfw.KeyW:         gpucontext.KeyW,
	glfw.KeyA:         gpucontext.KeyA,
	glfw.KeyS:         gpucontext.KeyS,
	glfw.KeyD:         gpucontext.KeyD,
	glfw.KeyUp:        gpucontext.KeyUp,
	glfw.KeyDown:      gpucontext.KeyDown,
	glfw.KeyLeft:      gpucontext.KeyLeft,
	glfw.KeyRight:     gpucontext.KeyRight,
	glfw.KeySpace:     gpucontext.KeySpace,
	glfw.KeyLeftShift: gpucontext.KeyLeftShift,
	glfw.KeyDelete:    gpucontext.KeyDelete,
	glfw.KeyInsert:    gpucontext.KeyInsert,
	glfw.KeyEscape:    gpucontext.KeyEscape,
}

func translateKey(k glfw.Key) (gpucontext.Key, bool) {
	key, ok := keys[k]
	return key, ok
}

func translateMods(m glfw.ModifierKey) gpucontext.Modifiers {
	var out gpucontext.Modifiers
	if m&glfw.ModShift != 0 {
		out |= gpucontext.ModShift
	}
	if m&glfw.ModControl != 0 {
		out |= gpucontext.ModControl
	}
	if m&glfw.ModAlt != 0 {
		out |= gpucontext.ModAlt
	}
	if m&glfw.ModSuper != 0 {
		out |= gpucontext.ModSuper
	}
	return out
}
