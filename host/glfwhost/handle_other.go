//go:build !js && !linux && !windows

package glfwhost

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/voxel/gpucore"
)

func windowHandle(*glfw.Window) (gpucore.WindowHandle, error) {
	return gpucore.WindowHandle{}, ErrNoWindowHandle
}
