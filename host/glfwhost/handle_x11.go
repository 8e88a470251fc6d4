//go:build linux && !wayland

package glfwhost

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/voxel/gpucore"
)

func windowHandle(w *glfw.Window) (gpucore.WindowHandle, error) {
	return gpucore.WindowHandle{
		Display: uintptr(unsafe.Pointer(glfw.GetX11Display())),
		Window:  uintptr(w.GetX11Window()),
	}, nil
}
