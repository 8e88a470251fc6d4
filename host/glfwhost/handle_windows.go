//go:build windows

package glfwhost

import (
	"syscall"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/voxel/gpucore"
)

var getModuleHandle = syscall.NewLazyDLL("kernel32.dll").NewProc("GetModuleHandleW")

func windowHandle(w *glfw.Window) (gpucore.WindowHandle, error) {
	instance, _, _ := getModuleHandle.Call(0)
	return gpucore.WindowHandle{
		Display: instance,
		Window:  uintptr(unsafe.Pointer(w.GetWin32Window())),
	}, nil
}
