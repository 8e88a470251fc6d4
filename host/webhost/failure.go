package webhost

import (
	"errors"

	"github.com/gogpu/voxel"
)

// failureText is the message shown in place of the canvas when the loop
// fails. The first line is a summary, the second the error itself.
func failureText(err error) string {
	if err == nil {
		err = errors.New("unknown error")
	}
	var summary string
	switch {
	case errors.Is(err, voxel.ErrDeviceUnavailable):
		summary = "WebGPU is not available in this browser."
	case errors.Is(err, voxel.ErrUnsupportedSurfaceFormat):
		summary = "The canvas cannot be rendered to with WebGPU."
	case errors.Is(err, voxel.ErrAssetLoad):
		summary = "An asset could not be loaded."
	case errors.Is(err, voxel.ErrShaderCompile):
		summary = "A shader failed to compile."
	default:
		summary = "The renderer failed to start."
	}
	return summary + "\n" + err.Error()
}
