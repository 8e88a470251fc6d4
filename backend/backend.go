package backend

import (
	"errors"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the in-memory backend.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendNative = "native"
	// BackendWeb is the name of the browser WebGPU backend.
	BackendWeb = "web"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)
