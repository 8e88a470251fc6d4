package gpucore

import (
	"errors"
	"fmt"

	"github.com/gogpu/voxel"
)

// Errors shared by backend implementations.
var (
	// ErrSurfaceLost is returned by Surface.Acquire when the surface must
	// be reconfigured. It matches voxel.ErrRecoverableSurface.
	ErrSurfaceLost = fmt.Errorf("gpucore: surface lost: %w", voxel.ErrRecoverableSurface)

	// ErrSurfaceOutdated is returned by Surface.Acquire when the surface
	// no longer matches the window size. It matches voxel.ErrRecoverableSurface.
	ErrSurfaceOutdated = fmt.Errorf("gpucore: surface outdated: %w", voxel.ErrRecoverableSurface)

	// ErrNotConfigured is returned when acquiring from an unconfigured surface.
	ErrNotConfigured = errors.New("gpucore: surface not configured")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrInvalidDescriptor is returned for descriptors that fail validation.
	ErrInvalidDescriptor = errors.New("gpucore: invalid descriptor")

	// ErrEncoderFinished is returned when an encoder is used after Finish.
	ErrEncoderFinished = errors.New("gpucore: command encoder already finished")
)
