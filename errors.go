package voxel

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every lifecycle component.
//
// Fatal kinds abort the lifecycle transition that produced them and are
// reported to the host. ErrRecoverableSurface is contained inside a single
// frame tick.
var (
	// ErrDeviceUnavailable is returned when no adapter satisfies the
	// required features and limits, or the device request fails.
	ErrDeviceUnavailable = errors.New("voxel: GPU device unavailable")

	// ErrUnsupportedSurfaceFormat is returned when the adapter cannot
	// present to the window or canvas surface.
	ErrUnsupportedSurfaceFormat = errors.New("voxel: unsupported surface format")

	// ErrUnsupportedVertexLayout is returned when a pipeline is built with
	// a vertex layout the device cannot consume.
	ErrUnsupportedVertexLayout = errors.New("voxel: unsupported vertex layout")

	// ErrRecoverableSurface marks transient surface failures (lost or
	// outdated). The frame executor reconfigures and retries once.
	ErrRecoverableSurface = errors.New("voxel: surface lost or outdated")

	// ErrShaderCompile is matched by every *ShaderCompileError.
	ErrShaderCompile = errors.New("voxel: shader compilation failed")

	// ErrAssetLoad is matched by every *AssetLoadError.
	ErrAssetLoad = errors.New("voxel: asset load failed")

	// ErrContextExists is returned when a second GPU context is created
	// while one is still live.
	ErrContextExists = errors.New("voxel: GPU context already initialized")

	// ErrReleased is returned by operations on released components.
	ErrReleased = errors.New("voxel: component released")
)

// ShaderCompileError reports a shader that failed to compile.
// Diagnostics holds the compiler output verbatim.
type ShaderCompileError struct {
	Label       string
	Diagnostics string
	Err         error
}

func (e *ShaderCompileError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("voxel: compile shader: %s", e.Diagnostics)
	}
	return fmt.Sprintf("voxel: compile shader %q: %s", e.Label, e.Diagnostics)
}

func (e *ShaderCompileError) Unwrap() error { return e.Err }

// Is reports ErrShaderCompile as a match so callers can use errors.Is.
func (e *ShaderCompileError) Is(target error) bool { return target == ErrShaderCompile }

// AssetLoadError reports an asset that could not be fetched or decoded.
type AssetLoadError struct {
	Name string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("voxel: load asset %q: %v", e.Name, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// Is reports ErrAssetLoad as a match so callers can use errors.Is.
func (e *AssetLoadError) Is(target error) bool { return target == ErrAssetLoad }

// IsFatal reports whether err aborts startup. Everything except
// ErrRecoverableSurface is fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrRecoverableSurface)
}
