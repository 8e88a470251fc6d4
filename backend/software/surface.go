package software

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/voxel/gpucore"
)

// Surface is the software gpucore.Surface. Frames are plain textures
// created on the configured device.
type Surface struct {
	backend *Backend
	window  gpucore.WindowHandle

	mu         sync.Mutex
	device     *Device
	config     gpucore.SurfaceConfig
	configured bool
	configs    []gpucore.SurfaceConfig
	current    gpucore.TextureID
	failures   []error
	presentErr []error
	suboptimal bool
	destroyed  bool
}

// Configure applies cfg. The format must be one the adapter reports.
func (s *Surface) Configure(d gpucore.Device, cfg gpucore.SurfaceConfig) error {
	dev, ok := d.(*Device)
	if !ok {
		return errors.New("software: foreign device")
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: surface size %dx%d", gpucore.ErrInvalidDescriptor, cfg.Width, cfg.Height)
	}
	if !slices.Contains(s.backend.formats, cfg.Format) {
		return fmt.Errorf("%w: surface format %s", gpucore.ErrInvalidDescriptor, cfg.Format)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != gpucore.InvalidID {
		return errors.New("software: configure with an acquired frame outstanding")
	}
	s.device = dev
	s.config = cfg
	s.configured = true
	s.configs = append(s.configs, cfg)
	return nil
}

// Acquire creates a frame texture matching the configuration.
func (s *Surface) Acquire() (gpucore.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured || s.destroyed {
		return gpucore.Frame{}, gpucore.ErrNotConfigured
	}
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return gpucore.Frame{}, err
	}
	if s.current != gpucore.InvalidID {
		return gpucore.Frame{}, errors.New("software: frame already acquired")
	}
	s.current = s.device.addTexture(&texture{
		desc: gpucore.TextureDesc{
			Label:  "surface frame",
			Width:  s.config.Width,
			Height: s.config.Height,
			Format: s.config.Format,
			Usage:  gpucore.TextureUsageRenderAttachment,
		},
		frame: true,
	})
	return gpucore.Frame{
		Texture:    s.current,
		Width:      s.config.Width,
		Height:     s.config.Height,
		Suboptimal: s.suboptimal,
	}, nil
}

// Discard releases an acquired frame.
func (s *Surface) Discard(f gpucore.Frame) {
	_ = s.release(f)
}

func (s *Surface) release(f gpucore.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == gpucore.InvalidID || f.Texture != s.current {
		return fmt.Errorf("%w: frame %d was not acquired from this surface", gpucore.ErrUnknownResource, f.Texture)
	}
	s.device.DestroyTexture(s.current)
	s.current = gpucore.InvalidID
	return nil
}

// Destroy releases the surface and any outstanding frame.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	if s.current != gpucore.InvalidID {
		s.device.DestroyTexture(s.current)
		s.current = gpucore.InvalidID
	}
	s.destroyed = true
	s.configured = false
	s.backend.live.Add(-1)
}

// FailAcquire makes the next n Acquire calls return err.
func (s *Surface) FailAcquire(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, err)
	}
}

// FailPresent makes the next n presents drop their frame and return err.
func (s *Surface) FailPresent(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.presentErr = append(s.presentErr, err)
	}
}

func (s *Surface) takePresentFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.presentErr) == 0 {
		return nil
	}
	err := s.presentErr[0]
	s.presentErr = s.presentErr[1:]
	return err
}

// SetSuboptimal marks subsequently acquired frames as suboptimal.
func (s *Surface) SetSuboptimal(v bool) {
	s.mu.Lock()
	s.suboptimal = v
	s.mu.Unlock()
}

// Configs returns every configuration applied so far, oldest first.
func (s *Surface) Configs() []gpucore.SurfaceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gpucore.SurfaceConfig(nil), s.configs...)
}

// Window returns the handle the surface was created for.
func (s *Surface) Window() gpucore.WindowHandle { return s.window }

// Destroyed reports whether Destroy was called.
func (s *Surface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
