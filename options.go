package voxel

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("voxel: invalid config")

// Config holds everything a host needs to start the shell.
// The zero value is not usable; start from DefaultConfig or LoadConfig.
type Config struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	World  WorldConfig  `toml:"world"`
	Camera CameraConfig `toml:"camera"`
}

// WindowConfig describes the native window or browser canvas.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// Canvas is the DOM id of the canvas element (browser host only).
	Canvas string `toml:"canvas"`
}

// RenderConfig selects the GPU backend and surface behavior.
type RenderConfig struct {
	// Backend names a registered backend. Empty selects by priority.
	Backend string `toml:"backend"`
	// PresentMode is one of "fifo", "mailbox" or "immediate".
	PresentMode    string     `toml:"present_mode"`
	ClearColor     [4]float64 `toml:"clear_color"`
	MaxTextureSize int        `toml:"max_texture_size"`
}

// WorldConfig describes the generated voxel field.
type WorldConfig struct {
	// Mesh is "primitive" (vertex colors) or "textured".
	Mesh string `toml:"mesh"`
	// Texture is a file path (native) or URL (browser). Empty uses a
	// generated checker texture.
	Texture string `toml:"texture"`
	// Textures, when set, replaces Texture: the chunks cycle through
	// them in order.
	Textures []string `toml:"textures,omitempty"`
	// AssetBase is prepended to relative asset names.
	AssetBase string `toml:"asset_base"`
	// Chunks is the number of chunks along each axis.
	Chunks    int `toml:"chunks"`
	ChunkSize int `toml:"chunk_size"`
	// Layout is "square" or "circle".
	Layout       string  `toml:"layout"`
	BobAmplitude float64 `toml:"bob_amplitude"`
}

// CameraConfig holds the projection and controller settings.
type CameraConfig struct {
	Speed     float64    `toml:"speed"`
	FovY      float64    `toml:"fovy"`
	ZNear     float64    `toml:"znear"`
	ZFar      float64    `toml:"zfar"`
	Eye       [3]float64 `toml:"eye"`
	Target    [3]float64 `toml:"target"`
	ZoomStep  float64    `toml:"zoom_step"`
	TweenSecs float64    `toml:"tween_seconds"`
	// AspectLimit disables camera tweens on narrow (portrait) viewports.
	AspectLimit float64 `toml:"aspect_limit"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  "voxel",
			Width:  1280,
			Height: 720,
			Canvas: "voxel-canvas",
		},
		Render: RenderConfig{
			PresentMode:    "fifo",
			ClearColor:     [4]float64{0.1, 0.2, 0.3, 1.0},
			MaxTextureSize: 2048,
		},
		World: WorldConfig{
			Mesh:         "primitive",
			Chunks:       2,
			ChunkSize:    16,
			Layout:       "square",
			BobAmplitude: 0.5,
		},
		Camera: CameraConfig{
			Speed:       0.2,
			FovY:        25,
			ZNear:       0.1,
			ZFar:        400,
			Eye:         [3]float64{-120, 90, -120},
			Target:      [3]float64{20, 25, 20},
			ZoomStep:    4,
			TweenSecs:   1.5,
			AspectLimit: 0.8,
		},
	}
}

// Option configures a Config.
//
// Example:
//
//	cfg := voxel.NewConfig(voxel.WithSize(800, 600), voxel.WithBackend("software"))
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return cfg
}

// Apply applies opts to c in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(c *Config) { c.Window.Title = title }
}

// WithSize sets the initial window size in physical pixels.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Window.Width = width
		c.Window.Height = height
	}
}

// WithBackend forces a registered backend by name.
func WithBackend(name string) Option {
	return func(c *Config) { c.Render.Backend = name }
}

// WithPresentMode sets the surface present mode.
func WithPresentMode(mode string) Option {
	return func(c *Config) { c.Render.PresentMode = mode }
}

// WithTexture selects the textured cube mesh with the given texture.
func WithTexture(name string) Option {
	return func(c *Config) {
		c.World.Mesh = "textured"
		c.World.Texture = name
	}
}

// WithChunks sets the chunk grid dimensions.
func WithChunks(chunks, chunkSize int) Option {
	return func(c *Config) {
		c.World.Chunks = chunks
		c.World.ChunkSize = chunkSize
	}
}

// ParseConfig decodes TOML on top of DefaultConfig. Unknown keys are errors.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("voxel: read config: %w", err)
	}
	return ParseConfig(data)
}

// Marshal encodes the config as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Window.Width < 0 || c.Window.Height < 0:
		return fmt.Errorf("%w: negative window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.World.Chunks <= 0 || c.World.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk grid must be positive", ErrInvalidConfig)
	case c.Camera.ZNear <= 0 || c.Camera.ZFar <= c.Camera.ZNear:
		return fmt.Errorf("%w: need 0 < znear < zfar", ErrInvalidConfig)
	case c.Camera.FovY <= 0 || c.Camera.FovY >= 180:
		return fmt.Errorf("%w: fovy %v out of range", ErrInvalidConfig, c.Camera.FovY)
	case c.Render.MaxTextureSize <= 0:
		return fmt.Errorf("%w: max_texture_size must be positive", ErrInvalidConfig)
	}
	switch c.Render.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("%w: present_mode %q", ErrInvalidConfig, c.Render.PresentMode)
	}
	switch c.World.Mesh {
	case "primitive", "textured":
	default:
		return fmt.Errorf("%w: mesh %q", ErrInvalidConfig, c.World.Mesh)
	}
	switch c.World.Layout {
	case "square", "circle":
	default:
		return fmt.Errorf("%w: layout %q", ErrInvalidConfig, c.World.Layout)
	}
	return nil
}
