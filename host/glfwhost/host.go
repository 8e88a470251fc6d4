//go:build !js

// Package glfwhost runs an app.Loop in a native GLFW window.
//
// GLFW must be driven from the main OS thread: call New and Run from
// main after runtime.LockOSThread.
package glfwhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/gpucore"
)

func slogger() *slog.Logger { return voxel.Logger() }

// ErrNoWindowHandle is returned on platforms whose window handles the
// native backend cannot present to.
var ErrNoWindowHandle = errors.New("glfwhost: no native window handle on this platform")

// titleInterval is how often Run refreshes the window title.
const titleInterval = time.Second

// Host owns the GLFW window and forwards its input to a loop.
type Host struct {
	win    *glfw.Window
	title  string
	reveal reveal

	cursorX, cursorY float64
}

// New initializes GLFW and creates a hidden window without a client API,
// so the GPU backend can create its own surface. Run shows the window once
// the loop is running; a loop that fails to initialize never shows it.
func New(cfg voxel.WindowConfig) (*Host, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfwhost: init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)
	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glfwhost: create window: %w", err)
	}
	return &Host{win: win, title: cfg.Title, reveal: reveal{show: win.Show}}, nil
}

// Handle returns the platform handles of the window.
func (h *Host) Handle() (gpucore.WindowHandle, error) {
	return windowHandle(h.win)
}

// FramebufferSize returns the drawable size in physical pixels.
func (h *Host) FramebufferSize() gpucore.Extent {
	w, hh := h.win.GetFramebufferSize()
	return gpucore.Extent{Width: uint32(max(w, 0)), Height: uint32(max(hh, 0))} //nolint:gosec // clamped
}

// Run starts loop and pumps window events into it until the window is
// closed, ctx is cancelled or the loop fails. title, if non-nil, is
// appended to the window title once a second while the loop runs. The
// loop is closed before Run returns.
func (h *Host) Run(ctx context.Context, loop *app.Loop, title func() string) error {
	h.install(loop)
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Close()

	var lastTitle time.Time
	for !h.win.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		glfw.PollEvents()

		now := time.Now()
		if err := loop.Tick(now); err != nil {
			return err
		}
		state := loop.State()
		h.reveal.observe(state)
		switch state {
		case app.StateFailed:
			return loop.Err()
		case app.StateStopped:
			return nil
		case app.StateRunning:
			if title != nil && now.Sub(lastTitle) >= titleInterval {
				h.win.SetTitle(h.title + " | " + title())
				lastTitle = now
			}
		default:
			glfw.WaitEventsTimeout(0.01)
		}
	}
	return nil
}

// reveal shows the window the first time the loop is seen running.
type reveal struct {
	shown bool
	show  func()
}

func (r *reveal) observe(s app.State) {
	if r.shown || s != app.StateRunning {
		return
	}
	r.shown = true
	r.show()
}

// install routes GLFW callbacks to loop.
func (h *Host) install(loop *app.Loop) {
	dispatch := func(ev app.Event) {
		if err := loop.Dispatch(ev); err != nil {
			slogger().Warn("glfwhost: event failed", "event", fmt.Sprintf("%T", ev), "err", err)
		}
	}

	h.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		dispatch(app.ResizeEvent{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}) //nolint:gosec // clamped
	})
	h.win.SetCloseCallback(func(*glfw.Window) {
		dispatch(app.CloseEvent{})
	})
	h.win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if action == glfw.Repeat {
			return
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
			dispatch(app.CloseEvent{})
			return
		}
		k, ok := translateKey(key)
		if !ok {
			return
		}
		dispatch(app.KeyEvent{Key: k, Mods: translateMods(mods), Pressed: action == glfw.Press})
	})
	h.win.SetScrollCallback(func(_ *glfw.Window, dx, dy float64) {
		dispatch(app.ScrollEvent{DX: dx, DY: dy})
	})
	h.win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		h.cursorX, h.cursorY = x, y
	})
	h.win.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press {
			return
		}
		x, y := toFramebuffer(w, h.cursorX, h.cursorY)
		dispatch(app.ClickEvent{X: x, Y: y})
	})
}

// toFramebuffer converts cursor coordinates, which are in screen units,
// to framebuffer pixels.
func toFramebuffer(w *glfw.Window, x, y float64) (float64, float64) {
	ww, wh := w.GetSize()
	fw, fh := w.GetFramebufferSize()
	if ww == 0 || wh == 0 {
		return x, y
	}
	return x * float64(fw) / float64(ww), y * float64(fh) / float64(wh)
}

// Destroy closes the window and terminates GLFW.
func (h *Host) Destroy() {
	h.win.Destroy()
	glfw.Terminate()
}
