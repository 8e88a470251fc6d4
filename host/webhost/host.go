//go:build js && wasm

package webhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall/js"
	"time"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/gpucore"
)

func slogger() *slog.Logger { return voxel.Logger() }

// ErrNoCanvas is returned when the canvas element does not exist.
var ErrNoCanvas = errors.New("webhost: canvas not found")

// Host listens to DOM events of one canvas.
type Host struct {
	id     string
	canvas js.Value

	mu    sync.Mutex
	funcs []js.Func
	stop  func()
}

// New finds the canvas with DOM id.
func New(id string) (*Host, error) {
	canvas := js.Global().Get("document").Call("getElementById", id)
	if canvas.IsNull() || canvas.IsUndefined() {
		return nil, fmt.Errorf("%w: %q", ErrNoCanvas, id)
	}
	canvas.Set("tabIndex", 0)
	return &Host{id: id, canvas: canvas}, nil
}

// Handle returns the canvas handle for the web backend.
func (h *Host) Handle() gpucore.WindowHandle { return gpucore.WindowHandle{Canvas: h.id} }

// Size returns the canvas display size in physical pixels.
func (h *Host) Size() gpucore.Extent {
	dpr := js.Global().Get("devicePixelRatio").Float()
	if dpr <= 0 {
		dpr = 1
	}
	w := h.canvas.Get("clientWidth").Float() * dpr
	hh := h.canvas.Get("clientHeight").Float() * dpr
	return gpucore.Extent{Width: uint32(max(w, 0)), Height: uint32(max(hh, 0))}
}

// Run starts loop, forwards canvas input to it and ticks it every
// animation frame. It returns when ctx is cancelled or the loop stops or
// fails; a failed loop's error replaces the canvas. Run must not be called
// from a JS callback.
func (h *Host) Run(ctx context.Context, loop *app.Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.mu.Lock()
	h.stop = cancel
	h.mu.Unlock()

	h.listen(loop)
	defer h.release()
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Close()

	errc := make(chan error, 1)
	var frame js.Func
	frame = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if ctx.Err() != nil {
			return nil
		}
		if err := loop.Tick(time.Now()); err != nil {
			errc <- err
			return nil
		}
		switch loop.State() {
		case app.StateFailed:
			ShowError(h.id, loop.Err())
			errc <- loop.Err()
			return nil
		case app.StateStopped:
			errc <- nil
			return nil
		}
		js.Global().Call("requestAnimationFrame", frame)
		return nil
	})
	h.keep(frame)
	js.Global().Call("requestAnimationFrame", frame)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Stop makes Run return.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
	}
}

func (h *Host) keep(f js.Func) {
	h.mu.Lock()
	h.funcs = append(h.funcs, f)
	h.mu.Unlock()
}

func (h *Host) on(target js.Value, event string, fn func(js.Value)) {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		fn(args[0])
		return nil
	})
	h.keep(f)
	target.Call("addEventListener", event, f)
}

// listen registers DOM listeners that dispatch into loop.
func (h *Host) listen(loop *app.Loop) {
	dispatch := func(ev app.Event) {
		if err := loop.Dispatch(ev); err != nil {
			slogger().Warn("webhost: event failed", "event", fmt.Sprintf("%T", ev), "err", err)
		}
	}
	resize := func(js.Value) {
		size := h.Size()
		dispatch(app.ResizeEvent{Width: size.Width, Height: size.Height})
	}

	h.on(js.Global(), "resize", resize)
	h.on(h.canvas, "keydown", func(e js.Value) {
		if e.Get("repeat").Bool() {
			return
		}
		if k, ok := translateKey(e.Get("code").String()); ok {
			e.Call("preventDefault")
			dispatch(app.KeyEvent{Key: k, Mods: eventMods(e), Pressed: true})
		}
	})
	h.on(h.canvas, "keyup", func(e js.Value) {
		if k, ok := translateKey(e.Get("code").String()); ok {
			dispatch(app.KeyEvent{Key: k, Mods: eventMods(e), Pressed: false})
		}
	})
	h.on(h.canvas, "wheel", func(e js.Value) {
		e.Call("preventDefault")
		dx, dy := wheelLines(e.Get("deltaX").Float(), e.Get("deltaY").Float(), e.Get("deltaMode").Int())
		dispatch(app.ScrollEvent{DX: dx, DY: dy})
	})
	h.on(h.canvas, "mousedown", func(e js.Value) {
		if e.Get("button").Int() != 0 {
			return
		}
		h.canvas.Call("focus")
		dpr := js.Global().Get("devicePixelRatio").Float()
		if dpr <= 0 {
			dpr = 1
		}
		dispatch(app.ClickEvent{X: e.Get("offsetX").Float() * dpr, Y: e.Get("offsetY").Float() * dpr})
	})

	// The canvas has no size until layout; deliver the first one now.
	resize(js.Undefined())
}

// release removes nothing from the DOM; it frees the Go callbacks so the
// page can be torn down.
func (h *Host) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.funcs {
		f.Release()
	}
	h.funcs = nil
}
