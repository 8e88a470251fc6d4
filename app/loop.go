// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/render"
)

func slogger() *slog.Logger { return voxel.Logger() }

// ErrAlreadyStarted is returned by Start on a loop that left the
// Uninitialized state.
var ErrAlreadyStarted = errors.New("app: loop already started")

// InitFunc builds the renderer. On failure or cancellation it must release
// everything it created before returning.
type InitFunc func(ctx context.Context) (*Renderer, error)

// Game is the application driven by a Loop. Init runs on the init
// goroutine after the renderer exists; HandleEvent and Update run on the
// host goroutine, and only while the loop is Running.
type Game interface {
	Init(ctx context.Context, r *Renderer) error
	HandleEvent(ev Event)
	Update(dt time.Duration, frame *render.FrameState) error
}

type initResult struct {
	renderer *Renderer
	err      error
}

// Loop is the application state machine.
type Loop struct {
	init InitFunc
	game Game

	mu       sync.Mutex
	state    State
	err      error
	cancel   context.CancelFunc
	result   chan initResult
	done     chan struct{}
	closed   chan struct{}
	renderer *Renderer
	// latched is the last valid size reported while initializing.
	latched  gpucore.Extent
	last     time.Time
	watchers []func(State)
}

// NewLoop creates a loop in the Uninitialized state. game may be nil.
func NewLoop(init InitFunc, game Game) *Loop {
	return &Loop{
		init:   init,
		game:   game,
		result: make(chan initResult, 1),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the fatal error that moved the loop to Failed.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Renderer returns the renderer while the loop is Running, nil otherwise.
func (l *Loop) Renderer() *Renderer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRunning {
		return nil
	}
	return l.renderer
}

// OnStateChange registers fn to run after every state transition. fn runs
// with no locks held on the goroutine that caused the transition.
func (l *Loop) OnStateChange(fn func(State)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
}

// setStateLocked changes the state and returns the watchers to notify.
func (l *Loop) setStateLocked(s State) []func(State) {
	if l.state == s {
		return nil
	}
	slogger().Info("app: state change", "from", l.state, "to", s)
	l.state = s
	return slices.Clone(l.watchers)
}

func notify(watchers []func(State), s State) {
	for _, fn := range watchers {
		fn(s)
	}
}

// Start launches the init task on its own goroutine and returns
// immediately. Cancelling ctx cancels the task.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateUninitialized {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	w := l.setStateLocked(StateInitializing)
	l.mu.Unlock()
	notify(w, StateInitializing)

	go l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	r, err := l.init(ctx)
	if err == nil && l.game != nil {
		if err = l.game.Init(ctx, r); err != nil {
			r.Release()
			r = nil
		}
	}
	l.result <- initResult{renderer: r, err: err}
}

// Wait blocks until the init task has finished or ctx is done, then
// returns Err.
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.poll()
	return l.Err()
}

// poll moves the loop out of Initializing once the init result is ready.
func (l *Loop) poll() {
	l.mu.Lock()
	if l.state != StateInitializing {
		l.mu.Unlock()
		return
	}
	var res initResult
	select {
	case res = <-l.result:
	default:
		l.mu.Unlock()
		return
	}

	if res.err != nil {
		l.err = res.err
		w := l.setStateLocked(StateFailed)
		l.mu.Unlock()
		slogger().Error("app: initialization failed", "err", res.err)
		notify(w, StateFailed)
		return
	}
	l.renderer = res.renderer
	latched := l.latched
	l.latched = gpucore.Extent{}
	w := l.setStateLocked(StateRunning)
	l.mu.Unlock()
	notify(w, StateRunning)

	if !latched.IsZero() {
		slogger().Debug("app: applying latched resize", "size", latched)
		if err := l.resize(res.renderer, latched); err != nil {
			slogger().Warn("app: latched resize failed", "err", err)
		}
	}
}

func (l *Loop) resize(r *Renderer, size gpucore.Extent) error {
	changed, err := r.Surface.Resize(size)
	if err != nil {
		return fmt.Errorf("app: resize to %s: %w", size, err)
	}
	if changed && l.game != nil {
		l.game.HandleEvent(ResizeEvent{Width: size.Width, Height: size.Height})
	}
	return nil
}

// Dispatch delivers ev.
//
// Resize events with a zero dimension are dropped. Before the loop is
// Running the latest valid size is kept and applied once when it starts
// running; other input is dropped. CloseEvent shuts the loop down.
func (l *Loop) Dispatch(ev Event) error {
	if _, ok := ev.(CloseEvent); ok {
		l.Close()
		return nil
	}
	l.poll()

	l.mu.Lock()
	state, r := l.state, l.renderer
	if e, ok := ev.(ResizeEvent); ok {
		size := gpucore.Extent{Width: e.Width, Height: e.Height}
		if size.IsZero() {
			l.mu.Unlock()
			slogger().Debug("app: zero-size resize ignored", "size", size)
			return nil
		}
		if state == StateUninitialized || state == StateInitializing {
			l.latched = size
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		if state != StateRunning {
			return nil
		}
		return l.resize(r, size)
	}
	l.mu.Unlock()

	if state == StateRunning && l.game != nil {
		l.game.HandleEvent(ev)
	}
	return nil
}

// Tick runs one frame at time now. Outside Running it only checks for a
// finished init task. The first frame after startup sees a zero dt.
func (l *Loop) Tick(now time.Time) error {
	l.poll()

	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return nil
	}
	r := l.renderer
	var dt time.Duration
	if !l.last.IsZero() {
		dt = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	var update func(*render.FrameState) error
	if l.game != nil {
		update = func(fs *render.FrameState) error { return l.game.Update(dt, fs) }
	}
	return r.Frames.Tick(update)
}

// Close shuts the loop down and waits until every GPU object is released.
// An init task still running is cancelled and its partial objects are
// released. A Close racing another one waits for the first to finish.
// Close is a no-op on Stopped and Failed loops.
func (l *Loop) Close() {
	l.mu.Lock()
	switch l.state {
	case StateUninitialized:
		w := l.setStateLocked(StateStopped)
		close(l.closed)
		l.mu.Unlock()
		notify(w, StateStopped)
		return

	case StateShuttingDown:
		l.mu.Unlock()
		<-l.closed
		return

	case StateInitializing:
		w := l.setStateLocked(StateShuttingDown)
		l.cancel()
		l.mu.Unlock()
		notify(w, StateShuttingDown)

		<-l.done
		res := <-l.result
		if res.renderer != nil {
			// init finished before it saw the cancellation
			res.renderer.Release()
		}

	case StateRunning:
		w := l.setStateLocked(StateShuttingDown)
		r := l.renderer
		l.renderer = nil
		l.mu.Unlock()
		notify(w, StateShuttingDown)

		r.Release()
		l.cancel()

	default:
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	w := l.setStateLocked(StateStopped)
	close(l.closed)
	l.mu.Unlock()
	notify(w, StateStopped)
}
