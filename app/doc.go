// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package app drives the render-state lifecycle from a host.
//
// A Loop moves through the states
//
//	Uninitialized -> Initializing -> Running -> ShuttingDown -> Stopped
//
// with Failed reached from Initializing when the init task returns a fatal
// error. The init task builds a Renderer (GPU context, surface, resource
// store, pipelines and frame executor) and then lets the Game create its
// resources. It runs on its own goroutine on every host: native hosts may
// block in Wait, the browser host polls from requestAnimationFrame.
//
// Hosts translate window or DOM input into Events and call Dispatch, and
// call Tick once per displayed frame. Dispatch, Tick and Close must be
// called from the same goroutine.
//
//	loop := app.NewLoop(app.NewInit(rcfg), game)
//	if err := loop.Start(ctx); err != nil { ... }
//	for !window.ShouldClose() {
//		for _, ev := range pollEvents() {
//			_ = loop.Dispatch(ev)
//		}
//		_ = loop.Tick(time.Now())
//	}
//	loop.Close()
package app
