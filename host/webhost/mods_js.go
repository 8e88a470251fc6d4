//go:build js && wasm

package webhost

import (
	"syscall/js"

	"github.com/gogpu/gpucontext"
)

func eventMods(e js.Value) gpucontext.Modifiers {
	var m gpucontext.Modifiers
	if e.Get("shiftKey").Bool() {
		m |= gpucontext.ModShift
	}
	if e.Get("ctrlKey").Bool() {
		m |= gpucontext.ModControl
	}
	if e.Get("altKey").Bool() {
		m |= gpucontext.ModAlt
	}
	if e.Get("metaKey").Bool() {
		m |= gpucontext.ModSuper
	}
	return m
}
