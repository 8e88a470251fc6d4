//go:build !js

package glfwhost

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gpucontext"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		in   glfw.Key
		want gpucontext.Key
		ok   bool
	}{
		{glfw.KeyW, gpucontext.KeyW, true},
		{glfw.KeyLeftShift, gpucontext.KeyLeftShift, true},
		{glfw.KeyDelete, gpucontext.KeyDelete, true},
		{glfw.KeyF5, 0, false},
	}
	for _, tt := range tests {
		got, ok := translateKey(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("translateKey(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTranslateKeyDistinct(t *testing.T) {
	seen := make(map[gpucontext.Key]glfw.Key)
	for from, to := range keys {
		if prev, dup := seen[to]; dup {
			t.Errorf("glfw keys %v and %v both map to %v", prev, from, to)
		}
		seen[to] = from
	}
}

func TestTranslateMods(t *testing.T) {
	if got := translateMods(0); got != 0 {
		t.Errorf("no modifiers = %v", got)
	}
	got := translateMods(glfw.ModShift | glfw.ModControl)
	if got&gpucontext.ModShift == 0 || got&gpucontext.ModControl == 0 || got&gpucontext.ModAlt != 0 {
		t.Errorf("shift+control = %v", got)
	}
}
