package webhost

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/voxel"
)

func TestTranslateKey(t *testing.T) {
	if k, ok := translateKey("ArrowLeft"); !ok || k != gpucontext.KeyLeft {
		t.Errorf("ArrowLeft = %v, %v", k, ok)
	}
	if _, ok := translateKey("F5"); ok {
		t.Error("F5 translated")
	}
}

func TestWheelLines(t *testing.T) {
	tests := []struct {
		name   string
		dy     float64
		mode   int
		wantDY float64
	}{
		{"pixels down", 100, deltaPixel, -1},
		{"pixels up", -250, deltaPixel, 2.5},
		{"lines", 3, deltaLine, -3},
		{"page", 1, deltaPage, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, dy := wheelLines(0, tt.dy, tt.mode); dy != tt.wantDY {
				t.Errorf("dy = %v, want %v", dy, tt.wantDY)
			}
		})
	}
}

func TestFailureText(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		summary string
	}{
		{"no webgpu", fmt.Errorf("web: no adapter: %w", voxel.ErrDeviceUnavailable), "WebGPU is not available in this browser."},
		{"asset", &voxel.AssetLoadError{Name: "grass.png", Err: errors.New("404")}, "An asset could not be loaded."},
		{"other", errors.New("boom"), "The renderer failed to start."},
		{"nil", nil, "The renderer failed to start."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.SplitN(failureText(tt.err), "\n", 2)
			if len(lines) != 2 || lines[0] != tt.summary {
				t.Fatalf("failureText = %q", lines)
			}
			if tt.err != nil && lines[1] != tt.err.Error() {
				t.Errorf("detail = %q, want %q", lines[1], tt.err.Error())
			}
		})
	}
}
