package asset

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/gogpu/voxel"
)

func encode(t *testing.T, w, h int, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := enc(&buf, src); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pngEnc(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }
func bmpEnc(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		enc  func(*bytes.Buffer, image.Image) error
	}{
		{"png", pngEnc},
		{"bmp", bmpEnc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.name, encode(t, 3, 2, tt.enc))
			if err != nil {
				t.Fatal(err)
			}
			if img.Width != 3 || img.Height != 2 || len(img.Pix) != 3*2*4 {
				t.Fatalf("decoded %dx%d with %d bytes", img.Width, img.Height, len(img.Pix))
			}
			// texel (2,1)
			i := (1*3 + 2) * 4
			if got := img.Pix[i : i+4]; !bytes.Equal(got, []byte{2, 1, 7, 255}) {
				t.Errorf("texel (2,1) = %v", got)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("junk", []byte("not an image")); err == nil {
		t.Error("Decode should fail on garbage")
	}
}

func TestFit(t *testing.T) {
	img := Checker(64, 8, color.RGBA{A: 255}, color.RGBA{R: 255, A: 255})
	if got := img.Fit(128); got != img {
		t.Error("Fit should return small images unchanged")
	}
	small := img.Fit(16)
	if small.Width != 16 || small.Height != 16 || len(small.Pix) != 16*16*4 {
		t.Errorf("Fit(16) = %dx%d", small.Width, small.Height)
	}

	wide := &Image{Width: 100, Height: 20, Pix: make([]byte, 100*20*4)}
	if got := wide.Fit(50); got.Width != 50 || got.Height != 10 {
		t.Errorf("wide Fit(50) = %dx%d", got.Width, got.Height)
	}
}

func TestChecker(t *testing.T) {
	a := color.RGBA{R: 1, A: 255}
	b := color.RGBA{G: 1, A: 255}
	img := Checker(4, 2, a, b)
	at := func(x, y int) color.RGBA {
		i := (y*4 + x) * 4
		return color.RGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
	}
	if at(0, 0) != a || at(2, 0) != b || at(2, 2) != a || at(1, 3) != b {
		t.Error("checker cells are not alternating")
	}
}

func TestLoadAllFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.bmp"} {
		enc := pngEnc
		if filepath.Ext(name) == ".bmp" {
			enc = bmpEnc
		}
		if err := os.WriteFile(filepath.Join(dir, name), encode(t, 4, 4, enc), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	l := &FileLoader{Base: dir}

	images, err := LoadAll(context.Background(), l, []string{"b.bmp", "a.png"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 || images[0].Name != "b.bmp" || images[1].Name != "a.png" {
		t.Errorf("LoadAll order = %v, %v", images[0].Name, images[1].Name)
	}

	_, err = LoadAll(context.Background(), l, []string{"a.png", "missing.png"}, 0)
	var loadErr *voxel.AssetLoadError
	if !errors.As(err, &loadErr) || loadErr.Name != "missing.png" {
		t.Fatalf("LoadAll with missing file = %v", err)
	}
	if !errors.Is(err, voxel.ErrAssetLoad) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error chain = %v", err)
	}
}

func TestFileLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&FileLoader{}).Load(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load with cancelled ctx = %v", err)
	}
}

func TestHTTPLoader(t *testing.T) {
	body := encode(t, 2, 2, pngEnc)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/tex.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	l := &HTTPLoader{Base: srv.URL + "/assets", Client: srv.Client()}
	img, err := LoadImage(context.Background(), l, "tex.png", 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Errorf("fetched %dx%d", img.Width, img.Height)
	}
	if _, err := LoadImage(context.Background(), l, "nope.png", 0); !errors.Is(err, voxel.ErrAssetLoad) {
		t.Errorf("404 = %v, want ErrAssetLoad", err)
	}
}

func TestDefaultLoader(t *testing.T) {
	if _, ok := DefaultLoader("assets").(*FileLoader); !ok {
		t.Error("local base should give a FileLoader")
	}
	if _, ok := DefaultLoader("https://example.com/a").(*HTTPLoader); !ok {
		t.Error("URL base should give an HTTPLoader")
	}
}
