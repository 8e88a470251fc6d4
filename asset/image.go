// Package asset loads and decodes textures.
//
// Images are decoded from PNG, JPEG, GIF, BMP or WebP, converted to
// tightly packed 8-bit RGBA and optionally downscaled to fit the device's
// texture limit. Loading goes through a Loader: local files on native
// hosts, HTTP fetch in the browser.
package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Image is a decoded texture: Width*Height texels of RGBA, 4 bytes each,
// rows top to bottom with no padding.
type Image struct {
	Name   string
	Width  int
	Height int
	Pix    []byte
}

// Decode decodes an encoded image and converts it to RGBA.
func Decode(name string, data []byte) (*Image, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	img := FromImage(name, src)
	slogger().Debug("asset: decoded", "name", name, "format", format, "width", img.Width, "height", img.Height)
	return img, nil
}

// FromImage converts any image.Image to an RGBA Image.
func FromImage(name string, src image.Image) *Image {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	return &Image{Name: name, Width: b.Dx(), Height: b.Dy(), Pix: rgba.Pix}
}

// RGBA returns the image as an *image.RGBA sharing its pixels.
func (img *Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// Fit returns img scaled down, keeping its aspect ratio, so that neither
// side exceeds maxDim. Images that already fit are returned as is.
func (img *Image) Fit(maxDim int) *Image {
	if maxDim <= 0 || (img.Width <= maxDim && img.Height <= maxDim) {
		return img
	}
	w, h := img.Width, img.Height
	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img.RGBA(), image.Rect(0, 0, img.Width, img.Height), xdraw.Src, nil)
	slogger().Debug("asset: downscaled", "name", img.Name, "from", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"to", fmt.Sprintf("%dx%d", w, h))
	return &Image{Name: img.Name, Width: w, Height: h, Pix: dst.Pix}
}

// Checker generates a size x size checkerboard with cells of cell pixels.
// It is the texture used when none is configured.
func Checker(size, cell int, a, b color.RGBA) *Image {
	size = max(size, 1)
	cell = max(cell, 1)
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			i := (y*size + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return &Image{Name: "checker", Width: size, Height: size, Pix: pix}
}
