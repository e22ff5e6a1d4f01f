// Package raster holds the drawing primitives shared by image generation and
// frame assembly: gradient canvases, aspect-preserving letterboxing, blended
// bands and text rendered with the bundled Go fonts.
package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"siksha/internal/fileutil"
)

// Gradient fills a w x h canvas row by row with shade(y).
func Gradient(w, h int, shade func(y int) color.RGBA) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := shade(y)
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, 0xff
		}
	}
	return canvas
}

// LetterboxShade is the grey backdrop behind letterboxed rasters, fading
// from 240 at the top by up to 20 levels.
func LetterboxShade(h int) func(int) color.RGBA {
	return func(y int) color.RGBA {
		v := uint8(240 - float64(y)/float64(h)*20)
		return color.RGBA{v, v, v, 0xff}
	}
}

// Letterbox scales src to fit w x h without distortion and centers it on
// the letterbox gradient.
func Letterbox(src image.Image, w, h int) *image.RGBA {
	canvas := Gradient(w, h, LetterboxShade(h))
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return canvas
	}
	scale := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	nw := max(int(float64(b.Dx())*scale), 1)
	nh := max(int(float64(b.Dy())*scale), 1)
	x0 := (w - nw) / 2
	y0 := (h - nh) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+nw, y0+nh), src, b, draw.Src, nil)
	return canvas
}

// Outline strokes r with the given thickness, growing inward.
func Outline(dst *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	u := image.NewUniform(c)
	for i := 0; i < thickness; i++ {
		inner := r.Inset(i)
		if inner.Empty() {
			return
		}
		draw.Draw(dst, image.Rect(inner.Min.X, inner.Min.Y, inner.Max.X, inner.Min.Y+1), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(inner.Min.X, inner.Max.Y-1, inner.Max.X, inner.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(inner.Min.X, inner.Min.Y, inner.Min.X+1, inner.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(inner.Max.X-1, inner.Min.Y, inner.Max.X, inner.Max.Y), u, image.Point{}, draw.Src)
	}
}

// Blend mixes c over r at the given opacity: out = c*alpha + in*(1-alpha).
func Blend(dst *image.RGBA, r image.Rectangle, c color.RGBA, alpha float64) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() || alpha <= 0 {
		return
	}
	alpha = min(alpha, 1)
	keep := 1 - alpha
	cr, cg, cb := float64(c.R)*alpha, float64(c.G)*alpha, float64(c.B)*alpha
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			p := dst.Pix[i : i+4 : i+4]
			p[0] = uint8(cr + float64(p[0])*keep)
			p[1] = uint8(cg + float64(p[1])*keep)
			p[2] = uint8(cb + float64(p[2])*keep)
			i += 4
		}
	}
}

// Clone copies src into a new RGBA image.
func Clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// WritePNG atomically encodes img to path.
func WritePNG(path string, img image.Image) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}
