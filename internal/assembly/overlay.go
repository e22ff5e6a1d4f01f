package assembly

import (
	"image"
	"image/color"

	"golang.org/x/image/font"

	"siksha/internal/raster"
	"siksha/internal/textutil"
)

const (
	captionFontSize   = 28
	captionBaseline   = 30
	shadowOffset      = 3
	captionBandMargin = 10
	captionBandAlpha  = 0.85
)

var (
	bandColor   = color.RGBA{20, 20, 20, 0xff}
	textColor   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	shadowColor = color.RGBA{0, 0, 0, 0xff}
)

// Overlay draws captions onto frames.
type Overlay struct {
	Wrap       int
	LineHeight int
	Padding    int
	face       font.Face
}

// NewOverlay loads the caption face.
func NewOverlay(wrap, lineHeight, padding int) (*Overlay, error) {
	face, err := raster.Face(captionFontSize, true)
	if err != nil {
		return nil, err
	}
	return &Overlay{Wrap: wrap, LineHeight: lineHeight, Padding: padding, face: face}, nil
}

// Band returns the rectangle the caption background covers for n lines on
// a frame of the given bounds.
func (o *Overlay) Band(bounds image.Rectangle, n int) image.Rectangle {
	total := n*o.LineHeight + 2*o.Padding
	top := max(0, bounds.Dy()-total-captionBandMargin)
	return image.Rect(bounds.Min.X, bounds.Min.Y+top, bounds.Max.X, bounds.Max.Y-captionBandMargin)
}

// Compose returns a copy of base with caption drawn on it. An empty caption
// returns base itself.
func (o *Overlay) Compose(base *image.RGBA, caption string) *image.RGBA {
	lines := textutil.Wrap(caption, o.Wrap)
	if len(lines) == 0 {
		return base
	}
	frame := raster.Clone(base)
	band := o.Band(frame.Bounds(), len(lines))
	raster.Blend(frame, band, bandColor, captionBandAlpha)

	width := frame.Bounds().Dx()
	for i, line := range lines {
		x := (width - raster.TextWidth(o.face, line)) / 2
		y := band.Min.Y + o.Padding + captionBaseline + i*o.LineHeight
		raster.DrawText(frame, o.face, line, x+shadowOffset, y+shadowOffset, shadowColor)
		raster.DrawText(frame, o.face, line, x, y, textColor)
	}
	return frame
}
