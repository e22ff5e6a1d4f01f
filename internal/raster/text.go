package raster

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

func loadFonts() {
	regularFont, fontsErr = opentype.Parse(goregular.TTF)
	if fontsErr != nil {
		return
	}
	boldFont, fontsErr = opentype.Parse(gobold.TTF)
}

// Face returns a Go font face at size points (72 dpi, so points are pixels).
func Face(size float64, bold bool) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fmt.Errorf("parse bundled font: %w", fontsErr)
	}
	f := regularFont
	if bold {
		f = boldFont
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// TextWidth is the advance width of s in pixels.
func TextWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// DrawText draws s with its baseline starting at (x, y).
func DrawText(dst *image.RGBA, face font.Face, s string, x, y int, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
