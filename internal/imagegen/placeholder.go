package imagegen

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"siksha/internal/raster"
	"siksha/internal/textutil"
)

// Placeholder renders a titled card for the scene. It needs no network or
// model and only fails if the bundled fonts cannot be parsed.
type Placeholder struct {
	Width  int
	Height int
}

func (p *Placeholder) Name() string { return "placeholder" }

func (p *Placeholder) Attempt(_ context.Context, req Request) (image.Image, error) {
	return RenderPlaceholder(p.Width, p.Height, req)
}

// RenderPlaceholder draws a warm gradient card with a border, the lesson
// title, the scene number and the opening words of the prompt.
func RenderPlaceholder(w, h int, req Request) (*image.RGBA, error) {
	canvas := raster.Gradient(w, h, func(y int) color.RGBA {
		v := uint8(245 - float64(y)/float64(h)*30)
		return color.RGBA{v + 10, v + 5, v, 0xff}
	})
	raster.Outline(canvas, image.Rect(20, 20, w-20, h-20), color.RGBA{200, 200, 200, 0xff}, 3)

	title, err := raster.Face(56, true)
	if err != nil {
		return nil, err
	}
	scene, err := raster.Face(40, false)
	if err != nil {
		return nil, err
	}
	body, err := raster.Face(24, false)
	if err != nil {
		return nil, err
	}

	raster.DrawText(canvas, title, "Learning "+textutil.Title(req.Topic), 50, 100, color.RGBA{50, 50, 50, 0xff})
	raster.DrawText(canvas, scene, fmt.Sprintf("Scene %d", req.Index), 50, 200, color.RGBA{80, 80, 80, 0xff})
	excerpt := textutil.Truncate(textutil.FirstWords(req.Prompt, 8), 40, "...")
	raster.DrawText(canvas, body, excerpt, 50, h/2, color.RGBA{80, 80, 80, 0xff})
	return canvas, nil
}
