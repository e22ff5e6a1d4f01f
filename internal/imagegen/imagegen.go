// Package imagegen turns scene prompts into 16:9 lesson images. Each image
// is produced by the first provider in the chain that succeeds: a Stable
// Diffusion WebUI server, the Pollinations HTTP service, and finally a
// locally rendered placeholder card that never fails.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/h2non/filetype"

	"siksha/internal/services"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "images"

// Params are the generation settings sent to model-backed providers.
type Params struct {
	Width          int
	Height         int
	Steps          int
	Guidance       float64
	NegativePrompt string
}

// Request is one image to produce.
type Request struct {
	Index  int // 1-based scene number
	Prompt string
	Topic  string
}

// Enhance appends the style suffix every model prompt carries.
func Enhance(prompt string) string {
	return strings.TrimSpace(prompt) + ", educational illustration, professional, detailed, high quality, 16:9 aspect ratio, clean background"
}

// decode sniffs payload and decodes it, rejecting anything that is not a
// PNG or JPEG raster.
func decode(provider string, payload []byte) (image.Image, error) {
	if len(payload) == 0 {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, provider, "empty image payload", nil)
	}
	if !filetype.IsImage(payload) {
		kind, _ := filetype.Match(payload)
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, provider,
			fmt.Sprintf("payload is not an image (detected %s)", describeKind(kind.MIME.Value)), nil)
	}
	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, provider, "decode image", err)
	}
	if img.Bounds().Empty() {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, provider, "zero-size "+format+" image", nil)
	}
	return img, nil
}

func describeKind(mime string) string {
	if mime == "" {
		return "unknown"
	}
	return mime
}

// exhausted reports whether a server response signals memory pressure.
func exhausted(status int, body string) bool {
	return status == 507 || strings.Contains(strings.ToLower(body), "out of memory")
}
