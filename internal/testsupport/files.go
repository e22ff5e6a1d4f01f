package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"siksha/internal/artifacts"
)

// WriteFile fills path with size bytes of a repeating pattern. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteImages stores n solid-color PNG scenes of the given size in the
// layout's image directory and returns their paths.
func WriteImages(t testing.TB, layout artifacts.Layout, n, width, height int) []string {
	t.Helper()

	if err := layout.Ensure(); err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		fill := color.RGBA{R: uint8(40 * i), G: 90, B: 160, A: 255}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, y, fill)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("encode png: %v", err)
		}
		path := layout.ImagePath(i)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
