//go:build ignore

// gen_fixtures writes a mixed batch of inputs for the compress smoke test:
// native formats, bitmap-fallback formats, a duplicate base name and one
// unsupported file.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(filepath.Join(dir, "cards"), 0o755); err != nil {
		fail(err)
	}

	fixtures := []struct {
		name string
		img  *image.NRGBA
	}{
		{"banner.jpg", gradient(640, 360)},
		{"banner.png", gradient(640, 360)},
		{"logo.png", alphaGradient(128, 128)},
		{"icon.gif", solidWithBorder(64, 64, 40)},
		{"scan.bmp", gradient(300, 200)},
		{"scan.tiff", solidWithBorder(300, 200, 90)},
	}
	for i := 1; i <= 3; i++ {
		fixtures = append(fixtures, struct {
			name string
			img  *image.NRGBA
		}{filepath.Join("cards", fmt.Sprintf("card-%d.png", i)), solidWithBorder(200, 150, uint8(i*60))})
	}

	for _, f := range fixtures {
		if err := imaging.Save(f.img, filepath.Join(dir, f.name), imaging.JPEGQuality(92)); err != nil {
			fail(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image\n"), 0o644); err != nil {
		fail(err)
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created %d fixtures in %s\n", len(fixtures)+1, dir)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "gen_fixtures:", err)
	os.Exit(1)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 60, B: 30, A: uint8(x * 255 / w)})
		}
	}
	return img
}
