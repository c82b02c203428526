//go:build ignore

// Generates sample.png for trying out blotch by hand:
//
//	go run testdata/generate_test_image.go && blotch extract -f table testdata/sample.png
//
// The image has four large blocks of colour, a band of single-pixel
// checkerboard noise and a transparent stripe. Only the blocks should
// survive extraction.
package main

import (
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
)

func main() {
	const size = 256
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	blocks := []color.NRGBA{
		{R: 200, G: 40, B: 40, A: 255},
		{R: 40, G: 160, B: 60, A: 255},
		{R: 30, G: 60, B: 190, A: 255},
		{R: 230, G: 200, B: 40, A: 255},
	}
	noise := [2]color.NRGBA{
		{R: 255, G: 0, B: 255, A: 255},
		{R: 0, G: 255, B: 255, A: 255},
	}

	half := size / 2
	for y := range size {
		for x := range size {
			switch {
			case y >= size-16:
				// Transparent stripe, ignored by the extractor.
			case y >= size-48:
				img.SetNRGBA(x, y, noise[(x+y)%2])
			default:
				img.SetNRGBA(x, y, blocks[(y/half)*2+x/half])
			}
		}
	}

	out := filepath.Join("testdata", "sample.png")
	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", out)
}
