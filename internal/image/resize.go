package image

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale shrinks img so its longer side is at most maxDimension pixels,
// keeping the aspect ratio. Images already small enough, and a maxDimension
// of zero or less, are returned unchanged.
func Downscale(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return img
	}

	nw, nh := maxDimension, maxDimension
	if w >= h {
		nh = max(1, h*maxDimension/w)
	} else {
		nw = max(1, w*maxDimension/h)
	}

	// Nearest neighbour keeps edges hard so blob sizes stay meaningful.
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
