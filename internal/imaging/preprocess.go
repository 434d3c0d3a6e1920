package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// padColor fills the letterbox canvas. All colour channels are zero; alpha is
// opaque so the padding survives resampling unchanged.
var padColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// Preprocess normalizes a camera frame before it is cached.
//
// Parameters:
//   - img: The decoded camera frame.
//   - targetSize: Output side length in pixels. Values <= 0 disable letterboxing
//     and keep the source resolution.
//   - flip: Rotate the frame by 180 degrees after resizing.
//
// The source image is never modified.
func Preprocess(img image.Image, targetSize int, flip bool) image.Image {
	out := img
	if targetSize > 0 {
		out = Letterbox(out, targetSize)
	}
	if flip {
		out = Rotate180(out)
	}
	return out
}

// Letterbox resizes img to size x size without distorting its aspect ratio.
//
// Square inputs are resized directly. Otherwise the image is centered on a
// black square canvas of side max(height, width) at offsets
// ((side-height)/2, (side-width)/2), rounded down, and the canvas is resized.
func Letterbox(img image.Image, size int) *image.NRGBA {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	if h == w {
		return imaging.Resize(img, size, size, imaging.Box)
	}

	side := h
	if w > side {
		side = w
	}
	y, x := (side-h)/2, (side-w)/2

	canvas := imaging.New(side, side, padColor)
	canvas = imaging.Paste(canvas, img, image.Pt(x, y))
	return imaging.Resize(canvas, size, size, imaging.Box)
}

// Rotate180 flips img vertically and then horizontally.
// The order matters for cameras mounted upside down and must stay V then H.
func Rotate180(img image.Image) *image.RGBA {
	return transform.FlipH(transform.FlipV(img))
}
