package imaging

import (
	"image"
	"math"
)

// Box is an axis-aligned bounding box in floating point pixel coordinates.
// (XMin, YMin) is the top-left corner and (XMax, YMax) the bottom-right.
type Box struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Rect truncates the box to integer pixel coordinates, the way detector
// output is sliced into crops.
func (b Box) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(int(b.XMin), int(b.YMin)),
		Max: image.Pt(int(b.XMax), int(b.YMax)),
	}
}

// Valid reports whether the box coordinates are finite and ordered.
func (b Box) Valid() bool {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// AreaPercent returns the box area as a percentage (0-100) of the image area.
//
// An image with no area yields 0.
func AreaPercent(b Box, bounds image.Rectangle) float64 {
	imageArea := float64(bounds.Dx() * bounds.Dy())
	if imageArea == 0 {
		return 0
	}
	return 100 * ((b.Width() * b.Height()) / imageArea)
}
