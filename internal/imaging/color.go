package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// HSV represents a colour in 8-bit HSV space.
//
// The scale matches the one camera tuning tools report:
//   - H: 0-179 (hue in degrees divided by two)
//   - S: 0-255 (0 = gray, 255 = fully saturated)
//   - V: 0-255 (0 = black, 255 = full brightness)
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// HSVRange is an inclusive box in HSV space.
type HSVRange struct {
	Lower HSV `json:"lower"`
	Upper HSV `json:"upper"`
}

// Validate checks that every lower bound is <= its upper bound and that hue
// stays on the 0-179 scale.
func (r HSVRange) Validate() error {
	if r.Lower.H > r.Upper.H || r.Lower.S > r.Upper.S || r.Lower.V > r.Upper.V {
		return fmt.Errorf("invalid HSV range: lower %+v exceeds upper %+v", r.Lower, r.Upper)
	}
	if r.Upper.H > 179 {
		return fmt.Errorf("invalid HSV range: hue %d above 179", r.Upper.H)
	}
	return nil
}

// Contains reports whether c lies inside the range on all three channels.
func (r HSVRange) Contains(c HSV) bool {
	return c.H >= r.Lower.H && c.H <= r.Upper.H &&
		c.S >= r.Lower.S && c.S <= r.Upper.S &&
		c.V >= r.Lower.V && c.V <= r.Upper.V
}

// ToHSV converts any colour to 8-bit HSV. Fully transparent pixels map to black.
func ToHSV(c color.Color) HSV {
	col, ok := colorful.MakeColor(c)
	if !ok {
		return HSV{}
	}

	h, s, v := col.Hsv()
	hue := int(math.Round(h/2)) % 180

	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// InRange thresholds img against r and returns a binary mask of the same size.
//
// Pixels inside the range are 255, all others 0. The mask origin is (0,0)
// regardless of the source bounds.
func InRange(img image.Image, r HSVRange) *image.Gray {
	bounds := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if r.Contains(ToHSV(img.At(x, y))) {
				mask.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: 255})
			}
		}
	}

	return mask
}

// Coverage returns the fraction (0-1) of mask pixels that are foreground.
func Coverage(mask *image.Gray) float64 {
	bounds := mask.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}

	on := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.GrayAt(x, y).Y != 0 {
				on++
			}
		}
	}
	return float64(on) / float64(total)
}
