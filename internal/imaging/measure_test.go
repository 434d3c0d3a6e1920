package imaging

import (
	"image"
	"math"
	"testing"
)

func TestAreaPercent(t *testing.T) {
	tests := []struct {
		name   string
		box    Box
		bounds image.Rectangle
		want   float64
	}{
		{"quarter of 100x100", Box{0, 0, 50, 50}, image.Rect(0, 0, 100, 100), 25.0},
		{"offset box in 200x200", Box{50, 50, 100, 100}, image.Rect(0, 0, 200, 200), 6.25},
		{"full frame", Box{0, 0, 640, 640}, image.Rect(0, 0, 640, 640), 100.0},
		{"fractional box", Box{10.5, 10.5, 20.5, 30.5}, image.Rect(0, 0, 100, 100), 2.0},
		{"empty image", Box{0, 0, 10, 10}, image.Rect(0, 0, 0, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AreaPercent(tt.box, tt.bounds)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AreaPercent: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBox_Rect(t *testing.T) {
	b := Box{XMin: 10.9, YMin: 20.2, XMax: 30.7, YMax: 40.99}

	want := image.Rect(10, 20, 30, 40)
	if got := b.Rect(); got != want {
		t.Errorf("Rect: got %v, want %v", got, want)
	}
	if b.Width() != 30.7-10.9 {
		t.Errorf("Width: got %v", b.Width())
	}
}

func TestBox_Valid(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want bool
	}{
		{"ordered", Box{0, 0, 1, 1}, true},
		{"zero width", Box{5, 0, 5, 10}, false},
		{"inverted", Box{10, 10, 0, 0}, false},
		{"nan", Box{math.NaN(), 0, 1, 1}, false},
		{"inf", Box{0, 0, math.Inf(1), 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid: got %v, want %v", got, tt.want)
			}
		})
	}
}
