package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func rgba8(c color.Color) (uint8, uint8, uint8, uint8) {
	r, g, b, a := c.RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)
}

func isBlack(c color.Color) bool {
	r, g, b, a := rgba8(c)
	return r < 5 && g < 5 && b < 5 && a == 255
}

func isRed(c color.Color) bool {
	r, g, b, _ := rgba8(c)
	return r > 250 && g < 5 && b < 5
}

func TestLetterbox_Wide(t *testing.T) {
	img := createInMemoryImage(100, 50, color.RGBA{255, 0, 0, 255})

	out := Letterbox(img, 100)

	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatalf("dimensions: got %dx%d, want 100x100", out.Bounds().Dx(), out.Bounds().Dy())
	}

	tests := []struct {
		name  string
		x, y  int
		check func(color.Color) bool
	}{
		{"top padding", 50, 5, isBlack},
		{"last padding row", 50, 24, isBlack},
		{"first content row", 50, 25, isRed},
		{"center", 50, 50, isRed},
		{"last content row", 50, 74, isRed},
		{"bottom padding", 50, 95, isBlack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c := out.At(tt.x, tt.y); !tt.check(c) {
				t.Errorf("pixel (%d,%d): got %v", tt.x, tt.y, c)
			}
		})
	}
}

func TestLetterbox_Tall(t *testing.T) {
	img := createInMemoryImage(50, 100, color.RGBA{255, 0, 0, 255})

	out := Letterbox(img, 50)

	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 50 {
		t.Fatalf("dimensions: got %dx%d, want 50x50", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if !isBlack(out.At(5, 25)) {
		t.Errorf("left padding should be black, got %v", out.At(5, 25))
	}
	if !isRed(out.At(25, 25)) {
		t.Errorf("center should be red, got %v", out.At(25, 25))
	}
	if !isBlack(out.At(45, 25)) {
		t.Errorf("right padding should be black, got %v", out.At(45, 25))
	}
}

func TestLetterbox_SquareMatchesDirectResize(t *testing.T) {
	img := createPatternImage(80, 80)

	out := Letterbox(img, 32)
	want := imaging.Resize(img, 32, 32, imaging.Box)

	if out.Bounds() != want.Bounds() {
		t.Fatalf("bounds: got %v, want %v", out.Bounds(), want.Bounds())
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if out.NRGBAAt(x, y) != want.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, out.NRGBAAt(x, y), want.NRGBAAt(x, y))
			}
		}
	}
}

func TestLetterbox_PaddedMatchesSquareFilter(t *testing.T) {
	img := createPatternImage(80, 40)

	out := Letterbox(img, 32)
	canvas := imaging.Paste(imaging.New(80, 80, padColor), img, image.Pt(0, 20))
	want := imaging.Resize(canvas, 32, 32, imaging.Box)

	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if out.NRGBAAt(x, y) != want.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, out.NRGBAAt(x, y), want.NRGBAAt(x, y))
			}
		}
	}
}

func TestPreprocess_FlipIsRotation(t *testing.T) {
	// Non-symmetric 3x2 image: every pixel distinct
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 80), uint8(y * 120), uint8(10 + x + 3*y), 255})
		}
	}

	out := Preprocess(img, 0, true)

	if out.Bounds().Dx() != 3 || out.Bounds().Dy() != 2 {
		t.Fatalf("dimensions: got %dx%d, want 3x2", out.Bounds().Dx(), out.Bounds().Dy())
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			got := color.RGBAModel.Convert(out.At(x, y))
			want := img.At(2-x, 1-y)
			if got != want {
				t.Errorf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestPreprocess_NoOp(t *testing.T) {
	img := createPatternImage(30, 20)

	out := Preprocess(img, 0, false)
	if out != image.Image(img) {
		t.Error("Preprocess without resize or flip should return the input")
	}
}

func TestPreprocess_ResizeThenFlip(t *testing.T) {
	img := createInMemoryImage(100, 50, color.RGBA{255, 0, 0, 255})
	// Mark the top-left corner so rotation is observable
	rgba := img.(*image.RGBA)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			rgba.Set(x, y, color.RGBA{0, 255, 0, 255})
		}
	}

	out := Preprocess(img, 100, true)

	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatalf("dimensions: got %dx%d, want 100x100", out.Bounds().Dx(), out.Bounds().Dy())
	}
	// Marker moves from (0..9, 25..34) to (90..99, 65..74)
	_, g, _, _ := rgba8(out.At(95, 70))
	if g < 250 {
		t.Errorf("rotated marker missing at (95,70): got %v", out.At(95, 70))
	}
	if !isBlack(out.At(50, 5)) {
		t.Errorf("padding should stay black after rotation, got %v", out.At(50, 5))
	}
}
