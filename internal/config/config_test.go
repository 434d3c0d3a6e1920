package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/detection"
	"github.com/ironsheep/route-vision/internal/imaging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "route-vision.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" || cfg.Image.Resize != 640 || cfg.Image.Flip || cfg.Image.WatchDir != "" {
		t.Errorf("http/image: got %+v %+v", cfg.HTTP, cfg.Image)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "*" {
		t.Errorf("cors origins: got %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Detector.Timeout != 30*time.Second || cfg.Detector.Confidence != 0.5 {
		t.Errorf("detector: got %+v", cfg.Detector)
	}
	if cfg.OCR.Language != "eng" || cfg.Store.Path != "" || cfg.Log.Level != "info" {
		t.Errorf("ocr/store/log: got %+v %+v %+v", cfg.OCR, cfg.Store, cfg.Log)
	}

	rng, err := cfg.VestRange()
	if err != nil {
		t.Fatalf("VestRange failed: %v", err)
	}
	want := imaging.HSVRange{
		Lower: imaging.HSV{H: 20, S: 200, V: 100},
		Upper: imaging.HSV{H: 50, S: 255, V: 200},
	}
	if rng != want {
		t.Errorf("vest range: got %+v, want %+v", rng, want)
	}

	style, err := cfg.Style()
	if err != nil {
		t.Fatalf("Style failed: %v", err)
	}
	if style != detection.DefaultStyle() {
		t.Errorf("style: got %+v", style)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
image:
  resize: 320
  flip: true
vest:
  hue_l: 10
  hue_h: 30
models:
  coco: coco.pt
  tire: tire.pt
routes:
  stop:
    classes: [11, 12]
  person:
    model: people.pt
detector:
  timeout: 5s
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Image.Resize != 320 || !cfg.Image.Flip {
		t.Errorf("image: got %+v", cfg.Image)
	}
	if cfg.Detector.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Detector.Timeout)
	}

	rng, err := cfg.VestRange()
	if err != nil {
		t.Fatalf("VestRange failed: %v", err)
	}
	if rng.Lower.H != 10 || rng.Upper.H != 30 || rng.Lower.S != 200 {
		t.Errorf("vest range: got %+v", rng)
	}

	routes, err := cfg.DetectionRoutes()
	if err != nil {
		t.Fatalf("DetectionRoutes failed: %v", err)
	}
	tests := []struct {
		mode    detection.Mode
		model   string
		classes []int
	}{
		{detection.ModeStop, "coco.pt", []int{11, 12}},
		{detection.ModeTire, "tire.pt", []int{0}},
		{detection.ModePerson, "people.pt", []int{0}},
	}
	for _, tt := range tests {
		r := routes[tt.mode]
		if r.Model != tt.model || !slices.Equal(r.Classes, tt.classes) {
			t.Errorf("%s route: got %+v, want %s %v", tt.mode, r, tt.model, tt.classes)
		}
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ROUTE_VISION_HTTP_ADDR", ":9090")
	t.Setenv("ROUTE_VISION_IMAGE_RESIZE", "0")
	t.Setenv("ROUTE_VISION_LOG_FORMAT", "json")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Image.Resize != 0 || cfg.Log.Format != "json" {
		t.Errorf("env overrides not applied: %+v %+v %+v", cfg.HTTP, cfg.Image, cfg.Log)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted vest range", "vest:\n  hue_l: 60\n  hue_h: 50\n"},
		{"hue above 179", "vest:\n  hue_h: 200\n"},
		{"saturation above 255", "vest:\n  sat_h: 300\n"},
		{"unknown route", "routes:\n  car:\n    classes: [2]\n"},
		{"bad colour", "annotate:\n  box_color: red\n"},
		{"confidence", "detector:\n  confidence: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file should be an error")
	}
}

func TestWatch_AppliesValidChange(t *testing.T) {
	path := writeConfig(t, "vest:\n  hue_l: 20\n")
	_, v, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	applied := make(chan *Config, 4)
	Watch(v, zerolog.Nop(), func(c *Config) { applied <- c })

	if err := os.WriteFile(path, []byte("vest:\n  hue_l: 25\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-applied:
			if c.Vest.HueL == 25 {
				return
			}
		case <-deadline:
			t.Fatal("config change was not applied")
		}
	}
}
