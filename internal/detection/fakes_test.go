package detection

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/imaging"
)

// fakeDetector returns canned detections and records every query.
type fakeDetector struct {
	mu       sync.Mutex
	dets     []RawDetection
	err      error
	queries  []Query
	images   []image.Image
	released int
}

func (d *fakeDetector) Predict(_ context.Context, img image.Image, q Query) ([]RawDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, q)
	d.images = append(d.images, img)
	return d.dets, d.err
}

func (d *fakeDetector) Release() {
	d.mu.Lock()
	d.released++
	d.mu.Unlock()
}

// fakeReader answers every Read with the next entry of readings.
type fakeReader struct {
	readings [][]string
	err      error
	calls    int
}

func (r *fakeReader) Read(_ context.Context, _ image.Image) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	i := r.calls
	r.calls++
	if i >= len(r.readings) {
		return nil, nil
	}
	return r.readings[i], nil
}

type frameRecorder struct {
	frames []image.Image
}

func (r *frameRecorder) Publish(img image.Image) { r.frames = append(r.frames, img) }

type maskRecorder struct {
	masks []*image.Gray
}

func (r *maskRecorder) Publish(m *image.Gray) { r.masks = append(r.masks, m) }

var testVestRange = imaging.HSVRange{
	Lower: imaging.HSV{H: 20, S: 200, V: 100},
	Upper: imaging.HSV{H: 50, S: 255, V: 200},
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func box(x1, y1, x2, y2 float64) imaging.Box {
	return imaging.Box{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

func det(conf float64, b imaging.Box) RawDetection {
	return RawDetection{Confidence: conf, Box: b}
}

// testRig bundles an analyzer and its recorders.
type testRig struct {
	reader   *fakeReader
	frames   *frameRecorder
	masks    *maskRecorder
	analyzer *Analyzer
}

func newTestRig(readings ...[]string) *testRig {
	rig := &testRig{
		reader: &fakeReader{readings: readings},
		frames: &frameRecorder{},
		masks:  &maskRecorder{},
	}
	log := zerolog.Nop()
	rig.analyzer = NewAnalyzer(
		NewStopSignValidator(rig.reader, log),
		NewVestSegmenter(func() imaging.HSVRange { return testVestRange }, rig.masks, log),
		rig.frames,
		DefaultStyle(),
		log,
	)
	return rig
}
