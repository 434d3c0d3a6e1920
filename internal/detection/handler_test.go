package detection

import (
	"context"
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/frame"
)

func newTestHandler(t *testing.T, d *fakeDetector, readings ...[]string) (*Handler, *frame.Cache, *testRig) {
	t.Helper()
	rig := newTestRig(readings...)
	cache := frame.NewCache()
	h, err := NewHandler(cache, d, rig.analyzer, HandlerConfig{
		Routes:     DefaultRoutes("coco.pt", "tire.pt"),
		Confidence: 0.5,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h, cache, rig
}

func TestHandle_PersonEndToEnd(t *testing.T) {
	d := &fakeDetector{dets: []RawDetection{det(0.9, box(50, 50, 100, 100))}}
	h, cache, rig := newTestHandler(t, d)
	cache.Store(solidImage(200, 200, color.RGBA{128, 128, 128, 255}))

	out, err := h.Handle(context.Background(), "person")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if out.Result != (Result{Count: 1, Size: 6.25}) {
		t.Errorf("result: got %+v, want (1, 6.25)", out.Result)
	}
	if out.Status != StatusOK || out.Mode != ModePerson || out.FrameSeq != 1 {
		t.Errorf("outcome: got %+v", out)
	}
	if len(rig.masks.masks) != 1 {
		t.Errorf("vest masks published: got %d, want 1", len(rig.masks.masks))
	}
	if len(rig.frames.frames) != 1 {
		t.Errorf("annotated frames published: got %d, want 1", len(rig.frames.frames))
	}
	if cache.Stats().Occupied {
		t.Error("frame should be consumed")
	}
}

func TestHandle_EmptyCache(t *testing.T) {
	d := &fakeDetector{}
	h, _, rig := newTestHandler(t, d)

	out, err := h.Handle(context.Background(), "tire")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if out.Result != NoFrame || out.Status != StatusNoFrame {
		t.Errorf("outcome: got %+v, want NoFrame", out)
	}
	if len(d.queries) != 0 {
		t.Error("detector must not run without a frame")
	}
	if len(rig.frames.frames) != 0 {
		t.Error("nothing should be published without a frame")
	}
}

func TestHandle_SecondRequestSeesNoFrame(t *testing.T) {
	d := &fakeDetector{}
	h, cache, _ := newTestHandler(t, d)
	cache.Store(solidImage(10, 10, color.Black))

	first, err := h.Handle(context.Background(), "tire")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if first.Result != (Result{}) {
		t.Errorf("first: got %+v, want (0, 0)", first.Result)
	}

	second, err := h.Handle(context.Background(), "tire")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if second.Result != NoFrame {
		t.Errorf("second: got %+v, want NoFrame", second.Result)
	}
}

func TestHandle_UnknownModeKeepsFrame(t *testing.T) {
	d := &fakeDetector{dets: []RawDetection{det(0.9, box(0, 0, 5, 5))}}
	h, cache, _ := newTestHandler(t, d)
	cache.Store(solidImage(10, 10, color.Black))

	out, err := h.Handle(context.Background(), "car")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if out.Result != (Result{}) || out.Status != StatusUnknownMode {
		t.Errorf("outcome: got %+v, want (0, 0) unknown_mode", out)
	}
	if !cache.Stats().Occupied {
		t.Fatal("unknown mode must not consume the frame")
	}
	if len(d.queries) != 0 {
		t.Error("detector must not run for unknown modes")
	}

	out, err = h.Handle(context.Background(), "tire")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if out.Result != (Result{Count: 1, Size: 25}) {
		t.Errorf("follow-up request: got %+v, want (1, 25)", out.Result)
	}
}

func TestHandle_RoutesQueries(t *testing.T) {
	tests := []struct {
		target  string
		model   string
		classes []int
	}{
		{"stop", "coco.pt", []int{11}},
		{"tire", "tire.pt", []int{0}},
		{"person", "coco.pt", []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			d := &fakeDetector{}
			h, cache, _ := newTestHandler(t, d)
			cache.Store(solidImage(10, 10, color.Black))

			if _, err := h.Handle(context.Background(), tt.target); err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if len(d.queries) != 1 {
				t.Fatalf("queries: got %d, want 1", len(d.queries))
			}
			q := d.queries[0]
			if q.Model != tt.model || !slices.Equal(q.Classes, tt.classes) || q.Confidence != 0.5 {
				t.Errorf("query: got %+v", q)
			}
			if d.released != 1 {
				t.Errorf("Release calls: got %d, want 1", d.released)
			}
		})
	}
}

func TestHandle_DetectorFailure(t *testing.T) {
	boom := errors.New("gpu lost")
	d := &fakeDetector{err: boom}
	h, cache, rig := newTestHandler(t, d)
	cache.Store(solidImage(10, 10, color.Black))

	out, err := h.Handle(context.Background(), "person")
	if !errors.Is(err, ErrInference) || !errors.Is(err, boom) {
		t.Errorf("error should wrap ErrInference and the cause, got %v", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("status: got %s, want failed", out.Status)
	}
	if cache.Stats().Occupied {
		t.Error("frame stays consumed after a failed pass")
	}
	if d.released != 1 {
		t.Error("Release must run even when Predict fails")
	}
	if len(rig.frames.frames) != 0 {
		t.Error("failed pass should not publish")
	}
}

func TestHandle_StopRejectsFake(t *testing.T) {
	d := &fakeDetector{dets: []RawDetection{
		det(0.9, box(0, 0, 100, 100)),
		det(0.8, box(0, 0, 50, 50)),
	}}
	h, cache, _ := newTestHandler(t, d, []string{"GO"}, []string{"STOP"})
	cache.Store(solidImage(200, 200, color.White))

	out, err := h.Handle(context.Background(), "stop")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if out.Result != (Result{Count: 1, Size: 6.25}) {
		t.Errorf("result: got %+v, want (1, 6.25)", out.Result)
	}
	if out.Rejected != 1 {
		t.Errorf("rejected: got %d, want 1", out.Rejected)
	}
}

func TestNewHandler_InvalidRoutes(t *testing.T) {
	_, err := NewHandler(frame.NewCache(), &fakeDetector{}, newTestRig().analyzer, HandlerConfig{
		Routes: Routes{ModeStop: {Model: "a", Classes: []int{11}}},
	}, zerolog.Nop())
	if err == nil {
		t.Error("incomplete routes should be rejected")
	}
}
