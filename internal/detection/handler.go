package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/frame"
)

// Status classifies how a request ended.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNoFrame     Status = "no_frame"
	StatusUnknownMode Status = "unknown_mode"
	StatusFailed      Status = "failed"
)

// Outcome is a Result plus the bookkeeping transports log and record.
type Outcome struct {
	Result
	Target   string
	Mode     Mode
	Status   Status
	FrameSeq uint64
	Counted  []ValidatedDetection
	Rejected int
	Skipped  int
	Duration time.Duration
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Routes     Routes
	Confidence float64
}

// Handler answers detection requests against the frame cache.
//
// Requests are serialized: a second caller blocks until the running pass
// completes.
type Handler struct {
	mu         sync.Mutex
	cache      *frame.Cache
	detector   Detector
	analyzer   *Analyzer
	routes     Routes
	confidence float64
	log        zerolog.Logger
}

// NewHandler creates a handler. cfg.Routes must cover every mode.
func NewHandler(cache *frame.Cache, detector Detector, analyzer *Analyzer, cfg HandlerConfig, log zerolog.Logger) (*Handler, error) {
	if err := cfg.Routes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid routes: %w", err)
	}
	return &Handler{
		cache:      cache,
		detector:   detector,
		analyzer:   analyzer,
		routes:     cfg.Routes,
		confidence: cfg.Confidence,
		log:        log.With().Str("component", "handler").Logger(),
	}, nil
}

// Handle runs one detection pass for target.
//
//   - unknown target: (0, 0.0), cache untouched
//   - empty cache: (-1, 0.0)
//   - otherwise the cached frame is consumed, detected, analysed
//
// A Detector or TextReader failure is returned as an error; the frame stays
// consumed.
func (h *Handler) Handle(ctx context.Context, target string) (Outcome, error) {
	start := time.Now()
	out := Outcome{Target: target}

	mode, ok := ParseMode(target)
	if !ok {
		h.log.Warn().Str("target", target).Msg("unknown detection target")
		out.Status = StatusUnknownMode
		return out, nil
	}
	out.Mode = mode

	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.cache.Take()
	if !ok {
		h.log.Warn().Str("target", target).Msg("no image received yet")
		out.Result = NoFrame
		out.Status = StatusNoFrame
		return out, nil
	}
	out.FrameSeq = f.Seq

	route, _ := h.routes.Lookup(mode)
	if r, ok := h.detector.(Releaser); ok {
		defer r.Release()
	}

	raws, err := h.detector.Predict(ctx, f.Image, Query{
		Model:      route.Model,
		Classes:    route.Classes,
		Confidence: h.confidence,
	})
	if err != nil {
		out.Status = StatusFailed
		out.Duration = time.Since(start)
		return out, fmt.Errorf("%w: %w", ErrInference, err)
	}

	analysis, err := h.analyzer.Analyze(ctx, raws, f.Image, mode)
	if err != nil {
		out.Status = StatusFailed
		out.Duration = time.Since(start)
		return out, err
	}

	out.Result = Result{Count: analysis.Count, Size: analysis.Biggest}
	out.Status = StatusOK
	out.Counted = analysis.Counted
	out.Rejected = analysis.Rejected
	out.Skipped = analysis.Skipped
	out.Duration = time.Since(start)

	h.log.Info().
		Str("mode", mode.String()).
		Uint64("frame_seq", f.Seq).
		Int("raw", len(raws)).
		Int("count", out.Count).
		Float64("size", out.Size).
		Int("rejected", out.Rejected).
		Int("skipped", out.Skipped).
		Dur("duration", out.Duration).
		Msg("detection complete")

	return out, nil
}
