// Package pipeline assembles the detection node: frame ingest, the request
// handler, debug outputs, metrics and request history. Transports (HTTP, MCP)
// talk only to a Node.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/detection"
	"github.com/ironsheep/route-vision/internal/frame"
	"github.com/ironsheep/route-vision/internal/imaging"
	"github.com/ironsheep/route-vision/internal/metrics"
	"github.com/ironsheep/route-vision/internal/ocr"
	"github.com/ironsheep/route-vision/internal/publish"
	"github.com/ironsheep/route-vision/internal/store"
)

// ErrHistoryDisabled is returned by History when no store is configured.
var ErrHistoryDisabled = errors.New("detection history disabled")

// History persists answered requests.
type History interface {
	Record(store.Record) error
	Recent(limit int) ([]store.Record, error)
}

// Config holds the node settings that are fixed at startup, except Vest which
// can be replaced later with SetVestRange.
type Config struct {
	Resize     int
	Flip       bool
	Vest       imaging.HSVRange
	Routes     detection.Routes
	Confidence float64
	Style      detection.Style
}

// Deps are the node's external collaborators. History may be nil.
type Deps struct {
	Detector detection.Detector
	Reader   detection.TextReader
	History  History
	Log      zerolog.Logger
}

// Report is the transport view of one answered request.
type Report struct {
	ID string `json:"id"`
	detection.Result
	Target     string                         `json:"target"`
	Status     detection.Status               `json:"status"`
	FrameSeq   uint64                         `json:"frame_seq,omitempty"`
	Rejected   int                            `json:"rejected"`
	Skipped    int                            `json:"skipped"`
	DurationMs float64                        `json:"duration_ms"`
	Detections []detection.ValidatedDetection `json:"detections,omitempty"`
}

// Status summarizes node health. StreamDropped counts annotated frames
// replaced before any stream viewer read them.
type Status struct {
	Frames         frame.Stats      `json:"frames"`
	FrameAgeMs     float64          `json:"frame_age_ms,omitempty"`
	Uptime         string           `json:"uptime"`
	Resize         int              `json:"resize"`
	Flip           bool             `json:"flip"`
	Vest           imaging.HSVRange `json:"vest"`
	AnnotatedSeq   uint64           `json:"annotated_seq"`
	VestMaskSeq    uint64           `json:"vest_mask_seq"`
	StreamDropped  uint64           `json:"stream_dropped"`
	HistoryEnabled bool             `json:"history_enabled"`
	OCR            *ocr.Info        `json:"ocr,omitempty"`
}

// Node is a running detection node.
type Node struct {
	cfg       Config
	cache     *frame.Cache
	handler   *detection.Handler
	annotated *publish.Slot[image.Image]
	masks     *publish.Slot[*image.Gray]
	vest      atomic.Pointer[imaging.HSVRange]
	reader    detection.TextReader
	history   History
	metrics   *metrics.Metrics
	log       zerolog.Logger
	started   time.Time
}

// New wires a node.
func New(cfg Config, deps Deps) (*Node, error) {
	if deps.Detector == nil || deps.Reader == nil {
		return nil, fmt.Errorf("detector and text reader are required")
	}
	if err := cfg.Vest.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:       cfg,
		cache:     frame.NewCache(),
		annotated: publish.NewSlot[image.Image](),
		masks:     publish.NewSlot[*image.Gray](),
		reader:    deps.Reader,
		history:   deps.History,
		log:       deps.Log.With().Str("component", "node").Logger(),
		started:   time.Now(),
	}
	vest := cfg.Vest
	n.vest.Store(&vest)
	n.metrics = metrics.New(n.cache)

	analyzer := detection.NewAnalyzer(
		detection.NewStopSignValidator(deps.Reader, deps.Log),
		detection.NewVestSegmenter(n.VestRange, n.masks, deps.Log),
		n.annotated,
		cfg.Style,
		deps.Log,
	)
	handler, err := detection.NewHandler(n.cache, deps.Detector, analyzer, detection.HandlerConfig{
		Routes:     cfg.Routes,
		Confidence: cfg.Confidence,
	}, deps.Log)
	if err != nil {
		return nil, err
	}
	n.handler = handler

	return n, nil
}

// IngestFrame preprocesses img and caches it for the next request.
func (n *Node) IngestFrame(img image.Image) frame.Frame {
	f := n.cache.Store(imaging.Preprocess(img, n.cfg.Resize, n.cfg.Flip))
	n.log.Debug().Uint64("seq", f.Seq).Str("size", img.Bounds().Size().String()).Msg("frame cached")
	return f
}

// IngestEncoded decodes a PNG, JPEG or GIF frame and caches it.
func (n *Node) IngestEncoded(r io.Reader) (frame.Frame, error) {
	img, _, err := imaging.Decode(r)
	if err != nil {
		n.metrics.FrameDecodeFailed()
		return frame.Frame{}, err
	}
	return n.IngestFrame(img), nil
}

// IngestFile loads a frame from disk and caches it.
func (n *Node) IngestFile(path string) (frame.Frame, error) {
	img, err := imaging.LoadFile(path)
	if err != nil {
		n.metrics.FrameDecodeFailed()
		return frame.Frame{}, err
	}
	return n.IngestFrame(img), nil
}

// Detect answers one detection request for target and records it.
//
// The returned Report is valid even when err is non-nil; its Status is then
// "failed".
func (n *Node) Detect(ctx context.Context, target string) (Report, error) {
	out, err := n.handler.Handle(ctx, target)

	rep := Report{
		ID:         uuid.NewString(),
		Result:     out.Result,
		Target:     target,
		Status:     out.Status,
		FrameSeq:   out.FrameSeq,
		Rejected:   out.Rejected,
		Skipped:    out.Skipped,
		DurationMs: float64(out.Duration.Microseconds()) / 1000,
		Detections: out.Counted,
	}

	mode := "unknown"
	if out.Status != detection.StatusUnknownMode {
		mode = out.Mode.String()
	}
	n.metrics.ObserveRequest(mode, string(out.Status), out.Count, out.Rejected, out.Skipped, out.Duration)

	if err != nil {
		n.log.Error().Err(err).Str("id", rep.ID).Str("target", target).Msg("detection failed")
	}
	n.record(rep, err)

	return rep, err
}

func (n *Node) record(rep Report, reqErr error) {
	if n.history == nil {
		return
	}
	r := store.Record{
		ID:         rep.ID,
		Timestamp:  time.Now(),
		Target:     rep.Target,
		Status:     string(rep.Status),
		Count:      rep.Count,
		Size:       rep.Size,
		FrameSeq:   rep.FrameSeq,
		Rejected:   rep.Rejected,
		Skipped:    rep.Skipped,
		LatencyMs:  rep.DurationMs,
		Detections: rep.Detections,
	}
	if reqErr != nil {
		r.Error = reqErr.Error()
	}
	if err := n.history.Record(r); err != nil {
		n.log.Warn().Err(err).Str("id", rep.ID).Msg("failed to record request")
	}
}

// History returns up to limit recent requests, newest first.
func (n *Node) History(limit int) ([]store.Record, error) {
	if n.history == nil {
		return nil, ErrHistoryDisabled
	}
	return n.history.Recent(limit)
}

// Annotated returns the most recent annotated frame.
func (n *Node) Annotated() (publish.Item[image.Image], bool) {
	return n.annotated.Latest()
}

// VestMask returns the most recent vest mask.
func (n *Node) VestMask() (publish.Item[*image.Gray], bool) {
	return n.masks.Latest()
}

// AnnotatedUpdates delivers annotated frames as they are published.
func (n *Node) AnnotatedUpdates() <-chan publish.Item[image.Image] {
	return n.annotated.Updates()
}

// VestRange returns the current vest colour window.
func (n *Node) VestRange() imaging.HSVRange {
	return *n.vest.Load()
}

// SetVestRange replaces the vest colour window for subsequent requests.
func (n *Node) SetVestRange(r imaging.HSVRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	n.vest.Store(&r)
	n.log.Info().Interface("vest", r).Msg("vest range updated")
	return nil
}

// Metrics returns the node's metrics.
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Status reports cache occupancy, publication counters and backend info.
func (n *Node) Status() Status {
	s := Status{
		Frames:         n.cache.Stats(),
		Uptime:         time.Since(n.started).Round(time.Second).String(),
		Resize:         n.cfg.Resize,
		Flip:           n.cfg.Flip,
		Vest:           n.VestRange(),
		StreamDropped:  n.annotated.Dropped(),
		HistoryEnabled: n.history != nil,
	}
	if _, age, ok := n.cache.Peek(); ok {
		s.FrameAgeMs = float64(age.Microseconds()) / 1000
	}
	if item, ok := n.annotated.Latest(); ok {
		s.AnnotatedSeq = item.Seq
	}
	if item, ok := n.masks.Latest(); ok {
		s.VestMaskSeq = item.Seq
	}
	if r, ok := n.reader.(interface{ Info() ocr.Info }); ok {
		info := r.Info()
		s.OCR = &info
	}
	return s
}
