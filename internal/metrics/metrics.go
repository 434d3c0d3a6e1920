// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/route-vision/internal/frame"
)

// FrameStats is the cache view read on every scrape.
type FrameStats interface {
	Stats() frame.Stats
}

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	detections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	decodeErrs prometheus.Counter
}

// New creates the collectors. frames may be nil.
func New(frames FrameStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_vision_requests_total",
			Help: "Detection requests by mode and outcome",
		}, []string{"mode", "status"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_vision_detections_total",
			Help: "Detections by mode and verdict (counted, rejected, skipped)",
		}, []string{"mode", "verdict"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "route_vision_request_duration_seconds",
			Help:    "Time from request to answer, including inference",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"mode"}),
		decodeErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "route_vision_frame_decode_errors_total",
			Help: "Camera frames that could not be decoded",
		}),
	}

	m.registry.MustRegister(m.requests, m.detections, m.latency, m.decodeErrs)

	if frames != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "route_vision_frames_received_total",
				Help: "Camera frames stored in the cache",
			},
			func() float64 { return float64(frames.Stats().Stored) },
		))
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "route_vision_frames_dropped_total",
				Help: "Frames overwritten before any request consumed them",
			},
			func() float64 { return float64(frames.Stats().Dropped) },
		))
	}

	return m
}

// ObserveRequest records one answered request.
func (m *Metrics) ObserveRequest(mode, status string, counted, rejected, skipped int, d time.Duration) {
	m.requests.WithLabelValues(mode, status).Inc()
	m.detections.WithLabelValues(mode, "counted").Add(float64(counted))
	m.detections.WithLabelValues(mode, "rejected").Add(float64(rejected))
	m.detections.WithLabelValues(mode, "skipped").Add(float64(skipped))
	m.latency.WithLabelValues(mode).Observe(d.Seconds())
}

// FrameDecodeFailed counts a camera frame that was not cached.
func (m *Metrics) FrameDecodeFailed() {
	m.decodeErrs.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
