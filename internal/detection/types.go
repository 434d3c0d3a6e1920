package detection

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/route-vision/internal/imaging"
)

var (
	// ErrRegionCrop marks a detection whose box does not fit inside the frame.
	// Such detections are skipped, never returned to callers.
	ErrRegionCrop = errors.New("detection region outside frame")

	// ErrInference wraps failures of the external Detector.
	ErrInference = errors.New("inference failed")

	// ErrTextRecognition wraps failures of the external TextReader.
	ErrTextRecognition = errors.New("text recognition failed")
)

// RawDetection is one box as produced by the Detector, in pixel coordinates
// of the frame it was computed on.
type RawDetection struct {
	ClassID    int         `json:"class_id"`
	Confidence float64     `json:"confidence"`
	Box        imaging.Box `json:"box"`
}

// ValidatedDetection is a RawDetection that passed its mode's gate.
type ValidatedDetection struct {
	RawDetection
	AreaPercent float64 `json:"area_percent"`
}

// Query is what the Detector needs to run one pass.
type Query struct {
	Model      string
	Classes    []int
	Confidence float64
}

// Detector maps an image and a class filter to raw detections.
type Detector interface {
	Predict(ctx context.Context, img image.Image, q Query) ([]RawDetection, error)
}

// Releaser is implemented by detectors holding transient resources (device
// memory, pooled connections) that should be freed after every pass.
type Releaser interface {
	Release()
}

// TextReader returns the strings recognised in an image region.
type TextReader interface {
	Read(ctx context.Context, img image.Image) ([]string, error)
}

// FrameSink receives annotated frames.
type FrameSink interface {
	Publish(image.Image)
}

// MaskSink receives vest masks.
type MaskSink interface {
	Publish(*image.Gray)
}

// Result is the machine-readable answer to a detection request.
type Result struct {
	Count int     `json:"count"`
	Size  float64 `json:"size"`
}

// NoFrame is returned when the frame cache was empty.
var NoFrame = Result{Count: -1, Size: 0}
