package detection

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/imaging"
)

const (
	boxThickness    = 2
	rejectThickness = 3
	labelOffset     = 10
)

// Style holds the annotation colours.
type Style struct {
	Box    color.Color
	Reject color.Color
}

// DefaultStyle draws accepted boxes in red and rejected ones in magenta.
func DefaultStyle() Style {
	return Style{
		Box:    color.RGBA{R: 255, A: 255},
		Reject: color.RGBA{R: 255, B: 255, A: 255},
	}
}

// Analysis is the outcome of gating and measuring one frame's detections.
type Analysis struct {
	Count     int
	Biggest   float64
	Annotated *image.RGBA
	Counted   []ValidatedDetection
	Rejected  int
	Skipped   int
}

// Analyzer applies mode gates to raw detections and measures the survivors.
type Analyzer struct {
	validator *StopSignValidator
	segmenter *VestSegmenter
	frames    FrameSink
	style     Style
	log       zerolog.Logger
}

// NewAnalyzer wires an analyzer. frames may be nil when nobody consumes the
// annotated output.
func NewAnalyzer(validator *StopSignValidator, segmenter *VestSegmenter, frames FrameSink, style Style, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		validator: validator,
		segmenter: segmenter,
		frames:    frames,
		style:     style,
		log:       log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze gates, counts and measures raws against img in detector order.
//
// For each detection:
//   - a box that does not fit in img is skipped (ErrRegionCrop, logged)
//   - ModeStop: the crop must read STOP, otherwise it is marked "Fake" and skipped
//   - ModePerson: the crop is vest-segmented; the mask is published only
//   - ModeTire: no gate
//
// Counted boxes add to Count and may raise Biggest, the largest area
// percentage; a later box must be strictly larger to replace it. The annotated
// copy of img is published even when nothing was counted.
//
// Only a TextReader failure aborts the analysis.
func (a *Analyzer) Analyze(ctx context.Context, raws []RawDetection, img image.Image, mode Mode) (Analysis, error) {
	bounds := img.Bounds()
	result := Analysis{Annotated: imaging.Canvas(img)}

	for i, d := range raws {
		rect, err := region(d.Box, bounds)
		if err != nil {
			result.Skipped++
			a.log.Warn().Err(err).Int("index", i).Interface("box", d.Box).Msg("skipping detection")
			continue
		}

		switch mode {
		case ModeStop:
			crop, err := imaging.Crop(img, rect)
			if err != nil {
				result.Skipped++
				a.log.Warn().Err(err).Int("index", i).Msg("skipping detection")
				continue
			}
			ok, err := a.validator.Validate(ctx, crop)
			if err != nil {
				return Analysis{}, err
			}
			if !ok {
				result.Rejected++
				imaging.DrawLine(result.Annotated, rect.Min, rect.Max, a.style.Reject, rejectThickness)
				imaging.DrawLabel(result.Annotated, rect.Min.X, rect.Min.Y-labelOffset,
					fmt.Sprintf("Fake %s", label(mode, d.Confidence)), a.style.Reject)
				continue
			}
		case ModePerson:
			crop, err := imaging.Crop(img, rect)
			if err != nil {
				result.Skipped++
				a.log.Warn().Err(err).Int("index", i).Msg("skipping detection")
				continue
			}
			a.segmenter.Segment(crop)
		}

		pct := imaging.AreaPercent(d.Box, bounds)
		result.Count++
		if pct > result.Biggest {
			result.Biggest = pct
		}
		result.Counted = append(result.Counted, ValidatedDetection{RawDetection: d, AreaPercent: pct})

		imaging.DrawRect(result.Annotated, rect, a.style.Box, boxThickness)
		imaging.DrawLabel(result.Annotated, rect.Min.X, rect.Min.Y-labelOffset, label(mode, d.Confidence), a.style.Box)
	}

	if a.frames != nil {
		a.frames.Publish(result.Annotated)
	}
	return result, nil
}

// region converts a detector box to an integer rectangle inside bounds.
// Detector coordinates are relative to the image origin.
func region(b imaging.Box, bounds image.Rectangle) (image.Rectangle, error) {
	if !b.Valid() {
		return image.Rectangle{}, fmt.Errorf("%w: malformed box %+v", ErrRegionCrop, b)
	}
	// Check the float extents: truncation would pull a box that overhangs by
	// less than a pixel back inside and let its area exceed the frame.
	if b.XMin < 0 || b.YMin < 0 || b.XMax > float64(bounds.Dx()) || b.YMax > float64(bounds.Dy()) {
		return image.Rectangle{}, fmt.Errorf("%w: box %+v outside %v", ErrRegionCrop, b, bounds)
	}
	r := b.Rect().Add(bounds.Min)
	if r.Empty() || !r.In(bounds) {
		return image.Rectangle{}, fmt.Errorf("%w: box %v outside %v", ErrRegionCrop, r, bounds)
	}
	return r, nil
}

func label(mode Mode, confidence float64) string {
	return fmt.Sprintf("%s, %.2f", mode, confidence)
}
