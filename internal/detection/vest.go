package detection

import (
	"image"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/imaging"
)

// VestSegmenter thresholds person crops for high-visibility vest colours.
// Its output is a debug side channel and never affects counts.
type VestSegmenter struct {
	colors func() imaging.HSVRange
	masks  MaskSink
	log    zerolog.Logger
}

// NewVestSegmenter creates a segmenter. colors is consulted on every call so
// the range can be replaced between requests; masks may be nil.
func NewVestSegmenter(colors func() imaging.HSVRange, masks MaskSink, log zerolog.Logger) *VestSegmenter {
	return &VestSegmenter{
		colors: colors,
		masks:  masks,
		log:    log.With().Str("component", "vest").Logger(),
	}
}

// Segment returns the vest mask of region and publishes it.
func (s *VestSegmenter) Segment(region image.Image) *image.Gray {
	rng := s.colors()
	mask := imaging.InRange(region, rng)

	if s.masks != nil {
		s.masks.Publish(mask)
	}

	if e := s.log.Debug(); e.Enabled() {
		e.Float64("coverage", imaging.Coverage(mask)).
			Interface("range", rng).
			Msg("vest mask published")
	}
	return mask
}
