package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"
)

// ocrFixes undoes digit/letter confusions the recogniser makes on sign text.
var ocrFixes = strings.NewReplacer("0", "O", "5", "S")

// ReadsStop reports whether a recognised string says STOP.
// "0" is read as "O" and "5" as "S" before a case-insensitive substring test.
func ReadsStop(text string) bool {
	return strings.Contains(strings.ToUpper(ocrFixes.Replace(text)), "STOP")
}

// StopSignValidator confirms stop sign detections by reading their text.
type StopSignValidator struct {
	reader TextReader
	log    zerolog.Logger
}

// NewStopSignValidator creates a validator backed by reader.
func NewStopSignValidator(reader TextReader, log zerolog.Logger) *StopSignValidator {
	return &StopSignValidator{
		reader: reader,
		log:    log.With().Str("component", "stopsign").Logger(),
	}
}

// Validate runs text recognition on region and returns true on the first
// reading that says STOP. A recogniser failure is returned wrapped in
// ErrTextRecognition.
func (v *StopSignValidator) Validate(ctx context.Context, region image.Image) (bool, error) {
	readings, err := v.reader.Read(ctx, region)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTextRecognition, err)
	}

	for _, text := range readings {
		v.log.Info().Str("text", text).Msg("sign reads")
		if ReadsStop(text) {
			return true, nil
		}
	}
	return false, nil
}
