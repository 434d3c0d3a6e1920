package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/imaging"
)

// Config configures a Reader.
type Config struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string `mapstructure:"language"`

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string `mapstructure:"tessdata_prefix"`

	// MinConfidence drops words Tesseract is less sure about (0.0 to 1.0).
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// Info describes the OCR backend for status reports.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language"`
	Backend   string `json:"backend"`
}

// Reader recognises words in image regions.
type Reader struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
	log    zerolog.Logger
}

// NewReader creates a Reader with its own Tesseract client.
// The caller must Close it.
func NewReader(cfg Config, log zerolog.Logger) (*Reader, error) {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	// Signs carry a few scattered words rather than a text block.
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Reader{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "ocr").Logger(),
	}, nil
}

// Read returns the words recognised in img.
func (r *Reader) Read(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Some Tesseract builds cannot iterate words; fall back to page text.
		r.log.Debug().Err(err).Msg("word boxes unavailable, using page text")
		text, err := r.client.Text()
		if err != nil {
			return nil, fmt.Errorf("OCR failed: %w", err)
		}
		return strings.Fields(text), nil
	}

	return words(boxes, r.cfg.MinConfidence), nil
}

// Info reports the Tesseract version in use.
func (r *Reader) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		Available: true,
		Version:   r.client.Version(),
		Language:  r.cfg.Language,
		Backend:   "gosseract",
	}
}

// Close releases the Tesseract client.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// words keeps non-empty words at or above minConfidence. Tesseract reports
// confidence on a 0-100 scale.
func words(boxes []gosseract.BoundingBox, minConfidence float64) []string {
	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		if b.Confidence/100.0 < minConfidence {
			continue
		}
		out = append(out, w)
	}
	return out
}
