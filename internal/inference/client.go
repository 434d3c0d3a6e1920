// Package inference talks to the object detection service.
//
// The service runs the neural network models; this package ships it a frame
// and a class filter and converts its JSON reply into detection.RawDetection
// values.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/detection"
	"github.com/ironsheep/route-vision/internal/imaging"
)

const defaultEndpoint = "http://127.0.0.1:8500"

// Config configures a Client.
type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Client is a detection.Detector backed by the detection service.
type Client struct {
	endpoint  string
	client    *http.Client
	transport *http.Transport
	log       zerolog.Logger
}

// prediction is one box in the service reply.
type prediction struct {
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"xyxy"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

// NewClient creates a client for the service at cfg.Endpoint.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log.With().Str("component", "inference").Logger(),
	}
}

// HealthCheck verifies the detection service is running.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("detection service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detection service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Predict uploads img as PNG and returns the boxes the service found.
func (c *Client) Predict(ctx context.Context, img image.Image, q detection.Query) ([]detection.RawDetection, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	fields := map[string]string{
		"model":      q.Model,
		"classes":    joinInts(q.Classes),
		"confidence": strconv.FormatFloat(q.Confidence, 'f', -1, 64),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raws := make([]detection.RawDetection, 0, len(pr.Predictions))
	for i, p := range pr.Predictions {
		raw := detection.RawDetection{ClassID: p.ClassID, Confidence: p.Confidence}
		if len(p.Box) == 4 {
			raw.Box = imaging.Box{XMin: p.Box[0], YMin: p.Box[1], XMax: p.Box[2], YMax: p.Box[3]}
		} else {
			// Passed on as an invalid box so the analyzer counts it as skipped.
			c.log.Warn().Int("index", i).Int("coords", len(p.Box)).Msg("malformed prediction box")
			nan := math.NaN()
			raw.Box = imaging.Box{XMin: nan, YMin: nan, XMax: nan, YMax: nan}
		}
		raws = append(raws, raw)
	}

	c.log.Debug().
		Str("model", q.Model).
		Ints("classes", q.Classes).
		Int("boxes", len(raws)).
		Dur("elapsed", time.Since(start)).
		Msg("prediction received")

	return raws, nil
}

// Release drops idle keep-alive connections after a pass.
func (c *Client) Release() {
	c.transport.CloseIdleConnections()
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}
