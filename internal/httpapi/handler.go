// Package httpapi is the REST front end of the detection node.
package httpapi

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ironsheep/route-vision/internal/detection"
	"github.com/ironsheep/route-vision/internal/frame"
	"github.com/ironsheep/route-vision/internal/imaging"
	"github.com/ironsheep/route-vision/internal/metrics"
	"github.com/ironsheep/route-vision/internal/pipeline"
	"github.com/ironsheep/route-vision/internal/publish"
	"github.com/ironsheep/route-vision/internal/store"
)

// maxFrameBytes bounds an uploaded frame.
const maxFrameBytes = 32 << 20

// Node is the detection node served over HTTP.
type Node interface {
	IngestEncoded(r io.Reader) (frame.Frame, error)
	Detect(ctx context.Context, target string) (pipeline.Report, error)
	Annotated() (publish.Item[image.Image], bool)
	AnnotatedUpdates() <-chan publish.Item[image.Image]
	VestMask() (publish.Item[*image.Gray], bool)
	VestRange() imaging.HSVRange
	SetVestRange(imaging.HSVRange) error
	History(limit int) ([]store.Record, error)
	Status() pipeline.Status
	Metrics() *metrics.Metrics
}

// Handler serves the node over REST.
type Handler struct {
	node Node
	log  zerolog.Logger
}

// NewHandler returns a handler for node.
func NewHandler(node Node, log zerolog.Logger) *Handler {
	return &Handler{
		node: node,
		log:  log.With().Str("component", "http").Logger(),
	}
}

// Register mounts the API under /api/v1 and the Prometheus scrape
// endpoint at /metrics.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/frames", h.ingestFrame)
		api.POST("/detect", h.detect)
		api.GET("/detections", h.listDetections)

		api.GET("/debug/annotated.png", h.annotatedPNG)
		api.GET("/debug/annotated.mjpeg", h.annotatedStream)
		api.GET("/debug/vest_mask.png", h.vestMaskPNG)

		api.GET("/config/vest", h.getVestRange)
		api.PUT("/config/vest", h.putVestRange)

		api.GET("/status", h.status)
	}

	r.GET("/metrics", gin.WrapH(h.node.Metrics().Handler()))
}

type frameResponse struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ingestFrame accepts either a raw image body or a multipart form with an
// "image" file field.
func (h *Handler) ingestFrame(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("image form file is required"))
			return
		}
		file, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		defer file.Close()
		body = file
	}

	f, err := h.node.IngestEncoded(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	b := f.Image.Bounds()
	c.JSON(http.StatusCreated, successResponse(frameResponse{Seq: f.Seq, Width: b.Dx(), Height: b.Dy()}))
}

type detectRequest struct {
	Target string `json:"target" binding:"required"`
}

func (h *Handler) detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	rep, err := h.node.Detect(c.Request.Context(), req.Target)
	if err != nil {
		switch {
		case errors.Is(err, detection.ErrInference), errors.Is(err, detection.ErrTextRecognition):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "id": rep.ID})
		default:
			h.log.Error().Err(err).Msg("detect failed")
			c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		}
		return
	}

	c.JSON(http.StatusOK, successResponse(rep))
}

func (h *Handler) listDetections(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.node.History(limit)
	if err != nil {
		if errors.Is(err, pipeline.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to read history")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(records))
}

func (h *Handler) annotatedPNG(c *gin.Context) {
	item, ok := h.node.Annotated()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("no annotated frame published yet"))
		return
	}
	h.writePNG(c, item.Value, item.Seq)
}

func (h *Handler) vestMaskPNG(c *gin.Context) {
	item, ok := h.node.VestMask()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("no vest mask published yet"))
		return
	}
	h.writePNG(c, item.Value, item.Seq)
}

func (h *Handler) writePNG(c *gin.Context, img image.Image, seq uint64) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode png")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.Header("X-Sequence", strconv.FormatUint(seq, 10))
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", data)
}

func (h *Handler) getVestRange(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.node.VestRange()))
}

// vestRangeRequest uses pointers so a missing bound is told apart from zero.
type vestRangeRequest struct {
	Lower *imaging.HSV `json:"lower"`
	Upper *imaging.HSV `json:"upper"`
}

func (h *Handler) putVestRange(c *gin.Context) {
	var req vestRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.Lower == nil || req.Upper == nil {
		c.JSON(http.StatusBadRequest, errorResponse("lower and upper are both required"))
		return
	}
	if err := h.node.SetVestRange(imaging.HSVRange{Lower: *req.Lower, Upper: *req.Upper}); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.node.VestRange()))
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.node.Status()))
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
