package httpapi

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAlive is how long the MJPEG stream waits for a new annotated frame
// before repeating the latest one.
const keepAlive = 5 * time.Second

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// annotatedStream serves annotated frames as multipart/x-mixed-replace MJPEG.
// Each published frame is delivered to one viewer only; concurrent viewers
// fall back to the keep-alive repeat of the latest frame.
func (h *Handler) annotatedStream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")

	updates := h.node.AnnotatedUpdates()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		var img image.Image
		select {
		case <-ctx.Done():
			return false
		case item := <-updates:
			img = item.Value
		case <-time.After(keepAlive):
			item, ok := h.node.Annotated()
			if !ok {
				return true
			}
			img = item.Value
		}

		data, err := encodeJPEG(img)
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to encode stream frame")
			return true
		}
		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			h.log.Debug().Err(err).Msg("stream client disconnected")
			return false
		}
		if _, err := w.Write(data); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return false
		}
		return true
	})
}
