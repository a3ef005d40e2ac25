package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/devika/posecam/internal/capture"
)

const streamBoundary = "frame"

// StreamHandler serves the camera preview as an MJPEG stream. Frames are
// paced at the camera's current rate, so the preview slows down together
// with the pipeline when it drops to idle FPS.
type StreamHandler struct {
	camera capture.Camera
}

// NewStreamHandler creates a StreamHandler over the given camera.
func NewStreamHandler(camera capture.Camera) *StreamHandler {
	return &StreamHandler{camera: camera}
}

// ServeHTTP streams multipart JPEG frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		if err := h.writeFrame(w); err != nil {
			// Camera hiccups are transient; a dead client is caught by the
			// context check once the request is torn down.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}

		time.Sleep(h.frameInterval())
	}
}

// writeFrame grabs one frame, JPEG-encodes it and writes one multipart
// section.
func (h *StreamHandler) writeFrame(w http.ResponseWriter) error {
	frame, err := h.camera.ReadFrame()
	if err != nil {
		return err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	frame.Close()
	if err != nil {
		return err
	}
	defer buf.Close()

	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, buf.Len()); err != nil {
		return err
	}
	if _, err := w.Write(buf.GetBytes()); err != nil {
		return err
	}
	_, err = fmt.Fprint(w, "\r\n")
	return err
}

// frameInterval derives the pacing delay from the camera's current frame
// rate.
func (h *StreamHandler) frameInterval() time.Duration {
	fps := h.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
