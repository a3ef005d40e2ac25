package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/devika/posecam/internal/capture"
	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/session"
	"github.com/devika/posecam/internal/store"
)

// ControlsHandler handles threshold and camera control requests.
type ControlsHandler struct {
	session *session.Session
	camera  capture.Camera
	store   *store.Store
}

// NewControlsHandler creates a new ControlsHandler. Camera and store are
// optional; without a camera only thresholds can be adjusted.
func NewControlsHandler(sess *session.Session, camera capture.Camera, st *store.Store) *ControlsHandler {
	return &ControlsHandler{session: sess, camera: camera, store: st}
}

// ServeHTTP implements the http.Handler interface, routing
// /api/controls/thresholds and /api/controls/camera.
func (h *ControlsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/controls/thresholds":
		h.thresholds(w, r)
	case "/api/controls/camera":
		h.adjustCamera(w, r)
	default:
		http.NotFound(w, r)
	}
}

// thresholdsRequest carries optional threshold overrides; absent fields
// keep their current value.
type thresholdsRequest struct {
	Confidence    *float64 `json:"confidence"`
	IoU           *float64 `json:"iou"`
	MaxDetections *int     `json:"max_detections"`
}

func (h *ControlsHandler) thresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t := h.session.Snapshot().Thresholds
	if req.Confidence != nil {
		t.Confidence = *req.Confidence
	}
	if req.IoU != nil {
		t.IoU = *req.IoU
	}
	if req.MaxDetections != nil {
		t.MaxDetections = *req.MaxDetections
	}

	if !validThresholds(t) {
		writeError(w, http.StatusBadRequest, "thresholds out of range")
		return
	}

	if err := h.session.SetThresholds(t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.persistThresholds(t)

	writeJSON(w, http.StatusOK, t)
}

func validThresholds(t engine.Thresholds) bool {
	return t.Confidence >= 0 && t.Confidence <= 1 &&
		t.IoU >= 0 && t.IoU <= 1 &&
		t.MaxDetections > 0
}

func (h *ControlsHandler) persistThresholds(t engine.Thresholds) {
	if h.store == nil {
		return
	}
	settings := h.store.Settings()
	for key, value := range map[string]string{
		store.SettingConfidence:    strconv.FormatFloat(t.Confidence, 'f', -1, 64),
		store.SettingIoU:           strconv.FormatFloat(t.IoU, 'f', -1, 64),
		store.SettingMaxDetections: strconv.Itoa(t.MaxDetections),
	} {
		if err := settings.Set(key, value); err != nil {
			log.Printf("Failed to persist %s: %v", key, err)
		}
	}
}

// cameraRequest carries optional camera adjustments.
type cameraRequest struct {
	Facing *string  `json:"facing"`
	Zoom   *float64 `json:"zoom"`
}

func (h *ControlsHandler) adjustCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Facing != nil {
		facing := capture.Facing(*req.Facing)
		if facing != capture.FacingBack && facing != capture.FacingFront {
			writeError(w, http.StatusBadRequest, "facing must be back or front")
			return
		}
		if h.camera != nil {
			if err := h.camera.SetFacing(facing); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
		}
		h.session.SetFacing(facing)
		if h.store != nil {
			if err := h.store.Settings().Set(store.SettingFacing, string(facing)); err != nil {
				log.Printf("Failed to persist camera facing: %v", err)
			}
		}
	}

	if req.Zoom != nil {
		zoom := *req.Zoom
		if h.camera != nil {
			h.camera.SetZoom(zoom)
			zoom = h.camera.Zoom() // clamped value
		}
		h.session.HandleZoom(zoom)
	}

	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"facing": snap.Facing,
		"zoom":   snap.Zoom,
	})
}
