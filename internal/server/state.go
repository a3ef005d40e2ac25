package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/devika/posecam/internal/session"
)

// anglePlaceholder is shown when a joint angle is undefined for the
// current frame.
const anglePlaceholder = "–"

// stateResponse is the wire form of a session snapshot. Angles are
// pre-formatted so undefined values (NaN, which JSON cannot carry) render
// as a placeholder glyph.
type stateResponse struct {
	Model       string  `json:"model"`
	Task        string  `json:"task"`
	Detections  int     `json:"detections"`
	FPS         string  `json:"fps"`
	InferenceMs float64 `json:"inference_ms"`
	LeftElbow   string  `json:"left_elbow"`
	RightElbow  string  `json:"right_elbow"`
	Keypoints   int     `json:"keypoints"`
	Confidence  float64 `json:"confidence"`
	IoU         float64 `json:"iou"`
	MaxItems    int     `json:"max_detections"`
	Facing      string  `json:"facing"`
	Zoom        float64 `json:"zoom"`
	Loading     bool    `json:"loading"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	Error       string  `json:"error"`
}

// renderState formats a snapshot for display: FPS with one decimal place,
// angles as integer degrees or the placeholder.
func renderState(snap session.Snapshot) stateResponse {
	return stateResponse{
		Model:       snap.Model,
		Task:        string(snap.Task),
		Detections:  snap.Detections,
		FPS:         fmt.Sprintf("%.1f", snap.FPS),
		InferenceMs: snap.InferenceMs,
		LeftElbow:   formatAngle(snap.LeftElbow),
		RightElbow:  formatAngle(snap.RightElbow),
		Keypoints:   snap.KeypointCount,
		Confidence:  snap.Thresholds.Confidence,
		IoU:         snap.Thresholds.IoU,
		MaxItems:    snap.Thresholds.MaxDetections,
		Facing:      string(snap.Facing),
		Zoom:        snap.Zoom,
		Loading:     snap.Loading,
		Progress:    snap.Progress,
		Status:      snap.Status,
		Error:       snap.Err,
	}
}

// formatAngle renders an angle as integer degrees, or the placeholder
// glyph when the angle is undefined.
func formatAngle(deg float64) string {
	if math.IsNaN(deg) {
		return anglePlaceholder
	}
	return fmt.Sprintf("%d°", int(math.Round(deg)))
}

// StateHandler serves the current session state as JSON.
type StateHandler struct {
	session *session.Session
}

// NewStateHandler creates a new StateHandler over the given session.
func NewStateHandler(s *session.Session) *StateHandler {
	return &StateHandler{session: s}
}

// ServeHTTP handles GET requests to /api/state.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(renderState(h.session.Snapshot())); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
