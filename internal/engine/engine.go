// Package engine defines the boundary to the object detection and pose
// estimation engine. The engine itself is an external collaborator; this
// package hosts the subprocess plugin implementation and a mock for tests.
package engine

import "gocv.io/x/gocv"

// Task identifies what kind of output the loaded model produces.
type Task string

const (
	// TaskDetect is plain object detection with bounding boxes.
	TaskDetect Task = "detect"
	// TaskPose is pose estimation with per-subject body keypoints.
	TaskPose Task = "pose"
)

// Thresholds holds the inference thresholds forwarded to the engine.
type Thresholds struct {
	// Confidence is the minimum detection confidence (0.0-1.0).
	Confidence float64 `json:"confidence"`
	// IoU is the non-max-suppression overlap threshold (0.0-1.0).
	IoU float64 `json:"iou"`
	// MaxDetections caps the number of detections returned per frame.
	MaxDetections int `json:"max_detections"`
}

// DefaultThresholds returns the thresholds applied before the user
// adjusts anything.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence:    0.25,
		IoU:           0.45,
		MaxDetections: 300,
	}
}

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one detected subject in a frame. Keypoints carries the raw
// pose payload exactly as the engine produced it; its shape varies between
// plugin versions and is resolved defensively by the pose package.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Keypoints  any     `json:"keypoints,omitempty"`
}

// Metrics reports per-frame engine timing.
type Metrics struct {
	InferenceMs float64 `json:"inference_ms"`
}

// Engine is the control surface of an inference engine implementation.
type Engine interface {
	// SetModel points the engine at a model artifact on disk.
	SetModel(path string, task Task) error

	// Configure forwards threshold updates to the engine. Takes effect on
	// the next frame.
	Configure(t Thresholds) error

	// Detect analyzes a video frame and returns the detections found in it
	// together with timing metrics. Returns an empty slice when nothing is
	// detected.
	Detect(frame *gocv.Mat) ([]Detection, Metrics, error)

	// Close releases any resources held by the engine.
	Close() error
}
