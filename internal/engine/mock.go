package engine

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockEngine is a test implementation of the Engine interface. It records
// what was configured and returns preset detections.
type MockEngine struct {
	mu         sync.Mutex
	detections []Detection
	metrics    Metrics
	err        error

	modelPath   string
	task        Task
	thresholds  Thresholds
	setModelErr error
	detectCalls int
	closed      bool
}

// NewMockEngine creates a new MockEngine instance.
func NewMockEngine() *MockEngine {
	return &MockEngine{thresholds: DefaultThresholds()}
}

// SetDetections sets the detections returned by Detect.
func (m *MockEngine) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetMetrics sets the metrics returned by Detect.
func (m *MockEngine) SetMetrics(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// SetError sets the error returned by Detect.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailSetModel makes subsequent SetModel calls return err.
func (m *MockEngine) FailSetModel(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setModelErr = err
}

// SetModel records the model path and task.
func (m *MockEngine) SetModel(path string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setModelErr != nil {
		return m.setModelErr
	}
	m.modelPath = path
	m.task = task
	return nil
}

// Configure records the thresholds.
func (m *MockEngine) Configure(t Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
	return nil
}

// Detect returns the preset detections or error.
func (m *MockEngine) Detect(frame *gocv.Mat) ([]Detection, Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectCalls++
	if m.err != nil {
		return nil, Metrics{}, m.err
	}
	return m.detections, m.metrics, nil
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ModelPath returns the last path passed to SetModel.
func (m *MockEngine) ModelPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelPath
}

// Task returns the last task passed to SetModel.
func (m *MockEngine) Task() Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task
}

// Thresholds returns the last thresholds passed to Configure.
func (m *MockEngine) Thresholds() Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds
}

// DetectCalls returns how many times Detect was called.
func (m *MockEngine) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

// standingPose returns a 17-joint standing figure with the left arm bent at
// a right angle and the right arm hanging straight, in pixel coordinates.
func standingPose() []float64 {
	vals := make([]float64, 34)
	set := func(joint int, x, y float64) {
		vals[joint*2] = x
		vals[joint*2+1] = y
	}
	set(0, 320, 80)   // nose
	set(1, 310, 70)   // left eye
	set(2, 330, 70)   // right eye
	set(3, 300, 75)   // left ear
	set(4, 340, 75)   // right ear
	set(5, 280, 140)  // left shoulder
	set(6, 360, 140)  // right shoulder
	set(7, 280, 220)  // left elbow
	set(8, 360, 220)  // right elbow
	set(9, 350, 220)  // left wrist, forearm horizontal
	set(10, 360, 300) // right wrist, arm straight down
	set(11, 290, 290) // left hip
	set(12, 350, 290) // right hip
	set(13, 290, 390) // left knee
	set(14, 350, 390) // right knee
	set(15, 290, 470) // left ankle
	set(16, 350, 470) // right ankle
	return vals
}

// PersonDetection returns a preset detection without keypoints.
func PersonDetection() Detection {
	return Detection{
		Class:      "person",
		Confidence: 0.91,
		Box:        Box{X: 250, Y: 60, W: 140, H: 430},
	}
}

// PersonWithPoseFlat returns a preset pose detection whose keypoints are a
// flat 17x2 numeric array.
func PersonWithPoseFlat() Detection {
	det := PersonDetection()
	det.Keypoints = standingPose()
	return det
}

// PersonWithPosePairs returns the same pose as PersonWithPoseFlat encoded
// as a list of [x, y] pairs, the way older plugin builds emit it.
func PersonWithPosePairs() Detection {
	vals := standingPose()
	pairs := make([]any, len(vals)/2)
	for i := range pairs {
		pairs[i] = []any{vals[i*2], vals[i*2+1]}
	}
	det := PersonDetection()
	det.Keypoints = pairs
	return det
}

// PersonWithPoseRecords returns the same pose encoded as a list of x/y
// records nested under a "points" container key.
func PersonWithPoseRecords() Detection {
	vals := standingPose()
	records := make([]any, len(vals)/2)
	for i := range records {
		records[i] = map[string]any{"x": vals[i*2], "y": vals[i*2+1]}
	}
	det := PersonDetection()
	det.Keypoints = map[string]any{"points": records}
	return det
}
